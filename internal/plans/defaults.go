package plans

import (
	"tenantcrm/internal/models"

	"github.com/shopspring/decimal"
)

const (
	FreePlanID         = "free"
	StarterPlanID      = "starter"
	ProfessionalPlanID = "professional"
	EnterprisePlanID   = "enterprise"
)

// DefaultPlans is the catalog a fresh deployment starts with. Prices are INR.
func DefaultPlans() []models.Plan {
	return []models.Plan{
		{
			ID:          FreePlanID,
			Name:        FreePlanID,
			DisplayName: "Free",
			Price:       models.Price{Monthly: decimal.Zero, Yearly: decimal.Zero},
			Limits: models.Limits{
				models.ResourceUsers:     2,
				models.ResourceLeads:     100,
				models.ResourceContacts:  100,
				models.ResourceDeals:     20,
				models.ResourceStorageMB: 100,
			},
			Features: models.FeatureFlags{},
			Support:  models.SupportEmail,
			Tier:     0,
		},
		{
			ID:          StarterPlanID,
			Name:        StarterPlanID,
			DisplayName: "Starter",
			Price:       models.Price{Monthly: decimal.NewFromInt(1499), Yearly: decimal.NewFromInt(14990)},
			Limits: models.Limits{
				models.ResourceUsers:     5,
				models.ResourceLeads:     1000,
				models.ResourceContacts:  1000,
				models.ResourceDeals:     200,
				models.ResourceStorageMB: 1024,
			},
			Features: models.FeatureFlags{
				models.FeatureEmailIntegration: true,
				models.FeatureDataImportExport: true,
			},
			Support: models.SupportEmail,
			Tier:    1,
		},
		{
			ID:          ProfessionalPlanID,
			Name:        ProfessionalPlanID,
			DisplayName: "Professional",
			Price:       models.Price{Monthly: decimal.NewFromInt(2999), Yearly: decimal.NewFromInt(29990)},
			Limits: models.Limits{
				models.ResourceUsers:     25,
				models.ResourceLeads:     10000,
				models.ResourceContacts:  10000,
				models.ResourceDeals:     2000,
				models.ResourceStorageMB: 10240,
			},
			Features: models.FeatureFlags{
				models.FeatureEmailIntegration:   true,
				models.FeatureAdvancedReports:    true,
				models.FeatureCustomFields:       true,
				models.FeatureDataImportExport:   true,
				models.FeatureWorkflowAutomation: true,
			},
			Support:   models.SupportPriority,
			IsPopular: true,
			Tier:      2,
		},
		{
			ID:          EnterprisePlanID,
			Name:        EnterprisePlanID,
			DisplayName: "Enterprise",
			Price:       models.Price{Monthly: decimal.NewFromInt(5999), Yearly: decimal.NewFromInt(59990)},
			Limits: models.Limits{
				models.ResourceUsers:     models.Unlimited,
				models.ResourceLeads:     models.Unlimited,
				models.ResourceContacts:  models.Unlimited,
				models.ResourceDeals:     models.Unlimited,
				models.ResourceStorageMB: models.Unlimited,
			},
			Features: models.FeatureFlags{
				models.FeatureEmailIntegration:   true,
				models.FeatureAdvancedReports:    true,
				models.FeatureCustomFields:       true,
				models.FeatureAPIAccess:          true,
				models.FeatureDataImportExport:   true,
				models.FeatureWorkflowAutomation: true,
			},
			Support: models.SupportDedicated,
			Tier:    3,
		},
	}
}
