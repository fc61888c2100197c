package entitlement

import (
	"tenantcrm/internal/capability"
	"tenantcrm/internal/models"
)

// RequiredFeature returns the plan flag a capability depends on, if any.
func RequiredFeature(c capability.Capability) (models.PlanFeature, bool) {
	switch {
	case c.Feature() == capability.DataCenter:
		return models.FeatureDataImportExport, true
	case c.Action() == capability.Import || c.Action() == capability.Export:
		return models.FeatureDataImportExport, true
	case c.Feature() == capability.ReportManagement && c.Action() != capability.Read:
		return models.FeatureAdvancedReports, true
	}
	return "", false
}

// ConsumedResource returns the metered resource a capability adds to.
// Manage is treated like create since it covers it.
func ConsumedResource(c capability.Capability) (models.Resource, bool) {
	a := c.Action()
	creates := a == capability.Create || a == capability.Manage
	switch c.Feature() {
	case capability.UserManagement:
		if creates {
			return models.ResourceUsers, true
		}
	case capability.LeadManagement:
		switch {
		case creates || a == capability.Import:
			return models.ResourceLeads, true
		case a == capability.Convert:
			return models.ResourceDeals, true
		}
	case capability.ContactManagement:
		switch {
		case creates || a == capability.Import:
			return models.ResourceContacts, true
		case a == capability.MoveToLeads:
			return models.ResourceLeads, true
		}
	case capability.DataCenter:
		if creates || a == capability.Import {
			return models.ResourceStorageMB, true
		}
	}
	return "", false
}
