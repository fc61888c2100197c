package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BillingCycle is the paid-term length of a subscription.
type BillingCycle string

const (
	CycleMonthly BillingCycle = "monthly"
	CycleYearly  BillingCycle = "yearly"
)

func (c BillingCycle) Valid() bool {
	return c == CycleMonthly || c == CycleYearly
}

// Advance returns t moved forward by one billing cycle. The result lands on
// anchorDay, the day of month the term started on, clamped to the last day
// of shorter months so Jan 31 renews on Feb 28 and then Mar 31.
func (c BillingCycle) Advance(t time.Time, anchorDay int) time.Time {
	months := 1
	if c == CycleYearly {
		months = 12
	}
	if anchorDay < 1 {
		anchorDay = t.Day()
	}
	y, m, _ := t.Date()
	first := time.Date(y, m+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := first.AddDate(0, 1, -1).Day(); anchorDay > last {
		anchorDay = last
	}
	return first.AddDate(0, 0, anchorDay-1)
}

// Resource is a metered, countable tenant resource.
type Resource string

const (
	ResourceUsers     Resource = "users"
	ResourceLeads     Resource = "leads"
	ResourceContacts  Resource = "contacts"
	ResourceDeals     Resource = "deals"
	ResourceStorageMB Resource = "storageMB"
)

// MeteredResources lists every resource a plan may limit, in display order.
var MeteredResources = []Resource{
	ResourceUsers,
	ResourceLeads,
	ResourceContacts,
	ResourceDeals,
	ResourceStorageMB,
}

// Unlimited marks a resource with no cap.
const Unlimited int64 = -1

// Limits maps a resource to its cap. A missing resource is treated as a cap of zero.
type Limits map[Resource]int64

func (l Limits) Clone() Limits {
	if l == nil {
		return nil
	}
	out := make(Limits, len(l))
	for k, v := range l {
		out[k] = v
	}
	return out
}

// PlanFeature is a boolean plan capability flag.
type PlanFeature string

const (
	FeatureEmailIntegration   PlanFeature = "emailIntegration"
	FeatureAdvancedReports    PlanFeature = "advancedReports"
	FeatureCustomFields       PlanFeature = "customFields"
	FeatureAPIAccess          PlanFeature = "apiAccess"
	FeatureDataImportExport   PlanFeature = "dataImportExport"
	FeatureWorkflowAutomation PlanFeature = "workflowAutomation"
)

// PlanFeatures is the full set of known plan flags.
var PlanFeatures = []PlanFeature{
	FeatureEmailIntegration,
	FeatureAdvancedReports,
	FeatureCustomFields,
	FeatureAPIAccess,
	FeatureDataImportExport,
	FeatureWorkflowAutomation,
}

type FeatureFlags map[PlanFeature]bool

func (f FeatureFlags) Clone() FeatureFlags {
	if f == nil {
		return nil
	}
	out := make(FeatureFlags, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

type SupportTier string

const (
	SupportEmail     SupportTier = "email"
	SupportPriority  SupportTier = "priority"
	SupportDedicated SupportTier = "dedicated"
)

type Price struct {
	Monthly decimal.Decimal `json:"monthly"`
	Yearly  decimal.Decimal `json:"yearly"`
}

// For returns the price charged for one term of the given cycle.
func (p Price) For(c BillingCycle) decimal.Decimal {
	if c == CycleYearly {
		return p.Yearly
	}
	return p.Monthly
}

// Plan is operator-managed reference data. Subscriptions snapshot the parts
// they depend on, so editing a plan never changes a live subscription.
type Plan struct {
	ID          string       `json:"id" db:"id"`
	Name        string       `json:"name" db:"name"`
	DisplayName string       `json:"displayName" db:"display_name"`
	Price       Price        `json:"price"`
	Limits      Limits       `json:"limits" db:"limits"`
	Features    FeatureFlags `json:"features" db:"features"`
	Support     SupportTier  `json:"support" db:"support"`
	IsPopular   bool         `json:"isPopular" db:"is_popular"`
	Tier        int          `json:"tier" db:"tier"`
	CreatedAt   time.Time    `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time    `json:"updatedAt" db:"updated_at"`
}

func (p Plan) Clone() Plan {
	p.Limits = p.Limits.Clone()
	p.Features = p.Features.Clone()
	return p
}
