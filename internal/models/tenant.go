package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Tenant is a customer organization. IsSuspended is an operator override that
// is independent of the subscription status.
type Tenant struct {
	ID               uuid.UUID       `json:"id" db:"id"`
	OrganizationID   string          `json:"organizationId" db:"organization_id"`
	OrganizationName string          `json:"organizationName" db:"organization_name"`
	IsSuspended      bool            `json:"isSuspended" db:"is_suspended"`
	ContactEmail     string          `json:"contactEmail" db:"contact_email"`
	ContactPhone     string          `json:"contactPhone" db:"contact_phone"`
	ResellerID       *uuid.UUID      `json:"resellerId,omitempty" db:"reseller_id"`
	CommissionRate   decimal.Decimal `json:"commissionRate" db:"commission_rate"`
	CreatedAt        time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time       `json:"updatedAt" db:"updated_at"`
}

func (t *Tenant) Clone() *Tenant {
	if t == nil {
		return nil
	}
	out := *t
	if t.ResellerID != nil {
		id := *t.ResellerID
		out.ResellerID = &id
	}
	return &out
}

// UsageSnapshot is a live count of tenant resources. A resource present in
// Unknown could not be counted and must not be read as zero.
type UsageSnapshot struct {
	Counts    map[Resource]int64  `json:"counts"`
	Unknown   map[Resource]string `json:"unknown,omitempty"`
	CountedAt time.Time           `json:"countedAt"`
}

// Count returns the counted value and whether it is known.
func (u UsageSnapshot) Count(r Resource) (int64, bool) {
	if _, unknown := u.Unknown[r]; unknown {
		return 0, false
	}
	v, ok := u.Counts[r]
	return v, ok
}
