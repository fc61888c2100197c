package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SubscriptionStatus is the stored lifecycle state.
type SubscriptionStatus string

const (
	StatusTrial     SubscriptionStatus = "trial"
	StatusActive    SubscriptionStatus = "active"
	StatusExpired   SubscriptionStatus = "expired"
	StatusSuspended SubscriptionStatus = "suspended"
	StatusCancelled SubscriptionStatus = "cancelled"
)

func (s SubscriptionStatus) Valid() bool {
	switch s {
	case StatusTrial, StatusActive, StatusExpired, StatusSuspended, StatusCancelled:
		return true
	}
	return false
}

// Subscription is the single billing record of a tenant. Amount, Limits and
// Features are snapshots taken at purchase time.
type Subscription struct {
	ID                uuid.UUID           `json:"id" db:"id"`
	TenantID          uuid.UUID           `json:"tenantId" db:"tenant_id"`
	PlanID            string              `json:"planId" db:"plan_id"`
	PlanName          string              `json:"planName" db:"plan_name"`
	Status            SubscriptionStatus  `json:"status" db:"status"`
	BillingCycle      BillingCycle        `json:"billingCycle" db:"billing_cycle"`
	Amount            decimal.Decimal     `json:"amount" db:"amount"`
	Limits            Limits              `json:"limits" db:"limits"`
	Features          FeatureFlags        `json:"features" db:"features"`
	StartDate         *time.Time          `json:"startDate" db:"start_date"`
	EndDate           *time.Time          `json:"endDate" db:"end_date"`
	RenewalDate       *time.Time          `json:"renewalDate" db:"renewal_date"`
	AutoRenew         bool                `json:"autoRenew" db:"auto_renew"`
	TrialStartDate    *time.Time          `json:"trialStartDate" db:"trial_start_date"`
	TrialEndDate      *time.Time          `json:"trialEndDate" db:"trial_end_date"`
	IsTrialActive     bool                `json:"isTrialActive" db:"is_trial_active"`
	IsTrialExpired    bool                `json:"isTrialExpired" db:"is_trial_expired"`
	LastPaymentDate   *time.Time          `json:"lastPaymentDate" db:"last_payment_date"`
	LastPaymentAmount decimal.NullDecimal `json:"lastPaymentAmount" db:"last_payment_amount"`
	TotalPaid         decimal.Decimal     `json:"totalPaid" db:"total_paid"`
	Currency          string              `json:"currency" db:"currency"`
	CancelledAt       *time.Time          `json:"cancelledAt,omitempty" db:"cancelled_at"`
	CancelReason      string              `json:"cancelReason,omitempty" db:"cancel_reason"`
	SuspendedAt       *time.Time          `json:"suspendedAt,omitempty" db:"suspended_at"`
	SuspendReason     string              `json:"suspendReason,omitempty" db:"suspend_reason"`
	Version           int64               `json:"version" db:"version"`
	CreatedAt         time.Time           `json:"createdAt" db:"created_at"`
	UpdatedAt         time.Time           `json:"updatedAt" db:"updated_at"`
}

// Clone returns a copy that shares no mutable state with s.
func (s *Subscription) Clone() *Subscription {
	if s == nil {
		return nil
	}
	out := *s
	out.Limits = s.Limits.Clone()
	out.Features = s.Features.Clone()
	out.StartDate = cloneTime(s.StartDate)
	out.EndDate = cloneTime(s.EndDate)
	out.RenewalDate = cloneTime(s.RenewalDate)
	out.TrialStartDate = cloneTime(s.TrialStartDate)
	out.TrialEndDate = cloneTime(s.TrialEndDate)
	out.LastPaymentDate = cloneTime(s.LastPaymentDate)
	out.CancelledAt = cloneTime(s.CancelledAt)
	out.SuspendedAt = cloneTime(s.SuspendedAt)
	return &out
}

// AccessEndsAt is the instant a cancelled subscription stops granting access:
// the paid end date, or the trial end for a cancelled trial.
func (s *Subscription) AccessEndsAt() *time.Time {
	if s.EndDate != nil {
		return s.EndDate
	}
	return s.TrialEndDate
}

// MonthlyAmount normalizes the snapshotted amount to one month.
func (s *Subscription) MonthlyAmount() decimal.Decimal {
	if s.BillingCycle == CycleYearly {
		return s.Amount.Div(decimal.NewFromInt(12))
	}
	return s.Amount
}

// SubscriptionFilter narrows ListSubscriptions. Zero values match everything.
type SubscriptionFilter struct {
	Status       SubscriptionStatus
	PlanID       string
	BillingCycle BillingCycle
	ResellerID   *uuid.UUID
	Limit        int
	Offset       int
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// TimePtr returns a pointer to t.
func TimePtr(t time.Time) *time.Time { return &t }
