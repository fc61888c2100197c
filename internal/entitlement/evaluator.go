// Package entitlement resolves a tenant's stored subscription, suspension
// flag and live usage into one effective status and one plan answer per
// capability. Evaluate is pure: the caller supplies the clock reading.
package entitlement

import (
	"math"
	"time"

	"tenantcrm/internal/capability"
	"tenantcrm/internal/models"
)

// RenewalGrace is how long an auto-renewing subscription stays active past
// its renewal date while the payment outcome is outstanding.
const RenewalGrace = 72 * time.Hour

// Usage at or above 90% of a finite limit raises a warning.
const warningNumerator, warningDenominator = 9, 10

type Input struct {
	Tenant       *models.Tenant
	Subscription *models.Subscription
	// Usage may be nil when no metering was done; finite limits then read as unknown.
	Usage *models.UsageSnapshot
	Now   time.Time
}

type Result struct {
	EffectiveStatus    models.SubscriptionStatus `json:"effectiveStatus"`
	PlanID             string                    `json:"planId"`
	PlanName           string                    `json:"planName"`
	TrialDaysRemaining int                       `json:"trialDaysRemaining"`
	PaidDaysRemaining  int                       `json:"paidDaysRemaining"`
	Limits             models.Limits             `json:"limits"`
	Usage              map[models.Resource]int64 `json:"usage"`
	LimitFlags         map[models.Resource]bool  `json:"limitFlags"`
	LimitWarnings      map[models.Resource]bool  `json:"limitWarnings"`
	UnknownUsage       map[models.Resource]bool  `json:"unknownUsage"`
	FeatureFlags       models.FeatureFlags       `json:"featureFlags"`
	EvaluatedAt        time.Time                 `json:"evaluatedAt"`
}

// Evaluate never fails. A missing subscription or an unrecognised stored
// status resolves to expired.
func Evaluate(in Input) Result {
	sub := in.Subscription
	res := Result{
		EffectiveStatus: EffectiveStatus(in.Tenant, sub, in.Now),
		Limits:          models.Limits{},
		Usage:           map[models.Resource]int64{},
		LimitFlags:      map[models.Resource]bool{},
		LimitWarnings:   map[models.Resource]bool{},
		UnknownUsage:    map[models.Resource]bool{},
		FeatureFlags:    models.FeatureFlags{},
		EvaluatedAt:     in.Now,
	}

	for _, f := range models.PlanFeatures {
		res.FeatureFlags[f] = false
	}
	if sub == nil {
		for _, r := range models.MeteredResources {
			res.Limits[r] = 0
			res.LimitFlags[r] = true
		}
		return res
	}

	res.PlanID = sub.PlanID
	res.PlanName = sub.PlanName
	for f, on := range sub.Features {
		res.FeatureFlags[f] = on
	}

	if sub.IsTrialActive && !sub.IsTrialExpired && sub.TrialEndDate != nil {
		res.TrialDaysRemaining = DaysUntil(*sub.TrialEndDate, in.Now)
	}
	if sub.EndDate != nil && (res.EffectiveStatus == models.StatusActive || res.EffectiveStatus == models.StatusCancelled) {
		res.PaidDaysRemaining = DaysUntil(*sub.EndDate, in.Now)
	}

	for _, r := range models.MeteredResources {
		limit, ok := sub.Limits[r]
		if !ok {
			limit = 0
		}
		res.Limits[r] = limit
		if limit == models.Unlimited {
			res.LimitFlags[r] = false
			if in.Usage != nil {
				if used, known := in.Usage.Count(r); known {
					res.Usage[r] = used
				}
			}
			continue
		}

		var used int64
		known := false
		if in.Usage != nil {
			used, known = in.Usage.Count(r)
		}
		if !known {
			res.UnknownUsage[r] = true
			res.LimitFlags[r] = true
			continue
		}
		res.Usage[r] = used
		res.LimitFlags[r] = used >= limit
		res.LimitWarnings[r] = limit > 0 && used*warningDenominator >= limit*warningNumerator
	}
	return res
}

// EffectiveStatus applies lazy expiry to the stored status.
func EffectiveStatus(t *models.Tenant, sub *models.Subscription, now time.Time) models.SubscriptionStatus {
	if t != nil && t.IsSuspended {
		return models.StatusSuspended
	}
	if sub == nil {
		return models.StatusExpired
	}

	switch sub.Status {
	case models.StatusSuspended:
		return models.StatusSuspended
	case models.StatusTrial:
		if sub.IsTrialExpired || sub.TrialEndDate == nil || now.After(*sub.TrialEndDate) {
			return models.StatusExpired
		}
		return models.StatusTrial
	case models.StatusActive:
		if PaidTermLapsed(sub, now) {
			return models.StatusExpired
		}
		return models.StatusActive
	case models.StatusCancelled:
		end := sub.AccessEndsAt()
		if end == nil || !now.Before(*end) {
			return models.StatusExpired
		}
		return models.StatusCancelled
	default:
		return models.StatusExpired
	}
}

// RenewalDue reports whether an active subscription reached its renewal date.
func RenewalDue(sub *models.Subscription, now time.Time) bool {
	if sub == nil || sub.RenewalDate == nil {
		return false
	}
	return !now.Before(*sub.RenewalDate)
}

// PaidTermLapsed reports whether an active subscription no longer grants
// access: at renewal without auto-renew, or past the grace window with it.
func PaidTermLapsed(sub *models.Subscription, now time.Time) bool {
	end := sub.RenewalDate
	if end == nil {
		end = sub.EndDate
	}
	if end == nil {
		return true
	}
	if !sub.AutoRenew {
		return !now.Before(*end)
	}
	return !now.Before(end.Add(RenewalGrace))
}

// DaysUntil returns whole days left until end, rounded up and never negative.
func DaysUntil(end, now time.Time) int {
	left := end.Sub(now)
	if left <= 0 {
		return 0
	}
	return int(math.Ceil(left.Hours() / 24))
}

// PlanAllows answers the plan side of a capability check. RBAC is checked by
// the caller; this never returns ReasonRbacDenied.
func (r Result) PlanAllows(c capability.Capability) models.DecisionReason {
	if c.IsZero() {
		return models.ReasonPlanDenied
	}

	switch r.EffectiveStatus {
	case models.StatusSuspended:
		return models.ReasonTenantSuspended
	case models.StatusExpired:
		if c.Action() == capability.Read && c.Feature() != capability.DataCenter {
			return models.ReasonAllowed
		}
		return models.ReasonPlanDenied
	case models.StatusTrial, models.StatusActive, models.StatusCancelled:
	default:
		return models.ReasonPlanDenied
	}

	if flag, ok := RequiredFeature(c); ok && !r.FeatureFlags[flag] {
		return models.ReasonPlanDenied
	}
	if res, ok := ConsumedResource(c); ok {
		if r.UnknownUsage[res] {
			return models.ReasonUsageUnavailable
		}
		if r.LimitFlags[res] {
			return models.ReasonLimitReached
		}
	}
	return models.ReasonAllowed
}
