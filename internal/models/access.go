package models

// DecisionReason explains the outcome of a capability check. Role denials and
// plan denials always carry different reasons.
type DecisionReason string

const (
	ReasonAllowed          DecisionReason = "allowed"
	ReasonRbacDenied       DecisionReason = "rbac_denied"
	ReasonPlanDenied       DecisionReason = "plan_denied"
	ReasonLimitReached     DecisionReason = "limit_reached"
	ReasonUsageUnavailable DecisionReason = "usage_unavailable"
	ReasonTenantSuspended  DecisionReason = "tenant_suspended"
)

type AccessDecision struct {
	Allowed         bool               `json:"allowed"`
	Reason          DecisionReason     `json:"reason"`
	Capability      string             `json:"capability"`
	EffectiveStatus SubscriptionStatus `json:"effectiveStatus,omitempty"`
}

// Err maps a denial onto the matching sentinel error; nil when allowed.
func (d AccessDecision) Err() error {
	switch d.Reason {
	case ReasonAllowed:
		return nil
	case ReasonRbacDenied:
		return ErrRbacDenied
	case ReasonUsageUnavailable:
		return ErrUsageUnavailable
	default:
		return ErrPlanDenied
	}
}
