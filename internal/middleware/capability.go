package middleware

import (
	"errors"
	"net/http"

	"tenantcrm/internal/capability"
	"tenantcrm/internal/common"
	"tenantcrm/internal/models"
	"tenantcrm/internal/services"

	"github.com/labstack/echo/v4"
)

// Gate rejects requests whose principal may not use a capability.
type Gate struct {
	gate services.GateService
	rbac services.RBACService
}

func NewGate(gate services.GateService, rbac services.RBACService) *Gate {
	return &Gate{gate: gate, rbac: rbac}
}

// RequireGrant checks the role only. Billing routes use it so an expired or
// over-limit tenant can still buy a plan.
func (g *Gate) RequireGrant(c capability.Capability) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ec echo.Context) error {
			ctx := ec.Request().Context()
			p, ok := common.GetPrincipalFromContext(ctx)
			if !ok {
				return common.SendUnauthorizedError(ec)
			}
			allowed, err := g.rbac.Allows(ctx, p, c)
			if err != nil && !errors.Is(err, models.ErrNotFound) {
				return common.SendServerError(ec, "failed to check access")
			}
			if !allowed {
				return common.SendError(ec, http.StatusForbidden, "RBAC_DENIED", "access denied: rbac_denied", map[string]string{
					"capability": c.String(),
				})
			}
			return next(ec)
		}
	}
}

func (g *Gate) Require(c capability.Capability) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ec echo.Context) error {
			ctx := ec.Request().Context()
			p, ok := common.GetPrincipalFromContext(ctx)
			if !ok {
				return common.SendUnauthorizedError(ec)
			}
			decision, err := g.gate.Can(ctx, p, c)
			if err != nil {
				return common.SendServerError(ec, "failed to check access")
			}
			if decision.Allowed {
				return next(ec)
			}
			status, code := DenialStatus(decision.Reason)
			return common.SendError(ec, status, code, "access denied: "+string(decision.Reason), map[string]string{
				"capability":      decision.Capability,
				"effectiveStatus": string(decision.EffectiveStatus),
			})
		}
	}
}

// DenialStatus maps a denial reason to an HTTP status and error code.
func DenialStatus(reason models.DecisionReason) (int, string) {
	switch reason {
	case models.ReasonRbacDenied:
		return http.StatusForbidden, "RBAC_DENIED"
	case models.ReasonLimitReached:
		return http.StatusForbidden, "LIMIT_REACHED"
	case models.ReasonTenantSuspended:
		return http.StatusForbidden, "TENANT_SUSPENDED"
	case models.ReasonUsageUnavailable:
		return http.StatusServiceUnavailable, "USAGE_UNAVAILABLE"
	default:
		return http.StatusForbidden, "PLAN_DENIED"
	}
}
