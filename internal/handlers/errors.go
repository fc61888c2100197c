package handlers

import (
	"errors"
	"net/http"

	"tenantcrm/internal/common"
	"tenantcrm/internal/models"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// respondError maps domain errors onto HTTP responses.
func respondError(c echo.Context, err error) error {
	var te *models.TransitionError
	switch {
	case errors.As(err, &te):
		return common.SendError(c, http.StatusConflict, "INVALID_TRANSITION", err.Error(), map[string]string{
			"event":         te.Event,
			"currentStatus": te.From,
		})
	case errors.Is(err, models.ErrNotFound):
		return common.SendError(c, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, models.ErrInvalidInput):
		return common.SendError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
	case errors.Is(err, models.ErrDuplicate):
		return common.SendError(c, http.StatusConflict, "DUPLICATE", err.Error(), nil)
	case errors.Is(err, models.ErrPlanInUse):
		return common.SendError(c, http.StatusConflict, "PLAN_IN_USE", err.Error(), nil)
	case errors.Is(err, models.ErrConflict):
		return common.SendError(c, http.StatusConflict, "CONFLICT", err.Error(), nil)
	case errors.Is(err, models.ErrPaymentNotConfirmed):
		return common.SendError(c, http.StatusPaymentRequired, "PAYMENT_NOT_CONFIRMED", err.Error(), nil)
	case errors.Is(err, models.ErrRbacDenied):
		return common.SendError(c, http.StatusForbidden, "RBAC_DENIED", err.Error(), nil)
	case errors.Is(err, models.ErrPlanDenied):
		return common.SendError(c, http.StatusForbidden, "PLAN_DENIED", err.Error(), nil)
	case errors.Is(err, models.ErrUsageUnavailable):
		return common.SendError(c, http.StatusServiceUnavailable, "USAGE_UNAVAILABLE", err.Error(), nil)
	default:
		c.Logger().Error(err)
		return common.SendServerError(c, "internal error")
	}
}

func tenantFromContext(c echo.Context) (models.Principal, bool) {
	p, ok := common.GetPrincipalFromContext(c.Request().Context())
	if !ok || p.TenantID == uuid.Nil {
		return models.Principal{}, false
	}
	return p, true
}
