package handlers

import (
	"net/http"

	"tenantcrm/internal/common"
	"tenantcrm/internal/models"
	"tenantcrm/internal/services"

	"github.com/labstack/echo/v4"
)

// SubscriptionHandlers serves a tenant's own subscription.
type SubscriptionHandlers struct {
	subs services.SubscriptionService
	gate services.GateService
}

func NewSubscriptionHandlers(subs services.SubscriptionService, gate services.GateService) *SubscriptionHandlers {
	return &SubscriptionHandlers{subs: subs, gate: gate}
}

// GetSubscription handles GET /subscription
func (h *SubscriptionHandlers) GetSubscription(c echo.Context) error {
	p, ok := tenantFromContext(c)
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	sub, err := h.subs.GetCurrent(c.Request().Context(), p.TenantID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, sub)
}

// GetEntitlement handles GET /subscription/entitlement
func (h *SubscriptionHandlers) GetEntitlement(c echo.Context) error {
	p, ok := tenantFromContext(c)
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	res, err := h.gate.Entitlement(c.Request().Context(), p.TenantID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// checkoutRequest is what a tenant may say about an upgrade. The payment
// outcome is never taken from the tenant.
type checkoutRequest struct {
	PlanID       string              `json:"planId"`
	BillingCycle models.BillingCycle `json:"billingCycle"`
	AutoRenew    *bool               `json:"autoRenew,omitempty"`
}

// Upgrade handles POST /subscription/upgrade. It opens a pending charge and
// answers 402 until the outcome arrives from the gateway webhook or an operator.
func (h *SubscriptionHandlers) Upgrade(c echo.Context) error {
	p, ok := tenantFromContext(c)
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	var req checkoutRequest
	if err := c.Bind(&req); err != nil {
		return common.SendValidationError(c, "body", "invalid request format")
	}
	if req.PlanID == "" {
		return common.SendValidationError(c, "planId", "plan id is required")
	}

	sub, err := h.subs.Upgrade(c.Request().Context(), services.UpgradeRequest{
		TenantID:     p.TenantID,
		PlanID:       req.PlanID,
		BillingCycle: req.BillingCycle,
		AutoRenew:    req.AutoRenew,
		Payment:      models.PaymentOutcome{Status: models.PaymentPending},
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, sub)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// Cancel handles POST /subscription/cancel
func (h *SubscriptionHandlers) Cancel(c echo.Context) error {
	p, ok := tenantFromContext(c)
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	var req cancelRequest
	if err := c.Bind(&req); err != nil {
		return common.SendValidationError(c, "body", "invalid request format")
	}
	sub, err := h.subs.Cancel(c.Request().Context(), p.TenantID, req.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, sub)
}

type autoRenewRequest struct {
	AutoRenew *bool `json:"autoRenew"`
}

// SetAutoRenew handles PUT /subscription/auto-renew
func (h *SubscriptionHandlers) SetAutoRenew(c echo.Context) error {
	p, ok := tenantFromContext(c)
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	var req autoRenewRequest
	if err := c.Bind(&req); err != nil || req.AutoRenew == nil {
		return common.SendValidationError(c, "autoRenew", "autoRenew must be true or false")
	}
	sub, err := h.subs.SetAutoRenew(c.Request().Context(), p.TenantID, *req.AutoRenew)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, sub)
}

// ListPayments handles GET /subscription/payments
func (h *SubscriptionHandlers) ListPayments(c echo.Context) error {
	p, ok := tenantFromContext(c)
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	limit, offset, err := common.Pagination(c)
	if err != nil {
		return common.SendValidationError(c, "pagination", err.Error())
	}
	payments, err := h.subs.ListPayments(c.Request().Context(), p.TenantID, limit, offset)
	if err != nil {
		return respondError(c, err)
	}
	if payments == nil {
		payments = []*models.Payment{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"payments": payments,
		"limit":    limit,
		"offset":   offset,
	})
}
