package handlers

import (
	"net/http"
	"time"

	"tenantcrm/internal/common"
	"tenantcrm/internal/models"
	"tenantcrm/internal/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// AdminHandlers serves platform operator routes.
type AdminHandlers struct {
	tenants   services.TenantService
	subs      services.SubscriptionService
	resellers services.ResellerService
	now       func() time.Time
}

func NewAdminHandlers(tenants services.TenantService, subs services.SubscriptionService, resellers services.ResellerService, clock func() time.Time) *AdminHandlers {
	if clock == nil {
		clock = time.Now
	}
	return &AdminHandlers{tenants: tenants, subs: subs, resellers: resellers, now: clock}
}

func pathID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := common.ValidateUUID(c.Param(name), name)
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return id, nil
}

// CreateTenant handles POST /admin/tenants
func (h *AdminHandlers) CreateTenant(c echo.Context) error {
	var req services.CreateTenantRequest
	if err := c.Bind(&req); err != nil {
		return common.SendValidationError(c, "body", "invalid request format")
	}
	acct, err := h.tenants.Create(c.Request().Context(), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, acct)
}

// ListTenants handles GET /admin/tenants
func (h *AdminHandlers) ListTenants(c echo.Context) error {
	limit, offset, err := common.Pagination(c)
	if err != nil {
		return common.SendValidationError(c, "pagination", err.Error())
	}
	tenants, err := h.tenants.List(c.Request().Context(), limit, offset)
	if err != nil {
		return respondError(c, err)
	}
	if tenants == nil {
		tenants = []*models.Tenant{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"tenants": tenants, "limit": limit, "offset": offset})
}

// GetTenant handles GET /admin/tenants/:id
func (h *AdminHandlers) GetTenant(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	tenant, err := h.tenants.GetByID(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	sub, err := h.subs.GetCurrent(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, services.TenantAccount{Tenant: tenant, Subscription: sub})
}

// UpdateTenant handles PATCH /admin/tenants/:id
func (h *AdminHandlers) UpdateTenant(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req services.UpdateTenantRequest
	if err := c.Bind(&req); err != nil {
		return common.SendValidationError(c, "body", "invalid request format")
	}
	tenant, err := h.tenants.Update(c.Request().Context(), id, req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, tenant)
}

// ListSubscriptions handles GET /admin/subscriptions
func (h *AdminHandlers) ListSubscriptions(c echo.Context) error {
	limit, offset, err := common.Pagination(c)
	if err != nil {
		return common.SendValidationError(c, "pagination", err.Error())
	}
	filter := models.SubscriptionFilter{
		Status:       models.SubscriptionStatus(c.QueryParam("status")),
		PlanID:       c.QueryParam("planId"),
		BillingCycle: models.BillingCycle(c.QueryParam("billingCycle")),
		Limit:        limit,
		Offset:       offset,
	}
	if v := c.QueryParam("resellerId"); v != "" {
		rid, err := common.ValidateUUID(v, "resellerId")
		if err != nil {
			return common.SendValidationError(c, "resellerId", err.Error())
		}
		filter.ResellerID = &rid
	}
	subs, err := h.subs.List(c.Request().Context(), filter)
	if err != nil {
		return respondError(c, err)
	}
	if subs == nil {
		subs = []*models.Subscription{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"subscriptions": subs, "limit": limit, "offset": offset})
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

// SuspendSubscription handles POST /admin/tenants/:id/suspend
func (h *AdminHandlers) SuspendSubscription(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req reasonRequest
	if err := c.Bind(&req); err != nil {
		return common.SendValidationError(c, "body", "invalid request format")
	}
	sub, err := h.subs.Suspend(c.Request().Context(), id, req.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, sub)
}

// ActivateSubscription handles POST /admin/tenants/:id/activate
func (h *AdminHandlers) ActivateSubscription(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	sub, err := h.subs.Activate(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, sub)
}

// ReconcileSubscription handles POST /admin/tenants/:id/reconcile
func (h *AdminHandlers) ReconcileSubscription(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	sub, err := h.subs.Reconcile(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, sub)
}

// UpgradeTenant handles POST /admin/tenants/:id/upgrade with an outcome the
// operator already confirmed with the gateway.
func (h *AdminHandlers) UpgradeTenant(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req services.UpgradeRequest
	if err := c.Bind(&req); err != nil {
		return common.SendValidationError(c, "body", "invalid request format")
	}
	if req.PlanID == "" {
		return common.SendValidationError(c, "planId", "plan id is required")
	}
	req.TenantID = id
	sub, err := h.subs.Upgrade(c.Request().Context(), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, sub)
}

// RecordPayment handles POST /admin/tenants/:id/payments, a renewal outcome
// entered by an operator.
func (h *AdminHandlers) RecordPayment(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var outcome models.PaymentOutcome
	if err := c.Bind(&outcome); err != nil {
		return common.SendValidationError(c, "body", "invalid request format")
	}
	sub, err := h.subs.RecordPayment(c.Request().Context(), id, outcome)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, sub)
}

// CreateReseller handles POST /admin/resellers
func (h *AdminHandlers) CreateReseller(c echo.Context) error {
	var req services.CreateResellerRequest
	if err := c.Bind(&req); err != nil {
		return common.SendValidationError(c, "body", "invalid request format")
	}
	r, err := h.resellers.Create(c.Request().Context(), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, r)
}

// ListResellers handles GET /admin/resellers
func (h *AdminHandlers) ListResellers(c echo.Context) error {
	limit, offset, err := common.Pagination(c)
	if err != nil {
		return common.SendValidationError(c, "pagination", err.Error())
	}
	list, err := h.resellers.List(c.Request().Context(), models.ResellerStatus(c.QueryParam("status")), limit, offset)
	if err != nil {
		return respondError(c, err)
	}
	if list == nil {
		list = []*models.Reseller{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"resellers": list, "limit": limit, "offset": offset})
}

// GetReseller handles GET /admin/resellers/:id
func (h *AdminHandlers) GetReseller(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	r, err := h.resellers.Get(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, r)
}

// ResellerStatus handles POST /admin/resellers/:id/{approve,reject,suspend}
func (h *AdminHandlers) ResellerStatus(to models.ResellerStatus) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := pathID(c, "id")
		if err != nil {
			return err
		}
		ctx := c.Request().Context()
		var r *models.Reseller
		switch to {
		case models.ResellerApproved:
			r, err = h.resellers.Approve(ctx, id)
		case models.ResellerRejected:
			r, err = h.resellers.Reject(ctx, id)
		default:
			r, err = h.resellers.Suspend(ctx, id)
		}
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, r)
	}
}

type commissionRequest struct {
	CommissionRate decimal.Decimal `json:"commissionRate"`
}

// UpdateCommission handles PUT /admin/resellers/:id/commission
func (h *AdminHandlers) UpdateCommission(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req commissionRequest
	if err := c.Bind(&req); err != nil {
		return common.SendValidationError(c, "commissionRate", "invalid commission rate")
	}
	r, err := h.resellers.UpdateCommissionRate(c.Request().Context(), id, req.CommissionRate)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, r)
}

// AttachTenant handles POST /admin/resellers/:id/tenants/:tenantId
func (h *AdminHandlers) AttachTenant(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	tenantID, err := pathID(c, "tenantId")
	if err != nil {
		return err
	}
	if err := h.resellers.AttachTenant(c.Request().Context(), id, tenantID); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ResellerStats handles GET /admin/resellers/:id/stats?asOf=RFC3339
func (h *AdminHandlers) ResellerStats(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	asOf := h.now()
	if v := c.QueryParam("asOf"); v != "" {
		if asOf, err = time.Parse(time.RFC3339, v); err != nil {
			return common.SendValidationError(c, "asOf", "asOf must be an RFC3339 timestamp")
		}
	}
	stats, err := h.resellers.GetResellerStats(c.Request().Context(), id, asOf)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}
