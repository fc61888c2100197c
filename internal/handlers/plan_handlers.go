package handlers

import (
	"net/http"

	"tenantcrm/internal/common"
	"tenantcrm/internal/models"
	"tenantcrm/internal/services"

	"github.com/labstack/echo/v4"
)

type PlanHandlers struct {
	plans services.PlanService
}

func NewPlanHandlers(plans services.PlanService) *PlanHandlers {
	return &PlanHandlers{plans: plans}
}

// ListPlans handles GET /plans
func (h *PlanHandlers) ListPlans(c echo.Context) error {
	return c.JSON(http.StatusOK, h.plans.List())
}

// GetPlan handles GET /plans/:id
func (h *PlanHandlers) GetPlan(c echo.Context) error {
	p, err := h.plans.Get(c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// ComparePlans handles GET /plans/compare?from=&to=
func (h *PlanHandlers) ComparePlans(c echo.Context) error {
	from, to := c.QueryParam("from"), c.QueryParam("to")
	if from == "" || to == "" {
		return common.SendValidationError(c, "from,to", "both plans are required")
	}
	cmp, err := h.plans.Compare(from, to)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"comparison": cmp,
		"isUpgrade":  cmp.IsUpgrade(),
	})
}

// PutPlan handles PUT /admin/plans/:id
func (h *PlanHandlers) PutPlan(c echo.Context) error {
	var p models.Plan
	if err := c.Bind(&p); err != nil {
		return common.SendValidationError(c, "body", "invalid request format")
	}
	p.ID = c.Param("id")
	saved, err := h.plans.Put(c.Request().Context(), p)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, saved)
}

// DeletePlan handles DELETE /admin/plans/:id
func (h *PlanHandlers) DeletePlan(c echo.Context) error {
	if err := h.plans.Remove(c.Request().Context(), c.Param("id")); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
