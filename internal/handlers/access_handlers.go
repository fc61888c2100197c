package handlers

import (
	"net/http"

	"tenantcrm/internal/capability"
	"tenantcrm/internal/common"
	"tenantcrm/internal/services"

	"github.com/labstack/echo/v4"
)

type AccessHandlers struct {
	gate services.GateService
}

func NewAccessHandlers(gate services.GateService) *AccessHandlers {
	return &AccessHandlers{gate: gate}
}

type accessCheckRequest struct {
	Feature string `json:"feature"`
	Action  string `json:"action"`
}

// Check handles POST /access/check. A denial is a normal 200 answer.
func (h *AccessHandlers) Check(c echo.Context) error {
	p, ok := common.GetPrincipalFromContext(c.Request().Context())
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	var req accessCheckRequest
	if err := c.Bind(&req); err != nil {
		return common.SendValidationError(c, "body", "invalid request format")
	}
	want, err := capability.Parse(req.Feature, req.Action)
	if err != nil {
		return respondError(c, err)
	}
	decision, err := h.gate.Can(c.Request().Context(), p, want)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, decision)
}

type capabilityView struct {
	Feature string              `json:"feature"`
	Actions []capability.Action `json:"actions"`
}

// ListCapabilities handles GET /capabilities
func (h *AccessHandlers) ListCapabilities(c echo.Context) error {
	features := capability.Features()
	out := make([]capabilityView, 0, len(features))
	for _, f := range features {
		out = append(out, capabilityView{Feature: f.Key(), Actions: f.Actions()})
	}
	return c.JSON(http.StatusOK, out)
}
