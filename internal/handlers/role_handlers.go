package handlers

import (
	"net/http"

	"tenantcrm/internal/capability"
	"tenantcrm/internal/common"
	"tenantcrm/internal/services"

	"github.com/labstack/echo/v4"
)

type RoleHandlers struct {
	rbac services.RBACService
}

func NewRoleHandlers(rbac services.RBACService) *RoleHandlers {
	return &RoleHandlers{rbac: rbac}
}

type grantView struct {
	Feature string `json:"feature"`
	Action  string `json:"action"`
}

type roleRequest struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Grants      []grantView `json:"grants"`
}

func parseGrants(in []grantView) ([]capability.Capability, error) {
	out := make([]capability.Capability, 0, len(in))
	for _, g := range in {
		c, err := capability.Parse(g.Feature, g.Action)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func toGrantViews(caps []capability.Capability) []grantView {
	out := make([]grantView, 0, len(caps))
	for _, c := range caps {
		out = append(out, grantView{Feature: c.Feature().Key(), Action: string(c.Action())})
	}
	return out
}

// ListRoles handles GET /roles
func (h *RoleHandlers) ListRoles(c echo.Context) error {
	p, ok := tenantFromContext(c)
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	roles, err := h.rbac.ListRoles(c.Request().Context(), p.TenantID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, roles)
}

// CreateRole handles POST /roles
func (h *RoleHandlers) CreateRole(c echo.Context) error {
	p, ok := tenantFromContext(c)
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	var req roleRequest
	if err := c.Bind(&req); err != nil {
		return common.SendValidationError(c, "body", "invalid request format")
	}
	caps, err := parseGrants(req.Grants)
	if err != nil {
		return respondError(c, err)
	}
	role, err := h.rbac.CreateRole(c.Request().Context(), services.CreateRoleRequest{
		TenantID:     p.TenantID,
		Name:         req.Name,
		Description:  req.Description,
		Capabilities: caps,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, role)
}

// GetRoleGrants handles GET /roles/:id/grants
func (h *RoleHandlers) GetRoleGrants(c echo.Context) error {
	p, ok := tenantFromContext(c)
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	roleID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	caps, err := h.rbac.RoleGrants(c.Request().Context(), p.TenantID, roleID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toGrantViews(caps))
}

// SetRoleGrants handles PUT /roles/:id/grants
func (h *RoleHandlers) SetRoleGrants(c echo.Context) error {
	p, ok := tenantFromContext(c)
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	roleID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req struct {
		Grants []grantView `json:"grants"`
	}
	if err := c.Bind(&req); err != nil {
		return common.SendValidationError(c, "body", "invalid request format")
	}
	caps, err := parseGrants(req.Grants)
	if err != nil {
		return respondError(c, err)
	}
	if err := h.rbac.SetRoleGrants(c.Request().Context(), p.TenantID, roleID, caps); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toGrantViews(caps))
}
