package services

import (
	"context"
	"fmt"
	"strings"

	"tenantcrm/internal/caching"
	"tenantcrm/internal/capability"
	"tenantcrm/internal/models"
	"tenantcrm/internal/repositories"
	"tenantcrm/pkg/logger"

	"github.com/google/uuid"
)

// Default roles seeded for every new tenant.
const (
	RoleAdmin    = "admin"
	RoleManager  = "manager"
	RoleSalesRep = "sales_rep"
	RoleViewer   = "viewer"
)

type RBACService interface {
	Grants(ctx context.Context, tenantID, roleID uuid.UUID) (capability.GrantSet, error)
	Allows(ctx context.Context, p models.Principal, c capability.Capability) (bool, error)
	CreateRole(ctx context.Context, req CreateRoleRequest) (*models.Role, error)
	SetRoleGrants(ctx context.Context, tenantID, roleID uuid.UUID, caps []capability.Capability) error
	ListRoles(ctx context.Context, tenantID uuid.UUID) ([]*models.Role, error)
	RoleGrants(ctx context.Context, tenantID, roleID uuid.UUID) ([]capability.Capability, error)
	SeedDefaultRoles(ctx context.Context, tenantID uuid.UUID) error
}

type CreateRoleRequest struct {
	TenantID     uuid.UUID               `json:"-"`
	Name         string                  `json:"name"`
	Description  string                  `json:"description"`
	Capabilities []capability.Capability `json:"-"`
}

type rbacService struct {
	roles repositories.RoleRepository
	cache caching.GrantCache
	log   *logger.Logger
}

func NewRBACService(roles repositories.RoleRepository, cache caching.GrantCache, log *logger.Logger) RBACService {
	if cache == nil {
		cache = caching.NoopGrantCache{}
	}
	return &rbacService{roles: roles, cache: cache, log: log.Component("rbac")}
}

// Grants loads a role's grant set, scoped to tenantID. A role of another
// tenant reads as not found.
func (s *rbacService) Grants(ctx context.Context, tenantID, roleID uuid.UUID) (capability.GrantSet, error) {
	rows, hit, err := s.cache.Get(ctx, tenantID, roleID)
	if err != nil {
		s.log.Warn().Err(err).Str("role_id", roleID.String()).Msg("grant cache read failed")
	}
	if !hit {
		if _, err := s.roles.GetByID(ctx, tenantID, roleID); err != nil {
			return capability.GrantSet{}, err
		}
		rows, err = s.roles.ListGrants(ctx, roleID)
		if err != nil {
			return capability.GrantSet{}, err
		}
		if err := s.cache.Set(ctx, tenantID, roleID, rows); err != nil {
			s.log.Warn().Err(err).Str("role_id", roleID.String()).Msg("grant cache write failed")
		}
	}

	set, skipped := capability.GrantSetFromRows(rows)
	for _, row := range skipped {
		s.log.Warn().
			Str("role_id", roleID.String()).
			Str("feature", row.FeatureKey).
			Str("action", row.Action).
			Msg("ignoring unknown grant")
	}
	return set, nil
}

func (s *rbacService) Allows(ctx context.Context, p models.Principal, c capability.Capability) (bool, error) {
	if p.PlatformAdmin {
		return true, nil
	}
	if !p.Valid() {
		return false, nil
	}
	set, err := s.Grants(ctx, p.TenantID, p.RoleID)
	if err != nil {
		return false, err
	}
	return set.Allows(c), nil
}

func (s *rbacService) CreateRole(ctx context.Context, req CreateRoleRequest) (*models.Role, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: role name is required", models.ErrInvalidInput)
	}
	role := &models.Role{
		ID:          uuid.New(),
		TenantID:    req.TenantID,
		Name:        name,
		Description: req.Description,
	}
	if err := s.roles.Create(ctx, role); err != nil {
		return nil, err
	}
	if len(req.Capabilities) > 0 {
		if err := s.SetRoleGrants(ctx, req.TenantID, role.ID, req.Capabilities); err != nil {
			return nil, err
		}
	}
	return role, nil
}

func (s *rbacService) SetRoleGrants(ctx context.Context, tenantID, roleID uuid.UUID, caps []capability.Capability) error {
	if _, err := s.roles.GetByID(ctx, tenantID, roleID); err != nil {
		return err
	}
	for _, c := range caps {
		if c.IsZero() {
			return fmt.Errorf("%w: empty capability", models.ErrInvalidInput)
		}
	}
	rows := capability.NewGrantSet(caps...).Rows(roleID)
	if err := s.roles.ReplaceGrants(ctx, roleID, rows); err != nil {
		return err
	}
	if err := s.cache.Invalidate(ctx, tenantID, roleID); err != nil {
		s.log.Warn().Err(err).Str("role_id", roleID.String()).Msg("grant cache invalidation failed")
	}
	return nil
}

func (s *rbacService) ListRoles(ctx context.Context, tenantID uuid.UUID) ([]*models.Role, error) {
	return s.roles.ListByTenant(ctx, tenantID)
}

func (s *rbacService) RoleGrants(ctx context.Context, tenantID, roleID uuid.UUID) ([]capability.Capability, error) {
	set, err := s.Grants(ctx, tenantID, roleID)
	if err != nil {
		return nil, err
	}
	return set.Capabilities(), nil
}

func (s *rbacService) SeedDefaultRoles(ctx context.Context, tenantID uuid.UUID) error {
	for _, def := range defaultRoles() {
		role := &models.Role{
			ID:          uuid.New(),
			TenantID:    tenantID,
			Name:        def.name,
			Description: def.description,
			IsSystem:    true,
		}
		if err := s.roles.Create(ctx, role); err != nil {
			return fmt.Errorf("failed to seed role %s: %w", def.name, err)
		}
		if err := s.roles.ReplaceGrants(ctx, role.ID, capability.NewGrantSet(def.caps...).Rows(role.ID)); err != nil {
			return fmt.Errorf("failed to seed grants for %s: %w", def.name, err)
		}
	}
	return nil
}

type roleDef struct {
	name        string
	description string
	caps        []capability.Capability
}

func defaultRoles() []roleDef {
	var manageAll, readAll []capability.Capability
	for _, f := range capability.Features() {
		manageAll = append(manageAll, mustParse(f.Key(), capability.Manage))
		readAll = append(readAll, mustParse(f.Key(), capability.Read))
	}

	manager := []capability.Capability{
		capability.LeadManage,
		capability.AccountManage,
		capability.ContactManage,
		capability.ActivityManage,
		capability.ReportRead,
		capability.ReportExport,
		capability.UserRead,
		capability.GroupRead,
	}
	salesRep := []capability.Capability{
		capability.LeadCreate,
		capability.LeadRead,
		capability.LeadUpdate,
		capability.LeadConvert,
		capability.ContactCreate,
		capability.ContactRead,
		capability.ContactUpdate,
		capability.AccountRead,
		capability.ActivityCreate,
		capability.ActivityRead,
		capability.ActivityUpdate,
	}

	return []roleDef{
		{RoleAdmin, "Full access to every CRM area", manageAll},
		{RoleManager, "Manages sales data and reads reports", manager},
		{RoleSalesRep, "Works leads, contacts and activities", salesRep},
		{RoleViewer, "Read-only access", readAll},
	}
}

func mustParse(feature string, action capability.Action) capability.Capability {
	c, err := capability.Parse(feature, string(action))
	if err != nil {
		panic(err)
	}
	return c
}
