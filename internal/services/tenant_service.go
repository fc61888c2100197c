package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tenantcrm/internal/models"
	"tenantcrm/internal/repositories"
	"tenantcrm/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TenantService interface {
	Create(ctx context.Context, req CreateTenantRequest) (*TenantAccount, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	GetByOrganizationID(ctx context.Context, organizationID string) (*models.Tenant, error)
	Update(ctx context.Context, id uuid.UUID, req UpdateTenantRequest) (*models.Tenant, error)
	List(ctx context.Context, limit, offset int) ([]*models.Tenant, error)
}

type CreateTenantRequest struct {
	OrganizationID   string     `json:"organizationId"`
	OrganizationName string     `json:"organizationName"`
	ContactEmail     string     `json:"contactEmail"`
	ContactPhone     string     `json:"contactPhone"`
	ResellerID       *uuid.UUID `json:"resellerId,omitempty"`
}

type UpdateTenantRequest struct {
	OrganizationName *string `json:"organizationName,omitempty"`
	ContactEmail     *string `json:"contactEmail,omitempty"`
	ContactPhone     *string `json:"contactPhone,omitempty"`
}

// TenantAccount is a tenant together with its only subscription.
type TenantAccount struct {
	Tenant       *models.Tenant       `json:"tenant"`
	Subscription *models.Subscription `json:"subscription"`
}

type tenantService struct {
	tenants   repositories.TenantRepository
	resellers repositories.ResellerRepository
	subs      SubscriptionService
	rbac      RBACService
	log       *logger.Logger
	now       func() time.Time
}

func NewTenantService(
	tenants repositories.TenantRepository,
	resellers repositories.ResellerRepository,
	subs SubscriptionService,
	rbac RBACService,
	log *logger.Logger,
	clock func() time.Time,
) TenantService {
	if clock == nil {
		clock = time.Now
	}
	return &tenantService{
		tenants:   tenants,
		resellers: resellers,
		subs:      subs,
		rbac:      rbac,
		log:       log.Component("tenants"),
		now:       clock,
	}
}

// Create provisions a tenant with a trial subscription. Tenant and trial are
// written together; the default roles are seeded afterwards.
func (s *tenantService) Create(ctx context.Context, req CreateTenantRequest) (*TenantAccount, error) {
	orgID := strings.TrimSpace(req.OrganizationID)
	if orgID == "" || strings.ContainsAny(orgID, " \t\n") {
		return nil, fmt.Errorf("%w: organization id must be a non-empty token", models.ErrInvalidInput)
	}
	name := strings.TrimSpace(req.OrganizationName)
	if name == "" {
		return nil, fmt.Errorf("%w: organization name is required", models.ErrInvalidInput)
	}

	tenant := &models.Tenant{
		ID:               uuid.New(),
		OrganizationID:   orgID,
		OrganizationName: name,
		ContactEmail:     strings.TrimSpace(req.ContactEmail),
		ContactPhone:     strings.TrimSpace(req.ContactPhone),
		CommissionRate:   decimal.Zero,
	}

	if req.ResellerID != nil {
		reseller, err := s.resellers.GetByID(ctx, *req.ResellerID)
		if err != nil {
			return nil, err
		}
		if reseller.Status != models.ResellerApproved {
			return nil, fmt.Errorf("%w: reseller %s is %s", models.ErrInvalidInput, reseller.ID, reseller.Status)
		}
		id := reseller.ID
		tenant.ResellerID = &id
		tenant.CommissionRate = reseller.CommissionRate
	}

	sub, err := s.subs.NewTrial(tenant.ID, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.tenants.CreateWithSubscription(ctx, tenant, sub); err != nil {
		return nil, err
	}

	if err := s.rbac.SeedDefaultRoles(ctx, tenant.ID); err != nil {
		s.log.Error().Err(err).Str("tenant_id", tenant.ID.String()).Msg("failed to seed default roles")
	}

	s.log.Info().
		Str("tenant_id", tenant.ID.String()).
		Str("organization_id", orgID).
		Str("plan", sub.PlanID).
		Time("trial_end", *sub.TrialEndDate).
		Msg("tenant created")
	return &TenantAccount{Tenant: tenant, Subscription: sub}, nil
}

func (s *tenantService) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	return s.tenants.GetByID(ctx, id)
}

func (s *tenantService) GetByOrganizationID(ctx context.Context, organizationID string) (*models.Tenant, error) {
	return s.tenants.GetByOrganizationID(ctx, strings.TrimSpace(organizationID))
}

func (s *tenantService) Update(ctx context.Context, id uuid.UUID, req UpdateTenantRequest) (*models.Tenant, error) {
	tenant, err := s.tenants.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.OrganizationName != nil {
		name := strings.TrimSpace(*req.OrganizationName)
		if name == "" {
			return nil, fmt.Errorf("%w: organization name is required", models.ErrInvalidInput)
		}
		tenant.OrganizationName = name
	}
	if req.ContactEmail != nil {
		tenant.ContactEmail = strings.TrimSpace(*req.ContactEmail)
	}
	if req.ContactPhone != nil {
		tenant.ContactPhone = strings.TrimSpace(*req.ContactPhone)
	}
	if err := s.tenants.Update(ctx, tenant); err != nil {
		return nil, err
	}
	return tenant, nil
}

func (s *tenantService) List(ctx context.Context, limit, offset int) ([]*models.Tenant, error) {
	return s.tenants.List(ctx, limit, offset)
}
