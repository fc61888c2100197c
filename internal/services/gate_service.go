package services

import (
	"context"
	"errors"
	"time"

	"tenantcrm/internal/capability"
	"tenantcrm/internal/entitlement"
	"tenantcrm/internal/metrics"
	"tenantcrm/internal/models"
	"tenantcrm/internal/repositories"
	"tenantcrm/pkg/logger"

	"github.com/google/uuid"
)

// UsageMeter counts live tenant resources.
type UsageMeter interface {
	GetUsage(ctx context.Context, tenantID uuid.UUID) (models.UsageSnapshot, error)
	GetResourceUsage(ctx context.Context, tenantID uuid.UUID, resources ...models.Resource) (models.UsageSnapshot, error)
}

// GateService combines the role check and the plan check into one decision.
type GateService interface {
	Can(ctx context.Context, p models.Principal, c capability.Capability) (models.AccessDecision, error)
	Entitlement(ctx context.Context, tenantID uuid.UUID) (entitlement.Result, error)
}

type gateService struct {
	rbac    RBACService
	tenants repositories.TenantRepository
	subs    repositories.SubscriptionRepository
	meter   UsageMeter
	metrics *metrics.Metrics
	log     *logger.Logger
	now     func() time.Time
}

func NewGateService(
	rbac RBACService,
	tenants repositories.TenantRepository,
	subs repositories.SubscriptionRepository,
	meter UsageMeter,
	mx *metrics.Metrics,
	log *logger.Logger,
	clock func() time.Time,
) GateService {
	if clock == nil {
		clock = time.Now
	}
	return &gateService{
		rbac:    rbac,
		tenants: tenants,
		subs:    subs,
		meter:   meter,
		metrics: mx,
		log:     log.Component("gate"),
		now:     clock,
	}
}

// Can checks the role first; a plan is only consulted for a role that holds
// the capability. Usage is counted only for capabilities that consume a
// metered resource.
func (s *gateService) Can(ctx context.Context, p models.Principal, c capability.Capability) (models.AccessDecision, error) {
	decision := models.AccessDecision{Capability: c.String()}
	if c.IsZero() {
		decision.Reason = models.ReasonPlanDenied
		return s.finish(c, decision), nil
	}

	allowed, err := s.rbac.Allows(ctx, p, c)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return models.AccessDecision{}, err
	}
	if !allowed {
		decision.Reason = models.ReasonRbacDenied
		return s.finish(c, decision), nil
	}

	tenant, sub, err := s.load(ctx, p.TenantID)
	if err != nil {
		return models.AccessDecision{}, err
	}

	var usage *models.UsageSnapshot
	if res, ok := entitlement.ConsumedResource(c); ok {
		snap, err := s.meter.GetResourceUsage(ctx, p.TenantID, res)
		if err != nil {
			return models.AccessDecision{}, err
		}
		usage = &snap
	}

	result := entitlement.Evaluate(entitlement.Input{Tenant: tenant, Subscription: sub, Usage: usage, Now: s.now()})
	decision.EffectiveStatus = result.EffectiveStatus
	decision.Reason = result.PlanAllows(c)
	return s.finish(c, decision), nil
}

func (s *gateService) finish(c capability.Capability, d models.AccessDecision) models.AccessDecision {
	d.Allowed = d.Reason == models.ReasonAllowed
	feature := "invalid"
	if !c.IsZero() {
		feature = c.Feature().Key()
	}
	s.metrics.GateDecision(feature, string(d.Reason))
	if !d.Allowed {
		s.log.Debug().Str("capability", d.Capability).Str("reason", string(d.Reason)).Msg("access denied")
	}
	return d
}

func (s *gateService) Entitlement(ctx context.Context, tenantID uuid.UUID) (entitlement.Result, error) {
	tenant, sub, err := s.load(ctx, tenantID)
	if err != nil {
		return entitlement.Result{}, err
	}
	snap, err := s.meter.GetUsage(ctx, tenantID)
	if err != nil {
		return entitlement.Result{}, err
	}
	return entitlement.Evaluate(entitlement.Input{Tenant: tenant, Subscription: sub, Usage: &snap, Now: s.now()}), nil
}

// load returns the tenant and its subscription. A missing subscription is
// not an error; it evaluates as expired.
func (s *gateService) load(ctx context.Context, tenantID uuid.UUID) (*models.Tenant, *models.Subscription, error) {
	tenant, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return nil, nil, err
	}
	sub, err := s.subs.GetByTenant(ctx, tenantID)
	if errors.Is(err, models.ErrNotFound) {
		return tenant, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return tenant, sub, nil
}
