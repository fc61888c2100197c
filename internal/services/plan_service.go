package services

import (
	"context"
	"fmt"

	"tenantcrm/internal/models"
	"tenantcrm/internal/plans"
	"tenantcrm/internal/repositories"
	"tenantcrm/pkg/logger"
)

// PlanService keeps the in-memory catalog and the plans table in step.
type PlanService interface {
	Load(ctx context.Context) error
	List() []models.Plan
	Get(id string) (models.Plan, error)
	Compare(fromID, toID string) (plans.Comparison, error)
	Put(ctx context.Context, p models.Plan) (models.Plan, error)
	Remove(ctx context.Context, id string) error
}

type planService struct {
	catalog *plans.Catalog
	repo    repositories.PlanRepository
	subs    repositories.SubscriptionRepository
	log     *logger.Logger
}

func NewPlanService(catalog *plans.Catalog, repo repositories.PlanRepository, subs repositories.SubscriptionRepository, log *logger.Logger) PlanService {
	return &planService{catalog: catalog, repo: repo, subs: subs, log: log.Component("plans")}
}

// Load replaces the catalog with the stored plans, seeding the defaults into
// an empty table.
func (s *planService) Load(ctx context.Context) error {
	stored, err := s.repo.List(ctx)
	if err != nil {
		return err
	}
	if len(stored) == 0 {
		for _, p := range plans.DefaultPlans() {
			if err := s.repo.Upsert(ctx, p); err != nil {
				return fmt.Errorf("failed to seed plan %s: %w", p.ID, err)
			}
		}
		s.log.Info().Int("plans", len(plans.DefaultPlans())).Msg("seeded default plans")
		return nil
	}
	keep := make(map[string]bool, len(stored))
	for _, p := range stored {
		keep[p.ID] = true
	}
	for _, p := range s.catalog.List() {
		if !keep[p.ID] {
			if err := s.catalog.Remove(ctx, p.ID, nil); err != nil {
				return err
			}
		}
	}
	for _, p := range stored {
		if err := s.catalog.Put(p); err != nil {
			return fmt.Errorf("stored plan %s: %w", p.ID, err)
		}
	}
	return nil
}

func (s *planService) List() []models.Plan {
	return s.catalog.List()
}

func (s *planService) Get(id string) (models.Plan, error) {
	return s.catalog.Resolve(id)
}

func (s *planService) Compare(fromID, toID string) (plans.Comparison, error) {
	from, err := s.catalog.Resolve(fromID)
	if err != nil {
		return plans.Comparison{}, err
	}
	to, err := s.catalog.Resolve(toID)
	if err != nil {
		return plans.Comparison{}, err
	}
	return plans.ComparePlans(from, to), nil
}

// Put validates p against the catalog before persisting it.
func (s *planService) Put(ctx context.Context, p models.Plan) (models.Plan, error) {
	if err := plans.Validate(p); err != nil {
		return models.Plan{}, err
	}
	if owner, err := s.catalog.GetByName(p.Name); err == nil && owner.ID != p.ID {
		return models.Plan{}, fmt.Errorf("plan name %q: %w", p.Name, models.ErrDuplicate)
	}
	if err := s.repo.Upsert(ctx, p); err != nil {
		return models.Plan{}, err
	}
	if err := s.catalog.Put(p); err != nil {
		return models.Plan{}, err
	}
	s.log.Info().Str("plan_id", p.ID).Msg("plan saved")
	return s.catalog.Get(p.ID)
}

func (s *planService) Remove(ctx context.Context, id string) error {
	inUse := func(ctx context.Context, planID string) (bool, error) {
		n, err := s.subs.CountLiveByPlan(ctx, planID)
		return n > 0, err
	}
	if err := s.catalog.Remove(ctx, id, inUse); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info().Str("plan_id", id).Msg("plan removed")
	return nil
}
