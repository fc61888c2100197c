package services

import (
	"errors"

	"tenantcrm/internal/models"
	"tenantcrm/internal/plans"
	"tenantcrm/pkg/logger"

	"github.com/shopspring/decimal"
)

func (s *ServiceSuite) planService() PlanService {
	return NewPlanService(s.catalog, s.store.Plans(), s.store.Subscriptions(), logger.Nop())
}

func (s *ServiceSuite) TestPlanLoadSeedsEmptyTable() {
	svc := s.planService()
	s.Require().NoError(svc.Load(s.ctx))

	stored, err := s.store.Plans().List(s.ctx)
	s.Require().NoError(err)
	s.Len(stored, len(plans.DefaultPlans()))
	s.Len(svc.List(), len(plans.DefaultPlans()))
}

func (s *ServiceSuite) TestPlanLoadDropsPlansMissingFromTable() {
	pro := plans.DefaultPlans()[2]
	s.Require().NoError(s.store.Plans().Upsert(s.ctx, pro))

	svc := s.planService()
	s.Require().NoError(svc.Load(s.ctx))

	list := svc.List()
	s.Require().Len(list, 1)
	s.Equal(pro.ID, list[0].ID)
	_, err := svc.Get(plans.StarterPlanID)
	s.True(errors.Is(err, models.ErrNotFound))
}

func (s *ServiceSuite) TestPlanPutAndRemove() {
	svc := s.planService()
	s.Require().NoError(svc.Load(s.ctx))

	starter, err := svc.Get(plans.StarterPlanID)
	s.Require().NoError(err)
	growth := models.Plan{
		ID:       "growth",
		Name:     "growth",
		Price:    models.Price{Monthly: decimal.NewFromInt(1999), Yearly: decimal.NewFromInt(19990)},
		Limits:   starter.Limits.Clone(),
		Features: starter.Features.Clone(),
		Tier:     2,
	}
	growth.Limits[models.ResourceUsers] = 10
	growth.Features[models.FeatureAdvancedReports] = true
	saved, err := svc.Put(s.ctx, growth)
	s.Require().NoError(err)
	s.Equal(models.SupportEmail, saved.Support)

	_, err = svc.Put(s.ctx, models.Plan{ID: "other", Name: "growth"})
	s.True(errors.Is(err, models.ErrDuplicate))

	cmp, err := svc.Compare(plans.StarterPlanID, "growth")
	s.Require().NoError(err)
	s.True(cmp.IsUpgrade())
	s.Equal([]models.PlanFeature{models.FeatureAdvancedReports}, cmp.GainedFeatures)
	s.Equal(plans.LimitChange{From: 5, To: 10}, cmp.RaisedLimits[models.ResourceUsers])

	back, err := svc.Compare("growth", plans.StarterPlanID)
	s.Require().NoError(err)
	s.False(back.IsUpgrade())

	s.Require().NoError(svc.Remove(s.ctx, "growth"))
	stored, err := s.store.Plans().List(s.ctx)
	s.Require().NoError(err)
	for _, p := range stored {
		s.NotEqual("growth", p.ID)
	}
}

func (s *ServiceSuite) TestPlanRemoveRefusedWhileInUse() {
	svc := s.planService()
	s.Require().NoError(svc.Load(s.ctx))
	s.newTenant("acme", nil)

	err := svc.Remove(s.ctx, plans.ProfessionalPlanID)
	s.True(errors.Is(err, models.ErrPlanInUse))
	_, err = svc.Get(plans.ProfessionalPlanID)
	s.NoError(err)
}
