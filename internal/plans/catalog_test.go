package plans

import (
	"context"
	"errors"
	"sync"
	"testing"

	"tenantcrm/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type CatalogTestSuite struct {
	suite.Suite
	catalog *Catalog
	ctx     context.Context
}

func (s *CatalogTestSuite) SetupTest() {
	s.catalog = NewDefaultCatalog()
	s.ctx = context.Background()
}

func TestCatalogTestSuite(t *testing.T) {
	suite.Run(t, new(CatalogTestSuite))
}

func (s *CatalogTestSuite) TestDefaultsOrderedByTier() {
	list := s.catalog.List()
	s.Require().Len(list, 4)
	s.Equal([]string{FreePlanID, StarterPlanID, ProfessionalPlanID, EnterprisePlanID},
		[]string{list[0].ID, list[1].ID, list[2].ID, list[3].ID})

	pro := list[2]
	s.True(pro.IsPopular)
	s.True(pro.Price.Monthly.Equal(decimal.NewFromInt(2999)))
	s.True(pro.Price.Yearly.Equal(decimal.NewFromInt(29990)))
	s.Equal(models.Unlimited, list[3].Limits[models.ResourceLeads])
}

func (s *CatalogTestSuite) TestGetReturnsCopy() {
	p, err := s.catalog.Get(ProfessionalPlanID)
	s.Require().NoError(err)
	p.Limits[models.ResourceUsers] = 1
	p.Features[models.FeatureAPIAccess] = true

	again, err := s.catalog.Get(ProfessionalPlanID)
	s.Require().NoError(err)
	s.Equal(int64(25), again.Limits[models.ResourceUsers])
	s.False(again.Features[models.FeatureAPIAccess])
}

func (s *CatalogTestSuite) TestGetByNameCaseInsensitive() {
	p, err := s.catalog.GetByName("Starter")
	s.Require().NoError(err)
	s.Equal(StarterPlanID, p.ID)

	_, err = s.catalog.GetByName("platinum")
	s.True(errors.Is(err, models.ErrNotFound))
}

func (s *CatalogTestSuite) TestPutValidates() {
	bad := []models.Plan{
		{ID: "", Name: "x"},
		{ID: "neg", Name: "neg", Price: models.Price{Monthly: decimal.NewFromInt(-1)}},
		{ID: "lim", Name: "lim", Limits: models.Limits{models.ResourceLeads: -2}},
		{ID: "sup", Name: "sup", Support: "phone"},
	}
	for _, p := range bad {
		err := s.catalog.Put(p)
		s.True(errors.Is(err, models.ErrInvalidInput), p.ID)
	}

	err := s.catalog.Put(models.Plan{ID: "other", Name: "starter"})
	s.True(errors.Is(err, models.ErrDuplicate))
}

func (s *CatalogTestSuite) TestPutRenameFreesOldName() {
	p, _ := s.catalog.Get(StarterPlanID)
	p.Name = "basic"
	s.Require().NoError(s.catalog.Put(p))

	_, err := s.catalog.GetByName("starter")
	s.True(errors.Is(err, models.ErrNotFound))
	got, err := s.catalog.GetByName("basic")
	s.Require().NoError(err)
	s.Equal(StarterPlanID, got.ID)
}

func (s *CatalogTestSuite) TestRemoveRefusedWhileInUse() {
	inUse := func(_ context.Context, id string) (bool, error) { return id == StarterPlanID, nil }

	err := s.catalog.Remove(s.ctx, StarterPlanID, inUse)
	s.True(errors.Is(err, models.ErrPlanInUse))

	s.Require().NoError(s.catalog.Remove(s.ctx, FreePlanID, inUse))
	_, err = s.catalog.Get(FreePlanID)
	s.True(errors.Is(err, models.ErrNotFound))

	err = s.catalog.Remove(s.ctx, "missing", inUse)
	s.True(errors.Is(err, models.ErrNotFound))
}

func (s *CatalogTestSuite) TestRemovePropagatesLookupError() {
	failing := func(context.Context, string) (bool, error) { return false, errors.New("db down") }
	err := s.catalog.Remove(s.ctx, StarterPlanID, failing)
	s.Error(err)
	_, getErr := s.catalog.Get(StarterPlanID)
	s.NoError(getErr)
}

func TestCatalogConcurrentAccess(t *testing.T) {
	c := NewDefaultCatalog()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = c.List()
		}()
		go func() {
			defer wg.Done()
			p, err := c.Get(EnterprisePlanID)
			if err == nil {
				_ = c.Put(p)
			}
		}()
	}
	wg.Wait()
	assert.Len(t, c.List(), 4)
}

func TestComparePlans(t *testing.T) {
	c := NewDefaultCatalog()
	starter, err := c.Get(StarterPlanID)
	require.NoError(t, err)
	enterprise, err := c.Get(EnterprisePlanID)
	require.NoError(t, err)

	up := ComparePlans(starter, enterprise)
	assert.True(t, up.IsUpgrade())
	assert.Contains(t, up.GainedFeatures, models.FeatureAPIAccess)
	assert.Equal(t, LimitChange{From: 1000, To: models.Unlimited}, up.RaisedLimits[models.ResourceLeads])
	assert.True(t, up.MonthlyPriceGap.Equal(decimal.NewFromInt(4500)))

	down := ComparePlans(enterprise, starter)
	assert.False(t, down.IsUpgrade())
	assert.Contains(t, down.LostFeatures, models.FeatureAdvancedReports)
	assert.Contains(t, down.LoweredLimits, models.ResourceUsers)
	assert.Empty(t, down.RaisedLimits)
}
