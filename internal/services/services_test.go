package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tenantcrm/internal/caching"
	"tenantcrm/internal/capability"
	"tenantcrm/internal/metrics"
	"tenantcrm/internal/models"
	"tenantcrm/internal/plans"
	"tenantcrm/internal/repositories"
	"tenantcrm/internal/repositories/memory"
	"tenantcrm/internal/usage"
	"tenantcrm/pkg/logger"
	"tenantcrm/testhelpers"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
)

type stubCounter struct {
	resource models.Resource
	s        *ServiceSuite
}

func (c stubCounter) Resource() models.Resource { return c.resource }

func (c stubCounter) Count(_ context.Context, _ uuid.UUID) (int64, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if c.s.failing[c.resource] {
		return 0, errors.New("counter offline")
	}
	return c.s.counts[c.resource], nil
}

type ServiceSuite struct {
	suite.Suite
	ctx     context.Context
	clock   *testhelpers.Clock
	store   *memory.Store
	catalog *plans.Catalog

	subs      SubscriptionService
	tenants   TenantService
	resellers ResellerService
	rbac      RBACService
	gate      GateService

	mu      sync.Mutex
	counts  map[models.Resource]int64
	failing map[models.Resource]bool
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.clock = testhelpers.NewClock(time.Date(2026, 1, 10, 10, 0, 0, 0, time.UTC))
	s.store = memory.NewStore().WithClock(s.clock.Now)
	s.catalog = plans.NewDefaultCatalog()
	s.counts = map[models.Resource]int64{}
	s.failing = map[models.Resource]bool{}

	log := logger.Nop()
	mx := metrics.New(prometheus.NewRegistry())

	var counters []usage.Counter
	for _, r := range models.MeteredResources {
		counters = append(counters, stubCounter{resource: r, s: s})
	}
	meter := usage.NewMeter(log, counters, usage.WithMetrics(mx), usage.WithClock(s.clock.Now))

	s.subs = NewSubscriptionService(
		s.store.Subscriptions(), s.store.Tenants(), s.store.Payments(),
		s.catalog, caching.NewLocalLocker(time.Second),
		SubscriptionConfig{TrialDays: 15, TrialPlan: plans.ProfessionalPlanID, Currency: "INR"},
		mx, log, s.clock.Now,
	)
	s.rbac = NewRBACService(s.store.Roles(), caching.NoopGrantCache{}, log)
	s.tenants = NewTenantService(s.store.Tenants(), s.store.Resellers(), s.subs, s.rbac, log, s.clock.Now)
	s.resellers = NewResellerService(s.store.Resellers(), s.store.Tenants(), s.store.Subscriptions(), log)
	s.gate = NewGateService(s.rbac, s.store.Tenants(), s.store.Subscriptions(), meter, mx, log, s.clock.Now)
}

func (s *ServiceSuite) newTenant(org string, resellerID *uuid.UUID) *TenantAccount {
	acct, err := s.tenants.Create(s.ctx, CreateTenantRequest{
		OrganizationID:   org,
		OrganizationName: org + " Pvt Ltd",
		ContactEmail:     org + "@example.com",
		ResellerID:       resellerID,
	})
	s.Require().NoError(err)
	return acct
}

func (s *ServiceSuite) upgrade(tenantID uuid.UUID, planID string, cycle models.BillingCycle, amount string) *models.Subscription {
	sub, err := s.subs.Upgrade(s.ctx, UpgradeRequest{
		TenantID:     tenantID,
		PlanID:       planID,
		BillingCycle: cycle,
		Payment:      testhelpers.Completed(amount),
	})
	s.Require().NoError(err)
	return sub
}

func (s *ServiceSuite) principal(tenantID uuid.UUID, roleName string) models.Principal {
	role, err := s.store.Roles().GetByName(s.ctx, tenantID, roleName)
	s.Require().NoError(err)
	return models.Principal{UserID: uuid.New(), TenantID: tenantID, RoleID: role.ID}
}

func (s *ServiceSuite) can(p models.Principal, c capability.Capability) models.AccessDecision {
	d, err := s.gate.Can(s.ctx, p, c)
	s.Require().NoError(err)
	return d
}

func (s *ServiceSuite) TestNewTenantStartsTrial() {
	acct := s.newTenant("acme", nil)

	s.Equal(models.StatusTrial, acct.Subscription.Status)
	s.Equal(plans.ProfessionalPlanID, acct.Subscription.PlanID)
	s.True(acct.Subscription.IsTrialActive)
	s.True(acct.Subscription.Amount.IsZero())

	res, err := s.gate.Entitlement(s.ctx, acct.Tenant.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusTrial, res.EffectiveStatus)
	s.Equal(15, res.TrialDaysRemaining)

	roles, err := s.rbac.ListRoles(s.ctx, acct.Tenant.ID)
	s.Require().NoError(err)
	s.Len(roles, 4)
}

func (s *ServiceSuite) TestCreateTenantValidation() {
	_, err := s.tenants.Create(s.ctx, CreateTenantRequest{OrganizationID: "has space", OrganizationName: "x"})
	s.ErrorIs(err, models.ErrInvalidInput)

	s.newTenant("acme", nil)
	_, err = s.tenants.Create(s.ctx, CreateTenantRequest{OrganizationID: "acme", OrganizationName: "Again"})
	s.ErrorIs(err, models.ErrDuplicate)
}

func (s *ServiceSuite) TestTrialUpgradeToProfessionalMonthly() {
	acct := s.newTenant("acme", nil)
	s.clock.AdvanceDays(3)
	start := s.clock.Now()

	sub := s.upgrade(acct.Tenant.ID, plans.ProfessionalPlanID, models.CycleMonthly, "2999")

	s.Equal(models.StatusActive, sub.Status)
	s.True(sub.Amount.Equal(testhelpers.Dec("2999")))
	s.Require().NotNil(sub.StartDate)
	s.Require().NotNil(sub.RenewalDate)
	s.Equal(start, *sub.StartDate)
	s.Equal(start.AddDate(0, 1, 0), *sub.RenewalDate)
	s.True(sub.AutoRenew)
	s.False(sub.IsTrialActive)
	s.True(sub.TotalPaid.Equal(testhelpers.Dec("2999")))

	payments, err := s.subs.ListPayments(s.ctx, acct.Tenant.ID, 10, 0)
	s.Require().NoError(err)
	s.Require().Len(payments, 1)
	s.Equal(models.PaymentCompleted, payments[0].Status)
	s.Equal("professional", payments[0].PlanName)
	s.Regexp(`^INV-20260113-[A-Z0-9]{8}$`, payments[0].InvoiceNumber)
}

func (s *ServiceSuite) TestUpgradeFromActiveIsRejected() {
	acct := s.newTenant("acme", nil)
	s.upgrade(acct.Tenant.ID, plans.StarterPlanID, models.CycleMonthly, "1499")

	_, err := s.subs.Upgrade(s.ctx, UpgradeRequest{
		TenantID: acct.Tenant.ID, PlanID: plans.EnterprisePlanID,
		BillingCycle: models.CycleMonthly, Payment: testhelpers.Completed("5999"),
	})
	var te *models.TransitionError
	s.Require().ErrorAs(err, &te)
	s.Equal("active", te.From)
	s.ErrorIs(err, models.ErrInvalidTransition)
}

func (s *ServiceSuite) TestUpgradeRejectsBadInput() {
	acct := s.newTenant("acme", nil)

	_, err := s.subs.Upgrade(s.ctx, UpgradeRequest{TenantID: acct.Tenant.ID, PlanID: plans.FreePlanID,
		BillingCycle: models.CycleMonthly, Payment: testhelpers.Completed("0")})
	s.ErrorIs(err, models.ErrInvalidInput)

	_, err = s.subs.Upgrade(s.ctx, UpgradeRequest{TenantID: acct.Tenant.ID, PlanID: plans.StarterPlanID,
		BillingCycle: models.CycleMonthly, Payment: testhelpers.Completed("999")})
	s.ErrorIs(err, models.ErrInvalidInput)

	_, err = s.subs.Upgrade(s.ctx, UpgradeRequest{TenantID: acct.Tenant.ID, PlanID: "platinum",
		BillingCycle: models.CycleMonthly, Payment: testhelpers.Completed("1")})
	s.ErrorIs(err, models.ErrNotFound)
}

func (s *ServiceSuite) TestFailedUpgradePaymentIsRecordedAndStateKept() {
	acct := s.newTenant("acme", nil)

	_, err := s.subs.Upgrade(s.ctx, UpgradeRequest{
		TenantID: acct.Tenant.ID, PlanID: plans.StarterPlanID,
		BillingCycle: models.CycleMonthly, Payment: testhelpers.Failed("1499"),
	})
	s.ErrorIs(err, models.ErrPaymentNotConfirmed)

	sub, err := s.subs.GetCurrent(s.ctx, acct.Tenant.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusTrial, sub.Status)
	s.Equal(acct.Subscription.Version, sub.Version)
	s.True(sub.TotalPaid.IsZero())

	payments, err := s.subs.ListPayments(s.ctx, acct.Tenant.ID, 10, 0)
	s.Require().NoError(err)
	s.Require().Len(payments, 1)
	s.Equal(models.PaymentFailed, payments[0].Status)
}

func (s *ServiceSuite) TestExpiredTrialKeepsReadFloor() {
	acct := s.newTenant("acme", nil)
	admin := s.principal(acct.Tenant.ID, RoleAdmin)
	s.clock.AdvanceDays(16)

	s.True(s.can(admin, capability.LeadRead).Allowed)
	d := s.can(admin, capability.LeadCreate)
	s.False(d.Allowed)
	s.Equal(models.ReasonPlanDenied, d.Reason)
	s.Equal(models.StatusExpired, d.EffectiveStatus)
	s.Equal(models.ReasonPlanDenied, s.can(admin, capability.DataCenterRead).Reason)

	sub, err := s.subs.Reconcile(s.ctx, acct.Tenant.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusExpired, sub.Status)
	s.True(sub.IsTrialExpired)
	s.False(sub.IsTrialActive)

	// An expired tenant may still buy a plan.
	s.upgrade(acct.Tenant.ID, plans.StarterPlanID, models.CycleYearly, "14990")
}

func (s *ServiceSuite) TestRoleDenialIsDistinctFromPlanDenial() {
	acct := s.newTenant("acme", nil)
	viewer := s.principal(acct.Tenant.ID, RoleViewer)

	d := s.can(viewer, capability.LeadCreate)
	s.Equal(models.ReasonRbacDenied, d.Reason)
	s.ErrorIs(d.Err(), models.ErrRbacDenied)

	s.True(s.can(viewer, capability.ReportRead).Allowed)

	stranger := viewer
	stranger.RoleID = uuid.New()
	s.Equal(models.ReasonRbacDenied, s.can(stranger, capability.LeadRead).Reason)
}

func (s *ServiceSuite) TestLimitReachedAndUnknownUsage() {
	acct := s.newTenant("acme", nil)
	admin := s.principal(acct.Tenant.ID, RoleAdmin)

	s.counts[models.ResourceLeads] = 9999
	s.True(s.can(admin, capability.LeadCreate).Allowed)

	s.counts[models.ResourceLeads] = 10000
	s.Equal(models.ReasonLimitReached, s.can(admin, capability.LeadCreate).Reason)
	s.True(s.can(admin, capability.LeadRead).Allowed)

	s.failing[models.ResourceContacts] = true
	d := s.can(admin, capability.ContactCreate)
	s.Equal(models.ReasonUsageUnavailable, d.Reason)
	s.ErrorIs(d.Err(), models.ErrUsageUnavailable)

	res, err := s.gate.Entitlement(s.ctx, acct.Tenant.ID)
	s.Require().NoError(err)
	s.True(res.UnknownUsage[models.ResourceContacts])
	s.True(res.LimitFlags[models.ResourceLeads])
	s.True(res.LimitWarnings[models.ResourceLeads])
}

func (s *ServiceSuite) TestPlanFeatureGate() {
	acct := s.newTenant("acme", nil)
	admin := s.principal(acct.Tenant.ID, RoleAdmin)
	s.upgrade(acct.Tenant.ID, plans.StarterPlanID, models.CycleMonthly, "1499")

	s.Equal(models.ReasonPlanDenied, s.can(admin, capability.ReportCreate).Reason)
	s.True(s.can(admin, capability.ReportRead).Allowed)
	s.True(s.can(admin, capability.LeadImport).Allowed)
}

func (s *ServiceSuite) TestSuspendActivateRoundTrip() {
	acct := s.newTenant("acme", nil)
	admin := s.principal(acct.Tenant.ID, RoleAdmin)
	active := s.upgrade(acct.Tenant.ID, plans.ProfessionalPlanID, models.CycleMonthly, "2999")

	s.clock.AdvanceDays(5)
	suspended, err := s.subs.Suspend(s.ctx, acct.Tenant.ID, "chargeback")
	s.Require().NoError(err)
	s.Equal(models.StatusSuspended, suspended.Status)
	s.Equal("chargeback", suspended.SuspendReason)

	tenant, err := s.tenants.GetByID(s.ctx, acct.Tenant.ID)
	s.Require().NoError(err)
	s.True(tenant.IsSuspended)
	s.Equal(models.ReasonTenantSuspended, s.can(admin, capability.LeadRead).Reason)

	s.clock.AdvanceDays(2)
	restored, err := s.subs.Activate(s.ctx, acct.Tenant.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusActive, restored.Status)
	s.Equal(*active.EndDate, *restored.EndDate)
	s.True(active.Amount.Equal(restored.Amount))
	s.Nil(restored.SuspendedAt)
	s.True(s.can(admin, capability.LeadCreate).Allowed)

	_, err = s.subs.Activate(s.ctx, acct.Tenant.ID)
	s.ErrorIs(err, models.ErrInvalidTransition)
}

func (s *ServiceSuite) TestActivateAfterTermLapsedFails() {
	acct := s.newTenant("acme", nil)
	s.upgrade(acct.Tenant.ID, plans.StarterPlanID, models.CycleMonthly, "1499")
	_, err := s.subs.Suspend(s.ctx, acct.Tenant.ID, "")
	s.Require().NoError(err)

	s.clock.AdvanceDays(40)
	_, err = s.subs.Activate(s.ctx, acct.Tenant.ID)
	s.ErrorIs(err, models.ErrInvalidTransition)
}

func (s *ServiceSuite) TestRenewalPayment() {
	acct := s.newTenant("acme", nil)
	sub := s.upgrade(acct.Tenant.ID, plans.ProfessionalPlanID, models.CycleMonthly, "2999")
	firstEnd := *sub.EndDate

	_, err := s.subs.RecordPayment(s.ctx, acct.Tenant.ID, testhelpers.Completed("2999"))
	s.ErrorIs(err, models.ErrInvalidTransition)

	s.clock.Set(firstEnd.Add(2 * time.Hour))
	admin := s.principal(acct.Tenant.ID, RoleAdmin)
	s.True(s.can(admin, capability.LeadCreate).Allowed)

	renewed, err := s.subs.RecordPayment(s.ctx, acct.Tenant.ID, testhelpers.Completed("2999"))
	s.Require().NoError(err)
	s.Equal(models.StatusActive, renewed.Status)
	s.Equal(firstEnd.AddDate(0, 1, 0), *renewed.EndDate)
	s.Equal(*renewed.EndDate, *renewed.RenewalDate)
	s.True(renewed.TotalPaid.Equal(testhelpers.Dec("5998")))
}

func (s *ServiceSuite) TestFailedRenewalExpires() {
	acct := s.newTenant("acme", nil)
	sub := s.upgrade(acct.Tenant.ID, plans.StarterPlanID, models.CycleMonthly, "1499")
	s.clock.Set(*sub.RenewalDate)

	expired, err := s.subs.RecordPayment(s.ctx, acct.Tenant.ID, testhelpers.Failed("1499"))
	s.Require().NoError(err)
	s.Equal(models.StatusExpired, expired.Status)

	payments, err := s.subs.ListPayments(s.ctx, acct.Tenant.ID, 10, 0)
	s.Require().NoError(err)
	s.Len(payments, 2)
}

func (s *ServiceSuite) TestRenewalGraceWindow() {
	acct := s.newTenant("acme", nil)
	admin := s.principal(acct.Tenant.ID, RoleAdmin)
	sub := s.upgrade(acct.Tenant.ID, plans.StarterPlanID, models.CycleMonthly, "1499")

	s.clock.Set(sub.RenewalDate.Add(71 * time.Hour))
	s.Equal(models.StatusActive, s.can(admin, capability.LeadCreate).EffectiveStatus)

	s.clock.Set(sub.RenewalDate.Add(72 * time.Hour))
	s.Equal(models.StatusExpired, s.can(admin, capability.LeadCreate).EffectiveStatus)
}

func (s *ServiceSuite) TestAutoRenewOffExpiresAtRenewal() {
	acct := s.newTenant("acme", nil)
	sub := s.upgrade(acct.Tenant.ID, plans.StarterPlanID, models.CycleMonthly, "1499")

	off, err := s.subs.SetAutoRenew(s.ctx, acct.Tenant.ID, false)
	s.Require().NoError(err)
	s.False(off.AutoRenew)

	s.clock.Set(*sub.RenewalDate)
	res, err := s.gate.Entitlement(s.ctx, acct.Tenant.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusExpired, res.EffectiveStatus)
}

func (s *ServiceSuite) TestRenewalPaymentWithoutAutoRenewIsRejected() {
	acct := s.newTenant("acme", nil)
	sub := s.upgrade(acct.Tenant.ID, plans.StarterPlanID, models.CycleMonthly, "1499")
	_, err := s.subs.SetAutoRenew(s.ctx, acct.Tenant.ID, false)
	s.Require().NoError(err)
	s.clock.Set(*sub.RenewalDate)

	_, err = s.subs.RecordPayment(s.ctx, acct.Tenant.ID, testhelpers.Completed("1499"))
	var te *models.TransitionError
	s.Require().True(errors.As(err, &te), "got %v", err)
	s.Equal(EventRecordPayment, te.Event)

	payments, err := s.subs.ListPayments(s.ctx, acct.Tenant.ID, 10, 0)
	s.Require().NoError(err)
	s.Require().Len(payments, 1)
	s.Equal(models.PaymentCompleted, payments[0].Status)

	stored, err := s.subs.GetCurrent(s.ctx, acct.Tenant.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusActive, stored.Status)
	s.False(stored.AutoRenew)
	s.True(stored.TotalPaid.Equal(testhelpers.Dec("1499")))
}

func (s *ServiceSuite) TestMonthEndTermsClampAndKeepAnchor() {
	s.clock.Set(time.Date(2026, 1, 31, 9, 0, 0, 0, time.UTC))
	acct := s.newTenant("acme", nil)
	sub := s.upgrade(acct.Tenant.ID, plans.ProfessionalPlanID, models.CycleMonthly, "2999")
	s.Equal(time.Date(2026, 2, 28, 9, 0, 0, 0, time.UTC), *sub.RenewalDate)

	s.clock.Set(*sub.RenewalDate)
	renewed, err := s.subs.RecordPayment(s.ctx, acct.Tenant.ID, testhelpers.Completed("2999"))
	s.Require().NoError(err)
	s.Equal(time.Date(2026, 3, 31, 9, 0, 0, 0, time.UTC), *renewed.EndDate)
	s.Equal(*renewed.EndDate, *renewed.RenewalDate)
}

func (s *ServiceSuite) TestCancelKeepsAccessUntilTermEnd() {
	acct := s.newTenant("acme", nil)
	admin := s.principal(acct.Tenant.ID, RoleAdmin)
	sub := s.upgrade(acct.Tenant.ID, plans.StarterPlanID, models.CycleMonthly, "1499")

	cancelled, err := s.subs.Cancel(s.ctx, acct.Tenant.ID, "moving to another tool")
	s.Require().NoError(err)
	s.Equal(models.StatusCancelled, cancelled.Status)
	s.False(cancelled.AutoRenew)
	s.True(s.can(admin, capability.LeadCreate).Allowed)

	s.clock.Set(*sub.EndDate)
	s.Equal(models.StatusExpired, s.can(admin, capability.LeadCreate).EffectiveStatus)

	_, err = s.subs.Cancel(s.ctx, acct.Tenant.ID, "")
	s.ErrorIs(err, models.ErrInvalidTransition)
}

func (s *ServiceSuite) TestConcurrentUpgradesApplyOnce() {
	acct := s.newTenant("acme", nil)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = s.subs.Upgrade(s.ctx, UpgradeRequest{
				TenantID: acct.Tenant.ID, PlanID: plans.StarterPlanID,
				BillingCycle: models.CycleMonthly, Payment: testhelpers.Completed("1499"),
			})
		}()
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		s.ErrorIs(err, models.ErrInvalidTransition)
	}
	s.Equal(1, ok)

	payments, err := s.subs.ListPayments(s.ctx, acct.Tenant.ID, 10, 0)
	s.Require().NoError(err)
	s.Len(payments, 1)
}

func (s *ServiceSuite) TestStaleVersionConflicts() {
	acct := s.newTenant("acme", nil)
	stale, err := s.subs.GetCurrent(s.ctx, acct.Tenant.ID)
	s.Require().NoError(err)
	s.upgrade(acct.Tenant.ID, plans.StarterPlanID, models.CycleMonthly, "1499")

	stale.Status = models.StatusCancelled
	err = s.store.Subscriptions().ApplyTransition(s.ctx, repositories.TransitionWrite{Subscription: stale, ExpectedVersion: stale.Version})
	s.ErrorIs(err, models.ErrConflict)
}

func (s *ServiceSuite) TestPlanChangesDoNotTouchExistingSubscriptions() {
	first := s.newTenant("acme", nil)
	s.upgrade(first.Tenant.ID, plans.ProfessionalPlanID, models.CycleMonthly, "2999")

	pro, err := s.catalog.Get(plans.ProfessionalPlanID)
	s.Require().NoError(err)
	pro.Price.Monthly = testhelpers.Dec("3499")
	pro.Limits[models.ResourceUsers] = 30
	s.Require().NoError(s.catalog.Put(pro))

	sub, err := s.subs.GetCurrent(s.ctx, first.Tenant.ID)
	s.Require().NoError(err)
	s.True(sub.Amount.Equal(testhelpers.Dec("2999")))
	s.Equal(int64(25), sub.Limits[models.ResourceUsers])

	second := s.newTenant("globex", nil)
	next := s.upgrade(second.Tenant.ID, plans.ProfessionalPlanID, models.CycleMonthly, "3499")
	s.Equal(int64(30), next.Limits[models.ResourceUsers])
}

func (s *ServiceSuite) TestResellerCommission() {
	r, err := s.resellers.Create(s.ctx, CreateResellerRequest{Name: "Channel One", Email: "ops@channel.one", CommissionRate: testhelpers.Dec("10")})
	s.Require().NoError(err)

	_, err = s.tenants.Create(s.ctx, CreateTenantRequest{OrganizationID: "early", OrganizationName: "Early", ResellerID: &r.ID})
	s.ErrorIs(err, models.ErrInvalidInput)

	_, err = s.resellers.Approve(s.ctx, r.ID)
	s.Require().NoError(err)

	a := s.newTenant("alpha", &r.ID)
	b := s.newTenant("beta", &r.ID)
	s.newTenant("gamma", &r.ID)
	s.upgrade(a.Tenant.ID, plans.StarterPlanID, models.CycleMonthly, "1499")
	s.upgrade(b.Tenant.ID, plans.ProfessionalPlanID, models.CycleMonthly, "2999")

	stats, err := s.resellers.GetResellerStats(s.ctx, r.ID, s.clock.Now())
	s.Require().NoError(err)
	s.Equal(3, stats.TotalTenants)
	s.Equal(2, stats.ActiveTenants)
	s.Equal("4498.00", stats.MonthlyRevenue.StringFixed(2))
	s.Equal("449.80", stats.MonthlyCommission.StringFixed(2))

	// Raising the default rate leaves existing attributions alone.
	_, err = s.resellers.UpdateCommissionRate(s.ctx, r.ID, testhelpers.Dec("20"))
	s.Require().NoError(err)
	stats, err = s.resellers.GetResellerStats(s.ctx, r.ID, s.clock.Now())
	s.Require().NoError(err)
	s.Equal("449.80", stats.MonthlyCommission.StringFixed(2))
}

func (s *ServiceSuite) TestResellerCommissionNormalizesYearly() {
	r, err := s.resellers.Create(s.ctx, CreateResellerRequest{Name: "Annual", Email: "a@b.c", CommissionRate: testhelpers.Dec("10")})
	s.Require().NoError(err)
	_, err = s.resellers.Approve(s.ctx, r.ID)
	s.Require().NoError(err)

	a := s.newTenant("alpha", nil)
	s.Require().NoError(s.resellers.AttachTenant(s.ctx, r.ID, a.Tenant.ID))
	s.ErrorIs(s.resellers.AttachTenant(s.ctx, r.ID, a.Tenant.ID), models.ErrDuplicate)
	s.upgrade(a.Tenant.ID, plans.ProfessionalPlanID, models.CycleYearly, "29990")

	stats, err := s.resellers.GetResellerStats(s.ctx, r.ID, s.clock.Now())
	s.Require().NoError(err)
	s.Equal("2499.17", stats.MonthlyRevenue.StringFixed(2))
	s.Equal("249.92", stats.MonthlyCommission.StringFixed(2))

	_, err = s.subs.Suspend(s.ctx, a.Tenant.ID, "")
	s.Require().NoError(err)
	stats, err = s.resellers.GetResellerStats(s.ctx, r.ID, s.clock.Now())
	s.Require().NoError(err)
	s.Equal(0, stats.ActiveTenants)
	s.True(stats.MonthlyCommission.IsZero())

	// Suspension is read from current state, so an earlier asOf still excludes the tenant.
	stats, err = s.resellers.GetResellerStats(s.ctx, r.ID, s.clock.Now().AddDate(0, 0, -1))
	s.Require().NoError(err)
	s.Equal(0, stats.ActiveTenants)
}

func (s *ServiceSuite) TestResellerStatusTransitions() {
	r, err := s.resellers.Create(s.ctx, CreateResellerRequest{Name: "X", Email: "x@y.z"})
	s.Require().NoError(err)
	s.Equal(models.ResellerPending, r.Status)

	_, err = s.resellers.Suspend(s.ctx, r.ID)
	s.ErrorIs(err, models.ErrInvalidTransition)

	_, err = s.resellers.Reject(s.ctx, r.ID)
	s.Require().NoError(err)
	_, err = s.resellers.Approve(s.ctx, r.ID)
	s.ErrorIs(err, models.ErrInvalidTransition)

	_, err = s.resellers.Create(s.ctx, CreateResellerRequest{Name: "Y", Email: "y@y.z", CommissionRate: testhelpers.Dec("101")})
	s.ErrorIs(err, models.ErrInvalidInput)
}

func (s *ServiceSuite) TestCustomRoleGrants() {
	acct := s.newTenant("acme", nil)
	role, err := s.rbac.CreateRole(s.ctx, CreateRoleRequest{
		TenantID:     acct.Tenant.ID,
		Name:         "importer",
		Capabilities: []capability.Capability{capability.LeadImport, capability.LeadRead},
	})
	s.Require().NoError(err)

	p := models.Principal{UserID: uuid.New(), TenantID: acct.Tenant.ID, RoleID: role.ID}
	s.True(s.can(p, capability.LeadImport).Allowed)
	s.Equal(models.ReasonRbacDenied, s.can(p, capability.LeadExport).Reason)

	s.Require().NoError(s.rbac.SetRoleGrants(s.ctx, acct.Tenant.ID, role.ID, []capability.Capability{capability.LeadManage}))
	s.True(s.can(p, capability.LeadExport).Allowed)

	other := s.newTenant("globex", nil)
	err = s.rbac.SetRoleGrants(s.ctx, other.Tenant.ID, role.ID, nil)
	s.ErrorIs(err, models.ErrNotFound)
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}
