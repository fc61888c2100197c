package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"tenantcrm/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type RepoTestSuite struct {
	suite.Suite
	mock     pgxmock.PgxPoolIface
	ctx      context.Context
	tenantID uuid.UUID
}

func (s *RepoTestSuite) SetupTest() {
	mock, err := pgxmock.NewPool()
	s.Require().NoError(err)
	s.mock = mock
	s.ctx = context.Background()
	s.tenantID = uuid.New()
}

func (s *RepoTestSuite) TearDownTest() {
	s.NoError(s.mock.ExpectationsWereMet())
	s.mock.Close()
}

func TestRepoTestSuite(t *testing.T) {
	suite.Run(t, new(RepoTestSuite))
}

func (s *RepoTestSuite) subscription() *models.Subscription {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	end := now.AddDate(0, 1, 0)
	return &models.Subscription{
		ID:           uuid.New(),
		TenantID:     s.tenantID,
		PlanID:       "professional",
		PlanName:     "professional",
		Status:       models.StatusActive,
		BillingCycle: models.CycleMonthly,
		Amount:       decimal.NewFromInt(2999),
		StartDate:    &now,
		EndDate:      &end,
		RenewalDate:  &end,
		Currency:     "INR",
		Version:      3,
	}
}

func (s *RepoTestSuite) TestApplyTransitionCommitsAllWrites() {
	repo := NewSubscriptionRepo(s.mock)
	sub := s.subscription()
	suspended := true
	payment := &models.Payment{ID: uuid.New(), TenantID: s.tenantID, InvoiceNumber: "INV-1", PlanName: "professional",
		Amount: decimal.NewFromInt(2999), Currency: "INR", PaidAt: time.Now(), Status: models.PaymentCompleted}

	s.mock.ExpectBegin()
	s.mock.ExpectExec(`UPDATE subscriptions`).
		WithArgs(append(anyArgs(24), int64(3))...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	s.mock.ExpectExec(`UPDATE tenants SET is_suspended`).
		WithArgs(true, s.tenantID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	s.mock.ExpectExec(`INSERT INTO payments`).
		WithArgs(anyArgs(9)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	s.mock.ExpectCommit()

	err := repo.ApplyTransition(s.ctx, TransitionWrite{
		Subscription:    sub,
		ExpectedVersion: 3,
		TenantSuspended: &suspended,
		Payment:         payment,
	})
	s.Require().NoError(err)
	s.Equal(int64(4), sub.Version)
}

func (s *RepoTestSuite) TestApplyTransitionVersionMismatchIsConflict() {
	repo := NewSubscriptionRepo(s.mock)
	sub := s.subscription()

	s.mock.ExpectBegin()
	s.mock.ExpectExec(`UPDATE subscriptions`).
		WithArgs(append(anyArgs(24), int64(3))...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	s.mock.ExpectRollback()

	err := repo.ApplyTransition(s.ctx, TransitionWrite{Subscription: sub, ExpectedVersion: 3})
	s.True(errors.Is(err, models.ErrConflict))
	s.Equal(int64(3), sub.Version)
}

func (s *RepoTestSuite) TestApplyTransitionPaymentFailureRollsBack() {
	repo := NewSubscriptionRepo(s.mock)

	s.mock.ExpectBegin()
	s.mock.ExpectExec(`UPDATE subscriptions`).
		WithArgs(append(anyArgs(24), int64(3))...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	s.mock.ExpectExec(`INSERT INTO payments`).
		WithArgs(anyArgs(9)...).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	s.mock.ExpectRollback()

	err := repo.ApplyTransition(s.ctx, TransitionWrite{
		Subscription:    s.subscription(),
		ExpectedVersion: 3,
		Payment:         &models.Payment{ID: uuid.New(), TenantID: s.tenantID},
	})
	s.True(errors.Is(err, models.ErrDuplicate))
}

func (s *RepoTestSuite) TestGetByTenantNotFound() {
	repo := NewSubscriptionRepo(s.mock)
	s.mock.ExpectQuery(`FROM subscriptions\s+WHERE tenant_id = \$1`).
		WithArgs(s.tenantID).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByTenant(s.ctx, s.tenantID)
	s.True(errors.Is(err, models.ErrNotFound))
}

func (s *RepoTestSuite) TestCountLiveByPlan() {
	repo := NewSubscriptionRepo(s.mock)
	s.mock.ExpectQuery(`SELECT COUNT\(\*\) FROM subscriptions WHERE plan_id = \$1 AND status <> 'expired'`).
		WithArgs("starter").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(2)))

	n, err := repo.CountLiveByPlan(s.ctx, "starter")
	s.Require().NoError(err)
	s.Equal(int64(2), n)
}

func (s *RepoTestSuite) TestListDueForReconcile() {
	repo := NewSubscriptionRepo(s.mock)
	now := time.Now()
	a, b := uuid.New(), uuid.New()
	s.mock.ExpectQuery(`SELECT tenant_id FROM subscriptions`).
		WithArgs(now, 500).
		WillReturnRows(pgxmock.NewRows([]string{"tenant_id"}).AddRow(a).AddRow(b))

	ids, err := repo.ListDueForReconcile(s.ctx, now, 0)
	s.Require().NoError(err)
	s.Equal([]uuid.UUID{a, b}, ids)
}

func (s *RepoTestSuite) TestListSubscriptionsBuildsFilter() {
	repo := NewSubscriptionRepo(s.mock)
	resellerID := uuid.New()
	s.mock.ExpectQuery(`WHERE s.status = \$1 AND s.plan_id = \$2 AND t.reseller_id = \$3\s+ORDER BY s.created_at DESC\s+LIMIT \$4 OFFSET \$5`).
		WithArgs(models.StatusActive, "starter", resellerID, 100, 0).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	subs, err := repo.List(s.ctx, models.SubscriptionFilter{
		Status:     models.StatusActive,
		PlanID:     "starter",
		ResellerID: &resellerID,
		Limit:      500,
	})
	s.Require().NoError(err)
	s.Empty(subs)
}

func (s *RepoTestSuite) TestCreateTenantWithSubscriptionIsAtomic() {
	repo := NewTenantRepo(s.mock)
	tenant := &models.Tenant{ID: s.tenantID, OrganizationID: "acme", OrganizationName: "Acme"}

	s.mock.ExpectBegin()
	s.mock.ExpectExec(`INSERT INTO tenants`).WithArgs(anyArgs(8)...).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	s.mock.ExpectExec(`INSERT INTO subscriptions`).WithArgs(anyArgs(26)...).WillReturnError(errors.New("connection reset"))
	s.mock.ExpectRollback()

	err := repo.CreateWithSubscription(s.ctx, tenant, s.subscription())
	s.ErrorContains(err, "create subscription")
}

func (s *RepoTestSuite) TestCreateTenantDuplicateOrganization() {
	repo := NewTenantRepo(s.mock)

	s.mock.ExpectBegin()
	s.mock.ExpectExec(`INSERT INTO tenants`).WithArgs(anyArgs(8)...).WillReturnError(&pgconn.PgError{Code: "23505"})
	s.mock.ExpectRollback()

	err := repo.CreateWithSubscription(s.ctx, &models.Tenant{ID: s.tenantID}, s.subscription())
	s.True(errors.Is(err, models.ErrDuplicate))
}

func (s *RepoTestSuite) TestSetResellerAlreadyAttributed() {
	repo := NewTenantRepo(s.mock)
	resellerID := uuid.New()
	rate := decimal.NewFromInt(10)

	s.mock.ExpectExec(`UPDATE tenants\s+SET reseller_id = \$1`).
		WithArgs(resellerID, rate, s.tenantID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	s.mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(s.tenantID).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	err := repo.SetReseller(s.ctx, s.tenantID, resellerID, rate)
	s.True(errors.Is(err, models.ErrDuplicate))
}

func (s *RepoTestSuite) TestSetResellerUnknownTenant() {
	repo := NewTenantRepo(s.mock)

	s.mock.ExpectExec(`UPDATE tenants`).WithArgs(anyArgs(3)...).WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	s.mock.ExpectQuery(`SELECT EXISTS`).WithArgs(s.tenantID).WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	err := repo.SetReseller(s.ctx, s.tenantID, uuid.New(), decimal.Zero)
	s.True(errors.Is(err, models.ErrNotFound))
}

func (s *RepoTestSuite) TestUpdateTenantMissing() {
	repo := NewTenantRepo(s.mock)
	s.mock.ExpectExec(`UPDATE tenants\s+SET organization_name`).
		WithArgs("Renamed", "", "", s.tenantID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.Update(s.ctx, &models.Tenant{ID: s.tenantID, OrganizationName: "Renamed"})
	s.True(errors.Is(err, models.ErrNotFound))
}

func (s *RepoTestSuite) TestReplaceGrants() {
	repo := NewRoleRepo(s.mock)
	roleID := uuid.New()
	grants := []models.RoleGrant{
		{RoleID: roleID, FeatureKey: "lead_management", Action: "manage"},
		{RoleID: roleID, FeatureKey: "report_management", Action: "read"},
	}

	s.mock.ExpectBegin()
	s.mock.ExpectExec(`DELETE FROM role_grants WHERE role_id = \$1`).
		WithArgs(roleID).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	for _, g := range grants {
		s.mock.ExpectExec(`INSERT INTO role_grants`).
			WithArgs(roleID, g.FeatureKey, g.Action).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	s.mock.ExpectCommit()

	s.NoError(repo.ReplaceGrants(s.ctx, roleID, grants))
}

func (s *RepoTestSuite) TestListGrants() {
	repo := NewRoleRepo(s.mock)
	roleID := uuid.New()
	s.mock.ExpectQuery(`SELECT role_id, feature_key, action FROM role_grants`).
		WithArgs(roleID).
		WillReturnRows(pgxmock.NewRows([]string{"role_id", "feature_key", "action"}).
			AddRow(roleID, "lead_management", "convert"))

	grants, err := repo.ListGrants(s.ctx, roleID)
	s.Require().NoError(err)
	s.Equal([]models.RoleGrant{{RoleID: roleID, FeatureKey: "lead_management", Action: "convert"}}, grants)
}

func (s *RepoTestSuite) TestListRoles() {
	repo := NewRoleRepo(s.mock)
	created := time.Now().UTC()
	roleID := uuid.New()
	s.mock.ExpectQuery(`FROM roles\s+WHERE tenant_id = \$1`).
		WithArgs(s.tenantID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "tenant_id", "name", "description", "is_system", "created_at", "updated_at"}).
			AddRow(roleID, s.tenantID, "admin", "Full access", true, created, created))

	roles, err := repo.ListByTenant(s.ctx, s.tenantID)
	s.Require().NoError(err)
	s.Require().Len(roles, 1)
	s.Equal("admin", roles[0].Name)
	s.True(roles[0].IsSystem)
}

func (s *RepoTestSuite) TestAppendPayment() {
	repo := NewPaymentRepo(s.mock)
	p := &models.Payment{ID: uuid.New(), TenantID: s.tenantID, InvoiceNumber: "INV-2", PlanName: "starter",
		Amount: decimal.NewFromInt(1499), Currency: "INR", PaidAt: time.Now(), Status: models.PaymentFailed}

	s.mock.ExpectExec(`INSERT INTO payments`).
		WithArgs(p.ID, p.TenantID, p.InvoiceNumber, p.PlanName, pgxmock.AnyArg(), p.Currency, p.PaidAt, p.Status, p.Reference).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	s.NoError(repo.Append(s.ctx, p))
}

func (s *RepoTestSuite) TestBeginFailure() {
	repo := NewRoleRepo(s.mock)
	s.mock.ExpectBegin().WillReturnError(errors.New("pool exhausted"))

	err := repo.ReplaceGrants(s.ctx, uuid.New(), nil)
	s.ErrorContains(err, "failed to begin transaction")
}

func anyArgs(n int) []any {
	out := make([]any, n)
	for i := range out {
		out[i] = pgxmock.AnyArg()
	}
	return out
}
