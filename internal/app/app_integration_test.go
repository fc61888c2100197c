package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tenantcrm/internal/capability"
	"tenantcrm/internal/models"
	"tenantcrm/internal/services"
	"tenantcrm/pkg/config"
	"tenantcrm/pkg/logger"
	"tenantcrm/testhelpers"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPostgresLifecycle runs the engine against a real database when
// TEST_DATABASE_URL is set.
func TestPostgresLifecycle(t *testing.T) {
	db := testhelpers.SetupTestDB(t)
	defer db.Cleanup()

	ctx := context.Background()
	clock := testhelpers.NewClock(time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC))
	cfg := &config.Config{
		JWT:          config.JWTConfig{Secret: "integration"},
		Redis:        config.RedisConfig{LockTTL: time.Second},
		Subscription: config.SubscriptionConfig{TrialDays: 15, TrialPlan: "professional", Currency: "INR"},
	}
	a, err := New(ctx, cfg, logger.Nop(), WithClock(clock.Now), WithPool(db.Pool))
	require.NoError(t, err)
	defer a.Close()

	acct, err := a.Tenants.Create(ctx, services.CreateTenantRequest{OrganizationID: "it-" + uuid.NewString()[:8], OrganizationName: "Integration"})
	require.NoError(t, err)
	tenantID := acct.Tenant.ID
	assert.Equal(t, models.StatusTrial, acct.Subscription.Status)

	roles, err := a.RBAC.ListRoles(ctx, tenantID)
	require.NoError(t, err)
	require.Len(t, roles, 4)

	var adminRole uuid.UUID
	for _, r := range roles {
		if r.Name == services.RoleAdmin {
			adminRole = r.ID
		}
	}
	p := models.Principal{UserID: uuid.New(), TenantID: tenantID, RoleID: adminRole}

	_, err = db.Pool.Exec(ctx, `INSERT INTO leads (id, tenant_id) VALUES ($1, $2)`, uuid.New(), tenantID)
	require.NoError(t, err)
	res, err := a.Gate.Entitlement(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Usage[models.ResourceLeads])

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := a.Subscriptions.Upgrade(ctx, services.UpgradeRequest{
				TenantID: tenantID, PlanID: "starter", BillingCycle: models.CycleMonthly,
				Payment: testhelpers.Completed("1499"),
			})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
				return
			}
			var te *models.TransitionError
			assert.True(t, errors.As(err, &te), "unexpected error %v", err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)

	payments, err := a.Subscriptions.ListPayments(ctx, tenantID, 10, 0)
	require.NoError(t, err)
	assert.Len(t, payments, 1)

	d, err := a.Gate.Can(ctx, p, capability.ReportCreate)
	require.NoError(t, err)
	assert.Equal(t, models.ReasonPlanDenied, d.Reason)

	clock.AdvanceDays(40)
	swept, err := a.Reconcile.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, swept.Expired)

	sub, err := a.Subscriptions.GetCurrent(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusExpired, sub.Status)
}
