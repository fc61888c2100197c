package testhelpers

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"tenantcrm/internal/models"
	"tenantcrm/pkg/database"
	"tenantcrm/pkg/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Clock is a settable clock for deterministic lifecycle tests.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *Clock) AdvanceDays(n int) {
	c.Advance(time.Duration(n) * 24 * time.Hour)
}

func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Dec parses a decimal literal and panics on bad input.
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// Completed builds a successful payment outcome for amount.
func Completed(amount string) models.PaymentOutcome {
	return models.PaymentOutcome{Status: models.PaymentCompleted, Amount: Dec(amount), Reference: "pay_" + uuid.NewString()[:8]}
}

func Failed(amount string) models.PaymentOutcome {
	return models.PaymentOutcome{Status: models.PaymentFailed, Amount: Dec(amount), Reference: "pay_" + uuid.NewString()[:8]}
}

// TestDB holds a migrated database for integration tests.
type TestDB struct {
	Pool    *pgxpool.Pool
	Cleanup func()
}

// SetupTestDB connects to TEST_DATABASE_URL and applies migrations. The test
// is skipped when the variable is unset.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := database.NewPool(ctx, dsn)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := database.Migrate(ctx, pool, logger.Nop()); err != nil {
		pool.Close()
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return &TestDB{
		Pool: pool,
		Cleanup: func() {
			_, _ = pool.Exec(ctx, `TRUNCATE role_grants, roles, payments, subscriptions, tenants, resellers, plans CASCADE`)
			pool.Close()
		},
	}
}
