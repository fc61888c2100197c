package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tenantcrm/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TransitionWrite is everything one lifecycle event persists. The
// subscription row, tenant flag and payment row commit together or not at all.
type TransitionWrite struct {
	Subscription    *models.Subscription
	ExpectedVersion int64
	TenantSuspended *bool
	Payment         *models.Payment
}

type SubscriptionRepository interface {
	Create(ctx context.Context, sub *models.Subscription) error
	GetByTenant(ctx context.Context, tenantID uuid.UUID) (*models.Subscription, error)
	List(ctx context.Context, filter models.SubscriptionFilter) ([]*models.Subscription, error)
	ListByTenantIDs(ctx context.Context, tenantIDs []uuid.UUID) ([]*models.Subscription, error)
	CountLiveByPlan(ctx context.Context, planID string) (int64, error)
	ListDueForReconcile(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
	ApplyTransition(ctx context.Context, w TransitionWrite) error
}

type subscriptionRepo struct {
	db DBTX
}

func NewSubscriptionRepo(db DBTX) SubscriptionRepository {
	return &subscriptionRepo{db: db}
}

const subscriptionColumns = `id, tenant_id, plan_id, plan_name, status, billing_cycle, amount, limits, features,
		start_date, end_date, renewal_date, auto_renew, trial_start_date, trial_end_date,
		is_trial_active, is_trial_expired, last_payment_date, last_payment_amount, total_paid, currency,
		cancelled_at, cancel_reason, suspended_at, suspend_reason, version, created_at, updated_at`

func scanSubscription(row pgx.Row) (*models.Subscription, error) {
	s := &models.Subscription{}
	err := row.Scan(&s.ID, &s.TenantID, &s.PlanID, &s.PlanName, &s.Status, &s.BillingCycle, &s.Amount, &s.Limits, &s.Features,
		&s.StartDate, &s.EndDate, &s.RenewalDate, &s.AutoRenew, &s.TrialStartDate, &s.TrialEndDate,
		&s.IsTrialActive, &s.IsTrialExpired, &s.LastPaymentDate, &s.LastPaymentAmount, &s.TotalPaid, &s.Currency,
		&s.CancelledAt, &s.CancelReason, &s.SuspendedAt, &s.SuspendReason, &s.Version, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func collectSubscriptions(rows pgx.Rows) ([]*models.Subscription, error) {
	defer rows.Close()
	var out []*models.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

const insertSubscriptionSQL = `
		INSERT INTO subscriptions (id, tenant_id, plan_id, plan_name, status, billing_cycle, amount, limits, features,
			start_date, end_date, renewal_date, auto_renew, trial_start_date, trial_end_date,
			is_trial_active, is_trial_expired, last_payment_date, last_payment_amount, total_paid, currency,
			cancelled_at, cancel_reason, suspended_at, suspend_reason, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21,
			$22, $23, $24, $25, $26, NOW(), NOW())
	`

func insertSubscription(ctx context.Context, db execer, s *models.Subscription) error {
	if s.Version == 0 {
		s.Version = 1
	}
	_, err := db.Exec(ctx, insertSubscriptionSQL,
		s.ID, s.TenantID, s.PlanID, s.PlanName, s.Status, s.BillingCycle, s.Amount, s.Limits, s.Features,
		s.StartDate, s.EndDate, s.RenewalDate, s.AutoRenew, s.TrialStartDate, s.TrialEndDate,
		s.IsTrialActive, s.IsTrialExpired, s.LastPaymentDate, s.LastPaymentAmount, s.TotalPaid, s.Currency,
		s.CancelledAt, s.CancelReason, s.SuspendedAt, s.SuspendReason, s.Version)
	return mapError(err, "create subscription")
}

func (r *subscriptionRepo) Create(ctx context.Context, sub *models.Subscription) error {
	return insertSubscription(ctx, r.db, sub)
}

func (r *subscriptionRepo) GetByTenant(ctx context.Context, tenantID uuid.UUID) (*models.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE tenant_id = $1`
	s, err := scanSubscription(r.db.QueryRow(ctx, query, tenantID))
	if err != nil {
		return nil, mapError(err, "get subscription")
	}
	return s, nil
}

func (r *subscriptionRepo) List(ctx context.Context, f models.SubscriptionFilter) ([]*models.Subscription, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.Status != "" {
		add("s.status = $%d", f.Status)
	}
	if f.PlanID != "" {
		add("s.plan_id = $%d", f.PlanID)
	}
	if f.BillingCycle != "" {
		add("s.billing_cycle = $%d", f.BillingCycle)
	}
	if f.ResellerID != nil {
		add("t.reseller_id = $%d", *f.ResellerID)
	}

	limit, offset := pageBounds(f.Limit, f.Offset)
	query := `SELECT ` + prefixColumns("s", subscriptionColumns) + `
		FROM subscriptions s
		JOIN tenants t ON t.id = s.tenant_id`
	if len(where) > 0 {
		query += `
		WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(`
		ORDER BY s.created_at DESC
		LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "list subscriptions")
	}
	subs, err := collectSubscriptions(rows)
	if err != nil {
		return nil, mapError(err, "scan subscriptions")
	}
	return subs, nil
}

func (r *subscriptionRepo) ListByTenantIDs(ctx context.Context, tenantIDs []uuid.UUID) ([]*models.Subscription, error) {
	if len(tenantIDs) == 0 {
		return nil, nil
	}
	query := `SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE tenant_id = ANY($1)`
	rows, err := r.db.Query(ctx, query, tenantIDs)
	if err != nil {
		return nil, mapError(err, "list subscriptions by tenant")
	}
	subs, err := collectSubscriptions(rows)
	if err != nil {
		return nil, mapError(err, "scan subscriptions")
	}
	return subs, nil
}

// CountLiveByPlan counts subscriptions that still reference planID.
func (r *subscriptionRepo) CountLiveByPlan(ctx context.Context, planID string) (int64, error) {
	query := `SELECT COUNT(*) FROM subscriptions WHERE plan_id = $1 AND status <> 'expired'`
	var n int64
	if err := r.db.QueryRow(ctx, query, planID).Scan(&n); err != nil {
		return 0, mapError(err, "count plan subscriptions")
	}
	return n, nil
}

// ListDueForReconcile returns tenants whose stored status is behind the clock.
func (r *subscriptionRepo) ListDueForReconcile(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	if limit <= 0 {
		limit = 500
	}
	query := `
		SELECT tenant_id FROM subscriptions
		WHERE (status = 'trial' AND trial_end_date < $1)
		   OR (status = 'active' AND renewal_date <= $1)
		   OR (status = 'cancelled' AND COALESCE(end_date, trial_end_date) <= $1)
		ORDER BY updated_at
		LIMIT $2`
	rows, err := r.db.Query(ctx, query, now, limit)
	if err != nil {
		return nil, mapError(err, "list due subscriptions")
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, mapError(err, "scan due subscription")
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

const updateSubscriptionSQL = `
		UPDATE subscriptions
		SET plan_id = $1, plan_name = $2, status = $3, billing_cycle = $4, amount = $5, limits = $6, features = $7,
			start_date = $8, end_date = $9, renewal_date = $10, auto_renew = $11, trial_start_date = $12,
			trial_end_date = $13, is_trial_active = $14, is_trial_expired = $15, last_payment_date = $16,
			last_payment_amount = $17, total_paid = $18, currency = $19, cancelled_at = $20, cancel_reason = $21,
			suspended_at = $22, suspend_reason = $23, version = version + 1, updated_at = NOW()
		WHERE id = $24 AND version = $25
	`

// ApplyTransition persists a lifecycle event. A version mismatch means
// another writer got there first and yields ErrConflict.
func (r *subscriptionRepo) ApplyTransition(ctx context.Context, w TransitionWrite) error {
	s := w.Subscription
	if s == nil {
		return fmt.Errorf("%w: transition without subscription", models.ErrInvalidInput)
	}

	err := withTx(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, updateSubscriptionSQL,
			s.PlanID, s.PlanName, s.Status, s.BillingCycle, s.Amount, s.Limits, s.Features,
			s.StartDate, s.EndDate, s.RenewalDate, s.AutoRenew, s.TrialStartDate,
			s.TrialEndDate, s.IsTrialActive, s.IsTrialExpired, s.LastPaymentDate,
			s.LastPaymentAmount, s.TotalPaid, s.Currency, s.CancelledAt, s.CancelReason,
			s.SuspendedAt, s.SuspendReason, s.ID, w.ExpectedVersion)
		if err != nil {
			return mapError(err, "update subscription")
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("subscription %s at version %d: %w", s.ID, w.ExpectedVersion, models.ErrConflict)
		}

		if w.TenantSuspended != nil {
			tag, err := tx.Exec(ctx, `UPDATE tenants SET is_suspended = $1, updated_at = NOW() WHERE id = $2`,
				*w.TenantSuspended, s.TenantID)
			if err != nil {
				return mapError(err, "update tenant suspension")
			}
			if tag.RowsAffected() == 0 {
				return fmt.Errorf("tenant %s: %w", s.TenantID, models.ErrNotFound)
			}
		}

		if w.Payment != nil {
			if err := insertPayment(ctx, tx, w.Payment); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.Version = w.ExpectedVersion + 1
	return nil
}

func prefixColumns(alias, cols string) string {
	parts := strings.Split(cols, ",")
	for i, c := range parts {
		parts[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(parts, ", ")
}
