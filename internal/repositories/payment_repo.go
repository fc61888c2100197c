package repositories

import (
	"context"

	"tenantcrm/internal/models"

	"github.com/google/uuid"
)

// PaymentRepository is append-only: there is no update or delete.
type PaymentRepository interface {
	Append(ctx context.Context, p *models.Payment) error
	ListByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.Payment, error)
}

type paymentRepo struct {
	db DBTX
}

func NewPaymentRepo(db DBTX) PaymentRepository {
	return &paymentRepo{db: db}
}

func insertPayment(ctx context.Context, db execer, p *models.Payment) error {
	query := `
		INSERT INTO payments (id, tenant_id, invoice_number, plan_name, amount, currency, paid_at, status, reference, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
	`
	_, err := db.Exec(ctx, query, p.ID, p.TenantID, p.InvoiceNumber, p.PlanName, p.Amount, p.Currency, p.PaidAt, p.Status, p.Reference)
	return mapError(err, "append payment")
}

func (r *paymentRepo) Append(ctx context.Context, p *models.Payment) error {
	return insertPayment(ctx, r.db, p)
}

func (r *paymentRepo) ListByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.Payment, error) {
	limit, offset = pageBounds(limit, offset)
	query := `
		SELECT id, tenant_id, invoice_number, plan_name, amount, currency, paid_at, status, reference, created_at
		FROM payments
		WHERE tenant_id = $1
		ORDER BY paid_at DESC, created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, tenantID, limit, offset)
	if err != nil {
		return nil, mapError(err, "list payments")
	}
	defer rows.Close()

	var payments []*models.Payment
	for rows.Next() {
		p := &models.Payment{}
		if err := rows.Scan(&p.ID, &p.TenantID, &p.InvoiceNumber, &p.PlanName, &p.Amount, &p.Currency, &p.PaidAt, &p.Status, &p.Reference, &p.CreatedAt); err != nil {
			return nil, mapError(err, "scan payment")
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}
