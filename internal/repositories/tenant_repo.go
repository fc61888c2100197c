package repositories

import (
	"context"
	"fmt"

	"tenantcrm/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type TenantRepository interface {
	// CreateWithSubscription stores a tenant and its first subscription atomically.
	CreateWithSubscription(ctx context.Context, tenant *models.Tenant, sub *models.Subscription) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	GetByOrganizationID(ctx context.Context, organizationID string) (*models.Tenant, error)
	Update(ctx context.Context, tenant *models.Tenant) error
	List(ctx context.Context, limit, offset int) ([]*models.Tenant, error)
	ListByReseller(ctx context.Context, resellerID uuid.UUID) ([]*models.Tenant, error)
	// SetReseller attributes an unattributed tenant, snapshotting rate.
	SetReseller(ctx context.Context, tenantID, resellerID uuid.UUID, rate decimal.Decimal) error
}

type tenantRepo struct {
	db DBTX
}

func NewTenantRepo(db DBTX) TenantRepository {
	return &tenantRepo{db: db}
}

const tenantColumns = `id, organization_id, organization_name, is_suspended, contact_email, contact_phone,
		reseller_id, commission_rate, created_at, updated_at`

func scanTenant(row pgx.Row) (*models.Tenant, error) {
	t := &models.Tenant{}
	err := row.Scan(&t.ID, &t.OrganizationID, &t.OrganizationName, &t.IsSuspended, &t.ContactEmail, &t.ContactPhone,
		&t.ResellerID, &t.CommissionRate, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *tenantRepo) CreateWithSubscription(ctx context.Context, t *models.Tenant, sub *models.Subscription) error {
	return withTx(ctx, r.db, func(tx pgx.Tx) error {
		query := `
			INSERT INTO tenants (id, organization_id, organization_name, is_suspended, contact_email, contact_phone,
				reseller_id, commission_rate, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		`
		if _, err := tx.Exec(ctx, query, t.ID, t.OrganizationID, t.OrganizationName, t.IsSuspended, t.ContactEmail,
			t.ContactPhone, t.ResellerID, t.CommissionRate); err != nil {
			return mapError(err, "create tenant")
		}
		return insertSubscription(ctx, tx, sub)
	})
}

func (r *tenantRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE id = $1`
	t, err := scanTenant(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapError(err, "get tenant")
	}
	return t, nil
}

func (r *tenantRepo) GetByOrganizationID(ctx context.Context, organizationID string) (*models.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE organization_id = $1`
	t, err := scanTenant(r.db.QueryRow(ctx, query, organizationID))
	if err != nil {
		return nil, mapError(err, "get tenant by organization")
	}
	return t, nil
}

// Update changes profile fields only. Suspension and attribution have their
// own write paths.
func (r *tenantRepo) Update(ctx context.Context, t *models.Tenant) error {
	query := `
		UPDATE tenants
		SET organization_name = $1, contact_email = $2, contact_phone = $3, updated_at = NOW()
		WHERE id = $4
	`
	tag, err := r.db.Exec(ctx, query, t.OrganizationName, t.ContactEmail, t.ContactPhone, t.ID)
	if err != nil {
		return mapError(err, "update tenant")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("tenant %s: %w", t.ID, models.ErrNotFound)
	}
	return nil
}

func (r *tenantRepo) List(ctx context.Context, limit, offset int) ([]*models.Tenant, error) {
	limit, offset = pageBounds(limit, offset)
	query := `SELECT ` + tenantColumns + `
		FROM tenants
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`
	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, mapError(err, "list tenants")
	}
	return collectTenants(rows)
}

func (r *tenantRepo) ListByReseller(ctx context.Context, resellerID uuid.UUID) ([]*models.Tenant, error) {
	query := `SELECT ` + tenantColumns + `
		FROM tenants
		WHERE reseller_id = $1
		ORDER BY created_at`
	rows, err := r.db.Query(ctx, query, resellerID)
	if err != nil {
		return nil, mapError(err, "list reseller tenants")
	}
	return collectTenants(rows)
}

func (r *tenantRepo) SetReseller(ctx context.Context, tenantID, resellerID uuid.UUID, rate decimal.Decimal) error {
	query := `
		UPDATE tenants
		SET reseller_id = $1, commission_rate = $2, updated_at = NOW()
		WHERE id = $3 AND reseller_id IS NULL
	`
	tag, err := r.db.Exec(ctx, query, resellerID, rate, tenantID)
	if err != nil {
		return mapError(err, "attribute tenant")
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM tenants WHERE id = $1)`, tenantID).Scan(&exists); err != nil {
		return mapError(err, "attribute tenant")
	}
	if !exists {
		return fmt.Errorf("tenant %s: %w", tenantID, models.ErrNotFound)
	}
	return fmt.Errorf("tenant %s is already attributed to a reseller: %w", tenantID, models.ErrDuplicate)
}

func collectTenants(rows pgx.Rows) ([]*models.Tenant, error) {
	defer rows.Close()
	var tenants []*models.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, mapError(err, "scan tenant")
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}
