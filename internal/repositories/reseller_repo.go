package repositories

import (
	"context"
	"fmt"

	"tenantcrm/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type ResellerRepository interface {
	Create(ctx context.Context, r *models.Reseller) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Reseller, error)
	List(ctx context.Context, status models.ResellerStatus, limit, offset int) ([]*models.Reseller, error)
	Update(ctx context.Context, r *models.Reseller) error
}

type resellerRepo struct {
	db DBTX
}

func NewResellerRepo(db DBTX) ResellerRepository {
	return &resellerRepo{db: db}
}

func scanReseller(row pgx.Row) (*models.Reseller, error) {
	r := &models.Reseller{}
	if err := row.Scan(&r.ID, &r.Name, &r.Email, &r.Status, &r.CommissionRate, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	return r, nil
}

func (repo *resellerRepo) Create(ctx context.Context, r *models.Reseller) error {
	query := `
		INSERT INTO resellers (id, name, email, status, commission_rate, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
	`
	_, err := repo.db.Exec(ctx, query, r.ID, r.Name, r.Email, r.Status, r.CommissionRate)
	return mapError(err, "create reseller")
}

func (repo *resellerRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Reseller, error) {
	query := `
		SELECT id, name, email, status, commission_rate, created_at, updated_at
		FROM resellers
		WHERE id = $1
	`
	r, err := scanReseller(repo.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapError(err, "get reseller")
	}
	return r, nil
}

func (repo *resellerRepo) List(ctx context.Context, status models.ResellerStatus, limit, offset int) ([]*models.Reseller, error) {
	limit, offset = pageBounds(limit, offset)
	query := `
		SELECT id, name, email, status, commission_rate, created_at, updated_at
		FROM resellers
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := repo.db.Query(ctx, query, string(status), limit, offset)
	if err != nil {
		return nil, mapError(err, "list resellers")
	}
	defer rows.Close()

	var out []*models.Reseller
	for rows.Next() {
		r, err := scanReseller(rows)
		if err != nil {
			return nil, mapError(err, "scan reseller")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (repo *resellerRepo) Update(ctx context.Context, r *models.Reseller) error {
	query := `
		UPDATE resellers
		SET name = $1, email = $2, status = $3, commission_rate = $4, updated_at = NOW()
		WHERE id = $5
	`
	tag, err := repo.db.Exec(ctx, query, r.Name, r.Email, r.Status, r.CommissionRate, r.ID)
	if err != nil {
		return mapError(err, "update reseller")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("reseller %s: %w", r.ID, models.ErrNotFound)
	}
	return nil
}
