package repositories

import (
	"context"

	"tenantcrm/internal/models"
)

// PlanRepository persists operator edits to the plan catalog.
type PlanRepository interface {
	List(ctx context.Context) ([]models.Plan, error)
	Upsert(ctx context.Context, p models.Plan) error
	Delete(ctx context.Context, id string) error
}

type planRepo struct {
	db DBTX
}

func NewPlanRepo(db DBTX) PlanRepository {
	return &planRepo{db: db}
}

func (r *planRepo) List(ctx context.Context) ([]models.Plan, error) {
	query := `
		SELECT id, name, display_name, price_monthly, price_yearly, limits, features, support, is_popular, tier, created_at, updated_at
		FROM plans
		ORDER BY tier, id
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, mapError(err, "list plans")
	}
	defer rows.Close()

	var out []models.Plan
	for rows.Next() {
		var p models.Plan
		if err := rows.Scan(&p.ID, &p.Name, &p.DisplayName, &p.Price.Monthly, &p.Price.Yearly, &p.Limits, &p.Features,
			&p.Support, &p.IsPopular, &p.Tier, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, mapError(err, "scan plan")
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *planRepo) Upsert(ctx context.Context, p models.Plan) error {
	query := `
		INSERT INTO plans (id, name, display_name, price_monthly, price_yearly, limits, features, support, is_popular, tier, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			display_name = EXCLUDED.display_name,
			price_monthly = EXCLUDED.price_monthly,
			price_yearly = EXCLUDED.price_yearly,
			limits = EXCLUDED.limits,
			features = EXCLUDED.features,
			support = EXCLUDED.support,
			is_popular = EXCLUDED.is_popular,
			tier = EXCLUDED.tier,
			updated_at = NOW()
	`
	_, err := r.db.Exec(ctx, query, p.ID, p.Name, p.DisplayName, p.Price.Monthly, p.Price.Yearly, p.Limits, p.Features,
		p.Support, p.IsPopular, p.Tier)
	return mapError(err, "upsert plan")
}

func (r *planRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM plans WHERE id = $1`, id)
	return mapError(err, "delete plan")
}
