package repositories

import (
	"context"

	"tenantcrm/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type RoleRepository interface {
	Create(ctx context.Context, role *models.Role) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Role, error)
	GetByName(ctx context.Context, tenantID uuid.UUID, name string) (*models.Role, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*models.Role, error)
	// ReplaceGrants swaps the full grant set of a role in one transaction.
	ReplaceGrants(ctx context.Context, roleID uuid.UUID, grants []models.RoleGrant) error
	ListGrants(ctx context.Context, roleID uuid.UUID) ([]models.RoleGrant, error)
}

type roleRepo struct {
	db DBTX
}

func NewRoleRepo(db DBTX) RoleRepository {
	return &roleRepo{db: db}
}

func (r *roleRepo) Create(ctx context.Context, role *models.Role) error {
	query := `
		INSERT INTO roles (id, tenant_id, name, description, is_system, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
	`
	_, err := r.db.Exec(ctx, query, role.ID, role.TenantID, role.Name, role.Description, role.IsSystem)
	return mapError(err, "create role")
}

func scanRole(row pgx.Row) (*models.Role, error) {
	role := &models.Role{}
	if err := row.Scan(&role.ID, &role.TenantID, &role.Name, &role.Description, &role.IsSystem, &role.CreatedAt, &role.UpdatedAt); err != nil {
		return nil, err
	}
	return role, nil
}

func (r *roleRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Role, error) {
	query := `
		SELECT id, tenant_id, name, description, is_system, created_at, updated_at
		FROM roles
		WHERE tenant_id = $1 AND id = $2
	`
	role, err := scanRole(r.db.QueryRow(ctx, query, tenantID, id))
	if err != nil {
		return nil, mapError(err, "get role")
	}
	return role, nil
}

func (r *roleRepo) GetByName(ctx context.Context, tenantID uuid.UUID, name string) (*models.Role, error) {
	query := `
		SELECT id, tenant_id, name, description, is_system, created_at, updated_at
		FROM roles
		WHERE tenant_id = $1 AND name = $2
	`
	role, err := scanRole(r.db.QueryRow(ctx, query, tenantID, name))
	if err != nil {
		return nil, mapError(err, "get role by name")
	}
	return role, nil
}

func (r *roleRepo) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*models.Role, error) {
	query := `
		SELECT id, tenant_id, name, description, is_system, created_at, updated_at
		FROM roles
		WHERE tenant_id = $1
		ORDER BY name
	`
	rows, err := r.db.Query(ctx, query, tenantID)
	if err != nil {
		return nil, mapError(err, "list roles")
	}
	defer rows.Close()

	var roles []*models.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, mapError(err, "scan role")
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (r *roleRepo) ReplaceGrants(ctx context.Context, roleID uuid.UUID, grants []models.RoleGrant) error {
	return withTx(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM role_grants WHERE role_id = $1`, roleID); err != nil {
			return mapError(err, "clear role grants")
		}
		for _, g := range grants {
			if _, err := tx.Exec(ctx,
				`INSERT INTO role_grants (role_id, feature_key, action) VALUES ($1, $2, $3)`,
				roleID, g.FeatureKey, g.Action); err != nil {
				return mapError(err, "insert role grant")
			}
		}
		return nil
	})
}

func (r *roleRepo) ListGrants(ctx context.Context, roleID uuid.UUID) ([]models.RoleGrant, error) {
	rows, err := r.db.Query(ctx, `SELECT role_id, feature_key, action FROM role_grants WHERE role_id = $1`, roleID)
	if err != nil {
		return nil, mapError(err, "list role grants")
	}
	defer rows.Close()

	var grants []models.RoleGrant
	for rows.Next() {
		var g models.RoleGrant
		if err := rows.Scan(&g.RoleID, &g.FeatureKey, &g.Action); err != nil {
			return nil, mapError(err, "scan role grant")
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}
