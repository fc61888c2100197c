package usage

import (
	"context"
	"fmt"

	"tenantcrm/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Querier is the read side of a pgx pool.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TableCounter counts live rows of a collaborator-owned table that carries a
// tenant_id column and soft-deletes through deleted_at.
type TableCounter struct {
	db       Querier
	resource models.Resource
	table    pgx.Identifier
}

func NewTableCounter(db Querier, resource models.Resource, table string) *TableCounter {
	return &TableCounter{db: db, resource: resource, table: pgx.Identifier{table}}
}

// PostgresCounters returns counters for the row-backed resources.
func PostgresCounters(db Querier) []Counter {
	return []Counter{
		NewTableCounter(db, models.ResourceUsers, "users"),
		NewTableCounter(db, models.ResourceLeads, "leads"),
		NewTableCounter(db, models.ResourceContacts, "contacts"),
		NewTableCounter(db, models.ResourceDeals, "deals"),
	}
}

func (c *TableCounter) Resource() models.Resource { return c.resource }

func (c *TableCounter) Count(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE tenant_id = $1 AND deleted_at IS NULL`, c.table.Sanitize())

	var n int64
	if err := c.db.QueryRow(ctx, query, tenantID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", c.resource, err)
	}
	return n, nil
}
