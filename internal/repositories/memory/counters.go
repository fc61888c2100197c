package memory

import (
	"context"

	"tenantcrm/internal/models"

	"github.com/google/uuid"
)

// SetUsage records how many live rows of a resource a tenant holds. The
// in-memory mode has no CRM record tables, so usage is set directly.
func (s *Store) SetUsage(tenantID uuid.UUID, r models.Resource, n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byRes, ok := s.records[tenantID]
	if !ok {
		byRes = map[models.Resource]int64{}
		s.records[tenantID] = byRes
	}
	byRes[r] = n
}

// UsageCounter counts one resource from SetUsage values.
type UsageCounter struct {
	s        *Store
	resource models.Resource
}

func (c UsageCounter) Resource() models.Resource { return c.resource }

func (c UsageCounter) Count(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	return c.s.records[tenantID][c.resource], nil
}

// UsageCounters returns a counter for every metered resource.
func (s *Store) UsageCounters() []UsageCounter {
	out := make([]UsageCounter, 0, len(models.MeteredResources))
	for _, r := range models.MeteredResources {
		out = append(out, UsageCounter{s: s, resource: r})
	}
	return out
}
