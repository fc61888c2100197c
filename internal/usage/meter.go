// Package usage counts live per-tenant resource usage from the stores that
// own it. A counter that fails marks its resource unknown; it is never
// reported as zero.
package usage

import (
	"context"
	"fmt"
	"time"

	"tenantcrm/internal/metrics"
	"tenantcrm/internal/models"
	"tenantcrm/pkg/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Counter counts one resource for one tenant.
type Counter interface {
	Resource() models.Resource
	Count(ctx context.Context, tenantID uuid.UUID) (int64, error)
}

// Meter fans out to its counters concurrently.
type Meter struct {
	counters map[models.Resource]Counter
	timeout  time.Duration
	limit    int
	now      func() time.Time
	metrics  *metrics.Metrics
	log      *logger.Logger
}

type Option func(*Meter)

// WithTimeout bounds each counter call. Default 2s.
func WithTimeout(d time.Duration) Option {
	return func(m *Meter) { m.timeout = d }
}

func WithMetrics(mx *metrics.Metrics) Option {
	return func(m *Meter) { m.metrics = mx }
}

func WithClock(now func() time.Time) Option {
	return func(m *Meter) { m.now = now }
}

func NewMeter(log *logger.Logger, counters []Counter, opts ...Option) *Meter {
	m := &Meter{
		counters: make(map[models.Resource]Counter, len(counters)),
		timeout:  2 * time.Second,
		limit:    4,
		now:      time.Now,
		log:      log.Component("usage"),
	}
	for _, c := range counters {
		m.counters[c.Resource()] = c
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetUsage counts every metered resource. It only fails when ctx is done;
// per-resource failures land in Snapshot.Unknown.
func (m *Meter) GetUsage(ctx context.Context, tenantID uuid.UUID) (models.UsageSnapshot, error) {
	return m.count(ctx, tenantID, models.MeteredResources)
}

// GetResourceUsage counts only the named resources.
func (m *Meter) GetResourceUsage(ctx context.Context, tenantID uuid.UUID, resources ...models.Resource) (models.UsageSnapshot, error) {
	return m.count(ctx, tenantID, resources)
}

type result struct {
	resource models.Resource
	count    int64
	err      error
}

func (m *Meter) count(ctx context.Context, tenantID uuid.UUID, resources []models.Resource) (models.UsageSnapshot, error) {
	snap := models.UsageSnapshot{
		Counts:    make(map[models.Resource]int64, len(resources)),
		Unknown:   map[models.Resource]string{},
		CountedAt: m.now(),
	}

	results := make([]result, len(resources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.limit)

	for i, r := range resources {
		c, ok := m.counters[r]
		if !ok {
			results[i] = result{resource: r, err: fmt.Errorf("no counter registered")}
			continue
		}
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(gctx, m.timeout)
			defer cancel()
			n, err := c.Count(cctx, tenantID)
			results[i] = result{resource: r, count: n, err: err}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return snap, err
	}

	for _, res := range results {
		if res.err != nil {
			snap.Unknown[res.resource] = res.err.Error()
			m.metrics.UsageUnavailable(string(res.resource))
			m.log.Warn().
				Err(res.err).
				Str("tenant_id", tenantID.String()).
				Str("resource", string(res.resource)).
				Msg("usage count unavailable")
			continue
		}
		if res.count < 0 {
			snap.Unknown[res.resource] = "negative count"
			continue
		}
		snap.Counts[res.resource] = res.count
	}
	return snap, nil
}
