// Package jobs runs the periodic reconcile sweep. The sweep only persists
// expiries that reads already apply lazily, so a stopped scheduler never
// changes what tenants can do.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"tenantcrm/internal/models"
	"tenantcrm/pkg/logger"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
)

// DueLister finds tenants whose stored status is behind the clock.
type DueLister interface {
	ListDueForReconcile(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
}

type Reconciler interface {
	Reconcile(ctx context.Context, tenantID uuid.UUID) (*models.Subscription, error)
}

type SweepResult struct {
	Scanned int
	Expired int
	Failed  int
}

type ReconcileJob struct {
	due       DueLister
	subs      Reconciler
	batch     int
	interval  time.Duration
	now       func() time.Time
	log       *logger.Logger
	scheduler gocron.Scheduler
	mu        sync.Mutex
}

func NewReconcileJob(due DueLister, subs Reconciler, interval time.Duration, log *logger.Logger, clock func() time.Time) *ReconcileJob {
	if clock == nil {
		clock = time.Now
	}
	return &ReconcileJob{
		due:      due,
		subs:     subs,
		batch:    500,
		interval: interval,
		now:      clock,
		log:      log.Component("reconcile"),
	}
}

// RunOnce reconciles one batch of due tenants. A tenant that fails is
// logged and skipped; it is picked up again by the next run.
func (j *ReconcileJob) RunOnce(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	ids, err := j.due.ListDueForReconcile(ctx, j.now(), j.batch)
	if err != nil {
		return res, fmt.Errorf("failed to list due subscriptions: %w", err)
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Scanned++
		sub, err := j.subs.Reconcile(ctx, id)
		if err != nil {
			res.Failed++
			ev := j.log.Warn()
			if !errors.Is(err, models.ErrConflict) {
				ev = j.log.Error()
			}
			ev.Err(err).Str("tenant_id", id.String()).Msg("reconcile failed")
			continue
		}
		if sub.Status == models.StatusExpired {
			res.Expired++
		}
	}

	if res.Scanned > 0 {
		j.log.Info().Int("scanned", res.Scanned).Int("expired", res.Expired).Int("failed", res.Failed).Msg("reconcile sweep finished")
	}
	return res, nil
}

// Start schedules RunOnce every interval. Overlapping runs are skipped.
func (j *ReconcileJob) Start(ctx context.Context) error {
	if j.interval <= 0 {
		return fmt.Errorf("%w: reconcile interval must be positive", models.ErrInvalidInput)
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.scheduler != nil {
		return nil
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	_, err = s.NewJob(
		gocron.DurationJob(j.interval),
		gocron.NewTask(func() {
			if _, err := j.RunOnce(ctx); err != nil && ctx.Err() == nil {
				j.log.Error().Err(err).Msg("reconcile sweep failed")
			}
		}),
		gocron.WithName("subscription-reconcile"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to register reconcile job: %w", err)
	}

	s.Start()
	j.scheduler = s
	j.log.Info().Dur("interval", j.interval).Msg("reconcile scheduler started")
	return nil
}

func (j *ReconcileJob) Stop() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.scheduler == nil {
		return nil
	}
	err := j.scheduler.Shutdown()
	j.scheduler = nil
	return err
}
