// Package app assembles the engine from configuration. Postgres, Redis and
// object storage are each optional; without a database URL the engine runs
// on the in-memory store.
package app

import (
	"context"
	"fmt"
	"time"

	"tenantcrm/internal/caching"
	"tenantcrm/internal/handlers"
	"tenantcrm/internal/jobs"
	"tenantcrm/internal/metrics"
	"tenantcrm/internal/middleware"
	"tenantcrm/internal/plans"
	"tenantcrm/internal/repositories"
	"tenantcrm/internal/repositories/memory"
	"tenantcrm/internal/services"
	"tenantcrm/internal/usage"
	"tenantcrm/pkg/config"
	"tenantcrm/pkg/database"
	"tenantcrm/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

const Version = "1.0.0"

type repos struct {
	subs      repositories.SubscriptionRepository
	tenants   repositories.TenantRepository
	payments  repositories.PaymentRepository
	resellers repositories.ResellerRepository
	roles     repositories.RoleRepository
	plans     repositories.PlanRepository
}

// App is the wired engine.
type App struct {
	Echo          *echo.Echo
	Subscriptions services.SubscriptionService
	Tenants       services.TenantService
	Resellers     services.ResellerService
	RBAC          services.RBACService
	Gate          services.GateService
	Plans         services.PlanService
	Reconcile     *jobs.ReconcileJob
	Registry      *prometheus.Registry
	// Memory is set when the engine runs without a database.
	Memory *memory.Store

	log     *logger.Logger
	closers []func()
}

type Option func(*options)

type options struct {
	clock func() time.Time
	pool  *pgxpool.Pool
}

// WithClock overrides the wall clock everywhere time is read.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.clock = now }
}

// WithPool reuses an existing pool instead of dialing DB.URL.
func WithPool(pool *pgxpool.Pool) Option {
	return func(o *options) { o.pool = pool }
}

func New(ctx context.Context, cfg *config.Config, log *logger.Logger, opts ...Option) (*App, error) {
	o := options{clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{log: log, Registry: prometheus.NewRegistry()}
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mx := metrics.New(a.Registry)
	checks := map[string]handlers.Checker{}

	var (
		r        repos
		counters []usage.Counter
	)
	pool := o.pool
	if pool == nil && cfg.DB.URL != "" {
		var err error
		if pool, err = database.NewPool(ctx, cfg.DB.URL); err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pool.Close)
	}
	if pool != nil {
		r = repos{
			subs:      repositories.NewSubscriptionRepo(pool),
			tenants:   repositories.NewTenantRepo(pool),
			payments:  repositories.NewPaymentRepo(pool),
			resellers: repositories.NewResellerRepo(pool),
			roles:     repositories.NewRoleRepo(pool),
			plans:     repositories.NewPlanRepo(pool),
		}
		counters = usage.PostgresCounters(pool)
		checks["database"] = pool.Ping
	} else {
		store := memory.NewStore().WithClock(o.clock)
		a.Memory = store
		r = repos{
			subs:      store.Subscriptions(),
			tenants:   store.Tenants(),
			payments:  store.Payments(),
			resellers: store.Resellers(),
			roles:     store.Roles(),
			plans:     store.Plans(),
		}
		for _, c := range store.UsageCounters() {
			counters = append(counters, c)
		}
		log.Warn().Msg("DATABASE_URL not set, using the in-memory store")
	}

	var (
		locker caching.TenantLocker = caching.NewLocalLocker(5 * time.Second)
		grants caching.GrantCache   = caching.NoopGrantCache{}
	)
	if cfg.Redis.Enabled() {
		client := caching.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		a.closers = append(a.closers, func() { _ = client.Close() })
		locker = caching.ChainLocker{locker, caching.NewRedisLocker(client, cfg.Redis.LockTTL, 5*time.Second)}
		grants = caching.NewRedisGrantCache(client)
		checks["redis"] = redisPing(client)
	}

	if cfg.Storage.Enabled() {
		mc, err := usage.NewMinioClient(cfg.Storage.Endpoint, cfg.Storage.AccessKey, cfg.Storage.SecretKey, cfg.Storage.UseSSL)
		if err != nil {
			a.Close()
			return nil, err
		}
		counters = append(counters, usage.NewStorageCounter(mc, cfg.Storage.Bucket))
		bucket := cfg.Storage.Bucket
		checks["storage"] = func(ctx context.Context) error {
			ok, err := mc.BucketExists(ctx, bucket)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("bucket %s does not exist", bucket)
			}
			return nil
		}
	}

	meter := usage.NewMeter(log, counters, usage.WithMetrics(mx), usage.WithClock(o.clock))
	catalog := plans.NewDefaultCatalog()

	a.Plans = services.NewPlanService(catalog, r.plans, r.subs, log)
	if err := a.Plans.Load(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to load plans: %w", err)
	}
	a.Subscriptions = services.NewSubscriptionService(r.subs, r.tenants, r.payments, catalog, locker,
		services.SubscriptionConfig{
			TrialDays: cfg.Subscription.TrialDays,
			TrialPlan: cfg.Subscription.TrialPlan,
			Currency:  cfg.Subscription.Currency,
		}, mx, log, o.clock)
	a.RBAC = services.NewRBACService(r.roles, grants, log)
	a.Tenants = services.NewTenantService(r.tenants, r.resellers, a.Subscriptions, a.RBAC, log, o.clock)
	a.Resellers = services.NewResellerService(r.resellers, r.tenants, r.subs, log)
	a.Gate = services.NewGateService(a.RBAC, r.tenants, r.subs, meter, mx, log, o.clock)
	a.Reconcile = jobs.NewReconcileJob(r.subs, a.Subscriptions, cfg.Subscription.ReconcileInterval, log, o.clock)

	auth, stopJWKS, err := middleware.JWT(middleware.JWTOptions{Secret: cfg.JWT.Secret, JWKSURL: cfg.JWT.JWKSURL})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, stopJWKS)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.RequestID())
	e.Use(middleware.RequestLogger(log))
	e.Use(echoMiddleware.CORS())
	e.Use(echoMiddleware.RemoveTrailingSlash())

	var webhooks *handlers.WebhookHandlers
	if cfg.Payments.WebhookSecret != "" {
		webhooks = handlers.NewWebhookHandlers(a.Subscriptions, cfg.Payments.WebhookSecret)
	} else {
		log.Info().Msg("PAYMENT_WEBHOOK_SECRET not set, payment webhook disabled")
	}

	handlers.Router{
		Auth:          auth,
		Gate:          middleware.NewGate(a.Gate, a.RBAC),
		Health:        handlers.NewHealthHandlers(Version, checks),
		Metrics:       handlers.Metrics(a.Registry),
		Subscriptions: handlers.NewSubscriptionHandlers(a.Subscriptions, a.Gate),
		Access:        handlers.NewAccessHandlers(a.Gate),
		Plans:         handlers.NewPlanHandlers(a.Plans),
		Roles:         handlers.NewRoleHandlers(a.RBAC),
		Admin:         handlers.NewAdminHandlers(a.Tenants, a.Subscriptions, a.Resellers, o.clock),
		Webhooks:      webhooks,
	}.Register(e)
	a.Echo = e

	return a, nil
}

func redisPing(client *redis.Client) handlers.Checker {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
