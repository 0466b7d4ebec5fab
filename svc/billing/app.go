package billing

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrymomot/freightbill/modules/billing"
	"github.com/dmitrymomot/freightbill/pkg/audit"
	"github.com/dmitrymomot/freightbill/pkg/billingmetrics"
	"github.com/dmitrymomot/freightbill/pkg/catalog"
	"github.com/dmitrymomot/freightbill/pkg/clientip"
	"github.com/dmitrymomot/freightbill/pkg/httpserver"
	"github.com/dmitrymomot/freightbill/pkg/invoicing"
	"github.com/dmitrymomot/freightbill/pkg/limits"
	"github.com/dmitrymomot/freightbill/pkg/logger"
	"github.com/dmitrymomot/freightbill/pkg/payment"
	"github.com/dmitrymomot/freightbill/pkg/pg"
	"github.com/dmitrymomot/freightbill/pkg/pgstore"
	"github.com/dmitrymomot/freightbill/pkg/promotion"
	"github.com/dmitrymomot/freightbill/pkg/ratelimiter"
	"github.com/dmitrymomot/freightbill/pkg/redis"
	"github.com/dmitrymomot/freightbill/pkg/requestid"
	"github.com/dmitrymomot/freightbill/pkg/scheduler"
	"github.com/dmitrymomot/freightbill/pkg/subscription"
	"github.com/dmitrymomot/freightbill/pkg/webhook"
)

// Scheduler job names.
const (
	JobSweep          = "subscription-sweep"
	JobMetricsRefresh = "metrics-refresh"
	JobDedupPrune     = "processed-events-prune"
)

// App is the assembled billing engine.
type App struct {
	Config        Config
	Catalog       *catalog.Catalog
	Promotions    *promotion.Registry
	Subscriptions *subscription.Service
	Limits        *limits.Service
	Metrics       *billingmetrics.Aggregator
	Collector     *billingmetrics.Collector
	Registry      *prometheus.Registry
	Scheduler     *scheduler.Scheduler
	Audit         audit.Storage

	backends  *backends
	logger    *slog.Logger
	probes    []httpserver.Probe
	rateLimit func(http.Handler) http.Handler
	close     func()
}

// New builds every component selected by cfg. Close releases the
// connections it opened.
func New(ctx context.Context, cfg Config, log *slog.Logger, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	cat, err := catalog.NewCatalog(ctx, planSource(cfg.PlansFile))
	if err != nil {
		return nil, errors.Join(ErrCatalogLoad, err)
	}

	b, closeBackends, err := openBackends(ctx, cfg, o)
	if err != nil {
		return nil, err
	}

	gateway, err := payment.New(cfg.Payment,
		payment.WithLogger(log),
		payment.WithClock(o.now),
		payment.WithCheckoutTTL(cfg.Policy.CheckoutTTL),
	)
	if err != nil {
		closeBackends()
		return nil, errors.Join(ErrInvalidConfig, err)
	}
	if gateway == nil {
		log.WarnContext(ctx, "no payment provider configured, checkouts are disabled")
	}

	notifier, err := invoiceNotifier(cfg, b, log)
	if err != nil {
		closeBackends()
		return nil, err
	}

	registry := promotion.NewRegistry(b.promotions, cat,
		promotion.WithClock(o.now),
		promotion.WithLogger(log),
	)

	svc := subscription.NewService(cat, registry, b.subscriptions,
		subscription.WithCheckoutStore(b.checkouts),
		subscription.WithPaymentLedger(b.payments),
		subscription.WithDeduplicator(b.dedup),
		subscription.WithLocker(b.locker),
		subscription.WithPaymentGateway(gateway),
		subscription.WithInvoiceNotifier(notifier),
		subscription.WithAuditLogger(audit.NewLogger(b.audit,
			audit.WithRequestIDExtractor(requestid.FromContext),
			audit.WithClock(o.now),
		)),
		subscription.WithPolicy(cfg.Policy),
		subscription.WithClock(o.now),
		subscription.WithLogger(log),
	)

	entitlements := limits.NewService(svc, cat, limits.StoreCounters(b.usage, o.now),
		limits.WithUsageStore(b.usage),
		limits.WithLocker(b.locker, cfg.Policy.LockTTL),
		limits.WithClock(o.now),
		limits.WithLogger(log),
	)

	agg := billingmetrics.NewAggregator(svc,
		billingmetrics.WithOptions(cfg.Metrics),
		billingmetrics.WithClock(o.now),
	)
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector, err := billingmetrics.NewCollector(agg, reg, log)
	if err != nil {
		closeBackends()
		return nil, err
	}

	var throttle func(http.Handler) http.Handler
	if cfg.RateLimit.Enabled {
		bucket, err := ratelimiter.NewBucket(b.rates, cfg.RateLimit)
		if err != nil {
			closeBackends()
			return nil, errors.Join(ErrInvalidConfig, err)
		}
		throttle = ratelimiter.Middleware(bucket, "promotions",
			ratelimiter.Composite(ratelimiter.ByHeader("X-Tenant-ID"), ratelimiter.ByClientIP()),
			log,
		)
	}

	app := &App{
		Config:        cfg,
		Catalog:       cat,
		Promotions:    registry,
		Subscriptions: svc,
		Limits:        entitlements,
		Metrics:       agg,
		Collector:     collector,
		Registry:      reg,
		Audit:         b.audit,
		backends:      b,
		logger:        log,
		rateLimit:     throttle,
		close:         closeBackends,
	}
	if b.pool != nil {
		app.probes = append(app.probes, httpserver.Probe{Name: "postgres", Check: pg.Healthcheck(b.pool)})
	}
	if b.redis != nil {
		app.probes = append(app.probes, httpserver.Probe{Name: "redis", Check: redis.Healthcheck(b.redis)})
	}

	app.Scheduler = scheduler.New(
		scheduler.WithLogger(log),
		scheduler.WithClock(o.now),
	)
	if err := app.registerJobs(); err != nil {
		closeBackends()
		return nil, err
	}

	log.InfoContext(ctx, "billing engine assembled",
		slog.String("storage", cfg.StorageBackend),
		slog.String("locks", cfg.LockBackend),
		slog.Bool("redis", cfg.RedisEnabled),
		slog.Bool("rate_limit", cfg.RateLimit.Enabled),
		slog.String("payment_provider", cfg.Payment.Provider),
		slog.Int("plans", len(cat.ActivePlans())),
	)
	return app, nil
}

// invoiceNotifier fans price commitments out to the invoicing webhook and
// the Redis stream, whichever are configured.
func invoiceNotifier(cfg Config, b *backends, log *slog.Logger) (subscription.InvoiceNotifier, error) {
	var fan invoicing.Fanout
	if cfg.InvoiceWebhookURL != "" {
		sender := webhook.NewSender(
			webhook.WithSecret(cfg.InvoiceWebhookSecret),
			webhook.WithCircuitBreaker(webhook.NewCircuitBreaker(5, 2, 30*time.Second)),
		)
		n, err := invoicing.NewHTTPNotifier(cfg.InvoiceWebhookURL, sender, log)
		if err != nil {
			return nil, errors.Join(ErrInvalidConfig, err)
		}
		fan = append(fan, n)
	}
	if b.redis != nil {
		fan = append(fan, invoicing.NewStreamNotifier(b.redis, invoicing.WithStream(cfg.InvoiceStream)))
	}
	if len(fan) == 0 {
		return nil, nil
	}
	return fan, nil
}

func (a *App) registerJobs() error {
	err := a.Scheduler.AddJob(JobSweep, scheduler.EveryInterval(a.Config.SweepInterval), func(ctx context.Context) error {
		report, err := a.Subscriptions.Sweep(ctx)
		if err != nil {
			return err
		}
		a.logger.InfoContext(ctx, "subscription sweep finished",
			logger.Component("sweep"),
			slog.Int("scanned", report.Scanned),
			slog.Int("changed", report.Changed),
			slog.Int("failed", report.Failed),
			logger.Duration(report.Elapsed),
		)
		return nil
	})
	if err != nil {
		return err
	}

	err = a.Scheduler.AddJob(JobMetricsRefresh, scheduler.EveryInterval(a.Config.MetricsRefreshInterval), func(ctx context.Context) error {
		_, err := a.Collector.Refresh(ctx)
		return err
	})
	if err != nil {
		return err
	}

	if a.backends.prune != nil && a.Config.DedupRetention > 0 {
		return a.Scheduler.AddJob(JobDedupPrune, scheduler.DailyAt(3, 0), func(ctx context.Context) error {
			n, err := a.backends.prune.Prune(ctx, a.Config.DedupRetention)
			if err != nil {
				return err
			}
			a.logger.InfoContext(ctx, "processed events pruned", slog.Int64("removed", n))
			return nil
		})
	}
	return nil
}

// Router serves the billing API under /api/v1 next to health and metrics
// endpoints.
func (a *App) Router() http.Handler {
	h := billing.NewHandler(a.Subscriptions, a.Catalog, a.Promotions,
		billing.WithAdminTokens(a.Config.AdminTokens...),
		billing.WithSignatureHeader(payment.SignatureHeader(a.Config.Payment.Provider)),
		billing.WithMetrics(a.Metrics),
		billing.WithAuditStorage(a.Audit),
		billing.WithLimits(a.Limits),
		billing.WithRateLimit(a.rateLimit),
		billing.WithLogger(a.logger),
	)

	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(clientip.Middleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", httpserver.LivenessHandler())
	r.Get("/readyz", httpserver.ReadinessHandler(a.logger, a.probes...))
	r.Handle("/metrics", promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{Registry: a.Registry}))
	r.Mount("/api/v1", billing.Router(h))
	return r
}

// Migrate applies the Postgres schema. It is a no-op for the memory backend.
func (a *App) Migrate(ctx context.Context) (int64, error) {
	if a.backends.pool == nil {
		return 0, nil
	}
	v, err := pg.Migrate(ctx, a.backends.pool, pgstore.Migrations, pgstore.MigrationsDir, a.Config.Postgres, a.logger)
	if err != nil {
		return 0, errors.Join(ErrMigrationFailed, err)
	}
	return v, nil
}

// Close releases connections opened by New.
func (a *App) Close() {
	if a.close != nil {
		a.close()
	}
}
