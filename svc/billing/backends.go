package billing

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/freightbill/pkg/audit"
	"github.com/dmitrymomot/freightbill/pkg/limits"
	"github.com/dmitrymomot/freightbill/pkg/pg"
	"github.com/dmitrymomot/freightbill/pkg/pgstore"
	"github.com/dmitrymomot/freightbill/pkg/promotion"
	"github.com/dmitrymomot/freightbill/pkg/ratelimiter"
	"github.com/dmitrymomot/freightbill/pkg/redis"
	"github.com/dmitrymomot/freightbill/pkg/redisstore"
	"github.com/dmitrymomot/freightbill/pkg/subscription"
	"github.com/dmitrymomot/freightbill/pkg/tenantlock"
)

// pruner drops processed-event ids older than the retention window.
type pruner interface {
	Prune(ctx context.Context, age time.Duration) (int64, error)
}

// backends is the storage selected by Config.
type backends struct {
	subscriptions subscription.Store
	checkouts     subscription.CheckoutStore
	payments      subscription.PaymentLedger
	dedup         subscription.Deduplicator
	promotions    promotion.Store
	audit         audit.Storage
	usage         limits.UsageStore
	rates         ratelimiter.Store
	locker        tenantlock.Locker
	prune         pruner

	pool  *pgxpool.Pool
	redis goredis.UniversalClient
}

// openBackends dials what cfg needs and returns a closer for the connections
// it opened itself.
func openBackends(ctx context.Context, cfg Config, o options) (*backends, func(), error) {
	b := &backends{pool: o.pool, redis: o.redis}
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.usesPostgres() && b.pool == nil {
		pool, err := pg.Connect(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, errors.Join(ErrBackendConnect, err)
		}
		b.pool = pool
		closers = append(closers, pool.Close)
	}
	if cfg.RedisEnabled && b.redis == nil {
		client, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			closeAll()
			return nil, nil, errors.Join(ErrBackendConnect, err)
		}
		b.redis = client
		closers = append(closers, func() { _ = client.Close() })
	}

	if cfg.usesPostgres() {
		dedup := pgstore.NewDeduplicator(b.pool)
		b.subscriptions = pgstore.NewSubscriptionStore(b.pool)
		b.checkouts = pgstore.NewCheckoutStore(b.pool)
		b.payments = pgstore.NewPaymentLedger(b.pool)
		b.dedup = dedup
		b.prune = dedup
		b.promotions = pgstore.NewPromotionStore(b.pool)
		b.audit = pgstore.NewAuditStorage(b.pool)
		b.usage = pgstore.NewUsageStore(b.pool)
	} else {
		b.subscriptions = subscription.NewMemoryStore()
		b.checkouts = subscription.NewMemoryCheckoutStore()
		b.payments = subscription.NewMemoryPaymentLedger()
		b.dedup = subscription.NewMemoryDeduplicator(cfg.DedupRetention)
		b.promotions = promotion.NewMemoryStore()
		b.audit = audit.NewMemoryStorage()
		b.usage = limits.NewMemoryUsageStore()
	}
	b.rates = ratelimiter.NewMemoryStore(ratelimiter.WithClock(o.now))

	if cfg.RedisEnabled {
		prefix := cfg.Redis.KeyPrefix
		b.checkouts = redisstore.NewCheckoutStore(b.redis, prefix)
		b.dedup = redisstore.NewDeduplicator(b.redis, prefix, cfg.DedupRetention)
		b.prune = nil
		b.promotions = redisstore.NewPromotionStore(b.redis, prefix)
		b.usage = redisstore.NewUsageStore(b.redis, prefix)
		b.rates = redisstore.NewRateLimitStore(b.redis, prefix).WithClock(o.now)
	}

	switch cfg.LockBackend {
	case BackendRedis:
		b.locker = redisstore.NewLocker(b.redis, cfg.Redis.KeyPrefix)
	case BackendPostgres:
		b.locker = pgstore.NewAdvisoryLocker(b.pool)
	default:
		b.locker = tenantlock.NewMemory()
	}

	return b, closeAll, nil
}
