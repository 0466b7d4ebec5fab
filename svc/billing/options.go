package billing

import (
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
)

// Option configures New.
type Option func(*options)

type options struct {
	now   func() time.Time
	pool  *pgxpool.Pool
	redis goredis.UniversalClient
}

// WithClock overrides the time source of every component, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithPostgresPool reuses an open pool instead of dialing Config.Postgres.
// The App does not close it.
func WithPostgresPool(pool *pgxpool.Pool) Option {
	return func(o *options) { o.pool = pool }
}

// WithRedisClient reuses an open client instead of dialing Config.Redis.
// The App does not close it.
func WithRedisClient(client goredis.UniversalClient) Option {
	return func(o *options) { o.redis = client }
}
