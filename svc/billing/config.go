package billing

import (
	"fmt"
	"slices"
	"time"

	"github.com/dmitrymomot/freightbill/pkg/billingmetrics"
	"github.com/dmitrymomot/freightbill/pkg/httpserver"
	"github.com/dmitrymomot/freightbill/pkg/payment"
	"github.com/dmitrymomot/freightbill/pkg/pg"
	"github.com/dmitrymomot/freightbill/pkg/ratelimiter"
	"github.com/dmitrymomot/freightbill/pkg/redis"
	"github.com/dmitrymomot/freightbill/pkg/subscription"
)

// Storage and lock backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config is loaded with config.Load. Nested structs carry their own env tags.
type Config struct {
	AppEnv      string   `env:"APP_ENV" envDefault:"development"`
	ServiceName string   `env:"SERVICE_NAME" envDefault:"billingd"`
	LogLevel    string   `env:"LOG_LEVEL" envDefault:"info"`
	AdminTokens []string `env:"ADMIN_TOKENS" envSeparator:","`

	// StorageBackend holds subscriptions, payments, audit events, checkouts,
	// processed events and promotions.
	StorageBackend string `env:"STORAGE_BACKEND" envDefault:"memory"`
	// LockBackend serializes writes per tenant.
	LockBackend string `env:"LOCK_BACKEND" envDefault:"memory"`
	// RedisEnabled moves checkouts, processed events and promotions to Redis
	// and publishes price commitments to a Redis stream.
	RedisEnabled bool `env:"REDIS_ENABLED" envDefault:"false"`

	// PlansFile overrides the embedded plan catalog.
	PlansFile string `env:"PLANS_FILE"`

	SweepInterval          time.Duration `env:"SWEEP_INTERVAL" envDefault:"1h"`
	MetricsRefreshInterval time.Duration `env:"METRICS_REFRESH_INTERVAL" envDefault:"1m"`
	DedupRetention         time.Duration `env:"DEDUP_RETENTION" envDefault:"720h"`

	InvoiceWebhookURL    string `env:"INVOICE_WEBHOOK_URL"`
	InvoiceWebhookSecret string `env:"INVOICE_WEBHOOK_SECRET"`
	InvoiceStream        string `env:"INVOICE_STREAM"`

	Payment  payment.Config
	Policy   subscription.Policy
	Metrics  billingmetrics.Options
	Postgres pg.Config
	Redis    redis.Config
	HTTP     httpserver.Config
	// RateLimit throttles promotion code lookups and checkouts per tenant
	// and client address.
	RateLimit ratelimiter.Config
}

// Validate checks backend selections before anything is dialed.
func (c Config) Validate() error {
	if !slices.Contains([]string{BackendMemory, BackendPostgres}, c.StorageBackend) {
		return fmt.Errorf("%w: unknown storage backend %q", ErrInvalidConfig, c.StorageBackend)
	}
	if !slices.Contains([]string{BackendMemory, BackendPostgres, BackendRedis}, c.LockBackend) {
		return fmt.Errorf("%w: unknown lock backend %q", ErrInvalidConfig, c.LockBackend)
	}
	if c.LockBackend == BackendRedis && !c.RedisEnabled {
		return fmt.Errorf("%w: redis lock backend requires REDIS_ENABLED", ErrInvalidConfig)
	}
	if c.LockBackend == BackendPostgres && c.StorageBackend != BackendPostgres {
		return fmt.Errorf("%w: postgres lock backend requires postgres storage", ErrInvalidConfig)
	}
	if c.SweepInterval <= 0 || c.MetricsRefreshInterval <= 0 {
		return fmt.Errorf("%w: scheduler intervals must be positive", ErrInvalidConfig)
	}
	return nil
}

func (c Config) usesPostgres() bool { return c.StorageBackend == BackendPostgres }
