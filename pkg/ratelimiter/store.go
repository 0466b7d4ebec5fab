package ratelimiter

import (
	"context"
	"time"
)

// Store keeps bucket state. redisstore.RateLimitStore shares it across
// instances.
type Store interface {
	// ConsumeTokens refills the bucket for key, takes tokens and returns
	// what is left, possibly negative, and when the next refill happens.
	ConsumeTokens(ctx context.Context, key string, tokens int, cfg Config) (remaining int, resetAt time.Time, err error)
	Reset(ctx context.Context, key string) error
}
