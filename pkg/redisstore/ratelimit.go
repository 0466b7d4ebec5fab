package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/freightbill/pkg/ratelimiter"
)

// consumeTokens refills and consumes a token bucket stored as a hash.
// KEYS[1] bucket; ARGV: capacity, refill rate, interval ms, now ms, tokens, ttl ms.
// Returns {remaining, reset_at_ms}.
var consumeTokens = redis.NewScript(`
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local interval = tonumber(ARGV[3])
local now = tonumber(ARGV[4])
local n = tonumber(ARGV[5])

local tokens = tonumber(redis.call("HGET", KEYS[1], "tokens"))
local last = tonumber(redis.call("HGET", KEYS[1], "last"))
if tokens == nil or last == nil then
	tokens = capacity
	last = now
end

local intervals = math.floor((now - last) / interval)
local cap_intervals = math.floor(capacity / rate) + 1
if intervals > cap_intervals then intervals = cap_intervals end
if intervals > 0 then
	tokens = math.min(tokens + intervals * rate, capacity)
	last = now
end

local remaining
if tokens < n then
	remaining = tokens - n
else
	tokens = tokens - n
	remaining = tokens
end

redis.call("HSET", KEYS[1], "tokens", tokens, "last", last)
redis.call("PEXPIRE", KEYS[1], ARGV[6])
return {remaining, last + interval}
`)

// RateLimitStore implements ratelimiter.Store so every instance shares the
// same buckets.
type RateLimitStore struct {
	client redis.UniversalClient
	keys   keyspace
	now    func() time.Time
}

func NewRateLimitStore(client redis.UniversalClient, prefix string) *RateLimitStore {
	mustClient(client)
	return &RateLimitStore{client: client, keys: newKeyspace(prefix), now: time.Now}
}

// WithClock overrides the time source, mainly for tests.
func (s *RateLimitStore) WithClock(now func() time.Time) *RateLimitStore {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *RateLimitStore) ConsumeTokens(ctx context.Context, key string, tokens int, cfg ratelimiter.Config) (int, time.Time, error) {
	interval := cfg.RefillInterval.Milliseconds()
	ttl := interval * int64(cfg.Capacity/cfg.RefillRate+1)
	res, err := consumeTokens.Run(ctx, s.client, []string{s.keys.key("ratelimit", key)},
		cfg.Capacity, cfg.RefillRate, interval, s.now().UnixMilli(), tokens, ttl,
	).Int64Slice()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("consume tokens for %s: %w", key, err)
	}
	if len(res) != 2 {
		return 0, time.Time{}, fmt.Errorf("consume tokens for %s: unexpected reply %v", key, res)
	}
	return int(res[0]), time.UnixMilli(res[1]), nil
}

func (s *RateLimitStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.keys.key("ratelimit", key)).Err(); err != nil {
		return fmt.Errorf("reset %s: %w", key, err)
	}
	return nil
}
