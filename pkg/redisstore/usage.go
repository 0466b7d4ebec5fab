package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/freightbill/pkg/limits"
)

// periodTTL keeps a monthly bucket around for a while after its month ends.
const periodTTL = 62 * 24 * time.Hour

// addUsage increments a counter, clamps it at zero and sets the expiry of
// periodic buckets. KEYS[1] counter; ARGV[1] delta; ARGV[2] ttl ms, 0 for none.
var addUsage = redis.NewScript(`
local v = redis.call("INCRBY", KEYS[1], ARGV[1])
if v < 0 then
	v = redis.call("INCRBY", KEYS[1], -v)
end
local ttl = tonumber(ARGV[2])
if ttl > 0 and redis.call("PTTL", KEYS[1]) < 0 then
	redis.call("PEXPIRE", KEYS[1], ttl)
end
return v
`)

// UsageStore implements limits.UsageStore with INCRBY counters.
type UsageStore struct {
	client redis.UniversalClient
	keys   keyspace
}

func NewUsageStore(client redis.UniversalClient, prefix string) *UsageStore {
	mustClient(client)
	return &UsageStore{client: client, keys: newKeyspace(prefix)}
}

func (s *UsageStore) key(tenantID uuid.UUID, res limits.Resource, period string) string {
	if period == "" {
		return s.keys.key("usage", tenantID.String(), string(res))
	}
	return s.keys.key("usage", tenantID.String(), string(res), period)
}

func (s *UsageStore) Add(ctx context.Context, tenantID uuid.UUID, res limits.Resource, period string, delta int64) (int64, error) {
	var ttl int64
	if period != "" {
		ttl = periodTTL.Milliseconds()
	}
	v, err := addUsage.Run(ctx, s.client, []string{s.key(tenantID, res, period)}, delta, ttl).Int64()
	if err != nil {
		return 0, fmt.Errorf("add %s usage: %w", res, err)
	}
	return v, nil
}

func (s *UsageStore) Get(ctx context.Context, tenantID uuid.UUID, res limits.Resource, period string) (int64, error) {
	v, err := s.client.Get(ctx, s.key(tenantID, res, period)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get %s usage: %w", res, err)
	}
	return v, nil
}
