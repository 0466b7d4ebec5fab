package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultDedupTTL bounds how long a processed event ID is remembered.
// Collaborators stop redelivering well before that.
const DefaultDedupTTL = 30 * 24 * time.Hour

// Deduplicator implements subscription.Deduplicator with SET NX.
type Deduplicator struct {
	client redis.UniversalClient
	keys   keyspace
	ttl    time.Duration
}

func NewDeduplicator(client redis.UniversalClient, prefix string, ttl time.Duration) *Deduplicator {
	mustClient(client)
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	return &Deduplicator{client: client, keys: newKeyspace(prefix), ttl: ttl}
}

func (d *Deduplicator) Reserve(ctx context.Context, id string) (bool, error) {
	ok, err := d.client.SetNX(ctx, d.keys.key("dedup", id), time.Now().UTC().Format(time.RFC3339), d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("reserve %s: %w", id, err)
	}
	return ok, nil
}

func (d *Deduplicator) Release(ctx context.Context, id string) error {
	if err := d.client.Del(ctx, d.keys.key("dedup", id)).Err(); err != nil {
		return fmt.Errorf("release %s: %w", id, err)
	}
	return nil
}
