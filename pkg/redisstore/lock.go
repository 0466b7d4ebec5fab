package redisstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/freightbill/pkg/tenantlock"
)

// DefaultLockTTL applies when Acquire is called without a ttl.
const DefaultLockTTL = 30 * time.Second

// unlockScript deletes the key only while it still holds our token, so a
// holder whose lock expired cannot release the next holder's lock.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker implements tenantlock.Locker with SET NX PX and polling.
type Locker struct {
	client redis.UniversalClient
	keys   keyspace
	poll   time.Duration
}

func NewLocker(client redis.UniversalClient, prefix string) *Locker {
	mustClient(client)
	return &Locker{client: client, keys: newKeyspace(prefix), poll: 25 * time.Millisecond}
}

// Acquire blocks until the lock is held or ctx is done.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	k := l.keys.key("lock", key)
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, k, token, ttl).Result()
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return nil, errors.Join(tenantlock.ErrLockNotAcquired, fmt.Errorf("acquire %s: %w", key, err))
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, errors.Join(tenantlock.ErrLockNotAcquired, fmt.Errorf("acquire %s: %w", key, ctx.Err()))
		case <-time.After(l.poll):
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The caller's ctx may already be cancelled.
			_ = unlockScript.Run(context.Background(), l.client, []string{k}, token).Err()
		})
	}, nil
}
