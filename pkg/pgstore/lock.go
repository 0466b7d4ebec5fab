package pgstore

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/freightbill/pkg/tenantlock"
)

// AdvisoryLocker implements tenantlock.Locker with session-level advisory
// locks. The lock lives as long as the pooled connection that took it; ttl is
// ignored because PostgreSQL releases it when that session ends.
type AdvisoryLocker struct {
	pool *pgxpool.Pool
}

func NewAdvisoryLocker(pool *pgxpool.Pool) *AdvisoryLocker {
	if pool == nil {
		panic("pgstore: pool is required")
	}
	return &AdvisoryLocker{pool: pool}
}

func (l *AdvisoryLocker) Acquire(ctx context.Context, key string, _ time.Duration) (func(), error) {
	id := lockID(key)

	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, errors.Join(tenantlock.ErrLockNotAcquired, fmt.Errorf("acquire connection for %s: %w", key, err))
	}
	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock($1)`, id); err != nil {
		conn.Release()
		return nil, errors.Join(tenantlock.ErrLockNotAcquired, fmt.Errorf("acquire %s: %w", key, err))
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			if _, err := conn.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, id); err != nil {
				// A session we cannot unlock must not go back to the pool holding the lock.
				_ = conn.Conn().Close(context.Background())
			}
			conn.Release()
		})
	}, nil
}

// lockID hashes key with FNV-1a into the non-negative int64 range.
func lockID(key string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return int64(h.Sum64() & 0x7FFFFFFFFFFFFFFF)
}
