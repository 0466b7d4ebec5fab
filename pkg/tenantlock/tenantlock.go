// Package tenantlock serializes read-modify-write cycles on a single tenant's
// subscription. Different tenants never block each other.
package tenantlock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var ErrLockNotAcquired = errors.New("tenant lock not acquired")

// Locker obtains an exclusive lock on a key. Acquire blocks until the lock is
// held or ctx is done. The returned release func is safe to call more than once.
//
// ttl bounds how long a lock may outlive a crashed holder; backends without
// expiry support ignore it.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// Key builds the lock key for a tenant.
func Key(tenantID fmt.Stringer) string {
	return "tenant:" + tenantID.String()
}

type entry struct {
	sem  chan struct{}
	refs int
}

// Memory is a process-local Locker backed by one semaphore per key.
type Memory struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]*entry)}
}

func (m *Memory) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	e := m.ref(key)

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		m.unref(key)
		return nil, errors.Join(ErrLockNotAcquired, fmt.Errorf("acquire %s: %w", key, ctx.Err()))
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			m.unref(key)
		})
	}, nil
}

func (m *Memory) ref(key string) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		m.entries[key] = e
	}
	e.refs++
	return e
}

func (m *Memory) unref(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return
	}
	e.refs--
	if e.refs == 0 {
		delete(m.entries, key)
	}
}
