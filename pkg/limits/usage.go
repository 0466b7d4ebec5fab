package limits

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// UsageStore keeps reported usage per tenant, resource and period. Period is
// empty for resources that never reset.
type UsageStore interface {
	Add(ctx context.Context, tenantID uuid.UUID, res Resource, period string, delta int64) (int64, error)
	Get(ctx context.Context, tenantID uuid.UUID, res Resource, period string) (int64, error)
}

// Period returns the usage bucket of res at t: "2006-01" for monthly
// resources and "" otherwise.
func Period(res Resource, t time.Time) string {
	if res.Monthly() {
		return t.UTC().Format("2006-01")
	}
	return ""
}

// StoreCounters registers a counter for every resource reading from store.
func StoreCounters(store UsageStore, now func() time.Time) CounterRegistry {
	if now == nil {
		now = time.Now
	}
	reg := NewRegistry()
	for _, res := range Resources {
		reg.Register(res, func(ctx context.Context, tenantID uuid.UUID) (int64, error) {
			return store.Get(ctx, tenantID, res, Period(res, now()))
		})
	}
	return reg
}

type usageKey struct {
	tenant uuid.UUID
	res    Resource
	period string
}

type memoryUsageStore struct {
	mu     sync.Mutex
	values map[usageKey]int64
}

// NewMemoryUsageStore returns a process-local UsageStore. Counters never go
// below zero.
func NewMemoryUsageStore() UsageStore {
	return &memoryUsageStore{values: make(map[usageKey]int64)}
}

func (m *memoryUsageStore) Add(_ context.Context, tenantID uuid.UUID, res Resource, period string, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := usageKey{tenantID, res, period}
	v := max(m.values[k]+delta, 0)
	m.values[k] = v
	return v, nil
}

func (m *memoryUsageStore) Get(_ context.Context, tenantID uuid.UUID, res Resource, period string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[usageKey{tenantID, res, period}], nil
}
