package subscription

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryStore struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*Subscription
	current map[uuid.UUID]uuid.UUID
}

// NewMemoryStore returns a process-local Store.
func NewMemoryStore() Store {
	return &memoryStore{
		records: make(map[uuid.UUID]*Subscription),
		current: make(map[uuid.UUID]uuid.UUID),
	}
}

func (s *memoryStore) Get(ctx context.Context, tenantID uuid.UUID) (*Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.current[tenantID]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	return s.records[id].Clone(), nil
}

func (s *memoryStore) Save(ctx context.Context, sub *Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if curID, ok := s.current[sub.TenantID]; ok && curID != sub.ID {
		if cur := s.records[curID]; cur.Status != StatusCancelled {
			return ErrSubscriptionAlreadyExists
		}
	}
	s.records[sub.ID] = sub.Clone()
	s.current[sub.TenantID] = sub.ID
	return nil
}

func (s *memoryStore) List(ctx context.Context, f ListFilter) ([]*Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Subscription, 0, len(s.records))
	for _, sub := range s.records {
		if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, sub.Status) {
			continue
		}
		out = append(out, sub.Clone())
	}
	slices.SortFunc(out, func(a, b *Subscription) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID.String(), b.ID.String()))
	})
	return out, nil
}

type memoryCheckouts struct {
	mu        sync.Mutex
	checkouts map[uuid.UUID]Checkout
}

func NewMemoryCheckoutStore() CheckoutStore {
	return &memoryCheckouts{checkouts: make(map[uuid.UUID]Checkout)}
}

func (s *memoryCheckouts) Save(ctx context.Context, c Checkout) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.Discount = clonePtr(c.Discount)
	s.checkouts[c.TenantID] = c
	return nil
}

func (s *memoryCheckouts) Get(ctx context.Context, tenantID uuid.UUID) (*Checkout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.checkouts[tenantID]
	if !ok {
		return nil, ErrCheckoutNotFound
	}
	c.Discount = clonePtr(c.Discount)
	return &c, nil
}

func (s *memoryCheckouts) Delete(ctx context.Context, tenantID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.checkouts, tenantID)
	return nil
}

type memoryLedger struct {
	mu       sync.RWMutex
	payments []Payment
}

func NewMemoryPaymentLedger() PaymentLedger {
	return &memoryLedger{}
}

func (l *memoryLedger) Record(ctx context.Context, p Payment) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.payments = append(l.payments, p)
	return nil
}

func (l *memoryLedger) List(ctx context.Context, f PaymentFilter) ([]Payment, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Payment
	for _, p := range l.payments {
		if f.TenantID != uuid.Nil && p.TenantID != f.TenantID {
			continue
		}
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if !f.Since.IsZero() && p.OccurredAt.Before(f.Since) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

type memoryDedup struct {
	mu   sync.Mutex
	ttl  time.Duration
	now  func() time.Time
	seen map[string]time.Time
}

// NewMemoryDeduplicator remembers ids for ttl. A zero ttl keeps them forever.
func NewMemoryDeduplicator(ttl time.Duration) Deduplicator {
	return &memoryDedup{ttl: ttl, now: time.Now, seen: make(map[string]time.Time)}
}

func (d *memoryDedup) Reserve(ctx context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if at, ok := d.seen[id]; ok && (d.ttl == 0 || now.Sub(at) < d.ttl) {
		return false, nil
	}
	d.seen[id] = now
	return true, nil
}

func (d *memoryDedup) Release(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, id)
	return nil
}
