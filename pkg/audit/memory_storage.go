package audit

import (
	"context"
	"maps"
	"sync"
)

// MemoryStorage keeps events in insertion order.
type MemoryStorage struct {
	mu     sync.RWMutex
	events []Event
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (s *MemoryStorage) Store(ctx context.Context, events ...Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range events {
		ev.Metadata = maps.Clone(ev.Metadata)
		s.events = append(s.events, ev)
	}
	return nil
}

// Query returns matching events, newest first.
func (s *MemoryStorage) Query(ctx context.Context, f Filter) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Event
	for i := len(s.events) - 1; i >= 0; i-- {
		ev := s.events[i]
		if f.TenantID != "" && ev.TenantID != f.TenantID {
			continue
		}
		if f.Action != "" && ev.Action != f.Action {
			continue
		}
		if !f.Since.IsZero() && ev.CreatedAt.Before(f.Since) {
			continue
		}
		ev.Metadata = maps.Clone(ev.Metadata)
		out = append(out, ev)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}
