package promotion

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
)

type memoryStore struct {
	mu         sync.Mutex
	promotions map[string]Promotion
	tenantUses map[string]map[uuid.UUID]int64
}

// NewMemoryStore returns a Store kept in process memory. Redemptions are
// serialized by a single mutex.
func NewMemoryStore() Store {
	return &memoryStore{
		promotions: make(map[string]Promotion),
		tenantUses: make(map[string]map[uuid.UUID]int64),
	}
}

func (s *memoryStore) Create(ctx context.Context, p Promotion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.promotions[p.Code]; ok {
		return ErrPromotionExists
	}
	s.promotions[p.Code] = p.Clone()
	return nil
}

func (s *memoryStore) Update(ctx context.Context, p Promotion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.promotions[p.Code]
	if !ok {
		return ErrPromotionNotFound
	}
	next := p.Clone()
	next.UsesCount = current.UsesCount
	next.CreatedAt = current.CreatedAt
	s.promotions[p.Code] = next
	return nil
}

func (s *memoryStore) Get(ctx context.Context, code string) (Promotion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.promotions[code]
	if !ok {
		return Promotion{}, ErrPromotionNotFound
	}
	return p.Clone(), nil
}

func (s *memoryStore) List(ctx context.Context) ([]Promotion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Promotion, 0, len(s.promotions))
	for _, p := range s.promotions {
		out = append(out, p.Clone())
	}
	slices.SortFunc(out, func(a, b Promotion) int { return strings.Compare(a.Code, b.Code) })
	return out, nil
}

func (s *memoryStore) TenantUses(ctx context.Context, code string, tenantID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tenantUses[code][tenantID], nil
}

func (s *memoryStore) Redeem(ctx context.Context, code string, tenantID uuid.UUID, check RedeemCheck) (Promotion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.promotions[code]
	if !ok {
		return Promotion{}, Reject(code, ReasonNotFound)
	}
	uses := s.tenantUses[code][tenantID]
	if err := check(p.Clone(), uses); err != nil {
		return Promotion{}, err
	}

	p.UsesCount++
	s.promotions[code] = p
	if s.tenantUses[code] == nil {
		s.tenantUses[code] = make(map[uuid.UUID]int64)
	}
	s.tenantUses[code][tenantID] = uses + 1

	return p.Clone(), nil
}

func (s *memoryStore) Unredeem(ctx context.Context, code string, tenantID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.promotions[code]
	if !ok {
		return ErrPromotionNotFound
	}
	uses := s.tenantUses[code][tenantID]
	if uses == 0 {
		return nil
	}
	s.tenantUses[code][tenantID] = uses - 1
	p.UsesCount = max(p.UsesCount-1, 0)
	s.promotions[code] = p
	return nil
}
