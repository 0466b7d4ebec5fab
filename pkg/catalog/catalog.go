package catalog

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"
)

// Source loads the initial set of plans into a Catalog.
type Source interface {
	Load(ctx context.Context) ([]Plan, error)
}

// Catalog is the in-process registry of plans. It is safe for concurrent use.
type Catalog struct {
	mu    sync.RWMutex
	plans map[string]Plan
}

// NewCatalog loads and validates plans from src.
// Panics if src is nil to fail fast on wiring mistakes.
func NewCatalog(ctx context.Context, src Source) (*Catalog, error) {
	if src == nil {
		panic("catalog: Source is required")
	}

	plans, err := src.Load(ctx)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}
	if len(plans) == 0 {
		return nil, ErrNoPlans
	}

	c := &Catalog{plans: make(map[string]Plan, len(plans))}
	for _, p := range plans {
		if err := c.add(p); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// ActivePlans returns the plans currently offered, ordered for display by
// SortRank and then ID. Deactivated plans are excluded.
func (c *Catalog) ActivePlans() []Plan {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Plan, 0, len(c.plans))
	for _, p := range c.plans {
		if p.Active {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b Plan) int {
		return cmp.Or(cmp.Compare(a.SortRank, b.SortRank), cmp.Compare(a.ID, b.ID))
	})
	return out
}

// Plan resolves a plan by ID, including deactivated plans that existing
// subscriptions may still reference.
func (c *Catalog) Plan(id string) (Plan, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.plans[id]
	if !ok {
		return Plan{}, ErrPlanNotFound
	}
	return p, nil
}

// Selectable resolves a plan a tenant may pick right now: it must exist, be
// active and carry a self-serve price.
func (c *Catalog) Selectable(id string) (Plan, error) {
	p, err := c.Plan(id)
	if err != nil {
		return Plan{}, err
	}
	switch {
	case p.SelfServe():
		return p, nil
	case !p.Active:
		return Plan{}, ErrPlanInactive
	default:
		return Plan{}, ErrContactSalesOnly
	}
}

// IsUpgrade compares two plans by ID. See the package-level IsUpgrade.
func (c *Catalog) IsUpgrade(fromID, toID string) (bool, error) {
	from, err := c.Plan(fromID)
	if err != nil {
		return false, err
	}
	to, err := c.Plan(toID)
	if err != nil {
		return false, err
	}
	return IsUpgrade(from, to), nil
}

// Add publishes a new plan. Existing IDs are rejected because published
// terms are immutable.
func (c *Catalog) Add(p Plan) error {
	return c.add(p)
}

func (c *Catalog) add(p Plan) error {
	if err := p.validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.plans[p.ID]; exists {
		return ErrPlanExists
	}
	c.plans[p.ID] = p
	return nil
}

// Deactivate stops offering a plan. The plan stays resolvable for
// subscriptions that already reference it.
func (c *Catalog) Deactivate(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.plans[id]
	if !ok {
		return ErrPlanNotFound
	}
	p.Active = false
	c.plans[id] = p
	return nil
}
