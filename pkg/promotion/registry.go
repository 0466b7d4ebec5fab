package promotion

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dmitrymomot/freightbill/pkg/catalog"
	"github.com/dmitrymomot/freightbill/pkg/logger"
)

// Registry administers promotion codes and decides whether a code may be
// used by a tenant for a plan.
type Registry struct {
	store   Store
	catalog *catalog.Catalog
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the time source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRegistry creates a Registry. Panics on nil dependencies.
func NewRegistry(store Store, cat *catalog.Catalog, opts ...Option) *Registry {
	if store == nil {
		panic("promotion: Store is required")
	}
	if cat == nil {
		panic("promotion: Catalog is required")
	}
	r := &Registry{
		store:   store,
		catalog: cat,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CreateParams describes a new promotion.
type CreateParams struct {
	Code             string
	Description      string
	Kind             Kind
	Value            decimal.Decimal
	EligiblePlans    []string
	MaxUses          int64
	MaxUsesPerTenant int64
	DurationCycles   int
	ExpiresAt        *time.Time
}

// Create publishes a new active promotion.
func (r *Registry) Create(ctx context.Context, params CreateParams) (Promotion, error) {
	now := r.now().UTC()
	p := Promotion{
		Code:             NormalizeCode(params.Code),
		Description:      params.Description,
		Kind:             params.Kind,
		Value:            params.Value,
		EligiblePlans:    params.EligiblePlans,
		MaxUses:          params.MaxUses,
		MaxUsesPerTenant: params.MaxUsesPerTenant,
		DurationCycles:   params.DurationCycles,
		ExpiresAt:        params.ExpiresAt,
		Active:           true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if p.MaxUsesPerTenant == 0 {
		p.MaxUsesPerTenant = DefaultMaxUsesPerTenant
	}
	if err := r.validateDefinition(p); err != nil {
		return Promotion{}, err
	}
	if err := r.store.Create(ctx, p); err != nil {
		return Promotion{}, err
	}

	r.logger.InfoContext(ctx, "promotion created",
		logger.PromotionCode(p.Code),
		slog.String("kind", string(p.Kind)),
		slog.String("value", p.Value.String()),
	)
	return p, nil
}

// UpdateParams holds the editable fields of a promotion. Nil fields are left
// unchanged. Edits never affect discounts already snapshotted by subscribers.
type UpdateParams struct {
	Description      *string
	EligiblePlans    []string
	MaxUses          *int64
	MaxUsesPerTenant *int64
	DurationCycles   *int
	ExpiresAt        *time.Time
	Active           *bool
}

// Update edits an existing promotion.
func (r *Registry) Update(ctx context.Context, code string, params UpdateParams) (Promotion, error) {
	p, err := r.store.Get(ctx, NormalizeCode(code))
	if err != nil {
		return Promotion{}, err
	}

	if params.Description != nil {
		p.Description = *params.Description
	}
	if params.EligiblePlans != nil {
		p.EligiblePlans = params.EligiblePlans
	}
	if params.MaxUses != nil {
		p.MaxUses = *params.MaxUses
	}
	if params.MaxUsesPerTenant != nil {
		p.MaxUsesPerTenant = *params.MaxUsesPerTenant
	}
	if params.DurationCycles != nil {
		p.DurationCycles = *params.DurationCycles
	}
	if params.ExpiresAt != nil {
		p.ExpiresAt = params.ExpiresAt
	}
	if params.Active != nil {
		p.Active = *params.Active
	}
	p.UpdatedAt = r.now().UTC()

	if err := r.validateDefinition(p); err != nil {
		return Promotion{}, err
	}
	if err := r.store.Update(ctx, p); err != nil {
		return Promotion{}, err
	}
	return p, nil
}

// Deactivate soft-deletes a promotion. Existing snapshots keep applying.
func (r *Registry) Deactivate(ctx context.Context, code string) error {
	inactive := false
	_, err := r.Update(ctx, code, UpdateParams{Active: &inactive})
	return err
}

func (r *Registry) Get(ctx context.Context, code string) (Promotion, error) {
	return r.store.Get(ctx, NormalizeCode(code))
}

func (r *Registry) List(ctx context.Context) ([]Promotion, error) {
	return r.store.List(ctx)
}

// Validate checks whether the code can be used by the tenant for the plan.
// It never mutates counters.
func (r *Registry) Validate(ctx context.Context, code, planID string, tenantID uuid.UUID) (Discount, error) {
	code = NormalizeCode(code)

	p, err := r.store.Get(ctx, code)
	if err != nil {
		if errors.Is(err, ErrPromotionNotFound) {
			return Discount{}, Reject(code, ReasonNotFound)
		}
		return Discount{}, err
	}
	uses, err := r.store.TenantUses(ctx, code, tenantID)
	if err != nil {
		return Discount{}, err
	}

	if err := r.check(p, uses, planID); err != nil {
		return Discount{}, err
	}
	return p.Discount(), nil
}

// Redeem re-checks the code and increments its global and per-tenant
// counters atomically. Returns a RejectionError matching ErrCapExceeded when
// a concurrent redemption took the last slot.
func (r *Registry) Redeem(ctx context.Context, code string, tenantID uuid.UUID) (Discount, error) {
	code = NormalizeCode(code)

	p, err := r.store.Redeem(ctx, code, tenantID, func(p Promotion, uses int64) error {
		return r.check(p, uses, "")
	})
	if err != nil {
		r.logger.WarnContext(ctx, "promotion redemption refused",
			logger.PromotionCode(code),
			logger.TenantID(tenantID),
			logger.Error(err),
		)
		return Discount{}, err
	}

	r.logger.InfoContext(ctx, "promotion redeemed",
		logger.PromotionCode(code),
		logger.TenantID(tenantID),
		slog.Int64("uses_count", p.UsesCount),
	)
	return p.Discount(), nil
}

// Release hands back a use taken by Redeem whose subscription was never
// saved. The discount snapshot is not involved; only the counters move.
func (r *Registry) Release(ctx context.Context, code string, tenantID uuid.UUID) error {
	code = NormalizeCode(code)
	if err := r.store.Unredeem(ctx, code, tenantID); err != nil {
		return errors.Join(ErrReleaseFailed, err)
	}
	r.logger.InfoContext(ctx, "promotion use released",
		logger.PromotionCode(code),
		logger.TenantID(tenantID),
	)
	return nil
}

// check applies the rejection rules in their fixed order. An empty planID
// skips the applicability rule.
func (r *Registry) check(p Promotion, tenantUses int64, planID string) error {
	switch {
	case !p.Active:
		return Reject(p.Code, ReasonNotFound)
	case p.Expired(r.now()):
		return Reject(p.Code, ReasonExpired)
	case planID != "" && !p.AppliesTo(planID):
		return Reject(p.Code, ReasonNotApplicable)
	case p.MaxUses > 0 && p.UsesCount >= p.MaxUses:
		return Reject(p.Code, ReasonGlobalCap)
	case tenantUses >= p.MaxUsesPerTenant:
		return Reject(p.Code, ReasonTenantCap)
	}
	return nil
}

func (r *Registry) validateDefinition(p Promotion) error {
	if err := p.validate(); err != nil {
		return err
	}
	for _, id := range p.EligiblePlans {
		if _, err := r.catalog.Plan(id); err != nil {
			return errors.Join(ErrInvalidPromotion, err)
		}
	}
	return nil
}
