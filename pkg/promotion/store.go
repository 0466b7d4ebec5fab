package promotion

import (
	"context"

	"github.com/google/uuid"
)

// RedeemCheck decides whether a redemption may proceed given the current
// promotion state and the tenant's prior redemptions of the code.
type RedeemCheck func(p Promotion, tenantUses int64) error

// Store persists promotion definitions and usage counters.
type Store interface {
	// Create stores a new promotion. Returns ErrPromotionExists on duplicate codes.
	Create(ctx context.Context, p Promotion) error

	// Update replaces the definition fields of an existing promotion.
	// Usage counters are never overwritten by Update.
	Update(ctx context.Context, p Promotion) error

	// Get returns ErrPromotionNotFound when the code is unknown.
	Get(ctx context.Context, code string) (Promotion, error)

	List(ctx context.Context) ([]Promotion, error)

	// TenantUses returns how many times the tenant redeemed the code.
	TenantUses(ctx context.Context, code string, tenantID uuid.UUID) (int64, error)

	// Redeem runs check and, when it passes, increments the global and the
	// per-tenant counters as one atomic step. Concurrent redemptions of the
	// same code must never both observe the last free slot.
	Redeem(ctx context.Context, code string, tenantID uuid.UUID, check RedeemCheck) (Promotion, error)

	// Unredeem reverses one Redeem of the code by the tenant. Counters never
	// drop below zero; a tenant without a recorded use is left untouched.
	Unredeem(ctx context.Context, code string, tenantID uuid.UUID) error
}
