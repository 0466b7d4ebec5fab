// Package promotion manages discount codes, their eligibility rules and their
// usage counters.
//
// A Registry validates codes against a plan and a tenant without side
// effects, and redeems them with an atomic check-and-increment of both the
// global and the per-tenant usage counters. The atomic step lives in the
// Store, so every backend (memory, Postgres, Redis) decides how it serializes
// concurrent redemptions of the same code.
//
// # Usage
//
//	reg := promotion.NewRegistry(promotion.NewMemoryStore(), cat)
//
//	_, err := reg.Create(ctx, promotion.CreateParams{
//	    Code:           "descuento20", // stored as DESCUENTO20
//	    Kind:           promotion.KindPercentage,
//	    Value:          decimal.NewFromInt(20),
//	    EligiblePlans:  []string{"starter", "profesional"},
//	    MaxUses:        100,
//	    DurationCycles: 3,
//	})
//
//	// Preview, no counters touched.
//	d, err := reg.Validate(ctx, "DESCUENTO20", "starter", tenantID)
//
//	// Consume one use.
//	d, err = reg.Redeem(ctx, "DESCUENTO20", tenantID)
//
// Codes are case-insensitive and trimmed; NormalizeCode is applied on every
// entry point.
//
// # Rejections
//
// Validation evaluates rejection reasons in a fixed order:
//
//  1. not_found (missing or inactive code)
//  2. expired
//  3. not_applicable (plan outside the eligible set)
//  4. global_cap
//  5. tenant_cap
//
// Rejections are RejectionError values. They match ErrPromotionRejected, and
// the two cap reasons also match ErrCapExceeded:
//
//	if reason, ok := promotion.RejectionReason(err); ok {
//	    // show reason to the tenant
//	}
//
// MaxUses of zero means uncapped. MaxUsesPerTenant defaults to one.
//
// # Releasing Uses
//
// Redeem is usually called while a subscription change is being built. When
// that change is never saved, Release gives the use back:
//
//	if err := reg.Release(ctx, "DESCUENTO20", tenantID); err != nil {
//	    // errors.Is(err, promotion.ErrReleaseFailed)
//	}
//
// Releasing for a tenant that holds no use is a no-op, and counters never go
// below zero.
//
// # Discounts
//
// A successful validation or redemption yields a Discount, an immutable
// snapshot of the promotion terms that subscribers keep even if the
// promotion is later edited or deactivated. Discount.Apply reduces a price;
// percentages round half away from zero to whole minor units and fixed
// amounts never take a price below zero. DurationCycles of zero makes a
// discount permanent.
//
// # Storage
//
// Custom backends implement Store. Redeem must check both caps and increment
// both counters as one atomic step; Unredeem reverses it. Update must keep
// the counters untouched.
package promotion
