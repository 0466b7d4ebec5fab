package promotion_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/freightbill/pkg/catalog"
	"github.com/dmitrymomot/freightbill/pkg/promotion"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newRegistry(t *testing.T, store promotion.Store) *promotion.Registry {
	t.Helper()
	cat, err := catalog.NewCatalog(context.Background(), catalog.NewInMemSource(
		catalog.Plan{ID: "starter", Name: "Starter", PriceMonthly: 45000, Currency: "COP", Active: true},
		catalog.Plan{ID: "profesional", Name: "Profesional", PriceMonthly: 89000, Currency: "COP", Active: true},
	))
	require.NoError(t, err)
	return promotion.NewRegistry(store, cat, promotion.WithClock(func() time.Time { return now }))
}

func TestRegistry_Create(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := newRegistry(t, promotion.NewMemoryStore())

	p, err := r.Create(ctx, promotion.CreateParams{
		Code:  " descuento20 ",
		Kind:  promotion.KindPercentage,
		Value: decimal.NewFromInt(20),
	})
	require.NoError(t, err)
	assert.Equal(t, "DESCUENTO20", p.Code)
	assert.Equal(t, promotion.DefaultMaxUsesPerTenant, p.MaxUsesPerTenant)
	assert.True(t, p.Active)

	_, err = r.Create(ctx, promotion.CreateParams{Code: "DESCUENTO20", Kind: promotion.KindFixed, Value: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, promotion.ErrPromotionExists)

	invalid := []promotion.CreateParams{
		{Code: "P101", Kind: promotion.KindPercentage, Value: decimal.NewFromInt(101)},
		{Code: "NEG", Kind: promotion.KindFixed, Value: decimal.NewFromInt(-5)},
		{Code: "", Kind: promotion.KindFixed, Value: decimal.NewFromInt(5)},
		{Code: "ODD", Kind: "bogo", Value: decimal.NewFromInt(5)},
		{Code: "GHOST", Kind: promotion.KindFixed, Value: decimal.NewFromInt(5), EligiblePlans: []string{"ghost"}},
	}
	for _, params := range invalid {
		_, err := r.Create(ctx, params)
		assert.ErrorIs(t, err, promotion.ErrInvalidPromotion, params.Code)
	}

	// Fixed discounts are not compared with any plan price at creation.
	_, err = r.Create(ctx, promotion.CreateParams{Code: "HUGE", Kind: promotion.KindFixed, Value: decimal.NewFromInt(10_000_000)})
	assert.NoError(t, err)
}

func TestRegistry_ValidateRejectionOrder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tenant := uuid.New()
	past := now.Add(-time.Hour)

	tests := []struct {
		name   string
		params promotion.CreateParams
		code   string
		plan   string
		setup  func(t *testing.T, r *promotion.Registry)
		reason promotion.Reason
	}{
		{
			name:   "unknown code",
			code:   "NOPE",
			plan:   "starter",
			reason: promotion.ReasonNotFound,
		},
		{
			name:   "inactive beats expired",
			params: promotion.CreateParams{Code: "OFF", Kind: promotion.KindFixed, Value: decimal.NewFromInt(1), ExpiresAt: &past},
			code:   "OFF",
			plan:   "starter",
			setup: func(t *testing.T, r *promotion.Registry) {
				require.NoError(t, r.Deactivate(ctx, "off"))
			},
			reason: promotion.ReasonNotFound,
		},
		{
			name:   "expired beats not applicable",
			params: promotion.CreateParams{Code: "OLD", Kind: promotion.KindFixed, Value: decimal.NewFromInt(1), ExpiresAt: &past, EligiblePlans: []string{"profesional"}},
			code:   "OLD",
			plan:   "starter",
			reason: promotion.ReasonExpired,
		},
		{
			name:   "not applicable beats caps",
			params: promotion.CreateParams{Code: "PRO", Kind: promotion.KindFixed, Value: decimal.NewFromInt(1), EligiblePlans: []string{"profesional"}, MaxUses: 1},
			code:   "PRO",
			plan:   "starter",
			setup: func(t *testing.T, r *promotion.Registry) {
				_, err := r.Redeem(ctx, "PRO", uuid.New())
				require.NoError(t, err)
			},
			reason: promotion.ReasonNotApplicable,
		},
		{
			name:   "global cap beats tenant cap",
			params: promotion.CreateParams{Code: "ONE", Kind: promotion.KindFixed, Value: decimal.NewFromInt(1), MaxUses: 1},
			code:   "ONE",
			plan:   "starter",
			setup: func(t *testing.T, r *promotion.Registry) {
				_, err := r.Redeem(ctx, "ONE", tenant)
				require.NoError(t, err)
			},
			reason: promotion.ReasonGlobalCap,
		},
		{
			name:   "tenant cap",
			params: promotion.CreateParams{Code: "MINE", Kind: promotion.KindFixed, Value: decimal.NewFromInt(1)},
			code:   "mine",
			plan:   "starter",
			setup: func(t *testing.T, r *promotion.Registry) {
				_, err := r.Redeem(ctx, "MINE", tenant)
				require.NoError(t, err)
			},
			reason: promotion.ReasonTenantCap,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := newRegistry(t, promotion.NewMemoryStore())
			if tt.params.Code != "" {
				_, err := r.Create(ctx, tt.params)
				require.NoError(t, err)
			}
			if tt.setup != nil {
				tt.setup(t, r)
			}

			_, err := r.Validate(ctx, tt.code, tt.plan, tenant)
			require.ErrorIs(t, err, promotion.ErrPromotionRejected)
			reason, ok := promotion.RejectionReason(err)
			require.True(t, ok)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestRegistry_ValidateDoesNotCount(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := newRegistry(t, promotion.NewMemoryStore())
	_, err := r.Create(ctx, promotion.CreateParams{Code: "DESCUENTO20", Kind: promotion.KindPercentage, Value: decimal.NewFromInt(20), EligiblePlans: []string{"starter"}})
	require.NoError(t, err)

	tenant := uuid.New()
	for range 3 {
		d, err := r.Validate(ctx, "descuento20", "starter", tenant)
		require.NoError(t, err)
		assert.Equal(t, int64(36000), d.Apply(45000))
	}

	p, err := r.Get(ctx, "DESCUENTO20")
	require.NoError(t, err)
	assert.Zero(t, p.UsesCount)
}

func TestRegistry_RedeemTwiceSameTenant(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := newRegistry(t, promotion.NewMemoryStore())
	_, err := r.Create(ctx, promotion.CreateParams{Code: "DESCUENTO20", Kind: promotion.KindPercentage, Value: decimal.NewFromInt(20)})
	require.NoError(t, err)

	tenant := uuid.New()
	_, err = r.Redeem(ctx, "DESCUENTO20", tenant)
	require.NoError(t, err)

	_, err = r.Redeem(ctx, "DESCUENTO20", tenant)
	assert.ErrorIs(t, err, promotion.ErrCapExceeded)

	_, err = r.Redeem(ctx, "DESCUENTO20", uuid.New())
	assert.NoError(t, err, "another tenant still has its own allowance")
}

func TestRegistry_Release(t *testing.T) {
	t.Parallel()

	t.Run("returns the use to the tenant and the global count", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		r := newRegistry(t, promotion.NewMemoryStore())
		_, err := r.Create(ctx, promotion.CreateParams{Code: "HALF", Kind: promotion.KindPercentage, Value: decimal.NewFromInt(50), MaxUses: 1})
		require.NoError(t, err)

		tenant := uuid.New()
		_, err = r.Redeem(ctx, "HALF", tenant)
		require.NoError(t, err)
		require.NoError(t, r.Release(ctx, "half", tenant))

		p, err := r.Get(ctx, "HALF")
		require.NoError(t, err)
		assert.Equal(t, int64(0), p.UsesCount)

		_, err = r.Redeem(ctx, "HALF", tenant)
		assert.NoError(t, err)
	})

	t.Run("without a recorded use is a no-op", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		r := newRegistry(t, promotion.NewMemoryStore())
		_, err := r.Create(ctx, promotion.CreateParams{Code: "HALF", Kind: promotion.KindPercentage, Value: decimal.NewFromInt(50)})
		require.NoError(t, err)

		_, err = r.Redeem(ctx, "HALF", uuid.New())
		require.NoError(t, err)
		require.NoError(t, r.Release(ctx, "HALF", uuid.New()))

		p, err := r.Get(ctx, "HALF")
		require.NoError(t, err)
		assert.Equal(t, int64(1), p.UsesCount)
	})

	t.Run("unknown code", func(t *testing.T) {
		t.Parallel()
		r := newRegistry(t, promotion.NewMemoryStore())
		err := r.Release(context.Background(), "NOPE", uuid.New())
		assert.ErrorIs(t, err, promotion.ErrReleaseFailed)
		assert.ErrorIs(t, err, promotion.ErrPromotionNotFound)
	})
}

func TestRegistry_ConcurrentRedeemRespectsGlobalCap(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := newRegistry(t, promotion.NewMemoryStore())
	_, err := r.Create(ctx, promotion.CreateParams{Code: "LASTONE", Kind: promotion.KindFixed, Value: decimal.NewFromInt(1000), MaxUses: 1})
	require.NoError(t, err)

	const n = 32
	var wins, capped atomic.Int32
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Redeem(ctx, "LASTONE", uuid.New())
			switch {
			case err == nil:
				wins.Add(1)
			case assert.ErrorIs(t, err, promotion.ErrCapExceeded):
				capped.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(n-1), capped.Load())

	p, err := r.Get(ctx, "LASTONE")
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.UsesCount)
}

func TestRegistry_UpdateKeepsCounters(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := newRegistry(t, promotion.NewMemoryStore())
	_, err := r.Create(ctx, promotion.CreateParams{Code: "SPRING", Kind: promotion.KindPercentage, Value: decimal.NewFromInt(10)})
	require.NoError(t, err)
	_, err = r.Redeem(ctx, "SPRING", uuid.New())
	require.NoError(t, err)

	maxUses := int64(5)
	desc := "spring campaign"
	p, err := r.Update(ctx, "spring", promotion.UpdateParams{MaxUses: &maxUses, Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, int64(5), p.MaxUses)

	stored, err := r.Get(ctx, "SPRING")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.UsesCount)
	assert.Equal(t, "spring campaign", stored.Description)

	_, err = r.Update(ctx, "missing", promotion.UpdateParams{})
	assert.ErrorIs(t, err, promotion.ErrPromotionNotFound)

	list, err := r.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestDiscount_Apply(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		d      promotion.Discount
		amount int64
		want   int64
	}{
		{"percentage", promotion.Discount{Kind: promotion.KindPercentage, Value: decimal.NewFromInt(20)}, 45000, 36000},
		{"percentage rounds half up", promotion.Discount{Kind: promotion.KindPercentage, Value: decimal.RequireFromString("12.5")}, 101, 88},
		{"full percentage", promotion.Discount{Kind: promotion.KindPercentage, Value: decimal.NewFromInt(100)}, 45000, 0},
		{"fixed", promotion.Discount{Kind: promotion.KindFixed, Value: decimal.NewFromInt(5000)}, 45000, 40000},
		{"fixed larger than price", promotion.Discount{Kind: promotion.KindFixed, Value: decimal.NewFromInt(90000)}, 45000, 0},
		{"zero price", promotion.Discount{Kind: promotion.KindFixed, Value: decimal.NewFromInt(10)}, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.d.Apply(tt.amount))
		})
	}

	assert.True(t, promotion.Discount{}.Permanent())
	assert.False(t, promotion.Discount{DurationCycles: 3}.Permanent())
}
