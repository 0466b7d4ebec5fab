package subscription_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/freightbill/pkg/catalog"
	"github.com/dmitrymomot/freightbill/pkg/promotion"
	"github.com/dmitrymomot/freightbill/pkg/subscription"
)

func TestScenario_StarterTrialToAccompaniment(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	tenantID := uuid.New()

	_, err := f.svc.StartTrial(ctx, tenantID, "starter", catalog.CycleMonthly)
	require.NoError(t, err)

	for range 2 {
		_, err = f.svc.ExtendTrial(ctx, tenantID)
		require.NoError(t, err)
	}
	_, err = f.svc.ExtendTrial(ctx, tenantID)
	require.ErrorIs(t, err, subscription.ErrExtensionLimitReached)

	// Not eligible while the trial still runs.
	_, _, err = f.svc.ActivateAccompaniment(ctx, tenantID)
	require.ErrorIs(t, err, subscription.ErrAccompanimentNotEligible)

	f.clock.Set(epoch.Add(22 * day))
	sub, checkout, err := f.svc.ActivateAccompaniment(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusTrialing, sub.Status)
	assert.Equal(t, subscription.OverrideAccompaniment, sub.Override.Kind)
	assert.Equal(t, catalog.Money{Amount: 10000, Currency: "COP"}, sub.Amount)
	assert.True(t, checkout.Accompaniment)
	assert.Equal(t, int64(10000), checkout.Amount.Amount)
	f.gateway.AssertCalled(t, "InitiateCheckout", mock.Anything, mock.MatchedBy(func(req subscription.CheckoutRequest) bool {
		return req.Accompaniment && req.Amount.Amount == 10000 && req.ListPrice.Amount == 45000
	}))

	// Offered once only.
	_, _, err = f.svc.ActivateAccompaniment(ctx, tenantID)
	require.ErrorIs(t, err, subscription.ErrAccompanimentNotEligible)

	first := f.clock.Now()
	require.NoError(t, f.svc.HandleChargeSucceeded(ctx, charge(tenantID, first)))

	sub, err = f.svc.Get(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusActive, sub.Status)
	assert.Equal(t, int64(10000), sub.Amount.Amount)
	require.NotNil(t, sub.Trial.ConvertedAt)

	// First month done.
	second := first.AddDate(0, 1, 0)
	f.clock.Set(second)
	_, err = f.svc.Sweep(ctx)
	require.NoError(t, err)

	sub, err = f.svc.Get(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, 1, sub.Accompaniment.MonthsUsed)
	assert.Equal(t, int64(10000), sub.Amount.Amount)

	require.NoError(t, f.svc.HandleChargeSucceeded(ctx, charge(tenantID, second)))

	// A repeated sweep inside the same period counts nothing.
	_, err = f.svc.Sweep(ctx)
	require.NoError(t, err)
	sub, err = f.svc.Get(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, 1, sub.Accompaniment.MonthsUsed)

	// Second month done: back to the list price.
	f.clock.Set(second.AddDate(0, 1, 0))
	_, err = f.svc.Sweep(ctx)
	require.NoError(t, err)

	sub, err = f.svc.Get(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, 2, sub.Accompaniment.MonthsUsed)
	assert.NotNil(t, sub.Accompaniment.LapsedAt)
	assert.Equal(t, subscription.OverrideStandard, sub.Override.Kind)
	assert.Equal(t, catalog.Money{Amount: 45000, Currency: "COP"}, sub.Amount)

	assert.Equal(t, []string{
		"trial_started",
		"trial_extended",
		"trial_extended",
		"accompaniment_activated",
		"checkout_completed",
		"charge_succeeded",
		"accompaniment_lapsed",
	}, f.actions(t, tenantID))
}

func TestScenario_PromotionAtCheckout(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	tenantID := uuid.New()
	f.createPromotion(t, "DESCUENTO20", 20, 1)

	d, err := f.svc.ValidatePromotion(ctx, tenantID, "descuento20", "starter")
	require.NoError(t, err)
	assert.Equal(t, "DESCUENTO20", d.Code)

	checkout, err := f.svc.InitiateCheckout(ctx, tenantID, subscription.CheckoutParams{
		PlanID:        "starter",
		PromotionCode: "DESCUENTO20",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(36000), checkout.Amount.Amount)
	assert.Equal(t, "DESCUENTO20", checkout.PromotionCode)

	// Validation alone consumes nothing.
	p, err := f.promotions.Get(ctx, "DESCUENTO20")
	require.NoError(t, err)
	assert.Equal(t, int64(0), p.UsesCount)

	require.NoError(t, f.svc.HandleChargeSucceeded(ctx, charge(tenantID, epoch)))

	sub, err := f.svc.Get(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusActive, sub.Status)
	assert.Equal(t, int64(36000), sub.Amount.Amount)
	require.NotNil(t, sub.Discount)
	assert.Equal(t, 1, sub.Discount.RemainingCycles)

	p, err = f.promotions.Get(ctx, "DESCUENTO20")
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.UsesCount)

	_, err = f.svc.PendingCheckout(ctx, tenantID)
	assert.ErrorIs(t, err, subscription.ErrCheckoutNotFound)

	f.invoices.AssertCalled(t, "PriceCommitted", mock.Anything, mock.MatchedBy(func(c subscription.PriceCommitment) bool {
		return c.TenantID == tenantID && c.Amount.Amount == 36000 && c.PromotionCode == "DESCUENTO20"
	}))

	// The single discounted cycle ends with the first period.
	f.clock.Set(epoch.AddDate(0, 1, 0))
	_, err = f.svc.Sweep(ctx)
	require.NoError(t, err)

	sub, err = f.svc.Get(ctx, tenantID)
	require.NoError(t, err)
	assert.Nil(t, sub.Discount)
	assert.Equal(t, int64(45000), sub.Amount.Amount)

	// Per-tenant cap: the same tenant cannot use it twice.
	_, err = f.svc.ValidatePromotion(ctx, tenantID, "DESCUENTO20", "starter")
	assert.ErrorIs(t, err, promotion.ErrPromotionRejected)
}
