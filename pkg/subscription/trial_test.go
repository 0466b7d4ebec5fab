package subscription_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/freightbill/pkg/catalog"
	"github.com/dmitrymomot/freightbill/pkg/subscription"
)

func TestService_StartTrial(t *testing.T) {
	t.Parallel()

	t.Run("opens a free trial", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		tenantID := uuid.New()

		sub, err := f.svc.StartTrial(context.Background(), tenantID, "starter", catalog.CycleMonthly)
		require.NoError(t, err)

		assert.Equal(t, subscription.StatusTrialing, sub.Status)
		assert.Equal(t, subscription.OverrideTrial, sub.Override.Kind)
		assert.Equal(t, int64(0), sub.Amount.Amount)
		assert.Equal(t, epoch.Add(7*day), sub.Trial.EndsAt)
		assert.Equal(t, 2, sub.Trial.MaxExtensions)
		assert.True(t, sub.HasAccess())
		assert.Equal(t, []string{"trial_started"}, f.actions(t, tenantID))
	})

	t.Run("refuses contact-sales plans", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		_, err := f.svc.StartTrial(context.Background(), uuid.New(), "empresarial", catalog.CycleMonthly)
		assert.ErrorIs(t, err, catalog.ErrContactSalesOnly)
	})

	t.Run("one live subscription per tenant", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		tenantID := uuid.New()

		_, err := f.svc.StartTrial(context.Background(), tenantID, "starter", catalog.CycleMonthly)
		require.NoError(t, err)
		_, err = f.svc.StartTrial(context.Background(), tenantID, "profesional", catalog.CycleMonthly)
		assert.ErrorIs(t, err, subscription.ErrSubscriptionAlreadyExists)
	})

	t.Run("one trial per tenant", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		ctx := context.Background()
		tenantID := uuid.New()

		_, err := f.svc.StartTrial(ctx, tenantID, "starter", catalog.CycleMonthly)
		require.NoError(t, err)
		sub, err := f.svc.RequestCancellation(ctx, tenantID)
		require.NoError(t, err)
		require.Equal(t, subscription.StatusCancelled, sub.Status)

		_, err = f.svc.StartTrial(ctx, tenantID, "starter", catalog.CycleMonthly)
		assert.ErrorIs(t, err, subscription.ErrTrialNotAvailable)
	})

	t.Run("requires a tenant", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		_, err := f.svc.StartTrial(context.Background(), uuid.Nil, "starter", catalog.CycleMonthly)
		assert.ErrorIs(t, err, subscription.ErrMissingTenantID)
	})
}

func TestService_ExtendTrial(t *testing.T) {
	t.Parallel()

	t.Run("limit reached leaves counter unchanged", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		ctx := context.Background()
		tenantID := uuid.New()

		_, err := f.svc.StartTrial(ctx, tenantID, "starter", catalog.CycleMonthly)
		require.NoError(t, err)

		for i := 1; i <= 2; i++ {
			sub, err := f.svc.ExtendTrial(ctx, tenantID)
			require.NoError(t, err)
			assert.Equal(t, i, sub.Trial.ExtensionsUsed)
		}

		_, err = f.svc.ExtendTrial(ctx, tenantID)
		assert.ErrorIs(t, err, subscription.ErrExtensionLimitReached)

		sub, err := f.svc.Get(ctx, tenantID)
		require.NoError(t, err)
		assert.Equal(t, 2, sub.Trial.ExtensionsUsed)
		assert.Equal(t, epoch.Add(21*day), sub.Trial.EndsAt)
	})

	t.Run("allowed within grace", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		ctx := context.Background()
		tenantID := uuid.New()

		_, err := f.svc.StartTrial(ctx, tenantID, "starter", catalog.CycleMonthly)
		require.NoError(t, err)

		f.clock.Set(epoch.Add(9 * day))
		sub, err := f.svc.ExtendTrial(ctx, tenantID)
		require.NoError(t, err)
		assert.Equal(t, epoch.Add(14*day), sub.Trial.EndsAt)
	})

	t.Run("refused past grace", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		ctx := context.Background()
		tenantID := uuid.New()

		_, err := f.svc.StartTrial(ctx, tenantID, "starter", catalog.CycleMonthly)
		require.NoError(t, err)

		f.clock.Set(epoch.Add(11 * day))
		_, err = f.svc.ExtendTrial(ctx, tenantID)
		assert.ErrorIs(t, err, subscription.ErrTrialNotExtendable)
	})

	t.Run("paid subscriptions cannot extend", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		tenantID := f.subscribe(t, "starter", catalog.CycleMonthly)

		_, err := f.svc.ExtendTrial(context.Background(), tenantID)
		assert.ErrorIs(t, err, subscription.ErrInvalidTransition)

		var te *subscription.TransitionError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, subscription.StatusActive, te.From)
	})
}

func TestService_SweepExpiredTrial(t *testing.T) {
	t.Parallel()

	t.Run("cancels after grace", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		ctx := context.Background()
		tenantID := uuid.New()

		_, err := f.svc.StartTrial(ctx, tenantID, "starter", catalog.CycleMonthly)
		require.NoError(t, err)

		f.clock.Set(epoch.Add(10 * day))
		report, err := f.svc.Sweep(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, report.Changed)

		f.clock.Set(epoch.Add(10*day + 1))
		report, err = f.svc.Sweep(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Changed)

		sub, err := f.svc.Get(ctx, tenantID)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusCancelled, sub.Status)
		assert.False(t, sub.HasAccess())
		assert.Equal(t, []string{"trial_started", "trial_expired"}, f.actions(t, tenantID))
	})

	t.Run("live checkout keeps the trial open", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		ctx := context.Background()
		tenantID := uuid.New()

		_, err := f.svc.StartTrial(ctx, tenantID, "starter", catalog.CycleMonthly)
		require.NoError(t, err)

		f.clock.Set(epoch.Add(10 * day))
		_, err = f.svc.InitiateCheckout(ctx, tenantID, subscription.CheckoutParams{PlanID: "starter"})
		require.NoError(t, err)

		f.clock.Advance(time.Hour)
		_, err = f.svc.Sweep(ctx)
		require.NoError(t, err)

		sub, err := f.svc.Get(ctx, tenantID)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusTrialing, sub.Status)

		// Once the checkout expires the trial is closed.
		f.clock.Advance(day)
		_, err = f.svc.Sweep(ctx)
		require.NoError(t, err)

		sub, err = f.svc.Get(ctx, tenantID)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusCancelled, sub.Status)
	})
}
