package subscription_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/freightbill/pkg/catalog"
	"github.com/dmitrymomot/freightbill/pkg/subscription"
)

func TestService_Suspension(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	tenantID := f.subscribe(t, "starter", catalog.CycleMonthly)

	_, err := f.svc.Suspend(ctx, tenantID, "  ")
	require.ErrorIs(t, err, subscription.ErrReasonRequired)

	sub, err := f.svc.Suspend(ctx, tenantID, "fraud review")
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusSuspended, sub.Status)
	assert.False(t, sub.HasAccess())
	require.NotNil(t, sub.Suspension)
	assert.Equal(t, "fraud review", sub.Suspension.Reason)
	assert.Equal(t, subscription.StatusActive, sub.Suspension.PreviousStatus)

	_, err = f.svc.Suspend(ctx, tenantID, "again")
	assert.ErrorIs(t, err, subscription.ErrInvalidTransition)

	// Charges never lift a suspension.
	next := epoch.AddDate(0, 1, 0)
	require.NoError(t, f.svc.HandleChargeSucceeded(ctx, charge(tenantID, next)))
	require.NoError(t, f.svc.HandleChargeFailed(ctx, subscription.ChargeFailed{
		CorrelationID: uuid.NewString(),
		TenantID:      tenantID,
		Reason:        "card_declined",
	}))

	sub, err = f.svc.Get(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusSuspended, sub.Status)
	assert.Equal(t, next.AddDate(0, 1, 0), sub.PeriodEnd)

	// Suspended subscriptions are frozen for the sweep.
	f.clock.Set(next.AddDate(0, 2, 0))
	report, err := f.svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Scanned)

	sub, err = f.svc.Reactivate(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusActive, sub.Status)
	assert.Nil(t, sub.Suspension)
	assert.Equal(t, int64(45000), sub.Amount.Amount)

	_, err = f.svc.Reactivate(ctx, tenantID)
	assert.ErrorIs(t, err, subscription.ErrInvalidTransition)
}

func TestService_ForceCancel(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	tenantID := uuid.New()

	_, err := f.svc.StartTrial(ctx, tenantID, "starter", catalog.CycleMonthly)
	require.NoError(t, err)
	_, err = f.svc.InitiateCheckout(ctx, tenantID, subscription.CheckoutParams{PlanID: "starter"})
	require.NoError(t, err)

	_, err = f.svc.ForceCancel(ctx, tenantID, "")
	require.ErrorIs(t, err, subscription.ErrReasonRequired)

	sub, err := f.svc.ForceCancel(ctx, tenantID, "terms violation")
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusCancelled, sub.Status)
	assert.Equal(t, "terms violation", sub.CancelReason)

	_, err = f.svc.PendingCheckout(ctx, tenantID)
	assert.ErrorIs(t, err, subscription.ErrCheckoutNotFound)

	_, err = f.svc.ForceCancel(ctx, tenantID, "terms violation")
	assert.ErrorIs(t, err, subscription.ErrInvalidTransition)
}

func TestService_AvailableEvents(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	tenantID := f.subscribe(t, "starter", catalog.CycleMonthly)
	sub, err := f.svc.Get(context.Background(), tenantID)
	require.NoError(t, err)

	events := f.svc.AvailableEvents(sub)
	assert.Contains(t, events, subscription.EventSuspended)
	assert.Contains(t, events, subscription.EventCancellationRequested)
	assert.NotContains(t, events, subscription.EventCancellationWithdrawn)
	assert.NotContains(t, events, subscription.EventReactivated)
	assert.NotContains(t, events, subscription.EventTrialExtended)
}
