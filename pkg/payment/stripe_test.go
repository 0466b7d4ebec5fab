package payment_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
	stripewebhook "github.com/stripe/stripe-go/v82/webhook"

	"github.com/dmitrymomot/freightbill/pkg/payment"
	"github.com/dmitrymomot/freightbill/pkg/subscription"
)

const stripeSecret = "whsec_test"

func stripeConfig() payment.StripeConfig {
	return payment.StripeConfig{
		WebhookSecret: stripeSecret,
		SuccessURL:    "https://app.example.com/billing/success",
		CancelURL:     "https://app.example.com/billing",
	}
}

func stripeSigned(body string) ([]byte, string) {
	s := stripewebhook.GenerateTestSignedPayload(&stripewebhook.UnsignedPayload{
		Payload:   []byte(body),
		Secret:    stripeSecret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})
	return s.Payload, s.Header
}

func TestStripeGateway_InitiateCheckout(t *testing.T) {
	t.Parallel()

	t.Run("discounted amount uses inline price", func(t *testing.T) {
		t.Parallel()
		var captured *stripe.CheckoutSessionParams
		gw, err := payment.NewStripeGatewayWithCreator(func(p *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
			captured = p
			return &stripe.CheckoutSession{ID: "cs_1", URL: "https://checkout.stripe.com/c/cs_1", ExpiresAt: now.Add(time.Hour).Unix()}, nil
		}, stripeConfig(), payment.WithClock(clock))
		require.NoError(t, err)

		req := checkoutRequest()
		handle, err := gw.InitiateCheckout(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, "cs_1", handle.ID)
		assert.Equal(t, now.Add(time.Hour), handle.ExpiresAt)

		require.NotNil(t, captured)
		assert.Equal(t, string(stripe.CheckoutSessionModeSubscription), *captured.Mode)
		assert.Equal(t, req.TenantID.String(), *captured.ClientReferenceID)
		require.Len(t, captured.LineItems, 1)
		item := captured.LineItems[0]
		assert.Nil(t, item.Price)
		require.NotNil(t, item.PriceData)
		assert.Equal(t, int64(36000), *item.PriceData.UnitAmount)
		assert.Equal(t, "cop", *item.PriceData.Currency)
		assert.Equal(t, "month", *item.PriceData.Recurring.Interval)
		assert.Equal(t, req.TenantID.String(), captured.SubscriptionData.Metadata["tenant_id"])
	})

	t.Run("list price uses catalog price", func(t *testing.T) {
		t.Parallel()
		var captured *stripe.CheckoutSessionParams
		gw, err := payment.NewStripeGatewayWithCreator(func(p *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
			captured = p
			return &stripe.CheckoutSession{ID: "cs_2", URL: "https://checkout.stripe.com/c/cs_2"}, nil
		}, stripeConfig(), payment.WithClock(clock))
		require.NoError(t, err)

		req := checkoutRequest()
		req.Amount = req.ListPrice
		req.Discount = nil
		handle, err := gw.InitiateCheckout(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, now.Add(payment.DefaultCheckoutTTL), handle.ExpiresAt)
		assert.Equal(t, "pri_starter_m", *captured.LineItems[0].Price)
	})

	t.Run("collaborator failure", func(t *testing.T) {
		t.Parallel()
		gw, err := payment.NewStripeGatewayWithCreator(func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
			return nil, errors.New("rate limited")
		}, stripeConfig())
		require.NoError(t, err)

		_, err = gw.InitiateCheckout(context.Background(), checkoutRequest())
		assert.ErrorIs(t, err, payment.ErrCheckoutFailed)
	})
}

func TestStripeGateway_ParseWebhook(t *testing.T) {
	t.Parallel()

	gw, err := payment.NewStripeGatewayWithCreator(func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		return nil, nil
	}, stripeConfig())
	require.NoError(t, err)
	ctx := context.Background()
	tenant := uuid.New()

	t.Run("invoice paid", func(t *testing.T) {
		t.Parallel()
		body, sig := stripeSigned(fmt.Sprintf(`{
			"id": "evt_1", "object": "event", "type": "invoice.paid", "created": 1772442000,
			"data": {"object": {
				"id": "in_1", "currency": "cop", "amount_paid": 36000,
				"parent": {"subscription_details": {"metadata": {"tenant_id": %q}}},
				"lines": {"data": [{"period": {"start": 1772442000, "end": 1775120400}}]}
			}}
		}`, tenant))

		ev, err := gw.ParseWebhook(ctx, body, sig)
		require.NoError(t, err)
		assert.Equal(t, subscription.WebhookChargeSucceeded, ev.Kind)
		require.NotNil(t, ev.Succeeded)
		assert.Equal(t, "in_1", ev.Succeeded.CorrelationID)
		assert.Equal(t, tenant, ev.Succeeded.TenantID)
		assert.Equal(t, "COP", ev.Succeeded.Amount.Currency)
		assert.Equal(t, time.Unix(1775120400, 0).UTC(), ev.Succeeded.PeriodEnd)
	})

	t.Run("invoice payment failed per attempt", func(t *testing.T) {
		t.Parallel()
		body, sig := stripeSigned(fmt.Sprintf(`{
			"id": "evt_2", "object": "event", "type": "invoice.payment_failed", "created": 1775120400,
			"data": {"object": {
				"id": "in_2", "currency": "cop", "amount_due": 45000,
				"subscription_details": {"metadata": {"tenant_id": %q}},
				"last_finalization_error": {"code": "card_declined"}
			}}
		}`, tenant))

		ev, err := gw.ParseWebhook(ctx, body, sig)
		require.NoError(t, err)
		assert.Equal(t, subscription.WebhookChargeFailed, ev.Kind)
		require.NotNil(t, ev.Failed)
		assert.Equal(t, "in_2:evt_2", ev.Failed.CorrelationID)
		assert.Equal(t, "card_declined", ev.Failed.Reason)
		assert.Equal(t, int64(45000), ev.Failed.Amount.Amount)
	})

	t.Run("other events are ignored", func(t *testing.T) {
		t.Parallel()
		body, sig := stripeSigned(`{"id":"evt_3","object":"event","type":"customer.created","data":{"object":{"id":"cus_1"}}}`)
		ev, err := gw.ParseWebhook(ctx, body, sig)
		require.NoError(t, err)
		assert.Equal(t, subscription.WebhookIgnored, ev.Kind)
	})

	t.Run("invalid signature", func(t *testing.T) {
		t.Parallel()
		_, err := gw.ParseWebhook(ctx, []byte(`{"id":"evt_4"}`), "t=1,v1=bad")
		assert.ErrorIs(t, err, payment.ErrInvalidSignature)
	})
}
