package payment

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"
	stripesession "github.com/stripe/stripe-go/v82/checkout/session"
	stripewebhook "github.com/stripe/stripe-go/v82/webhook"

	"github.com/dmitrymomot/freightbill/pkg/catalog"
	"github.com/dmitrymomot/freightbill/pkg/logger"
	"github.com/dmitrymomot/freightbill/pkg/subscription"
)

// StripeSignatureHeader carries the Stripe notification signature.
const StripeSignatureHeader = "Stripe-Signature"

// StripeConfig holds configuration for the Stripe gateway.
type StripeConfig struct {
	APIKey        string `env:"STRIPE_API_KEY"`
	WebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
	SuccessURL    string `env:"STRIPE_SUCCESS_URL"`
	CancelURL     string `env:"STRIPE_CANCEL_URL"`
}

// StripeSessionCreator opens a Stripe Checkout session.
type StripeSessionCreator func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)

// StripeGateway implements subscription.PaymentGateway on Stripe Checkout.
// Discounted and accompaniment checkouts use inline price data so the
// collaborator charges exactly the committed amount.
type StripeGateway struct {
	config        StripeConfig
	createSession StripeSessionCreator
	opts          options
}

// NewStripeGateway creates a gateway backed by the Stripe API.
func NewStripeGateway(config StripeConfig, opts ...Option) (*StripeGateway, error) {
	if strings.TrimSpace(config.APIKey) == "" {
		return nil, fmt.Errorf("%w: stripe API key is required", ErrInvalidConfiguration)
	}
	stripe.Key = strings.TrimSpace(config.APIKey)
	return NewStripeGatewayWithCreator(stripesession.New, config, opts...)
}

// NewStripeGatewayWithCreator creates a gateway with a custom session
// creator, mainly for tests.
func NewStripeGatewayWithCreator(create StripeSessionCreator, config StripeConfig, opts ...Option) (*StripeGateway, error) {
	if create == nil {
		return nil, fmt.Errorf("%w: stripe session creator is required", ErrInvalidConfiguration)
	}
	if strings.TrimSpace(config.WebhookSecret) == "" {
		return nil, fmt.Errorf("%w: stripe webhook secret is required", ErrInvalidConfiguration)
	}
	if config.SuccessURL == "" || config.CancelURL == "" {
		return nil, fmt.Errorf("%w: stripe success and cancel URLs are required", ErrInvalidConfiguration)
	}
	return &StripeGateway{
		config:        config,
		createSession: create,
		opts:          newOptions(opts),
	}, nil
}

// InitiateCheckout opens a subscription-mode Checkout session.
func (g *StripeGateway) InitiateCheckout(ctx context.Context, req subscription.CheckoutRequest) (*subscription.CheckoutHandle, error) {
	if err := validateCheckoutRequest(req); err != nil {
		return nil, err
	}

	meta := checkoutMetadata(req)
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL:        stripe.String(g.config.SuccessURL),
		CancelURL:         stripe.String(g.config.CancelURL),
		ClientReferenceID: stripe.String(req.TenantID.String()),
		LineItems:         []*stripe.CheckoutSessionLineItemParams{stripeLineItem(req)},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: meta,
		},
		Metadata: meta,
	}

	session, err := g.createSession(params)
	if err != nil {
		return nil, errors.Join(ErrCheckoutFailed, fmt.Errorf("stripe: %w", err))
	}
	if session == nil || session.URL == "" {
		return nil, fmt.Errorf("%w: no checkout URL returned from stripe", ErrCheckoutFailed)
	}

	expires := g.opts.now().UTC().Add(g.opts.checkoutTTL)
	if session.ExpiresAt > 0 {
		expires = time.Unix(session.ExpiresAt, 0).UTC()
	}

	g.opts.logger.InfoContext(ctx, "stripe checkout session opened",
		logger.Component("payment.stripe"),
		logger.TenantID(req.TenantID),
		logger.PlanID(req.PlanID),
		slog.String("session_id", session.ID),
	)

	return &subscription.CheckoutHandle{
		ID:        session.ID,
		URL:       session.URL,
		ExpiresAt: expires,
	}, nil
}

// stripeLineItem uses the catalog price when the tenant pays list price and
// inline price data otherwise.
func stripeLineItem(req subscription.CheckoutRequest) *stripe.CheckoutSessionLineItemParams {
	if req.ProviderPriceID != "" && req.Amount == req.ListPrice {
		return &stripe.CheckoutSessionLineItemParams{
			Price:    stripe.String(req.ProviderPriceID),
			Quantity: stripe.Int64(1),
		}
	}

	interval := "month"
	if req.Cycle == catalog.CycleYearly {
		interval = "year"
	}
	name := req.PlanName
	if name == "" {
		name = req.PlanID
	}
	return &stripe.CheckoutSessionLineItemParams{
		PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
			Currency:   stripe.String(strings.ToLower(req.Amount.Currency)),
			UnitAmount: stripe.Int64(req.Amount.Amount),
			ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
				Name: stripe.String(name),
			},
			Recurring: &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
				Interval: stripe.String(interval),
			},
		},
		Quantity: stripe.Int64(1),
	}
}

type stripeInvoice struct {
	ID                  string            `json:"id"`
	Currency            string            `json:"currency"`
	AmountPaid          int64             `json:"amount_paid"`
	AmountDue           int64             `json:"amount_due"`
	Metadata            map[string]string `json:"metadata"`
	SubscriptionDetails *struct {
		Metadata map[string]string `json:"metadata"`
	} `json:"subscription_details"`
	Parent *struct {
		SubscriptionDetails *struct {
			Metadata map[string]string `json:"metadata"`
		} `json:"subscription_details"`
	} `json:"parent"`
	Lines struct {
		Data []struct {
			Period struct {
				Start int64 `json:"start"`
				End   int64 `json:"end"`
			} `json:"period"`
		} `json:"data"`
	} `json:"lines"`
	LastFinalizationError *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"last_finalization_error"`
	Created int64 `json:"created"`
}

// tenant looks for the tenant ID wherever the API version in use puts
// subscription metadata.
func (inv stripeInvoice) tenant() (string, bool) {
	for _, m := range []map[string]string{
		inv.metadataFromParent(),
		inv.metadataFromDetails(),
		inv.Metadata,
	} {
		if v := m[metaTenantID]; v != "" {
			return v, true
		}
	}
	return "", false
}

func (inv stripeInvoice) metadataFromParent() map[string]string {
	if inv.Parent == nil || inv.Parent.SubscriptionDetails == nil {
		return nil
	}
	return inv.Parent.SubscriptionDetails.Metadata
}

func (inv stripeInvoice) metadataFromDetails() map[string]string {
	if inv.SubscriptionDetails == nil {
		return nil
	}
	return inv.SubscriptionDetails.Metadata
}

// ParseWebhook verifies the Stripe-Signature header and normalizes invoice
// notifications.
func (g *StripeGateway) ParseWebhook(_ context.Context, payload []byte, signature string) (*subscription.WebhookEvent, error) {
	if strings.TrimSpace(signature) == "" {
		return nil, ErrInvalidSignature
	}
	event, err := stripewebhook.ConstructEventWithOptions(payload, signature, g.config.WebhookSecret, stripewebhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, errors.Join(ErrInvalidSignature, err)
	}

	out := &subscription.WebhookEvent{
		Kind:          subscription.WebhookIgnored,
		ProviderEvent: string(event.Type),
	}
	switch string(event.Type) {
	case "invoice.paid", "invoice.payment_failed":
	default:
		return out, nil
	}

	var inv stripeInvoice
	if event.Data == nil {
		return nil, fmt.Errorf("%w: event %s has no data", ErrMalformedEvent, event.ID)
	}
	if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
		return nil, errors.Join(ErrMalformedEvent, fmt.Errorf("decode invoice: %w", err))
	}
	raw, _ := inv.tenant()
	tenantID, err := parseTenantID(raw)
	if err != nil {
		return nil, err
	}
	currency := strings.ToUpper(inv.Currency)

	if string(event.Type) == "invoice.paid" {
		c := &subscription.ChargeSucceeded{
			CorrelationID: inv.ID,
			TenantID:      tenantID,
			Amount:        catalog.Money{Amount: inv.AmountPaid, Currency: currency},
		}
		if len(inv.Lines.Data) > 0 {
			p := inv.Lines.Data[0].Period
			c.PeriodStart = time.Unix(p.Start, 0).UTC()
			c.PeriodEnd = time.Unix(p.End, 0).UTC()
		}
		out.Kind = subscription.WebhookChargeSucceeded
		out.Succeeded = c
		return out, nil
	}

	reason := "payment failed"
	if inv.LastFinalizationError != nil {
		reason = cmp.Or(inv.LastFinalizationError.Message, inv.LastFinalizationError.Code, reason)
	}
	// Stripe retries one invoice several times; each attempt is its own event.
	out.Kind = subscription.WebhookChargeFailed
	out.Failed = &subscription.ChargeFailed{
		CorrelationID: inv.ID + ":" + event.ID,
		TenantID:      tenantID,
		Reason:        reason,
		OccurredAt:    time.Unix(event.Created, 0).UTC(),
		Amount:        catalog.Money{Amount: inv.AmountDue, Currency: currency},
	}
	return out, nil
}
