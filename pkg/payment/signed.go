package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/freightbill/pkg/catalog"
	"github.com/dmitrymomot/freightbill/pkg/logger"
	"github.com/dmitrymomot/freightbill/pkg/subscription"
	"github.com/dmitrymomot/freightbill/pkg/webhook"
)

// SignedConfig holds configuration for the signed JSON gateway.
type SignedConfig struct {
	CheckoutURL string        `env:"SIGNED_CHECKOUT_URL"`
	Secret      string        `env:"SIGNED_WEBHOOK_SECRET"`
	Tolerance   time.Duration `env:"SIGNED_WEBHOOK_TOLERANCE" envDefault:"5m"`
}

// Signed notification types.
const (
	SignedChargeSucceeded = "charge.succeeded"
	SignedChargeFailed    = "charge.failed"
)

// SignedNotification is the JSON body posted by a signed payment relay. It is
// signed with webhook.Sign and the signature sent in webhook.SignatureHeader.
type SignedNotification struct {
	ID          string        `json:"id"`
	Type        string        `json:"type"`
	TenantID    string        `json:"tenant_id"`
	PeriodStart time.Time     `json:"period_start,omitzero"`
	PeriodEnd   time.Time     `json:"period_end,omitzero"`
	Amount      catalog.Money `json:"amount"`
	Reason      string        `json:"reason,omitempty"`
	OccurredAt  time.Time     `json:"occurred_at,omitzero"`
}

// SignedGateway implements subscription.PaymentGateway for an in-house relay.
// Checkout URLs point at the relay and carry a signed query; notifications
// come back as SignedNotification bodies.
type SignedGateway struct {
	base   *url.URL
	config SignedConfig
	opts   options
}

// NewSignedGateway creates a signed gateway.
func NewSignedGateway(config SignedConfig, opts ...Option) (*SignedGateway, error) {
	if config.Secret == "" {
		return nil, fmt.Errorf("%w: signed gateway secret is required", ErrInvalidConfiguration)
	}
	base, err := url.Parse(config.CheckoutURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: invalid checkout URL %q", ErrInvalidConfiguration, config.CheckoutURL)
	}
	if config.Tolerance <= 0 {
		config.Tolerance = webhook.DefaultTolerance
	}
	return &SignedGateway{base: base, config: config, opts: newOptions(opts)}, nil
}

// InitiateCheckout builds a relay URL whose query is signed with the shared
// secret so the relay can trust the amount.
func (g *SignedGateway) InitiateCheckout(ctx context.Context, req subscription.CheckoutRequest) (*subscription.CheckoutHandle, error) {
	if err := validateCheckoutRequest(req); err != nil {
		return nil, err
	}

	now := g.opts.now().UTC()
	id := "chk_" + uuid.NewString()

	q := url.Values{}
	q.Set("checkout_id", id)
	for k, v := range checkoutMetadata(req) {
		q.Set(k, v)
	}
	q.Set("expires_at", strconv.FormatInt(now.Add(g.opts.checkoutTTL).Unix(), 10))

	sig, err := webhook.Sign(g.config.Secret, []byte(q.Encode()), now)
	if err != nil {
		return nil, errors.Join(ErrCheckoutFailed, err)
	}
	q.Set("signature", sig)

	u := *g.base
	u.RawQuery = q.Encode()

	g.opts.logger.InfoContext(ctx, "signed checkout issued",
		logger.Component("payment.signed"),
		logger.TenantID(req.TenantID),
		logger.PlanID(req.PlanID),
		slog.String("checkout_id", id),
	)

	return &subscription.CheckoutHandle{
		ID:        id,
		URL:       u.String(),
		ExpiresAt: now.Add(g.opts.checkoutTTL),
	}, nil
}

// ParseWebhook verifies the HMAC signature and normalizes the notification.
func (g *SignedGateway) ParseWebhook(_ context.Context, payload []byte, signature string) (*subscription.WebhookEvent, error) {
	if err := webhook.Verify(g.config.Secret, payload, signature, g.config.Tolerance, g.opts.now()); err != nil {
		return nil, errors.Join(ErrInvalidSignature, err)
	}

	var n SignedNotification
	if err := json.Unmarshal(payload, &n); err != nil {
		return nil, errors.Join(ErrMalformedEvent, err)
	}

	event := &subscription.WebhookEvent{
		Kind:          subscription.WebhookIgnored,
		ProviderEvent: n.Type,
	}
	switch n.Type {
	case SignedChargeSucceeded, SignedChargeFailed:
	default:
		return event, nil
	}

	tenantID, err := parseTenantID(n.TenantID)
	if err != nil {
		return nil, err
	}

	if n.Type == SignedChargeSucceeded {
		event.Kind = subscription.WebhookChargeSucceeded
		event.Succeeded = &subscription.ChargeSucceeded{
			CorrelationID: n.ID,
			TenantID:      tenantID,
			PeriodStart:   n.PeriodStart.UTC(),
			PeriodEnd:     n.PeriodEnd.UTC(),
			Amount:        n.Amount,
		}
		return event, nil
	}

	occurred := n.OccurredAt
	if occurred.IsZero() {
		occurred = g.opts.now()
	}
	event.Kind = subscription.WebhookChargeFailed
	event.Failed = &subscription.ChargeFailed{
		CorrelationID: n.ID,
		TenantID:      tenantID,
		Reason:        n.Reason,
		OccurredAt:    occurred.UTC(),
		Amount:        n.Amount,
	}
	return event, nil
}
