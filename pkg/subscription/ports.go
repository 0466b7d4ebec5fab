package subscription

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/freightbill/pkg/catalog"
	"github.com/dmitrymomot/freightbill/pkg/promotion"
)

// PaymentGateway is the payment collaborator. Implementations live in
// pkg/payment.
type PaymentGateway interface {
	// InitiateCheckout opens a hosted checkout for the amount in req.
	InitiateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutHandle, error)

	// ParseWebhook verifies and normalizes a raw collaborator notification.
	ParseWebhook(ctx context.Context, payload []byte, signature string) (*WebhookEvent, error)
}

// CheckoutRequest carries everything the collaborator needs to charge the
// tenant, including the discount snapshot so it can show the reduction.
type CheckoutRequest struct {
	TenantID        uuid.UUID
	PlanID          string
	PlanName        string
	ProviderPriceID string
	Cycle           catalog.Cycle
	ListPrice       catalog.Money
	Amount          catalog.Money
	Discount        *promotion.Discount
	Accompaniment   bool
}

// CheckoutHandle identifies a hosted checkout at the collaborator.
type CheckoutHandle struct {
	ID        string
	URL       string
	ExpiresAt time.Time
}

// WebhookKind is the normalized type of a collaborator notification.
type WebhookKind string

const (
	WebhookChargeSucceeded WebhookKind = "charge_succeeded"
	WebhookChargeFailed    WebhookKind = "charge_failed"
	WebhookIgnored         WebhookKind = "ignored"
)

// WebhookEvent is a verified collaborator notification. Exactly one of
// Succeeded or Failed is set for charge kinds.
type WebhookEvent struct {
	Kind          WebhookKind
	ProviderEvent string
	Succeeded     *ChargeSucceeded
	Failed        *ChargeFailed
}

// PriceCommitment tells the invoicing collaborator what a tenant owes for a
// period. It is emitted after every committed charge.
type PriceCommitment struct {
	CorrelationID  string        `json:"correlation_id"`
	TenantID       uuid.UUID     `json:"tenant_id"`
	SubscriptionID uuid.UUID     `json:"subscription_id"`
	PlanID         string        `json:"plan_id"`
	Cycle          catalog.Cycle `json:"cycle"`
	Amount         catalog.Money `json:"amount"`
	Override       OverrideKind  `json:"override"`
	PromotionCode  string        `json:"promotion_code,omitempty"`
	PeriodStart    time.Time     `json:"period_start"`
	PeriodEnd      time.Time     `json:"period_end"`
}

// InvoiceNotifier is the fiscal invoicing collaborator.
type InvoiceNotifier interface {
	PriceCommitted(ctx context.Context, c PriceCommitment) error
}

type noopInvoices struct{}

func (noopInvoices) PriceCommitted(context.Context, PriceCommitment) error { return nil }
