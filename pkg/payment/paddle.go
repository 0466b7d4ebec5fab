package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"

	"github.com/dmitrymomot/freightbill/pkg/catalog"
	"github.com/dmitrymomot/freightbill/pkg/logger"
	"github.com/dmitrymomot/freightbill/pkg/subscription"
)

// PaddleSignatureHeader carries the Paddle notification signature.
const PaddleSignatureHeader = "Paddle-Signature"

// PaddleConfig holds configuration for the Paddle gateway.
type PaddleConfig struct {
	APIKey        string `env:"PADDLE_API_KEY"`
	WebhookSecret string `env:"PADDLE_WEBHOOK_SECRET"`
	Environment   string `env:"PADDLE_ENVIRONMENT" envDefault:"production"`
	ReturnURL     string `env:"PADDLE_RETURN_URL"`
}

// PaddleTransactions is the part of the Paddle SDK the gateway calls.
type PaddleTransactions interface {
	CreateTransaction(ctx context.Context, req *paddle.CreateTransactionRequest) (*paddle.Transaction, error)
}

// PaddleGateway implements subscription.PaymentGateway on Paddle Billing.
// Checkouts are transactions built from catalog prices; the committed amount
// and any promotion code travel in custom data.
type PaddleGateway struct {
	transactions PaddleTransactions
	verifier     *paddle.WebhookVerifier
	config       PaddleConfig
	opts         options
}

// NewPaddleGateway creates a gateway backed by the Paddle API.
func NewPaddleGateway(config PaddleConfig, opts ...Option) (*PaddleGateway, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("%w: paddle API key is required", ErrInvalidConfiguration)
	}

	var (
		client *paddle.SDK
		err    error
	)
	switch strings.ToLower(config.Environment) {
	case "sandbox":
		client, err = paddle.NewSandbox(config.APIKey)
	case "production", "":
		client, err = paddle.New(config.APIKey)
	default:
		return nil, fmt.Errorf("%w: invalid paddle environment %q", ErrInvalidConfiguration, config.Environment)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create paddle client: %w", err)
	}

	return NewPaddleGatewayWithClient(client.TransactionsClient, config, opts...)
}

// NewPaddleGatewayWithClient creates a gateway around an existing
// transactions client.
func NewPaddleGatewayWithClient(transactions PaddleTransactions, config PaddleConfig, opts ...Option) (*PaddleGateway, error) {
	if transactions == nil {
		return nil, fmt.Errorf("%w: paddle transactions client is required", ErrInvalidConfiguration)
	}
	if config.WebhookSecret == "" {
		return nil, fmt.Errorf("%w: paddle webhook secret is required", ErrInvalidConfiguration)
	}
	return &PaddleGateway{
		transactions: transactions,
		verifier:     paddle.NewWebhookVerifier(config.WebhookSecret),
		config:       config,
		opts:         newOptions(opts),
	}, nil
}

// InitiateCheckout opens a Paddle transaction for the plan's catalog price.
func (g *PaddleGateway) InitiateCheckout(ctx context.Context, req subscription.CheckoutRequest) (*subscription.CheckoutHandle, error) {
	if err := validateCheckoutRequest(req); err != nil {
		return nil, err
	}
	if req.ProviderPriceID == "" {
		return nil, errors.Join(ErrCheckoutFailed, ErrMissingPriceID)
	}

	item := paddle.NewCreateTransactionItemsTransactionItemFromCatalog(&paddle.TransactionItemFromCatalog{
		PriceID:  req.ProviderPriceID,
		Quantity: 1,
	})

	customData := paddle.CustomData{}
	for k, v := range checkoutMetadata(req) {
		customData[k] = v
	}

	txReq := &paddle.CreateTransactionRequest{
		Items:      []paddle.CreateTransactionItems{*item},
		CustomData: customData,
	}
	if g.config.ReturnURL != "" {
		txReq.Checkout = &paddle.TransactionCheckout{
			URL: paddle.PtrTo(g.config.ReturnURL),
		}
	}

	tx, err := g.transactions.CreateTransaction(ctx, txReq)
	if err != nil {
		return nil, errors.Join(ErrCheckoutFailed, fmt.Errorf("paddle: %w", err))
	}
	if tx.Checkout == nil || tx.Checkout.URL == nil || *tx.Checkout.URL == "" {
		return nil, fmt.Errorf("%w: no checkout URL returned from paddle", ErrCheckoutFailed)
	}

	g.opts.logger.InfoContext(ctx, "paddle transaction opened",
		logger.Component("payment.paddle"),
		logger.TenantID(req.TenantID),
		logger.PlanID(req.PlanID),
		slog.String("transaction_id", tx.ID),
	)

	return &subscription.CheckoutHandle{
		ID:        tx.ID,
		URL:       *tx.Checkout.URL,
		ExpiresAt: g.opts.now().UTC().Add(g.opts.checkoutTTL),
	}, nil
}

type paddleNotification struct {
	EventID    string            `json:"event_id"`
	EventType  string            `json:"event_type"`
	OccurredAt time.Time         `json:"occurred_at"`
	Data       paddleTransaction `json:"data"`
}

type paddleTransaction struct {
	ID            string            `json:"id"`
	Status        string            `json:"status"`
	CurrencyCode  string            `json:"currency_code"`
	CustomData    map[string]string `json:"custom_data"`
	BillingPeriod *struct {
		StartsAt time.Time `json:"starts_at"`
		EndsAt   time.Time `json:"ends_at"`
	} `json:"billing_period"`
	Details struct {
		Totals struct {
			GrandTotal string `json:"grand_total"`
		} `json:"totals"`
	} `json:"details"`
	Payments []struct {
		PaymentAttemptID string `json:"payment_attempt_id"`
		Status           string `json:"status"`
		ErrorCode        string `json:"error_code"`
	} `json:"payments"`
}

// ParseWebhook verifies the Paddle-Signature header and normalizes
// transaction notifications.
func (g *PaddleGateway) ParseWebhook(ctx context.Context, payload []byte, signature string) (*subscription.WebhookEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/webhooks/payments", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request for verification: %w", err)
	}
	req.Header.Set(PaddleSignatureHeader, signature)

	valid, err := g.verifier.Verify(req)
	if err != nil {
		return nil, errors.Join(ErrInvalidSignature, err)
	}
	if !valid {
		return nil, ErrInvalidSignature
	}

	var n paddleNotification
	if err := json.Unmarshal(payload, &n); err != nil {
		return nil, errors.Join(ErrMalformedEvent, err)
	}

	event := &subscription.WebhookEvent{
		Kind:          subscription.WebhookIgnored,
		ProviderEvent: n.EventType,
	}
	switch n.EventType {
	case "transaction.completed":
		succeeded, err := n.Data.succeeded()
		if err != nil {
			return nil, err
		}
		event.Kind = subscription.WebhookChargeSucceeded
		event.Succeeded = succeeded
	case "transaction.payment_failed":
		failed, err := n.Data.failed(n.OccurredAt)
		if err != nil {
			return nil, err
		}
		event.Kind = subscription.WebhookChargeFailed
		event.Failed = failed
	}
	return event, nil
}

func (t paddleTransaction) succeeded() (*subscription.ChargeSucceeded, error) {
	tenantID, err := parseTenantID(t.CustomData[metaTenantID])
	if err != nil {
		return nil, err
	}
	amount, err := t.amount()
	if err != nil {
		return nil, err
	}
	c := &subscription.ChargeSucceeded{
		CorrelationID: t.ID,
		TenantID:      tenantID,
		Amount:        amount,
	}
	if t.BillingPeriod != nil {
		c.PeriodStart = t.BillingPeriod.StartsAt.UTC()
		c.PeriodEnd = t.BillingPeriod.EndsAt.UTC()
	}
	return c, nil
}

func (t paddleTransaction) failed(occurredAt time.Time) (*subscription.ChargeFailed, error) {
	tenantID, err := parseTenantID(t.CustomData[metaTenantID])
	if err != nil {
		return nil, err
	}
	amount, err := t.amount()
	if err != nil {
		return nil, err
	}

	// Each declined attempt on the same transaction is a separate charge.
	correlationID := t.ID
	reason := "payment failed"
	if len(t.Payments) > 0 {
		last := t.Payments[0]
		if last.PaymentAttemptID != "" {
			correlationID = last.PaymentAttemptID
		}
		if last.ErrorCode != "" {
			reason = last.ErrorCode
		}
	}

	return &subscription.ChargeFailed{
		CorrelationID: correlationID,
		TenantID:      tenantID,
		Reason:        reason,
		OccurredAt:    occurredAt.UTC(),
		Amount:        amount,
	}, nil
}

func (t paddleTransaction) amount() (catalog.Money, error) {
	m := catalog.Money{Currency: t.CurrencyCode}
	if t.Details.Totals.GrandTotal == "" {
		return m, nil
	}
	v, err := strconv.ParseInt(t.Details.Totals.GrandTotal, 10, 64)
	if err != nil {
		return catalog.Money{}, errors.Join(ErrMalformedEvent, fmt.Errorf("grand_total: %w", err))
	}
	m.Amount = v
	return m, nil
}
