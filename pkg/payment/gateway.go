package payment

import (
	"fmt"
	"strings"

	"github.com/dmitrymomot/freightbill/pkg/subscription"
	"github.com/dmitrymomot/freightbill/pkg/webhook"
)

// Supported providers.
const (
	ProviderNone   = "none"
	ProviderPaddle = "paddle"
	ProviderStripe = "stripe"
	ProviderSigned = "signed"
)

// Config selects and configures the payment gateway.
type Config struct {
	Provider string `env:"PAYMENT_PROVIDER" envDefault:"none"`
	Paddle   PaddleConfig
	Stripe   StripeConfig
	Signed   SignedConfig
}

// New builds the gateway named by cfg.Provider. ProviderNone returns a nil
// gateway; the subscription service then rejects checkouts and webhooks with
// subscription.ErrCollaboratorUnavailable.
func New(cfg Config, opts ...Option) (subscription.PaymentGateway, error) {
	var (
		gw  subscription.PaymentGateway
		err error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case ProviderNone, "":
		return nil, nil
	case ProviderPaddle:
		gw, err = NewPaddleGateway(cfg.Paddle, opts...)
	case ProviderStripe:
		gw, err = NewStripeGateway(cfg.Stripe, opts...)
	case ProviderSigned:
		gw, err = NewSignedGateway(cfg.Signed, opts...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return gw, nil
}

// SignatureHeader returns the HTTP header a provider signs notifications in.
func SignatureHeader(provider string) string {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case ProviderPaddle:
		return PaddleSignatureHeader
	case ProviderStripe:
		return StripeSignatureHeader
	}
	return webhook.SignatureHeader
}
