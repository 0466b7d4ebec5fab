package invoicing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/freightbill/pkg/logger"
	"github.com/dmitrymomot/freightbill/pkg/subscription"
	"github.com/dmitrymomot/freightbill/pkg/webhook"
)

// Sender posts JSON payloads to an endpoint.
type Sender interface {
	Send(ctx context.Context, endpoint string, data any) error
}

// HTTPNotifier posts price commitments to the invoicing endpoint.
type HTTPNotifier struct {
	endpoint string
	sender   Sender
	logger   *slog.Logger
}

// NewHTTPNotifier creates a notifier. A nil sender defaults to a
// webhook.Sender with default retries and no signature.
func NewHTTPNotifier(endpoint string, sender Sender, log *slog.Logger) (*HTTPNotifier, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("%w: endpoint is required", ErrInvalidConfiguration)
	}
	if sender == nil {
		sender = webhook.NewSender()
	}
	if log == nil {
		log = slog.Default()
	}
	return &HTTPNotifier{endpoint: endpoint, sender: sender, logger: log}, nil
}

func (n *HTTPNotifier) PriceCommitted(ctx context.Context, c subscription.PriceCommitment) error {
	if err := n.sender.Send(ctx, n.endpoint, c); err != nil {
		n.logger.ErrorContext(ctx, "price commitment not delivered",
			logger.Component("invoicing.http"),
			logger.TenantID(c.TenantID),
			logger.CorrelationID(c.CorrelationID),
			logger.Error(err),
		)
		return errors.Join(ErrDeliveryFailed, err)
	}
	return nil
}
