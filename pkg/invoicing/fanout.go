package invoicing

import (
	"context"
	"errors"

	"github.com/dmitrymomot/freightbill/pkg/subscription"
)

// Fanout delivers to every notifier in order and joins their errors.
type Fanout []subscription.InvoiceNotifier

func (f Fanout) PriceCommitted(ctx context.Context, c subscription.PriceCommitment) error {
	var errs []error
	for _, n := range f {
		if n == nil {
			continue
		}
		if err := n.PriceCommitted(ctx, c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
