package billingmetrics

import (
	"context"
	"time"

	"github.com/dmitrymomot/freightbill/pkg/subscription"
)

// Source provides the records a snapshot is computed from.
// subscription.Service satisfies it.
type Source interface {
	List(ctx context.Context, f subscription.ListFilter) ([]*subscription.Subscription, error)
	Payments(ctx context.Context, f subscription.PaymentFilter) ([]subscription.Payment, error)
}

// Aggregator computes snapshots from a live Source.
type Aggregator struct {
	source Source
	opts   Options
	now    func() time.Time
}

type AggregatorOption func(*Aggregator)

func WithOptions(o Options) AggregatorOption {
	return func(a *Aggregator) { a.opts = o }
}

// WithClock overrides the time source, mainly for tests.
func WithClock(now func() time.Time) AggregatorOption {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

// NewAggregator panics if source is nil.
func NewAggregator(source Source, opts ...AggregatorOption) *Aggregator {
	if source == nil {
		panic("billingmetrics: Source is required")
	}
	a := &Aggregator{source: source, opts: DefaultOptions(), now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Snapshot reads every subscription record and the failed payments in the
// reporting window.
func (a *Aggregator) Snapshot(ctx context.Context) (Snapshot, error) {
	now := a.now().UTC()

	subs, err := a.source.List(ctx, subscription.ListFilter{})
	if err != nil {
		return Snapshot{}, err
	}
	payments, err := a.source.Payments(ctx, subscription.PaymentFilter{
		Status: subscription.PaymentFailed,
		Since:  now.Add(-a.opts.FailedPaymentWindow),
	})
	if err != nil {
		return Snapshot{}, err
	}
	return Compute(subs, payments, now, a.opts), nil
}
