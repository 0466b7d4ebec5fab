package payment

import (
	"log/slog"
	"time"
)

// DefaultCheckoutTTL is how long a hosted checkout stays usable when the
// collaborator does not report its own expiry.
const DefaultCheckoutTTL = 24 * time.Hour

type options struct {
	now         func() time.Time
	logger      *slog.Logger
	checkoutTTL time.Duration
}

// Option configures a gateway.
type Option func(*options)

// WithClock overrides the time source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithCheckoutTTL sets the expiry reported for checkouts whose collaborator
// gives none.
func WithCheckoutTTL(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.checkoutTTL = d
		}
	}
}

func newOptions(opts []Option) options {
	o := options{
		now:         time.Now,
		logger:      slog.Default(),
		checkoutTTL: DefaultCheckoutTTL,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
