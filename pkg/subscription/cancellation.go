package subscription

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/freightbill/pkg/audit"
)

// RequestCancellation ends a trial immediately. Paid subscriptions keep
// access until the end of the current period and are cancelled by the sweep.
func (s *Service) RequestCancellation(ctx context.Context, tenantID uuid.UUID) (*Subscription, error) {
	sub, err := s.transition(ctx, tenantID, EventCancellationRequested, audit.ActorTenant, func(sub *Subscription, now time.Time) error {
		if sub.Status == StatusTrialing {
			sub.CancelledAt = &now
			sub.CancelReason = "cancelled during trial"
			return nil
		}
		sub.CancelAtPeriodEnd = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if sub.Status == StatusCancelled {
		s.dropCheckout(ctx, tenantID)
	}
	return sub, nil
}

// WithdrawCancellation keeps a subscription that was set to cancel at period
// end.
func (s *Service) WithdrawCancellation(ctx context.Context, tenantID uuid.UUID) (*Subscription, error) {
	return s.transition(ctx, tenantID, EventCancellationWithdrawn, audit.ActorTenant, func(sub *Subscription, _ time.Time) error {
		sub.CancelAtPeriodEnd = false
		return nil
	})
}
