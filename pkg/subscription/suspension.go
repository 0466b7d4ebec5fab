package subscription

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/freightbill/pkg/audit"
)

// Suspend blocks access for an active or past-due subscription. Suspended
// subscriptions are skipped by the sweep until reactivated.
func (s *Service) Suspend(ctx context.Context, tenantID uuid.UUID, reason string) (*Subscription, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrReasonRequired
	}
	return s.transition(ctx, tenantID, EventSuspended, audit.ActorAdmin, func(sub *Subscription, now time.Time) error {
		sub.Suspension = &Suspension{
			Reason:         reason,
			SuspendedAt:    now,
			PreviousStatus: sub.Status,
		}
		return nil
	})
}

// Reactivate restores access. The subscription returns to active whatever
// its status before suspension.
func (s *Service) Reactivate(ctx context.Context, tenantID uuid.UUID) (*Subscription, error) {
	return s.transition(ctx, tenantID, EventReactivated, audit.ActorAdmin, func(sub *Subscription, _ time.Time) error {
		sub.Suspension = nil
		return nil
	})
}

// ForceCancel terminates a subscription from any non-terminal status.
func (s *Service) ForceCancel(ctx context.Context, tenantID uuid.UUID, reason string) (*Subscription, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrReasonRequired
	}
	sub, err := s.transition(ctx, tenantID, EventForceCancelled, audit.ActorAdmin, func(sub *Subscription, now time.Time) error {
		sub.CancelledAt = &now
		sub.CancelReason = reason
		sub.CancelAtPeriodEnd = false
		sub.PendingChange = nil
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.dropCheckout(ctx, tenantID)
	return sub, nil
}
