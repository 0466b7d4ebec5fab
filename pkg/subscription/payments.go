package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/freightbill/pkg/audit"
	"github.com/dmitrymomot/freightbill/pkg/catalog"
	"github.com/dmitrymomot/freightbill/pkg/logger"
)

// HandleWebhook verifies a raw collaborator notification and applies it.
// Ignored notification kinds return nil.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if s.gateway == nil {
		return errors.Join(ErrCollaboratorUnavailable, errors.New("no payment gateway configured"))
	}
	ev, err := s.gateway.ParseWebhook(ctx, payload, signature)
	if err != nil {
		return errors.Join(ErrInvalidWebhook, err)
	}

	switch ev.Kind {
	case WebhookChargeSucceeded:
		if ev.Succeeded == nil {
			return fmt.Errorf("%w: %s without charge data", ErrInvalidWebhook, ev.ProviderEvent)
		}
		return s.HandleChargeSucceeded(ctx, *ev.Succeeded)
	case WebhookChargeFailed:
		if ev.Failed == nil {
			return fmt.Errorf("%w: %s without charge data", ErrInvalidWebhook, ev.ProviderEvent)
		}
		return s.HandleChargeFailed(ctx, *ev.Failed)
	}

	s.logger.DebugContext(ctx, "payment webhook ignored", logger.Component(ev.ProviderEvent))
	return nil
}

// HandleChargeSucceeded applies a captured charge. The first charge after a
// checkout converts the tenant to active and redeems the checkout's
// promotion code; later charges renew the billing period. Redeliveries of
// the same correlation id return ErrDuplicateEvent without side effects.
func (s *Service) HandleChargeSucceeded(ctx context.Context, ev ChargeSucceeded) error {
	return s.once(ctx, "charge_succeeded:"+ev.CorrelationID, ev.CorrelationID, ev.TenantID, func(ctx context.Context) error {
		return s.applyChargeSucceeded(ctx, ev)
	})
}

// HandleChargeFailed applies a declined charge: active subscriptions become
// past_due, trialing tenants lose their pending checkout, suspended
// subscriptions stay suspended.
func (s *Service) HandleChargeFailed(ctx context.Context, ev ChargeFailed) error {
	return s.once(ctx, "charge_failed:"+ev.CorrelationID, ev.CorrelationID, ev.TenantID, func(ctx context.Context) error {
		return s.applyChargeFailed(ctx, ev)
	})
}

// once deduplicates by correlation id. Infrastructure failures release the
// reservation so a redelivery can retry; business rejections keep it.
func (s *Service) once(ctx context.Context, key, correlationID string, tenantID uuid.UUID, fn func(ctx context.Context) error) error {
	if correlationID == "" {
		return ErrMissingCorrelationID
	}
	if tenantID == uuid.Nil {
		return ErrMissingTenantID
	}

	first, err := s.dedup.Reserve(ctx, key)
	if err != nil {
		return err
	}
	if !first {
		s.logger.InfoContext(ctx, "duplicate payment event dropped",
			logger.TenantID(tenantID),
			logger.CorrelationID(correlationID),
		)
		return ErrDuplicateEvent
	}

	err = s.withTenantLock(ctx, tenantID, fn)
	if err != nil && !IsRejection(err) {
		if relErr := s.dedup.Release(ctx, key); relErr != nil {
			s.logger.ErrorContext(ctx, "failed to release event reservation",
				logger.CorrelationID(correlationID),
				logger.Error(relErr),
			)
		}
	}
	return err
}

func (s *Service) applyChargeSucceeded(ctx context.Context, ev ChargeSucceeded) (err error) {
	now := s.now().UTC()
	cl := s.newClaims(ev.TenantID)
	defer func() { cl.settle(ctx, err) }()

	current, err := s.store.Get(ctx, ev.TenantID)
	if err != nil && !errors.Is(err, ErrSubscriptionNotFound) {
		return err
	}
	checkout, err := s.checkouts.Get(ctx, ev.TenantID)
	if err != nil && !errors.Is(err, ErrCheckoutNotFound) {
		return err
	}

	var (
		next *Subscription
		ch   change
	)
	switch {
	case current == nil || current.Status == StatusCancelled:
		if checkout == nil {
			if current == nil {
				return ErrSubscriptionNotFound
			}
			return &TransitionError{From: current.Status, Event: EventChargeSucceeded}
		}
		// A brand-new record starts from the provisional checkout state,
		// which the machine models as trialing.
		next = &Subscription{
			ID:        uuid.New(),
			TenantID:  ev.TenantID,
			PlanID:    checkout.PlanID,
			Cycle:     checkout.Cycle,
			Status:    StatusTrialing,
			Override:  StandardPrice(),
			CreatedAt: now,
		}
		ch, err = s.apply(next, EventCheckoutCompleted, now, s.convert(ctx, cl, ev, checkout))
		if err != nil {
			return err
		}
		ch.from = statusPending

	case current.Status == StatusTrialing:
		next = current.Clone()
		ch, err = s.apply(next, EventCheckoutCompleted, now, s.convert(ctx, cl, ev, checkout))
		if err != nil {
			return err
		}

	default:
		next = current.Clone()
		ch, err = s.apply(next, EventChargeSucceeded, now, func(sub *Subscription, _ time.Time) error {
			start, end := billingPeriod(ev, sub.Cycle, sub.PeriodEnd)
			if end.After(sub.PeriodEnd) {
				sub.PeriodStart, sub.PeriodEnd = start, end
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	if err := s.store.Save(ctx, next); err != nil {
		return err
	}
	if ch.event == EventCheckoutCompleted {
		s.dropCheckout(ctx, ev.TenantID)
	}

	s.record(ctx, next, ch, audit.ActorPayment, map[string]any{
		"correlation_id": ev.CorrelationID,
		"amount":         ev.Amount.Amount,
	})
	s.recordPayment(ctx, Payment{
		ID:         ev.CorrelationID,
		TenantID:   ev.TenantID,
		Status:     PaymentCompleted,
		Amount:     ev.Amount,
		OccurredAt: now,
	})
	s.commitPrice(ctx, next, ev)
	return nil
}

// convert turns a trialing (or brand-new) subscription into a paid one using
// the pending checkout terms, falling back to the trial's own plan.
func (s *Service) convert(ctx context.Context, cl *claims, ev ChargeSucceeded, checkout *Checkout) mutation {
	return func(sub *Subscription, now time.Time) error {
		accompaniment := sub.Accompaniment.Active()
		if checkout != nil {
			sub.PlanID = checkout.PlanID
			sub.Cycle = checkout.Cycle
			accompaniment = accompaniment && checkout.Accompaniment
		}

		if sub.Trial != nil {
			sub.Trial.ConvertedAt = &now
		}
		sub.PeriodStart, sub.PeriodEnd = billingPeriod(ev, sub.Cycle, now)

		if accompaniment {
			sub.Override = AccompanimentPrice(sub.Accompaniment.Price)
			sub.Accompaniment.CountedThrough = sub.PeriodStart
		} else {
			sub.Override = StandardPrice()
			lapseAccompaniment(sub, now)
		}
		sub.Discount = nil

		if checkout != nil && checkout.PromotionCode != "" {
			// Redemption is the last step so earlier failures never consume a use.
			if err := s.reprice(sub); err != nil {
				return err
			}
			d, err := cl.redeem(ctx, checkout.PromotionCode)
			if err != nil {
				s.logger.WarnContext(ctx, "promotion not applied at conversion",
					logger.TenantID(sub.TenantID),
					logger.PromotionCode(checkout.PromotionCode),
					logger.Error(err),
				)
				_ = s.audit.LogError(ctx, "promotion_redemption_failed", err,
					audit.WithTenant(sub.TenantID.String()),
					audit.WithActor(audit.ActorPayment),
					audit.WithMetadata(map[string]any{"code": checkout.PromotionCode}),
				)
				return nil
			}
			sub.Discount = newAppliedDiscount(d, now, sub.PeriodStart)
		}
		return s.reprice(sub)
	}
}

// billingPeriod returns the charge's period. Collaborators that omit it get
// one cycle starting at from.
func billingPeriod(ev ChargeSucceeded, cycle catalog.Cycle, from time.Time) (time.Time, time.Time) {
	start, end := ev.PeriodStart, ev.PeriodEnd
	if start.IsZero() {
		start = from
	}
	if !end.After(start) {
		end = cycle.Advance(start)
	}
	return start, end
}

func (s *Service) applyChargeFailed(ctx context.Context, ev ChargeFailed) error {
	now := s.now().UTC()
	occurred := ev.OccurredAt
	if occurred.IsZero() {
		occurred = now
	}
	payment := Payment{
		ID:         ev.CorrelationID,
		TenantID:   ev.TenantID,
		Status:     PaymentFailed,
		Amount:     ev.Amount,
		Reason:     ev.Reason,
		OccurredAt: occurred,
	}

	current, err := s.store.Get(ctx, ev.TenantID)
	if errors.Is(err, ErrSubscriptionNotFound) {
		// A brand-new tenant's first charge failed: only the checkout exists.
		if _, cerr := s.checkouts.Get(ctx, ev.TenantID); cerr != nil {
			return err
		}
		s.dropCheckout(ctx, ev.TenantID)
		s.recordPayment(ctx, payment)
		return nil
	}
	if err != nil {
		return err
	}

	next := current.Clone()
	ch, err := s.apply(next, EventChargeFailed, now, nil)
	if err != nil {
		return err
	}
	if err := s.store.Save(ctx, next); err != nil {
		return err
	}
	if next.Status == StatusTrialing {
		s.dropCheckout(ctx, ev.TenantID)
	}

	s.record(ctx, next, ch, audit.ActorPayment, map[string]any{
		"correlation_id": ev.CorrelationID,
		"reason":         ev.Reason,
	})
	s.recordPayment(ctx, payment)
	return nil
}

func (s *Service) recordPayment(ctx context.Context, p Payment) {
	if err := s.payments.Record(ctx, p); err != nil {
		s.logger.ErrorContext(ctx, "failed to record payment",
			logger.TenantID(p.TenantID),
			logger.CorrelationID(p.ID),
			logger.Error(err),
		)
	}
}

// commitPrice notifies invoicing. Failures are logged: the charge already
// happened and must not be rolled back.
func (s *Service) commitPrice(ctx context.Context, sub *Subscription, ev ChargeSucceeded) {
	c := PriceCommitment{
		CorrelationID:  ev.CorrelationID,
		TenantID:       sub.TenantID,
		SubscriptionID: sub.ID,
		PlanID:         sub.PlanID,
		Cycle:          sub.Cycle,
		Amount:         sub.Amount,
		Override:       sub.Override.Kind,
		PeriodStart:    ev.PeriodStart,
		PeriodEnd:      ev.PeriodEnd,
	}
	if sub.Discount.InEffect() {
		c.PromotionCode = sub.Discount.Code
	}
	if err := s.invoices.PriceCommitted(ctx, c); err != nil {
		s.logger.ErrorContext(ctx, "invoicing notification failed",
			logger.TenantID(sub.TenantID),
			logger.CorrelationID(ev.CorrelationID),
			logger.Error(errors.Join(ErrCollaboratorUnavailable, err)),
		)
	}
}
