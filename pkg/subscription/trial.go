package subscription

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/freightbill/pkg/audit"
	"github.com/dmitrymomot/freightbill/pkg/catalog"
)

// StartTrial opens a free trial on a self-serve plan. A tenant gets one
// trial: a tenant whose previous subscription already had one is refused.
func (s *Service) StartTrial(ctx context.Context, tenantID uuid.UUID, planID string, cycle catalog.Cycle) (*Subscription, error) {
	if tenantID == uuid.Nil {
		return nil, ErrMissingTenantID
	}
	if !cycle.Valid() {
		return nil, catalog.ErrInvalidCycle
	}
	if _, err := s.catalog.Selectable(planID); err != nil {
		return nil, err
	}

	var out *Subscription
	err := s.withTenantLock(ctx, tenantID, func(ctx context.Context) error {
		previous, err := s.store.Get(ctx, tenantID)
		switch {
		case errors.Is(err, ErrSubscriptionNotFound):
		case err != nil:
			return err
		case previous.Status != StatusCancelled:
			return ErrSubscriptionAlreadyExists
		case previous.Trial != nil:
			return ErrTrialNotAvailable
		}

		now := s.now().UTC()
		sub := &Subscription{
			ID:       uuid.New(),
			TenantID: tenantID,
			PlanID:   planID,
			Cycle:    cycle,
			Status:   StatusTrialing,
			Override: TrialPrice(),
			Trial: &Trial{
				StartedAt:     now,
				EndsAt:        now.Add(s.policy.TrialLength),
				MaxExtensions: s.policy.MaxTrialExtensions,
			},
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.reprice(sub); err != nil {
			return err
		}
		if err := s.store.Save(ctx, sub); err != nil {
			return err
		}

		s.record(ctx, sub, change{event: EventTrialStarted, to: StatusTrialing}, audit.ActorTenant, map[string]any{
			"trial_ends_at": sub.Trial.EndsAt,
		})
		out = sub
		return nil
	})
	if err != nil {
		s.logRejected(ctx, tenantID, EventTrialStarted, err)
		return nil, err
	}
	return out, nil
}

// ExtendTrial pushes the trial end forward by the policy increment. Fails
// with ErrExtensionLimitReached once the allowance is used up, leaving the
// counter untouched.
func (s *Service) ExtendTrial(ctx context.Context, tenantID uuid.UUID) (*Subscription, error) {
	return s.transition(ctx, tenantID, EventTrialExtended, audit.ActorTenant, func(sub *Subscription, _ time.Time) error {
		sub.Trial.EndsAt = sub.Trial.EndsAt.Add(s.policy.TrialExtension)
		sub.Trial.ExtensionsUsed++
		return nil
	})
}
