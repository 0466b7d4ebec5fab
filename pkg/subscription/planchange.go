package subscription

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/freightbill/pkg/audit"
	"github.com/dmitrymomot/freightbill/pkg/catalog"
	"github.com/dmitrymomot/freightbill/pkg/logger"
)

// ChangeRequest asks to move a paid subscription to another plan or cycle.
type ChangeRequest struct {
	PlanID        string
	Cycle         catalog.Cycle
	PromotionCode string
}

// ChangeResult describes how a plan change was handled.
type ChangeResult struct {
	Subscription *Subscription
	// Immediate is true for upgrades, false for changes deferred to the
	// end of the current period.
	Immediate bool
	// Replaced is the previously scheduled change overwritten by this one.
	Replaced *PendingChange
}

// ChangePlan upgrades immediately and schedules downgrades or lateral moves
// for the end of the current period. A later schedule replaces an earlier
// one.
func (s *Service) ChangePlan(ctx context.Context, tenantID uuid.UUID, req ChangeRequest) (*ChangeResult, error) {
	if req.Cycle == "" {
		req.Cycle = catalog.CycleMonthly
	}
	if !req.Cycle.Valid() {
		return nil, catalog.ErrInvalidCycle
	}
	target, err := s.catalog.Selectable(req.PlanID)
	if err != nil {
		return nil, err
	}

	var (
		out     *ChangeResult
		upgrade bool
	)
	err = s.withTenantLock(ctx, tenantID, func(ctx context.Context) (err error) {
		cl := s.newClaims(tenantID)
		defer func() { cl.settle(ctx, err) }()

		current, err := s.store.Get(ctx, tenantID)
		if err != nil {
			return err
		}
		if current.Status != StatusActive && current.Status != StatusPastDue {
			return &TransitionError{From: current.Status, Event: EventPlanChangeScheduled}
		}
		if current.PlanID == target.ID && current.Cycle == req.Cycle {
			return ErrSamePlan
		}
		upgrade, err = s.catalog.IsUpgrade(current.PlanID, target.ID)
		if err != nil {
			return err
		}
		if req.PromotionCode != "" {
			if _, err := s.promotions.Validate(ctx, req.PromotionCode, target.ID, tenantID); err != nil {
				return err
			}
		}

		next := current.Clone()
		res := &ChangeResult{Subscription: next, Immediate: upgrade}
		var ch change
		if upgrade {
			ch, err = s.apply(next, EventPlanUpgraded, s.now().UTC(), func(sub *Subscription, now time.Time) error {
				sub.PlanID, sub.Cycle = target.ID, req.Cycle
				sub.PendingChange = nil
				lapseAccompaniment(sub, now)
				if err := s.reprice(sub); err != nil {
					return err
				}
				if req.PromotionCode == "" {
					return nil
				}
				d, err := cl.redeem(ctx, req.PromotionCode)
				if err != nil {
					return err
				}
				sub.Discount = newAppliedDiscount(d, now, finishedThrough(sub, now))
				return s.reprice(sub)
			})
		} else {
			ch, err = s.apply(next, EventPlanChangeScheduled, s.now().UTC(), func(sub *Subscription, now time.Time) error {
				res.Replaced = sub.PendingChange
				sub.PendingChange = &PendingChange{
					PlanID:        target.ID,
					Cycle:         req.Cycle,
					EffectiveAt:   sub.PeriodEnd,
					PromotionCode: req.PromotionCode,
					RequestedAt:   now,
				}
				return nil
			})
		}
		if err != nil {
			return err
		}
		if err := s.store.Save(ctx, next); err != nil {
			return err
		}

		md := map[string]any{"plan_id": target.ID, "cycle": string(req.Cycle)}
		if res.Replaced != nil {
			md["replaced_plan_id"] = res.Replaced.PlanID
			s.logger.WarnContext(ctx, "scheduled plan change replaced",
				logger.TenantID(tenantID),
				logger.PlanID(res.Replaced.PlanID),
			)
		}
		s.record(ctx, next, ch, audit.ActorTenant, md)
		out = res
		return nil
	})
	if err != nil {
		event := EventPlanChangeScheduled
		if upgrade {
			event = EventPlanUpgraded
		}
		s.logRejected(ctx, tenantID, event, err)
		return nil, err
	}
	return out, nil
}

// applyPendingChange moves the subscription to its scheduled plan. A failed
// promotion redemption keeps the existing discount snapshot.
func (s *Service) applyPendingChange(ctx context.Context, cl *claims, sub *Subscription, now time.Time) (change, error) {
	return s.apply(sub, EventPlanChangeApplied, now, func(sub *Subscription, now time.Time) error {
		pc := sub.PendingChange
		if _, err := s.catalog.Plan(pc.PlanID); err != nil {
			return err
		}
		sub.PlanID, sub.Cycle = pc.PlanID, pc.Cycle
		sub.PendingChange = nil
		lapseAccompaniment(sub, now)

		if pc.PromotionCode != "" {
			d, err := cl.redeem(ctx, pc.PromotionCode)
			if err != nil {
				s.logger.WarnContext(ctx, "scheduled promotion not applied",
					logger.TenantID(sub.TenantID),
					logger.PromotionCode(pc.PromotionCode),
					logger.Error(err),
				)
			} else {
				sub.Discount = newAppliedDiscount(d, now, finishedThrough(sub, now))
			}
		}
		return s.reprice(sub)
	})
}

func lapseAccompaniment(sub *Subscription, now time.Time) {
	if sub.Accompaniment.Active() {
		sub.Accompaniment.LapsedAt = &now
	}
	if sub.Override.Kind == OverrideAccompaniment {
		sub.Override = StandardPrice()
	}
}
