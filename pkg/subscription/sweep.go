package subscription

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/freightbill/pkg/audit"
	"github.com/dmitrymomot/freightbill/pkg/logger"
)

// SweepReport summarizes one pass over the live subscriptions.
type SweepReport struct {
	Scanned int           `json:"scanned"`
	Changed int           `json:"changed"`
	Failed  int           `json:"failed"`
	Started time.Time     `json:"started"`
	Elapsed time.Duration `json:"elapsed"`
}

var sweepable = []Status{StatusTrialing, StatusActive, StatusPastDue}

// Sweep applies every time-driven transition that is due: expired trials,
// cancellations at period end, accompaniment and discount cycle counting,
// and scheduled plan changes. A failing tenant is logged and counted; the
// run continues. Running it twice at the same instant changes nothing the
// second time.
func (s *Service) Sweep(ctx context.Context) (SweepReport, error) {
	report := SweepReport{Started: s.now().UTC()}

	subs, err := s.store.List(ctx, ListFilter{Statuses: sweepable})
	if err != nil {
		return report, err
	}
	report.Scanned = len(subs)

	var changed, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.policy.SweepWorkers, 1))
	for _, sub := range subs {
		tenantID := sub.TenantID
		g.Go(func() error {
			ok, err := s.SweepTenant(gctx, tenantID)
			switch {
			case err != nil:
				failed.Add(1)
				s.logger.ErrorContext(gctx, "sweep failed for tenant",
					logger.TenantID(tenantID),
					logger.Error(err),
				)
			case ok:
				changed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	report.Changed = int(changed.Load())
	report.Failed = int(failed.Load())
	report.Elapsed = s.now().UTC().Sub(report.Started)

	s.logger.InfoContext(ctx, "sweep finished",
		logger.Component("sweep"),
		slog.Int("scanned", report.Scanned),
		slog.Int("changed", report.Changed),
		slog.Int("failed", report.Failed),
		logger.Duration(report.Elapsed),
	)
	return report, ctx.Err()
}

// SweepTenant applies the due transitions for one tenant and reports whether
// anything changed.
func (s *Service) SweepTenant(ctx context.Context, tenantID uuid.UUID) (bool, error) {
	var dirty bool
	err := s.withTenantLock(ctx, tenantID, func(ctx context.Context) (err error) {
		cl := s.newClaims(tenantID)
		defer func() { cl.settle(ctx, err) }()

		current, err := s.store.Get(ctx, tenantID)
		if err != nil {
			return err
		}
		now := s.now().UTC()

		var (
			changes []change
			touched bool
		)
		next := current.Clone()
		switch next.Status {
		case StatusTrialing:
			changes, err = s.sweepTrial(ctx, next, now)
			touched = len(changes) > 0
		case StatusActive, StatusPastDue:
			changes, touched, err = s.sweepPaid(ctx, cl, next, now)
		}
		if err != nil || !touched {
			return err
		}

		if err := s.store.Save(ctx, next); err != nil {
			return err
		}
		if next.Status == StatusCancelled {
			s.dropCheckout(ctx, tenantID)
		}
		for _, ch := range changes {
			s.record(ctx, next, ch, audit.ActorScheduler, nil)
		}
		dirty = true
		return nil
	})
	return dirty, err
}

func (s *Service) sweepTrial(ctx context.Context, sub *Subscription, now time.Time) ([]change, error) {
	if _, err := s.machine.target(sub, EventTrialExpired, now); err != nil {
		return nil, nil
	}
	live, err := s.liveCheckout(ctx, sub.TenantID)
	if err != nil || live != nil {
		return nil, err
	}
	ch, err := s.apply(sub, EventTrialExpired, now, func(sub *Subscription, now time.Time) error {
		sub.CancelledAt = &now
		sub.CancelReason = "trial expired"
		return nil
	})
	if err != nil {
		return nil, err
	}
	return []change{ch}, nil
}

// sweepPaid also reports cycle counter updates that do not produce an event.
func (s *Service) sweepPaid(ctx context.Context, cl *claims, sub *Subscription, now time.Time) ([]change, bool, error) {
	if _, err := s.machine.target(sub, EventPeriodEnded, now); err == nil {
		ch, err := s.apply(sub, EventPeriodEnded, now, func(sub *Subscription, now time.Time) error {
			sub.CancelledAt = &now
			sub.CancelReason = "cancelled at period end"
			sub.CancelAtPeriodEnd = false
			sub.PendingChange = nil
			return nil
		})
		if err != nil {
			return nil, false, err
		}
		return []change{ch}, true, nil
	}

	var (
		changes []change
		touched bool
	)
	boundary := finishedThrough(sub, now)

	if a := sub.Accompaniment; a.Active() && boundary.After(a.CountedThrough) {
		a.MonthsUsed++
		a.CountedThrough = boundary
		touched = true
		if a.MonthsUsed >= a.TotalMonths {
			ch, err := s.apply(sub, EventAccompanimentLapsed, now, func(sub *Subscription, now time.Time) error {
				sub.Accompaniment.LapsedAt = &now
				sub.Override = StandardPrice()
				return nil
			})
			if err != nil {
				return nil, false, err
			}
			changes = append(changes, ch)
		}
	}

	if d := sub.Discount; d != nil && !d.Permanent() && boundary.After(d.CountedThrough) {
		d.RemainingCycles--
		d.CountedThrough = boundary
		touched = true
		if d.RemainingCycles <= 0 {
			ch, err := s.apply(sub, EventDiscountExpired, now, func(sub *Subscription, _ time.Time) error {
				sub.Discount = nil
				return nil
			})
			if err != nil {
				return nil, false, err
			}
			changes = append(changes, ch)
		}
	}

	if _, err := s.machine.target(sub, EventPlanChangeApplied, now); err == nil {
		ch, err := s.applyPendingChange(ctx, cl, sub, now)
		if err != nil {
			return nil, false, err
		}
		changes = append(changes, ch)
	}

	if !touched && len(changes) == 0 {
		return nil, false, nil
	}
	if err := s.reprice(sub); err != nil {
		return nil, false, err
	}
	sub.UpdatedAt = now
	return changes, true, nil
}

// finishedThrough returns the end of the latest billing period that has
// already finished at now.
func finishedThrough(sub *Subscription, now time.Time) time.Time {
	if !now.Before(sub.PeriodEnd) {
		return sub.PeriodEnd
	}
	return sub.PeriodStart
}
