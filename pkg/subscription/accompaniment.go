package subscription

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/freightbill/pkg/audit"
	"github.com/dmitrymomot/freightbill/pkg/catalog"
)

// AccompanimentEligible reports whether the reduced-price offer can be
// activated for the subscription at the current time.
func (s *Service) AccompanimentEligible(sub *Subscription) bool {
	_, err := s.machine.target(sub, EventAccompanimentActivated, s.now())
	return err == nil
}

// ActivateAccompaniment converts an expired trial into the reduced-price
// offer and opens a monthly checkout at that price. The subscription stays
// trialing until the first charge succeeds.
func (s *Service) ActivateAccompaniment(ctx context.Context, tenantID uuid.UUID) (*Subscription, *Checkout, error) {
	var (
		out      *Subscription
		checkout *Checkout
	)
	err := s.withTenantLock(ctx, tenantID, func(ctx context.Context) error {
		current, err := s.store.Get(ctx, tenantID)
		if err != nil {
			return err
		}
		plan, err := s.catalog.Plan(current.PlanID)
		if err != nil {
			return err
		}
		price := catalog.Money{Amount: s.policy.AccompanimentPrice, Currency: plan.Currency}

		next := current.Clone()
		ch, err := s.apply(next, EventAccompanimentActivated, s.now().UTC(), func(sub *Subscription, now time.Time) error {
			sub.Cycle = catalog.CycleMonthly
			sub.Override = AccompanimentPrice(price)
			sub.Discount = nil
			sub.Accompaniment = &Accompaniment{
				Price:       price,
				TotalMonths: s.policy.AccompanimentMonths,
				ActivatedAt: now,
			}
			return s.reprice(sub)
		})
		if err != nil {
			return err
		}

		list, err := plan.Price(catalog.CycleMonthly)
		if err != nil {
			return err
		}
		c, err := s.openCheckout(ctx, CheckoutRequest{
			TenantID:        tenantID,
			PlanID:          plan.ID,
			PlanName:        plan.Name,
			ProviderPriceID: plan.ProviderPrices.For(catalog.CycleMonthly),
			Cycle:           catalog.CycleMonthly,
			ListPrice:       list,
			Amount:          next.Amount,
			Accompaniment:   true,
		})
		if err != nil {
			return err
		}
		if err := s.checkouts.Save(ctx, *c); err != nil {
			return err
		}
		if err := s.store.Save(ctx, next); err != nil {
			return err
		}

		s.record(ctx, next, ch, audit.ActorTenant, map[string]any{
			"price":  price.Amount,
			"months": s.policy.AccompanimentMonths,
		})
		out, checkout = next, c
		return nil
	})
	if err != nil {
		s.logRejected(ctx, tenantID, EventAccompanimentActivated, err)
		return nil, nil, err
	}
	return out, checkout, nil
}
