package subscription

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/dmitrymomot/freightbill/pkg/catalog"
	"github.com/dmitrymomot/freightbill/pkg/logger"
	"github.com/dmitrymomot/freightbill/pkg/promotion"
)

// CheckoutParams is a tenant's request to pay for a plan.
type CheckoutParams struct {
	PlanID        string
	Cycle         catalog.Cycle
	PromotionCode string
}

// ValidatePromotion previews a code for a plan without consuming it.
func (s *Service) ValidatePromotion(ctx context.Context, tenantID uuid.UUID, code, planID string) (promotion.Discount, error) {
	if _, err := s.catalog.Selectable(planID); err != nil {
		return promotion.Discount{}, err
	}
	return s.promotions.Validate(ctx, code, planID, tenantID)
}

// InitiateCheckout opens a payment for a tenant without a live paid
// subscription: a new tenant, a trialing tenant converting, or a tenant
// returning after cancellation. The promotion code is validated now and
// redeemed only when the first charge succeeds.
func (s *Service) InitiateCheckout(ctx context.Context, tenantID uuid.UUID, params CheckoutParams) (*Checkout, error) {
	if tenantID == uuid.Nil {
		return nil, ErrMissingTenantID
	}
	if params.Cycle == "" {
		params.Cycle = catalog.CycleMonthly
	}
	if !params.Cycle.Valid() {
		return nil, catalog.ErrInvalidCycle
	}
	plan, err := s.catalog.Selectable(params.PlanID)
	if err != nil {
		return nil, err
	}

	var out *Checkout
	err = s.withTenantLock(ctx, tenantID, func(ctx context.Context) error {
		sub, err := s.store.Get(ctx, tenantID)
		switch {
		case errors.Is(err, ErrSubscriptionNotFound):
		case err != nil:
			return err
		case sub.Status != StatusTrialing && sub.Status != StatusCancelled:
			return &TransitionError{From: sub.Status, Event: EventCheckoutCompleted}
		}

		var discount *promotion.Discount
		if params.PromotionCode != "" {
			d, err := s.promotions.Validate(ctx, params.PromotionCode, plan.ID, tenantID)
			if err != nil {
				return err
			}
			discount = &d
		}

		now := s.now().UTC()
		var applied *AppliedDiscount
		if discount != nil {
			applied = newAppliedDiscount(*discount, now, now)
		}
		list, err := plan.Price(params.Cycle)
		if err != nil {
			return err
		}
		amount, err := Quote(plan, params.Cycle, StandardPrice(), applied)
		if err != nil {
			return err
		}

		c, err := s.openCheckout(ctx, CheckoutRequest{
			TenantID:        tenantID,
			PlanID:          plan.ID,
			PlanName:        plan.Name,
			ProviderPriceID: plan.ProviderPrices.For(params.Cycle),
			Cycle:           params.Cycle,
			ListPrice:       list,
			Amount:          amount,
			Discount:        discount,
		})
		if err != nil {
			return err
		}
		if discount != nil {
			c.PromotionCode = discount.Code
		}
		if err := s.checkouts.Save(ctx, *c); err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		s.logRejected(ctx, tenantID, EventCheckoutCompleted, err)
		return nil, err
	}

	s.logger.InfoContext(ctx, "checkout initiated",
		logger.TenantID(tenantID),
		logger.PlanID(out.PlanID),
		logger.PromotionCode(out.PromotionCode),
	)
	return out, nil
}

// openCheckout asks the payment collaborator for a hosted checkout.
func (s *Service) openCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	if s.gateway == nil {
		return nil, errors.Join(ErrCollaboratorUnavailable, errors.New("no payment gateway configured"))
	}
	handle, err := s.gateway.InitiateCheckout(ctx, req)
	if err != nil {
		return nil, errors.Join(ErrCollaboratorUnavailable, err)
	}

	now := s.now().UTC()
	expires := handle.ExpiresAt
	if expires.IsZero() {
		expires = now.Add(s.policy.CheckoutTTL)
	}
	return &Checkout{
		Handle:        handle.ID,
		URL:           handle.URL,
		TenantID:      req.TenantID,
		PlanID:        req.PlanID,
		Cycle:         req.Cycle,
		Amount:        req.Amount,
		Discount:      req.Discount,
		Accompaniment: req.Accompaniment,
		CreatedAt:     now,
		ExpiresAt:     expires,
	}, nil
}

// liveCheckout returns the tenant's unexpired pending checkout, or nil.
func (s *Service) liveCheckout(ctx context.Context, tenantID uuid.UUID) (*Checkout, error) {
	c, err := s.checkouts.Get(ctx, tenantID)
	if errors.Is(err, ErrCheckoutNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if c.Expired(s.now()) {
		return nil, nil
	}
	return c, nil
}

func (s *Service) dropCheckout(ctx context.Context, tenantID uuid.UUID) {
	if err := s.checkouts.Delete(ctx, tenantID); err != nil {
		s.logger.WarnContext(ctx, "failed to delete pending checkout",
			logger.TenantID(tenantID),
			logger.Error(err),
		)
	}
}
