package subscription

import (
	"errors"

	"github.com/dmitrymomot/freightbill/pkg/catalog"
)

// Quote computes the recurring price: the base comes from the override (or
// the plan list price), then an in-effect discount is applied on top.
func Quote(plan catalog.Plan, cycle catalog.Cycle, override PriceOverride, discount *AppliedDiscount) (catalog.Money, error) {
	var base catalog.Money
	switch override.Kind {
	case OverrideTrial:
		base = catalog.Money{Currency: plan.Currency}
	case OverrideAccompaniment:
		if override.Price == nil {
			return catalog.Money{}, errors.New("accompaniment override without price")
		}
		base = *override.Price
	default:
		p, err := plan.Price(cycle)
		if err != nil {
			return catalog.Money{}, err
		}
		base = p
	}

	if discount.InEffect() {
		base.Amount = discount.Apply(base.Amount)
	}
	return base, nil
}
