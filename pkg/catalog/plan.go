package catalog

import (
	"errors"
	"fmt"
)

// Plan is a published commercial offering. Once published, its terms never
// change; new terms are published under a new ID.
type Plan struct {
	ID           string      `json:"id" yaml:"id"`
	Name         string      `json:"name" yaml:"name"`
	Description  string      `json:"description,omitempty" yaml:"description"`
	PriceMonthly int64       `json:"price_monthly" yaml:"price_monthly"`
	PriceYearly  int64       `json:"price_yearly" yaml:"price_yearly"`
	Currency     string      `json:"currency" yaml:"currency"`
	Limits       Limits      `json:"limits" yaml:"limits"`
	Features     Features    `json:"features" yaml:"features"`
	SupportTier  SupportTier `json:"support_tier" yaml:"support_tier"`
	ContactSales bool        `json:"contact_sales" yaml:"contact_sales"`
	Active       bool        `json:"active" yaml:"active"`
	SortRank     int         `json:"sort_rank" yaml:"sort_rank"`

	// ProviderPrices maps the plan to price identifiers of the payment
	// collaborator for catalog-based checkouts.
	ProviderPrices ProviderPrices `json:"provider_prices,omitzero" yaml:"provider_prices"`
}

// ProviderPrices are payment collaborator price IDs per billing cycle.
type ProviderPrices struct {
	Monthly string `json:"monthly,omitempty" yaml:"monthly"`
	Yearly  string `json:"yearly,omitempty" yaml:"yearly"`
}

// For returns the provider price ID for the cycle, empty when not configured.
func (p ProviderPrices) For(cycle Cycle) string {
	if cycle == CycleYearly {
		return p.Yearly
	}
	return p.Monthly
}

// Price returns the list price of the plan for the given billing cycle.
// Contact-sales plans have no self-serve price.
func (p Plan) Price(cycle Cycle) (Money, error) {
	if p.ContactSales {
		return Money{}, ErrContactSalesOnly
	}
	switch cycle {
	case CycleMonthly:
		return Money{Amount: p.PriceMonthly, Currency: p.Currency}, nil
	case CycleYearly:
		return Money{Amount: p.PriceYearly, Currency: p.Currency}, nil
	}
	return Money{}, ErrInvalidCycle
}

// SelfServe reports whether tenants can pick the plan without talking to sales.
func (p Plan) SelfServe() bool {
	return p.Active && !p.ContactSales
}

func (p Plan) validate() error {
	var errs []error
	if p.ID == "" {
		errs = append(errs, errors.New("plan ID is required"))
	}
	if p.Name == "" {
		errs = append(errs, fmt.Errorf("plan %q: name is required", p.ID))
	}
	if p.PriceMonthly < 0 || p.PriceYearly < 0 {
		errs = append(errs, fmt.Errorf("plan %q: prices must not be negative", p.ID))
	}
	if !p.ContactSales && p.Currency == "" {
		errs = append(errs, fmt.Errorf("plan %q: currency is required for self-serve plans", p.ID))
	}
	for name, v := range map[string]int64{
		"max_users":                p.Limits.MaxUsers,
		"max_operations_per_month": p.Limits.MaxOperationsPerMonth,
		"max_clients":              p.Limits.MaxClients,
		"max_carriers":             p.Features.MaxCarriers,
	} {
		if v < Unlimited {
			errs = append(errs, fmt.Errorf("plan %q: %s must be >= -1", p.ID, name))
		}
	}
	if len(errs) > 0 {
		return errors.Join(ErrInvalidPlanConfiguration, errors.Join(errs...))
	}
	return nil
}

// LimitChange is a before/after pair of a single limit.
type LimitChange struct {
	From int64
	To   int64
}

// PlanComparison lists what a tenant gains or loses when moving between plans.
type PlanComparison struct {
	PriceDelta      int64
	Upgrade         bool
	IncreasedLimits map[string]LimitChange
	DecreasedLimits map[string]LimitChange
	GainedFeatures  []string
	LostFeatures    []string
}

// ComparePlans describes the differences between the current and target plans.
func ComparePlans(current, target Plan) PlanComparison {
	cmp := PlanComparison{
		PriceDelta:      target.PriceMonthly - current.PriceMonthly,
		Upgrade:         IsUpgrade(current, target),
		IncreasedLimits: make(map[string]LimitChange),
		DecreasedLimits: make(map[string]LimitChange),
	}

	limits := []struct {
		name     string
		from, to int64
	}{
		{"max_users", current.Limits.MaxUsers, target.Limits.MaxUsers},
		{"max_operations_per_month", current.Limits.MaxOperationsPerMonth, target.Limits.MaxOperationsPerMonth},
		{"max_clients", current.Limits.MaxClients, target.Limits.MaxClients},
		{"max_carriers", current.Features.MaxCarriers, target.Features.MaxCarriers},
	}
	for _, l := range limits {
		if l.from == l.to {
			continue
		}
		change := LimitChange{From: l.from, To: l.to}
		// Unlimited-to-limited is always a decrease.
		switch {
		case l.from == Unlimited:
			cmp.DecreasedLimits[l.name] = change
		case l.to == Unlimited, l.to > l.from:
			cmp.IncreasedLimits[l.name] = change
		default:
			cmp.DecreasedLimits[l.name] = change
		}
	}

	flags := []struct {
		name     string
		from, to bool
	}{
		{"client_portal", current.Features.ClientPortal, target.Features.ClientPortal},
		{"carrier_tracking", current.Features.CarrierTracking, target.Features.CarrierTracking},
		{"electronic_invoicing", current.Features.ElectronicInvoicing, target.Features.ElectronicInvoicing},
		{"advanced_reports", current.Features.AdvancedReports, target.Features.AdvancedReports},
	}
	for _, f := range flags {
		switch {
		case !f.from && f.to:
			cmp.GainedFeatures = append(cmp.GainedFeatures, f.name)
		case f.from && !f.to:
			cmp.LostFeatures = append(cmp.LostFeatures, f.name)
		}
	}

	return cmp
}

// IsUpgrade reports whether moving from one plan to another is an upgrade.
// Only a strictly greater monthly list price counts; equal prices are lateral
// moves and are treated like downgrades.
func IsUpgrade(from, to Plan) bool {
	return to.PriceMonthly > from.PriceMonthly
}
