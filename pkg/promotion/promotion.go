package promotion

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Kind is the discount arithmetic a promotion uses.
type Kind string

const (
	KindPercentage Kind = "percentage"
	KindFixed      Kind = "fixed"
)

// DefaultMaxUsesPerTenant applies when a promotion does not set its own
// per-tenant cap.
const DefaultMaxUsesPerTenant int64 = 1

var hundred = decimal.NewFromInt(100)

// Promotion is a discount code definition plus its global usage counter.
type Promotion struct {
	Code          string          `json:"code"`
	Description   string          `json:"description,omitempty"`
	Kind          Kind            `json:"kind"`
	Value         decimal.Decimal `json:"value"`
	EligiblePlans []string        `json:"eligible_plans,omitempty"` // empty means every plan

	MaxUses          int64 `json:"max_uses"`            // 0 means uncapped
	MaxUsesPerTenant int64 `json:"max_uses_per_tenant"` // defaults to 1
	DurationCycles   int   `json:"duration_cycles"`     // 0 means permanent

	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Active    bool       `json:"active"`
	UsesCount int64      `json:"uses_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NormalizeCode trims and upper-cases a promotion code so lookups are
// case-insensitive.
func NormalizeCode(code string) string {
	return cases.Upper(language.Und).String(strings.TrimSpace(code))
}

// AppliesTo reports whether the promotion may be used with the plan.
func (p Promotion) AppliesTo(planID string) bool {
	return len(p.EligiblePlans) == 0 || slices.Contains(p.EligiblePlans, planID)
}

// Expired reports whether the promotion expiry lies strictly before now.
func (p Promotion) Expired(now time.Time) bool {
	return p.ExpiresAt != nil && now.After(*p.ExpiresAt)
}

// Discount returns the snapshot of the promotion terms.
func (p Promotion) Discount() Discount {
	return Discount{
		Code:           p.Code,
		Kind:           p.Kind,
		Value:          p.Value,
		DurationCycles: p.DurationCycles,
	}
}

// Clone returns a deep copy.
func (p Promotion) Clone() Promotion {
	p.EligiblePlans = slices.Clone(p.EligiblePlans)
	if p.ExpiresAt != nil {
		t := *p.ExpiresAt
		p.ExpiresAt = &t
	}
	return p
}

func (p Promotion) validate() error {
	var errs []error
	if p.Code == "" {
		errs = append(errs, errors.New("code is required"))
	}
	switch p.Kind {
	case KindPercentage:
		if p.Value.IsNegative() || p.Value.GreaterThan(hundred) {
			errs = append(errs, errors.New("percentage must be between 0 and 100"))
		}
	case KindFixed:
		// Fixed amounts are checked against a price only when applied.
		if p.Value.IsNegative() {
			errs = append(errs, errors.New("fixed amount must not be negative"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown discount kind %q", p.Kind))
	}
	if p.MaxUses < 0 {
		errs = append(errs, errors.New("max uses must not be negative"))
	}
	if p.MaxUsesPerTenant < 1 {
		errs = append(errs, errors.New("max uses per tenant must be at least 1"))
	}
	if p.DurationCycles < 0 {
		errs = append(errs, errors.New("duration cycles must not be negative"))
	}
	if len(errs) > 0 {
		return errors.Join(ErrInvalidPromotion, errors.Join(errs...))
	}
	return nil
}
