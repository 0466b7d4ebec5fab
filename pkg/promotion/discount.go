package promotion

import "github.com/shopspring/decimal"

// Discount is the immutable snapshot of promotion terms attached to a
// subscription or checkout. Later edits to the promotion never alter it.
type Discount struct {
	Code           string          `json:"code"`
	Kind           Kind            `json:"kind"`
	Value          decimal.Decimal `json:"value"`
	DurationCycles int             `json:"duration_cycles"` // 0 means permanent
}

// Permanent reports whether the discount applies for the subscription lifetime.
func (d Discount) Permanent() bool {
	return d.DurationCycles == 0
}

// Apply returns amount (minor units) after the discount. Percentages round
// half away from zero to whole minor units. Fixed amounts larger than the
// price bring it down to zero, never below.
func (d Discount) Apply(amount int64) int64 {
	if amount <= 0 {
		return amount
	}
	base := decimal.NewFromInt(amount)

	var off decimal.Decimal
	switch d.Kind {
	case KindPercentage:
		off = base.Mul(d.Value).Div(hundred).Round(0)
	case KindFixed:
		off = d.Value.Round(0)
	default:
		return amount
	}

	return max(base.Sub(off).IntPart(), 0)
}
