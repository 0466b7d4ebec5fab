package billingmetrics

import (
	"cmp"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dmitrymomot/freightbill/pkg/catalog"
	"github.com/dmitrymomot/freightbill/pkg/subscription"
)

// Options tunes the reporting windows.
type Options struct {
	// TrialLookahead selects trials ending within this window.
	TrialLookahead time.Duration `env:"METRICS_TRIAL_LOOKAHEAD" envDefault:"72h"`
	// FailedPaymentWindow selects failed payments newer than now minus the window.
	FailedPaymentWindow time.Duration `env:"METRICS_FAILED_PAYMENT_WINDOW" envDefault:"720h"`
}

func DefaultOptions() Options {
	return Options{
		TrialLookahead:      3 * 24 * time.Hour,
		FailedPaymentWindow: 30 * 24 * time.Hour,
	}
}

// TrialExpiry is a trial ending inside the lookahead window.
type TrialExpiry struct {
	TenantID      uuid.UUID `json:"tenant_id"`
	PlanID        string    `json:"plan_id"`
	EndsAt        time.Time `json:"ends_at"`
	DaysRemaining int       `json:"days_remaining"`
}

// PastDueAccount is a tenant whose last charge failed.
type PastDueAccount struct {
	TenantID uuid.UUID     `json:"tenant_id"`
	PlanID   string        `json:"plan_id"`
	Amount   catalog.Money `json:"amount"`
	Since    time.Time     `json:"since"`
}

// Snapshot is the billing state at GeneratedAt. Monetary figures are in
// minor units keyed by currency code.
type Snapshot struct {
	GeneratedAt time.Time `json:"generated_at"`
	Tenants     int       `json:"tenants"`

	ByStatus map[subscription.Status]int `json:"by_status"`
	// Breakdown is the share of each status in percent; all zeros when there
	// are no tenants.
	Breakdown map[subscription.Status]float64 `json:"breakdown"`

	MRR map[string]int64 `json:"mrr"`
	ARR map[string]int64 `json:"arr"`

	// TrialConversion is the percentage of trials that became paid.
	TrialConversion float64 `json:"trial_conversion"`

	TrialsExpiring []TrialExpiry          `json:"trials_expiring"`
	PastDue        []PastDueAccount       `json:"past_due"`
	FailedPayments []subscription.Payment `json:"failed_payments"`
}

var twelve = decimal.NewFromInt(12)

// Compute builds a snapshot. subs may contain cancelled history; only the
// latest record per tenant counts toward status and revenue figures.
func Compute(subs []*subscription.Subscription, payments []subscription.Payment, now time.Time, opts Options) Snapshot {
	s := Snapshot{
		GeneratedAt:    now,
		ByStatus:       make(map[subscription.Status]int, len(subscription.Statuses)),
		Breakdown:      make(map[subscription.Status]float64, len(subscription.Statuses)),
		MRR:            make(map[string]int64),
		ARR:            make(map[string]int64),
		TrialsExpiring: []TrialExpiry{},
		PastDue:        []PastDueAccount{},
		FailedPayments: []subscription.Payment{},
	}
	for _, st := range subscription.Statuses {
		s.ByStatus[st] = 0
		s.Breakdown[st] = 0
	}

	var trials, converted int
	for _, sub := range subs {
		if sub.Trial == nil {
			continue
		}
		trials++
		if sub.Trial.ConvertedAt != nil {
			converted++
		}
	}
	s.TrialConversion = percent(converted, trials)

	current := latestPerTenant(subs)
	s.Tenants = len(current)

	mrr := make(map[string]decimal.Decimal)
	horizon := now.Add(opts.TrialLookahead)
	for _, sub := range current {
		s.ByStatus[sub.Status]++

		switch sub.Status {
		case subscription.StatusActive, subscription.StatusPastDue:
			monthly := decimal.NewFromInt(sub.Amount.Amount)
			if sub.Cycle == catalog.CycleYearly {
				monthly = monthly.Div(twelve)
			}
			mrr[sub.Amount.Currency] = mrr[sub.Amount.Currency].Add(monthly)

		case subscription.StatusTrialing:
			if sub.Trial != nil && !sub.Trial.EndsAt.Before(now) && !sub.Trial.EndsAt.After(horizon) {
				s.TrialsExpiring = append(s.TrialsExpiring, TrialExpiry{
					TenantID:      sub.TenantID,
					PlanID:        sub.PlanID,
					EndsAt:        sub.Trial.EndsAt,
					DaysRemaining: sub.Trial.DaysRemaining(now),
				})
			}
		}

		if sub.Status == subscription.StatusPastDue {
			s.PastDue = append(s.PastDue, PastDueAccount{
				TenantID: sub.TenantID,
				PlanID:   sub.PlanID,
				Amount:   sub.Amount,
				Since:    sub.UpdatedAt,
			})
		}
	}

	for _, st := range subscription.Statuses {
		s.Breakdown[st] = percent(s.ByStatus[st], s.Tenants)
	}
	for currency, amount := range mrr {
		monthly := amount.Round(0)
		s.MRR[currency] = monthly.IntPart()
		s.ARR[currency] = monthly.Mul(twelve).IntPart()
	}

	since := now.Add(-opts.FailedPaymentWindow)
	for _, p := range payments {
		if p.Status == subscription.PaymentFailed && !p.OccurredAt.Before(since) {
			s.FailedPayments = append(s.FailedPayments, p)
		}
	}

	slices.SortFunc(s.TrialsExpiring, func(a, b TrialExpiry) int { return a.EndsAt.Compare(b.EndsAt) })
	slices.SortFunc(s.PastDue, func(a, b PastDueAccount) int { return a.Since.Compare(b.Since) })
	slices.SortFunc(s.FailedPayments, func(a, b subscription.Payment) int { return b.OccurredAt.Compare(a.OccurredAt) })
	return s
}

func latestPerTenant(subs []*subscription.Subscription) []*subscription.Subscription {
	latest := make(map[uuid.UUID]*subscription.Subscription, len(subs))
	for _, sub := range subs {
		if cur, ok := latest[sub.TenantID]; !ok || sub.CreatedAt.After(cur.CreatedAt) {
			latest[sub.TenantID] = sub
		}
	}
	out := make([]*subscription.Subscription, 0, len(latest))
	for _, sub := range latest {
		out = append(out, sub)
	}
	slices.SortFunc(out, func(a, b *subscription.Subscription) int {
		return cmp.Compare(a.TenantID.String(), b.TenantID.String())
	})
	return out
}

// percent rounds to two decimals and returns 0 for an empty total.
func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	v, _ := decimal.NewFromInt(int64(part)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(total))).
		Round(2).
		Float64()
	return v
}
