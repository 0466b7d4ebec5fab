package subscription

import (
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/freightbill/pkg/catalog"
	"github.com/dmitrymomot/freightbill/pkg/promotion"
)

// Status is the lifecycle state of a subscription.
type Status string

const (
	StatusTrialing  Status = "trialing"
	StatusActive    Status = "active"
	StatusPastDue   Status = "past_due"
	StatusSuspended Status = "suspended"
	StatusCancelled Status = "cancelled"
)

// statusPending names the provisional checkout state in transition records.
// It is never stored on a subscription.
const statusPending Status = "pending_checkout"

// Statuses lists every status in display order.
var Statuses = []Status{StatusTrialing, StatusActive, StatusPastDue, StatusSuspended, StatusCancelled}

func (s Status) Valid() bool {
	return slices.Contains(Statuses, s)
}

// OverrideKind selects which price replaces the plan's list price.
type OverrideKind string

const (
	OverrideStandard      OverrideKind = "standard"
	OverrideTrial         OverrideKind = "trial"
	OverrideAccompaniment OverrideKind = "accompaniment"
)

// PriceOverride is the single price override in effect. Price is only set
// for the accompaniment kind. A promotion discount layers on top of it.
type PriceOverride struct {
	Kind  OverrideKind   `json:"kind"`
	Price *catalog.Money `json:"price,omitempty"`
}

func StandardPrice() PriceOverride { return PriceOverride{Kind: OverrideStandard} }

func TrialPrice() PriceOverride { return PriceOverride{Kind: OverrideTrial} }

func AccompanimentPrice(m catalog.Money) PriceOverride {
	return PriceOverride{Kind: OverrideAccompaniment, Price: &m}
}

// Trial tracks the free trial window of a subscription.
type Trial struct {
	StartedAt      time.Time  `json:"started_at"`
	EndsAt         time.Time  `json:"ends_at"`
	ExtensionsUsed int        `json:"extensions_used"`
	MaxExtensions  int        `json:"max_extensions"`
	ConvertedAt    *time.Time `json:"converted_at,omitempty"`
}

// Expired reports whether now lies strictly after the trial end.
func (t Trial) Expired(now time.Time) bool {
	return now.After(t.EndsAt)
}

// DaysRemaining rounds up partial days; expired trials report zero.
func (t Trial) DaysRemaining(now time.Time) int {
	left := t.EndsAt.Sub(now)
	if left <= 0 {
		return 0
	}
	days := int(left / (24 * time.Hour))
	if left%(24*time.Hour) > 0 {
		days++
	}
	return days
}

// Accompaniment is the reduced-price onboarding offer for tenants whose trial
// ran out. Once activated it is never offered again, even after it lapses.
type Accompaniment struct {
	Price          catalog.Money `json:"price"`
	TotalMonths    int           `json:"total_months"`
	MonthsUsed     int           `json:"months_used"`
	ActivatedAt    time.Time     `json:"activated_at"`
	CountedThrough time.Time     `json:"counted_through,omitzero"`
	LapsedAt       *time.Time    `json:"lapsed_at,omitempty"`
}

// Active reports whether the reduced price still applies.
func (a *Accompaniment) Active() bool {
	return a != nil && a.LapsedAt == nil && a.MonthsUsed < a.TotalMonths
}

// AppliedDiscount is a promotion snapshot attached to a subscription with its
// remaining billing cycles.
type AppliedDiscount struct {
	promotion.Discount
	RemainingCycles int       `json:"remaining_cycles"`
	CountedThrough  time.Time `json:"counted_through,omitzero"`
	AppliedAt       time.Time `json:"applied_at"`
}

// newAppliedDiscount starts counting cycles after the period boundary
// through.
func newAppliedDiscount(d promotion.Discount, now, through time.Time) *AppliedDiscount {
	return &AppliedDiscount{Discount: d, RemainingCycles: d.DurationCycles, CountedThrough: through, AppliedAt: now}
}

// InEffect reports whether the discount still reduces the price.
func (d *AppliedDiscount) InEffect() bool {
	return d != nil && (d.Permanent() || d.RemainingCycles > 0)
}

// PendingChange is a downgrade or lateral move deferred to period end.
type PendingChange struct {
	PlanID        string        `json:"plan_id"`
	Cycle         catalog.Cycle `json:"cycle"`
	EffectiveAt   time.Time     `json:"effective_at"`
	PromotionCode string        `json:"promotion_code,omitempty"`
	RequestedAt   time.Time     `json:"requested_at"`
}

// Suspension records why and when an administrator blocked access.
type Suspension struct {
	Reason         string    `json:"reason"`
	SuspendedAt    time.Time `json:"suspended_at"`
	PreviousStatus Status    `json:"previous_status"`
}

// Subscription is the commercial relationship between a tenant and a plan.
// A tenant has at most one non-cancelled subscription; cancelled records are
// kept for history and reporting.
type Subscription struct {
	ID       uuid.UUID     `json:"id"`
	TenantID uuid.UUID     `json:"tenant_id"`
	PlanID   string        `json:"plan_id"`
	Cycle    catalog.Cycle `json:"cycle"`
	Status   Status        `json:"status"`

	// Amount is the committed recurring price after override and discount.
	Amount        catalog.Money    `json:"amount"`
	Override      PriceOverride    `json:"override"`
	Discount      *AppliedDiscount `json:"discount,omitempty"`
	Trial         *Trial           `json:"trial,omitempty"`
	Accompaniment *Accompaniment   `json:"accompaniment,omitempty"`

	PeriodStart       time.Time      `json:"period_start,omitzero"`
	PeriodEnd         time.Time      `json:"period_end,omitzero"`
	CancelAtPeriodEnd bool           `json:"cancel_at_period_end"`
	PendingChange     *PendingChange `json:"pending_change,omitempty"`
	Suspension        *Suspension    `json:"suspension,omitempty"`

	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	CancelReason string     `json:"cancel_reason,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// HasAccess reports whether the tenant may use the platform.
func (s *Subscription) HasAccess() bool {
	switch s.Status {
	case StatusTrialing, StatusActive, StatusPastDue:
		return true
	}
	return false
}

// Clone returns a deep copy so mutations never leak into stored state.
func (s *Subscription) Clone() *Subscription {
	if s == nil {
		return nil
	}
	c := *s
	c.Override = PriceOverride{Kind: s.Override.Kind, Price: clonePtr(s.Override.Price)}
	c.Discount = clonePtr(s.Discount)
	c.PendingChange = clonePtr(s.PendingChange)
	c.Suspension = clonePtr(s.Suspension)
	c.CancelledAt = clonePtr(s.CancelledAt)
	if s.Trial != nil {
		t := *s.Trial
		t.ConvertedAt = clonePtr(s.Trial.ConvertedAt)
		c.Trial = &t
	}
	if s.Accompaniment != nil {
		a := *s.Accompaniment
		a.LapsedAt = clonePtr(s.Accompaniment.LapsedAt)
		c.Accompaniment = &a
	}
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Checkout is the provisional state between initiating a payment and the
// collaborator confirming the first charge. It is not a subscription status.
type Checkout struct {
	Handle        string              `json:"handle"`
	URL           string              `json:"url,omitempty"`
	TenantID      uuid.UUID           `json:"tenant_id"`
	PlanID        string              `json:"plan_id"`
	Cycle         catalog.Cycle       `json:"cycle"`
	Amount        catalog.Money       `json:"amount"`
	Discount      *promotion.Discount `json:"discount,omitempty"`
	PromotionCode string              `json:"promotion_code,omitempty"`
	Accompaniment bool                `json:"accompaniment"`
	CreatedAt     time.Time           `json:"created_at"`
	ExpiresAt     time.Time           `json:"expires_at"`
}

// Expired reports whether the checkout can no longer complete.
func (c *Checkout) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// PaymentStatus is the outcome of a charge as reported by the collaborator.
type PaymentStatus string

const (
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentPending   PaymentStatus = "pending"
	PaymentRefunded  PaymentStatus = "refunded"
)

// Payment summarizes a collaborator charge for reporting.
type Payment struct {
	ID         string        `json:"id"`
	TenantID   uuid.UUID     `json:"tenant_id"`
	Status     PaymentStatus `json:"status"`
	Amount     catalog.Money `json:"amount"`
	Reason     string        `json:"reason,omitempty"`
	OccurredAt time.Time     `json:"occurred_at"`
}

// ChargeSucceeded is the collaborator's confirmation of a captured charge.
type ChargeSucceeded struct {
	CorrelationID string        `json:"correlation_id"`
	TenantID      uuid.UUID     `json:"tenant_id"`
	PeriodStart   time.Time     `json:"period_start"`
	PeriodEnd     time.Time     `json:"period_end"`
	Amount        catalog.Money `json:"amount"`
}

// ChargeFailed is the collaborator's report of a declined charge.
type ChargeFailed struct {
	CorrelationID string        `json:"correlation_id"`
	TenantID      uuid.UUID     `json:"tenant_id"`
	Reason        string        `json:"reason"`
	OccurredAt    time.Time     `json:"occurred_at"`
	Amount        catalog.Money `json:"amount"`
}
