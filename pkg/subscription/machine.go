package subscription

import "time"

// Event names a lifecycle transition.
type Event string

const (
	EventTrialStarted           Event = "trial_started"
	EventTrialExtended          Event = "trial_extended"
	EventTrialExpired           Event = "trial_expired"
	EventAccompanimentActivated Event = "accompaniment_activated"
	EventAccompanimentLapsed    Event = "accompaniment_lapsed"
	EventCheckoutCompleted      Event = "checkout_completed"
	EventChargeSucceeded        Event = "charge_succeeded"
	EventChargeFailed           Event = "charge_failed"
	EventCancellationRequested  Event = "cancellation_requested"
	EventCancellationWithdrawn  Event = "cancellation_withdrawn"
	EventPeriodEnded            Event = "period_ended"
	EventSuspended              Event = "suspended"
	EventReactivated            Event = "reactivated"
	EventForceCancelled         Event = "force_cancelled"
	EventPlanUpgraded           Event = "plan_upgraded"
	EventPlanChangeScheduled    Event = "plan_change_scheduled"
	EventPlanChangeApplied      Event = "plan_change_applied"
	EventDiscountExpired        Event = "discount_expired"
)

// guard vetoes a transition with a typed error.
type guard func(sub *Subscription, now time.Time) error

type transition struct {
	to     Status
	guards []guard
}

// machine is the transition table. It is immutable after construction and
// does not hold any subscription state itself.
type machine struct {
	table map[Status]map[Event]transition
}

// target returns the status the event leads to, or the first guard error.
func (m *machine) target(sub *Subscription, event Event, now time.Time) (Status, error) {
	t, ok := m.table[sub.Status][event]
	if !ok {
		return "", &TransitionError{From: sub.Status, Event: event}
	}
	for _, g := range t.guards {
		if err := g(sub, now); err != nil {
			return "", err
		}
	}
	return t.to, nil
}

// available lists events accepted from the status, ignoring guards.
func (m *machine) available(status Status) []Event {
	out := make([]Event, 0, len(m.table[status]))
	for ev := range m.table[status] {
		out = append(out, ev)
	}
	return out
}

type builder struct {
	m      *machine
	from   []Status
	event  Event
	to     Status
	same   bool
	guards []guard
}

func newBuilder() *builder {
	return &builder{m: &machine{table: make(map[Status]map[Event]transition)}}
}

func (b *builder) From(states ...Status) *builder {
	b.from, b.event, b.to, b.same, b.guards = states, "", "", false, nil
	return b
}

func (b *builder) When(e Event) *builder {
	b.event = e
	return b
}

func (b *builder) To(s Status) *builder {
	b.to = s
	return b
}

// Stay keeps each source status unchanged.
func (b *builder) Stay() *builder {
	b.same = true
	return b
}

func (b *builder) Guard(g ...guard) *builder {
	b.guards = append(b.guards, g...)
	return b
}

func (b *builder) Add() *builder {
	if b.event == "" || (b.to == "" && !b.same) || len(b.from) == 0 {
		panic("subscription: incomplete transition definition")
	}
	for _, from := range b.from {
		if b.m.table[from] == nil {
			b.m.table[from] = make(map[Event]transition)
		}
		to := b.to
		if b.same {
			to = from
		}
		b.m.table[from][b.event] = transition{to: to, guards: b.guards}
	}
	return b
}

func (b *builder) Build() *machine {
	return b.m
}

func newLifecycle(p Policy) *machine {
	b := newBuilder()

	b.From(StatusTrialing).When(EventTrialExtended).Stay().Guard(extensionGuard(p)).Add()
	b.From(StatusTrialing).When(EventAccompanimentActivated).Stay().Guard(accompanimentGuard).Add()
	b.From(StatusTrialing).When(EventTrialExpired).To(StatusCancelled).Guard(trialPastGrace(p)).Add()
	b.From(StatusTrialing).When(EventCheckoutCompleted).To(StatusActive).Add()

	b.From(StatusActive, StatusPastDue).When(EventChargeSucceeded).To(StatusActive).Add()
	b.From(StatusSuspended).When(EventChargeSucceeded).Stay().Add()

	b.From(StatusActive, StatusPastDue).When(EventChargeFailed).To(StatusPastDue).Add()
	b.From(StatusTrialing, StatusSuspended).When(EventChargeFailed).Stay().Add()

	b.From(StatusTrialing).When(EventCancellationRequested).To(StatusCancelled).Add()
	b.From(StatusActive, StatusPastDue).When(EventCancellationRequested).Stay().Add()
	b.From(StatusActive, StatusPastDue).When(EventCancellationWithdrawn).Stay().Guard(cancellationPending).Add()
	b.From(StatusActive, StatusPastDue).When(EventPeriodEnded).To(StatusCancelled).Guard(cancellationDue).Add()

	b.From(StatusActive, StatusPastDue).When(EventSuspended).To(StatusSuspended).Add()
	b.From(StatusSuspended).When(EventReactivated).To(StatusActive).Add()
	b.From(StatusTrialing, StatusActive, StatusPastDue, StatusSuspended).When(EventForceCancelled).To(StatusCancelled).Add()

	b.From(StatusActive, StatusPastDue).When(EventPlanUpgraded).Stay().Add()
	b.From(StatusActive, StatusPastDue).When(EventPlanChangeScheduled).Stay().Add()
	b.From(StatusActive, StatusPastDue).When(EventPlanChangeApplied).Stay().Guard(pendingChangeDue).Add()
	b.From(StatusActive, StatusPastDue).When(EventAccompanimentLapsed).Stay().Add()
	b.From(StatusActive, StatusPastDue).When(EventDiscountExpired).Stay().Add()

	return b.Build()
}

func extensionGuard(p Policy) guard {
	return func(sub *Subscription, now time.Time) error {
		switch {
		case sub.Trial == nil:
			return ErrTrialNotExtendable
		case sub.Trial.ExtensionsUsed >= sub.Trial.MaxExtensions:
			return ErrExtensionLimitReached
		case sub.Accompaniment != nil, now.After(sub.Trial.EndsAt.Add(p.TrialGrace)):
			return ErrTrialNotExtendable
		}
		return nil
	}
}

func accompanimentGuard(sub *Subscription, now time.Time) error {
	if sub.Trial == nil || !sub.Trial.Expired(now) || sub.Accompaniment != nil {
		return ErrAccompanimentNotEligible
	}
	return nil
}

func trialPastGrace(p Policy) guard {
	return func(sub *Subscription, now time.Time) error {
		if sub.Trial == nil || !now.After(sub.Trial.EndsAt.Add(p.TrialGrace)) {
			return &TransitionError{From: sub.Status, Event: EventTrialExpired}
		}
		return nil
	}
}

func cancellationPending(sub *Subscription, _ time.Time) error {
	if !sub.CancelAtPeriodEnd {
		return ErrNoPendingCancellation
	}
	return nil
}

func cancellationDue(sub *Subscription, now time.Time) error {
	if !sub.CancelAtPeriodEnd || now.Before(sub.PeriodEnd) {
		return &TransitionError{From: sub.Status, Event: EventPeriodEnded}
	}
	return nil
}

func pendingChangeDue(sub *Subscription, now time.Time) error {
	if sub.PendingChange == nil || now.Before(sub.PendingChange.EffectiveAt) {
		return &TransitionError{From: sub.Status, Event: EventPlanChangeApplied}
	}
	return nil
}
