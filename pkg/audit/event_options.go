package audit

import "maps"

// EventOption configures an Event before it is stored.
type EventOption func(*Event)

func WithTenant(id string) EventOption {
	return func(e *Event) { e.TenantID = id }
}

func WithSubscription(id string) EventOption {
	return func(e *Event) { e.SubscriptionID = id }
}

func WithActor(a Actor) EventOption {
	return func(e *Event) { e.Actor = a }
}

// WithTransition records the status before and after the action.
func WithTransition(from, to string) EventOption {
	return func(e *Event) {
		e.FromStatus = from
		e.ToStatus = to
	}
}

// WithMetadata merges metadata into the event.
func WithMetadata(md map[string]any) EventOption {
	return func(e *Event) {
		if len(md) == 0 {
			return
		}
		if e.Metadata == nil {
			e.Metadata = make(map[string]any, len(md))
		}
		maps.Copy(e.Metadata, md)
	}
}
