package audit

import (
	"context"
	"fmt"
	"time"
)

// Result is the outcome of an audited action.
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
)

// Actor identifies who caused an action.
type Actor string

const (
	ActorTenant    Actor = "tenant"
	ActorAdmin     Actor = "admin"
	ActorPayment   Actor = "payment"
	ActorScheduler Actor = "scheduler"
)

// Event is a single audit trail entry.
type Event struct {
	ID             string         `json:"id"`
	TenantID       string         `json:"tenant_id"`
	SubscriptionID string         `json:"subscription_id,omitempty"`
	Action         string         `json:"action"`
	Actor          Actor          `json:"actor,omitempty"`
	FromStatus     string         `json:"from_status,omitempty"`
	ToStatus       string         `json:"to_status,omitempty"`
	Result         Result         `json:"result"`
	Error          string         `json:"error,omitempty"`
	RequestID      string         `json:"request_id,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

func (e *Event) Validate() error {
	if e.Action == "" {
		return fmt.Errorf("%w: action is required", ErrEventValidation)
	}
	if e.TenantID == "" {
		return fmt.Errorf("%w: tenant is required", ErrEventValidation)
	}
	return nil
}

// Filter narrows Query results. Zero values match everything.
type Filter struct {
	TenantID string
	Action   string
	Since    time.Time
	Limit    int
}

// Storage persists audit events.
type Storage interface {
	Store(ctx context.Context, events ...Event) error
	Query(ctx context.Context, f Filter) ([]Event, error)
}

// Logger records audit events.
type Logger interface {
	Log(ctx context.Context, action string, opts ...EventOption) error
	LogError(ctx context.Context, action string, err error, opts ...EventOption) error
}
