package subscription

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ListFilter narrows Store.List. An empty filter returns every record,
// cancelled history included.
type ListFilter struct {
	Statuses []Status
}

// Store persists subscription records. Records are never deleted.
type Store interface {
	// Get returns the tenant's most recent subscription or ErrSubscriptionNotFound.
	Get(ctx context.Context, tenantID uuid.UUID) (*Subscription, error)

	// Save inserts or updates a record by its ID.
	Save(ctx context.Context, sub *Subscription) error

	List(ctx context.Context, f ListFilter) ([]*Subscription, error)
}

// CheckoutStore keeps at most one pending checkout per tenant.
type CheckoutStore interface {
	Save(ctx context.Context, c Checkout) error
	// Get returns ErrCheckoutNotFound when the tenant has no pending checkout.
	Get(ctx context.Context, tenantID uuid.UUID) (*Checkout, error)
	Delete(ctx context.Context, tenantID uuid.UUID) error
}

// PaymentFilter narrows PaymentLedger.List. Zero values match everything.
type PaymentFilter struct {
	TenantID uuid.UUID
	Status   PaymentStatus
	Since    time.Time
}

// PaymentLedger records collaborator charge outcomes for reporting.
type PaymentLedger interface {
	Record(ctx context.Context, p Payment) error
	List(ctx context.Context, f PaymentFilter) ([]Payment, error)
}

// Deduplicator remembers processed collaborator events.
type Deduplicator interface {
	// Reserve returns false when the id was already reserved.
	Reserve(ctx context.Context, id string) (bool, error)
	// Release forgets an id so a redelivery can be processed again.
	Release(ctx context.Context, id string) error
}
