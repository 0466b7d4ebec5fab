package subscription

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/freightbill/pkg/audit"
	"github.com/dmitrymomot/freightbill/pkg/catalog"
	"github.com/dmitrymomot/freightbill/pkg/logger"
	"github.com/dmitrymomot/freightbill/pkg/promotion"
	"github.com/dmitrymomot/freightbill/pkg/tenantlock"
)

// Service is the single writer of subscription state.
type Service struct {
	catalog    *catalog.Catalog
	promotions *promotion.Registry
	store      Store
	checkouts  CheckoutStore
	payments   PaymentLedger
	dedup      Deduplicator
	locker     tenantlock.Locker
	gateway    PaymentGateway
	invoices   InvoiceNotifier
	audit      audit.Logger
	policy     Policy
	machine    *machine
	now        func() time.Time
	logger     *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

func WithCheckoutStore(cs CheckoutStore) ServiceOption {
	return func(s *Service) {
		if cs != nil {
			s.checkouts = cs
		}
	}
}

func WithPaymentLedger(l PaymentLedger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.payments = l
		}
	}
}

func WithDeduplicator(d Deduplicator) ServiceOption {
	return func(s *Service) {
		if d != nil {
			s.dedup = d
		}
	}
}

func WithLocker(l tenantlock.Locker) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.locker = l
		}
	}
}

func WithPaymentGateway(g PaymentGateway) ServiceOption {
	return func(s *Service) { s.gateway = g }
}

func WithInvoiceNotifier(n InvoiceNotifier) ServiceOption {
	return func(s *Service) {
		if n != nil {
			s.invoices = n
		}
	}
}

func WithAuditLogger(l audit.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.audit = l
		}
	}
}

func WithPolicy(p Policy) ServiceOption {
	return func(s *Service) { s.policy = p }
}

// WithClock overrides the time source, mainly for tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService wires the lifecycle engine. Panics if a required dependency is
// nil. Optional collaborators default to in-memory implementations; without
// a payment gateway, checkouts fail with ErrCollaboratorUnavailable.
func NewService(cat *catalog.Catalog, promotions *promotion.Registry, store Store, opts ...ServiceOption) *Service {
	if cat == nil {
		panic("subscription: Catalog is required")
	}
	if promotions == nil {
		panic("subscription: promotion Registry is required")
	}
	if store == nil {
		panic("subscription: Store is required")
	}

	s := &Service{
		catalog:    cat,
		promotions: promotions,
		store:      store,
		checkouts:  NewMemoryCheckoutStore(),
		payments:   NewMemoryPaymentLedger(),
		dedup:      NewMemoryDeduplicator(0),
		locker:     tenantlock.NewMemory(),
		invoices:   noopInvoices{},
		audit:      audit.Discard,
		policy:     DefaultPolicy(),
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.machine = newLifecycle(s.policy)
	return s
}

// Get returns the tenant's current subscription.
func (s *Service) Get(ctx context.Context, tenantID uuid.UUID) (*Subscription, error) {
	return s.store.Get(ctx, tenantID)
}

// List returns subscription records, cancelled history included.
func (s *Service) List(ctx context.Context, f ListFilter) ([]*Subscription, error) {
	return s.store.List(ctx, f)
}

// Payments exposes the payment ledger for reporting.
func (s *Service) Payments(ctx context.Context, f PaymentFilter) ([]Payment, error) {
	return s.payments.List(ctx, f)
}

// PendingCheckout returns the tenant's open checkout, if any.
func (s *Service) PendingCheckout(ctx context.Context, tenantID uuid.UUID) (*Checkout, error) {
	return s.checkouts.Get(ctx, tenantID)
}

// AvailableEvents lists the events the subscription accepts right now,
// guards included.
func (s *Service) AvailableEvents(sub *Subscription) []Event {
	now := s.now()
	var out []Event
	for _, ev := range s.machine.available(sub.Status) {
		if _, err := s.machine.target(sub, ev, now); err == nil {
			out = append(out, ev)
		}
	}
	slices.Sort(out)
	return out
}

// mutation edits a cloned subscription. Returning an error discards the clone.
type mutation func(sub *Subscription, now time.Time) error

type change struct {
	event Event
	from  Status
	to    Status
}

// withTenantLock runs fn while holding the tenant's lock.
func (s *Service) withTenantLock(ctx context.Context, tenantID uuid.UUID, fn func(ctx context.Context) error) error {
	release, err := s.locker.Acquire(ctx, tenantlock.Key(tenantID), s.policy.LockTTL)
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx)
}

// apply validates the event against the clone's current status, runs fn and
// sets the resulting status. sub is modified in place, so callers pass a clone.
func (s *Service) apply(sub *Subscription, event Event, now time.Time, fn mutation) (change, error) {
	from := sub.Status
	to, err := s.machine.target(sub, event, now)
	if err != nil {
		return change{}, err
	}
	if fn != nil {
		if err := fn(sub, now); err != nil {
			return change{}, err
		}
	}
	sub.Status = to
	sub.UpdatedAt = now
	return change{event: event, from: from, to: to}, nil
}

// transition is the common read-apply-save cycle for a single event.
func (s *Service) transition(ctx context.Context, tenantID uuid.UUID, event Event, actor audit.Actor, fn mutation) (*Subscription, error) {
	var out *Subscription
	err := s.withTenantLock(ctx, tenantID, func(ctx context.Context) error {
		current, err := s.store.Get(ctx, tenantID)
		if err != nil {
			return err
		}
		next := current.Clone()
		ch, err := s.apply(next, event, s.now().UTC(), fn)
		if err != nil {
			return err
		}
		if err := s.store.Save(ctx, next); err != nil {
			return err
		}
		s.record(ctx, next, ch, actor, nil)
		out = next
		return nil
	})
	if err != nil {
		s.logRejected(ctx, tenantID, event, err)
		return nil, err
	}
	return out, nil
}

// reprice recomputes the committed amount from plan, override and discount.
func (s *Service) reprice(sub *Subscription) error {
	plan, err := s.catalog.Plan(sub.PlanID)
	if err != nil {
		return err
	}
	amount, err := Quote(plan, sub.Cycle, sub.Override, sub.Discount)
	if err != nil {
		return err
	}
	sub.Amount = amount
	return nil
}

// record writes the audit trail entry and the log line for a committed change.
func (s *Service) record(ctx context.Context, sub *Subscription, ch change, actor audit.Actor, md map[string]any) {
	s.logger.InfoContext(ctx, "subscription transition",
		logger.TenantID(sub.TenantID),
		logger.SubscriptionID(sub.ID),
		logger.PlanID(sub.PlanID),
		logger.Transition(ch.from, ch.to, string(ch.event)),
	)

	err := s.audit.Log(ctx, string(ch.event),
		audit.WithTenant(sub.TenantID.String()),
		audit.WithSubscription(sub.ID.String()),
		audit.WithActor(actor),
		audit.WithTransition(string(ch.from), string(ch.to)),
		audit.WithMetadata(md),
	)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to write audit event",
			logger.TenantID(sub.TenantID),
			logger.Error(err),
		)
	}
}

func (s *Service) logRejected(ctx context.Context, tenantID uuid.UUID, event Event, err error) {
	level := slog.LevelError
	if IsRejection(err) || errors.Is(err, ErrDuplicateEvent) {
		level = slog.LevelInfo
	}
	s.logger.Log(ctx, level, "subscription operation refused",
		logger.TenantID(tenantID),
		slog.String("event", string(event)),
		logger.Error(err),
	)
}
