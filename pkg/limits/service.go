package limits

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/freightbill/pkg/catalog"
	"github.com/dmitrymomot/freightbill/pkg/logger"
	"github.com/dmitrymomot/freightbill/pkg/subscription"
	"github.com/dmitrymomot/freightbill/pkg/tenantlock"
)

// SubscriptionReader resolves a tenant's current subscription.
// subscription.Service satisfies it.
type SubscriptionReader interface {
	Get(ctx context.Context, tenantID uuid.UUID) (*subscription.Subscription, error)
}

// Service checks tenant usage against plan limits.
type Service struct {
	subs     SubscriptionReader
	catalog  *catalog.Catalog
	counters CounterRegistry
	usage    UsageStore
	locker   tenantlock.Locker
	lockTTL  time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

type Option func(*Service)

// WithUsageStore enables Record.
func WithUsageStore(store UsageStore) Option {
	return func(s *Service) { s.usage = store }
}

// WithLocker serializes Record per tenant and resource.
func WithLocker(l tenantlock.Locker, ttl time.Duration) Option {
	return func(s *Service) {
		if l != nil {
			s.locker = l
			s.lockTTL = ttl
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService panics on nil subscriptions or catalog.
func NewService(subs SubscriptionReader, cat *catalog.Catalog, counters CounterRegistry, opts ...Option) *Service {
	if subs == nil {
		panic("limits: SubscriptionReader is required")
	}
	if cat == nil {
		panic("limits: Catalog is required")
	}
	if counters == nil {
		counters = NewRegistry()
	}
	s := &Service{
		subs:     subs,
		catalog:  cat,
		counters: counters,
		locker:   tenantlock.NewMemory(),
		lockTTL:  10 * time.Second,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// current returns the subscription and its plan.
func (s *Service) current(ctx context.Context, tenantID uuid.UUID) (*subscription.Subscription, catalog.Plan, error) {
	sub, err := s.subs.Get(ctx, tenantID)
	if err != nil {
		return nil, catalog.Plan{}, err
	}
	plan, err := s.catalog.Plan(sub.PlanID)
	if err != nil {
		return nil, catalog.Plan{}, err
	}
	return sub, plan, nil
}

// entitledPlan returns the plan of a tenant with access, or ErrNoAccess.
func (s *Service) entitledPlan(ctx context.Context, tenantID uuid.UUID) (catalog.Plan, error) {
	sub, plan, err := s.current(ctx, tenantID)
	if err != nil {
		return catalog.Plan{}, err
	}
	if !sub.HasAccess() {
		return catalog.Plan{}, fmt.Errorf("%w: subscription is %s", ErrNoAccess, sub.Status)
	}
	return plan, nil
}

func (s *Service) count(ctx context.Context, tenantID uuid.UUID, res Resource) (int64, error) {
	counter, ok := s.counters[res]
	if !ok {
		return 0, ErrNoCounterRegistered
	}
	n, err := counter(ctx, tenantID)
	if err != nil {
		return 0, errors.Join(ErrFailedToCountResourceUsage, err)
	}
	return n, nil
}

// CanCreate reports whether the tenant may add n more units of res.
func (s *Service) CanCreate(ctx context.Context, tenantID uuid.UUID, res Resource, n int64) error {
	plan, err := s.entitledPlan(ctx, tenantID)
	if err != nil {
		return err
	}
	limit, err := limitOf(plan, res)
	if err != nil {
		return err
	}
	if limit == catalog.Unlimited {
		return nil
	}
	current, err := s.count(ctx, tenantID, res)
	if err != nil {
		return err
	}
	if current+max(n, 1) > limit {
		return fmt.Errorf("%w: %s %d of %d", ErrLimitExceeded, res, current, limit)
	}
	return nil
}

// Usage returns current usage of res against the tenant's plan limit.
func (s *Service) Usage(ctx context.Context, tenantID uuid.UUID, res Resource) (UsageInfo, error) {
	_, plan, err := s.current(ctx, tenantID)
	if err != nil {
		return UsageInfo{}, err
	}
	limit, err := limitOf(plan, res)
	if err != nil {
		return UsageInfo{}, err
	}
	current, err := s.count(ctx, tenantID, res)
	if err != nil {
		return UsageInfo{}, err
	}
	return newUsageInfo(current, limit), nil
}

// HasFeature is false for unknown features and tenants without access.
func (s *Service) HasFeature(ctx context.Context, tenantID uuid.UUID, f Feature) bool {
	plan, err := s.entitledPlan(ctx, tenantID)
	if err != nil {
		return false
	}
	return featureOf(plan, f)
}

// Entitlements returns the tenant's plan features and usage. Counter
// failures leave that resource at zero usage.
func (s *Service) Entitlements(ctx context.Context, tenantID uuid.UUID) (*Entitlements, error) {
	sub, plan, err := s.current(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	e := &Entitlements{
		PlanID:    plan.ID,
		Status:    string(sub.Status),
		HasAccess: sub.HasAccess(),
		Features:  plan.Features,
		Support:   plan.SupportTier,
		Usage:     make(map[Resource]UsageInfo, len(Resources)),
	}
	for _, res := range Resources {
		limit, _ := limitOf(plan, res)
		current, err := s.count(ctx, tenantID, res)
		if err != nil && !errors.Is(err, ErrNoCounterRegistered) {
			s.logger.WarnContext(ctx, "usage counter failed",
				logger.Component("limits"),
				logger.TenantID(tenantID),
				slog.String("resource", string(res)),
				logger.Error(err),
			)
		}
		e.Usage[res] = newUsageInfo(current, limit)
	}
	return e, nil
}

// Violation is a resource whose usage does not fit a target plan.
type Violation struct {
	Resource Resource `json:"resource"`
	Current  int64    `json:"current"`
	Limit    int64    `json:"limit"`
}

// DowngradeError lists every resource blocking a move to a smaller plan.
type DowngradeError struct {
	PlanID     string
	Violations []Violation
}

func (e *DowngradeError) Error() string {
	return fmt.Sprintf("plan %s: %d resources over limit", e.PlanID, len(e.Violations))
}

func (e *DowngradeError) Is(target error) bool { return target == ErrDowngradeNotPossible }

// CanDowngrade checks current usage against the limits of targetPlanID.
// Resources without a counter are not checked.
func (s *Service) CanDowngrade(ctx context.Context, tenantID uuid.UUID, targetPlanID string) error {
	target, err := s.catalog.Plan(targetPlanID)
	if err != nil {
		return err
	}
	_, current, err := s.current(ctx, tenantID)
	if err != nil {
		return err
	}

	var violations []Violation
	for _, res := range Resources {
		targetLimit, _ := limitOf(target, res)
		if targetLimit == catalog.Unlimited {
			continue
		}
		currentLimit, _ := limitOf(current, res)
		if currentLimit != catalog.Unlimited && currentLimit <= targetLimit {
			continue
		}
		used, err := s.count(ctx, tenantID, res)
		if errors.Is(err, ErrNoCounterRegistered) {
			continue
		}
		if err != nil {
			return err
		}
		if used > targetLimit {
			violations = append(violations, Violation{Resource: res, Current: used, Limit: targetLimit})
		}
	}
	if len(violations) > 0 {
		return &DowngradeError{PlanID: targetPlanID, Violations: violations}
	}
	return nil
}

// Record adds delta to the tenant's usage of res. Positive deltas are checked
// against the limit first; negative deltas always apply.
func (s *Service) Record(ctx context.Context, tenantID uuid.UUID, res Resource, delta int64) (UsageInfo, error) {
	if s.usage == nil {
		return UsageInfo{}, ErrUsageNotRecordable
	}
	plan, err := s.entitledPlan(ctx, tenantID)
	if err != nil {
		return UsageInfo{}, err
	}
	limit, err := limitOf(plan, res)
	if err != nil {
		return UsageInfo{}, err
	}

	release, err := s.locker.Acquire(ctx, tenantlock.Key(tenantID)+":usage:"+string(res), s.lockTTL)
	if err != nil {
		return UsageInfo{}, err
	}
	defer release()

	period := Period(res, s.now())
	if delta > 0 && limit != catalog.Unlimited {
		current, err := s.usage.Get(ctx, tenantID, res, period)
		if err != nil {
			return UsageInfo{}, errors.Join(ErrFailedToCountResourceUsage, err)
		}
		if current+delta > limit {
			return UsageInfo{}, fmt.Errorf("%w: %s %d of %d", ErrLimitExceeded, res, current, limit)
		}
	}
	n, err := s.usage.Add(ctx, tenantID, res, period, delta)
	if err != nil {
		return UsageInfo{}, err
	}
	return newUsageInfo(n, limit), nil
}
