// Package limits answers entitlement questions for a tenant: which features
// its plan includes and whether it may add more users, clients, carriers or
// monthly operations.
//
// Limits come from the plan in the catalog; the plan comes from the tenant's
// subscription record. Usage is read through CounterFuncs, typically backed by
// a UsageStore that the operations platform reports into:
//
//	store := limits.NewMemoryUsageStore()
//	svc := limits.NewService(subscriptions, cat, limits.StoreCounters(store, time.Now),
//		limits.WithUsageStore(store))
//
//	if err := svc.CanCreate(ctx, tenantID, limits.ResourceUsers, 1); err != nil {
//		// errors.Is(err, limits.ErrLimitExceeded) or limits.ErrNoAccess
//	}
//
// A tenant without access (suspended, cancelled, expired) is entitled to
// nothing. Unlimited limits are -1, as in the catalog.
//
// # Counters
//
// Users, clients and carriers are absolute counts. Operations are counted per
// calendar month in UTC; Period returns the bucket a moment falls into.
// Counters can also come from the caller's own tables:
//
//	counters := limits.NewRegistry()
//	counters.Register(limits.ResourceUsers, func(ctx context.Context, id uuid.UUID) (int64, error) {
//		return users.CountByTenant(ctx, id)
//	})
//
// A resource without a registered counter fails with ErrNoCounterRegistered.
//
// # Recording Usage
//
// Record moves a counter under a per-tenant lock, so concurrent reports never
// overshoot the limit together:
//
//	info, err := svc.Record(ctx, tenantID, limits.ResourceOperations, 1)
//	if errors.Is(err, limits.ErrLimitExceeded) {
//		// refuse the new operation
//	}
//
// Negative deltas always apply. Without WithUsageStore, Record fails with
// ErrUsageNotRecordable. Pass WithLocker with a shared locker when several
// instances record usage for the same tenants.
//
// # Downgrades
//
// CanDowngrade compares current usage against a target plan and returns a
// DowngradeError listing every resource over its new limit:
//
//	var derr *limits.DowngradeError
//	if errors.As(err, &derr) {
//		for _, v := range derr.Violations {
//			fmt.Printf("%s: %d used, %d allowed\n", v.Resource, v.Current, v.Limit)
//		}
//	}
//
// Entitlements returns the plan's features, limits and usage in one value for
// display.
package limits
