// Package subscription is the lifecycle engine that decides, for every tenant,
// which plan applies, what it costs, and whether the tenant may use the
// platform.
//
// A Service owns the subscription records and is the only writer. Every
// change goes through a transition table (see machine.go): the event is
// checked against the current status and its guards, the mutation is applied
// to a clone, and the clone is saved only when every step succeeded. Failed
// operations never leave partial writes.
//
// # Statuses
//
//	trialing   free trial, optionally extended or converted to the accompaniment offer
//	active     paying subscriber in good standing
//	past_due   last charge failed; access continues while the collaborator retries
//	suspended  access blocked by an administrator, independent of payment state
//	cancelled  terminal; a returning tenant starts a new subscription record
//
// Transition records for a tenant's very first checkout use the label
// pending_checkout as their source status. It is never stored on a record.
//
// # Wiring
//
// Only the catalog, the promotion registry and a Store are required. The
// rest defaults to in-memory or no-op implementations:
//
//	svc := subscription.NewService(cat, promotions, pgstore.NewSubscriptionStore(pool),
//	    subscription.WithCheckoutStore(redisstore.NewCheckoutStore(rdb, "freightbill")),
//	    subscription.WithPaymentLedger(pgstore.NewPaymentLedger(pool)),
//	    subscription.WithDeduplicator(pgstore.NewDeduplicator(pool)),
//	    subscription.WithLocker(redisstore.NewLocker(rdb, "freightbill")),
//	    subscription.WithPaymentGateway(gateway),
//	    subscription.WithInvoiceNotifier(invoices),
//	    subscription.WithAuditLogger(audit.NewLogger(pgstore.NewAuditStorage(pool))),
//	    subscription.WithPolicy(cfg.Policy),
//	    subscription.WithLogger(log),
//	)
//
// Policy carries the tunables: trial length, extension count and grace,
// accompaniment price and months, checkout lifetime, lock TTL and sweep
// concurrency. Each field has an env tag so it loads with package config.
//
// # Trials and Checkout
//
//	sub, err := svc.StartTrial(ctx, tenantID, "starter", catalog.CycleMonthly)
//	sub, err = svc.ExtendTrial(ctx, tenantID)
//
//	co, err := svc.InitiateCheckout(ctx, tenantID, subscription.CheckoutParams{
//	    PlanID:        "profesional",
//	    Cycle:         catalog.CycleYearly,
//	    PromotionCode: "DESCUENTO20",
//	})
//	// redirect the tenant to co.URL
//
// InitiateCheckout only previews the promotion. The use is redeemed when the
// charge is confirmed.
//
// # Payments
//
// Money never moves here. Checkouts and charges are delegated to a
// PaymentGateway and confirmed back through HandleWebhook, or directly
// through HandleChargeSucceeded and HandleChargeFailed:
//
//	err := svc.HandleChargeSucceeded(ctx, subscription.ChargeSucceeded{
//	    CorrelationID: "evt_8a1c",
//	    TenantID:      tenantID,
//	    PeriodStart:   start,
//	    PeriodEnd:     end,
//	})
//	switch {
//	case errors.Is(err, subscription.ErrDuplicateEvent):
//	    // already applied; acknowledge
//	case subscription.IsRejection(err):
//	    // final; acknowledge and alert
//	case err != nil:
//	    // infrastructure failure; let the collaborator redeliver
//	}
//
// Deliveries are deduplicated by correlation id. A delivery that fails on
// infrastructure gives its id back, so the collaborator can redeliver it.
//
// # Plan Changes
//
// ChangePlan upgrades immediately and schedules downgrades or lateral moves
// for the end of the period; a later request replaces the pending one.
//
//	res, err := svc.ChangePlan(ctx, tenantID, subscription.ChangeRequest{
//	    PlanID:        "profesional",
//	    PromotionCode: "UPGRADE10",
//	})
//	if res.Immediate {
//	    // new price applies now
//	}
//
// # Promotions
//
// Promotion uses are redeemed while the change is being built and before it
// is saved. When the save fails, the uses taken by that attempt are released
// again, so a retried charge or plan change finds the tenant's allowance
// intact and the global count never includes uses held by no subscription.
//
// # Cancellation and Suspension
//
// RequestCancellation ends a trial at once and marks a paid subscription to
// cancel at period end; WithdrawCancellation undoes the mark. Suspend and
// Reactivate are administrator operations that block and restore access
// without touching the billing period. ForceCancel ends any non-terminal
// subscription immediately.
//
// # Sweep
//
// Time-driven effects (trial expiry, period-end cancellation, deferred plan
// changes, accompaniment and discount cycle counting) are applied by Sweep,
// usually from the scheduler:
//
//	report, err := svc.Sweep(ctx)
//	log.Info("sweep done", "scanned", report.Scanned, "changed", report.Changed)
//
// Sweep is idempotent: running it twice at the same instant changes nothing
// the second time. SweepTenant runs the same logic for one tenant.
//
// # Concurrency
//
// All read-modify-write cycles for a tenant run under a tenantlock.Locker, so
// a sweep and a webhook touching the same tenant never interleave. With a
// shared locker (Postgres advisory locks or Redis) this holds across
// processes too.
//
// # Errors
//
// Business-rule rejections such as ErrInvalidTransition,
// ErrExtensionLimitReached or ErrSamePlan are final and reported by
// IsRejection. TransitionError names the status and event that did not
// match and satisfies errors.Is(err, ErrInvalidTransition). Anything else is
// an infrastructure failure and safe to retry.
package subscription
