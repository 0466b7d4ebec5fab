// Package audit keeps the append-only trail of subscription status changes
// and administrative billing actions.
//
// Every committed transition is recorded as an Event carrying the previous
// and next status, the actor that caused it and free-form metadata. Storage
// is pluggable; MemoryStorage serves tests and single-node deployments and
// the Postgres backend lives in pkg/pgstore.
//
// # Architecture
//
//   - Logger builds events, stamps them with an ID, a UTC time and the
//     request ID from context, validates and stores them
//   - Storage persists events and answers queries, newest first
//   - EventOption attaches tenant, subscription, actor, transition and
//     metadata to a single event
//
// # Usage
//
//	storage := audit.NewMemoryStorage()
//	log := audit.NewLogger(storage,
//	    audit.WithRequestIDExtractor(requestid.FromContext),
//	)
//
//	err := log.Log(ctx, "suspended",
//	    audit.WithTenant(tenantID.String()),
//	    audit.WithSubscription(subID.String()),
//	    audit.WithActor(audit.ActorAdmin),
//	    audit.WithTransition("active", "suspended"),
//	    audit.WithMetadata(map[string]any{"reason": "chargeback"}),
//	)
//
// Failed attempts worth keeping are written with LogError, which marks the
// event ResultFailure and stores the error text:
//
//	_ = log.LogError(ctx, "promotion_redemption_failed", err,
//	    audit.WithTenant(tenantID.String()),
//	    audit.WithActor(audit.ActorPayment),
//	)
//
// Reading the trail back:
//
//	events, err := storage.Query(ctx, audit.Filter{
//	    TenantID: tenantID.String(),
//	    Since:    time.Now().AddDate(0, -1, 0),
//	    Limit:    50,
//	})
//
// Zero-valued Filter fields match everything.
//
// # Actors
//
// Actor names who caused an action: ActorTenant for self-service calls,
// ActorAdmin for back-office operations, ActorPayment for gateway events and
// ActorScheduler for the periodic sweep.
//
// # Errors
//
//   - ErrEventValidation: the event has no action or no tenant
//   - ErrStorageNotAvailable: the backend could not be reached
//
// Discard is a Logger that drops everything. Services default to it so audit
// stays optional in tests that do not inspect the trail.
package audit
