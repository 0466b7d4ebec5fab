// Package pgstore implements the billing engine's durable stores on
// PostgreSQL through pgx: subscriptions, pending checkouts, the payment
// ledger, processed-event reservations, promotions and the audit trail. It
// also provides a tenant lock built on session advisory locks.
//
// Records are stored as JSONB next to the few columns that queries and
// constraints need. The schema ships as embedded goose migrations; apply it
// with pg.Migrate(ctx, pool, pgstore.Migrations, pgstore.MigrationsDir, ...).
//
// Promotion redemptions lock the promotion row with SELECT ... FOR UPDATE and
// update both counters in the same transaction. Releases decrement the tenant
// row only when it holds a use, then the global count.
//
// Every store takes a DB, satisfied by *pgxpool.Pool and pgx.Tx. The advisory
// locker needs the pool itself because it holds a connection for as long as
// the lock.
package pgstore
