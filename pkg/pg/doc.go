// Package pg bootstraps the PostgreSQL connection used by the billing
// service's durable stores.
//
// Connect opens a pgx pool with retries, Migrate applies embedded goose
// migrations through pgx's database/sql bridge, and Healthcheck returns a
// readiness probe. The Is*Error helpers classify *pgconn.PgError values so
// store code can map them to domain errors.
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	version, err := pg.Migrate(ctx, pool, pgstore.Migrations, pgstore.MigrationsDir, cfg, log)
package pg
