// Package httpserver runs the billing HTTP API with graceful shutdown.
//
//	srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))
//	g.Go(func() error { return srv.Run(ctx, router) })
//
// Run returns when ctx is cancelled, after in-flight requests finish or the
// shutdown timeout elapses. Signal handling belongs to the caller.
//
// LivenessHandler and ReadinessHandler back the /healthz and /readyz
// endpoints; readiness probes wrap dependency pings such as pg.Healthcheck
// and redis.Healthcheck.
package httpserver
