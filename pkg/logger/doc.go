// Package logger builds *slog.Logger instances for the billing engine.
//
// New applies functional options on top of production defaults (JSON, info
// level, stdout) and wraps the handler with a decorator that copies values
// from context.Context into every record, so request and tenant identifiers
// reach the log lines without being threaded through every call.
//
//	log := logger.New(
//		logger.WithEnvironment(cfg.AppEnv, "billingd"),
//		logger.WithContextExtractors(requestid.LoggerExtractor(), logger.TenantExtractor()),
//	)
//	log.InfoContext(ctx, "subscription activated", logger.TenantID(id), logger.Status("active"))
//
// # Environments
//
// WithEnvironment picks the defaults for a deployment: production and
// staging log JSON at info level, anything else logs text at debug level.
// Both add service and env attributes to every record. Later options still
// override it:
//
//	log := logger.New(
//		logger.WithEnvironment("production", "billingd"),
//		logger.WithLevel(slog.LevelWarn),
//	)
//
// # Attributes
//
// Attribute helpers in attr.go keep key names consistent across packages:
//
//	log.WarnContext(ctx, "promotion not applied",
//		logger.TenantID(tenantID),
//		logger.PromotionCode(code),
//		logger.Error(err),
//	)
//	log.InfoContext(ctx, "subscription changed",
//		logger.Transition(from, to, "checkout_completed"))
//
// Error returns an empty attribute for a nil error, so it can be passed
// unconditionally.
package logger
