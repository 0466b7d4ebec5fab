// Package billing exposes the subscription engine over HTTP.
//
// Routes are grouped by caller:
//
//	GET  /plans                          public catalog
//	GET  /plans/compare?from=&to=        limit and feature differences
//
//	tenant routes, identified by the X-Tenant-ID header:
//	GET    /subscription                 current record and available events
//	POST   /trial                        start the one trial a tenant gets
//	POST   /trial/extend                 add one extension
//	POST   /promotions/validate          preview a code without consuming it
//	GET    /checkout                     pending checkout, if any
//	POST   /checkout                     open a payment for a plan
//	POST   /accompaniment                accept the accompaniment offer
//	POST   /plan-change                  upgrade now or schedule a downgrade
//	POST   /cancellation                 cancel at period end
//	DELETE /cancellation                 withdraw a pending cancellation
//	GET    /entitlements                 features and usage against limits
//	POST   /usage                        report usage, rejected past the limit
//	GET    /plan-change/check?plan_id=   whether usage fits a smaller plan
//
//	admin routes, bearer token from ADMIN_TOKENS:
//	GET  /admin/subscriptions?status=    list records
//	GET  /admin/payments                 payment ledger
//	GET  /admin/metrics                  billing snapshot
//	GET  /admin/audit?tenant_id=         status-change trail
//	POST /admin/sweep                    run the scheduled sweep now
//	POST /admin/tenants/{tenantID}/suspend|reactivate|cancel
//	GET|POST /admin/promotions, GET|PATCH|DELETE /admin/promotions/{code}
//
//	POST /webhooks/payments              payment collaborator notifications
//
// # Usage
//
//	h := billing.NewHandler(subscriptions, cat, promotions,
//		billing.WithAdminTokens(cfg.AdminTokens...),
//		billing.WithSignatureHeader(payment.SignatureHeader(cfg.Payment.Provider)),
//		billing.WithMetrics(aggregator),
//		billing.WithAuditStorage(auditStorage),
//		billing.WithLimits(entitlements),
//		billing.WithRateLimit(throttle),
//		billing.WithLogger(log),
//	)
//	r.Mount("/api/v1", billing.Router(h))
//
// The entitlement routes are only mounted with WithLimits. Without admin
// tokens every admin route answers 401.
//
// # Errors
//
// Bodies use the handler package envelope. Business rejections map to 404,
// 409 or 422; collaborator and lock failures map to 503. With WithRateLimit,
// POST /promotions/validate and POST /checkout share a limiter and answer 429
// once it denies.
package billing
