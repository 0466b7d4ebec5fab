// Package redisstore implements the billing engine's short-lived and
// contended state on Redis: promotion definitions and usage counters, payment
// event deduplication, pending checkouts, the per-tenant lock, entitlement
// usage counters and rate limit buckets.
//
// Every key is namespaced by a prefix (redis.Config.KeyPrefix) so several
// deployments can share one server.
//
// Promotion redemptions use WATCH/MULTI so the cap check and the counter
// increments commit together; a conflicting writer forces a retry. Releasing
// a use runs a Lua script that decrements the tenant count and, only when
// that count was positive, the global one.
//
//	rdb, err := redis.Connect(ctx, cfg.Redis)
//	if err != nil {
//		return err
//	}
//	promotions := promotion.NewRegistry(redisstore.NewPromotionStore(rdb, cfg.Redis.KeyPrefix), cat)
//	locker := redisstore.NewLocker(rdb, cfg.Redis.KeyPrefix)
//
// RateLimitStore refills buckets from its own clock; WithClock replaces it in
// tests.
package redisstore
