// Package ratelimiter throttles HTTP routes with token buckets.
//
// A bucket holds at most Capacity tokens and gains RefillRate tokens every
// RefillInterval. Each request takes one token; an empty bucket denies the
// request until the next refill.
//
// # Usage
//
//	b, err := ratelimiter.NewBucket(ratelimiter.NewMemoryStore(), ratelimiter.Config{
//	    Capacity:       20,
//	    RefillRate:     5,
//	    RefillInterval: time.Minute,
//	})
//	if err != nil {
//	    return err // errors.Is(err, ratelimiter.ErrInvalidConfig)
//	}
//
//	mw := ratelimiter.Middleware(b, "promotions",
//	    ratelimiter.Composite(ratelimiter.ByHeader("X-Tenant-ID"), ratelimiter.ByClientIP()), log)
//	r.With(mw).Post("/promotions/validate", validate)
//
// The scope is prefixed to every key, so several route groups can share one
// store without sharing buckets.
//
// # Keys
//
// KeyFunc derives the bucket key from a request. ByHeader uses a header
// value, ByClientIP the address resolved by package clientip, and Composite
// joins several parts. A request whose key comes out empty is not limited.
//
// # Responses
//
// Allowed responses carry X-RateLimit-Limit, X-RateLimit-Remaining and
// X-RateLimit-Reset. Denied ones also carry Retry-After and answer 429 with
// the JSON error envelope from package handler.
//
// When the store fails the request goes through and a warning is logged.
//
// # Stores
//
// MemoryStore is per process and drops idle buckets on its own.
// redisstore.RateLimitStore keeps buckets in Redis so every instance draws
// from the same tokens. Both take a clock option for tests.
package ratelimiter
