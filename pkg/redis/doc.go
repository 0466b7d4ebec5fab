// Package redis connects the billing service to Redis.
//
// Connect parses a redis:// URL, pings the server and retries until it is
// ready or the connect timeout elapses. Healthcheck returns a probe suitable
// for the service's readiness endpoint. Config is filled from REDIS_*
// environment variables via github.com/caarlos0/env.
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
// The Redis-backed stores in pkg/redisstore take the returned client.
package redis
