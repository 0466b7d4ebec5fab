package redisstore

import (
	"strings"

	"github.com/redis/go-redis/v9"
)

const DefaultPrefix = "freightbill"

type keyspace string

func newKeyspace(prefix string) keyspace {
	prefix = strings.TrimSuffix(prefix, ":")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return keyspace(prefix)
}

func (k keyspace) key(parts ...string) string {
	return string(k) + ":" + strings.Join(parts, ":")
}

func mustClient(client redis.UniversalClient) {
	if client == nil {
		panic("redisstore: redis client is required")
	}
}
