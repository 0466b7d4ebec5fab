package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/freightbill/pkg/subscription"
)

// checkoutRetention keeps an expired checkout around long enough for a late
// charge notification to still find it.
const checkoutRetention = 7 * 24 * time.Hour

// CheckoutStore implements subscription.CheckoutStore. Records expire on
// their own some time after the checkout does.
type CheckoutStore struct {
	client redis.UniversalClient
	keys   keyspace
	now    func() time.Time
}

func NewCheckoutStore(client redis.UniversalClient, prefix string) *CheckoutStore {
	mustClient(client)
	return &CheckoutStore{client: client, keys: newKeyspace(prefix), now: time.Now}
}

func (s *CheckoutStore) Save(ctx context.Context, c subscription.Checkout) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode checkout: %w", err)
	}
	ttl := max(c.ExpiresAt.Sub(s.now()), 0) + checkoutRetention
	return s.client.Set(ctx, s.keys.key("checkout", c.TenantID.String()), data, ttl).Err()
}

func (s *CheckoutStore) Get(ctx context.Context, tenantID uuid.UUID) (*subscription.Checkout, error) {
	data, err := s.client.Get(ctx, s.keys.key("checkout", tenantID.String())).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, subscription.ErrCheckoutNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get checkout: %w", err)
	}
	var c subscription.Checkout
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode checkout: %w", err)
	}
	return &c, nil
}

func (s *CheckoutStore) Delete(ctx context.Context, tenantID uuid.UUID) error {
	return s.client.Del(ctx, s.keys.key("checkout", tenantID.String())).Err()
}
