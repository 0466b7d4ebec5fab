package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/freightbill/pkg/promotion"
)

const redeemAttempts = 64

// unredeemScript takes one use back from the tenant and the global counter,
// leaving both untouched when the tenant holds no use.
var unredeemScript = redis.NewScript(`
local n = tonumber(redis.call('HGET', KEYS[2], ARGV[1]) or '0')
if n <= 0 then
	return 0
end
redis.call('HINCRBY', KEYS[2], ARGV[1], -1)
if tonumber(redis.call('GET', KEYS[1]) or '0') > 0 then
	redis.call('DECR', KEYS[1])
end
return 1
`)

// PromotionStore implements promotion.Store. Each code is kept as a JSON
// definition, a global usage counter and a hash of per-tenant counters.
type PromotionStore struct {
	client redis.UniversalClient
	keys   keyspace
}

func NewPromotionStore(client redis.UniversalClient, prefix string) *PromotionStore {
	mustClient(client)
	return &PromotionStore{client: client, keys: newKeyspace(prefix)}
}

func (s *PromotionStore) defKey(code string) string     { return s.keys.key("promo", code) }
func (s *PromotionStore) usesKey(code string) string    { return s.keys.key("promo", code, "uses") }
func (s *PromotionStore) tenantsKey(code string) string { return s.keys.key("promo", code, "tenants") }
func (s *PromotionStore) indexKey() string              { return s.keys.key("promos") }

func encodeDefinition(p promotion.Promotion) ([]byte, error) {
	p.UsesCount = 0
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode promotion: %w", err)
	}
	return data, nil
}

func (s *PromotionStore) Create(ctx context.Context, p promotion.Promotion) error {
	data, err := encodeDefinition(p)
	if err != nil {
		return err
	}
	ok, err := s.client.SetNX(ctx, s.defKey(p.Code), data, 0).Result()
	if err != nil {
		return fmt.Errorf("create promotion: %w", err)
	}
	if !ok {
		return promotion.ErrPromotionExists
	}
	return s.client.SAdd(ctx, s.indexKey(), p.Code).Err()
}

// Update rewrites the definition but keeps the stored creation time. The
// counters live under separate keys and are untouched.
func (s *PromotionStore) Update(ctx context.Context, p promotion.Promotion) error {
	current, err := s.Get(ctx, p.Code)
	if err != nil {
		return err
	}
	p.CreatedAt = current.CreatedAt
	data, err := encodeDefinition(p)
	if err != nil {
		return err
	}
	ok, err := s.client.SetXX(ctx, s.defKey(p.Code), data, 0).Result()
	if err != nil {
		return fmt.Errorf("update promotion: %w", err)
	}
	if !ok {
		return promotion.ErrPromotionNotFound
	}
	return nil
}

func (s *PromotionStore) Get(ctx context.Context, code string) (promotion.Promotion, error) {
	return s.load(ctx, s.client, code)
}

// mgetter is satisfied by both the client and a watched transaction.
type mgetter interface {
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
}

func (s *PromotionStore) load(ctx context.Context, c mgetter, code string) (promotion.Promotion, error) {
	vals, err := c.MGet(ctx, s.defKey(code), s.usesKey(code)).Result()
	if err != nil {
		return promotion.Promotion{}, fmt.Errorf("get promotion: %w", err)
	}
	raw, ok := vals[0].(string)
	if !ok {
		return promotion.Promotion{}, promotion.ErrPromotionNotFound
	}
	var p promotion.Promotion
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return promotion.Promotion{}, fmt.Errorf("decode promotion: %w", err)
	}
	if uses, ok := vals[1].(string); ok {
		if _, err := fmt.Sscan(uses, &p.UsesCount); err != nil {
			return promotion.Promotion{}, fmt.Errorf("decode usage counter: %w", err)
		}
	}
	return p, nil
}

func (s *PromotionStore) List(ctx context.Context) ([]promotion.Promotion, error) {
	codes, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list promotions: %w", err)
	}
	slices.Sort(codes)

	out := make([]promotion.Promotion, 0, len(codes))
	for _, code := range codes {
		p, err := s.Get(ctx, code)
		if errors.Is(err, promotion.ErrPromotionNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *PromotionStore) TenantUses(ctx context.Context, code string, tenantID uuid.UUID) (int64, error) {
	n, err := s.client.HGet(ctx, s.tenantsKey(code), tenantID.String()).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("tenant uses: %w", err)
	}
	return n, nil
}

// Redeem watches the definition and both counters; if another redemption
// commits first the transaction is retried with fresh state.
func (s *PromotionStore) Redeem(ctx context.Context, code string, tenantID uuid.UUID, check promotion.RedeemCheck) (promotion.Promotion, error) {
	tenant := tenantID.String()
	var out promotion.Promotion

	txf := func(tx *redis.Tx) error {
		p, err := s.load(ctx, tx, code)
		if errors.Is(err, promotion.ErrPromotionNotFound) {
			return promotion.Reject(code, promotion.ReasonNotFound)
		}
		if err != nil {
			return err
		}
		uses, err := tx.HGet(ctx, s.tenantsKey(code), tenant).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("tenant uses: %w", err)
		}
		if err := check(p.Clone(), uses); err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Incr(ctx, s.usesKey(code))
			pipe.HIncrBy(ctx, s.tenantsKey(code), tenant, 1)
			return nil
		})
		if err != nil {
			return err
		}
		p.UsesCount++
		out = p
		return nil
	}

	for attempt := range redeemAttempts {
		err := s.client.Watch(ctx, txf, s.defKey(code), s.usesKey(code), s.tenantsKey(code))
		if !errors.Is(err, redis.TxFailedErr) {
			if err != nil {
				return promotion.Promotion{}, err
			}
			return out, nil
		}
		select {
		case <-ctx.Done():
			return promotion.Promotion{}, ctx.Err()
		case <-time.After(time.Duration(attempt+1) * time.Millisecond):
		}
	}
	return promotion.Promotion{}, fmt.Errorf("redeem %s: %w", code, redis.TxFailedErr)
}

func (s *PromotionStore) Unredeem(ctx context.Context, code string, tenantID uuid.UUID) error {
	keys := []string{s.usesKey(code), s.tenantsKey(code)}
	if err := unredeemScript.Run(ctx, s.client, keys, tenantID.String()).Err(); err != nil {
		return fmt.Errorf("unredeem %s: %w", code, err)
	}
	return nil
}
