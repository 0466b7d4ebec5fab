package pgstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/freightbill/pkg/pg"
	"github.com/dmitrymomot/freightbill/pkg/subscription"
)

// SubscriptionStore implements subscription.Store.
type SubscriptionStore struct {
	db DB
}

func NewSubscriptionStore(db DB) *SubscriptionStore {
	mustDB(db)
	return &SubscriptionStore{db: db}
}

func (s *SubscriptionStore) Get(ctx context.Context, tenantID uuid.UUID) (*subscription.Subscription, error) {
	var raw []byte
	err := s.db.QueryRow(ctx, `
		SELECT record FROM subscriptions
		WHERE tenant_id = $1
		ORDER BY created_at DESC, updated_at DESC
		LIMIT 1`, tenantID).Scan(&raw)
	if pg.IsNotFoundError(err) {
		return nil, subscription.ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return decodeSubscription(raw)
}

func (s *SubscriptionStore) Save(ctx context.Context, sub *subscription.Subscription) error {
	raw, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("encode subscription: %w", err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO subscriptions (id, tenant_id, status, plan_id, record, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status,
		    plan_id = EXCLUDED.plan_id,
		    record = EXCLUDED.record,
		    updated_at = EXCLUDED.updated_at`,
		sub.ID, sub.TenantID, string(sub.Status), sub.PlanID, raw, sub.CreatedAt, sub.UpdatedAt,
	)
	if pg.IsDuplicateKeyError(err) {
		return subscription.ErrSubscriptionAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("save subscription: %w", err)
	}
	return nil
}

func (s *SubscriptionStore) List(ctx context.Context, f subscription.ListFilter) ([]*subscription.Subscription, error) {
	var statuses []string
	for _, st := range f.Statuses {
		statuses = append(statuses, string(st))
	}

	rows, err := s.db.Query(ctx, `
		SELECT record FROM subscriptions
		WHERE $1::text[] IS NULL OR status = ANY($1)
		ORDER BY created_at, id`, statuses)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	raws, err := pgx.CollectRows(rows, pgx.RowTo[[]byte])
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}

	out := make([]*subscription.Subscription, 0, len(raws))
	for _, raw := range raws {
		sub, err := decodeSubscription(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, nil
}

func decodeSubscription(raw []byte) (*subscription.Subscription, error) {
	var sub subscription.Subscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		return nil, fmt.Errorf("decode subscription: %w", err)
	}
	return &sub, nil
}
