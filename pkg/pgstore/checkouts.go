package pgstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/dmitrymomot/freightbill/pkg/pg"
	"github.com/dmitrymomot/freightbill/pkg/subscription"
)

// CheckoutStore implements subscription.CheckoutStore.
type CheckoutStore struct {
	db DB
}

func NewCheckoutStore(db DB) *CheckoutStore {
	mustDB(db)
	return &CheckoutStore{db: db}
}

func (s *CheckoutStore) Save(ctx context.Context, c subscription.Checkout) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode checkout: %w", err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO checkouts (tenant_id, handle, record, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant_id) DO UPDATE
		SET handle = EXCLUDED.handle, record = EXCLUDED.record, expires_at = EXCLUDED.expires_at`,
		c.TenantID, c.Handle, raw, c.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("save checkout: %w", err)
	}
	return nil
}

func (s *CheckoutStore) Get(ctx context.Context, tenantID uuid.UUID) (*subscription.Checkout, error) {
	var raw []byte
	err := s.db.QueryRow(ctx, `SELECT record FROM checkouts WHERE tenant_id = $1`, tenantID).Scan(&raw)
	if pg.IsNotFoundError(err) {
		return nil, subscription.ErrCheckoutNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get checkout: %w", err)
	}
	var c subscription.Checkout
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode checkout: %w", err)
	}
	return &c, nil
}

func (s *CheckoutStore) Delete(ctx context.Context, tenantID uuid.UUID) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM checkouts WHERE tenant_id = $1`, tenantID); err != nil {
		return fmt.Errorf("delete checkout: %w", err)
	}
	return nil
}
