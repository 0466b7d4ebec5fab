package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/freightbill/pkg/limits"
)

// UsageStore implements limits.UsageStore on the usage_counters table.
type UsageStore struct {
	db DB
}

func NewUsageStore(db DB) *UsageStore {
	mustDB(db)
	return &UsageStore{db: db}
}

func (s *UsageStore) Add(ctx context.Context, tenantID uuid.UUID, res limits.Resource, period string, delta int64) (int64, error) {
	var v int64
	err := s.db.QueryRow(ctx, `
		INSERT INTO usage_counters (tenant_id, resource, period, value)
		VALUES ($1, $2, $3, GREATEST($4::bigint, 0))
		ON CONFLICT (tenant_id, resource, period)
		DO UPDATE SET value = GREATEST(usage_counters.value + $4::bigint, 0), updated_at = now()
		RETURNING value`, tenantID, string(res), period, delta).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("add %s usage: %w", res, err)
	}
	return v, nil
}

func (s *UsageStore) Get(ctx context.Context, tenantID uuid.UUID, res limits.Resource, period string) (int64, error) {
	var v int64
	err := s.db.QueryRow(ctx, `
		SELECT value FROM usage_counters
		WHERE tenant_id = $1 AND resource = $2 AND period = $3`, tenantID, string(res), period).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get %s usage: %w", res, err)
	}
	return v, nil
}
