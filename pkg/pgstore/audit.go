package pgstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/freightbill/pkg/audit"
)

// AuditStorage implements audit.Storage.
type AuditStorage struct {
	db DB
}

func NewAuditStorage(db DB) *AuditStorage {
	mustDB(db)
	return &AuditStorage{db: db}
}

// Store writes all events in one batch.
func (s *AuditStorage) Store(ctx context.Context, events ...audit.Event) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, ev := range events {
		raw, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("encode audit event: %w", err)
		}
		batch.Queue(`
			INSERT INTO audit_events (id, tenant_id, subscription_id, action, event, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO NOTHING`,
			ev.ID, ev.TenantID, ev.SubscriptionID, ev.Action, raw, ev.CreatedAt)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", audit.ErrStorageNotAvailable, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("store audit events: %w", err)
	}
	return tx.Commit(ctx)
}

// Query returns matching events, newest first.
func (s *AuditStorage) Query(ctx context.Context, f audit.Filter) ([]audit.Event, error) {
	var since *time.Time
	if !f.Since.IsZero() {
		since = &f.Since
	}
	var limit *int
	if f.Limit > 0 {
		limit = &f.Limit
	}

	rows, err := s.db.Query(ctx, `
		SELECT event FROM audit_events
		WHERE ($1 = '' OR tenant_id = $1)
		  AND ($2 = '' OR action = $2)
		  AND ($3::timestamptz IS NULL OR created_at >= $3)
		ORDER BY seq DESC
		LIMIT $4`, f.TenantID, f.Action, since, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: query audit events: %w", audit.ErrStorageNotAvailable, err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (audit.Event, error) {
		var (
			raw []byte
			ev  audit.Event
		)
		if err := row.Scan(&raw); err != nil {
			return ev, err
		}
		return ev, json.Unmarshal(raw, &ev)
	})
	if err != nil {
		return nil, fmt.Errorf("decode audit events: %w", err)
	}
	return out, nil
}
