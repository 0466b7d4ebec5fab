package pgstore

import (
	"context"
	"fmt"
	"time"
)

// Deduplicator implements subscription.Deduplicator on the processed_events
// table.
type Deduplicator struct {
	db DB
}

func NewDeduplicator(db DB) *Deduplicator {
	mustDB(db)
	return &Deduplicator{db: db}
}

func (d *Deduplicator) Reserve(ctx context.Context, id string) (bool, error) {
	tag, err := d.db.Exec(ctx, `
		INSERT INTO processed_events (id) VALUES ($1)
		ON CONFLICT (id) DO NOTHING`, id)
	if err != nil {
		return false, fmt.Errorf("reserve %s: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (d *Deduplicator) Release(ctx context.Context, id string) error {
	if _, err := d.db.Exec(ctx, `DELETE FROM processed_events WHERE id = $1`, id); err != nil {
		return fmt.Errorf("release %s: %w", id, err)
	}
	return nil
}

// Prune forgets reservations older than age and returns how many were removed.
func (d *Deduplicator) Prune(ctx context.Context, age time.Duration) (int64, error) {
	tag, err := d.db.Exec(ctx, `DELETE FROM processed_events WHERE reserved_at < $1`, time.Now().Add(-age))
	if err != nil {
		return 0, fmt.Errorf("prune processed events: %w", err)
	}
	return tag.RowsAffected(), nil
}
