package pgstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/freightbill/pkg/catalog"
	"github.com/dmitrymomot/freightbill/pkg/subscription"
)

// PaymentLedger implements subscription.PaymentLedger. A payment is keyed by
// its collaborator ID and status, so replays do not add rows.
type PaymentLedger struct {
	db DB
}

func NewPaymentLedger(db DB) *PaymentLedger {
	mustDB(db)
	return &PaymentLedger{db: db}
}

func (l *PaymentLedger) Record(ctx context.Context, p subscription.Payment) error {
	_, err := l.db.Exec(ctx, `
		INSERT INTO payments (id, tenant_id, status, amount, currency, reason, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id, status) DO NOTHING`,
		p.ID, p.TenantID, string(p.Status), p.Amount.Amount, p.Amount.Currency, p.Reason, p.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("record payment: %w", err)
	}
	return nil
}

func (l *PaymentLedger) List(ctx context.Context, f subscription.PaymentFilter) ([]subscription.Payment, error) {
	var (
		tenant *uuid.UUID
		since  *time.Time
	)
	if f.TenantID != uuid.Nil {
		tenant = &f.TenantID
	}
	if !f.Since.IsZero() {
		since = &f.Since
	}

	rows, err := l.db.Query(ctx, `
		SELECT id, tenant_id, status, amount, currency, reason, occurred_at
		FROM payments
		WHERE ($1::uuid IS NULL OR tenant_id = $1)
		  AND ($2 = '' OR status = $2)
		  AND ($3::timestamptz IS NULL OR occurred_at >= $3)
		ORDER BY seq`, tenant, string(f.Status), since)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (subscription.Payment, error) {
		var (
			p      subscription.Payment
			status string
			amount catalog.Money
		)
		err := row.Scan(&p.ID, &p.TenantID, &status, &amount.Amount, &amount.Currency, &p.Reason, &p.OccurredAt)
		p.Status = subscription.PaymentStatus(status)
		p.Amount = amount
		p.OccurredAt = p.OccurredAt.UTC()
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return out, nil
}
