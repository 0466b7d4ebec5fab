package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/freightbill/pkg/pg"
	"github.com/dmitrymomot/freightbill/pkg/promotion"
)

// PromotionStore implements promotion.Store. Redemptions lock the promotion
// row, so concurrent redemptions of one code queue behind each other.
type PromotionStore struct {
	db DB
}

func NewPromotionStore(db DB) *PromotionStore {
	mustDB(db)
	return &PromotionStore{db: db}
}

func encodePromotion(p promotion.Promotion) ([]byte, error) {
	p.UsesCount = 0
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode promotion: %w", err)
	}
	return raw, nil
}

func (s *PromotionStore) Create(ctx context.Context, p promotion.Promotion) error {
	raw, err := encodePromotion(p)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO promotions (code, definition, uses_count, created_at)
		VALUES ($1, $2, 0, $3)`, p.Code, raw, p.CreatedAt)
	if pg.IsDuplicateKeyError(err) {
		return promotion.ErrPromotionExists
	}
	if err != nil {
		return fmt.Errorf("create promotion: %w", err)
	}
	return nil
}

// Update rewrites the definition; uses_count and created_at are not touched.
func (s *PromotionStore) Update(ctx context.Context, p promotion.Promotion) error {
	raw, err := encodePromotion(p)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE promotions
		SET definition = jsonb_set($2::jsonb, '{created_at}', definition->'created_at')
		WHERE code = $1`, p.Code, raw)
	if err != nil {
		return fmt.Errorf("update promotion: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return promotion.ErrPromotionNotFound
	}
	return nil
}

func (s *PromotionStore) Get(ctx context.Context, code string) (promotion.Promotion, error) {
	return scanPromotion(s.db.QueryRow(ctx, `SELECT definition, uses_count FROM promotions WHERE code = $1`, code))
}

func (s *PromotionStore) List(ctx context.Context) ([]promotion.Promotion, error) {
	rows, err := s.db.Query(ctx, `SELECT definition, uses_count FROM promotions ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("list promotions: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (promotion.Promotion, error) {
		return scanPromotion(row)
	})
	if err != nil {
		return nil, fmt.Errorf("list promotions: %w", err)
	}
	return out, nil
}

func (s *PromotionStore) TenantUses(ctx context.Context, code string, tenantID uuid.UUID) (int64, error) {
	return tenantUses(ctx, s.db, code, tenantID)
}

func (s *PromotionStore) Redeem(ctx context.Context, code string, tenantID uuid.UUID, check promotion.RedeemCheck) (promotion.Promotion, error) {
	var out promotion.Promotion
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		p, err := scanPromotion(tx.QueryRow(ctx,
			`SELECT definition, uses_count FROM promotions WHERE code = $1 FOR UPDATE`, code))
		if errors.Is(err, promotion.ErrPromotionNotFound) {
			return promotion.Reject(code, promotion.ReasonNotFound)
		}
		if err != nil {
			return err
		}
		uses, err := tenantUses(ctx, tx, code, tenantID)
		if err != nil {
			return err
		}
		if err := check(p.Clone(), uses); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `UPDATE promotions SET uses_count = uses_count + 1 WHERE code = $1`, code); err != nil {
			return fmt.Errorf("increment promotion uses: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO promotion_redemptions (code, tenant_id, uses) VALUES ($1, $2, 1)
			ON CONFLICT (code, tenant_id) DO UPDATE SET uses = promotion_redemptions.uses + 1`,
			code, tenantID); err != nil {
			return fmt.Errorf("increment tenant uses: %w", err)
		}
		p.UsesCount++
		out = p
		return nil
	})
	if err != nil {
		return promotion.Promotion{}, err
	}
	return out, nil
}

// Unredeem decrements both counters in one transaction. The tenant row
// is the source of truth: without a recorded use nothing changes.
func (s *PromotionStore) Unredeem(ctx context.Context, code string, tenantID uuid.UUID) error {
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE promotion_redemptions SET uses = uses - 1
			WHERE code = $1 AND tenant_id = $2 AND uses > 0`, code, tenantID)
		if err != nil {
			return fmt.Errorf("decrement tenant uses: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		if _, err := tx.Exec(ctx, `UPDATE promotions SET uses_count = GREATEST(uses_count - 1, 0) WHERE code = $1`, code); err != nil {
			return fmt.Errorf("decrement promotion uses: %w", err)
		}
		return nil
	})
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func tenantUses(ctx context.Context, db queryRower, code string, tenantID uuid.UUID) (int64, error) {
	var n int64
	err := db.QueryRow(ctx, `SELECT uses FROM promotion_redemptions WHERE code = $1 AND tenant_id = $2`, code, tenantID).Scan(&n)
	if pg.IsNotFoundError(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("tenant uses: %w", err)
	}
	return n, nil
}

func scanPromotion(row pgx.Row) (promotion.Promotion, error) {
	var (
		raw  []byte
		uses int64
	)
	if err := row.Scan(&raw, &uses); err != nil {
		if pg.IsNotFoundError(err) {
			return promotion.Promotion{}, promotion.ErrPromotionNotFound
		}
		return promotion.Promotion{}, fmt.Errorf("get promotion: %w", err)
	}
	var p promotion.Promotion
	if err := json.Unmarshal(raw, &p); err != nil {
		return promotion.Promotion{}, fmt.Errorf("decode promotion: %w", err)
	}
	p.UsesCount = uses
	return p, nil
}
