package subscription

import (
	"context"

	"github.com/google/uuid"

	"github.com/dmitrymomot/freightbill/pkg/logger"
	"github.com/dmitrymomot/freightbill/pkg/promotion"
)

// claims tracks the promotion uses taken while building one commit. When the
// commit is abandoned, release hands them back so the counters only ever
// reflect uses held by saved subscriptions.
type claims struct {
	svc    *Service
	tenant uuid.UUID
	codes  []string
}

func (s *Service) newClaims(tenantID uuid.UUID) *claims {
	return &claims{svc: s, tenant: tenantID}
}

func (c *claims) redeem(ctx context.Context, code string) (promotion.Discount, error) {
	d, err := c.svc.promotions.Redeem(ctx, code, c.tenant)
	if err != nil {
		return promotion.Discount{}, err
	}
	c.codes = append(c.codes, code)
	return d, nil
}

// settle releases the claimed uses when err is non-nil and forgets them
// either way.
func (c *claims) settle(ctx context.Context, err error) {
	if err == nil || len(c.codes) == 0 {
		c.codes = nil
		return
	}
	ctx = context.WithoutCancel(ctx)
	for _, code := range c.codes {
		if relErr := c.svc.promotions.Release(ctx, code, c.tenant); relErr != nil {
			c.svc.logger.ErrorContext(ctx, "promotion use not released after failed commit",
				logger.TenantID(c.tenant),
				logger.PromotionCode(code),
				logger.Error(relErr),
			)
		}
	}
	c.codes = nil
}
