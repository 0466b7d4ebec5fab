package payment

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/dmitrymomot/freightbill/pkg/subscription"
)

// Metadata keys attached to every checkout so notifications can be routed
// back to the tenant.
const (
	metaTenantID      = "tenant_id"
	metaPlanID        = "plan_id"
	metaCycle         = "cycle"
	metaAmount        = "amount"
	metaListPrice     = "list_price"
	metaCurrency      = "currency"
	metaPromotionCode = "promotion_code"
	metaAccompaniment = "accompaniment"
)

func checkoutMetadata(req subscription.CheckoutRequest) map[string]string {
	m := map[string]string{
		metaTenantID:  req.TenantID.String(),
		metaPlanID:    req.PlanID,
		metaCycle:     string(req.Cycle),
		metaAmount:    strconv.FormatInt(req.Amount.Amount, 10),
		metaListPrice: strconv.FormatInt(req.ListPrice.Amount, 10),
		metaCurrency:  req.Amount.Currency,
	}
	if req.Discount != nil {
		m[metaPromotionCode] = req.Discount.Code
	}
	if req.Accompaniment {
		m[metaAccompaniment] = "true"
	}
	return m
}

func validateCheckoutRequest(req subscription.CheckoutRequest) error {
	switch {
	case req.TenantID == uuid.Nil:
		return errors.Join(ErrCheckoutFailed, subscription.ErrMissingTenantID)
	case req.PlanID == "":
		return fmt.Errorf("%w: plan ID is required", ErrCheckoutFailed)
	case req.Amount.Amount < 0:
		return fmt.Errorf("%w: negative amount", ErrCheckoutFailed)
	}
	return nil
}

func parseTenantID(raw string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil, errors.Join(ErrMalformedEvent, subscription.ErrMissingTenantID)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errors.Join(ErrMalformedEvent, fmt.Errorf("tenant_id: %w", err))
	}
	return id, nil
}
