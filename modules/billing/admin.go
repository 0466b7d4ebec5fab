package billing

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dmitrymomot/freightbill/handler"
	"github.com/dmitrymomot/freightbill/pkg/audit"
	"github.com/dmitrymomot/freightbill/pkg/promotion"
	"github.com/dmitrymomot/freightbill/pkg/subscription"
)

const defaultAuditLimit = 100

type listSubscriptionsRequest struct {
	Statuses []subscription.Status `query:"status"`
}

type listPaymentsRequest struct {
	TenantID uuid.UUID                  `query:"tenant_id"`
	Status   subscription.PaymentStatus `query:"status"`
	Since    string                     `query:"since"`
}

type auditRequest struct {
	TenantID string `query:"tenant_id"`
	Action   string `query:"action"`
	Limit    int    `query:"limit"`
}

type tenantPathRequest struct {
	TenantID uuid.UUID `path:"tenantID" json:"-"`
	Reason   string    `json:"reason"`
}

type promotionPathRequest struct {
	Code string `path:"code" json:"-"`
}

type createPromotionRequest struct {
	Code             string          `json:"code"`
	Description      string          `json:"description"`
	Kind             promotion.Kind  `json:"kind"`
	Value            decimal.Decimal `json:"value"`
	EligiblePlans    []string        `json:"eligible_plans"`
	MaxUses          int64           `json:"max_uses"`
	MaxUsesPerTenant int64           `json:"max_uses_per_tenant"`
	DurationCycles   int             `json:"duration_cycles"`
	ExpiresAt        *time.Time      `json:"expires_at"`
}

type updatePromotionRequest struct {
	Code             string     `path:"code" json:"-"`
	Description      *string    `json:"description"`
	EligiblePlans    []string   `json:"eligible_plans"`
	MaxUses          *int64     `json:"max_uses"`
	MaxUsesPerTenant *int64     `json:"max_uses_per_tenant"`
	DurationCycles   *int       `json:"duration_cycles"`
	ExpiresAt        *time.Time `json:"expires_at"`
	Active           *bool      `json:"active"`
}

var errFeatureDisabled = errors.New("not configured on this deployment")

func (h *Handler) listSubscriptions(ctx handler.Context, req listSubscriptionsRequest) handler.Response {
	errs := handler.ValidationError{}
	for _, st := range req.Statuses {
		if !st.Valid() {
			errs.Add("status", "unknown status "+string(st))
		}
	}
	if err := errs.OrNil(); err != nil {
		return h.fail(ctx, err)
	}

	subs, err := h.svc.List(ctx, subscription.ListFilter{Statuses: req.Statuses})
	if err != nil {
		return h.fail(ctx, err)
	}
	return handler.JSON(subs, handler.WithJSONMeta(map[string]any{"count": len(subs)}))
}

func (h *Handler) listPayments(ctx handler.Context, req listPaymentsRequest) handler.Response {
	f := subscription.PaymentFilter{TenantID: req.TenantID, Status: req.Status}
	if req.Since != "" {
		since, err := time.Parse(time.RFC3339, req.Since)
		if err != nil {
			return h.fail(ctx, handler.ValidationError{"since": {"must be an RFC 3339 timestamp"}})
		}
		f.Since = since
	}
	payments, err := h.svc.Payments(ctx, f)
	if err != nil {
		return h.fail(ctx, err)
	}
	return handler.JSON(payments, handler.WithJSONMeta(map[string]any{"count": len(payments)}))
}

func (h *Handler) metricsSnapshot(ctx handler.Context, _ struct{}) handler.Response {
	if h.metrics == nil {
		return h.fail(ctx, handler.ErrNotFound.Wrap(errFeatureDisabled))
	}
	snap, err := h.metrics.Snapshot(ctx)
	if err != nil {
		return h.fail(ctx, err)
	}
	return handler.JSON(snap)
}

func (h *Handler) auditTrail(ctx handler.Context, req auditRequest) handler.Response {
	if h.audit == nil {
		return h.fail(ctx, handler.ErrNotFound.Wrap(errFeatureDisabled))
	}
	limit := req.Limit
	if limit <= 0 || limit > 1000 {
		limit = defaultAuditLimit
	}
	events, err := h.audit.Query(ctx, audit.Filter{TenantID: req.TenantID, Action: req.Action, Limit: limit})
	if err != nil {
		return h.fail(ctx, err)
	}
	return handler.JSON(events)
}

func (h *Handler) sweep(ctx handler.Context, _ struct{}) handler.Response {
	report, err := h.svc.Sweep(ctx)
	if err != nil {
		return h.fail(ctx, err)
	}
	return handler.JSON(report)
}

func (h *Handler) suspend(ctx handler.Context, req tenantPathRequest) handler.Response {
	sub, err := h.svc.Suspend(ctx, req.TenantID, req.Reason)
	if err != nil {
		return h.fail(ctx, err)
	}
	return handler.JSON(h.view(sub))
}

func (h *Handler) reactivate(ctx handler.Context, req tenantPathRequest) handler.Response {
	sub, err := h.svc.Reactivate(ctx, req.TenantID)
	if err != nil {
		return h.fail(ctx, err)
	}
	return handler.JSON(h.view(sub))
}

func (h *Handler) forceCancel(ctx handler.Context, req tenantPathRequest) handler.Response {
	sub, err := h.svc.ForceCancel(ctx, req.TenantID, req.Reason)
	if err != nil {
		return h.fail(ctx, err)
	}
	return handler.JSON(h.view(sub))
}

func (h *Handler) listPromotions(ctx handler.Context, _ struct{}) handler.Response {
	promos, err := h.promotions.List(ctx)
	if err != nil {
		return h.fail(ctx, err)
	}
	return handler.JSON(promos)
}

func (h *Handler) createPromotion(ctx handler.Context, req createPromotionRequest) handler.Response {
	p, err := h.promotions.Create(ctx, promotion.CreateParams{
		Code:             req.Code,
		Description:      req.Description,
		Kind:             req.Kind,
		Value:            req.Value,
		EligiblePlans:    req.EligiblePlans,
		MaxUses:          req.MaxUses,
		MaxUsesPerTenant: req.MaxUsesPerTenant,
		DurationCycles:   req.DurationCycles,
		ExpiresAt:        req.ExpiresAt,
	})
	if err != nil {
		return h.fail(ctx, err)
	}
	return handler.JSON(p, handler.WithJSONStatus(http.StatusCreated))
}

func (h *Handler) getPromotion(ctx handler.Context, req promotionPathRequest) handler.Response {
	p, err := h.promotions.Get(ctx, req.Code)
	if err != nil {
		return h.fail(ctx, err)
	}
	return handler.JSON(p)
}

func (h *Handler) updatePromotion(ctx handler.Context, req updatePromotionRequest) handler.Response {
	p, err := h.promotions.Update(ctx, req.Code, promotion.UpdateParams{
		Description:      req.Description,
		EligiblePlans:    req.EligiblePlans,
		MaxUses:          req.MaxUses,
		MaxUsesPerTenant: req.MaxUsesPerTenant,
		DurationCycles:   req.DurationCycles,
		ExpiresAt:        req.ExpiresAt,
		Active:           req.Active,
	})
	if err != nil {
		return h.fail(ctx, err)
	}
	return handler.JSON(p)
}

func (h *Handler) deactivatePromotion(ctx handler.Context, req promotionPathRequest) handler.Response {
	if err := h.promotions.Deactivate(ctx, req.Code); err != nil {
		return h.fail(ctx, err)
	}
	return handler.Empty()
}
