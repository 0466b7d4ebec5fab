package billing

import (
	"net/http"

	"github.com/dmitrymomot/freightbill/handler"
	"github.com/dmitrymomot/freightbill/pkg/catalog"
	"github.com/dmitrymomot/freightbill/pkg/subscription"
)

type tenantRequest struct {
	tenantHeader
}

type planRequest struct {
	tenantHeader
	PlanID        string `json:"plan_id"`
	Cycle         string `json:"cycle"`
	PromotionCode string `json:"promotion_code"`
}

// validate checks the plan fields and returns the parsed cycle.
func (r planRequest) validate() (catalog.Cycle, error) {
	errs := handler.ValidationError{}
	if r.PlanID == "" {
		errs.Add("plan_id", "is required")
	}
	cycle, err := catalog.ParseCycle(r.Cycle)
	if err != nil {
		errs.Add("cycle", "must be monthly or yearly")
	}
	return cycle, errs.OrNil()
}

type promotionCheckRequest struct {
	tenantHeader
	Code   string `json:"code"`
	PlanID string `json:"plan_id"`
}

type compareRequest struct {
	From string `query:"from"`
	To   string `query:"to"`
}

// subscriptionView is a subscription plus the events it currently accepts.
type subscriptionView struct {
	*subscription.Subscription
	HasAccess             bool                 `json:"has_access"`
	AccompanimentEligible bool                 `json:"accompaniment_eligible"`
	AvailableEvents       []subscription.Event `json:"available_events"`
}

func (h *Handler) view(sub *subscription.Subscription) subscriptionView {
	return subscriptionView{
		Subscription:          sub,
		HasAccess:             sub.HasAccess(),
		AccompanimentEligible: h.svc.AccompanimentEligible(sub),
		AvailableEvents:       h.svc.AvailableEvents(sub),
	}
}

func (h *Handler) listPlans(_ handler.Context, _ struct{}) handler.Response {
	return handler.JSON(h.catalog.ActivePlans())
}

func (h *Handler) comparePlans(ctx handler.Context, req compareRequest) handler.Response {
	from, err := h.catalog.Plan(req.From)
	if err != nil {
		return h.fail(ctx, err)
	}
	to, err := h.catalog.Plan(req.To)
	if err != nil {
		return h.fail(ctx, err)
	}
	return handler.JSON(catalog.ComparePlans(from, to))
}

func (h *Handler) subscription(ctx handler.Context, req tenantRequest) handler.Response {
	sub, err := h.svc.Get(ctx, req.TenantID)
	if err != nil {
		return h.fail(ctx, err)
	}
	return handler.JSON(h.view(sub))
}

func (h *Handler) startTrial(ctx handler.Context, req planRequest) handler.Response {
	cycle, err := req.validate()
	if err != nil {
		return h.fail(ctx, err)
	}
	sub, err := h.svc.StartTrial(ctx, req.TenantID, req.PlanID, cycle)
	if err != nil {
		return h.fail(ctx, err)
	}
	return handler.JSON(h.view(sub), handler.WithJSONStatus(http.StatusCreated))
}

func (h *Handler) extendTrial(ctx handler.Context, req tenantRequest) handler.Response {
	sub, err := h.svc.ExtendTrial(ctx, req.TenantID)
	if err != nil {
		return h.fail(ctx, err)
	}
	return handler.JSON(h.view(sub))
}

func (h *Handler) validatePromotion(ctx handler.Context, req promotionCheckRequest) handler.Response {
	errs := handler.ValidationError{}
	if req.Code == "" {
		errs.Add("code", "is required")
	}
	if req.PlanID == "" {
		errs.Add("plan_id", "is required")
	}
	if err := errs.OrNil(); err != nil {
		return h.fail(ctx, err)
	}

	d, err := h.svc.ValidatePromotion(ctx, req.TenantID, req.Code, req.PlanID)
	if err != nil {
		return h.fail(ctx, err)
	}
	plan, err := h.catalog.Plan(req.PlanID)
	if err != nil {
		return h.fail(ctx, err)
	}
	return handler.JSON(map[string]any{
		"discount":       d,
		"monthly_amount": d.Apply(plan.PriceMonthly),
		"yearly_amount":  d.Apply(plan.PriceYearly),
		"currency":       plan.Currency,
	})
}

func (h *Handler) pendingCheckout(ctx handler.Context, req tenantRequest) handler.Response {
	c, err := h.svc.PendingCheckout(ctx, req.TenantID)
	if err != nil {
		return h.fail(ctx, err)
	}
	return handler.JSON(c)
}

func (h *Handler) checkout(ctx handler.Context, req planRequest) handler.Response {
	cycle, err := req.validate()
	if err != nil {
		return h.fail(ctx, err)
	}
	c, err := h.svc.InitiateCheckout(ctx, req.TenantID, subscription.CheckoutParams{
		PlanID:        req.PlanID,
		Cycle:         cycle,
		PromotionCode: req.PromotionCode,
	})
	if err != nil {
		return h.fail(ctx, err)
	}
	return handler.JSON(c, handler.WithJSONStatus(http.StatusCreated))
}

func (h *Handler) accompaniment(ctx handler.Context, req tenantRequest) handler.Response {
	sub, c, err := h.svc.ActivateAccompaniment(ctx, req.TenantID)
	if err != nil {
		return h.fail(ctx, err)
	}
	return handler.JSON(map[string]any{
		"subscription": h.view(sub),
		"checkout":     c,
	}, handler.WithJSONStatus(http.StatusCreated))
}

func (h *Handler) changePlan(ctx handler.Context, req planRequest) handler.Response {
	cycle, err := req.validate()
	if err != nil {
		return h.fail(ctx, err)
	}
	res, err := h.svc.ChangePlan(ctx, req.TenantID, subscription.ChangeRequest{
		PlanID:        req.PlanID,
		Cycle:         cycle,
		PromotionCode: req.PromotionCode,
	})
	if err != nil {
		return h.fail(ctx, err)
	}
	return handler.JSON(map[string]any{
		"subscription": h.view(res.Subscription),
		"immediate":    res.Immediate,
		"replaced":     res.Replaced,
	})
}

func (h *Handler) requestCancellation(ctx handler.Context, req tenantRequest) handler.Response {
	sub, err := h.svc.RequestCancellation(ctx, req.TenantID)
	if err != nil {
		return h.fail(ctx, err)
	}
	return handler.JSON(h.view(sub))
}

func (h *Handler) withdrawCancellation(ctx handler.Context, req tenantRequest) handler.Response {
	sub, err := h.svc.WithdrawCancellation(ctx, req.TenantID)
	if err != nil {
		return h.fail(ctx, err)
	}
	return handler.JSON(h.view(sub))
}
