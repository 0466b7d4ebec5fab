package billing

import (
	"errors"

	"github.com/dmitrymomot/freightbill/handler"
	"github.com/dmitrymomot/freightbill/pkg/limits"
)

type usageRequest struct {
	tenantHeader
	Resource string `json:"resource"`
	Delta    int64  `json:"delta"`
}

func (r usageRequest) validate() error {
	errs := handler.ValidationError{}
	if r.Resource == "" {
		errs.Add("resource", "is required")
	}
	if r.Delta == 0 {
		errs.Add("delta", "must not be zero")
	}
	return errs.OrNil()
}

type downgradeCheckRequest struct {
	tenantHeader
	PlanID string `query:"plan_id"`
}

type downgradeCheck struct {
	PlanID     string             `json:"plan_id"`
	Allowed    bool               `json:"allowed"`
	Violations []limits.Violation `json:"violations,omitempty"`
}

func (h *Handler) entitlements(ctx handler.Context, req tenantRequest) handler.Response {
	e, err := h.limits.Entitlements(ctx, req.TenantID)
	if err != nil {
		return h.fail(ctx, err)
	}
	return handler.JSON(e)
}

func (h *Handler) recordUsage(ctx handler.Context, req usageRequest) handler.Response {
	if err := req.validate(); err != nil {
		return h.fail(ctx, err)
	}
	usage, err := h.limits.Record(ctx, req.TenantID, limits.Resource(req.Resource), req.Delta)
	if err != nil {
		return h.fail(ctx, err)
	}
	return handler.JSON(usage)
}

// checkDowngrade reports whether current usage fits plan_id. Violations are
// a normal answer, not an error.
func (h *Handler) checkDowngrade(ctx handler.Context, req downgradeCheckRequest) handler.Response {
	if req.PlanID == "" {
		return h.fail(ctx, handler.ValidationError{"plan_id": {"is required"}})
	}
	err := h.limits.CanDowngrade(ctx, req.TenantID, req.PlanID)
	var de *limits.DowngradeError
	switch {
	case err == nil:
		return handler.JSON(downgradeCheck{PlanID: req.PlanID, Allowed: true})
	case errors.As(err, &de):
		return handler.JSON(downgradeCheck{PlanID: req.PlanID, Violations: de.Violations})
	}
	return h.fail(ctx, err)
}
