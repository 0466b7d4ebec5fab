package billing

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/freightbill/handler"
	"github.com/dmitrymomot/freightbill/pkg/binder"
	"github.com/dmitrymomot/freightbill/pkg/logger"
)

// Router mounts every billing route.
//
//	r := chi.NewRouter()
//	r.Use(requestid.Middleware)
//	r.Mount("/", billing.Router(h))
func Router(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/plans", wrap(h, h.listPlans))
	r.Get("/plans/compare", wrap(h, h.comparePlans, binder.Query()))

	r.Get("/subscription", tenantRoute(h, h.subscription))
	r.Post("/trial", tenantRoute(h, h.startTrial, binder.JSON()))
	r.Post("/trial/extend", tenantRoute(h, h.extendTrial))
	r.Get("/checkout", tenantRoute(h, h.pendingCheckout))

	codes := r.With()
	if h.rateLimit != nil {
		codes = r.With(h.rateLimit)
	}
	codes.Post("/promotions/validate", tenantRoute(h, h.validatePromotion, binder.JSON()))
	codes.Post("/checkout", tenantRoute(h, h.checkout, binder.JSON()))
	r.Post("/accompaniment", tenantRoute(h, h.accompaniment))
	r.Post("/plan-change", tenantRoute(h, h.changePlan, binder.JSON()))
	r.Post("/cancellation", tenantRoute(h, h.requestCancellation))
	r.Delete("/cancellation", tenantRoute(h, h.withdrawCancellation))

	if h.limits != nil {
		r.Get("/entitlements", tenantRoute(h, h.entitlements))
		r.Post("/usage", tenantRoute(h, h.recordUsage, binder.JSON()))
		r.Get("/plan-change/check", tenantRoute(h, h.checkDowngrade, binder.Query()))
	}

	r.Post("/webhooks/payments", h.paymentWebhook)

	r.Route("/admin", func(r chi.Router) {
		r.Use(h.requireAdmin)

		r.Get("/subscriptions", wrap(h, h.listSubscriptions, binder.Query()))
		r.Get("/payments", wrap(h, h.listPayments, binder.Query()))
		r.Get("/metrics", wrap(h, h.metricsSnapshot))
		r.Get("/audit", wrap(h, h.auditTrail, binder.Query()))
		r.Post("/sweep", wrap(h, h.sweep))

		r.Route("/tenants/{tenantID}", func(r chi.Router) {
			r.Post("/suspend", wrap(h, h.suspend, binder.Path(chi.URLParam), binder.JSON()))
			r.Post("/reactivate", wrap(h, h.reactivate, binder.Path(chi.URLParam)))
			r.Post("/cancel", wrap(h, h.forceCancel, binder.Path(chi.URLParam), binder.JSON()))
		})

		r.Get("/promotions", wrap(h, h.listPromotions))
		r.Post("/promotions", wrap(h, h.createPromotion, binder.JSON()))
		r.Get("/promotions/{code}", wrap(h, h.getPromotion, binder.Path(chi.URLParam)))
		r.Patch("/promotions/{code}", wrap(h, h.updatePromotion, binder.Path(chi.URLParam), binder.JSON()))
		r.Delete("/promotions/{code}", wrap(h, h.deactivatePromotion, binder.Path(chi.URLParam)))
	})

	return r
}

func wrap[R any](h *Handler, fn handler.HandlerFunc[handler.Context, R], binders ...handler.Bind) http.HandlerFunc {
	return handler.Wrap(fn,
		handler.WithBinders[handler.Context, R](binders...),
		handler.WithErrorHandler[handler.Context, R](h.errorHandler),
	)
}

// tenantHeader identifies the calling tenant. Embed it in tenant requests.
type tenantHeader struct {
	TenantID uuid.UUID `header:"X-Tenant-ID" json:"-"`
}

func (t tenantHeader) tenant() uuid.UUID { return t.TenantID }

type tenantScoped interface {
	tenant() uuid.UUID
}

var errTenantHeader = errors.New("X-Tenant-ID header is required")

func tenantRoute[R tenantScoped](h *Handler, fn handler.HandlerFunc[handler.Context, R], binders ...handler.Bind) http.HandlerFunc {
	return handler.Wrap(fn,
		handler.WithBinders[handler.Context, R](append([]handler.Bind{binder.Header()}, binders...)...),
		handler.WithErrorHandler[handler.Context, R](h.errorHandler),
		handler.WithDecorators(requireTenant[R](h)),
	)
}

// requireTenant rejects requests without a tenant and tags the request
// context so log lines carry the tenant id.
func requireTenant[R tenantScoped](h *Handler) handler.Decorator[handler.Context, R] {
	return func(next handler.HandlerFunc[handler.Context, R]) handler.HandlerFunc[handler.Context, R] {
		return func(ctx handler.Context, req R) handler.Response {
			id := req.tenant()
			if id == uuid.Nil {
				return h.fail(ctx, handler.ErrBadRequest.Wrap(errTenantHeader))
			}
			r := ctx.Request()
			r = r.WithContext(logger.WithTenant(r.Context(), id.String()))
			return next(handler.NewContext(ctx.ResponseWriter(), r), req)
		}
	}
}

// requireAdmin accepts a bearer token from the configured list.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if ok && h.validAdminToken(strings.TrimSpace(token)) {
			next.ServeHTTP(w, r)
			return
		}
		h.logger.WarnContext(r.Context(), "admin request without valid token",
			"path", r.URL.Path,
		)
		_ = handler.JSONError(handler.ErrUnauthorized).Render(w, r)
	})
}

func (h *Handler) validAdminToken(token string) bool {
	if token == "" {
		return false
	}
	for _, t := range h.adminTokens {
		if subtle.ConstantTimeCompare([]byte(t), []byte(token)) == 1 {
			return true
		}
	}
	return false
}
