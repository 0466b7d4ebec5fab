package billing

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/freightbill/handler"
	"github.com/dmitrymomot/freightbill/pkg/audit"
	"github.com/dmitrymomot/freightbill/pkg/billingmetrics"
	"github.com/dmitrymomot/freightbill/pkg/catalog"
	"github.com/dmitrymomot/freightbill/pkg/limits"
	"github.com/dmitrymomot/freightbill/pkg/logger"
	"github.com/dmitrymomot/freightbill/pkg/promotion"
	"github.com/dmitrymomot/freightbill/pkg/subscription"
	"github.com/dmitrymomot/freightbill/pkg/webhook"
)

// Handler serves the billing API.
type Handler struct {
	svc        *subscription.Service
	catalog    *catalog.Catalog
	promotions *promotion.Registry
	metrics    *billingmetrics.Aggregator
	audit      audit.Storage
	limits     *limits.Service
	rateLimit  func(http.Handler) http.Handler

	adminTokens     []string
	signatureHeader string
	logger          *slog.Logger
	errorHandler    handler.ErrorHandler[handler.Context]
}

type Option func(*Handler)

// WithAdminTokens sets the bearer tokens accepted on admin routes. Without
// tokens the admin routes answer 401.
func WithAdminTokens(tokens ...string) Option {
	return func(h *Handler) {
		for _, t := range tokens {
			if t != "" {
				h.adminTokens = append(h.adminTokens, t)
			}
		}
	}
}

// WithSignatureHeader names the header carrying the payment collaborator's
// webhook signature.
func WithSignatureHeader(name string) Option {
	return func(h *Handler) {
		if name != "" {
			h.signatureHeader = name
		}
	}
}

// WithMetrics enables GET /admin/metrics.
func WithMetrics(agg *billingmetrics.Aggregator) Option {
	return func(h *Handler) { h.metrics = agg }
}

// WithAuditStorage enables GET /admin/audit.
func WithAuditStorage(s audit.Storage) Option {
	return func(h *Handler) { h.audit = s }
}

// WithLimits enables the entitlement and usage routes.
func WithLimits(svc *limits.Service) Option {
	return func(h *Handler) { h.limits = svc }
}

// WithRateLimit throttles the routes that accept promotion codes.
func WithRateLimit(mw func(http.Handler) http.Handler) Option {
	return func(h *Handler) { h.rateLimit = mw }
}

func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHandler panics on nil dependencies.
func NewHandler(svc *subscription.Service, cat *catalog.Catalog, promotions *promotion.Registry, opts ...Option) *Handler {
	if svc == nil {
		panic("billing: subscription Service is required")
	}
	if cat == nil {
		panic("billing: Catalog is required")
	}
	if promotions == nil {
		panic("billing: promotion Registry is required")
	}
	h := &Handler{
		svc:             svc,
		catalog:         cat,
		promotions:      promotions,
		signatureHeader: webhook.SignatureHeader,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With(logger.Component("billing_api"))
	h.errorHandler = handler.NewErrorHandler(h.logger)
	return h
}

// fail logs err and renders its client-facing form.
func (h *Handler) fail(ctx handler.Context, err error) handler.Response {
	mapped := httpError(err)

	level := slog.LevelError
	var (
		herr handler.HTTPError
		verr handler.ValidationError
	)
	switch {
	case errors.As(mapped, &verr):
		level = slog.LevelInfo
	case errors.As(mapped, &herr) && herr.Code < http.StatusInternalServerError:
		level = slog.LevelInfo
	}
	h.logger.LogAttrs(ctx, level, "billing request rejected",
		logger.Error(err),
		slog.String("method", ctx.Request().Method),
		slog.String("path", ctx.Request().URL.Path),
	)
	return handler.JSONError(mapped)
}
