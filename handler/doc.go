// Package handler provides typed JSON HTTP handlers.
//
// A HandlerFunc receives a request struct filled by binders from
// package binder and returns a Response. Wrap adapts it to net/http:
//
//	type tenantRequest struct {
//		TenantID uuid.UUID `header:"X-Tenant-ID"`
//	}
//
//	r.Get("/subscription", handler.Wrap(h.subscription,
//		handler.WithBinders[handler.Context, tenantRequest](binder.Header()),
//		handler.WithErrorHandler[handler.Context, tenantRequest](handler.NewErrorHandler(log)),
//	))
//
// # Request Flow
//
// For every request Wrap
//
//  1. builds the handler context (NewContext unless WithContextFactory is set)
//  2. runs the binders in order, skipping those that report
//     binder.ErrBinderNotApplicable
//  3. calls the handler through its decorators, the first one outermost
//  4. renders the returned Response
//
// A binding or render failure goes to the ErrorHandler. A handler returning
// nil is a programming error and renders ErrNilResponse as a 500.
//
// # Responses
//
// Every body uses the same envelope:
//
//	{"data": ...}
//	{"data": [...], "meta": {"count": 3}}
//	{"error": {"code": "conflict", "message": "..."}}
//
// Handlers build it with JSON, JSONError and Empty:
//
//	func (h *Handler) createPromotion(ctx handler.Context, req createPromotionRequest) handler.Response {
//		p, err := h.promotions.Create(ctx, req.params())
//		if err != nil {
//			return handler.JSONError(err)
//		}
//		return handler.JSON(p, handler.WithJSONStatus(http.StatusCreated))
//	}
//
// # Errors
//
// HTTPError carries the status and key of a failure. The predefined values
// are wrapped with a cause whose message is shown to the client:
//
//	return handler.JSONError(handler.ErrConflict.Wrap(err))
//
// ValidationError renders as 422 with per-field details:
//
//	errs := handler.ValidationError{}
//	if req.Reason == "" {
//		errs.Add("reason", "is required")
//	}
//	if err := errs.OrNil(); err != nil {
//		return handler.JSONError(err)
//	}
//
// Any other error renders as a generic 500 so infrastructure details never
// reach clients. Classify maps binder failures to 400 before rendering;
// NewErrorHandler applies it and logs 4xx at warn and 5xx at error level.
package handler
