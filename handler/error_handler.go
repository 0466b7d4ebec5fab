package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/freightbill/pkg/binder"
	"github.com/dmitrymomot/freightbill/pkg/logger"
)

var bindingErrors = []error{
	binder.ErrUnsupportedMediaType,
	binder.ErrMissingContentType,
	binder.ErrFailedToParseJSON,
	binder.ErrFailedToParseQuery,
	binder.ErrFailedToParsePath,
	binder.ErrFailedToParseHeader,
}

// Classify turns binding failures into 400 Bad Request and leaves other
// errors untouched.
func Classify(err error) error {
	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		return err
	}
	for _, target := range bindingErrors {
		if errors.Is(err, target) {
			return ErrBadRequest.Wrap(err)
		}
	}
	return err
}

// NewErrorHandler logs the failure at a level matching its status and
// renders it as a JSON envelope.
func NewErrorHandler(log *slog.Logger) ErrorHandler[Context] {
	if log == nil {
		log = slog.Default()
	}
	return func(ctx Context, err error) {
		err = Classify(err)
		resp := JSONError(err).(*jsonResponse)

		level := slog.LevelWarn
		if resp.status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		log.LogAttrs(ctx, level, "request failed",
			logger.Error(err),
			slog.Int("status_code", resp.status),
			slog.String("method", ctx.Request().Method),
			slog.String("path", ctx.Request().URL.Path),
			logger.Component("http"),
		)

		if renderErr := resp.Render(ctx.ResponseWriter(), ctx.Request()); renderErr != nil {
			log.ErrorContext(ctx, "failed to render error response", logger.Error(renderErr))
		}
	}
}
