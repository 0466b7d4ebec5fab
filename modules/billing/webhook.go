package billing

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/freightbill/handler"
	"github.com/dmitrymomot/freightbill/pkg/logger"
	"github.com/dmitrymomot/freightbill/pkg/subscription"
)

const maxWebhookBody = 256 << 10

// paymentWebhook hands the raw body and signature to the service. It answers
// 2xx for anything the collaborator should not redeliver: applied events,
// duplicates and business rejections. Infrastructure failures answer 5xx so
// the collaborator retries.
func (h *Handler) paymentWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody+1))
	if err != nil || len(payload) > maxWebhookBody {
		_ = handler.JSONError(handler.ErrBadRequest).Render(w, r)
		return
	}

	err = h.svc.HandleWebhook(ctx, payload, r.Header.Get(h.signatureHeader))
	switch {
	case err == nil:
		_ = handler.JSON(map[string]string{"status": "applied"}).Render(w, r)
	case errors.Is(err, subscription.ErrDuplicateEvent):
		_ = handler.JSON(map[string]string{"status": "duplicate"}).Render(w, r)
	case errors.Is(err, subscription.ErrInvalidWebhook), errors.Is(err, subscription.ErrMissingCorrelationID):
		h.logger.WarnContext(ctx, "payment webhook refused", logger.Error(err))
		_ = handler.JSONError(httpError(err)).Render(w, r)
	case subscription.IsRejection(err):
		h.logger.WarnContext(ctx, "payment webhook rejected by lifecycle rules", logger.Error(err))
		_ = handler.JSON(map[string]string{"status": "rejected"}).Render(w, r)
	default:
		h.logger.ErrorContext(ctx, "payment webhook failed",
			logger.Error(err),
			slog.Int("payload_bytes", len(payload)),
		)
		_ = handler.JSONError(httpError(err)).Render(w, r)
	}
}
