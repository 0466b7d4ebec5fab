package billing

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/freightbill/handler"
	"github.com/dmitrymomot/freightbill/pkg/catalog"
	"github.com/dmitrymomot/freightbill/pkg/limits"
	"github.com/dmitrymomot/freightbill/pkg/promotion"
	"github.com/dmitrymomot/freightbill/pkg/subscription"
	"github.com/dmitrymomot/freightbill/pkg/tenantlock"
)

type errorMapping struct {
	target error
	status int
	key    string
}

// Order matters: the first match wins.
var errorMappings = []errorMapping{
	{subscription.ErrSubscriptionNotFound, http.StatusNotFound, "subscription_not_found"},
	{subscription.ErrCheckoutNotFound, http.StatusNotFound, "checkout_not_found"},
	{catalog.ErrPlanNotFound, http.StatusNotFound, "plan_not_found"},
	{promotion.ErrPromotionNotFound, http.StatusNotFound, "promotion_not_found"},

	{subscription.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{subscription.ErrExtensionLimitReached, http.StatusConflict, "extension_limit_reached"},
	{subscription.ErrTrialNotExtendable, http.StatusConflict, "trial_not_extendable"},
	{subscription.ErrTrialNotAvailable, http.StatusConflict, "trial_not_available"},
	{subscription.ErrAccompanimentNotEligible, http.StatusConflict, "accompaniment_not_eligible"},
	{subscription.ErrNoPendingCancellation, http.StatusConflict, "no_pending_cancellation"},
	{subscription.ErrSamePlan, http.StatusConflict, "same_plan"},
	{subscription.ErrSubscriptionAlreadyExists, http.StatusConflict, "subscription_exists"},
	{promotion.ErrPromotionExists, http.StatusConflict, "promotion_exists"},
	{limits.ErrLimitExceeded, http.StatusConflict, "limit_exceeded"},
	{limits.ErrDowngradeNotPossible, http.StatusConflict, "downgrade_not_possible"},
	{limits.ErrNoAccess, http.StatusForbidden, "no_access"},

	{promotion.ErrPromotionRejected, http.StatusUnprocessableEntity, "promotion_rejected"},
	{promotion.ErrCapExceeded, http.StatusUnprocessableEntity, "promotion_rejected"},
	{promotion.ErrInvalidPromotion, http.StatusUnprocessableEntity, "invalid_promotion"},
	{catalog.ErrPlanInactive, http.StatusUnprocessableEntity, "plan_inactive"},
	{catalog.ErrContactSalesOnly, http.StatusUnprocessableEntity, "contact_sales"},
	{catalog.ErrInvalidCycle, http.StatusUnprocessableEntity, "invalid_cycle"},
	{subscription.ErrReasonRequired, http.StatusUnprocessableEntity, "reason_required"},
	{subscription.ErrMissingTenantID, http.StatusUnprocessableEntity, "tenant_required"},
	{limits.ErrInvalidResource, http.StatusUnprocessableEntity, "invalid_resource"},

	{subscription.ErrInvalidWebhook, http.StatusBadRequest, "invalid_webhook"},
	{subscription.ErrMissingCorrelationID, http.StatusBadRequest, "invalid_webhook"},

	{subscription.ErrCollaboratorUnavailable, http.StatusServiceUnavailable, "collaborator_unavailable"},
	{tenantlock.ErrLockNotAcquired, http.StatusServiceUnavailable, "busy"},
	{limits.ErrUsageNotRecordable, http.StatusServiceUnavailable, "usage_unavailable"},
	{limits.ErrNoCounterRegistered, http.StatusServiceUnavailable, "usage_unavailable"},
	{limits.ErrFailedToCountResourceUsage, http.StatusServiceUnavailable, "usage_unavailable"},
}

// httpError converts a service error into the HTTPError rendered to the
// client. Server-side failures expose only the matched sentinel.
func httpError(err error) error {
	var valErr handler.ValidationError
	if errors.As(err, &valErr) {
		return err
	}
	var httpErr handler.HTTPError
	if errors.As(err, &httpErr) {
		return err
	}
	for _, m := range errorMappings {
		if !errors.Is(err, m.target) {
			continue
		}
		cause := err
		if m.status >= http.StatusInternalServerError {
			cause = m.target
		}
		if reason, ok := promotion.RejectionReason(err); ok {
			return handler.HTTPError{Code: m.status, Key: "promotion_" + string(reason), Err: cause}
		}
		return handler.HTTPError{Code: m.status, Key: m.key, Err: cause}
	}
	return handler.Classify(err)
}
