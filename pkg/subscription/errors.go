package subscription

import (
	"errors"
	"fmt"

	"github.com/dmitrymomot/freightbill/pkg/catalog"
	"github.com/dmitrymomot/freightbill/pkg/promotion"
)

var (
	ErrInvalidTransition        = errors.New("invalid subscription transition")
	ErrExtensionLimitReached    = errors.New("trial extension limit reached")
	ErrTrialNotExtendable       = errors.New("trial can no longer be extended")
	ErrTrialNotAvailable        = errors.New("trial not available for this tenant")
	ErrAccompanimentNotEligible = errors.New("accompaniment offer not available")
	ErrNoPendingCancellation    = errors.New("no pending cancellation to withdraw")
	ErrSamePlan                 = errors.New("subscription already uses this plan and cycle")
	ErrReasonRequired           = errors.New("reason is required")

	ErrSubscriptionNotFound      = errors.New("subscription not found")
	ErrSubscriptionAlreadyExists = errors.New("tenant already has a live subscription")
	ErrCheckoutNotFound          = errors.New("pending checkout not found")

	ErrCollaboratorUnavailable = errors.New("external collaborator unavailable")
	ErrInvalidWebhook          = errors.New("invalid payment webhook")
	ErrMissingCorrelationID    = errors.New("payment event has no correlation id")
	ErrDuplicateEvent          = errors.New("payment event already processed")
	ErrMissingTenantID         = errors.New("tenant ID is required")
)

// TransitionError reports an event that has no transition from the current
// status. It matches ErrInvalidTransition.
type TransitionError struct {
	From  Status
	Event Event
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot apply %q to a %s subscription", e.Event, e.From)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// IsRejection reports whether err is a business-rule rejection rather than an
// infrastructure failure. Rejections are final; retrying cannot change them.
func IsRejection(err error) bool {
	for _, target := range []error{
		ErrInvalidTransition,
		ErrExtensionLimitReached,
		ErrTrialNotExtendable,
		ErrTrialNotAvailable,
		ErrAccompanimentNotEligible,
		ErrNoPendingCancellation,
		ErrSamePlan,
		ErrReasonRequired,
		ErrSubscriptionNotFound,
		ErrSubscriptionAlreadyExists,
		ErrMissingTenantID,
		promotion.ErrPromotionRejected,
		catalog.ErrPlanNotFound,
		catalog.ErrPlanInactive,
		catalog.ErrContactSalesOnly,
		catalog.ErrInvalidCycle,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
