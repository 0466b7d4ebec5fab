package promotion

import (
	"errors"
	"fmt"
)

var (
	ErrPromotionRejected = errors.New("promotion code rejected")
	ErrCapExceeded       = errors.New("promotion usage cap exceeded")
	ErrPromotionNotFound = errors.New("promotion not found")
	ErrPromotionExists   = errors.New("promotion code already exists")
	ErrInvalidPromotion  = errors.New("invalid promotion definition")
	ErrReleaseFailed     = errors.New("promotion use not released")
)

// Reason explains why a code was rejected.
type Reason string

const (
	ReasonNotFound      Reason = "not_found"
	ReasonExpired       Reason = "expired"
	ReasonNotApplicable Reason = "not_applicable"
	ReasonGlobalCap     Reason = "global_cap"
	ReasonTenantCap     Reason = "tenant_cap"
)

// RejectionError is returned when a code cannot be applied.
// It matches ErrPromotionRejected, and cap reasons also match ErrCapExceeded.
type RejectionError struct {
	Code   string
	Reason Reason
}

// Reject builds a RejectionError. Store implementations use it to report
// cap violations detected inside their atomic step.
func Reject(code string, reason Reason) *RejectionError {
	return &RejectionError{Code: code, Reason: reason}
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("promotion %q rejected: %s", e.Code, e.Reason)
}

func (e *RejectionError) Is(target error) bool {
	switch target {
	case ErrPromotionRejected:
		return true
	case ErrCapExceeded:
		return e.Reason == ReasonGlobalCap || e.Reason == ReasonTenantCap
	}
	return false
}

// RejectionReason extracts the rejection reason from err, if any.
func RejectionReason(err error) (Reason, bool) {
	var re *RejectionError
	if errors.As(err, &re) {
		return re.Reason, true
	}
	return "", false
}
