package limits

import "errors"

var (
	ErrNoAccess                   = errors.New("subscription does not grant access")
	ErrLimitExceeded              = errors.New("plan limit exceeded")
	ErrInvalidResource            = errors.New("unknown resource")
	ErrNoCounterRegistered        = errors.New("no usage counter registered for resource")
	ErrDowngradeNotPossible       = errors.New("current usage exceeds the target plan limits")
	ErrFailedToCountResourceUsage = errors.New("failed to count resource usage")
	ErrUsageNotRecordable         = errors.New("usage store not configured")
)
