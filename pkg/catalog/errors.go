package catalog

import "errors"

var (
	ErrPlanNotFound             = errors.New("plan not found")
	ErrPlanInactive             = errors.New("plan is no longer offered")
	ErrPlanExists               = errors.New("plan with this ID already exists")
	ErrContactSalesOnly         = errors.New("plan has no self-serve price")
	ErrInvalidCycle             = errors.New("invalid billing cycle")
	ErrInvalidPlanConfiguration = errors.New("invalid plan configuration")
	ErrFailedToLoadPlans        = errors.New("failed to load plans")
	ErrNoPlans                  = errors.New("catalog source returned no plans")
)
