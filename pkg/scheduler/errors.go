package scheduler

import "errors"

var (
	ErrJobAlreadyRegistered   = errors.New("job already registered")
	ErrJobNotFound            = errors.New("job not found")
	ErrNilJob                 = errors.New("job function is nil")
	ErrSchedulerNotConfigured = errors.New("scheduler has no jobs")
)
