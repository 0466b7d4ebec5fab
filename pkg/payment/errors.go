package payment

import "errors"

var (
	ErrInvalidConfiguration = errors.New("invalid payment gateway configuration")
	ErrUnknownProvider      = errors.New("unknown payment provider")
	ErrMissingPriceID       = errors.New("provider price ID is required")
	ErrCheckoutFailed       = errors.New("failed to open checkout")
	ErrInvalidSignature     = errors.New("payment notification signature verification failed")
	ErrMalformedEvent       = errors.New("malformed payment notification")
)
