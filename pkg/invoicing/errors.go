package invoicing

import "errors"

var (
	ErrInvalidConfiguration = errors.New("invalid invoicing configuration")
	ErrDeliveryFailed       = errors.New("price commitment delivery failed")
)
