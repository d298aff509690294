package core

import "errors"

var (
	// ErrNoClearingPrice is returned when no bid received a nonzero allocation,
	// so no uniform price can be derived.
	ErrNoClearingPrice = errors.New("no clearing price: no bid received a nonzero allocation")

	// ErrInvalidInput is returned when a bid, auction, allocation or policy is malformed.
	ErrInvalidInput = errors.New("invalid input")
)
