package engine

import "errors"

var (
	// ErrDataUnavailable means an instrument has no bar to read or price at
	// the current step. Strategies check Ready before trading.
	ErrDataUnavailable = errors.New("data unavailable")
	// ErrOrderRejected marks an order that could not be filled. The order is
	// logged as cancelled and the run continues.
	ErrOrderRejected = errors.New("order rejected")

	ErrUnknownInstrument = errors.New("unknown instrument")
	ErrUnknownStrategy   = errors.New("unknown strategy")
	ErrUnknownMetric     = errors.New("unknown fitness metric")
	ErrInvalidConfig     = errors.New("invalid engine config")
)
