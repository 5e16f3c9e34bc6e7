package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Signal is a strategy's directional intent for a symbol at a step, before
// an allocator sizes it into an order. Price is the reference price used
// for sizing.
type Signal struct {
	Symbol string
	Side   Side
	Price  decimal.Decimal
	Reason string
	At     time.Time
}

func NewSignal(symbol string, side Side, price decimal.Decimal, reason string, at time.Time) Signal {
	return Signal{Symbol: symbol, Side: side, Price: price, Reason: reason, At: at}
}
