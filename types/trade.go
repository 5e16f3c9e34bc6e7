package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// RoundTrip is a position that was opened from flat and later returned to
// flat (or flipped). Derived from the order log for reporting.
type RoundTrip struct {
	Symbol   string
	Opened   time.Time
	Closed   time.Time
	Fills    int
	GrossPnL decimal.Decimal
	Fees     decimal.Decimal
}

// NetPnL is the realized result after commissions.
func (t RoundTrip) NetPnL() decimal.Decimal {
	return t.GrossPnL.Sub(t.Fees)
}
