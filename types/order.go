package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is a request to change the position in Symbol by Quantity units.
// A positive quantity buys, a negative one sells. Orders reference
// instruments by symbol only.
type Order struct {
	ID          int64
	Symbol      string
	Quantity    decimal.Decimal
	Reason      string
	Status      OrderStatus
	SubmittedAt time.Time
}

func NewOrder(id int64, symbol string, quantity decimal.Decimal, reason string, submittedAt time.Time) Order {
	return Order{
		ID:          id,
		Symbol:      symbol,
		Quantity:    quantity,
		Reason:      reason,
		Status:      OrderPending,
		SubmittedAt: submittedAt,
	}
}

// Side derives buy/sell from the sign of the quantity.
func (o Order) Side() Side {
	if o.Quantity.IsNegative() {
		return SideTypeSell
	}
	return SideTypeBuy
}
