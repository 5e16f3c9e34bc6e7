package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderRecord is the immutable order-log entry written when an order reaches
// a terminal state.
type OrderRecord struct {
	OrderID     int64
	Symbol      string
	Side        Side
	Status      OrderStatus
	Quantity    decimal.Decimal
	Price       decimal.Decimal
	Commission  decimal.Decimal
	RealizedPnL decimal.Decimal
	Reason      string
	SubmittedAt time.Time
	FilledAt    time.Time
}

func NewFilledRecord(o Order, price, commission, realized decimal.Decimal, filledAt time.Time) OrderRecord {
	return OrderRecord{
		OrderID:     o.ID,
		Symbol:      o.Symbol,
		Side:        o.Side(),
		Status:      OrderFilled,
		Quantity:    o.Quantity,
		Price:       price,
		Commission:  commission,
		RealizedPnL: realized,
		Reason:      o.Reason,
		SubmittedAt: o.SubmittedAt,
		FilledAt:    filledAt,
	}
}

func NewCancelledRecord(o Order, reason string, at time.Time) OrderRecord {
	return OrderRecord{
		OrderID:     o.ID,
		Symbol:      o.Symbol,
		Side:        o.Side(),
		Status:      OrderCancelled,
		Quantity:    o.Quantity,
		Price:       decimal.Zero,
		Commission:  decimal.Zero,
		RealizedPnL: decimal.Zero,
		Reason:      reason,
		SubmittedAt: o.SubmittedAt,
		FilledAt:    at,
	}
}

// Value is the signed cash amount the fill moved, excluding commission.
func (r OrderRecord) Value() decimal.Decimal {
	return r.Quantity.Mul(r.Price)
}
