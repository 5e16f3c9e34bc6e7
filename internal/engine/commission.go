package engine

import (
	"github.com/shopspring/decimal"
)

// CommissionSchedule computes the fee for filling quantity units at price.
// quantity is always non-negative.
type CommissionSchedule interface {
	Commission(quantity, price decimal.Decimal) decimal.Decimal
}

// CommissionFunc adapts a function to CommissionSchedule.
type CommissionFunc func(quantity, price decimal.Decimal) decimal.Decimal

func (f CommissionFunc) Commission(quantity, price decimal.Decimal) decimal.Decimal {
	return f(quantity, price)
}

type ZeroCommission struct{}

func (ZeroCommission) Commission(_, _ decimal.Decimal) decimal.Decimal {
	return decimal.Zero
}

// FixedCommission charges the same amount for every fill.
type FixedCommission struct {
	PerOrder decimal.Decimal
}

func (c FixedCommission) Commission(quantity, _ decimal.Decimal) decimal.Decimal {
	if !quantity.IsPositive() {
		return decimal.Zero
	}
	return c.PerOrder
}

// PerShareCommission charges Rate per unit, clamped to [Min, Max].
// A zero Max means no cap.
type PerShareCommission struct {
	Rate decimal.Decimal
	Min  decimal.Decimal
	Max  decimal.Decimal
}

func (c PerShareCommission) Commission(quantity, _ decimal.Decimal) decimal.Decimal {
	if !quantity.IsPositive() {
		return decimal.Zero
	}
	return clamp(quantity.Mul(c.Rate), c.Min, c.Max)
}

// PercentCommission charges Rate of the trade value, clamped to [Min, Max].
// A zero Max means no cap.
type PercentCommission struct {
	Rate decimal.Decimal
	Min  decimal.Decimal
	Max  decimal.Decimal
}

func (c PercentCommission) Commission(quantity, price decimal.Decimal) decimal.Decimal {
	tradeValue := quantity.Mul(price)
	if tradeValue.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	return clamp(tradeValue.Mul(c.Rate), c.Min, c.Max)
}

// IBKRNetherlandsFixedUSD is IBKR "Fixed - IB SmartRouting" for USD
// denominated Netherlands stocks: 0.05% of trade value, min 1.70, max 39.
func IBKRNetherlandsFixedUSD() PercentCommission {
	return PercentCommission{
		Rate: decimal.RequireFromString("0.0005"),
		Min:  decimal.RequireFromString("1.70"),
		Max:  decimal.RequireFromString("39"),
	}
}

// IBKRForexTier1 is 0.20 basis points of trade value with a 2.00 minimum.
func IBKRForexTier1() PercentCommission {
	return PercentCommission{
		Rate: decimal.RequireFromString("0.00002"),
		Min:  decimal.RequireFromString("2.00"),
	}
}

func clamp(fee, lo, hi decimal.Decimal) decimal.Decimal {
	if fee.LessThan(lo) {
		fee = lo
	}
	if hi.IsPositive() && fee.GreaterThan(hi) {
		fee = hi
	}
	return fee
}
