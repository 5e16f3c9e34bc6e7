package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountView is a read-only copy of the account handed to strategies.
type AccountView struct {
	Cash      decimal.Decimal
	NAV       decimal.Decimal
	Positions map[string]PositionSnapshot
	Time      time.Time
}

type PositionSnapshot struct {
	Symbol        string
	Quantity      decimal.Decimal
	AvgEntryPrice decimal.Decimal
	LastPrice     decimal.Decimal
	RealizedPnL   decimal.Decimal
}

// UnrealizedPnL is the mark-to-market gain of the open quantity.
func (p PositionSnapshot) UnrealizedPnL() decimal.Decimal {
	return p.LastPrice.Sub(p.AvgEntryPrice).Mul(p.Quantity)
}

// NAVSnapshot is the account value recorded at the end of a simulated step.
type NAVSnapshot struct {
	Time time.Time
	Cash decimal.Decimal
	NAV  decimal.Decimal
}
