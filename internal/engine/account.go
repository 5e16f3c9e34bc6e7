package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"simtrader/types"
)

type Position struct {
	Symbol      string
	Quantity    decimal.Decimal
	AvgCost     decimal.Decimal
	LastPrice   decimal.Decimal
	RealizedPnL decimal.Decimal
}

// Account owns cash and positions keyed by symbol. Orders and instruments
// refer to positions by symbol only. NAV is always recomputed from cash and
// marked positions.
type Account struct {
	initialCash       decimal.Decimal
	cash              decimal.Decimal
	positions         map[string]*Position
	commission        CommissionSchedule
	allowShortSelling bool
	allowMargin       bool
	totalFees         decimal.Decimal
	log               []types.OrderRecord
	snapshots         []types.NAVSnapshot
}

func NewAccount(cfg AccountConfig) *Account {
	commission := cfg.Commission
	if commission == nil {
		commission = ZeroCommission{}
	}
	return &Account{
		initialCash:       cfg.InitialCash,
		cash:              cfg.InitialCash,
		positions:         make(map[string]*Position),
		commission:        commission,
		allowShortSelling: cfg.AllowShortSelling,
		allowMargin:       cfg.AllowMargin,
	}
}

func (a *Account) Cash() decimal.Decimal {
	return a.cash
}

func (a *Account) InitialCash() decimal.Decimal {
	return a.initialCash
}

func (a *Account) TotalFees() decimal.Decimal {
	return a.totalFees
}

// Position returns a copy of the position in symbol, zero if none.
func (a *Account) Position(symbol string) Position {
	if p, ok := a.positions[symbol]; ok {
		return *p
	}
	return Position{Symbol: symbol}
}

// NetAssetValue is cash plus every position marked at its last price.
func (a *Account) NetAssetValue() decimal.Decimal {
	nav := a.cash
	for _, p := range a.positions {
		nav = nav.Add(p.Quantity.Mul(p.LastPrice))
	}
	return nav
}

// Mark updates position prices from prices. Positions without a price keep
// their previous mark.
func (a *Account) Mark(prices PriceSource) {
	for sym, p := range a.positions {
		if px, ok := prices.Price(sym); ok {
			p.LastPrice = px
		}
	}
}

// Apply fills o at price. Cash moves exactly once: cash -= qty*price + fee.
// A fill that violates the account rules is cancelled and the returned
// error wraps ErrOrderRejected; either way the outcome is logged.
func (a *Account) Apply(o types.Order, price decimal.Decimal, at time.Time) (types.OrderRecord, error) {
	if o.Quantity.IsZero() {
		return a.Cancel(o, "zero quantity", at), fmt.Errorf("%w: zero quantity", ErrOrderRejected)
	}
	if !price.IsPositive() {
		return a.Cancel(o, "no valid price", at), fmt.Errorf("%w: %s price %s", ErrOrderRejected, o.Symbol, price)
	}

	quantity := o.Quantity
	fee := a.commission.Commission(quantity.Abs(), price)
	newCash := a.cash.Sub(quantity.Mul(price)).Sub(fee)
	if !a.allowMargin && quantity.IsPositive() && newCash.IsNegative() {
		return a.Cancel(o, "insufficient cash", at), fmt.Errorf("%w: insufficient cash for %s %s", ErrOrderRejected, quantity, o.Symbol)
	}

	pos := a.positions[o.Symbol]
	if pos == nil {
		pos = &Position{Symbol: o.Symbol}
	}
	oldQty := pos.Quantity
	newQty := oldQty.Add(quantity)
	if !a.allowShortSelling && newQty.IsNegative() {
		return a.Cancel(o, "short selling not allowed", at), fmt.Errorf("%w: short sell %s", ErrOrderRejected, o.Symbol)
	}

	realized := decimal.Zero
	switch {
	case oldQty.IsZero():
		pos.AvgCost = price

	case sameSide(oldQty, quantity):
		pos.AvgCost = weightedAvg(pos.AvgCost, oldQty.Abs(), price, quantity.Abs())

	default:
		closed := decimal.Min(quantity.Abs(), oldQty.Abs())
		realized = price.Sub(pos.AvgCost).Mul(closed)
		if oldQty.IsNegative() {
			realized = realized.Neg()
		}
		switch {
		case newQty.IsZero():
			pos.AvgCost = decimal.Zero
		case !sameSide(oldQty, newQty):
			// flipped through zero: the remainder opens at the fill price
			pos.AvgCost = price
		}
	}

	a.positions[o.Symbol] = pos
	pos.Quantity = newQty
	pos.LastPrice = price
	pos.RealizedPnL = pos.RealizedPnL.Add(realized)
	a.cash = newCash
	a.totalFees = a.totalFees.Add(fee)

	rec := types.NewFilledRecord(o, price, fee, realized, at)
	a.log = append(a.log, rec)
	return rec, nil
}

// Cancel logs o as cancelled without touching cash or positions.
func (a *Account) Cancel(o types.Order, reason string, at time.Time) types.OrderRecord {
	rec := types.NewCancelledRecord(o, reason, at)
	a.log = append(a.log, rec)
	return rec
}

// Snapshot records the current NAV at t.
func (a *Account) Snapshot(t time.Time) types.NAVSnapshot {
	s := types.NAVSnapshot{Time: t, Cash: a.cash, NAV: a.NetAssetValue()}
	a.snapshots = append(a.snapshots, s)
	return s
}

// Log returns the order log in chronological order.
func (a *Account) Log() []types.OrderRecord {
	out := make([]types.OrderRecord, len(a.log))
	copy(out, a.log)
	return out
}

func (a *Account) Snapshots() []types.NAVSnapshot {
	out := make([]types.NAVSnapshot, len(a.snapshots))
	copy(out, a.snapshots)
	return out
}

// View is the read-only copy handed to strategies.
func (a *Account) View(t time.Time) types.AccountView {
	view := types.AccountView{
		Cash:      a.cash,
		NAV:       a.NetAssetValue(),
		Positions: make(map[string]types.PositionSnapshot, len(a.positions)),
		Time:      t,
	}
	for sym, pos := range a.positions {
		view.Positions[sym] = types.PositionSnapshot{
			Symbol:        pos.Symbol,
			Quantity:      pos.Quantity,
			AvgEntryPrice: pos.AvgCost,
			LastPrice:     pos.LastPrice,
			RealizedPnL:   pos.RealizedPnL,
		}
	}
	return view
}

// Symbols lists symbols with a position entry, sorted.
func (a *Account) Symbols() []string {
	out := make([]string, 0, len(a.positions))
	for s := range a.positions {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// PriceSource supplies the current price of a symbol.
type PriceSource interface {
	Price(symbol string) (decimal.Decimal, bool)
}

// PriceMap is a static PriceSource.
type PriceMap map[string]decimal.Decimal

func (m PriceMap) Price(symbol string) (decimal.Decimal, bool) {
	p, ok := m[symbol]
	return p, ok
}

func sameSide(a, b decimal.Decimal) bool {
	return (a.IsPositive() && b.IsPositive()) || (a.IsNegative() && b.IsNegative())
}

func weightedAvg(existingAvgPrice, existingQty, newPrice, newQty decimal.Decimal) decimal.Decimal {
	if existingQty.IsZero() {
		return newPrice
	}
	return existingAvgPrice.Mul(existingQty).
		Add(newPrice.Mul(newQty)).
		Div(existingQty.Add(newQty))
}
