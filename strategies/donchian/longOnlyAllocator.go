package donchian

import (
	"slices"

	"github.com/shopspring/decimal"

	"simtrader/types"
)

// Allocation is a signed quantity change for one symbol.
type Allocation struct {
	Symbol   string
	Quantity decimal.Decimal
	Reason   string
}

// LongOnlyAllocator turns signals into orders that never open a short.
// Each new long uses positionPercent of the cash still unallocated in the
// current step.
type LongOnlyAllocator struct {
	positionPercent decimal.Decimal
}

func NewLongOnlyAllocator(positionPercent decimal.Decimal) *LongOnlyAllocator {
	return &LongOnlyAllocator{
		positionPercent: positionPercent,
	}
}

// Allocate sizes signals against view. Symbols are processed in sorted order
// so the same inputs always produce the same orders.
func (a *LongOnlyAllocator) Allocate(signals map[string]types.Signal, view types.AccountView) []Allocation {
	if len(signals) == 0 {
		return nil
	}

	symbols := make([]string, 0, len(signals))
	for symbol := range signals {
		symbols = append(symbols, symbol)
	}
	slices.Sort(symbols)

	cash := view.Cash
	var out []Allocation

	for _, symbol := range symbols {
		sig := signals[symbol]
		qty := view.Positions[symbol].Quantity

		switch {
		// flat: only buys open a position
		case qty.IsZero():
			if sig.Side != types.SideTypeBuy {
				continue
			}
			size := quantityForPrice(sig.Price, cash.Mul(a.positionPercent))
			if size.IsZero() {
				continue
			}
			cash = cash.Sub(size.Mul(sig.Price))
			out = append(out, Allocation{Symbol: symbol, Quantity: size, Reason: "open long: " + sig.Reason})

		// long: no pyramiding, sells close the whole position
		case qty.IsPositive():
			if sig.Side == types.SideTypeSell {
				out = append(out, Allocation{Symbol: symbol, Quantity: qty.Neg(), Reason: "close long: " + sig.Reason})
			}

		// short, left over from a shortable account: a buy covers and goes long
		default:
			if sig.Side != types.SideTypeBuy {
				continue
			}
			cover := qty.Abs()
			cash = cash.Sub(cover.Mul(sig.Price))
			size := quantityForPrice(sig.Price, cash.Mul(a.positionPercent))
			cash = cash.Sub(size.Mul(sig.Price))
			out = append(out, Allocation{Symbol: symbol, Quantity: cover.Add(size), Reason: "cover short: " + sig.Reason})
		}
	}
	return out
}

func quantityForPrice(price, capital decimal.Decimal) decimal.Decimal {
	if !price.IsPositive() || !capital.IsPositive() {
		return decimal.Zero
	}
	return capital.Div(price).Floor()
}
