package engine

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"simtrader/types"
)

// orderQueue collects the orders strategy logic submits during one step.
type orderQueue struct {
	nextID  int64
	now     func() time.Time
	known   func(symbol string) bool
	pending []types.Order
}

func newOrderQueue(now func() time.Time, known func(string) bool) *orderQueue {
	return &orderQueue{now: now, known: known}
}

func (q *orderQueue) submit(symbol string, delta decimal.Decimal, reason string) (types.Order, error) {
	if !q.known(symbol) {
		return types.Order{}, fmt.Errorf("%s: %w", symbol, ErrUnknownInstrument)
	}
	if delta.IsZero() {
		return types.Order{}, fmt.Errorf("%s: zero quantity: %w", symbol, ErrOrderRejected)
	}
	q.nextID++
	o := types.NewOrder(q.nextID, symbol, delta, reason, q.now())
	q.pending = append(q.pending, o)
	return o, nil
}

// drain hands over the pending orders in submission order.
func (q *orderQueue) drain() []types.Order {
	out := q.pending
	q.pending = nil
	return out
}

func (q *orderQueue) Pending() []types.Order {
	out := make([]types.Order, len(q.pending))
	copy(out, q.pending)
	return out
}
