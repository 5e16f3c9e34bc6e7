package engine

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"simtrader/internal/cache"
	"simtrader/internal/series"
	"simtrader/types"
)

// Instrument exposes one symbol's bar stream as series. The bars slice is
// shared read-only data; the series and cursor belong to a single run.
type Instrument struct {
	symbol string
	bars   []types.Bar
	cursor int
	clock  *cache.Clock
	// step at which the instrument last advanced
	advancedAt int64
	orders     *orderQueue

	Open   *series.Series[decimal.Decimal]
	High   *series.Series[decimal.Decimal]
	Low    *series.Series[decimal.Decimal]
	Close  *series.Series[decimal.Decimal]
	Volume *series.Series[decimal.Decimal]
	Bars   *series.Series[types.Bar]
}

func newInstrument(symbol string, bars []types.Bar, clock *cache.Clock, orders *orderQueue) *Instrument {
	n := len(bars)
	return &Instrument{
		symbol:     symbol,
		bars:       bars,
		clock:      clock,
		advancedAt: -1,
		orders:     orders,
		Open:       series.New[decimal.Decimal](symbol+".open", n),
		High:       series.New[decimal.Decimal](symbol+".high", n),
		Low:        series.New[decimal.Decimal](symbol+".low", n),
		Close:      series.New[decimal.Decimal](symbol+".close", n),
		Volume:     series.New[decimal.Decimal](symbol+".volume", n),
		Bars:       series.New[types.Bar](symbol+".bars", n),
	}
}

func (i *Instrument) Symbol() string {
	return i.symbol
}

// Ready reports whether the instrument has produced at least one bar.
func (i *Instrument) Ready() bool {
	return i.Bars.Len() > 0
}

// Fresh reports whether the instrument advanced at the current step.
func (i *Instrument) Fresh() bool {
	return i.advancedAt == i.clock.Step()
}

// Bar returns the most recent bar.
func (i *Instrument) Bar() (types.Bar, error) {
	if !i.Ready() {
		return types.Bar{}, fmt.Errorf("%s: %w", i.symbol, ErrDataUnavailable)
	}
	return i.Bars.Latest()
}

// Price is the last close.
func (i *Instrument) Price() (decimal.Decimal, error) {
	b, err := i.Bar()
	if err != nil {
		return decimal.Zero, err
	}
	return b.Close, nil
}

// Trade submits an order for delta units. The position changes only when
// the order fills at the end of the step.
func (i *Instrument) Trade(delta decimal.Decimal, reason string) (types.Order, error) {
	return i.orders.submit(i.symbol, delta, reason)
}

// Remaining is the number of bars not yet replayed.
func (i *Instrument) Remaining() int {
	return len(i.bars) - i.cursor
}

func (i *Instrument) peek() (time.Time, bool) {
	if i.cursor >= len(i.bars) {
		return time.Time{}, false
	}
	return i.bars[i.cursor].Timestamp, true
}

func (i *Instrument) advance() {
	b := i.bars[i.cursor]
	i.cursor++
	i.Open.Append(b.Open)
	i.High.Append(b.High)
	i.Low.Append(b.Low)
	i.Close.Append(b.Close)
	i.Volume.Append(b.Volume)
	i.Bars.Append(b)
	i.advancedAt = i.clock.Step()
}
