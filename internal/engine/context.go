package engine

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"simtrader/internal/cache"
	"simtrader/internal/series"
	"simtrader/types"
)

// Context is the per-run state handed to strategy logic: the run's cache,
// its instruments, the account and the step sequence. Nothing in it is
// shared with other runs except the read-only bar slices.
type Context struct {
	ctx         context.Context
	cache       *cache.Cache
	account     *Account
	instruments []*Instrument
	bySymbol    map[string]*Instrument
	orders      *orderQueue
	merger      *merger
	cfg         AccountConfig
	current     Step
	steps       int64
	err         error
	onStep      func(Step)
}

func newContext(ctx context.Context, c *cache.Cache, cfg AccountConfig, feeds []FeedConfig, bars map[string][]types.Bar) *Context {
	rc := &Context{
		ctx:      ctx,
		cache:    c,
		account:  NewAccount(cfg),
		bySymbol: make(map[string]*Instrument, len(feeds)),
		cfg:      cfg,
	}
	rc.orders = newOrderQueue(rc.Now, func(symbol string) bool {
		_, ok := rc.bySymbol[symbol]
		return ok
	})
	for _, f := range feeds {
		inst := newInstrument(f.Symbol, bars[f.Symbol], c.Clock(), rc.orders)
		rc.instruments = append(rc.instruments, inst)
		rc.bySymbol[f.Symbol] = inst
	}
	rc.merger = newMerger(rc.instruments, c.Clock())
	return rc
}

func (c *Context) Run() uuid.UUID {
	return c.cache.Run()
}

func (c *Context) Cache() *cache.Cache {
	return c.cache
}

// Now is the current simulated time, zero before the first step.
func (c *Context) Now() time.Time {
	return c.current.Time
}

func (c *Context) Step() Step {
	return c.current
}

// Instrument returns the instrument for symbol.
func (c *Context) Instrument(symbol string) (*Instrument, error) {
	inst, ok := c.bySymbol[symbol]
	if !ok {
		return nil, fmt.Errorf("%s: %w", symbol, ErrUnknownInstrument)
	}
	return inst, nil
}

// Instruments returns all instruments in feed order.
func (c *Context) Instruments() []*Instrument {
	out := make([]*Instrument, len(c.instruments))
	copy(out, c.instruments)
	return out
}

// Ready reports whether every named instrument has produced a bar. With no
// arguments it checks all instruments.
func (c *Context) Ready(symbols ...string) bool {
	if len(symbols) == 0 {
		for _, inst := range c.instruments {
			if !inst.Ready() {
				return false
			}
		}
		return true
	}
	for _, s := range symbols {
		inst, ok := c.bySymbol[s]
		if !ok || !inst.Ready() {
			return false
		}
	}
	return true
}

func (c *Context) Account() types.AccountView {
	return c.account.View(c.Now())
}

func (c *Context) Position(symbol string) Position {
	return c.account.Position(symbol)
}

func (c *Context) Cash() decimal.Decimal {
	return c.account.Cash()
}

func (c *Context) NAV() decimal.Decimal {
	return c.account.NetAssetValue()
}

// Trade submits an order for delta units of symbol, filled at the end of
// the current step.
func (c *Context) Trade(symbol string, delta decimal.Decimal, reason string) (types.Order, error) {
	return c.orders.submit(symbol, delta, reason)
}

// Pending lists orders submitted during the current step.
func (c *Context) Pending() []types.Order {
	return c.orders.Pending()
}

// Err is the error that stopped the step sequence early, if any.
func (c *Context) Err() error {
	return c.err
}

// Steps yields each distinct simulated time once. When the loop body
// returns, the orders submitted during the step are settled and the
// account is marked and snapshotted before the next step is produced.
func (c *Context) Steps() iter.Seq[Step] {
	return func(yield func(Step) bool) {
		for {
			if err := c.ctx.Err(); err != nil {
				c.err = err
				return
			}
			step, ok := c.merger.next()
			if !ok {
				return
			}
			c.current = step
			c.steps++
			more := yield(step)
			c.settle()
			if c.onStep != nil {
				c.onStep(step)
			}
			if !more {
				return
			}
		}
	}
}

// settle fills every pending order at its instrument's last close.
func (c *Context) settle() {
	at := c.current.Time
	for _, o := range c.orders.drain() {
		inst := c.bySymbol[o.Symbol]
		if c.cfg.RequireFreshBar && !inst.Fresh() {
			c.cancel(o, fmt.Errorf("%s: no bar at %s: %w", o.Symbol, at, ErrDataUnavailable))
			continue
		}
		px, err := inst.Price()
		if err != nil {
			c.cancel(o, err)
			continue
		}
		if _, err := c.account.Apply(o, px, at); err != nil {
			log.Debug().Err(err).Str("run", c.Run().String()).Int64("order", o.ID).Msg("order cancelled")
		}
	}
	c.account.Mark(c.prices())
	c.account.Snapshot(at)
}

func (c *Context) cancel(o types.Order, cause error) {
	c.account.Cancel(o, cause.Error(), c.current.Time)
	log.Debug().Err(cause).Str("run", c.Run().String()).Int64("order", o.ID).Msg("order cancelled")
}

func (c *Context) prices() PriceMap {
	m := make(PriceMap, len(c.instruments))
	for _, inst := range c.instruments {
		if px, err := inst.Price(); err == nil {
			m[inst.Symbol()] = px
		}
	}
	return m
}

// recoverable reports whether err is a per-step read error the loop
// tolerates.
func recoverable(err error) bool {
	return errors.Is(err, series.ErrInsufficientHistory) || errors.Is(err, ErrDataUnavailable)
}
