// Package donchian is a channel breakout strategy: enter long when a bar's
// high breaks the highest high of the preceding entry bars, exit when its low
// breaks the lowest low of the preceding exit bars or the close falls below
// an ATR stop.
package donchian

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"simtrader/internal/engine"
	"simtrader/internal/indicator"
	"simtrader/internal/series"
	"simtrader/types"
)

const Name = "donchian"

func init() {
	engine.Register(Name, New)
}

type channel struct {
	inst  *engine.Instrument
	upper *indicator.Indicator
	lower *indicator.Indicator
	atr   *indicator.Indicator
}

type Strategy struct {
	entry     int
	exit      int
	atrPeriod int
	atrMult   decimal.Decimal

	allocator *LongOnlyAllocator
	channels  map[string]channel
	stopLoss  map[string]decimal.Decimal
}

// New reads entry, exit, atr (periods), atr_mult and position_percent.
func New(params map[string]decimal.Decimal) (engine.Strategy, error) {
	entry, err := period(params, "entry", 20)
	if err != nil {
		return nil, err
	}
	exit, err := period(params, "exit", 10)
	if err != nil {
		return nil, err
	}
	atrPeriod, err := period(params, "atr", 20)
	if err != nil {
		return nil, err
	}
	atrMult := engine.ParamOr(params, "atr_mult", decimal.NewFromInt(2))
	if atrMult.IsNegative() {
		return nil, fmt.Errorf("%w: atr_mult %s is negative", engine.ErrInvalidConfig, atrMult)
	}
	pct := engine.ParamOr(params, "position_percent", decimal.RequireFromString("0.25"))
	if !pct.IsPositive() || pct.GreaterThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("%w: position_percent %s not in (0, 1]", engine.ErrInvalidConfig, pct)
	}

	return &Strategy{
		entry:     entry,
		exit:      exit,
		atrPeriod: atrPeriod,
		atrMult:   atrMult,
		allocator: NewLongOnlyAllocator(pct),
	}, nil
}

func period(params map[string]decimal.Decimal, name string, def int64) (int, error) {
	v := engine.ParamOr(params, name, decimal.NewFromInt(def))
	if !v.IsInteger() || !v.IsPositive() {
		return 0, fmt.Errorf("%w: %s must be a positive integer, got %s", engine.ErrInvalidConfig, name, v)
	}
	return int(v.IntPart()), nil
}

func (s *Strategy) Init(c *engine.Context) error {
	s.channels = make(map[string]channel)
	s.stopLoss = make(map[string]decimal.Decimal)

	for _, inst := range c.Instruments() {
		highest, err := indicator.Highest(c.Cache(), inst.High, s.entry)
		if err != nil {
			return err
		}
		lowest, err := indicator.Lowest(c.Cache(), inst.Low, s.exit)
		if err != nil {
			return err
		}
		// channels exclude the bar being tested
		upper, err := indicator.Offset(c.Cache(), highest, 1)
		if err != nil {
			return err
		}
		lower, err := indicator.Offset(c.Cache(), lowest, 1)
		if err != nil {
			return err
		}
		atr, err := indicator.ATR(c.Cache(), inst.High, inst.Low, inst.Close, s.atrPeriod)
		if err != nil {
			return err
		}
		s.channels[inst.Symbol()] = channel{inst: inst, upper: upper, lower: lower, atr: atr}
	}
	return nil
}

func (s *Strategy) OnStep(c *engine.Context, step engine.Step) error {
	view := c.Account()
	signals := make(map[string]types.Signal)

	for _, symbol := range step.Advanced {
		ch, ok := s.channels[symbol]
		if !ok {
			continue
		}
		sig, ok, err := s.evaluate(ch, view.Positions[symbol].Quantity.IsPositive(), step)
		if errors.Is(err, series.ErrInsufficientHistory) {
			continue
		}
		if err != nil {
			return err
		}
		if ok {
			signals[symbol] = sig
		}
	}

	for _, a := range s.allocator.Allocate(signals, view) {
		if _, err := c.Trade(a.Symbol, a.Quantity, a.Reason); err != nil {
			return err
		}
		log.Debug().
			Str("symbol", a.Symbol).
			Str("quantity", a.Quantity.String()).
			Str("reason", a.Reason).
			Time("time", step.Time).
			Msg("donchian order")
	}
	return nil
}

func (s *Strategy) evaluate(ch channel, long bool, step engine.Step) (types.Signal, bool, error) {
	bar, err := ch.inst.Bar()
	if err != nil {
		return types.Signal{}, false, err
	}
	symbol := ch.inst.Symbol()

	if long {
		lower, err := ch.lower.Get(0)
		if err != nil {
			return types.Signal{}, false, err
		}
		if bar.Low.LessThan(lower) {
			delete(s.stopLoss, symbol)
			return types.NewSignal(symbol, types.SideTypeSell, bar.Close,
				fmt.Sprintf("break of %d bar low %s", s.exit, lower), step.Time), true, nil
		}
		if stop, ok := s.stopLoss[symbol]; ok && bar.Close.LessThan(stop) {
			delete(s.stopLoss, symbol)
			return types.NewSignal(symbol, types.SideTypeSell, bar.Close,
				fmt.Sprintf("ATR(%d) stop %s", s.atrPeriod, stop), step.Time), true, nil
		}
		return types.Signal{}, false, nil
	}

	upper, err := ch.upper.Get(0)
	if err != nil {
		return types.Signal{}, false, err
	}
	if !bar.High.GreaterThan(upper) {
		return types.Signal{}, false, nil
	}
	if atr, err := ch.atr.Get(0); err == nil {
		s.stopLoss[symbol] = bar.Close.Sub(atr.Mul(s.atrMult))
	} else if !errors.Is(err, series.ErrInsufficientHistory) {
		return types.Signal{}, false, err
	}
	return types.NewSignal(symbol, types.SideTypeBuy, bar.Close,
		fmt.Sprintf("break of %d bar high %s", s.entry, upper), step.Time), true, nil
}
