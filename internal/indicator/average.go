package indicator

import (
	"fmt"

	"github.com/shopspring/decimal"

	"simtrader/internal/cache"
	"simtrader/internal/series"
)

// SMA is the simple moving average of in over period values.
func SMA(c *cache.Cache, in Input, period int) (*Indicator, error) {
	if err := checkPeriod(period); err != nil {
		return nil, err
	}
	n := decimal.NewFromInt(int64(period))
	return register(c, "sma", cache.Params(in.Name(), period), func(name string, clock series.Clock) *Indicator {
		return series.NewIndicator[decimal.Decimal](name, in, clock, func(back int) (decimal.Decimal, error) {
			total, err := window(in, back, period, sum)
			if err != nil {
				return decimal.Zero, err
			}
			return total.Div(n), nil
		})
	})
}

// EMA is the exponential moving average seeded with the SMA of the first
// period values.
func EMA(c *cache.Cache, in Input, period int) (*Indicator, error) {
	if err := checkPeriod(period); err != nil {
		return nil, err
	}
	n := decimal.NewFromInt(int64(period))
	alpha := decimal.NewFromInt(2).Div(decimal.NewFromInt(int64(period + 1)))
	keep := decimal.NewFromInt(1).Sub(alpha)

	return register(c, "ema", cache.Params(in.Name(), period), func(name string, clock series.Clock) *Indicator {
		var self *Indicator
		self = series.NewIndicator[decimal.Decimal](name, in, clock, func(back int) (decimal.Decimal, error) {
			abs := absIndex(in, back)
			switch {
			case abs < period-1:
				_, err := in.Get(back + period - 1)
				return decimal.Zero, err
			case abs == period-1:
				total, err := window(in, back, period, sum)
				if err != nil {
					return decimal.Zero, err
				}
				return total.Div(n), nil
			}
			v, err := in.Get(back)
			if err != nil {
				return decimal.Zero, err
			}
			prev, err := self.Get(back + 1)
			if err != nil {
				return decimal.Zero, fmt.Errorf("previous value: %w", err)
			}
			return v.Mul(alpha).Add(prev.Mul(keep)), nil
		})
		return self
	})
}
