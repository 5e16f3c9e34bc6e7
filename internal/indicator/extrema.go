package indicator

import (
	"github.com/shopspring/decimal"

	"simtrader/internal/cache"
	"simtrader/internal/series"
)

// Highest is the maximum of in over period values, the upper Donchian band.
func Highest(c *cache.Cache, in Input, period int) (*Indicator, error) {
	return extreme(c, "highest", in, period, func(acc, v decimal.Decimal) decimal.Decimal {
		return decimal.Max(acc, v)
	})
}

// Lowest is the minimum of in over period values, the lower Donchian band.
func Lowest(c *cache.Cache, in Input, period int) (*Indicator, error) {
	return extreme(c, "lowest", in, period, func(acc, v decimal.Decimal) decimal.Decimal {
		return decimal.Min(acc, v)
	})
}

func extreme(c *cache.Cache, kind string, in Input, period int, fold func(acc, v decimal.Decimal) decimal.Decimal) (*Indicator, error) {
	if err := checkPeriod(period); err != nil {
		return nil, err
	}
	return register(c, kind, cache.Params(in.Name(), period), func(name string, clock series.Clock) *Indicator {
		return series.NewIndicator[decimal.Decimal](name, in, clock, func(back int) (decimal.Decimal, error) {
			return window(in, back, period, fold)
		})
	})
}

// Offset shifts in back by n steps: Offset(in, 1).Get(0) == in.Get(1).
// Channel breakouts compare today's bar against the previous n bars.
func Offset(c *cache.Cache, in Input, n int) (*Indicator, error) {
	return register(c, "offset", cache.Params(in.Name(), n), func(name string, clock series.Clock) *Indicator {
		return series.NewIndicator[decimal.Decimal](name, in, clock, func(back int) (decimal.Decimal, error) {
			return in.Get(back + n)
		})
	})
}
