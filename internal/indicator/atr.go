package indicator

import (
	"github.com/shopspring/decimal"

	"simtrader/internal/cache"
	"simtrader/internal/series"
)

// TrueRange is max(high-low, |high-prevClose|, |low-prevClose|). It needs
// one bar of history.
func TrueRange(c *cache.Cache, high, low, close Input) (*Indicator, error) {
	return register(c, "tr", cache.Params(high.Name(), low.Name(), close.Name()), func(name string, clock series.Clock) *Indicator {
		return series.NewIndicator[decimal.Decimal](name, close, clock, func(back int) (decimal.Decimal, error) {
			h, err := high.Get(back)
			if err != nil {
				return decimal.Zero, err
			}
			l, err := low.Get(back)
			if err != nil {
				return decimal.Zero, err
			}
			prevClose, err := close.Get(back + 1)
			if err != nil {
				return decimal.Zero, err
			}
			return decimal.Max(h.Sub(l), h.Sub(prevClose).Abs(), l.Sub(prevClose).Abs()), nil
		})
	})
}

// ATR is Wilder's average true range: seeded with the mean of the first
// period true ranges, then atr = (prev*(period-1) + tr) / period.
func ATR(c *cache.Cache, high, low, close Input, period int) (*Indicator, error) {
	if err := checkPeriod(period); err != nil {
		return nil, err
	}
	tr, err := TrueRange(c, high, low, close)
	if err != nil {
		return nil, err
	}
	n := decimal.NewFromInt(int64(period))
	weight := decimal.NewFromInt(int64(period - 1))

	return register(c, "atr", cache.Params(high.Name(), low.Name(), close.Name(), period), func(name string, clock series.Clock) *Indicator {
		var self *Indicator
		self = series.NewIndicator[decimal.Decimal](name, close, clock, func(back int) (decimal.Decimal, error) {
			// the first true range lives at absolute index 1
			abs := absIndex(close, back)
			switch {
			case abs < period:
				_, err := close.Get(back + period)
				return decimal.Zero, err
			case abs == period:
				total, err := window(tr, back, period, sum)
				if err != nil {
					return decimal.Zero, err
				}
				return total.Div(n), nil
			}
			cur, err := tr.Get(back)
			if err != nil {
				return decimal.Zero, err
			}
			prev, err := self.Get(back + 1)
			if err != nil {
				return decimal.Zero, err
			}
			return prev.Mul(weight).Add(cur).Div(n), nil
		})
		return self
	})
}
