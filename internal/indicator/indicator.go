// Package indicator provides technical indicators as memoized series.
// Every constructor goes through the run cache, so calling SMA(c, close, 20)
// on each step returns the same instance and its memoized values.
package indicator

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"simtrader/internal/cache"
	"simtrader/internal/series"
)

var ErrInvalidPeriod = errors.New("period must be positive")

// Input is a named decimal series: an instrument field or another indicator.
type Input interface {
	series.Reader[decimal.Decimal]
	Name() string
}

// Indicator is the concrete type every constructor returns.
type Indicator = series.Indicator[decimal.Decimal]

type builder func(name string, clock series.Clock) *Indicator

func register(c *cache.Cache, kind string, params string, b builder) (*Indicator, error) {
	name := fmt.Sprintf("%s(%s)", kind, params)
	if c == nil {
		return b(name, nil), nil
	}
	return cache.Lookup(c, c.Key(kind, params), func() *Indicator {
		return b(name, c.Clock())
	})
}

func checkPeriod(period int) error {
	if period <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPeriod, period)
	}
	return nil
}

// window sums or folds period values of in starting back steps ago.
func window(in Input, back, period int, fold func(acc, v decimal.Decimal) decimal.Decimal) (decimal.Decimal, error) {
	acc, err := in.Get(back)
	if err != nil {
		return decimal.Zero, err
	}
	for k := 1; k < period; k++ {
		v, err := in.Get(back + k)
		if err != nil {
			return decimal.Zero, err
		}
		acc = fold(acc, v)
	}
	return acc, nil
}

func sum(acc, v decimal.Decimal) decimal.Decimal { return acc.Add(v) }

func absIndex(in interface{ Len() int }, back int) int {
	return in.Len() - 1 - back
}
