package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"simtrader/types"
)

// Splice joins several providers into one continuous series. Providers are
// given in priority order: where two providers have a bar at the same time,
// the earlier provider wins. Providers that know nothing about the symbol
// are skipped.
type Splice struct {
	providers []Source
}

func NewSplice(providers ...Source) *Splice {
	return &Splice{providers: providers}
}

func (s *Splice) Bars(ctx context.Context, symbol string, interval types.Interval, start, end time.Time) ([]types.Bar, error) {
	var all []types.Bar
	for i, p := range s.providers {
		bars, err := p.Bars(ctx, symbol, interval, start, end)
		switch {
		case errors.Is(err, ErrNoBars), errors.Is(err, ErrUnknownSymbol):
			continue
		case err != nil:
			return nil, fmt.Errorf("provider %d: %w", i, err)
		}
		all = append(all, bars...)
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("%s: %w", symbol, ErrNoBars)
	}
	return Normalize(all), nil
}
