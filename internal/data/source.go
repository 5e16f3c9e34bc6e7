// Package data defines the bar provider contract and the sources the engine
// can load from.
package data

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"simtrader/types"
)

var (
	ErrNoBars        = errors.New("no bars in range")
	ErrUnordered     = errors.New("bars are not strictly increasing")
	ErrUnknownSymbol = errors.New("unknown symbol")
)

// Source produces an ordered, deduplicated bar stream for a symbol in the
// half-open range [start, end). Zero times leave that side unbounded.
// Implementations must return identical bars for repeated requests.
type Source interface {
	Bars(ctx context.Context, symbol string, interval types.Interval, start, end time.Time) ([]types.Bar, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, symbol string, interval types.Interval, start, end time.Time) ([]types.Bar, error)

func (f SourceFunc) Bars(ctx context.Context, symbol string, interval types.Interval, start, end time.Time) ([]types.Bar, error) {
	return f(ctx, symbol, interval, start, end)
}

// Validate checks that bars belong to one symbol and are strictly increasing.
func Validate(symbol string, bars []types.Bar) error {
	for i, b := range bars {
		if b.Symbol != symbol {
			return fmt.Errorf("bar %d has symbol %q, want %q", i, b.Symbol, symbol)
		}
		if i > 0 && !b.Timestamp.After(bars[i-1].Timestamp) {
			return fmt.Errorf("%s at %s after %s: %w", symbol, b.Timestamp, bars[i-1].Timestamp, ErrUnordered)
		}
	}
	return nil
}

// Normalize sorts bars by time and drops later duplicates of a timestamp.
// The input slice is not modified.
func Normalize(bars []types.Bar) []types.Bar {
	out := make([]types.Bar, len(bars))
	copy(out, bars)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	n := 0
	for i := range out {
		if n > 0 && out[i].Timestamp.Equal(out[n-1].Timestamp) {
			continue
		}
		out[n] = out[i]
		n++
	}
	return out[:n]
}

// InRange reports whether t lies in [start, end) with zero bounds open.
func InRange(t, start, end time.Time) bool {
	if !start.IsZero() && t.Before(start) {
		return false
	}
	if !end.IsZero() && !t.Before(end) {
		return false
	}
	return true
}

func filter(bars []types.Bar, start, end time.Time) []types.Bar {
	var out []types.Bar
	for _, b := range bars {
		if InRange(b.Timestamp, start, end) {
			out = append(out, b)
		}
	}
	return out
}
