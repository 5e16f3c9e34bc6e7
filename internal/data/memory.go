package data

import (
	"context"
	"fmt"
	"time"

	"simtrader/types"
)

// Memory serves bars held in memory. Bars are normalized on construction.
type Memory struct {
	bars map[string][]types.Bar
}

func NewMemory(bars ...types.Bar) *Memory {
	grouped := make(map[string][]types.Bar)
	for _, b := range bars {
		grouped[b.Symbol] = append(grouped[b.Symbol], b)
	}
	for sym, bs := range grouped {
		grouped[sym] = Normalize(bs)
	}
	return &Memory{bars: grouped}
}

func (m *Memory) Bars(ctx context.Context, symbol string, _ types.Interval, start, end time.Time) ([]types.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	all, ok := m.bars[symbol]
	if !ok {
		return nil, fmt.Errorf("%s: %w", symbol, ErrUnknownSymbol)
	}
	out := filter(all, start, end)
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: %w", symbol, ErrNoBars)
	}
	return out, nil
}

// Symbols lists the symbols the source knows.
func (m *Memory) Symbols() []string {
	out := make([]string, 0, len(m.bars))
	for s := range m.bars {
		out = append(out, s)
	}
	return out
}
