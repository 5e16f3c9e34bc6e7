package data

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"simtrader/types"
)

// Request names one symbol range to load.
type Request struct {
	Symbol   string
	Interval types.Interval
	Start    time.Time
	End      time.Time
}

func (r Request) key() string {
	return fmt.Sprintf("%s|%s|%d|%d", r.Symbol, r.Interval, r.Start.UnixNano(), r.End.UnixNano())
}

// SharedStore is the run-independent scope for raw bars: each range is
// fetched from the underlying source once and handed to every run. Returned
// slices are shared and must be treated as read-only. Safe for concurrent use.
type SharedStore struct {
	src   Source
	group singleflight.Group
	mu    sync.RWMutex
	bars  map[string][]types.Bar
	loads atomic.Int64
}

func NewSharedStore(src Source) *SharedStore {
	return &SharedStore{
		src:  src,
		bars: make(map[string][]types.Bar),
	}
}

func (s *SharedStore) Bars(ctx context.Context, symbol string, interval types.Interval, start, end time.Time) ([]types.Bar, error) {
	req := Request{Symbol: symbol, Interval: interval, Start: start, End: end}
	key := req.key()

	s.mu.RLock()
	bars, ok := s.bars[key]
	s.mu.RUnlock()
	if ok {
		return bars, nil
	}

	// the load is detached from ctx; each caller stops waiting on its own ctx
	loadCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (any, error) {
		s.mu.RLock()
		cached, ok := s.bars[key]
		s.mu.RUnlock()
		if ok {
			return cached, nil
		}
		loaded, err := s.src.Bars(loadCtx, symbol, interval, start, end)
		if err != nil {
			return nil, err
		}
		if err := Validate(symbol, loaded); err != nil {
			return nil, err
		}
		loaded = slices.Clip(loaded)
		s.loads.Add(1)
		s.mu.Lock()
		s.bars[key] = loaded
		s.mu.Unlock()
		log.Debug().Str("symbol", symbol).Int("bars", len(loaded)).Msg("bars loaded into shared store")
		return loaded, nil
	})
	select {
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.([]types.Bar), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Preload fetches every request before parallel work starts.
func (s *SharedStore) Preload(ctx context.Context, reqs ...Request) error {
	for _, r := range reqs {
		if _, err := s.Bars(ctx, r.Symbol, r.Interval, r.Start, r.End); err != nil {
			return fmt.Errorf("preload %s: %w", r.Symbol, err)
		}
	}
	return nil
}

// Loads is the number of times the underlying source was hit.
func (s *SharedStore) Loads() int64 {
	return s.loads.Load()
}
