// Package series holds the backward-looking sequences every price stream and
// indicator is built on. Index 0 is the value at the current simulated time,
// index n is the value n steps into the past.
package series

import (
	"errors"
	"fmt"
)

// ErrInsufficientHistory is returned when a read reaches further back than
// the recorded depth. It is expected during warm-up.
var ErrInsufficientHistory = errors.New("insufficient history")

// Reader is the read side shared by raw series and indicators.
type Reader[T any] interface {
	// Get returns the value back steps before the current one.
	Get(back int) (T, error)
	// Len is the number of recorded values.
	Len() int
}

// Series is an append-only sequence. It is not safe for concurrent use;
// only the owning run mutates it.
type Series[T any] struct {
	name   string
	values []T
}

func New[T any](name string, capacity int) *Series[T] {
	return &Series[T]{
		name:   name,
		values: make([]T, 0, capacity),
	}
}

func (s *Series[T]) Name() string {
	return s.name
}

// Append makes v the newest value. Every existing index shifts back by one.
func (s *Series[T]) Append(v T) {
	s.values = append(s.values, v)
}

func (s *Series[T]) Len() int {
	return len(s.values)
}

func (s *Series[T]) Get(back int) (T, error) {
	var zero T
	if back < 0 {
		return zero, fmt.Errorf("%s: negative index %d", s.name, back)
	}
	if back >= len(s.values) {
		return zero, historyErr(s.name, back, len(s.values))
	}
	return s.values[len(s.values)-1-back], nil
}

// Latest is Get(0).
func (s *Series[T]) Latest() (T, error) {
	return s.Get(0)
}

// Window returns the n most recent values, oldest first.
func (s *Series[T]) Window(n int) ([]T, error) {
	if n <= 0 {
		return nil, nil
	}
	if n > len(s.values) {
		return nil, historyErr(s.name, n-1, len(s.values))
	}
	out := make([]T, n)
	copy(out, s.values[len(s.values)-n:])
	return out, nil
}

func historyErr(name string, back, depth int) error {
	return fmt.Errorf("%s: index %d with depth %d: %w", name, back, depth, ErrInsufficientHistory)
}
