package series

import "fmt"

// ComputeFunc produces the indicator value back steps before now. It pulls
// its inputs from upstream readers using indices relative to the same now,
// so a value at step n never sees data from a later step.
type ComputeFunc[T any] func(back int) (T, error)

// Clock reports the current simulated step of the owning run.
type Clock interface {
	Step() int64
}

type memo[T any] struct {
	value T
	err   error
	step  int64
}

// Indicator is a derived series computed on first access and memoized.
// Its timeline is the base series: it gains one value whenever the base
// gains one. The value at a past index is computed at most once per run;
// the head value at most once per simulated step.
type Indicator[T any] struct {
	name    string
	base    interface{ Len() int }
	clock   Clock
	compute ComputeFunc[T]
	values  map[int]memo[T]
	calls   int
}

func NewIndicator[T any](name string, base interface{ Len() int }, clock Clock, compute ComputeFunc[T]) *Indicator[T] {
	return &Indicator[T]{
		name:    name,
		base:    base,
		clock:   clock,
		compute: compute,
		values:  make(map[int]memo[T]),
	}
}

func (in *Indicator[T]) Name() string {
	return in.name
}

func (in *Indicator[T]) Len() int {
	return in.base.Len()
}

func (in *Indicator[T]) Get(back int) (T, error) {
	var zero T
	if back < 0 {
		return zero, fmt.Errorf("%s: negative index %d", in.name, back)
	}
	depth := in.base.Len()
	if back >= depth {
		return zero, historyErr(in.name, back, depth)
	}
	abs := depth - 1 - back
	step := in.step()
	if m, ok := in.values[abs]; ok && (back > 0 || m.step == step) {
		return m.value, m.err
	}
	in.calls++
	v, err := in.compute(back)
	if err != nil {
		err = fmt.Errorf("%s: %w", in.name, err)
	}
	in.values[abs] = memo[T]{value: v, err: err, step: step}
	return v, err
}

// Computations is the number of times the compute function ran.
func (in *Indicator[T]) Computations() int {
	return in.calls
}

func (in *Indicator[T]) step() int64 {
	if in.clock == nil {
		return 0
	}
	return in.clock.Step()
}
