package series

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ step int64 }

func (c *fakeClock) Step() int64 { return c.step }

func TestSeries_GetIndexesBackwards(t *testing.T) {
	s := New[int]("close", 0)
	for i := 1; i <= 5; i++ {
		s.Append(i)
	}

	tests := []struct {
		back int
		want int
	}{
		{0, 5},
		{1, 4},
		{4, 1},
	}
	for _, tt := range tests {
		got, err := s.Get(tt.back)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "back=%d", tt.back)
	}
}

func TestSeries_InsufficientHistory(t *testing.T) {
	s := New[float64]("close", 5)
	for i := 0; i < 5; i++ {
		s.Append(float64(i + 1))
	}

	got, err := s.Get(10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientHistory))
	assert.Zero(t, got)

	_, err = s.Get(5)
	assert.ErrorIs(t, err, ErrInsufficientHistory)

	_, err = New[int]("empty", 0).Latest()
	assert.ErrorIs(t, err, ErrInsufficientHistory)
}

func TestSeries_NegativeIndex(t *testing.T) {
	s := New[int]("x", 0)
	s.Append(1)
	_, err := s.Get(-1)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrInsufficientHistory))
}

func TestSeries_AppendShiftsIndices(t *testing.T) {
	s := New[string]("sym", 0)
	s.Append("a")
	v, _ := s.Get(0)
	assert.Equal(t, "a", v)

	s.Append("b")
	v, _ = s.Get(0)
	assert.Equal(t, "b", v)
	v, _ = s.Get(1)
	assert.Equal(t, "a", v)
}

func TestSeries_Window(t *testing.T) {
	s := New[int]("x", 0)
	for i := 1; i <= 4; i++ {
		s.Append(i)
	}
	w, err := s.Window(3)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 4}, w)

	w[0] = 100
	v, _ := s.Get(2)
	assert.Equal(t, 2, v, "window must be a copy")

	_, err = s.Window(5)
	assert.ErrorIs(t, err, ErrInsufficientHistory)
}

func TestIndicator_ComputesOncePerStep(t *testing.T) {
	clock := &fakeClock{}
	base := New[int]("close", 0)
	in := NewIndicator[int]("double", base, clock, func(back int) (int, error) {
		v, err := base.Get(back)
		return v * 2, err
	})

	for step := 1; step <= 3; step++ {
		clock.step = int64(step)
		base.Append(step)
		for read := 0; read < 5; read++ {
			v, err := in.Get(0)
			require.NoError(t, err)
			assert.Equal(t, step*2, v)
		}
	}
	assert.Equal(t, 3, in.Computations())

	// Past values are reused from the memo, not recomputed.
	v, err := in.Get(2)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	assert.Equal(t, 3, in.Computations())
}

func TestIndicator_HeadRecomputedWhenStepChangesWithoutAdvance(t *testing.T) {
	clock := &fakeClock{step: 1}
	base := New[int]("close", 0)
	base.Append(1)
	in := NewIndicator[int]("id", base, clock, base.Get)

	_, err := in.Get(0)
	require.NoError(t, err)
	_, err = in.Get(0)
	require.NoError(t, err)
	assert.Equal(t, 1, in.Computations())

	clock.step = 2
	_, err = in.Get(0)
	require.NoError(t, err)
	assert.Equal(t, 2, in.Computations())
}

func TestIndicator_WarmupSurfacesInsufficientHistory(t *testing.T) {
	base := New[int]("close", 0)
	base.Append(1)
	in := NewIndicator[int]("lag3", base, nil, func(back int) (int, error) {
		return base.Get(back + 3)
	})

	_, err := in.Get(0)
	assert.ErrorIs(t, err, ErrInsufficientHistory)

	_, err = in.Get(1)
	assert.ErrorIs(t, err, ErrInsufficientHistory)
}
