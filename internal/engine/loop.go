package engine

import (
	"container/heap"
	"time"

	"simtrader/internal/cache"
)

// Step is one distinct simulated time.
type Step struct {
	Index int64
	Time  time.Time
	// Advanced lists the symbols that produced a bar at Time, in feed order.
	Advanced []string
}

// HasAdvanced reports whether symbol produced a bar at this step.
func (s Step) HasAdvanced(symbol string) bool {
	for _, a := range s.Advanced {
		if a == symbol {
			return true
		}
	}
	return false
}

type cursor struct {
	inst  *Instrument
	order int
}

// cursorHeap orders instrument heads by timestamp, ties by feed order.
type cursorHeap []cursor

func (h cursorHeap) Len() int { return len(h) }
func (h cursorHeap) Less(i, j int) bool {
	ti, _ := h[i].inst.peek()
	tj, _ := h[j].inst.peek()
	if ti.Equal(tj) {
		return h[i].order < h[j].order
	}
	return ti.Before(tj)
}
func (h cursorHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *cursorHeap) Push(x any)   { *h = append(*h, x.(cursor)) }
func (h *cursorHeap) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	*h = old[:n-1]
	return c
}

// merger is the k-way merge over instrument streams. The next simulated
// time is the smallest head timestamp; every stream at that time advances.
// Streams join when their data starts and drop out once exhausted.
type merger struct {
	heap  cursorHeap
	clock *cache.Clock
	now   time.Time
}

func newMerger(instruments []*Instrument, clock *cache.Clock) *merger {
	m := &merger{clock: clock}
	for i, inst := range instruments {
		if _, ok := inst.peek(); ok {
			m.heap = append(m.heap, cursor{inst: inst, order: i})
		}
	}
	heap.Init(&m.heap)
	return m
}

func (m *merger) next() (Step, bool) {
	if len(m.heap) == 0 {
		return Step{}, false
	}
	t, _ := m.heap[0].inst.peek()
	step := Step{Index: m.clock.Advance(), Time: t}
	m.now = t

	var advanced []cursor
	for len(m.heap) > 0 {
		head, _ := m.heap[0].inst.peek()
		if !head.Equal(t) {
			break
		}
		c := heap.Pop(&m.heap).(cursor)
		c.inst.advance()
		advanced = append(advanced, c)
	}
	// report in feed order
	for i := 1; i < len(advanced); i++ {
		for j := i; j > 0 && advanced[j].order < advanced[j-1].order; j-- {
			advanced[j], advanced[j-1] = advanced[j-1], advanced[j]
		}
	}
	for _, c := range advanced {
		step.Advanced = append(step.Advanced, c.inst.Symbol())
		if _, ok := c.inst.peek(); ok {
			heap.Push(&m.heap, c)
		}
	}
	return step, true
}

// remaining is the number of bars left across all streams.
func (m *merger) remaining() int {
	n := 0
	for _, c := range m.heap {
		n += c.inst.Remaining()
	}
	return n
}
