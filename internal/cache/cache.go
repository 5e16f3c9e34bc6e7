// Package cache is the run-scoped computation cache. Keys carry the owning
// run so concurrent optimizer runs never share entries.
package cache

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Key identifies a computation: owning run, computation name, parameters.
type Key struct {
	Run    uuid.UUID
	Name   string
	Params string
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s(%s)", k.Run, k.Name, k.Params)
}

// Params renders parameters in a stable form for use in a Key.
func Params(kv ...any) string {
	parts := make([]string, len(kv))
	for i, v := range kv {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, ",")
}

// ParamsMap renders a map in sorted key order.
func ParamsMap[V any](m map[string]V) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, m[k])
	}
	return strings.Join(parts, ",")
}

// Clock is the simulated step counter of one run. The loop advances it once
// per distinct simulated time.
type Clock struct {
	step int64
}

func (c *Clock) Step() int64 {
	return c.step
}

func (c *Clock) Advance() int64 {
	c.step++
	return c.step
}

type entry struct {
	value any
	err   error
	step  int64
}

// Cache holds the entries of one run. It is not safe for concurrent use:
// a run is strictly sequential.
type Cache struct {
	run     uuid.UUID
	clock   *Clock
	memos   map[Key]entry
	objects map[Key]any
	hits    int
	misses  int
}

func New(run uuid.UUID) *Cache {
	return &Cache{
		run:     run,
		clock:   &Clock{},
		memos:   make(map[Key]entry),
		objects: make(map[Key]any),
	}
}

func (c *Cache) Run() uuid.UUID {
	return c.run
}

func (c *Cache) Clock() *Clock {
	return c.clock
}

// Key builds a key owned by this cache's run.
func (c *Cache) Key(name string, params string) Key {
	return Key{Run: c.run, Name: name, Params: params}
}

// Reset drops every entry and rewinds the clock for a new run.
func (c *Cache) Reset(run uuid.UUID) {
	c.run = run
	c.clock.step = 0
	clear(c.memos)
	clear(c.objects)
	c.hits, c.misses = 0, 0
}

// Len is the number of live entries.
func (c *Cache) Len() int {
	return len(c.memos) + len(c.objects)
}

// Stats returns hit and miss counts since the last reset.
func (c *Cache) Stats() (hits, misses int) {
	return c.hits, c.misses
}

// Memo runs fn at most once per key per simulated step and returns the
// memoized result for repeated reads within the step.
func Memo[V any](c *Cache, key Key, fn func() (V, error)) (V, error) {
	if key.Run != c.run {
		var zero V
		return zero, fmt.Errorf("key %s: %w", key, ErrForeignRun)
	}
	now := c.clock.Step()
	if e, ok := c.memos[key]; ok && e.step == now {
		c.hits++
		v, _ := e.value.(V)
		return v, e.err
	}
	c.misses++
	v, err := fn()
	c.memos[key] = entry{value: v, err: err, step: now}
	return v, err
}

// Lookup returns the object stored under key, building it once per run.
// Indicators are registered this way so that constructing the same
// indicator on every step yields one memoized instance.
func Lookup[V any](c *Cache, key Key, build func() V) (V, error) {
	if key.Run != c.run {
		var zero V
		return zero, fmt.Errorf("key %s: %w", key, ErrForeignRun)
	}
	if o, ok := c.objects[key]; ok {
		v, ok := o.(V)
		if !ok {
			return v, fmt.Errorf("key %s holds %T: %w", key, o, ErrTypeMismatch)
		}
		c.hits++
		return v, nil
	}
	c.misses++
	v := build()
	c.objects[key] = v
	return v, nil
}
