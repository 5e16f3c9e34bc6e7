package engine

import (
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

// Strategy is the behavioral entry point of an algorithm. The engine calls
// Init once, then OnStep once per distinct simulated time.
type Strategy interface {
	Init(c *Context) error
	OnStep(c *Context, step Step) error
}

// Runner is implemented by strategies that drive the step sequence
// themselves through Context.Steps. Run is invoked once instead of OnStep.
type Runner interface {
	Run(c *Context) error
}

// Scorer lets a strategy override the optimizer's fitness value.
type Scorer interface {
	Fitness(report *Report) (decimal.Decimal, error)
}

// Constructor builds a strategy from named parameters.
type Constructor func(params map[string]decimal.Decimal) (Strategy, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Constructor)
)

// Register makes a strategy constructor available by name. It panics on a
// duplicate name, like database/sql drivers.
func Register(name string, ctor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if ctor == nil {
		panic("engine: Register constructor is nil")
	}
	if _, dup := registry[name]; dup {
		panic("engine: Register called twice for strategy " + name)
	}
	registry[name] = ctor
}

// NewStrategy constructs the strategy registered under name.
func NewStrategy(name string, params map[string]decimal.Decimal) (Strategy, error) {
	registryMu.RLock()
	ctor, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownStrategy)
	}
	return ctor(params)
}

// Strategies lists registered names, sorted.
func Strategies() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Param reads a required parameter.
func Param(params map[string]decimal.Decimal, name string) (decimal.Decimal, error) {
	v, ok := params[name]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: missing parameter %q", ErrInvalidConfig, name)
	}
	return v, nil
}

// ParamOr reads an optional parameter.
func ParamOr(params map[string]decimal.Decimal, name string, def decimal.Decimal) decimal.Decimal {
	if v, ok := params[name]; ok {
		return v
	}
	return def
}
