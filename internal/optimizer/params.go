// Package optimizer runs one backtest per point of a parameter grid on a
// bounded worker pool and ranks the results by fitness.
package optimizer

import (
	"fmt"

	"github.com/shopspring/decimal"

	"simtrader/internal/cache"
)

// Range declares the values of one parameter: Min, Min+Step, ... up to and
// including Max.
type Range struct {
	Name string
	Min  decimal.Decimal
	Max  decimal.Decimal
	Step decimal.Decimal
}

func NewRange(name string, min, max, step decimal.Decimal) Range {
	return Range{Name: name, Min: min, Max: max, Step: step}
}

// Values enumerates the range.
func (r Range) Values() ([]decimal.Decimal, error) {
	if r.Name == "" {
		return nil, fmt.Errorf("%w: range without a name", ErrConfiguration)
	}
	if !r.Step.IsPositive() {
		return nil, fmt.Errorf("%w: %s step %s must be positive", ErrConfiguration, r.Name, r.Step)
	}
	if r.Min.GreaterThan(r.Max) {
		return nil, fmt.Errorf("%w: %s min %s above max %s", ErrConfiguration, r.Name, r.Min, r.Max)
	}
	var out []decimal.Decimal
	for v := r.Min; v.LessThanOrEqual(r.Max); v = v.Add(r.Step) {
		out = append(out, v)
	}
	return out, nil
}

// ParameterSet maps parameter names to values. Its identity is Key.
type ParameterSet map[string]decimal.Decimal

// Key renders the set in sorted name order.
func (p ParameterSet) Key() string {
	return cache.ParamsMap(map[string]decimal.Decimal(p))
}

func (p ParameterSet) String() string {
	return p.Key()
}

// Merge returns a copy of p with other's values layered on top.
func (p ParameterSet) Merge(other map[string]decimal.Decimal) ParameterSet {
	out := make(ParameterSet, len(p)+len(other))
	for k, v := range p {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Grid is the Cartesian product of ranges. The first range varies slowest.
// For P ranges with R_i values each it returns exactly the product of R_i
// sets.
func Grid(ranges ...Range) ([]ParameterSet, error) {
	if len(ranges) == 0 {
		return nil, fmt.Errorf("%w: no parameter ranges", ErrConfiguration)
	}
	seen := make(map[string]bool, len(ranges))
	axes := make([][]decimal.Decimal, len(ranges))
	for i, r := range ranges {
		if seen[r.Name] {
			return nil, fmt.Errorf("%w: duplicate parameter %s", ErrConfiguration, r.Name)
		}
		seen[r.Name] = true
		vals, err := r.Values()
		if err != nil {
			return nil, err
		}
		axes[i] = vals
	}

	grid := []ParameterSet{{}}
	for i, vals := range axes {
		next := make([]ParameterSet, 0, len(grid)*len(vals))
		for _, base := range grid {
			for _, v := range vals {
				next = append(next, base.Merge(map[string]decimal.Decimal{ranges[i].Name: v}))
			}
		}
		grid = next
	}
	if len(grid) == 0 {
		return nil, fmt.Errorf("%w: empty parameter grid", ErrConfiguration)
	}
	return grid, nil
}
