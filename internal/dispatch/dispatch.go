// Package dispatch implements multiple-dispatch overload resolution
//: choosing, among a Function's registered Overloads,
// the single applicable signature whose parameter types are collectively
// nearest the call's actual argument classes.
package dispatch

import (
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"lumen/internal/class"
	"lumen/internal/errors"
	"lumen/internal/types"
	"lumen/internal/value"
)

// cacheKey identifies one dispatch site's resolved overload by the
// Function identity plus the concrete classes of its actual arguments, so
// repeat calls with the same shapes skip re-scoring every overload.
type cacheKey struct {
	fn *types.Function
	// overloads at resolution time: adding an overload (function
	// redefinition) must not serve resolutions cached against the old set.
	overloads int
	shape     string
}

// Resolver memoizes overload resolution results behind an LRU cache:
// call sites overwhelmingly repeat the same argument shapes, so the scan
// below runs once per (function, shape) pair in the steady state.
type Resolver struct {
	cache  *lru.Cache[cacheKey, *types.Overload]
	hits   uint64
	misses uint64
}

// CacheStats reports lifetime hit/miss counts of the resolution cache,
// surfaced by internal/runtime as Prometheus counters.
func (r *Resolver) CacheStats() (hits, misses uint64) { return r.hits, r.misses }

func NewResolver(size int) *Resolver {
	c, err := lru.New[cacheKey, *types.Overload](size)
	if err != nil {
		panic(err) // size <= 0, a programming error at construction time
	}
	return &Resolver{cache: c}
}

// Resolve picks the unique minimum-cost overload of fn applicable to args,
// where cost is the sum of each argument's class distance
// to the overload's declared parameter class (0 = exact match); an
// overload is applicable only if every argument's class inherits from (or
// equals) the corresponding parameter class. Ties at the minimum cost are
// an ambiguity error rather than an arbitrary pick.
func (r *Resolver) Resolve(line int, fn *types.Function, args []value.Value) (*types.Overload, error) {
	key := cacheKey{fn: fn, overloads: len(fn.Overloads), shape: shapeOf(args)}
	if cached, ok := r.cache.Get(key); ok {
		r.hits++
		return cached, nil
	}
	r.misses++

	type scored struct {
		ov   *types.Overload
		cost int
	}
	var candidates []scored

	for _, ov := range fn.Overloads {
		if ov.Arity >= 0 && ov.Arity != len(args) {
			continue
		}
		cost, ok := score(ov, args)
		if !ok {
			continue
		}
		candidates = append(candidates, scored{ov, cost})
	}

	if len(candidates) == 0 {
		return nil, errors.New(errors.TypeError, line, "no overload of %s applies to argument types (%s)", fn.Name, shapeOf(args))
	}

	best := candidates[0]
	ambiguous := false
	for _, c := range candidates[1:] {
		switch {
		case c.cost < best.cost:
			best = c
			ambiguous = false
		case c.cost == best.cost:
			ambiguous = true
		}
	}
	if ambiguous {
		return nil, errors.New(errors.TypeError, line, "ambiguous call to %s for argument types (%s)", fn.Name, shapeOf(args))
	}

	r.cache.Add(key, best.ov)
	return best.ov, nil
}

// score returns the total type distance of args against ov's declared
// parameter classes, and whether ov is applicable at all (every argument's
// class must inherit from its parameter class; an untyped parameter slot
// always matches at distance 0).
func score(ov *types.Overload, args []value.Value) (int, bool) {
	total := 0
	for i, a := range args {
		want := paramClass(ov, i)
		if want == nil {
			continue
		}
		if value.Resolve(a).IsNull() {
			continue // null is assignable to any parameter, at distance 0
		}
		got := value.ClassOf(a)
		d := got.DistanceTo(want)
		if d < 0 {
			return 0, false
		}
		total += d
	}
	return total, true
}

func paramClass(ov *types.Overload, i int) *class.Class {
	if i < 0 || i >= len(ov.ParamClasses) {
		return nil
	}
	return ov.ParamClasses[i]
}

func shapeOf(args []value.Value) string {
	var sb strings.Builder
	for i, a := range args {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(value.ClassOf(a).Name)
	}
	return sb.String()
}

// CheckReferenceConsistency verifies that every overload of fn agrees on
// which parameter positions are by-reference: for every pair of overloads,
// ref flags must match at every position below min(arity, other arity) --
// ref-ness belongs to the Function, not to a single overload, and the
// interpreter aliases caller slots from the union of all overloads' flags
// before dispatch has picked one. Called once at definition time, not on
// every dispatch.
func CheckReferenceConsistency(fn *types.Function) error {
	// seen marks positions some earlier overload covers; flags records the
	// ref-ness it established there. Checking each overload against the
	// running maps compares every pair over their common prefix.
	var seen, flags uint64
	for _, ov := range fn.Overloads {
		arity := ov.Arity
		if arity < 0 {
			continue // variadic natives declare no positional signature
		}
		if arity > 64 {
			arity = 64
		}
		for i := 0; i < arity; i++ {
			bit := uint64(1) << uint(i)
			ref := ov.ParamBoundByRef(i)
			if seen&bit == 0 {
				seen |= bit
				if ref {
					flags |= bit
				}
				continue
			}
			if (flags&bit != 0) != ref {
				return fmt.Errorf("function %s: overloads disagree on ref-ness of parameter %d", fn.Name, i+1)
			}
		}
	}
	return nil
}
