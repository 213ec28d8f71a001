// Package rewrite implements the equality-saturation rule engine: rules
// are patterns over the plan language, applied to a planlang.EGraph until
// a fixpoint or a budget is exhausted (spec.md §4.3).
package rewrite

import "github.com/cubegraph/cubeplan/planlang"

// Rule is a pattern/applier/conditional-transform triple. Exactly one of
// RHS or Apply should be set: RHS covers the common case of a pure
// substitution rewrite, Apply covers rules that need to allocate fresh
// e-classes or otherwise build structure the pattern language can't
// express directly (spec.md §4.3).
type Rule struct {
	Name string
	LHS  *planlang.Pattern

	// RHS is instantiated against the match's substitution and unioned
	// with the matched root. Mutually exclusive with Apply.
	RHS *planlang.Pattern

	// Apply builds the replacement class directly when RHS can't express
	// it (e.g. a split rule introducing a fresh intermediate class).
	// Mutually exclusive with RHS.
	Apply func(g *planlang.EGraph, subst planlang.Subst, matched planlang.ID) (planlang.ID, error)

	// Condition runs after a structural match and before the rule fires.
	// Returning ok=false skips this match without error; returning a
	// non-nil error aborts only this match (spec.md §4.3 Failure), and
	// the caller is expected to record it and continue with other
	// matches. Condition may augment subst with derived bindings that
	// RHS or Apply then consumes.
	Condition func(g *planlang.EGraph, subst planlang.Subst, matched planlang.ID) (planlang.Subst, bool, error)
}

// fireOnce finds every current match of r and applies it, returning the
// number of successful unions and the conditional-transform errors
// encountered (one per aborted match, never fatal to the caller).
func (r Rule) fireOnce(g *planlang.EGraph) (fired int, errs []error) {
	type pending struct {
		subst   planlang.Subst
		matched planlang.ID
	}
	var matches []pending
	g.ForEachMatch(r.LHS, func(s planlang.Subst, matched planlang.ID) bool {
		matches = append(matches, pending{subst: s, matched: matched})
		return true
	})

	for _, m := range matches {
		subst, matched := m.subst, m.matched
		if r.Condition != nil {
			var ok bool
			var err error
			subst, ok, err = r.Condition(g, subst, matched)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if !ok {
				continue
			}
		}

		var result planlang.ID
		var err error
		switch {
		case r.Apply != nil:
			result, err = r.Apply(g, subst, matched)
		case r.RHS != nil:
			result, err = g.Instantiate(r.RHS, subst)
		default:
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if g.Find(matched) == g.Find(result) {
			continue
		}
		g.Union(matched, result)
		fired++
	}
	return fired, errs
}
