package rewrite

import "github.com/cubegraph/cubeplan/planlang"

// FlattenRules returns structural simplification rules: dropping
// subqueries that add no semantics at the plan-language level and
// merging redundant wildcard projections (spec.md §4.3 "merger of
// redundant projections ... subquery flattening").
func FlattenRules() RuleSet {
	input := planlang.PVar("input")
	exprs := planlang.PVar("exprs")

	return RuleSet{
		{
			// Subquery(input) = input: the plan language has no notion of a
			// name scope boundary (column qualification is resolved by the
			// time a plan reaches the e-graph), so a bare subquery wrapper
			// carries no additional meaning once built.
			Name: "flatten-subquery",
			LHS:  planlang.P(planlang.KindSubquery, input),
			RHS:  input,
		},
		{
			// Projection([Wildcard], input) = input: a full passthrough
			// projection is redundant.
			Name: "drop-wildcard-projection",
			LHS:  planlang.P(planlang.KindProjection, exprs, input),
			Condition: func(g *planlang.EGraph, s planlang.Subst, matched planlang.ID) (planlang.Subst, bool, error) {
				elems, err := g.Flatten(s["exprs"])
				if err != nil || len(elems) != 1 {
					return s, false, nil
				}
				n := firstNode(g, elems[0], planlang.KindWildcard)
				if n == nil {
					return s, false, nil
				}
				if n.Data.(planlang.WildcardAttrs).Qualifier != "" {
					return s, false, nil
				}
				return s, true, nil
			},
			RHS: input,
		},
	}
}
