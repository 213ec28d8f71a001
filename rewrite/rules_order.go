package rewrite

import "github.com/cubegraph/cubeplan/planlang"

// OrderRules returns sort simplification rules.
func OrderRules() RuleSet {
	sortList := planlang.PVar("sorts")
	input := planlang.PVar("input")

	return RuleSet{
		{
			// Sort(s, Sort(s, input)) = Sort(s, input): re-sorting by an
			// identical key list is a no-op (the pattern variable reuse
			// forces both sort lists to be the same e-class).
			Name: "idempotent-sort-elim",
			LHS:  planlang.P(planlang.KindSort, sortList, planlang.P(planlang.KindSort, sortList, input)),
			RHS:  planlang.P(planlang.KindSort, sortList, input),
		},
		{
			// Distinct(Sort(s, input)) = Distinct(input): Distinct makes no
			// ordering guarantee, so a sort directly beneath it is dead work.
			Name: "drop-sort-under-distinct",
			LHS:  planlang.P(planlang.KindDistinct, planlang.P(planlang.KindSort, sortList, input)),
			RHS:  planlang.P(planlang.KindDistinct, input),
		},
	}
}
