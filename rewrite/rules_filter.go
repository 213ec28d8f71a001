package rewrite

import (
	"github.com/cubegraph/cubeplan/logicalplan"
	"github.com/cubegraph/cubeplan/planlang"
)

// FilterRules returns the filter rules: removal of an always-true filter,
// splitting of an AND predicate into stacked filters, and push-down of a
// predicate that references no columns into the left input of a cross
// join. Filters are not pushed past projections, aggregates or other
// joins.
func FilterRules() RuleSet {
	pred := planlang.PVar("pred")
	input := planlang.PVar("input")
	left, right := planlang.PVar("left"), planlang.PVar("right")

	return RuleSet{
		{
			// Filter(true, input) = input
			Name: "filter-true-elim",
			LHS:  planlang.P(planlang.KindFilter, planlang.PLeaf(planlang.KindLiteral, planlang.LiteralAttrs{Value: true, Type: planlang.DataTypeTag{Kind: uint8(logicalplan.DTBool)}}), input),
			RHS:  input,
		},
		{
			// Filter(a AND b, input) -> Filter(a, Filter(b, input)): split a
			// conjunctive predicate so each conjunct can independently push
			// further down (through a join that only one side needs, say).
			Name: "filter-and-split",
			LHS:  planlang.P(planlang.KindFilter, planlang.P(planlang.KindBinaryExpr, left, right), input),
			Condition: func(g *planlang.EGraph, s planlang.Subst, matched planlang.ID) (planlang.Subst, bool, error) {
				filterNode := firstNode(g, matched, planlang.KindFilter)
				if filterNode == nil {
					return s, false, nil
				}
				andNode := firstNode(g, filterNode.Children[0], planlang.KindBinaryExpr)
				if andNode == nil || andNode.Data.(string) != "AND" {
					return s, false, nil
				}
				return s, true, nil
			},
			Apply: func(g *planlang.EGraph, s planlang.Subst, matched planlang.ID) (planlang.ID, error) {
				inner, err := g.Add(planlang.Node{Kind: planlang.KindFilter, Children: []planlang.ID{s["right"], s["input"]}})
				if err != nil {
					return 0, err
				}
				return g.Add(planlang.Node{Kind: planlang.KindFilter, Children: []planlang.ID{s["left"], inner}})
			},
		},
		{
			// Filter(pred, CrossJoin(l, r)) -> CrossJoin with the filter
			// pushed onto the left input, when nothing in pred references
			// a right-side column. This is a conservative, always-safe
			// direction: it never needs to inspect r's schema.
			Name: "filter-push-into-crossjoin-left",
			LHS:  planlang.P(planlang.KindFilter, pred, planlang.P(planlang.KindCrossJoin, left, right)),
			Condition: func(g *planlang.EGraph, s planlang.Subst, matched planlang.ID) (planlang.Subst, bool, error) {
				// Without a schema split between l and r on hand here, the
				// only always-safe direction is pushing a predicate that
				// references no columns at all (already-folded constants);
				// a predicate that references any column is not pushed.
				facts, _ := g.Data(s["pred"]).(planlang.ColumnFacts)
				if len(facts.ReferencedColumns) != 0 {
					return s, false, nil
				}
				return s, true, nil
			},
			Apply: func(g *planlang.EGraph, s planlang.Subst, matched planlang.ID) (planlang.ID, error) {
				newLeft, err := g.Add(planlang.Node{Kind: planlang.KindFilter, Children: []planlang.ID{s["pred"], s["left"]}})
				if err != nil {
					return 0, err
				}
				return g.Add(planlang.Node{Kind: planlang.KindCrossJoin, Children: []planlang.ID{newLeft, s["right"]}})
			},
		},
	}
}
