package rewrite

import "github.com/cubegraph/cubeplan/planlang"

// SplitRules returns the aggregate split family: wrapping a CubeScan that
// feeds an Aggregate with Inner/OuterAggregateSplitReplacer markers so a
// later pass (and the cost model, which counts *Replacer kinds) can
// recognize the boundary between the part of the aggregation the cube
// itself can compute and the part that must finish client-side (spec.md
// §4.3 "split of aggregates above and below the cube boundary").
func SplitRules() RuleSet {
	group, agg := planlang.PVar("group"), planlang.PVar("agg")

	return RuleSet{
		{
			Name: "split-aggregate-over-cubescan",
			LHS:  planlang.P(planlang.KindAggregate, group, agg, planlang.P(planlang.KindCubeScan, planlang.PVar("members"), planlang.PVar("filter"), planlang.PVar("order"))),
			Condition: func(g *planlang.EGraph, s planlang.Subst, matched planlang.ID) (planlang.Subst, bool, error) {
				aggNode := firstNode(g, matched, planlang.KindAggregate)
				if aggNode == nil {
					return s, false, nil
				}
				scanID := aggNode.Children[2]
				// Don't re-split a CubeScan already sitting under a replacer.
				if len(parentsOfKind(g, scanID, planlang.KindInnerAggregateSplitReplacer)) > 0 {
					return s, false, nil
				}
				augmented := make(planlang.Subst, len(s)+1)
				for k, v := range s {
					augmented[k] = v
				}
				augmented["scan"] = scanID
				return augmented, true, nil
			},
			Apply: func(g *planlang.EGraph, s planlang.Subst, matched planlang.ID) (planlang.ID, error) {
				inner, err := g.Add(planlang.Node{Kind: planlang.KindInnerAggregateSplitReplacer, Children: []planlang.ID{s["scan"]}})
				if err != nil {
					return 0, err
				}
				innerAgg, err := g.Add(planlang.Node{Kind: planlang.KindAggregate, Children: []planlang.ID{s["group"], s["agg"], inner}})
				if err != nil {
					return 0, err
				}
				return g.Add(planlang.Node{Kind: planlang.KindOuterAggregateSplitReplacer, Children: []planlang.ID{innerAgg}})
			},
		},
	}
}

// parentsOfKind is a best-effort scan for whether id already has a parent
// e-node of the given kind, used to keep split rules from firing
// repeatedly on their own output. It walks every class's nodes because
// EGraph does not expose parent edges directly to package rewrite.
func parentsOfKind(g *planlang.EGraph, id planlang.ID, kind planlang.Kind) []planlang.ID {
	var out []planlang.ID
	id = g.Find(id)
	g.ForEachMatch(planlang.P(kind, planlang.PVar("x")), func(s planlang.Subst, class planlang.ID) bool {
		if g.Find(s["x"]) == id {
			out = append(out, class)
		}
		return true
	})
	return out
}
