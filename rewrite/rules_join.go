package rewrite

import "github.com/cubegraph/cubeplan/planlang"

// JoinRules returns join reordering and commutativity rules (spec.md
// §4.3 "join reordering and commutativity").
func JoinRules() RuleSet {
	left, right, keys := planlang.PVar("left"), planlang.PVar("right"), planlang.PVar("keys")
	constraint := planlang.PVar("constraint")

	return RuleSet{
		{
			// Inner joins commute: swap sides and flip each equality key's
			// operands to match. Only inner joins are safe to commute this
			// way without also renegotiating null-producing semantics.
			Name: "commute-inner-join",
			LHS:  planlang.P(planlang.KindJoin, left, right, keys, constraint),
			Condition: func(g *planlang.EGraph, s planlang.Subst, matched planlang.ID) (planlang.Subst, bool, error) {
				n := firstNode(g, matched, planlang.KindJoin)
				if n == nil || n.Data.(planlang.JoinAttrs).Kind != "inner" {
					return s, false, nil
				}
				return s, true, nil
			},
			Apply: func(g *planlang.EGraph, s planlang.Subst, matched planlang.ID) (planlang.ID, error) {
				keyExprs, err := g.Flatten(s["keys"])
				if err != nil {
					return 0, err
				}
				swapped := make([]planlang.ID, len(keyExprs))
				for i, k := range keyExprs {
					be := firstNode(g, k, planlang.KindBinaryExpr)
					if be == nil || len(be.Children) != 2 {
						return 0, &planlang.UnsupportedError{Msg: "join key is not a binary equality"}
					}
					id, err := g.Add(planlang.Node{Kind: planlang.KindBinaryExpr, Children: []planlang.ID{be.Children[1], be.Children[0]}, Data: be.Data})
					if err != nil {
						return 0, err
					}
					swapped[i] = id
				}
				swappedKeys := g.AddList(swapped)
				return g.Add(planlang.Node{Kind: planlang.KindJoin, Children: []planlang.ID{s["right"], s["left"], swappedKeys, s["constraint"]}, Data: planlang.JoinAttrs{Kind: "inner"}})
			},
		},
		{
			// CrossJoin(CrossJoin(a, b), c) = CrossJoin(a, CrossJoin(b, c)):
			// re-associate to open up join-order search space.
			Name: "reassociate-crossjoin",
			LHS:  planlang.P(planlang.KindCrossJoin, planlang.P(planlang.KindCrossJoin, planlang.PVar("a"), planlang.PVar("b")), planlang.PVar("c")),
			Apply: func(g *planlang.EGraph, s planlang.Subst, matched planlang.ID) (planlang.ID, error) {
				inner, err := g.Add(planlang.Node{Kind: planlang.KindCrossJoin, Children: []planlang.ID{s["b"], s["c"]}})
				if err != nil {
					return 0, err
				}
				return g.Add(planlang.Node{Kind: planlang.KindCrossJoin, Children: []planlang.ID{s["a"], inner}})
			},
		},
	}
}
