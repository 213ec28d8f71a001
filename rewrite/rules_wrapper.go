package rewrite

import "github.com/cubegraph/cubeplan/planlang"

// WrapperRules returns SQL-pushdown wrapping rules: rewrite a subplan
// sitting directly over a CubeScan into a CubeScanWrapper/WrappedSelect
// pair, marking it eligible to be generated as pushed-down SQL against
// the cube's own SQL surface rather than executed node-by-node locally
// (spec.md §4.3 "SQL-pushdown wrapping").
func WrapperRules() RuleSet {
	scanMembers, scanFilter, scanOrder := planlang.PVar("members"), planlang.PVar("filter"), planlang.PVar("order")
	cubeScan := planlang.P(planlang.KindCubeScan, scanMembers, scanFilter, scanOrder)

	wrapOver := func(name string, outer *planlang.Pattern, rebuild func(g *planlang.EGraph, s planlang.Subst) (planlang.ID, error)) Rule {
		return Rule{
			Name: name,
			LHS:  outer,
			Apply: func(g *planlang.EGraph, s planlang.Subst, matched planlang.ID) (planlang.ID, error) {
				selectBody, err := rebuild(g, s)
				if err != nil {
					return 0, err
				}
				wrapped, err := g.Add(planlang.Node{Kind: planlang.KindWrappedSelect, Children: []planlang.ID{selectBody}, Data: planlang.WrappedSelectAttrs{}})
				if err != nil {
					return 0, err
				}
				return g.Add(planlang.Node{Kind: planlang.KindCubeScanWrapper, Children: []planlang.ID{wrapped}})
			},
		}
	}

	pred := planlang.PVar("pred")
	exprs := planlang.PVar("exprs")
	sorts := planlang.PVar("sorts")

	return RuleSet{
		wrapOver("wrap-filter-over-cubescan", planlang.P(planlang.KindFilter, pred, cubeScan), func(g *planlang.EGraph, s planlang.Subst) (planlang.ID, error) {
			scan, err := g.Add(planlang.Node{Kind: planlang.KindCubeScan, Children: []planlang.ID{s["members"], s["filter"], s["order"]}})
			if err != nil {
				return 0, err
			}
			return g.Add(planlang.Node{Kind: planlang.KindFilter, Children: []planlang.ID{s["pred"], scan}})
		}),
		wrapOver("wrap-projection-over-cubescan", planlang.P(planlang.KindProjection, exprs, cubeScan), func(g *planlang.EGraph, s planlang.Subst) (planlang.ID, error) {
			scan, err := g.Add(planlang.Node{Kind: planlang.KindCubeScan, Children: []planlang.ID{s["members"], s["filter"], s["order"]}})
			if err != nil {
				return 0, err
			}
			return g.Add(planlang.Node{Kind: planlang.KindProjection, Children: []planlang.ID{s["exprs"], scan}})
		}),
		wrapOver("wrap-sort-over-cubescan", planlang.P(planlang.KindSort, sorts, cubeScan), func(g *planlang.EGraph, s planlang.Subst) (planlang.ID, error) {
			scan, err := g.Add(planlang.Node{Kind: planlang.KindCubeScan, Children: []planlang.ID{s["members"], s["filter"], s["order"]}})
			if err != nil {
				return 0, err
			}
			return g.Add(planlang.Node{Kind: planlang.KindSort, Children: []planlang.ID{s["sorts"], scan}})
		}),
	}
}
