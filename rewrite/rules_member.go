package rewrite

import "github.com/cubegraph/cubeplan/planlang"

// MemberRules returns boolean-algebra and alias simplification rules:
// the "simplification of constants, boolean algebra" category of
// spec.md §4.3.
func MemberRules() RuleSet {
	notNot := planlang.PVar("x")
	aliasInner := planlang.PVar("e")

	return RuleSet{
		{
			// NOT (NOT x) = x
			Name: "not-not-elim",
			LHS:  planlang.P(planlang.KindNot, planlang.P(planlang.KindNot, notNot)),
			RHS:  notNot,
		},
		{
			// Alias(Alias(e, _), name) = Alias(e, name): the inner alias name
			// is unobservable once shadowed by the outer one.
			Name: "alias-of-alias",
			LHS:  planlang.P(planlang.KindAlias, planlang.P(planlang.KindAlias, aliasInner)),
			Apply: func(g *planlang.EGraph, s planlang.Subst, matched planlang.ID) (planlang.ID, error) {
				outer := firstNode(g, matched, planlang.KindAlias)
				if outer == nil {
					return matched, nil
				}
				name := outer.Data.(planlang.AliasAttrs).Name
				inner, err := g.Instantiate(aliasInner, s)
				if err != nil {
					return 0, err
				}
				return g.Add(planlang.Node{Kind: planlang.KindAlias, Children: []planlang.ID{inner}, Data: planlang.AliasAttrs{Name: name}})
			},
		},
	}
}

// firstNode returns the first e-node of the given kind in id's class, or
// nil if none is present (used by Apply functions that need to read a
// matched node's leaf Data, which patterns alone can't bind).
func firstNode(g *planlang.EGraph, id planlang.ID, kind planlang.Kind) *planlang.Node {
	for _, n := range g.Nodes(id) {
		if n.Kind == kind {
			return &n
		}
	}
	return nil
}
