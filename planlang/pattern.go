package planlang

// Pattern is a plan-language term that may contain e-variables. A
// variable pattern (Var != "") matches any e-class and binds it; a
// non-variable pattern additionally matches Kind and, if MatchData is
// set, the leaf Data as well.
type Pattern struct {
	Var       string
	Kind      Kind
	Children  []*Pattern
	Data      interface{}
	MatchData bool
}

// PVar builds a variable pattern.
func PVar(name string) *Pattern { return &Pattern{Var: name} }

// P builds a non-leaf pattern node matching kind with the given children.
func P(kind Kind, children ...*Pattern) *Pattern {
	return &Pattern{Kind: kind, Children: children}
}

// PLeaf builds a leaf pattern matching kind and an exact Data value.
func PLeaf(kind Kind, data interface{}) *Pattern {
	return &Pattern{Kind: kind, MatchData: true, Data: data}
}

// PAny builds a non-variable pattern that matches kind with any leaf
// value (used when the rule only cares that the node is e.g. some
// Literal, not which one).
func PAny(kind Kind) *Pattern {
	return &Pattern{Kind: kind}
}

// Subst binds pattern variable names to e-class ids.
type Subst map[string]ID

func (s Subst) clone() Subst {
	out := make(Subst, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// ForEachMatch yields every (substitution, class id) pair where pattern
// matches some e-node in that class. Iteration order across classes is
// unspecified (spec.md §4.1); fn returning false stops iteration early.
func (g *EGraph) ForEachMatch(pattern *Pattern, fn func(Subst, ID) bool) {
	for id := range g.classes {
		if id != g.Find(id) {
			continue
		}
		matched := false
		g.matchClass(pattern, id, Subst{}, func(s Subst) bool {
			matched = true
			return fn(s, id)
		})
		_ = matched
	}
}

// matchClass tries to match pattern against any e-node in class id,
// invoking cont for every distinct successful substitution.
func (g *EGraph) matchClass(pattern *Pattern, id ID, subst Subst, cont func(Subst) bool) bool {
	id = g.Find(id)

	if pattern.Var != "" {
		if bound, ok := subst[pattern.Var]; ok {
			if bound != id {
				return true // mismatch, keep searching other branches
			}
			return cont(subst)
		}
		next := subst.clone()
		next[pattern.Var] = id
		return cont(next)
	}

	cls := g.classes[id]
	if cls == nil {
		return true
	}
	for _, n := range cls.nodes {
		if n.Kind != pattern.Kind {
			continue
		}
		if pattern.MatchData && n.Data != pattern.Data {
			continue
		}
		if len(n.Children) != len(pattern.Children) {
			continue
		}
		if !g.matchChildren(pattern.Children, n.Children, 0, subst, cont) {
			return false
		}
	}
	return true
}

func (g *EGraph) matchChildren(pats []*Pattern, ids []ID, i int, subst Subst, cont func(Subst) bool) bool {
	if i == len(pats) {
		return cont(subst)
	}
	return g.matchClass(pats[i], ids[i], subst, func(next Subst) bool {
		return g.matchChildren(pats, ids, i+1, next, cont)
	})
}

// Instantiate builds (adding as needed) the e-node tree described by
// pattern using subst for its variables, returning the resulting class
// id. Used by rule appliers to materialize their right-hand side.
func (g *EGraph) Instantiate(pattern *Pattern, subst Subst) (ID, error) {
	if pattern.Var != "" {
		id, ok := subst[pattern.Var]
		if !ok {
			return 0, &ProgrammerError{Msg: "Instantiate: unbound variable " + pattern.Var}
		}
		return id, nil
	}
	children := make([]ID, len(pattern.Children))
	for i, c := range pattern.Children {
		id, err := g.Instantiate(c, subst)
		if err != nil {
			return 0, err
		}
		children[i] = id
	}
	data := pattern.Data
	if !pattern.MatchData {
		data = nil
	}
	return g.Add(Node{Kind: pattern.Kind, Children: children, Data: data})
}
