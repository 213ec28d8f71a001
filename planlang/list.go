package planlang

// List-valued children are encoded as right-leaning cons-cells so list
// structure participates in e-graph unification: (Cons head tail) chains
// terminated by a single shared Nil class. This file is the only place
// that knows about that encoding; every rule and converter goes through
// AddList/Flatten so an alternative encoding could be swapped in later
// without touching callers (spec.md §4.1, "List semantics").

// AddList inserts elems as a cons-cell chain and returns the id of its
// head (Nil if elems is empty).
func (g *EGraph) AddList(elems []ID) ID {
	tail, err := g.Add(Node{Kind: KindListNil})
	if err != nil {
		panic(err) // KindListNil is always well-formed
	}
	for i := len(elems) - 1; i >= 0; i-- {
		next, err := g.Add(Node{Kind: KindListCons, Children: []ID{elems[i], tail}})
		if err != nil {
			panic(err)
		}
		tail = next
	}
	return tail
}

// Flatten walks the cons-cell chain rooted at id and returns the ordered
// element ids. It follows the representative e-node in each class: if a
// class containing a list spine has been merged with other list nodes of
// different literal structure but equal flattened sequence, Flatten
// always prefers a ListCons/ListNil e-node if one is present in the
// class, so pattern matching sees a consistent spine regardless of which
// equivalent encoding was inserted first.
func (g *EGraph) Flatten(id ID) ([]ID, error) {
	id = g.Find(id)
	var out []ID
	for {
		node, ok := g.listNodeOf(id)
		if !ok {
			return nil, &UnsupportedError{Msg: "planlang: class is not a list spine"}
		}
		if node.Kind == KindListNil {
			return out, nil
		}
		out = append(out, node.Children[0])
		id = g.Find(node.Children[1])
	}
}

// listNodeOf returns a ListNil/ListCons e-node belonging to id's class,
// if any is present.
func (g *EGraph) listNodeOf(id ID) (Node, bool) {
	for _, n := range g.classes[g.Find(id)].nodes {
		if n.Kind == KindListNil || n.Kind == KindListCons {
			return n, true
		}
	}
	return Node{}, false
}

// IsList reports whether id's class contains a list-spine e-node.
func (g *EGraph) IsList(id ID) bool {
	_, ok := g.listNodeOf(id)
	return ok
}
