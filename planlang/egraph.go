package planlang

// parentEdge records that node (with its children canonical at the time
// it was last processed) lives in the class identified by id. Stored on
// each child's class so union can find which parent nodes need
// recanonicalizing.
type parentEdge struct {
	node Node
	id   ID
}

type eclass struct {
	nodes   []Node
	parents []parentEdge
	data    interface{}
}

// EGraph is a map from e-class id to set of e-nodes, plus a union-find
// over ids, per spec.md §4.1.
type EGraph struct {
	analysis Analysis

	unionFind []ID // unionFind[id-1] == parent of id; unionFind[id-1]==id means id is canonical
	classes   map[ID]*eclass
	memo      map[key]ID
	pending   []ID

	nodeCount int
}

// NewEGraph creates an empty e-graph driven by the given analysis. Pass
// NoopAnalysis{} for a graph that only needs structural equality.
func NewEGraph(analysis Analysis) *EGraph {
	if analysis == nil {
		analysis = NoopAnalysis{}
	}
	return &EGraph{
		analysis:  analysis,
		unionFind: make([]ID, 0, 256),
		classes:   make(map[ID]*eclass),
		memo:      make(map[key]ID),
	}
}

// NodeCount returns the total number of e-nodes across all classes,
// checked against the rewrite engine's node-limit budget.
func (g *EGraph) NodeCount() int { return g.nodeCount }

// ClassCount returns the number of distinct canonical classes.
func (g *EGraph) ClassCount() int { return len(g.classes) }

func (g *EGraph) newID() ID {
	id := ID(len(g.unionFind) + 1)
	g.unionFind = append(g.unionFind, id)
	return id
}

// Find returns the canonical representative of id's class. Idempotent
// and stable across congruence closure once Rebuild has run (spec.md
// §4.1 invariant i).
func (g *EGraph) Find(id ID) ID {
	for g.unionFind[id-1] != id {
		// path halving
		g.unionFind[id-1] = g.unionFind[g.unionFind[id-1]-1]
		id = g.unionFind[id-1]
	}
	return id
}

func (g *EGraph) canonicalize(n Node) Node {
	if len(n.Children) == 0 {
		return n
	}
	out := Node{Kind: n.Kind, Data: n.Data, Children: make([]ID, len(n.Children))}
	for i, c := range n.Children {
		out.Children[i] = g.Find(c)
	}
	return out
}

// Add inserts an e-node, returning its class id. If a congruent node
// already exists the existing class is returned; otherwise a new class
// is allocated and the analysis is run over it. Add of a node whose
// child ids do not belong to this graph is a programmer error.
func (g *EGraph) Add(n Node) (ID, error) {
	if err := n.validate(); err != nil {
		return 0, err
	}
	for _, c := range n.Children {
		if c == 0 || int(c) > len(g.unionFind) {
			return 0, &ProgrammerError{Msg: "Add: unknown child id"}
		}
	}

	n = g.canonicalize(n)
	k := n.key()
	if id, ok := g.memo[k]; ok {
		return g.Find(id), nil
	}

	id := g.newID()
	cls := &eclass{nodes: []Node{n}}
	cls.data = g.analysis.Make(g, n)
	g.classes[id] = cls
	g.memo[k] = id
	g.nodeCount++

	for _, c := range n.Children {
		cc := g.classes[g.Find(c)]
		cc.parents = append(cc.parents, parentEdge{node: n, id: id})
	}

	return id, nil
}

// Union merges the classes of a and b, recomputes congruence via
// Rebuild's worklist, joins their analysis values, and returns the
// winning representative. a and b may already be in the same class, in
// which case Union is a no-op returning that class.
func (g *EGraph) Union(a, b ID) ID {
	a, b = g.Find(a), g.Find(b)
	if a == b {
		return a
	}

	// Deterministic choice of survivor: lower id wins, so repeated runs
	// over the same insertion order produce the same canonical ids
	// (needed for saturation determinism, spec.md §8 property 2).
	if b < a {
		a, b = b, a
	}

	ca, cb := g.classes[a], g.classes[b]
	merged, _ := g.analysis.Merge(ca.data, cb.data)

	g.unionFind[b-1] = a
	ca.nodes = append(ca.nodes, cb.nodes...)
	ca.parents = append(ca.parents, cb.parents...)
	ca.data = merged
	delete(g.classes, b)

	g.pending = append(g.pending, a)
	return a
}

// Rebuild processes the pending merge worklist until quiescence,
// restoring the congruence invariant: find(id) is canonical for every
// class, and the hashcons memo table reflects canonical children.
// Amortized near-linear in the number of nodes added since the last
// Rebuild (spec.md §4.1).
func (g *EGraph) Rebuild() {
	for len(g.pending) > 0 {
		todo := g.dedupPending()
		g.pending = g.pending[:0]

		for _, id := range todo {
			g.repair(id)
		}
	}
}

func (g *EGraph) dedupPending() []ID {
	seen := make(map[ID]bool, len(g.pending))
	out := make([]ID, 0, len(g.pending))
	for _, id := range g.pending {
		c := g.Find(id)
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

func (g *EGraph) repair(id ID) {
	id = g.Find(id)
	cls := g.classes[id]
	if cls == nil {
		return
	}

	oldParents := cls.parents
	cls.parents = cls.parents[:0]

	// Recanonicalize every node owned by this class in the memo table.
	newNodes := make([]Node, 0, len(cls.nodes))
	seen := make(map[key]bool, len(cls.nodes))
	for _, n := range cls.nodes {
		cn := g.canonicalize(n)
		k := cn.key()
		delete(g.memo, n.key())
		if !seen[k] {
			seen[k] = true
			newNodes = append(newNodes, cn)
		}
		g.memo[k] = id
	}
	cls.nodes = newNodes

	// Reprocess parent edges: two parent nodes that canonicalize to the
	// same node now imply their owning classes must also be unioned —
	// that is the definition of congruence closure.
	seenParent := make(map[key]ID, len(oldParents))
	for _, pe := range oldParents {
		cn := g.canonicalize(pe.node)
		k := cn.key()
		pid := g.Find(pe.id)
		if existing, ok := seenParent[k]; ok {
			if existing != pid {
				g.Union(existing, pid)
			}
			continue
		}
		seenParent[k] = pid
		g.memo[k] = pid
	}

	// Re-register parent pointers for the surviving canonical parent
	// nodes against their (possibly new) canonical children classes.
	registered := make(map[key]bool, len(seenParent))
	for k, pid := range seenParent {
		pid = g.Find(pid)
		if registered[k] {
			continue
		}
		registered[k] = true
		// Find any node in pid's class matching this key to get its
		// children; since seenParent was built from canonicalized
		// copies we can reconstruct via the memo's node directly by
		// scanning pid's class nodes (small in practice).
		for _, n := range g.classes[pid].nodes {
			if n.key() == k {
				for _, c := range n.Children {
					cc := g.classes[g.Find(c)]
					cc.parents = append(cc.parents, parentEdge{node: n, id: pid})
				}
				break
			}
		}
	}

	// Re-run analysis for this class now that its node set may have
	// changed (a literal could have appeared via a rule's applier, etc).
	var data interface{}
	for i, n := range cls.nodes {
		v := g.analysis.Make(g, n)
		if i == 0 {
			data = v
		} else {
			data, _ = g.analysis.Merge(data, v)
		}
	}
	if merged, changed := g.analysis.Merge(cls.data, data); changed || cls.data == nil {
		cls.data = merged
	}
}

// Nodes returns a copy of the e-nodes in id's class.
func (g *EGraph) Nodes(id ID) []Node {
	cls := g.classes[g.Find(id)]
	if cls == nil {
		return nil
	}
	out := make([]Node, len(cls.nodes))
	copy(out, cls.nodes)
	return out
}

// Data returns the analysis value attached to id's class.
func (g *EGraph) Data(id ID) interface{} {
	cls := g.classes[g.Find(id)]
	if cls == nil {
		return nil
	}
	return cls.data
}

// AddLeaf is a convenience wrapper for inserting an arity-0 node carrying
// data as its hashed value.
func (g *EGraph) AddLeaf(kind Kind, data interface{}) (ID, error) {
	return g.Add(Node{Kind: kind, Data: data})
}
