package cost

import "github.com/cubegraph/cubeplan/planlang"

// Term is a detached plan-language term: a copy of the node tree chosen
// by extraction, no longer tied to any particular e-graph's class ids.
// Insert re-adds it (by hash-consing) into an EGraph, typically a fresh
// one so every resulting class holds exactly one e-node and downstream
// per-class lookups (convert.Converter.ToLogicalPlan's Nodes(id)[0]) see
// the extractor's choice unambiguously.
type Term struct {
	Kind     planlang.Kind
	Data     interface{}
	Children []*Term
}

// Insert adds t into g, returning the id of its root class.
func (t *Term) Insert(g *planlang.EGraph) (planlang.ID, error) {
	children := make([]planlang.ID, len(t.Children))
	for i, c := range t.Children {
		id, err := c.Insert(g)
		if err != nil {
			return 0, err
		}
		children[i] = id
	}
	return g.Add(planlang.Node{Kind: t.Kind, Children: children, Data: t.Data})
}

// memoKey is the extractor's cache key: a class id under a specific
// extraction State (spec.md §4.4 "caches (class_id, state)").
type memoKey struct {
	id    planlang.ID
	state State
}

type memoEntry struct {
	inProgress bool
	nodeIndex  int
	cost       PlanCost
	node       planlang.Node
}

// Extractor runs the top-down, state-dependent find_best over a single
// EGraph (spec.md §4.4). One Extractor is single-use against one graph
// snapshot; construct a new one if the graph changes.
type Extractor struct {
	g          *planlang.EGraph
	classifier DimensionClassifier
	penalize   bool
	memo       map[memoKey]*memoEntry
}

// NewExtractor builds an Extractor. classifier may be nil.
// penalizePostProcessing gates whether PenalizedASTSizeOutsideWrapper is
// populated (spec.md §4.4 "if penalization enabled").
func NewExtractor(g *planlang.EGraph, classifier DimensionClassifier, penalizePostProcessing bool) *Extractor {
	return &Extractor{g: g, classifier: classifier, penalize: penalizePostProcessing, memo: make(map[memoKey]*memoEntry)}
}

// FindBest extracts the canonical term rooted at root under the initial
// (Unwrapped, SortNone) state, per spec.md §4.4's find_best contract. It
// returns ok=false only when every node in some reachable class is
// inevitably recursive (spec.md: "find_best yields None for that entry").
func (x *Extractor) FindBest(root planlang.ID) (PlanCost, *Term, bool) {
	cost, ok := x.extract(root, State{})
	if !ok {
		return PlanCost{}, nil, false
	}
	term, ok := x.rebuild(root, State{})
	if !ok {
		return PlanCost{}, nil, false
	}
	return cost, term, true
}

// extract computes and memoizes the best cost for id under state,
// breaking cycles by marking an entry in-progress before recursing: if a
// class can only be reached through itself under every node choice, its
// entry is removed again and the caller treats it as absent (spec.md
// §4.4).
func (x *Extractor) extract(id planlang.ID, state State) (PlanCost, bool) {
	id = x.g.Find(id)
	key := memoKey{id: id, state: state}
	if e, ok := x.memo[key]; ok {
		if e.inProgress {
			return PlanCost{}, false
		}
		return e.cost, true
	}

	x.memo[key] = &memoEntry{inProgress: true}

	nodes := x.g.Nodes(id)
	var (
		haveBest  bool
		bestCost  PlanCost
		bestIndex int
		bestNode  planlang.Node
	)

nodeLoop:
	for i, n := range nodes {
		newState := transform(state, n)
		total := nodeCost(n, x.classifier)
		for _, c := range n.Children {
			childCost, ok := x.extract(c, newState)
			if !ok {
				continue nodeLoop
			}
			total = addChild(total, childCost)
		}
		total = finalize(total, newState, n, x.penalize)

		if !haveBest || Less(total, bestCost) {
			haveBest = true
			bestCost = total
			bestIndex = i
			bestNode = n
		}
	}

	if !haveBest {
		delete(x.memo, key)
		return PlanCost{}, false
	}

	x.memo[key] = &memoEntry{nodeIndex: bestIndex, cost: bestCost, node: bestNode}
	return bestCost, true
}

// rebuild walks the memoized choices to materialize the Term tree,
// mirroring cost.rs's build_recexpr.
func (x *Extractor) rebuild(id planlang.ID, state State) (*Term, bool) {
	id = x.g.Find(id)
	e, ok := x.memo[memoKey{id: id, state: state}]
	if !ok || e.inProgress {
		return nil, false
	}

	newState := transform(state, e.node)
	children := make([]*Term, len(e.node.Children))
	for i, c := range e.node.Children {
		child, ok := x.rebuild(c, newState)
		if !ok {
			return nil, false
		}
		children[i] = child
	}
	return &Term{Kind: e.node.Kind, Data: e.node.Data, Children: children}, true
}
