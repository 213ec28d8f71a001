package physical

import (
	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/cubegraph/cubeplan/catalog"
	"github.com/cubegraph/cubeplan/logicalplan"
)

// WrapScan builds the Snapshot list for one chosen, pruned index
// candidate and wraps scan in a ClusterSend, grounded on
// choose_table_index's ClusterSendNode::new call in the original.
// survivors is PrunePartitions's surviving-id bitmap: it is the
// authoritative partition set for the snapshot, sorted and deduplicated
// by construction, rather than a second count re-derived from pruned.
func WrapScan(id int, scan logicalplan.Plan, index catalog.Index, survivors *roaring64.Bitmap, candidate IndexCandidate) *logicalplan.ClusterSend {
	snap := logicalplan.Snapshot{IndexID: uint64(index.ID), PartitionIDs: survivors.ToArray()}

	cs := &logicalplan.ClusterSend{
		ID:        id,
		Input:     scan,
		Snapshots: []logicalplan.Snapshot{snap},
	}
	if candidate.LimitPushed != nil {
		cs.Limit = candidate.LimitPushed
		cs.Reverse = !candidate.Constraints.SortAsc
	}
	return cs
}

// idGenerator hands out fresh, increasing ClusterSend ids within one
// planning pass (get_cluster_send_next_id in the original).
type idGenerator struct{ next int }

func (g *idGenerator) next_() int {
	id := g.next
	g.next++
	return id
}

// PullUp pulls every ClusterSend up through the transparent operators
// above it — projection, filter, subquery alias — so that the physical
// cluster-send sits as close to the plan root as the blocking operators
// allow (spec.md §4.9). Aggregate, Sort, Limit and repartition (modeled
// here as Distinct, since this repo has no dedicated repartition node)
// already collect from multiple partitions and block the pull-up.
func PullUp(p logicalplan.Plan) logicalplan.Plan {
	switch n := p.(type) {
	case *logicalplan.Projection:
		n.Input = PullUp(n.Input)
		if cs, ok := n.Input.(*logicalplan.ClusterSend); ok {
			n.Input = cs.Input
			cs.Input = n
			return cs
		}
		return n

	case *logicalplan.Filter:
		n.Input = PullUp(n.Input)
		if cs, ok := n.Input.(*logicalplan.ClusterSend); ok {
			n.Input = cs.Input
			cs.Input = n
			return cs
		}
		return n

	case *logicalplan.Subquery:
		n.Input = PullUp(n.Input)
		if cs, ok := n.Input.(*logicalplan.ClusterSend); ok {
			n.Input = cs.Input
			cs.Input = n
			return cs
		}
		return n

	case *logicalplan.Join:
		n.Left = PullUp(n.Left)
		n.Right = PullUp(n.Right)
		leftCS, leftOK := n.Left.(*logicalplan.ClusterSend)
		rightCS, rightOK := n.Right.(*logicalplan.ClusterSend)
		if leftOK && rightOK && leftCS.ID == rightCS.ID {
			n.Left = leftCS.Input
			n.Right = rightCS.Input
			return &logicalplan.ClusterSend{
				ID:        leftCS.ID,
				Input:     n,
				Snapshots: append(append([]logicalplan.Snapshot{}, leftCS.Snapshots...), rightCS.Snapshots...),
			}
		}
		return n

	case *logicalplan.Union:
		merged := mergeUnionClusterSends(n)
		if merged != nil {
			return merged
		}
		for i, in := range n.Inputs {
			n.Inputs[i] = PullUp(in)
		}
		return n

	case *logicalplan.Aggregate:
		n.Input = PullUp(n.Input) // blocked: stays beneath, no pull-up past here
		return n

	case *logicalplan.Sort:
		n.Input = PullUp(n.Input) // blocked
		return n

	case *logicalplan.Limit:
		n.Input = PullUp(n.Input) // blocked
		return n

	case *logicalplan.Distinct:
		n.Input = PullUp(n.Input) // blocked (models repartition)
		return n

	default:
		return p
	}
}

// mergeUnionClusterSends concatenates the snapshots of a union whose
// every input is already a ClusterSend, keeping a shared pushed-down
// limit only when every input pushed the same one (spec.md §4.9).
func mergeUnionClusterSends(n *logicalplan.Union) *logicalplan.ClusterSend {
	if len(n.Inputs) == 0 {
		return nil
	}
	var snapshots []logicalplan.Snapshot
	var inputs []logicalplan.Plan
	var sharedLimit *int64
	limitsAgree := true
	firstID := -1

	for i, in := range n.Inputs {
		pulled := PullUp(in)
		cs, ok := pulled.(*logicalplan.ClusterSend)
		if !ok {
			return nil
		}
		if i == 0 {
			firstID = cs.ID
			sharedLimit = cs.Limit
		} else if !sameLimit(sharedLimit, cs.Limit) {
			limitsAgree = false
		}
		snapshots = append(snapshots, cs.Snapshots...)
		inputs = append(inputs, cs.Input)
	}

	n.Inputs = inputs
	cs := &logicalplan.ClusterSend{ID: firstID, Input: n, Snapshots: snapshots}
	if limitsAgree {
		cs.Limit = sharedLimit
	}
	return cs
}

func sameLimit(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
