package physical

import (
	"context"
	"fmt"

	"github.com/cubegraph/cubeplan/catalog"
	"github.com/cubegraph/cubeplan/logicalplan"
)

// TableResolver looks up the catalog table and its indexes for a table
// scan's source name, the bridge between the logical plan's string-named
// scans and the catalog's entity ids.
type TableResolver interface {
	Resolve(scan *logicalplan.TableScan) (catalog.Table, []catalog.Index, error)
}

// PartitionResolver supplies the active partitions and chunks for a
// chosen index, wrapping catalog.Metastore's
// GetActivePartitionsAndChunksByIndexIDForSelect.
type PartitionResolver interface {
	ActivePartitions(ctx context.Context, indexID catalog.EntityID) ([]catalog.PartitionChunks, error)
}

// Plan runs the whole C8+C9 pipeline over a rewritten, extracted logical
// plan: collect per-scan constraints, choose and prune an index per
// table, wrap each chosen scan in a ClusterSend, pull ClusterSends up
// through transparent operators, and recognize top-K patterns.
func Plan(ctx context.Context, plan logicalplan.Plan, tables TableResolver, partitions PartitionResolver) (logicalplan.Plan, error) {
	constraints := CollectConstraints(plan)
	if len(constraints) == 0 {
		return plan, nil
	}

	tcs := make([]TableConstraints, len(constraints))
	for i, c := range constraints {
		table, indexes, err := tables.Resolve(c.Scan)
		if err != nil {
			return nil, fmt.Errorf("physical: resolve table for scan: %w", err)
		}
		tcs[i] = TableConstraints{Table: table, Indexes: indexes, Constraints: c}
	}

	candidates, err := ChooseIndexes(ctx, tcs)
	if err != nil {
		return nil, err
	}

	gen := &idGenerator{}
	replacements := make(map[*logicalplan.TableScan]*logicalplan.ClusterSend, len(candidates))
	for i, cand := range candidates {
		active, err := partitions.ActivePartitions(ctx, cand.Index.ID)
		if err != nil {
			return nil, fmt.Errorf("physical: list active partitions for index %d: %w", cand.Index.ID, err)
		}
		_, survivors := PrunePartitions(cand.Index, cand.Constraints.Filters, active)
		replacements[constraints[i].Scan] = WrapScan(gen.next_(), constraints[i].Scan, cand.Index, survivors, cand)
	}

	rewritten := substituteScans(plan, replacements)
	pulled := PullUp(rewritten)
	return RecognizeTopK(pulled), nil
}

// substituteScans replaces every TableScan leaf with its chosen
// ClusterSend wrapper, in place.
func substituteScans(p logicalplan.Plan, replacements map[*logicalplan.TableScan]*logicalplan.ClusterSend) logicalplan.Plan {
	switch n := p.(type) {
	case *logicalplan.TableScan:
		if cs, ok := replacements[n]; ok {
			return cs
		}
		return n
	case *logicalplan.Projection:
		n.Input = substituteScans(n.Input, replacements)
		return n
	case *logicalplan.Filter:
		n.Input = substituteScans(n.Input, replacements)
		return n
	case *logicalplan.Window:
		n.Input = substituteScans(n.Input, replacements)
		return n
	case *logicalplan.Aggregate:
		n.Input = substituteScans(n.Input, replacements)
		return n
	case *logicalplan.Sort:
		n.Input = substituteScans(n.Input, replacements)
		return n
	case *logicalplan.Join:
		n.Left = substituteScans(n.Left, replacements)
		n.Right = substituteScans(n.Right, replacements)
		return n
	case *logicalplan.CrossJoin:
		n.Left = substituteScans(n.Left, replacements)
		n.Right = substituteScans(n.Right, replacements)
		return n
	case *logicalplan.Union:
		for i, in := range n.Inputs {
			n.Inputs[i] = substituteScans(in, replacements)
		}
		return n
	case *logicalplan.Subquery:
		n.Input = substituteScans(n.Input, replacements)
		return n
	case *logicalplan.TableUDF:
		n.Input = substituteScans(n.Input, replacements)
		return n
	case *logicalplan.Limit:
		n.Input = substituteScans(n.Input, replacements)
		return n
	case *logicalplan.Distinct:
		n.Input = substituteScans(n.Input, replacements)
		return n
	default:
		return p
	}
}
