package physical

import (
	"strings"

	"github.com/cubegraph/cubeplan/logicalplan"
)

// topKAggFuncs are the only aggregate functions a partial-then-merge
// top-K rewrite is valid for: summing, minimizing or maximizing per
// partition and again across partitions gives the same answer as doing
// it once over the whole input (spec.md §4.9).
var topKAggFuncs = map[string]bool{"sum": true, "min": true, "max": true}

// RecognizeTopK walks a pulled-up plan and rewrites every
// Limit -> Sort -> Aggregate -> ClusterSend pattern it finds into a
// ClusterAggregateTopKUpper over a ClusterSend wrapping a
// ClusterAggregateTopKLower, so each partition computes its own partial
// top-K before the results are merged (cluster_send.rs's
// try_push_aggregate_topk_into_cluster_send in the original).
func RecognizeTopK(p logicalplan.Plan) logicalplan.Plan {
	switch n := p.(type) {
	case *logicalplan.Projection:
		n.Input = RecognizeTopK(n.Input)
		return n
	case *logicalplan.Filter:
		n.Input = RecognizeTopK(n.Input)
		return n
	case *logicalplan.Window:
		n.Input = RecognizeTopK(n.Input)
		return n
	case *logicalplan.Subquery:
		n.Input = RecognizeTopK(n.Input)
		return n
	case *logicalplan.TableUDF:
		n.Input = RecognizeTopK(n.Input)
		return n
	case *logicalplan.Distinct:
		n.Input = RecognizeTopK(n.Input)
		return n
	case *logicalplan.Join:
		n.Left = RecognizeTopK(n.Left)
		n.Right = RecognizeTopK(n.Right)
		return n
	case *logicalplan.CrossJoin:
		n.Left = RecognizeTopK(n.Left)
		n.Right = RecognizeTopK(n.Right)
		return n
	case *logicalplan.Union:
		for i, in := range n.Inputs {
			n.Inputs[i] = RecognizeTopK(in)
		}
		return n
	case *logicalplan.Aggregate:
		n.Input = RecognizeTopK(n.Input)
		return n

	case *logicalplan.Sort:
		n.Input = RecognizeTopK(n.Input)
		return n

	case *logicalplan.Limit:
		n.Input = RecognizeTopK(n.Input)
		if rewritten, ok := tryTopK(n); ok {
			return rewritten
		}
		return n

	default:
		return p
	}
}

// tryTopK matches limit's subtree against the top-K shape and, if every
// condition holds, returns the rewritten plan.
func tryTopK(limit *logicalplan.Limit) (logicalplan.Plan, bool) {
	if limit.Fetch == nil || *limit.Fetch <= 0 || limit.Skip != 0 {
		return nil, false
	}
	sort, ok := limit.Input.(*logicalplan.Sort)
	if !ok || len(sort.SortExprs) == 0 {
		return nil, false
	}
	agg, ok := sort.Input.(*logicalplan.Aggregate)
	if !ok {
		return nil, false
	}
	cs, ok := agg.Input.(*logicalplan.ClusterSend)
	if !ok {
		return nil, false
	}

	aggFuncs := extractAggregateFunctions(agg.AggExprs)
	if len(aggFuncs) != len(agg.AggExprs) {
		return nil, false // a non-aggregate expression sits in the aggregate list
	}
	for _, f := range aggFuncs {
		if !topKAggFuncs[strings.ToLower(f.Name)] {
			return nil, false
		}
	}

	sortBy, ok := sortKeysAgainstOutput(sort.SortExprs, agg.Schema())
	if !ok {
		return nil, false
	}
	if !consistentDirection(sortBy) {
		return nil, false
	}

	limitVal := *limit.Fetch
	lower := &logicalplan.ClusterAggregateTopKLower{
		Input:      cs.Input,
		GroupExprs: agg.GroupExprs,
		AggExprs:   aggFuncs,
		SortBy:     sortBy,
		Limit:      limitVal,
	}
	logicalplan.SetSchema(lower, agg.Schema())
	innerCS := &logicalplan.ClusterSend{
		ID:        cs.ID,
		Input:     lower,
		Snapshots: cs.Snapshots,
		Limit:     &limitVal,
		Reverse:   sortBy[0].Desc,
	}
	upper := &logicalplan.ClusterAggregateTopKUpper{
		Input:    innerCS,
		AggExprs: aggFuncs,
		SortBy:   sortBy,
		Limit:    limitVal,
	}
	logicalplan.SetSchema(upper, agg.Schema())
	return upper, true
}

// sortKeysAgainstOutput maps each sort expression to its position in the
// aggregate's own output schema, failing the rewrite if any key doesn't
// reference a group or aggregate output column (spec.md §4.9: "all sort
// keys reference the aggregate's output").
func sortKeysAgainstOutput(exprs []logicalplan.SortExpr, schema *logicalplan.Schema) ([]logicalplan.SortKeyRef, bool) {
	if schema == nil {
		return nil, false
	}
	out := make([]logicalplan.SortKeyRef, 0, len(exprs))
	for _, e := range exprs {
		col, ok := e.Expr.(logicalplan.Column)
		if !ok {
			return nil, false
		}
		idx := -1
		for i, f := range schema.Fields {
			if f.Name == col.Name {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, false
		}
		out = append(out, logicalplan.SortKeyRef{
			OutputIndex: idx,
			Desc:        !e.Asc,
			NullsFirst:  e.NullsFirst,
		})
	}
	return out, true
}

// consistentDirection requires every sort key to point the same way, so
// a single Reverse flag on the inner ClusterSend correctly orders each
// partition's partial top-K for the upper merge.
func consistentDirection(keys []logicalplan.SortKeyRef) bool {
	for _, k := range keys[1:] {
		if k.Desc != keys[0].Desc {
			return false
		}
	}
	return true
}
