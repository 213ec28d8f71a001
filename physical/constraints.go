// Package physical implements the index chooser, partition pruner,
// cluster-send pull-up and top-K materialization of spec.md §4.8/§4.9,
// grounded on original_source/rust/cubestore/cubestore/src/queryplanner/
// planning.rs's ChooseIndex/pull_up_cluster_send passes, expressed over
// this repo's logicalplan tree instead of DataFusion's.
package physical

import (
	"github.com/cubegraph/cubeplan/logicalplan"
)

// IndexConstraints is everything the chooser needs about one constrained
// table scan, collected by a single pre-pass over the plan
// (ConstraintsContext in the original).
type IndexConstraints struct {
	Scan *logicalplan.TableScan

	Projection []string // columns referenced above the scan
	Filters    []logicalplan.Expr

	SortColumns  []string
	SortAsc      bool
	SortRequired bool // true when forced by an enclosing join's keys

	SingleValueFilteredCols map[string]bool

	Aggregates          []logicalplan.AggregateFunction
	AggregateCompatible bool

	Limit *int64
}

// collectState is the inherited, top-down context threaded through the
// walk (ChooseIndexContext in the original): each enclosing node updates
// a copy before recursing into its children.
type collectState struct {
	sortColumns  []string
	sortAsc      bool
	sortRequired bool
	singleValue  map[string]bool
	aggregates   []logicalplan.AggregateFunction
	aggOK        bool
	limit        *int64
}

// CollectConstraints walks plan and returns one IndexConstraints per
// TableScan leaf. The walk descends through aggregate, sort, limit,
// filter and join nodes, each of which updates the state its inputs
// inherit (mirroring enter_node/enter_join_left/enter_join_right in the
// original).
func CollectConstraints(plan logicalplan.Plan) []*IndexConstraints {
	var out []*IndexConstraints
	collect(plan, collectState{singleValue: map[string]bool{}, aggOK: true}, &out)
	return out
}

func collect(p logicalplan.Plan, st collectState, out *[]*IndexConstraints) {
	switch n := p.(type) {
	case *logicalplan.TableScan:
		c := &IndexConstraints{
			Scan:                    n,
			Filters:                 append([]logicalplan.Expr{}, n.Filters...),
			SortColumns:             st.sortColumns,
			SortAsc:                 st.sortAsc,
			SortRequired:            st.sortRequired,
			SingleValueFilteredCols: st.singleValue,
			Aggregates:              st.aggregates,
			AggregateCompatible:     st.aggOK,
			Limit:                   st.limit,
		}
		c.Projection = columnNamesFromProjection(n)
		*out = append(*out, c)

	case *logicalplan.Sort:
		cols, asc := sortToColumnNames(n.SortExprs)
		next := st
		next.sortColumns = cols
		next.sortAsc = asc
		collect(n.Input, next, out)

	case *logicalplan.Limit:
		next := st
		next.limit = n.Fetch
		collect(n.Input, next, out)

	case *logicalplan.Aggregate:
		next := st
		next.aggregates = extractAggregateFunctions(n.AggExprs)
		next.aggOK = st.aggOK && len(next.aggregates) > 0
		collect(n.Input, next, out)

	case *logicalplan.Filter:
		next := st
		merged := map[string]bool{}
		for k := range st.singleValue {
			merged[k] = true
		}
		for _, col := range singleValueFilterColumns(n.Predicate) {
			merged[col] = true
		}
		next.singleValue = merged
		collect(n.Input, next, out)

	case *logicalplan.Projection:
		collect(n.Input, st, out)

	case *logicalplan.Join:
		// Joins force required-sort on their keys for both inputs.
		leftKeys := exprNames(n.LeftKeys)
		rightKeys := exprNames(n.RightKeys)
		leftState := st
		leftState.sortColumns = leftKeys
		leftState.sortRequired = true
		rightState := st
		rightState.sortColumns = rightKeys
		rightState.sortRequired = true
		collect(n.Left, leftState, out)
		collect(n.Right, rightState, out)

	case *logicalplan.CrossJoin:
		collect(n.Left, collectState{singleValue: map[string]bool{}}, out)
		collect(n.Right, collectState{singleValue: map[string]bool{}}, out)

	case *logicalplan.Union:
		for _, in := range n.Inputs {
			collect(in, st, out)
		}

	case *logicalplan.Subquery:
		collect(n.Input, st, out)

	case *logicalplan.Distinct:
		collect(n.Input, st, out)

	case *logicalplan.Window:
		collect(n.Input, st, out)

	case *logicalplan.TableUDF:
		collect(n.Input, st, out)
	}
}

func columnNamesFromProjection(scan *logicalplan.TableScan) []string {
	if scan.Projection == nil {
		return nil
	}
	// Column indices reference the scan's own schema field order.
	var names []string
	if scan.Schema() != nil {
		for _, idx := range scan.Projection {
			if idx >= 0 && idx < len(scan.Schema().Fields) {
				names = append(names, scan.Schema().Fields[idx].Name)
			}
		}
	}
	return names
}

func extractAggregateFunctions(exprs []logicalplan.Expr) []logicalplan.AggregateFunction {
	var out []logicalplan.AggregateFunction
	for _, e := range exprs {
		switch v := e.(type) {
		case logicalplan.AggregateFunction:
			out = append(out, v)
		case logicalplan.Alias:
			if af, ok := v.Expr.(logicalplan.AggregateFunction); ok {
				out = append(out, af)
			}
		}
	}
	return out
}

func sortToColumnNames(exprs []logicalplan.SortExpr) ([]string, bool) {
	var names []string
	asc := true
	for i, e := range exprs {
		if col, ok := e.Expr.(logicalplan.Column); ok {
			names = append(names, col.Name)
		}
		if i == 0 {
			asc = e.Asc
		}
	}
	return names, asc
}

func exprNames(exprs []logicalplan.Expr) []string {
	var names []string
	for _, e := range exprs {
		if col, ok := e.(logicalplan.Column); ok {
			names = append(names, col.Name)
		}
	}
	return names
}

// singleValueFilterColumns finds columns strictly equality-restricted to
// a single literal value (`col = 10`), which get excluded from limit
// pushdown's prefix check (spec.md §4.8).
func singleValueFilterColumns(e logicalplan.Expr) []string {
	var out []string
	var walk func(logicalplan.Expr)
	walk = func(e logicalplan.Expr) {
		switch v := e.(type) {
		case logicalplan.BinaryExpr:
			if v.Op == logicalplan.OpAnd {
				walk(v.Left)
				walk(v.Right)
				return
			}
			if v.Op == logicalplan.OpEq {
				if col, ok := v.Left.(logicalplan.Column); ok {
					if _, ok := v.Right.(logicalplan.Literal); ok {
						out = append(out, col.Name)
					}
				}
			}
		}
	}
	walk(e)
	return out
}
