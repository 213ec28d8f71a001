package physical

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/cubegraph/cubeplan/catalog"
	"github.com/cubegraph/cubeplan/logicalplan"
)

// IndexCandidate is the chosen index for one constrained scan: an
// ordinary per-table pick, or — when the table's best index belongs to a
// multi-partitioned index and the sort is join-required — a partitioned
// pick. The partitioned flag is decided for each table on its own;
// whether the other joined tables' picks share the same
// multi-partitioned index id is not checked.
type IndexCandidate struct {
	Table       catalog.Table
	Constraints *IndexConstraints
	Index       catalog.Index
	Partitioned bool
	LimitPushed *int64
}

// TableConstraints pairs one pre-pass constraint set with the table and
// indexes it constrains.
type TableConstraints struct {
	Table       catalog.Table
	Indexes     []catalog.Index
	Constraints *IndexConstraints
}

// ChooseIndexes runs choose_table_index per table in parallel — the
// domain-stack binding for golang.org/x/sync/errgroup, since per-table
// index selection is embarrassingly parallel and independent of every
// other table's choice.
func ChooseIndexes(ctx context.Context, tables []TableConstraints) ([]IndexCandidate, error) {
	results := make([]IndexCandidate, len(tables))
	g, gctx := errgroup.WithContext(ctx)
	for i := range tables {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			c, err := chooseTableIndex(tables[i])
			if err != nil {
				return err
			}
			results[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func chooseTableIndex(t TableConstraints) (IndexCandidate, error) {
	c := t.Constraints
	filterCols := filterColumnNames(c.Filters)

	var eligible []catalog.Index
	for _, idx := range t.Indexes {
		if isEligible(idx, c, filterCols) {
			eligible = append(eligible, idx)
		}
	}
	if len(eligible) == 0 {
		return IndexCandidate{}, fmt.Errorf("physical: no eligible index for table %q", t.Table.Name)
	}

	best, ok := optimalIndexByScore(eligible, c.Projection, filterCols)
	if !ok {
		return IndexCandidate{}, fmt.Errorf("physical: no index covers the filter/projection columns for table %q", t.Table.Name)
	}

	partitioned := best.MultiIndexID != nil && c.SortRequired

	return IndexCandidate{
		Table:       t.Table,
		Constraints: c,
		Index:       *best,
		Partitioned: partitioned,
		LimitPushed: limitForPushdown(*best, c),
	}, nil
}

// isEligible implements spec.md §4.8's two eligibility rules: the
// index's leading required-sort-column-count columns must match the
// required sort columns (after excluding ones pinned by a single-value
// filter), and an aggregate index must additionally cover every
// projected and filter-referenced column.
func isEligible(idx catalog.Index, c *IndexConstraints, filterCols []string) bool {
	required := excludeSingleValueFiltered(c.SortColumns, c.SingleValueFilteredCols)
	if len(required) > 0 {
		if len(idx.Columns) < len(required) {
			return false
		}
		for i, col := range required {
			if idx.Columns[i] != col {
				return false
			}
		}
	}

	if idx.Type == catalog.IndexAggregate {
		for _, col := range c.Projection {
			if indexOfColumn(idx, col) < 0 {
				return false
			}
		}
		for _, col := range filterCols {
			if indexOfColumn(idx, col) < 0 {
				return false
			}
		}
	}

	return true
}

func excludeSingleValueFiltered(cols []string, pinned map[string]bool) []string {
	if len(pinned) == 0 {
		return cols
	}
	var out []string
	for _, c := range cols {
		if !pinned[c] {
			out = append(out, c)
		}
	}
	return out
}

// limitForPushdown implements spec.md §4.8's limit pushdown rule: the
// limit is pushed only when the (pin-excluded) required sort columns are
// a prefix of the (pin-excluded) index sort columns, and no aggregate in
// scope depends on the full input (an aggregate-incompatible query can
// never push a row-level limit into the scan).
func limitForPushdown(idx catalog.Index, c *IndexConstraints) *int64 {
	if c.Limit == nil || len(c.SortColumns) == 0 || idx.SortKeySize == 0 {
		return nil
	}
	if len(c.Aggregates) > 0 && !c.AggregateCompatible {
		return nil
	}

	sortCols := excludeSingleValueFiltered(c.SortColumns, c.SingleValueFilteredCols)
	indexSortCols := excludeSingleValueFiltered(idx.Columns[:idx.SortKeySize], c.SingleValueFilteredCols)

	if len(sortCols) > len(indexSortCols) {
		return nil
	}
	for i, col := range sortCols {
		if col != indexSortCols[i] {
			return nil
		}
	}
	limit := *c.Limit
	return &limit
}

// filterColumnNames collects every column referenced by a comparison
// inside filters, recursing through AND/OR and unary wrappers.
func filterColumnNames(filters []logicalplan.Expr) []string {
	seen := map[string]bool{}
	var out []string
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	var walk func(logicalplan.Expr)
	walk = func(e logicalplan.Expr) {
		switch v := e.(type) {
		case logicalplan.Column:
			add(v.Name)
		case logicalplan.BinaryExpr:
			walk(v.Left)
			walk(v.Right)
		case logicalplan.Not:
			walk(v.Expr)
		case logicalplan.IsNull:
			walk(v.Expr)
		case logicalplan.IsNotNull:
			walk(v.Expr)
		case logicalplan.Between:
			walk(v.Expr)
		case logicalplan.InList:
			walk(v.Expr)
		case logicalplan.Like:
			walk(v.Expr)
		}
	}
	for _, f := range filters {
		walk(f)
	}
	return out
}
