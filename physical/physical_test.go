package physical

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cubegraph/cubeplan/catalog"
	"github.com/cubegraph/cubeplan/logicalplan"
)

func ordersSchema() *logicalplan.Schema {
	return &logicalplan.Schema{Fields: []logicalplan.Field{
		{Name: "region", Type: logicalplan.DataType{Kind: logicalplan.DTString}},
		{Name: "created_at", Type: logicalplan.DataType{Kind: logicalplan.DTTimestamp}},
		{Name: "amount", Type: logicalplan.DataType{Kind: logicalplan.DTInt64}},
	}}
}

func newScan(name string, filters []logicalplan.Expr) *logicalplan.TableScan {
	scan := &logicalplan.TableScan{SourceName: name, Filters: filters}
	logicalplan.SetSchema(scan, ordersSchema())
	return scan
}

func TestCollectConstraintsCapturesSortAndLimit(t *testing.T) {
	scan := newScan("orders", nil)
	sort := &logicalplan.Sort{
		SortExprs: []logicalplan.SortExpr{{Expr: logicalplan.Column{Name: "region"}, Asc: true}},
		Input:     scan,
	}
	limit := &logicalplan.Limit{Fetch: int64Ptr(10), Input: sort}

	out := CollectConstraints(limit)
	require.Len(t, out, 1)
	require.Equal(t, []string{"region"}, out[0].SortColumns)
	require.True(t, out[0].SortAsc)
	require.NotNil(t, out[0].Limit)
	require.Equal(t, int64(10), *out[0].Limit)
}

func TestCollectConstraintsMarksJoinKeysSortRequired(t *testing.T) {
	left := newScan("orders", nil)
	right := newScan("regions", nil)
	join := &logicalplan.Join{
		Left:      left,
		Right:     right,
		LeftKeys:  []logicalplan.Expr{logicalplan.Column{Name: "region"}},
		RightKeys: []logicalplan.Expr{logicalplan.Column{Name: "region"}},
		Kind:      logicalplan.JoinInner,
	}

	out := CollectConstraints(join)
	require.Len(t, out, 2)
	for _, c := range out {
		require.True(t, c.SortRequired)
		require.Equal(t, []string{"region"}, c.SortColumns)
	}
}

func regionIndex(id catalog.EntityID) catalog.Index {
	return catalog.Index{
		ID:          id,
		Name:        "by_region",
		Columns:     []string{"region", "created_at"},
		SortKeySize: 2,
		Type:        catalog.IndexRegular,
	}
}

func TestChooseIndexesPicksLeadingSortColumnMatch(t *testing.T) {
	scan := newScan("orders", []logicalplan.Expr{
		logicalplan.BinaryExpr{Left: logicalplan.Column{Name: "region"}, Right: logicalplan.Literal{Value: "us"}, Op: logicalplan.OpEq},
	})
	c := &IndexConstraints{
		Scan:                    scan,
		SortColumns:             []string{"region", "created_at"},
		SortAsc:                 true,
		Filters:                 scan.Filters,
		SingleValueFilteredCols: map[string]bool{},
		AggregateCompatible:     true,
	}
	table := catalog.Table{ID: 1, Name: "orders"}
	indexes := []catalog.Index{
		{ID: 1, Name: "by_amount", Columns: []string{"amount"}, SortKeySize: 1},
		regionIndex(2),
	}

	cands, err := ChooseIndexes(context.Background(), []TableConstraints{{Table: table, Indexes: indexes, Constraints: c}})
	require.NoError(t, err)
	require.Len(t, cands, 1)
	require.Equal(t, catalog.EntityID(2), cands[0].Index.ID)
}

func TestChooseIndexesErrorsWhenNoIndexEligible(t *testing.T) {
	scan := newScan("orders", nil)
	c := &IndexConstraints{
		Scan:                    scan,
		SortColumns:             []string{"amount"},
		SingleValueFilteredCols: map[string]bool{},
	}
	table := catalog.Table{ID: 1, Name: "orders"}
	indexes := []catalog.Index{regionIndex(2)}

	_, err := ChooseIndexes(context.Background(), []TableConstraints{{Table: table, Indexes: indexes, Constraints: c}})
	require.Error(t, err)
}

func TestLimitPushdownRequiresSortPrefixMatch(t *testing.T) {
	idx := regionIndex(2)
	c := &IndexConstraints{
		SortColumns:             []string{"region"},
		SingleValueFilteredCols: map[string]bool{},
		Limit:                   int64Ptr(5),
		AggregateCompatible:     true,
	}
	got := limitForPushdown(idx, c)
	require.NotNil(t, got)
	require.Equal(t, int64(5), *got)

	c.SortColumns = []string{"created_at"}
	require.Nil(t, limitForPushdown(idx, c))
}

func TestPrunePartitionsDropsRangesOutsideEqualityBound(t *testing.T) {
	idx := regionIndex(2)
	filters := []logicalplan.Expr{
		logicalplan.BinaryExpr{Left: logicalplan.Column{Name: "region"}, Right: logicalplan.Literal{Value: "eu"}, Op: logicalplan.OpEq},
	}
	candidates := []catalog.PartitionChunks{
		{Partition: catalog.Partition{ID: 10, Min: catalog.RowBound("ap"), Max: catalog.RowBound("eu")}},
		{Partition: catalog.Partition{ID: 11, Min: catalog.RowBound("eu"), Max: catalog.RowBound("us")}},
		{Partition: catalog.Partition{ID: 12, Min: catalog.RowBound("us"), Max: catalog.RowBound("zz")}},
	}

	pruned, survivors := PrunePartitions(idx, filters, candidates)
	require.Len(t, pruned, 1)
	require.Equal(t, catalog.EntityID(11), pruned[0].Partition.ID)
	require.True(t, survivors.Contains(11))
	require.False(t, survivors.Contains(10))
	require.False(t, survivors.Contains(12))
}

func TestPullUpThroughProjectionAndFilter(t *testing.T) {
	scan := newScan("orders", nil)
	cs := &logicalplan.ClusterSend{ID: 1, Input: scan, Snapshots: []logicalplan.Snapshot{{IndexID: 2, PartitionIDs: []uint64{11}}}}
	filter := &logicalplan.Filter{Predicate: logicalplan.BinaryExpr{Op: logicalplan.OpEq}, Input: cs}
	proj := &logicalplan.Projection{Input: filter}
	logicalplan.SetSchema(proj, ordersSchema())

	out := PullUp(proj)
	gotCS, ok := out.(*logicalplan.ClusterSend)
	require.True(t, ok)
	innerProj, ok := gotCS.Input.(*logicalplan.Projection)
	require.True(t, ok)
	innerFilter, ok := innerProj.Input.(*logicalplan.Filter)
	require.True(t, ok)
	require.Equal(t, scan, innerFilter.Input)
}

func TestPullUpMergesMatchingJoinClusterSends(t *testing.T) {
	leftScan := newScan("orders", nil)
	rightScan := newScan("regions", nil)
	leftCS := &logicalplan.ClusterSend{ID: 5, Input: leftScan, Snapshots: []logicalplan.Snapshot{{IndexID: 1}}}
	rightCS := &logicalplan.ClusterSend{ID: 5, Input: rightScan, Snapshots: []logicalplan.Snapshot{{IndexID: 2}}}
	join := &logicalplan.Join{Left: leftCS, Right: rightCS, Kind: logicalplan.JoinInner}

	out := PullUp(join)
	merged, ok := out.(*logicalplan.ClusterSend)
	require.True(t, ok)
	require.Len(t, merged.Snapshots, 2)
	gotJoin, ok := merged.Input.(*logicalplan.Join)
	require.True(t, ok)
	require.Equal(t, leftScan, gotJoin.Left)
	require.Equal(t, rightScan, gotJoin.Right)
}

func TestPullUpDoesNotMergeJoinWithMismatchedClusterSendIDs(t *testing.T) {
	leftScan := newScan("orders", nil)
	rightScan := newScan("regions", nil)
	leftCS := &logicalplan.ClusterSend{ID: 5, Input: leftScan}
	rightCS := &logicalplan.ClusterSend{ID: 9, Input: rightScan}
	join := &logicalplan.Join{Left: leftCS, Right: rightCS, Kind: logicalplan.JoinInner}

	out := PullUp(join)
	_, ok := out.(*logicalplan.ClusterSend)
	require.False(t, ok)
}

func aggregateSchema() *logicalplan.Schema {
	return &logicalplan.Schema{Fields: []logicalplan.Field{
		{Name: "region", Type: logicalplan.DataType{Kind: logicalplan.DTString}},
		{Name: "total", Type: logicalplan.DataType{Kind: logicalplan.DTInt64}},
	}}
}

func TestRecognizeTopKRewritesQualifyingPattern(t *testing.T) {
	scan := newScan("orders", nil)
	cs := &logicalplan.ClusterSend{ID: 3, Input: scan, Snapshots: []logicalplan.Snapshot{{IndexID: 2, PartitionIDs: []uint64{11, 12}}}}
	agg := &logicalplan.Aggregate{
		GroupExprs: []logicalplan.Expr{logicalplan.Column{Name: "region"}},
		AggExprs:   []logicalplan.Expr{logicalplan.AggregateFunction{Name: "sum", Args: []logicalplan.Expr{logicalplan.Column{Name: "amount"}}}},
		Input:      cs,
	}
	logicalplan.SetSchema(agg, aggregateSchema())
	sort := &logicalplan.Sort{
		SortExprs: []logicalplan.SortExpr{{Expr: logicalplan.Column{Name: "total"}, Asc: false}},
		Input:     agg,
	}
	limit := &logicalplan.Limit{Fetch: int64Ptr(5), Input: sort}

	out := RecognizeTopK(limit)
	upper, ok := out.(*logicalplan.ClusterAggregateTopKUpper)
	require.True(t, ok)
	require.Equal(t, int64(5), upper.Limit)
	require.Len(t, upper.SortBy, 1)
	require.True(t, upper.SortBy[0].Desc)

	innerCS, ok := upper.Input.(*logicalplan.ClusterSend)
	require.True(t, ok)
	require.NotNil(t, innerCS.Limit)
	require.Equal(t, int64(5), *innerCS.Limit)
	require.True(t, innerCS.Reverse)

	lower, ok := innerCS.Input.(*logicalplan.ClusterAggregateTopKLower)
	require.True(t, ok)
	require.Equal(t, scan, lower.Input)
	require.Equal(t, int64(5), lower.Limit)
}

func TestRecognizeTopKSkipsNonAdditiveAggregate(t *testing.T) {
	scan := newScan("orders", nil)
	cs := &logicalplan.ClusterSend{ID: 3, Input: scan}
	agg := &logicalplan.Aggregate{
		GroupExprs: []logicalplan.Expr{logicalplan.Column{Name: "region"}},
		AggExprs:   []logicalplan.Expr{logicalplan.AggregateFunction{Name: "avg", Args: []logicalplan.Expr{logicalplan.Column{Name: "amount"}}}},
		Input:      cs,
	}
	logicalplan.SetSchema(agg, aggregateSchema())
	sort := &logicalplan.Sort{
		SortExprs: []logicalplan.SortExpr{{Expr: logicalplan.Column{Name: "total"}, Asc: false}},
		Input:     agg,
	}
	limit := &logicalplan.Limit{Fetch: int64Ptr(5), Input: sort}

	out := RecognizeTopK(limit)
	_, ok := out.(*logicalplan.ClusterAggregateTopKUpper)
	require.False(t, ok)
	_, stillLimit := out.(*logicalplan.Limit)
	require.True(t, stillLimit)
}

func int64Ptr(v int64) *int64 { return &v }
