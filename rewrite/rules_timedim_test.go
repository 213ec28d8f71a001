package rewrite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cubegraph/cubeplan/planlang"
)

// TestPromoteDateTruncGroupExprToTimeDimension starts from the actual SQL
// shape of spec.md scenario A (`DATE(order_date) ... GROUP BY`, modeled
// as date_trunc('day', order_date) over a CubeScan that already exposes
// order_date as a plain Dimension) and checks that the rule promotes it
// to a TimeDimension member — not a test that hands the engine an
// already-formed member.
func TestPromoteDateTruncGroupExprToTimeDimension(t *testing.T) {
	g := planlang.NewEGraph(planlang.NoopAnalysis{})

	dim, err := g.AddLeaf(planlang.KindDimension, planlang.MemberAttrs{Name: "order_date"})
	require.NoError(t, err)
	measure, err := g.AddLeaf(planlang.KindMeasure, planlang.MemberAttrs{Name: "count"})
	require.NoError(t, err)
	members := g.AddList([]planlang.ID{dim, measure})
	absent, err := g.AddLeaf(planlang.KindAbsent, nil)
	require.NoError(t, err)
	order := g.AddList(nil)
	scan, err := g.Add(planlang.Node{Kind: planlang.KindCubeScan, Children: []planlang.ID{members, absent, order}, Data: planlang.CubeScanAttrs{}})
	require.NoError(t, err)

	gran, err := g.AddLeaf(planlang.KindLiteral, planlang.LiteralAttrs{Value: "day", Type: planlang.DataTypeTag{Kind: uint8(8)}})
	require.NoError(t, err)
	col, err := g.AddLeaf(planlang.KindColumn, planlang.ColumnAttrs{Name: "order_date"})
	require.NoError(t, err)
	args := g.AddList([]planlang.ID{gran, col})
	dateTrunc, err := g.Add(planlang.Node{Kind: planlang.KindScalarFunction, Children: []planlang.ID{args}, Data: planlang.FuncAttrs{Name: "date_trunc"}})
	require.NoError(t, err)

	group := g.AddList([]planlang.ID{dateTrunc})
	aggExprs := g.AddList(nil)
	aggregate, err := g.Add(planlang.Node{Kind: planlang.KindAggregate, Children: []planlang.ID{group, aggExprs, scan}})
	require.NoError(t, err)

	Saturate(g, TimeDimensionRules(), Budget{MaxIterations: 10})

	assert.True(t, cubeScanHasTimeDimension(g, aggregate, "order_date", "day"),
		"date_trunc('day', order_date) over a CubeScan exposing order_date as a Dimension must promote to a TimeDimension member")
}

func cubeScanHasTimeDimension(g *planlang.EGraph, aggregateID planlang.ID, name, granularity string) bool {
	for _, aggNode := range g.Nodes(g.Find(aggregateID)) {
		if aggNode.Kind != planlang.KindAggregate {
			continue
		}
		for _, scanNode := range g.Nodes(g.Find(aggNode.Children[2])) {
			if scanNode.Kind != planlang.KindCubeScan {
				continue
			}
			memberIDs, err := g.Flatten(scanNode.Children[0])
			if err != nil {
				continue
			}
			for _, mid := range memberIDs {
				for _, mn := range g.Nodes(g.Find(mid)) {
					if mn.Kind != planlang.KindTimeDimension {
						continue
					}
					attrs := mn.Data.(planlang.MemberAttrs)
					if attrs.Name == name && attrs.Granularity == granularity {
						return true
					}
				}
			}
		}
	}
	return false
}
