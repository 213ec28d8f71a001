package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cubegraph/cubeplan/planlang"
)

func TestCompareReplacerDominatesEverything(t *testing.T) {
	withReplacer := PlanCost{Replacers: 1, ASTSize: 1}
	finished := PlanCost{ASTSize: 1000}
	assert.True(t, Less(finished, withReplacer), "a finished plan must always cost less than one still carrying a replacer")
}

func TestFindBestPrefersCubeScanOverTableScan(t *testing.T) {
	g := planlang.NewEGraph(planlang.NoopAnalysis{})

	tableScan, err := g.Add(planlang.Node{
		Kind:     planlang.KindTableScan,
		Children: []planlang.ID{g.AddList(nil)},
		Data:     planlang.TableScanAttrs{Source: "orders"},
	})
	require.NoError(t, err)

	members, err := g.AddLeaf(planlang.KindMeasure, planlang.MemberAttrs{Name: "orders.count"})
	require.NoError(t, err)
	memberList := g.AddList([]planlang.ID{members})
	absent, err := g.AddLeaf(planlang.KindAbsent, nil)
	require.NoError(t, err)
	orderList := g.AddList(nil)
	cubeScan, err := g.Add(planlang.Node{
		Kind:     planlang.KindCubeScan,
		Children: []planlang.ID{memberList, absent, orderList},
		Data:     planlang.CubeScanAttrs{},
	})
	require.NoError(t, err)

	root := g.Union(tableScan, cubeScan)
	g.Rebuild()

	x := NewExtractor(g, nil, false)
	c, term, ok := x.FindBest(root)
	require.True(t, ok)
	assert.Equal(t, planlang.KindCubeScan, term.Kind, "extraction should prefer the detected CubeScan alternative")
	assert.EqualValues(t, 0, c.TableScans)
	assert.EqualValues(t, 0, c.NonDetectedCubeScans)
}

func TestFindBestIsDeterministic(t *testing.T) {
	build := func() (*planlang.EGraph, planlang.ID) {
		g := planlang.NewEGraph(planlang.NoopAnalysis{})
		a, err := g.AddLeaf(planlang.KindColumn, planlang.ColumnAttrs{Name: "a"})
		require.NoError(t, err)
		b, err := g.AddLeaf(planlang.KindColumn, planlang.ColumnAttrs{Name: "b"})
		require.NoError(t, err)
		n1, err := g.Add(planlang.Node{Kind: planlang.KindNot, Children: []planlang.ID{a}})
		require.NoError(t, err)
		root := g.Union(n1, b)
		g.Rebuild()
		return g, root
	}

	g1, r1 := build()
	g2, r2 := build()

	c1, t1, ok1 := NewExtractor(g1, nil, false).FindBest(r1)
	c2, t2, ok2 := NewExtractor(g2, nil, false).FindBest(r2)
	require.True(t, ok1)
	require.True(t, ok2)
	assert.Equal(t, c1, c2)
	assert.Equal(t, t1.Kind, t2.Kind)
}

func TestFindBestBreaksSelfRecursiveCycle(t *testing.T) {
	g := planlang.NewEGraph(planlang.NoopAnalysis{})
	leaf, err := g.AddLeaf(planlang.KindColumn, planlang.ColumnAttrs{Name: "x"})
	require.NoError(t, err)
	wrap, err := g.Add(planlang.Node{Kind: planlang.KindNot, Children: []planlang.ID{leaf}})
	require.NoError(t, err)

	// Force wrap's class to also contain a node that points at itself,
	// which must never be chosen since it can never bottom out.
	g.Union(wrap, leaf)
	g.Rebuild()

	_, _, ok := NewExtractor(g, nil, false).FindBest(wrap)
	assert.True(t, ok, "a class with at least one non-recursive alternative must still extract")
}
