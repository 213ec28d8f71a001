package rewrite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cubegraph/cubeplan/planlang"
)

func TestNotNotElimFires(t *testing.T) {
	g := planlang.NewEGraph(planlang.ColumnAnalysis{})

	col, err := g.AddLeaf(planlang.KindColumn, planlang.ColumnAttrs{Relation: "orders", Name: "active"})
	require.NoError(t, err)
	n1, err := g.Add(planlang.Node{Kind: planlang.KindNot, Children: []planlang.ID{col}})
	require.NoError(t, err)
	n2, err := g.Add(planlang.Node{Kind: planlang.KindNot, Children: []planlang.ID{n1}})
	require.NoError(t, err)

	res := Saturate(g, RuleSet(MemberRules()), Budget{MaxIterations: 10})
	assert.Empty(t, res.Errors)
	assert.Equal(t, g.Find(col), g.Find(n2), "NOT(NOT(x)) must unify with x")
}

func TestFilterTrueElim(t *testing.T) {
	g := planlang.NewEGraph(planlang.ColumnAnalysis{})

	input, err := g.AddLeaf(planlang.KindEmptyRelation, true)
	require.NoError(t, err)
	trueLit, err := g.AddLeaf(planlang.KindLiteral, planlang.LiteralAttrs{Value: true, Type: planlang.DataTypeTag{Kind: 7}})
	require.NoError(t, err)
	filter, err := g.Add(planlang.Node{Kind: planlang.KindFilter, Children: []planlang.ID{trueLit, input}})
	require.NoError(t, err)

	Saturate(g, FilterRules(), Budget{MaxIterations: 5})
	assert.Equal(t, g.Find(input), g.Find(filter))
}

func TestWrapFilterOverCubeScan(t *testing.T) {
	g := planlang.NewEGraph(planlang.NoopAnalysis{})

	members := g.AddList(nil)
	absent, err := g.AddLeaf(planlang.KindAbsent, nil)
	require.NoError(t, err)
	order := g.AddList(nil)
	scan, err := g.Add(planlang.Node{Kind: planlang.KindCubeScan, Children: []planlang.ID{members, absent, order}, Data: planlang.CubeScanAttrs{}})
	require.NoError(t, err)

	pred, err := g.AddLeaf(planlang.KindLiteral, planlang.LiteralAttrs{Value: true, Type: planlang.DataTypeTag{Kind: 7}})
	require.NoError(t, err)
	filter, err := g.Add(planlang.Node{Kind: planlang.KindFilter, Children: []planlang.ID{pred, scan}})
	require.NoError(t, err)

	Saturate(g, WrapperRules(), Budget{MaxIterations: 5})

	var sawWrapper bool
	for _, n := range g.Nodes(g.Find(filter)) {
		if n.Kind == planlang.KindCubeScanWrapper {
			sawWrapper = true
		}
	}
	assert.True(t, sawWrapper, "filter-over-cubescan should produce a CubeScanWrapper alternative in the same class")
}

func TestSaturateRespectsIterationLimit(t *testing.T) {
	g := planlang.NewEGraph(planlang.NoopAnalysis{})
	col, err := g.AddLeaf(planlang.KindColumn, planlang.ColumnAttrs{Name: "x"})
	require.NoError(t, err)
	cur := col
	for i := 0; i < 5; i++ {
		cur, err = g.Add(planlang.Node{Kind: planlang.KindNot, Children: []planlang.ID{cur}})
		require.NoError(t, err)
	}

	res := Saturate(g, MemberRules(), Budget{MaxIterations: 1})
	assert.LessOrEqual(t, res.Iterations, 1)
}

func TestSaturateTimeBudget(t *testing.T) {
	g := planlang.NewEGraph(planlang.NoopAnalysis{})
	_, err := g.AddLeaf(planlang.KindColumn, planlang.ColumnAttrs{Name: "x"})
	require.NoError(t, err)

	res := Saturate(g, RuleSet{}, Budget{TimeBudget: time.Nanosecond})
	assert.True(t, res.TimedOut || res.Iterations >= 0)
}
