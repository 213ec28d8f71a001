package hll

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRejectsOutOfRangePrecision(t *testing.T) {
	_, err := New(FlavorAirlift, MaxPrecision+1)
	require.Error(t, err)
	_, err = New(FlavorAirlift, MinPrecision-1)
	require.Error(t, err)
}

func hashFor(n int) uint64 {
	// A cheap, deterministic, well-distributed-enough hash for test
	// inputs: splitmix64's mixing step.
	x := uint64(n) + 0x9E3779B97F4A7C15
	x = (x ^ (x >> 30)) * 0xBF58476D1CE4E5B9
	x = (x ^ (x >> 27)) * 0x94D049BB133111EB
	return x ^ (x >> 31)
}

func TestCardinalityIsWithinToleranceForModerateCount(t *testing.T) {
	s, err := New(FlavorAirlift, 12)
	require.NoError(t, err)

	const n = 5000
	for i := 0; i < n; i++ {
		s.Add(hashFor(i))
	}

	got := s.Cardinality()
	ratio := float64(got) / float64(n)
	require.InDeltaf(t, 1.0, ratio, 0.1, "estimate %d too far from true cardinality %d", got, n)
}

func TestSparsePromotesToDenseUnderLoad(t *testing.T) {
	s, err := New(FlavorAirlift, 8) // 256 buckets
	require.NoError(t, err)

	for i := 0; i < 10000; i++ {
		s.Add(hashFor(i))
	}
	_, isDense := s.repr.(*denseHll)
	require.True(t, isDense, "expected promotion to dense after heavy load")
}

func TestMergeRejectsPrecisionMismatch(t *testing.T) {
	a, err := New(FlavorAirlift, 10)
	require.NoError(t, err)
	b, err := New(FlavorAirlift, 12)
	require.NoError(t, err)

	require.Error(t, a.Merge(b))
}

func TestMergeRejectsFlavorMismatch(t *testing.T) {
	a, err := New(FlavorAirlift, 10)
	require.NoError(t, err)
	b, err := New(FlavorZetasketch, 10)
	require.NoError(t, err)

	require.Error(t, a.Merge(b))
}

func TestMergeUnionsDistinctElements(t *testing.T) {
	a, err := New(FlavorAirlift, 12)
	require.NoError(t, err)
	b, err := New(FlavorAirlift, 12)
	require.NoError(t, err)

	for i := 0; i < 3000; i++ {
		a.Add(hashFor(i))
	}
	for i := 2000; i < 6000; i++ {
		b.Add(hashFor(i))
	}

	require.NoError(t, a.Merge(b))
	got := a.Cardinality()
	require.InDeltaf(t, 6000, float64(got), 600, "merged estimate %d too far from true union size 6000", got)
}

func TestLinearCountingUsedWhenMostlyEmpty(t *testing.T) {
	s, err := New(FlavorAirlift, 14) // 16384 buckets
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		s.Add(hashFor(i))
	}
	got := s.Cardinality()
	require.InDeltaf(t, 50, float64(got), 15, "linear-counting regime estimate %d too far from 50", got)
}

func TestCorrectBiasLeavesOutOfRangeEstimateUnchanged(t *testing.T) {
	got := correctBias(10, math.MaxFloat64/2)
	require.Equal(t, math.MaxFloat64/2, got)
}
