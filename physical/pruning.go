package physical

import (
	"bytes"
	"encoding/binary"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/cubegraph/cubeplan/catalog"
	"github.com/cubegraph/cubeplan/logicalplan"
)

// partitionFilter is a half-open [lower, upper) byte bound extracted
// from the leading sort-key column of an index's filter predicates
// (PartitionFilter::extract in the original, narrowed here to the
// leading column since RowBound is an opaque encoding of the full
// sort-key prefix rather than per-column fields).
type partitionFilter struct {
	lower, upper []byte
	bounded      bool
}

// extractPartitionFilter builds the prune bound for one index's filters,
// looking only at comparisons against the index's leading sort column
// (position 0); anything else leaves the filter unbounded (matches all
// partitions), the conservative default.
func extractPartitionFilter(index catalog.Index, filters []logicalplan.Expr) partitionFilter {
	if index.SortKeySize == 0 || len(index.Columns) == 0 {
		return partitionFilter{}
	}
	leading := index.Columns[0]

	pf := partitionFilter{}
	for _, f := range filters {
		applyComparison(f, leading, &pf)
	}
	return pf
}

func applyComparison(e logicalplan.Expr, leading string, pf *partitionFilter) {
	be, ok := e.(logicalplan.BinaryExpr)
	if !ok {
		return
	}
	if be.Op == logicalplan.OpAnd {
		applyComparison(be.Left, leading, pf)
		applyComparison(be.Right, leading, pf)
		return
	}

	col, colOk := be.Left.(logicalplan.Column)
	lit, litOk := be.Right.(logicalplan.Literal)
	if !colOk || !litOk || col.Name != leading {
		return
	}
	val, ok := encodeSortValue(lit.Value)
	if !ok {
		return
	}

	switch be.Op {
	case logicalplan.OpEq:
		pf.lower = val
		pf.upper = upperBoundExclusive(val)
		pf.bounded = true
	case logicalplan.OpGt:
		pf.lower = upperBoundExclusive(val)
		pf.bounded = true
	case logicalplan.OpGtEq:
		pf.lower = val
		pf.bounded = true
	case logicalplan.OpLt:
		pf.upper = val
		pf.bounded = true
	case logicalplan.OpLtEq:
		pf.upper = upperBoundExclusive(val)
		pf.bounded = true
	}
}

// upperBoundExclusive returns the smallest byte string strictly greater
// than val under lexicographic comparison, by appending a zero byte —
// the same trick key_encoder_binary.go's EncodePrefixRange uses for an
// exclusive range end.
func upperBoundExclusive(val []byte) []byte {
	out := make([]byte, len(val)+1)
	copy(out, val)
	return out
}

// encodeSortValue produces an order-preserving byte encoding for the
// literal types a sort-key column can hold: strings compare
// byte-for-byte already; signed integers are offset-binary encoded
// (sign bit flipped) so two's-complement values compare correctly as
// unsigned big-endian bytes.
func encodeSortValue(v interface{}) ([]byte, bool) {
	switch n := v.(type) {
	case string:
		return []byte(n), true
	case int64:
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(n)^(1<<63))
		return buf, true
	case int:
		return encodeSortValue(int64(n))
	case float64:
		// Not order-preserving for floats without IEEE-754 bit tricks;
		// this repo's sort-key columns exclude ColFloat64 (see
		// ColumnType.Sortable), so this branch is unreachable for real
		// partition bounds and exists only to avoid a panic.
		return nil, false
	default:
		return nil, false
	}
}

// canMatch reports whether a partition's [min, max) range can contain a
// row matching pf, mirroring PartitionFilter::can_match.
func (pf partitionFilter) canMatch(min, max catalog.RowBound) bool {
	if !pf.bounded {
		return true
	}
	if pf.lower != nil && max != nil && bytes.Compare(pf.lower, []byte(max)) >= 0 {
		return false
	}
	if pf.upper != nil && min != nil && bytes.Compare([]byte(min), pf.upper) >= 0 {
		return false
	}
	return true
}

// PrunedPartition is one surviving partition plus the chunks visible
// through it, including chunks inherited from an ancestor not yet
// repartitioned (spec.md §4.8).
type PrunedPartition struct {
	Partition catalog.Partition
	Chunks    []catalog.Chunk
}

// PrunePartitions applies index_min_max-style bound pruning to the
// index's active-partition set, and returns the set of surviving
// partition ids as a roaring64 bitmap alongside the pruned rows — the
// domain-stack binding for RoaringBitmap/roaring/v2 (a compact
// surviving-id set instead of a plain map, since a single large fact
// table can have tens of thousands of partitions).
func PrunePartitions(index catalog.Index, filters []logicalplan.Expr, candidates []catalog.PartitionChunks) ([]PrunedPartition, *roaring64.Bitmap) {
	pf := extractPartitionFilter(index, filters)
	survivors := roaring64.New()

	var out []PrunedPartition
	for _, pc := range candidates {
		if !pf.canMatch(pc.Partition.Min, pc.Partition.Max) {
			continue
		}
		survivors.Add(uint64(pc.Partition.ID))
		out = append(out, PrunedPartition{Partition: pc.Partition, Chunks: pc.Chunks})
	}
	return out, survivors
}
