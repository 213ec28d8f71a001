// Package hll implements the HyperLogLog cardinality sketch surface
// spec.md §4.10 names: a shared Sketch interface over a sparse,
// map-backed representation that promotes to a dense, array-backed one,
// with linear-counting for near-empty sketches and an empirical
// bias-correction table for the mid-range estimate.
//
// Grounded on original_source/rust/cubestore/cubehll/src/instance.rs for
// the estimator algorithm (alpha/linear-counting/bias-correction
// formulas carried over exactly); this repo does not reproduce
// instance.rs's airlift-compatible wire encoding (4-bit packed nibble
// deltas, overflow array, v1/v2 tag framing) since byte-for-byte wire
// compatibility with the original's on-disk HLL format is a wire/storage
// concern the spec's Non-goals exclude. The precision range, promotion
// behavior and bias-correction method are preserved; see DESIGN.md.
package hll

import (
	"fmt"
	"math"
)

// Flavor distinguishes the two HLL encodings spec.md's Column entity
// names (catalog.ColumnType.HLLFlavor): "airlift" and "zetasketch". Both
// flavors share this package's estimator; the tag exists so a codec
// boundary can later choose a different wire encoding per flavor without
// touching the estimation math.
type Flavor string

const (
	FlavorAirlift    Flavor = "airlift"
	FlavorZetasketch Flavor = "zetasketch"
)

// MinPrecision and MaxPrecision bound the index bit length (the number
// of buckets is 2^precision), matching instance.rs's bias-correction
// table range.
const (
	MinPrecision = 4
	MaxPrecision = 18
)

// Sketch is the estimator surface every flavor and representation
// (sparse, dense) implements.
type Sketch interface {
	// Add records one element's 64-bit hash.
	Add(hash uint64)
	// Cardinality returns the current cardinality estimate.
	Cardinality() uint64
	// Precision returns the sketch's index bit length.
	Precision() uint8
	// Flavor returns which wire-format family this sketch belongs to.
	Flavor() Flavor
	// Merge absorbs another sketch of the same precision and flavor.
	// Returns an error if they don't match (spec.md §4.10: "precision
	// mismatch rejects the merge").
	Merge(other Sketch) error
}

// New creates an empty sparse sketch at the given precision, the same
// starting representation HllInstance::new uses.
func New(flavor Flavor, precision uint8) (*Instance, error) {
	if precision < MinPrecision || precision > MaxPrecision {
		return nil, fmt.Errorf("hll: precision %d out of range [%d,%d]", precision, MinPrecision, MaxPrecision)
	}
	return &Instance{repr: newSparseHll(flavor, precision)}, nil
}

func numBuckets(precision uint8) uint32 { return 1 << precision }

// computeValue returns the number of leading zero bits of the part of
// hash not consumed by the bucket index, plus one — the same formula as
// instance.rs's compute_value/number_of_leading_zeros.
func computeValue(hash uint64, precision uint8) uint8 {
	shifted := (hash << precision) | (1 << (precision - 1))
	zeros := 0
	for bit := 63; bit >= 0; bit-- {
		if shifted&(1<<uint(bit)) != 0 {
			break
		}
		zeros++
	}
	return uint8(zeros) + 1
}

func bucketOf(hash uint64, precision uint8) uint32 {
	return uint32(hash >> (64 - precision))
}

// alpha is the HyperLogLog bias-correction constant, exact for the
// smallest precisions and asymptotic above that (instance.rs's alpha).
func alpha(precision uint8) float64 {
	switch precision {
	case 4:
		return 0.673
	case 5:
		return 0.697
	case 6:
		return 0.709
	default:
		m := float64(numBuckets(precision))
		return 0.7213 / (1.0 + 1.079/m)
	}
}

func linearCounting(zeroBuckets, totalBuckets uint32) float64 {
	total := float64(totalBuckets)
	if zeroBuckets == 0 {
		return total * 50 // degenerate: every bucket populated, avoid ln(inf)
	}
	return total * math.Log(total/float64(zeroBuckets))
}
