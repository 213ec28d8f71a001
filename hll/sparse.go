package hll

import "fmt"

// sparseHll is the starting representation for every new sketch: a
// bucket->value map, cheap while the true cardinality is far below the
// bucket count. instance.rs packs entries into a sorted []u32 of
// (bucket, encoded-value) pairs for compact wire framing; this repo uses
// a plain map instead, matching the same "cheap while sparse" intent
// without replicating the packed entry encoding (see package doc).
type sparseHll struct {
	flavor    Flavor
	precision uint8
	entries   map[uint32]uint8
}

func newSparseHll(flavor Flavor, precision uint8) *sparseHll {
	return &sparseHll{flavor: flavor, precision: precision, entries: map[uint32]uint8{}}
}

func (s *sparseHll) Precision() uint8 { return s.precision }
func (s *sparseHll) Flavor() Flavor   { return s.flavor }

func (s *sparseHll) Add(hash uint64) {
	bucket := bucketOf(hash, s.precision)
	value := computeValue(hash, s.precision)
	if value > s.entries[bucket] {
		s.entries[bucket] = value
	}
}

// Cardinality estimates via linear counting over this sketch's own
// bucket count. instance.rs estimates sparse sketches over a much finer
// 2^26-bucket virtual space (using the unconsumed hash bits it still has
// on hand) for extra precision while sparse; this repo's map entries
// don't retain those extra bits, so estimation here falls back to the
// same bucket count the eventual dense sketch would use. Documented
// simplification, see DESIGN.md.
func (s *sparseHll) Cardinality() uint64 {
	total := numBuckets(s.precision)
	zero := total - uint32(len(s.entries))
	return round(linearCounting(zero, total))
}

func (s *sparseHll) Merge(other Sketch) error {
	if err := checkCompatible(s, other); err != nil {
		return err
	}
	o, ok := other.(*sparseHll)
	if !ok {
		return fmt.Errorf("hll: merge sparse with %T without promoting first", other)
	}
	for bucket, v := range o.entries {
		if v > s.entries[bucket] {
			s.entries[bucket] = v
		}
	}
	return nil
}

// shouldPromote reports whether the sparse map has grown to a quarter of
// the bucket count, the point past which a map entry per populated
// bucket costs at least as much as a dense byte array (the crossover the
// original's estimate_in_memory_size comparison guards).
func (s *sparseHll) shouldPromote() bool {
	return len(s.entries) >= int(numBuckets(s.precision))/4
}

func (s *sparseHll) toDense() *denseHll {
	d := newDenseHll(s.flavor, s.precision)
	for bucket, v := range s.entries {
		d.insert(bucket, v)
	}
	return d
}

func checkCompatible(self Sketch, other Sketch) error {
	if self.Precision() != other.Precision() {
		return fmt.Errorf("hll: cannot merge sketches of precision %d and %d", self.Precision(), other.Precision())
	}
	if self.Flavor() != other.Flavor() {
		return fmt.Errorf("hll: cannot merge %s and %s sketches", self.Flavor(), other.Flavor())
	}
	return nil
}
