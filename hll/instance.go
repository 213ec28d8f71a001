package hll

// Instance is the mutable handle returned by New: it starts sparse and
// promotes itself to dense once the sparse map stops being cheap
// (HllInstance's Sparse/Dense enum in the original, expressed here as a
// struct that swaps its inner representation instead of matching on an
// enum at every call site).
type Instance struct {
	repr Sketch
}

func (h *Instance) Precision() uint8 { return h.repr.Precision() }
func (h *Instance) Flavor() Flavor   { return h.repr.Flavor() }
func (h *Instance) Cardinality() uint64 { return h.repr.Cardinality() }

func (h *Instance) Add(hash uint64) {
	h.repr.Add(hash)
	if s, ok := h.repr.(*sparseHll); ok && s.shouldPromote() {
		h.repr = s.toDense()
	}
}

// Merge absorbs other. When either side is dense, the receiver is
// promoted to dense first and a sparse other is merged into it as it is
// (DenseHll::merge_with_sparse in the original); a sparse-into-sparse
// merge that grows too large promotes afterward.
func (h *Instance) Merge(other Sketch) error {
	o := other
	if wrapped, ok := other.(*Instance); ok {
		o = wrapped.repr
	}
	if err := checkCompatible(h.repr, o); err != nil {
		return err
	}

	switch {
	case isDense(h.repr) || isDense(o):
		if !isDense(h.repr) {
			h.repr = h.repr.(*sparseHll).toDense()
		}
		return h.repr.Merge(o)
	default:
		if err := h.repr.Merge(o); err != nil {
			return err
		}
		if s := h.repr.(*sparseHll); s.shouldPromote() {
			h.repr = s.toDense()
		}
		return nil
	}
}

func isDense(s Sketch) bool {
	_, ok := s.(*denseHll)
	return ok
}
