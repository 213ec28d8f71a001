package cost

import "github.com/cubegraph/cubeplan/planlang"

// WrapState tracks whether the node currently being costed sits outside
// any CubeScanWrapper, inside one but not yet resolved to a pushed-down
// scan, or inside one whose CubeScan has already resolved wrapped=true
// (spec.md §4.4 "Extraction state transitions").
type WrapState int

const (
	Unwrapped WrapState = iota
	Wrapper
	Wrapped
)

// SortState tracks whether the node currently being costed is the direct
// sort child of a Limit, so non_pushed_down_limit_sort is only charged
// in that narrow window (spec.md §4.4).
type SortState int

const (
	SortNone SortState = iota
	SortCurrent
	SortDirectChild
)

// State is the top-down extraction state threaded through find_best; it
// cannot be computed by a bottom-up fold (spec.md §9 "State during
// extraction"), so the extractor carries it explicitly and keys its
// memo table on (class, State) rather than on class alone.
type State struct {
	Wrap WrapState
	// WrapSize is the ast_size_outside_wrapper contribution of the node
	// that produced this State, valid only when Wrap == Unwrapped; it is
	// folded into the running total at finalize time, not at transform
	// time, matching cost.rs's CubePlanState::Unwrapped(usize) payload.
	WrapSize int64
	Sort     SortState
}

// astSizeOutsideWrapperKinds mirrors cost.rs's CubePlanTopDownState match
// arm: only these node kinds count against ast_size_outside_wrapper when
// they occur outside a wrapper.
var astSizeOutsideWrapperKinds = map[planlang.Kind]bool{
	planlang.KindAggregate:  true,
	planlang.KindProjection: true,
	planlang.KindLimit:      true,
	planlang.KindSort:       true,
	planlang.KindFilter:     true,
	planlang.KindJoin:       true,
	planlang.KindCrossJoin:  true,
	planlang.KindUnion:      true,
	planlang.KindWindow:     true,
	planlang.KindSubquery:   true,
}

// transform computes the State under which n's children (and n's own
// finalize step) are evaluated, given the State inherited from n's
// parent.
func transform(s State, n planlang.Node) State {
	var wrap WrapState
	switch {
	case n.Kind == planlang.KindCubeScanWrapper:
		wrap = Wrapper
	case s.Wrap == Wrapped:
		wrap = Wrapped
	case n.Kind == planlang.KindCubeScan && n.Data.(planlang.CubeScanAttrs).Wrapped:
		wrap = Wrapped
	default:
		wrap = Unwrapped
	}

	var wrapSize int64
	if wrap == Unwrapped && astSizeOutsideWrapperKinds[n.Kind] {
		wrapSize = 1
	}

	var sort SortState
	switch {
	case n.Kind == planlang.KindLimit:
		sort = SortDirectChild
	case n.Kind == planlang.KindSort && s.Sort == SortDirectChild:
		sort = SortCurrent
	default:
		sort = SortNone
	}

	return State{Wrap: wrap, WrapSize: wrapSize, Sort: sort}
}
