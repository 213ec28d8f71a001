// Package cost implements the lexicographic PlanCost tuple and the
// top-down, state-dependent extractor described in spec.md §3/§4.4 (C4).
//
// Grounded directly on
// _examples/original_source/rust/cubesql/cubesql/src/compile/rewrite/cost.rs
// (CubePlanCost/BestCubePlan/TopDownExtractor): field order, add_child
// zeroing rules and finalize's state-dependent adjustments are ported
// field-for-field from that source, adapted to planlang's smaller,
// Go-native Kind enumeration (e.g. the dozen distinct *Replacer kinds of
// the original collapse onto planlang's four; FilterMember collapses
// onto CubeFilterAtom; GroupingSetExpr has no planlang analogue and is
// left always-zero). Differences are called out per-field below and in
// DESIGN.md.
package cost

import "github.com/cubegraph/cubeplan/planlang"

// PlanCost is the lexicographically ordered cost tuple of spec.md §3.
// Field order is significant: Compare walks fields top-to-bottom and the
// first field that differs decides the comparison, so declaration order
// here literally *is* the priority order the spec lists high to low.
type PlanCost struct {
	Replacers                      int64
	PenalizedASTSizeOutsideWrapper int64
	TableScans                     int64
	EmptyWrappers                  int64
	NonDetectedCubeScans           int64
	UnwrappedSubqueries            int64
	MemberErrors                   int64
	UngroupedAggregates            int64
	NonPushedDownWindow            int64
	NonPushedDownGroupingSets      int64
	NonPushedDownLimitSort         int64
	Joins                          int64
	WrapperNodes                   int64
	ASTSizeOutsideWrapper          int64
	WrappedSelectNonPushToCube     int64
	WrappedSelectUngroupedScan     int64
	Filters                        int64
	StructurePoints                int64
	ZeroMembersWrapper             int64
	FilterMembers                  int64
	CubeMembers                    int64
	ErrorPriority                  int64
	TimeDimensionsUsedAsDimensions int64
	MaxTimeDimensionsGranularity   int64
	CubeScanNodes                  int64
	ASTSizeWithoutAlias            int64
	ASTSize                        int64
	ASTSizeInsideWrapper           int64
	UngroupedNodes                 int64
}

// Compare returns -1, 0 or 1 as a is lexicographically less than, equal
// to, or greater than b — smaller is better (spec.md §8 property 6: a
// rewrite-target replacement never increases the tuple).
func Compare(a, b PlanCost) int {
	af := a.fields()
	bf := b.fields()
	for i := range af {
		switch {
		case af[i] < bf[i]:
			return -1
		case af[i] > bf[i]:
			return 1
		}
	}
	return 0
}

// Less reports whether a sorts strictly before b.
func Less(a, b PlanCost) bool { return Compare(a, b) < 0 }

func (c PlanCost) fields() [29]int64 {
	return [29]int64{
		c.Replacers, c.PenalizedASTSizeOutsideWrapper, c.TableScans,
		c.EmptyWrappers, c.NonDetectedCubeScans, c.UnwrappedSubqueries,
		c.MemberErrors, c.UngroupedAggregates, c.NonPushedDownWindow,
		c.NonPushedDownGroupingSets, c.NonPushedDownLimitSort, c.Joins,
		c.WrapperNodes, c.ASTSizeOutsideWrapper, c.WrappedSelectNonPushToCube,
		c.WrappedSelectUngroupedScan, c.Filters, c.StructurePoints,
		c.ZeroMembersWrapper, c.FilterMembers, c.CubeMembers, c.ErrorPriority,
		c.TimeDimensionsUsedAsDimensions, c.MaxTimeDimensionsGranularity,
		c.CubeScanNodes, c.ASTSizeWithoutAlias, c.ASTSize,
		c.ASTSizeInsideWrapper, c.UngroupedNodes,
	}
}

// DimensionClassifier resolves whether a named dimension is a time
// dimension, standing in for the catalog's member metadata (spec.md
// §4.4's cost function consults "original-expr"/member provenance via
// an external collaborator, just as convert.CatalogProvider does for
// C2). Pass nil when no catalog is available; every node then costs as
// a non-time dimension reference.
type DimensionClassifier interface {
	IsTimeDimension(name string) bool
}

// granularityOrder ranks the cube time-dimension granularities from
// finest (0) to coarsest, mirroring
// rust/cubesql/.../rules/utils.rs's granularity_str_to_int_order.
var granularityOrder = map[string]int64{
	"second":  0,
	"minute":  1,
	"hour":    2,
	"day":     3,
	"week":    4,
	"month":   5,
	"quarter": 6,
	"year":    7,
}

// nodeCost computes initial_cost for a single e-node, before children
// are folded in and before finalize's state-dependent adjustments.
func nodeCost(n planlang.Node, classifier DimensionClassifier) PlanCost {
	var c PlanCost

	switch n.Kind {
	case planlang.KindTableScan:
		c.TableScans = 1
	case planlang.KindCubeScan:
		c.NonDetectedCubeScans = 1
		c.CubeScanNodes = 1
		if n.Data.(planlang.CubeScanAttrs).Ungrouped {
			c.UngroupedNodes = 1
		}
	case planlang.KindWindow:
		c.NonPushedDownWindow = 1
	case planlang.KindSort:
		c.NonPushedDownLimitSort = 1
	case planlang.KindWrappedSelect:
		c.ASTSizeInsideWrapper = 1
		c.ZeroMembersWrapper = 1
		if n.Data.(planlang.WrappedSelectAttrs).Ungrouped {
			c.UngroupedNodes = 1
		}
	case planlang.KindJoin, planlang.KindCrossJoin:
		c.Joins = 1
		c.StructurePoints = 1
	case planlang.KindCubeScanWrapper:
		c.WrapperNodes = 1
	case planlang.KindCubeFilterAtom:
		c.FilterMembers = 1
	case planlang.KindFilter:
		c.Filters = 1
	case planlang.KindMemberError:
		c.MemberErrors = 1
		c.CubeMembers = 1 // preserves error priority through member-counting rules, per cost.rs comment
		c.ErrorPriority = errorPriority(n.Data.(planlang.MemberAttrs).Error)
	case planlang.KindMeasure, planlang.KindDimension, planlang.KindChangeUser,
		planlang.KindVirtualField, planlang.KindLiteralMember:
		c.CubeMembers = 1
	case planlang.KindTimeDimension:
		a := n.Data.(planlang.MemberAttrs)
		if a.Granularity != "" {
			c.CubeMembers = 1
			c.MaxTimeDimensionsGranularity = 8 - granularityOrder[a.Granularity]
		}
	case planlang.KindReplacer, planlang.KindInnerAggregateSplitReplacer,
		planlang.KindOuterAggregateSplitReplacer, planlang.KindOuterProjectionSplitReplacer:
		c.Replacers = 1
	case planlang.KindSubquery:
		c.UnwrappedSubqueries = 1
	case planlang.KindColumn:
		if classifier != nil {
			if a, ok := n.Data.(planlang.ColumnAttrs); ok && classifier.IsTimeDimension(a.Name) {
				c.TimeDimensionsUsedAsDimensions = 1
			}
		}
	}

	if n.Kind != planlang.KindAlias {
		c.ASTSizeWithoutAlias = 1
	}
	c.ASTSize = 1

	return c
}

// errorPriority ranks MemberError messages by message length, standing
// in for the original's MemberErrorPriority node; since extraction keeps
// the lower cost, the shorter message wins.
// planlang folds the priority leaf into MemberAttrs.Error directly
// rather than threading a second leaf kind, so this is a deterministic
// function of the message instead of a value carried by a sibling node.
func errorPriority(msg string) int64 {
	if msg == "" {
		return 0
	}
	return int64(len(msg))
}

// addChild folds a child's already-finalized cost into the running total
// for the parent currently being evaluated, per cost.rs's add_child. The
// two zeroing rules (non_detected_cube_scans, zero_members_wrapper reset
// to 0 whenever the child being folded in actually carries members) are
// ported verbatim: an ancestor's problem (an undetected scan, a wrapper
// with nothing inside) stops mattering once provably-nonempty members
// appear somewhere below it.
func addChild(total, child PlanCost) PlanCost {
	if child.CubeMembers != 0 {
		total.NonDetectedCubeScans = 0
		total.ZeroMembersWrapper = 0
	}
	total.Replacers += child.Replacers
	total.TableScans += child.TableScans
	total.Filters += child.Filters
	total.NonDetectedCubeScans += child.NonDetectedCubeScans
	total.FilterMembers += child.FilterMembers
	total.NonPushedDownWindow += child.NonPushedDownWindow
	total.NonPushedDownGroupingSets += child.NonPushedDownGroupingSets
	total.NonPushedDownLimitSort += child.NonPushedDownLimitSort
	total.MemberErrors += child.MemberErrors
	total.ZeroMembersWrapper += child.ZeroMembersWrapper
	total.CubeMembers += child.CubeMembers
	total.ErrorPriority += child.ErrorPriority
	total.StructurePoints += child.StructurePoints
	total.Joins += child.Joins
	total.EmptyWrappers += child.EmptyWrappers
	total.ASTSizeOutsideWrapper += child.ASTSizeOutsideWrapper
	total.UngroupedAggregates += child.UngroupedAggregates
	total.WrapperNodes += child.WrapperNodes
	total.WrappedSelectNonPushToCube += child.WrappedSelectNonPushToCube
	total.WrappedSelectUngroupedScan += child.WrappedSelectUngroupedScan
	total.CubeScanNodes += child.CubeScanNodes
	total.TimeDimensionsUsedAsDimensions += child.TimeDimensionsUsedAsDimensions
	if child.MaxTimeDimensionsGranularity > total.MaxTimeDimensionsGranularity {
		total.MaxTimeDimensionsGranularity = child.MaxTimeDimensionsGranularity
	}
	total.ASTSizeWithoutAlias += child.ASTSizeWithoutAlias
	total.ASTSize += child.ASTSize
	total.ASTSizeInsideWrapper += child.ASTSizeInsideWrapper
	total.UngroupedNodes += child.UngroupedNodes
	total.UnwrappedSubqueries += child.UnwrappedSubqueries
	return total
}

// finalize applies the state-dependent adjustments of cost.rs's
// CubePlanCost::finalize, using the State already transformed for the
// node under evaluation (see state.go).
func finalize(total PlanCost, st State, n planlang.Node, penalizePostProcessing bool) PlanCost {
	outsideWrapper := total.ASTSizeOutsideWrapper
	if st.Wrap == Unwrapped {
		outsideWrapper += st.WrapSize
	}
	total.ASTSizeOutsideWrapper = outsideWrapper
	if penalizePostProcessing {
		total.PenalizedASTSizeOutsideWrapper = outsideWrapper
	} else {
		total.PenalizedASTSizeOutsideWrapper = 0
	}

	if st.Wrap != Unwrapped {
		total.NonDetectedCubeScans = 0
		total.NonPushedDownGroupingSets = 0
	}

	switch st.Sort {
	case SortDirectChild, SortCurrent:
		// keep accumulated non_pushed_down_limit_sort
	default:
		total.NonPushedDownLimitSort = 0
	}

	if st.Wrap == Wrapper {
		if total.ASTSizeInsideWrapper == 0 {
			total.EmptyWrappers++
		}
	}

	if st.Wrap == Unwrapped && n.Kind == planlang.KindAggregate && total.UngroupedNodes > 0 {
		total.UngroupedAggregates++
	}

	return total
}
