// Package planlang implements the plan language and e-graph described in
// the cube query engine's logical rewrite core: a closed enumeration of
// plan and expression node kinds, and an e-graph that stores classes of
// equivalent terms over that language.
//
// The design mirrors the teacher's interning and arena style
// (datalog/intern.go, datalog/identity.go): nodes are small value types
// hashed by their kind and children, and the graph itself owns all
// storage — there are no pointers between nodes, only integer ids.
package planlang

// Kind enumerates every plan and expression node kind in the plan
// language. Arity (number of children) is fixed per kind; see Arity().
type Kind uint16

const (
	KindInvalid Kind = iota

	// KindAbsent is the placeholder child for an optional position (a
	// CASE with no subject, a JOIN with no extra constraint, a CubeScan
	// with no filter) so every kind keeps a fixed arity instead of
	// growing a variable one for "maybe present" fields.
	KindAbsent

	// --- expression kinds ---
	KindAlias
	KindColumn
	KindLiteral
	KindNot
	KindIsNull
	KindIsNotNull
	KindNegative
	KindBinaryExpr
	KindLike
	KindILike
	KindSimilarTo
	KindBetween
	KindCase
	KindCast
	KindTryCast
	KindSortExpr
	KindScalarFunction
	KindAggregateFunction
	KindWindowFunction
	KindInList
	KindWildcard
	KindOuterColumn
	KindIndexedField

	// --- list spine (cons-cells); see list.go ---
	KindListNil
	KindListCons

	// --- plan kinds ---
	KindProjection
	KindFilter
	KindWindow
	KindAggregate
	KindSort
	KindJoin
	KindCrossJoin
	KindUnion
	KindSubquery
	KindTableUDF
	KindTableScan
	KindEmptyRelation
	KindLimit
	KindDistinct

	// --- cube-domain extensions ---
	KindCubeScan
	KindCubeScanWrapper
	KindWrappedSelect

	// --- member kinds, annotate a CubeScan's output ---
	KindMeasure
	KindDimension
	KindTimeDimension
	KindSegment
	KindChangeUser
	KindLiteralMember
	KindVirtualField
	KindMemberError
	KindAllMembers

	// --- cube filter-tree kinds, carried inside a CubeScan's filter slot ---
	KindCubeFilterAtom
	KindCubeFilterAnd
	KindCubeFilterOr
	KindCubeFilterSegmentRef
	KindCubeFilterChangeUserRef

	// --- cube order entry, carried inside a CubeScan's order-list ---
	KindOrderEntry

	// --- rewrite-engine intermediate marker kinds ---
	KindReplacer
	KindInnerAggregateSplitReplacer
	KindOuterAggregateSplitReplacer
	KindOuterProjectionSplitReplacer
)

// arityTable records the fixed number of e-class children for every kind.
// Leaf attributes (operator, alias, literal value, ...) live in the
// node's Data field and do not count as children.
var arityTable = map[Kind]int{
	KindAbsent: 0,

	KindAlias:             1, // expr
	KindColumn:            0,
	KindLiteral:           0,
	KindNot:               1,
	KindIsNull:            1,
	KindIsNotNull:         1,
	KindNegative:          1,
	KindBinaryExpr:        2, // left, right
	KindLike:              2, // expr, pattern
	KindILike:             2,
	KindSimilarTo:         2,
	KindBetween:           3, // expr, low, high
	KindCase:              3, // subject(or Absent), when-then-list, else(or Absent)
	KindCast:              1, // expr (target type is leaf Data)
	KindTryCast:           1,
	KindSortExpr:          1, // expr (asc/nulls-first are leaf Data)
	KindScalarFunction:    1, // args-list
	KindAggregateFunction: 1, // args-list (name/distinct flag are leaf Data)
	KindWindowFunction:    3, // args-list, partition-by-list, order-by-list (name/frame are leaf Data)
	KindInList:            2, // expr, list
	KindWildcard:          0,
	KindOuterColumn:       0,
	KindIndexedField:      1, // expr (field key is leaf Data)

	KindListNil:  0,
	KindListCons: 2, // head, tail

	KindProjection:    2, // expr-list, input
	KindFilter:        2, // predicate, input
	KindWindow:        2, // window-expr-list, input
	KindAggregate:     3, // group-expr-list, agg-expr-list, input
	KindSort:          2, // sort-expr-list, input
	KindJoin:          4, // left, right, join-keys-list, constraint(or Absent); kind is leaf Data
	KindCrossJoin:     2, // left, right
	KindUnion:         1, // inputs-list
	KindSubquery:      1, // input
	KindTableUDF:      2, // args-list, input(lateral source)
	KindTableScan:     1, // filters-list (source/projection/fetch are leaf Data)
	KindEmptyRelation: 0,
	KindLimit:         1, // input (skip/fetch are leaf Data)
	KindDistinct:      1, // input

	KindCubeScan:        3, // members-list, filter(or Absent), order-list; limit/offset/flags are leaf Data
	KindCubeScanWrapper: 1, // input
	KindWrappedSelect:   1, // input (ungrouped flag is leaf Data)

	KindMeasure:       0,
	KindDimension:     0,
	KindTimeDimension: 0,
	KindSegment:       0,
	KindChangeUser:    0,
	KindLiteralMember: 0,
	KindVirtualField:  0,
	KindMemberError:   0,
	KindAllMembers:    0,

	KindCubeFilterAtom:         1, // values-list; member/op are leaf Data
	KindCubeFilterAnd:          1, // list of filter ids
	KindCubeFilterOr:           1, // list of filter ids
	KindCubeFilterSegmentRef:   0, // segment name is leaf Data
	KindCubeFilterChangeUserRef: 0,

	KindOrderEntry: 0, // member/desc are leaf Data

	KindReplacer:                     1,
	KindInnerAggregateSplitReplacer:  1,
	KindOuterAggregateSplitReplacer:  1,
	KindOuterProjectionSplitReplacer: 1,
}

// Arity returns the fixed number of e-class children for kind.
func Arity(k Kind) int {
	n, ok := arityTable[k]
	if !ok {
		panic("planlang: unknown kind in Arity()")
	}
	return n
}

// IsLeaf reports whether kind carries no e-class children (arity 0),
// meaning any identity comes purely from its Data attribute.
func IsLeaf(k Kind) bool {
	return Arity(k) == 0
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "Unknown"
}

var kindNames = map[Kind]string{
	KindAbsent: "Absent",
	KindAlias:  "Alias", KindColumn: "Column", KindLiteral: "Literal",
	KindNot: "Not", KindIsNull: "IsNull", KindIsNotNull: "IsNotNull",
	KindNegative: "Negative", KindBinaryExpr: "BinaryExpr", KindLike: "Like",
	KindILike: "ILike", KindSimilarTo: "SimilarTo", KindBetween: "Between",
	KindCase: "Case", KindCast: "Cast", KindTryCast: "TryCast",
	KindSortExpr: "SortExpr", KindScalarFunction: "ScalarFunction",
	KindAggregateFunction: "AggregateFunction", KindWindowFunction: "WindowFunction",
	KindInList: "InList", KindWildcard: "Wildcard", KindOuterColumn: "OuterColumn",
	KindIndexedField: "IndexedField",
	KindListNil:      "ListNil", KindListCons: "ListCons",
	KindProjection: "Projection", KindFilter: "Filter", KindWindow: "Window",
	KindAggregate: "Aggregate", KindSort: "Sort", KindJoin: "Join",
	KindCrossJoin: "CrossJoin", KindUnion: "Union", KindSubquery: "Subquery",
	KindTableUDF: "TableUDF", KindTableScan: "TableScan",
	KindEmptyRelation: "EmptyRelation", KindLimit: "Limit", KindDistinct: "Distinct",
	KindCubeScan: "CubeScan", KindCubeScanWrapper: "CubeScanWrapper",
	KindWrappedSelect: "WrappedSelect",
	KindMeasure:       "Measure", KindDimension: "Dimension",
	KindTimeDimension: "TimeDimension", KindSegment: "Segment",
	KindChangeUser: "ChangeUser", KindLiteralMember: "LiteralMember",
	KindVirtualField: "VirtualField", KindMemberError: "MemberError",
	KindAllMembers: "AllMembers",
	KindCubeFilterAtom: "CubeFilterAtom", KindCubeFilterAnd: "CubeFilterAnd",
	KindCubeFilterOr: "CubeFilterOr", KindCubeFilterSegmentRef: "CubeFilterSegmentRef",
	KindCubeFilterChangeUserRef: "CubeFilterChangeUserRef",
	KindOrderEntry:              "OrderEntry",
	KindReplacer:                     "Replacer",
	KindInnerAggregateSplitReplacer:  "InnerAggregateSplitReplacer",
	KindOuterAggregateSplitReplacer:  "OuterAggregateSplitReplacer",
	KindOuterProjectionSplitReplacer: "OuterProjectionSplitReplacer",
}
