package planlang

// This file collects the small, comparable structs stored in Node.Data
// for kinds whose leaf attributes don't fit a single scalar. Every type
// here must be comparable (no slices/maps/funcs) so nodes hash-cons
// correctly; variable-length attributes are always encoded as children
// via AddList instead (see list.go).

// ColumnAttrs is the Data of a Column or OuterColumn node.
type ColumnAttrs struct {
	Relation string
	Name     string
}

// AliasAttrs is the Data of an Alias node.
type AliasAttrs struct {
	Name string
}

// LiteralAttrs is the Data of a Literal node. Value must itself be
// comparable (string, int64, float64, bool, or a fixed-size time value).
type LiteralAttrs struct {
	Value interface{}
	Type  DataTypeTag
}

// DataTypeTag mirrors logicalplan.DataType without importing it (which
// would create a planlang <-> logicalplan cycle); convert translates
// between the two.
type DataTypeTag struct {
	Kind      uint8
	Precision int
	Scale     int
	Flavor    string
}

// NegatableAttrs is the Data of Like/ILike/SimilarTo/Between/InList.
type NegatableAttrs struct {
	Negated bool
}

// CastAttrs is the Data of Cast/TryCast.
type CastAttrs struct {
	To DataTypeTag
}

// SortAttrs is the Data of SortExpr and OrderEntry-within-relational-sort.
type SortAttrs struct {
	Asc        bool
	NullsFirst bool
}

// FuncAttrs is the Data of ScalarFunction/AggregateFunction.
type FuncAttrs struct {
	Name     string
	Distinct bool // meaningful only for AggregateFunction
	UDF      bool // meaningful only for ScalarFunction
}

// WindowAttrs is the Data of WindowFunction.
type WindowAttrs struct {
	Name       string
	FrameUnits string
	FrameStart string
	FrameEnd   string
}

// IndexedFieldAttrs is the Data of IndexedField.
type IndexedFieldAttrs struct {
	Key string
}

// WildcardAttrs is the Data of Wildcard.
type WildcardAttrs struct {
	Qualifier string
}

// JoinAttrs is the Data of Join.
type JoinAttrs struct {
	Kind string // "inner" | "left" | "right" | "full"
}

// TableScanAttrs is the Data of TableScan.
type TableScanAttrs struct {
	Source         string
	ProjectionMask string // comma-joined column indices, "" means all columns
	HasFetch       bool
	Fetch          int64
}

// LimitAttrs is the Data of Limit.
type LimitAttrs struct {
	Skip     int64
	HasFetch bool
	Fetch    int64
}

// UnionAttrs is the Data of Union.
type UnionAttrs struct {
	Alias string
}

// SubqueryAttrs is the Data of Subquery.
type SubqueryAttrs struct {
	Alias string
}

// CubeScanAttrs is the Data of CubeScan.
type CubeScanAttrs struct {
	HasLimit  bool
	Limit     int64
	HasOffset bool
	Offset    int64
	Ungrouped bool
	Wrapped   bool
}

// WrappedSelectAttrs is the Data of WrappedSelect.
type WrappedSelectAttrs struct {
	Ungrouped bool
}

// MemberAttrs is the Data of every member leaf kind (Measure, Dimension,
// TimeDimension, Segment, ChangeUser, LiteralMember, VirtualField,
// MemberError, AllMembers).
type MemberAttrs struct {
	Name         string
	Granularity  string // TimeDimension only
	HasDateRange bool   // TimeDimension only
	DateFrom     string
	DateTo       string
	Error        string      // MemberError only
	LiteralVal   interface{} // LiteralMember only; must be comparable
}

// CubeFilterAtomAttrs is the Data of CubeFilterAtom.
type CubeFilterAtomAttrs struct {
	Member string
	Op     string
}

// CubeFilterRefAttrs is the Data of CubeFilterSegmentRef.
type CubeFilterRefAttrs struct {
	Name string
}

// OrderEntryAttrs is the Data of OrderEntry.
type OrderEntryAttrs struct {
	Member string
	Desc   bool
}
