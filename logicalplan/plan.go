package logicalplan

// Plan is the marker interface for every plan-kind node named in
// spec.md §3, plus the three cube-domain extensions.
type Plan interface {
	isPlan()
	Schema() *Schema
}

type Projection struct {
	Exprs  []Expr
	Input  Plan
	schema *Schema
}

type Filter struct {
	Predicate Expr
	Input     Plan
}

type Window struct {
	WindowExprs []Expr
	Input       Plan
	schema      *Schema
}

type Aggregate struct {
	GroupExprs []Expr
	AggExprs   []Expr
	Input      Plan
	schema     *Schema
}

type Sort struct {
	SortExprs []SortExpr
	Input     Plan
}

type JoinKind string

const (
	JoinInner JoinKind = "inner"
	JoinLeft  JoinKind = "left"
	JoinRight JoinKind = "right"
	JoinFull  JoinKind = "full"
)

type Join struct {
	Left, Right      Plan
	LeftKeys         []Expr
	RightKeys        []Expr
	Kind             JoinKind
	Constraint       Expr // additional non-equi constraint, may be nil
	schema           *Schema
}

type CrossJoin struct {
	Left, Right Plan
	schema      *Schema
}

type Union struct {
	Inputs []Plan
	Alias  string // optional
	schema *Schema
}

type Subquery struct {
	Input Plan
	Alias string
}

// TableUDF is a lateral table-valued function join.
type TableUDF struct {
	Args   []Expr
	Input  Plan // the lateral source feeding Args
	schema *Schema
}

type TableScan struct {
	SourceName string
	Projection []int // column indices kept, nil means all
	Filters    []Expr
	Fetch      *int64
	schema     *Schema
}

type EmptyRelation struct {
	ProduceOneRow bool
	schema        *Schema
}

type Limit struct {
	Skip  int64
	Fetch *int64
	Input Plan
}

type Distinct struct {
	Input Plan
}

// Values, Explain, Analyze and CreateExternalTable have no plan-language
// representation; the converter rejects them outright rather than
// silently dropping them (spec.md §4.2).
type Values struct {
	Rows   [][]Expr
	schema *Schema
}

type Explain struct {
	Plan     Plan
	Analyze  bool
	Verbose  bool
	schema   *Schema
}

type Analyze struct {
	Input  Plan
	schema *Schema
}

type CreateExternalTable struct {
	Name        string
	TableSchema *Schema
	schema      *Schema
}

func (p *Values) isPlan()              {}
func (p *Explain) isPlan()             {}
func (p *Analyze) isPlan()             {}
func (p *CreateExternalTable) isPlan() {}

func (p *Values) Schema() *Schema              { return p.schema }
func (p *Explain) Schema() *Schema             { return p.schema }
func (p *Analyze) Schema() *Schema             { return p.schema }
func (p *CreateExternalTable) Schema() *Schema { return p.schema }

func (p *Projection) isPlan()    {}
func (p *Filter) isPlan()        {}
func (p *Window) isPlan()        {}
func (p *Aggregate) isPlan()     {}
func (p *Sort) isPlan()          {}
func (p *Join) isPlan()          {}
func (p *CrossJoin) isPlan()     {}
func (p *Union) isPlan()         {}
func (p *Subquery) isPlan()      {}
func (p *TableUDF) isPlan()      {}
func (p *TableScan) isPlan()     {}
func (p *EmptyRelation) isPlan() {}
func (p *Limit) isPlan()         {}
func (p *Distinct) isPlan()      {}

func (p *Projection) Schema() *Schema    { return p.schema }
func (p *Filter) Schema() *Schema        { return p.Input.Schema() }
func (p *Window) Schema() *Schema        { return p.schema }
func (p *Aggregate) Schema() *Schema     { return p.schema }
func (p *Sort) Schema() *Schema          { return p.Input.Schema() }
func (p *Join) Schema() *Schema          { return p.schema }
func (p *CrossJoin) Schema() *Schema     { return p.schema }
func (p *Union) Schema() *Schema         { return p.schema }
func (p *Subquery) Schema() *Schema      { return p.Input.Schema() }
func (p *TableUDF) Schema() *Schema      { return p.schema }
func (p *TableScan) Schema() *Schema     { return p.schema }
func (p *EmptyRelation) Schema() *Schema { return p.schema }
func (p *Limit) Schema() *Schema         { return p.Input.Schema() }
func (p *Distinct) Schema() *Schema      { return p.Input.Schema() }

// SetSchema lets the converter attach a resynthesized schema to plan
// nodes whose shape it just reconstructed.
func SetSchema(p Plan, s *Schema) {
	switch n := p.(type) {
	case *Projection:
		n.schema = s
	case *Window:
		n.schema = s
	case *Aggregate:
		n.schema = s
	case *Join:
		n.schema = s
	case *CrossJoin:
		n.schema = s
	case *Union:
		n.schema = s
	case *TableUDF:
		n.schema = s
	case *TableScan:
		n.schema = s
	case *EmptyRelation:
		n.schema = s
	case *ClusterAggregateTopKLower:
		n.schema = s
	case *ClusterAggregateTopKUpper:
		n.schema = s
	}
}

// --- cube-domain extensions ---

// MemberKind enumerates the kinds of annotation a CubeScan can carry on
// its output.
type MemberKind uint8

const (
	MMeasure MemberKind = iota
	MDimension
	MTimeDimension
	MSegment
	MChangeUser
	MLiteralMember
	MVirtualField
	MMemberError
	MAllMembers
)

// DateRange is an inclusive-exclusive [from, to) pair of ISO date/time
// strings, or nil when unbounded.
type DateRange struct {
	From, To string
}

// Member is one entry of a CubeScan's member list.
type Member struct {
	Kind        MemberKind
	Name        string // measure/dimension/segment name, qualified
	Granularity string // only for MTimeDimension
	DateRange   *DateRange
	Error       string // only for MMemberError
	LiteralVal  interface{} // only for MLiteralMember
}

// FilterOp enumerates cube filter operators (spec.md §6 FilterItem).
type FilterOp string

const (
	FilterEquals      FilterOp = "equals"
	FilterNotEquals   FilterOp = "notEquals"
	FilterContains    FilterOp = "contains"
	FilterSet         FilterOp = "set"
	FilterNotSet      FilterOp = "notSet"
	FilterGt          FilterOp = "gt"
	FilterGte         FilterOp = "gte"
	FilterLt          FilterOp = "lt"
	FilterLte         FilterOp = "lte"
	FilterInDateRange FilterOp = "inDateRange"
	FilterBeforeDate  FilterOp = "beforeDate"
	FilterAfterDate   FilterOp = "afterDate"
)

// CubeFilter is a node of the filter tree a CubeScan carries: either an
// atom (Member/Op/Values), a segment/change-user membership, or a nested
// AND/OR combination.
type CubeFilter struct {
	Member     string
	Op         FilterOp
	Values     []string
	Segment    string // set when this atom is a segment membership
	ChangeUser bool   // set when this atom is a change-user membership
	And        []*CubeFilter
	Or         []*CubeFilter
}

type OrderEntry struct {
	Member string
	Desc   bool
}

// CubeScan is a semantic-layer read (spec.md §3).
type CubeScan struct {
	Members   []Member
	Filter    *CubeFilter // may be nil
	Order     []OrderEntry
	Limit     *int64
	Offset    *int64
	Ungrouped bool
	Wrapped   bool
	schema    *Schema
}

func (p *CubeScan) isPlan()        {}
func (p *CubeScan) Schema() *Schema { return p.schema }

// CubeScanWrapper marks a subplan that will be executed as pushed-down
// SQL against the cube's own SQL surface.
type CubeScanWrapper struct {
	Input  Plan
	schema *Schema
}

func (p *CubeScanWrapper) isPlan()        {}
func (p *CubeScanWrapper) Schema() *Schema { return p.schema }

// WrappedSelect is the in-egraph representation of a SQL select to be
// generated for a CubeScanWrapper subtree.
type WrappedSelect struct {
	Input     Plan
	Ungrouped bool
	schema    *Schema
}

func (p *WrappedSelect) isPlan()        {}
func (p *WrappedSelect) Schema() *Schema { return p.schema }

// --- physical planning extensions (spec.md §4.9) ---

// Snapshot is one index-and-partition descriptor a ClusterSend will
// distribute its child plan across.
type Snapshot struct {
	IndexID      uint64
	PartitionIDs []uint64
}

// ClusterSend wraps a chosen scan (or, after a pull-up, a transparent
// operator over one) with the snapshot set workers will run it against.
// ID distinguishes independently-pulled-up ClusterSends so joins/unions
// know which ones share a snapshot set and can be merged.
type ClusterSend struct {
	ID        int
	Input     Plan
	Snapshots []Snapshot
	// Limit/Reverse implement spec.md §4.8's limit pushdown: non-nil
	// when a limit was pushed into the per-partition scan, Reverse true
	// when the pushed scan must read its sort order backwards.
	Limit   *int64
	Reverse bool
	schema  *Schema
}

func (p *ClusterSend) isPlan()        {}
func (p *ClusterSend) Schema() *Schema { return p.Input.Schema() }

// ClusterAggregateTopKLower runs inside the cluster-send: a per-partition
// partial top-K over the same aggregate/sort spec as the Upper node.
type ClusterAggregateTopKLower struct {
	Input      Plan
	GroupExprs []Expr
	AggExprs   []AggregateFunction
	SortBy     []SortKeyRef
	Limit      int64
	schema     *Schema
}

func (p *ClusterAggregateTopKLower) isPlan()        {}
func (p *ClusterAggregateTopKLower) Schema() *Schema { return p.schema }

// ClusterAggregateTopKUpper merges partial top-K results from every
// partition and emits exactly Limit rows, preserving nulls-first/last and
// ascending/descending per key (spec.md §4.9).
type ClusterAggregateTopKUpper struct {
	Input    Plan // a ClusterSend wrapping a ClusterAggregateTopKLower
	AggExprs []AggregateFunction
	SortBy   []SortKeyRef
	Limit    int64
	schema   *Schema
}

func (p *ClusterAggregateTopKUpper) isPlan()        {}
func (p *ClusterAggregateTopKUpper) Schema() *Schema { return p.schema }

// SortKeyRef names one top-K sort key by its position in the merged
// aggregate output, with its own direction and null ordering.
type SortKeyRef struct {
	OutputIndex int
	Desc        bool
	NullsFirst  bool
}
