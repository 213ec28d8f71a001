// Package catalog implements the metastore (spec.md §4.6/§3/§6): a
// durable key-value store of schemas, tables, indexes, partitions,
// chunks, write-ahead-log segments, jobs and multi-partitions, with
// secondary indexes, per-kind sequences, transactional batched writes
// and an event stream.
//
// Grounded on the teacher's datalog/storage package: badger_store.go for
// the single-engine, lock-disciplined read/write split, and
// key_encoder_binary.go for the per-index fixed-prefix byte layout
// style, generalized here to the three key families spec.md §6 names.
package catalog

import "time"

// EntityID is the 64-bit row id spec.md §3 assigns from a per-kind
// monotonic sequence.
type EntityID uint64

// Kind is the closed set of entity kinds spec.md §3 enumerates, each
// bound to a fixed table id for the primary-key byte layout.
type Kind uint8

const (
	KindSchema Kind = iota
	KindTable
	KindColumn
	KindIndex
	KindPartition
	KindChunk
	KindWAL
	KindJob
	KindMultiPartition
)

func (k Kind) String() string {
	switch k {
	case KindSchema:
		return "schema"
	case KindTable:
		return "table"
	case KindColumn:
		return "column"
	case KindIndex:
		return "index"
	case KindPartition:
		return "partition"
	case KindChunk:
		return "chunk"
	case KindWAL:
		return "wal"
	case KindJob:
		return "job"
	case KindMultiPartition:
		return "multi_partition"
	default:
		return "unknown"
	}
}

// ColumnType is the closed set of column types spec.md §3 names.
type ColumnType struct {
	Kind      ColumnTypeKind
	HLLFlavor string // only meaningful when Kind == ColHLL: "airlift" | "zetasketch"
	Precision int    // only meaningful when Kind == ColDecimal
	Scale     int    // only meaningful when Kind == ColDecimal
}

type ColumnTypeKind uint8

const (
	ColString ColumnTypeKind = iota
	ColInt64
	ColBytes
	ColHLL
	ColTimestamp
	ColDecimal
	ColFloat64
	ColBool
)

// Sortable reports whether a column of this type may be a sort-key
// column of the default index (spec.md §4.6: "all non-decimal/bytes/
// float columns").
func (t ColumnType) Sortable() bool {
	switch t.Kind {
	case ColDecimal, ColBytes, ColFloat64:
		return false
	default:
		return true
	}
}

// Schema is the root namespace entity: just a unique name.
type Schema struct {
	ID   EntityID
	Name string
}

// Column is one column of a Table, in declared position.
type Column struct {
	Name     string
	Type     ColumnType
	Position int
}

// Table belongs to a Schema and owns a set of Columns and Indexes.
type Table struct {
	ID              EntityID
	SchemaID        EntityID
	Name            string
	Columns         []Column
	Locations       []string // optional import file locations
	ImportFormat    string   // optional
	CreatedAt       time.Time
	HasData         bool
	AggregateColumn []string // column names eligible for SUM/MIN/MAX/MERGE aggregate indexes
}

// IndexType distinguishes an aggregate-projection index from a regular
// sort-order index (spec.md §4.6 Index entity).
type IndexType uint8

const (
	IndexRegular IndexType = iota
	IndexAggregate
)

// Index belongs to a Table. Columns is the full projected column list in
// index order; the leading SortKeySize of them are the sort key.
type Index struct {
	ID           EntityID
	TableID      EntityID
	Name         string
	Columns      []string
	SortKeySize  int
	MultiIndexID *EntityID // optional: co-located partitioned index group
	Type         IndexType
}

// RowBound is an opaque, comparable encoding of a row's sort-key prefix,
// used as a partition's min/max bound. spec.md leaves the row
// representation to the (out-of-scope) execution runtime; this repo
// treats it as opaque ordered bytes, comparable with bytes.Compare.
type RowBound []byte

// Partition belongs to an Index, optionally nested under a parent
// partition (repartitioning), and owns zero or more Chunks.
type Partition struct {
	ID                EntityID
	IndexID           EntityID
	ParentID          *EntityID
	Min               RowBound // optional
	Max               RowBound // optional
	Active            bool
	WarmedUp          bool
	MainTableRowCount int64
	LastUsed          *time.Time
	MultiPartitionID  *EntityID
}

// Chunk belongs to a Partition: a unit of uploaded, queryable data.
type Chunk struct {
	ID        EntityID
	PartitionID EntityID
	RowCount  int64
	Uploaded  bool
	Active    bool
	LastUsed  *time.Time
}

// WAL is an uncompacted write-ahead-log segment pending ingestion into a
// Table's partitions.
type WAL struct {
	ID       EntityID
	TableID  EntityID
	RowCount int64
	Uploaded bool
}

// JobStatus is the closed state machine of a Job (spec.md §4.6).
type JobStatus struct {
	Phase           JobPhase
	ProcessingNode  string // only meaningful when Phase == JobProcessing
	ErrorMessage    string // only meaningful when Phase == JobError
}

type JobPhase uint8

const (
	JobScheduled JobPhase = iota
	JobProcessing
	JobCompleted
	JobError
)

// RowReference names the entity a Job operates on (e.g. a WAL id or a
// Partition id), opaque beyond its kind and id.
type RowReference struct {
	Kind Kind
	ID   EntityID
}

// Job is a unit of asynchronous background work (compaction, repartition,
// upload) tracked by the metastore so at most one job runs per
// (row reference, kind) at a time.
type Job struct {
	ID            EntityID
	RowReference  RowReference
	JobKind       string
	Status        JobStatus
	LastHeartbeat time.Time
}

// MultiPartition is a tree node used to co-locate partitions of
// different, joined tables under a shared identifier (spec.md §3
// Relationships).
type MultiPartition struct {
	ID       EntityID
	ParentID *EntityID
	Min      RowBound
	Max      RowBound
	Active   bool
}
