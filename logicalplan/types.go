// Package logicalplan supplies the relational logical plan shape that
// convert.Converter translates to and from the e-graph: a small closed
// tree of plan and expression nodes plus the schema machinery needed to
// resynthesize output field lists after a rewrite.
//
// spec.md treats this plan as an external collaborator's type ("SQL →
// external parser → logical plan"); this package is the Go-native stand-in
// for it, shaped like DataFusion's LogicalPlan/Expr/DFSchema (the
// upstream of original_source/rust/cubesql/.../converter.rs) but
// expressed the way the teacher expresses its own AST-adjacent types
// (datalog/query/types.go): plain structs, a narrow marker-method
// interface, no codegen.
package logicalplan

import "fmt"

// DataType is the closed set of column/value types the cube engine
// understands (spec.md §3, Column).
type DataType struct {
	Kind      DataTypeKind
	Precision int // decimal precision
	Scale     int // decimal scale
	Flavor    string // "airlift" | "zetasketch", only meaningful when Kind == DTHll
}

type DataTypeKind uint8

const (
	DTString DataTypeKind = iota
	DTInt64
	DTBytes
	DTHll
	DTTimestamp // microsecond precision
	DTDecimal
	DTFloat64
	DTBool
)

func (d DataType) String() string {
	switch d.Kind {
	case DTString:
		return "string"
	case DTInt64:
		return "int64"
	case DTBytes:
		return "bytes"
	case DTHll:
		return fmt.Sprintf("hll(%s)", d.Flavor)
	case DTTimestamp:
		return "timestamp(us)"
	case DTDecimal:
		return fmt.Sprintf("decimal(%d,%d)", d.Precision, d.Scale)
	case DTFloat64:
		return "float64"
	case DTBool:
		return "bool"
	default:
		return "unknown"
	}
}

// Sortable reports whether this type may appear in an index's sort-key
// columns (spec.md §4.6: default index excludes decimal/bytes/float).
func (d DataType) Sortable() bool {
	switch d.Kind {
	case DTDecimal, DTBytes, DTFloat64:
		return false
	default:
		return true
	}
}

// Field is a single resolved output column: a relation qualifier
// (possibly empty for an unqualified/derived column), a name, a type and
// nullability.
type Field struct {
	Relation string
	Name     string
	Type     DataType
	Nullable bool
}

// QualifiedName returns "relation.name", or bare "name" when Relation is
// empty.
func (f Field) QualifiedName() string {
	if f.Relation == "" {
		return f.Name
	}
	return f.Relation + "." + f.Name
}

// Schema is an ordered list of fields, resynthesized by the converter
// for every plan node that changes shape (projection, aggregate, join,
// window, table scan).
type Schema struct {
	Fields []Field
}

// Append returns a new schema with other's fields appended after this
// schema's own, used when building the combined input schema for joins
// and cross joins.
func (s *Schema) Append(other *Schema) *Schema {
	out := &Schema{}
	if s != nil {
		out.Fields = append(out.Fields, s.Fields...)
	}
	if other != nil {
		out.Fields = append(out.Fields, other.Fields...)
	}
	return out
}

// FieldByQualifiedName finds the first field matching name, trying an
// exact qualified match before falling back to an unqualified one —
// mirroring how SQL resolves an ambiguous-looking reference against a
// join's combined schema.
func (s *Schema) FieldByQualifiedName(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.QualifiedName() == name {
			return f, true
		}
	}
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}
