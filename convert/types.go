// Package convert implements the bidirectional mapping between a
// logicalplan.Plan and a rooted e-class in a planlang.EGraph (spec.md
// §4.2). Mutation is confined to the Converter's own EGraph; callers
// retain ownership of the logicalplan.Plan they pass in.
package convert

import (
	"fmt"

	"github.com/cubegraph/cubeplan/logicalplan"
	"github.com/cubegraph/cubeplan/planlang"
)

// CatalogProvider resolves a table name to its schema and an opaque
// source handle, standing in for the catalog/metastore during plan
// conversion (spec.md §4.2, "external collaborator").
type CatalogProvider interface {
	TableSchema(name string) (*logicalplan.Schema, interface{}, error)
	// MeasureType resolves a measure's output type for the cube query
	// emitter (spec.md §4.5 rule 1).
	MeasureType(measureName string) (logicalplan.DataType, error)
}

// Converter owns one EGraph and translates logical plans into and out of
// it.
type Converter struct {
	G       *planlang.EGraph
	Catalog CatalogProvider

	// tableHandles remembers the opaque source handle returned by the
	// catalog for each TableScan node added, keyed by e-class id, so
	// ToLogicalPlan can round-trip it without re-querying the catalog.
	tableHandles map[planlang.ID]interface{}
}

// NewConverter creates a Converter with a fresh e-graph driven by
// planlang.ColumnAnalysis.
func NewConverter(catalog CatalogProvider) *Converter {
	return NewConverterWithGraph(planlang.NewEGraph(planlang.ColumnAnalysis{}), catalog)
}

// NewConverterWithGraph creates a Converter bound to an existing e-graph
// instead of allocating a fresh one. Used to decode a cost.Term (the
// extractor's chosen canonical term, spec.md §4.4) into a logical plan:
// the term is inserted into a throwaway graph where every class holds
// exactly one e-node, so ToLogicalPlan's per-class node lookups are
// unambiguous without having to thread the extractor's choice through
// every decode function.
func NewConverterWithGraph(g *planlang.EGraph, catalog CatalogProvider) *Converter {
	return &Converter{
		G:            g,
		Catalog:      catalog,
		tableHandles: make(map[planlang.ID]interface{}),
	}
}

func encodeType(t logicalplan.DataType) planlang.DataTypeTag {
	return planlang.DataTypeTag{Kind: uint8(t.Kind), Precision: t.Precision, Scale: t.Scale, Flavor: t.Flavor}
}

func decodeType(t planlang.DataTypeTag) logicalplan.DataType {
	return logicalplan.DataType{Kind: logicalplan.DataTypeKind(t.Kind), Precision: t.Precision, Scale: t.Scale, Flavor: t.Flavor}
}

func unsupported(format string, args ...interface{}) error {
	return &planlang.UnsupportedError{Msg: fmt.Sprintf(format, args...)}
}
