package debug

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cubegraph/cubeplan/catalog"
	"github.com/cubegraph/cubeplan/cost"
	"github.com/cubegraph/cubeplan/planlang"
)

func TestPlanPrinterExplainRendersTreeAndCost(t *testing.T) {
	var buf bytes.Buffer
	p := NewPlanPrinter(&buf)
	term := &cost.Term{
		Kind: planlang.KindFilter,
		Children: []*cost.Term{
			{Kind: planlang.KindTableScan, Data: "orders"},
		},
	}
	p.Explain(term, cost.PlanCost{TableScans: 1, Filters: 1})

	out := buf.String()
	require.Contains(t, out, "orders")
	require.Contains(t, out, "table_scans=1")
	require.Contains(t, out, "filters=1")
}

func TestCatalogDumperDumpTablesRendersRowCount(t *testing.T) {
	var buf bytes.Buffer
	d := NewCatalogDumper(&buf)
	d.DumpTables([]catalog.Table{
		{ID: 1, SchemaID: 1, Name: "orders", Columns: []catalog.Column{{Name: "id"}}},
	})

	out := buf.String()
	require.Contains(t, out, "orders")
	require.Contains(t, out, "_1 rows_")
}

func TestCatalogDumperDumpIndexesShowsSortKeyPrefix(t *testing.T) {
	var buf bytes.Buffer
	d := NewCatalogDumper(&buf)
	d.DumpIndexes([]catalog.Index{
		{ID: 2, TableID: 1, Name: "by_region", Columns: []string{"region", "created_at", "amount"}, SortKeySize: 2},
	})

	out := buf.String()
	require.Contains(t, out, "region,created_at")
	require.NotContains(t, out, "region,created_at,amount")
}

func TestEventSinkFormatsInsertAndDelete(t *testing.T) {
	var buf bytes.Buffer
	s := NewEventSink(&buf)

	s.Listen(catalog.Event{Type: catalog.EventInsert, Kind: catalog.KindTable, New: catalog.Table{ID: 1, Name: "orders"}})
	s.Listen(catalog.Event{Type: catalog.EventDelete, Kind: catalog.KindPartition, Old: catalog.Partition{ID: 9}})

	out := buf.String()
	require.Contains(t, out, "+ table")
	require.Contains(t, out, "- partition")
}
