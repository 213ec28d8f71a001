package debug

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/cubegraph/cubeplan/catalog"
)

// CatalogDumper renders catalog entity lists as markdown tables, the
// same renderer and header-formatting choices
// executor.TableFormatter.formatTable makes for relation tuples.
type CatalogDumper struct {
	writer io.Writer
}

func NewCatalogDumper(w io.Writer) *CatalogDumper {
	return &CatalogDumper{writer: w}
}

func (d *CatalogDumper) render(headers []string, rows [][]string) {
	alignment := make([]tw.Align, len(headers))
	for i := range alignment {
		alignment[i] = tw.AlignNone
	}
	table := tablewriter.NewTable(d.writer,
		tablewriter.WithRenderer(renderer.NewMarkdown()),
		tablewriter.WithAlignment(alignment),
		tablewriter.WithHeaderAutoFormat(tw.Off),
	)
	table.Header(headers)
	for _, r := range rows {
		table.Append(r)
	}
	table.Render()
	fmt.Fprintf(d.writer, "\n_%d rows_\n", len(rows))
}

// DumpTables renders one row per table: id, schema, name, column count,
// and whether it has ingested data yet.
func (d *CatalogDumper) DumpTables(tables []catalog.Table) {
	rows := make([][]string, len(tables))
	for i, t := range tables {
		rows[i] = []string{
			strconv.FormatUint(uint64(t.ID), 10),
			strconv.FormatUint(uint64(t.SchemaID), 10),
			t.Name,
			strconv.Itoa(len(t.Columns)),
			strconv.FormatBool(t.HasData),
		}
	}
	d.render([]string{"id", "schema_id", "name", "columns", "has_data"}, rows)
}

// DumpIndexes renders one row per index: id, table, name, the sort key
// prefix of Columns, and whether it's an aggregate projection.
func (d *CatalogDumper) DumpIndexes(indexes []catalog.Index) {
	rows := make([][]string, len(indexes))
	for i, idx := range indexes {
		kind := "regular"
		if idx.Type == catalog.IndexAggregate {
			kind = "aggregate"
		}
		sortCols := idx.Columns
		if idx.SortKeySize < len(idx.Columns) {
			sortCols = idx.Columns[:idx.SortKeySize]
		}
		rows[i] = []string{
			strconv.FormatUint(uint64(idx.ID), 10),
			strconv.FormatUint(uint64(idx.TableID), 10),
			idx.Name,
			strings.Join(sortCols, ","),
			kind,
		}
	}
	d.render([]string{"id", "table_id", "name", "sort_key", "type"}, rows)
}

// DumpPartitions renders one row per partition: id, index, parent (if
// repartitioned), active/warmed-up flags, and row count.
func (d *CatalogDumper) DumpPartitions(partitions []catalog.Partition) {
	rows := make([][]string, len(partitions))
	for i, p := range partitions {
		parent := "-"
		if p.ParentID != nil {
			parent = strconv.FormatUint(uint64(*p.ParentID), 10)
		}
		rows[i] = []string{
			strconv.FormatUint(uint64(p.ID), 10),
			strconv.FormatUint(uint64(p.IndexID), 10),
			parent,
			strconv.FormatBool(p.Active),
			strconv.FormatBool(p.WarmedUp),
			humanize.Comma(p.MainTableRowCount),
		}
	}
	d.render([]string{"id", "index_id", "parent_id", "active", "warmed_up", "rows"}, rows)
}
