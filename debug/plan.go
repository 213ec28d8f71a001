// Package debug implements the EXPLAIN-shaped plan/cost printer, the
// catalog entity dumper and the event-stream tailer of SPEC_FULL.md
// §2.12: ambient inspection tooling carried over even though spec.md's
// Non-goals exclude an outer CLI surface.
//
// Grounded on datalog/annotations/output.go for the color-detecting,
// io.Writer-injected formatter shape, and
// datalog/executor/table_formatter.go for the tablewriter-based relation
// renderer this package's catalog dumper generalizes.
package debug

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/cubegraph/cubeplan/cost"
)

// PlanPrinter renders an extracted plan term as an indented EXPLAIN
// tree, annotated with the PlanCost finalize picked it for — the same
// useColor/io.Writer shape as annotations.OutputFormatter.
type PlanPrinter struct {
	useColor bool
	writer   io.Writer
}

// NewPlanPrinter builds a printer writing to w, auto-detecting color
// support the way annotations.NewOutputFormatter does.
func NewPlanPrinter(w io.Writer) *PlanPrinter {
	return &PlanPrinter{useColor: isTerminalWriter(w), writer: w}
}

// Explain writes term as an indented tree followed by its winning cost,
// mirroring the QueryPlanCreated event body the teacher's own formatter
// prints verbatim.
func (p *PlanPrinter) Explain(term *cost.Term, winner cost.PlanCost) {
	fmt.Fprintln(p.writer, p.renderTerm(term, 0))
	fmt.Fprintln(p.writer, p.renderCost(winner))
}

func (p *PlanPrinter) renderTerm(t *cost.Term, depth int) string {
	if t == nil {
		return strings.Repeat("  ", depth) + p.colorize("<nil>", color.FgRed)
	}
	indent := strings.Repeat("  ", depth)
	line := fmt.Sprintf("%s%s", indent, p.colorize(t.Kind.String(), color.FgCyan))
	if t.Data != nil {
		line += fmt.Sprintf(" %s", p.colorize(fmt.Sprintf("%v", t.Data), color.FgYellow))
	}
	var b strings.Builder
	b.WriteString(line)
	for _, c := range t.Children {
		b.WriteString("\n")
		b.WriteString(p.renderTerm(c, depth+1))
	}
	return b.String()
}

// renderCost prints five PlanCost fields (replacers, table_scans, joins,
// filters, ast_size), each shown even when zero, since at EXPLAIN time
// a zero in a high-priority field is itself informative (e.g.
// "replacers=0" confirms no unresolved rewrite survived).
func (p *PlanPrinter) renderCost(c cost.PlanCost) string {
	label := p.colorize("cost:", color.FgGreen)
	return fmt.Sprintf("%s replacers=%d table_scans=%d joins=%d filters=%d ast_size=%d",
		label, c.Replacers, c.TableScans, c.Joins, c.Filters, c.ASTSize)
}

func (p *PlanPrinter) colorize(s string, attr color.Attribute) string {
	if !p.useColor {
		return s
	}
	return color.New(attr).Sprint(s)
}
