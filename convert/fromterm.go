package convert

import (
	"github.com/cubegraph/cubeplan/cost"
	"github.com/cubegraph/cubeplan/logicalplan"
	"github.com/cubegraph/cubeplan/planlang"
)

// ToLogicalPlanFromTerm decodes the extractor's chosen canonical term
// (cost.Extractor.FindBest) into a logical plan. It is the
// "C2 rebuilds a logical plan" step of the spec.md §2 data-flow
// narrative, run after C4 extraction rather than directly against the
// rewritten e-graph.
func ToLogicalPlanFromTerm(t *cost.Term, catalog CatalogProvider) (logicalplan.Plan, error) {
	g := planlang.NewEGraph(planlang.ColumnAnalysis{})
	root, err := t.Insert(g)
	if err != nil {
		return nil, err
	}
	return NewConverterWithGraph(g, catalog).ToLogicalPlan(root)
}
