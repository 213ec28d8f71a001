package convert

import (
	"github.com/cubegraph/cubeplan/logicalplan"
	"github.com/cubegraph/cubeplan/planlang"
)

// AddLogicalPlan hash-conses plan and every subplan/subexpression into the
// converter's e-graph (spec.md §4.2 add_logical_plan), rejecting any node
// kind the plan language does not model: VALUES, EXPLAIN, ANALYZE and
// CREATE EXTERNAL TABLE have no plan-language representation and are
// rejected outright rather than silently dropped.
func (c *Converter) AddLogicalPlan(plan logicalplan.Plan) (planlang.ID, error) {
	switch p := plan.(type) {
	case *logicalplan.Projection:
		exprs, err := c.addExprList(p.Exprs)
		if err != nil {
			return 0, err
		}
		input, err := c.AddLogicalPlan(p.Input)
		if err != nil {
			return 0, err
		}
		return c.G.Add(planlang.Node{Kind: planlang.KindProjection, Children: []planlang.ID{exprs, input}})
	case *logicalplan.Filter:
		pred, err := c.AddExpr(p.Predicate)
		if err != nil {
			return 0, err
		}
		input, err := c.AddLogicalPlan(p.Input)
		if err != nil {
			return 0, err
		}
		return c.G.Add(planlang.Node{Kind: planlang.KindFilter, Children: []planlang.ID{pred, input}})
	case *logicalplan.Window:
		exprs, err := c.addExprList(p.WindowExprs)
		if err != nil {
			return 0, err
		}
		input, err := c.AddLogicalPlan(p.Input)
		if err != nil {
			return 0, err
		}
		return c.G.Add(planlang.Node{Kind: planlang.KindWindow, Children: []planlang.ID{exprs, input}})
	case *logicalplan.Aggregate:
		group, err := c.addExprList(p.GroupExprs)
		if err != nil {
			return 0, err
		}
		agg, err := c.addExprList(p.AggExprs)
		if err != nil {
			return 0, err
		}
		input, err := c.AddLogicalPlan(p.Input)
		if err != nil {
			return 0, err
		}
		return c.G.Add(planlang.Node{Kind: planlang.KindAggregate, Children: []planlang.ID{group, agg, input}})
	case *logicalplan.Sort:
		sorts, err := c.addSortExprList(p.SortExprs)
		if err != nil {
			return 0, err
		}
		input, err := c.AddLogicalPlan(p.Input)
		if err != nil {
			return 0, err
		}
		return c.G.Add(planlang.Node{Kind: planlang.KindSort, Children: []planlang.ID{sorts, input}})
	case *logicalplan.Join:
		left, err := c.AddLogicalPlan(p.Left)
		if err != nil {
			return 0, err
		}
		right, err := c.AddLogicalPlan(p.Right)
		if err != nil {
			return 0, err
		}
		keyExprs := make([]logicalplan.Expr, 0, len(p.LeftKeys)+len(p.RightKeys))
		for i := range p.LeftKeys {
			keyExprs = append(keyExprs, logicalplan.BinaryExpr{Left: p.LeftKeys[i], Right: p.RightKeys[i], Op: logicalplan.OpEq})
		}
		keys, err := c.addExprList(keyExprs)
		if err != nil {
			return 0, err
		}
		var constraint planlang.ID
		if p.Constraint != nil {
			constraint, err = c.AddExpr(p.Constraint)
			if err != nil {
				return 0, err
			}
		} else {
			constraint, err = c.G.AddLeaf(planlang.KindAbsent, nil)
			if err != nil {
				return 0, err
			}
		}
		return c.G.Add(planlang.Node{Kind: planlang.KindJoin, Children: []planlang.ID{left, right, keys, constraint}, Data: planlang.JoinAttrs{Kind: string(p.Kind)}})
	case *logicalplan.CrossJoin:
		left, err := c.AddLogicalPlan(p.Left)
		if err != nil {
			return 0, err
		}
		right, err := c.AddLogicalPlan(p.Right)
		if err != nil {
			return 0, err
		}
		return c.G.Add(planlang.Node{Kind: planlang.KindCrossJoin, Children: []planlang.ID{left, right}})
	case *logicalplan.Union:
		ids := make([]planlang.ID, len(p.Inputs))
		for i, in := range p.Inputs {
			id, err := c.AddLogicalPlan(in)
			if err != nil {
				return 0, err
			}
			ids[i] = id
		}
		list := c.G.AddList(ids)
		return c.G.Add(planlang.Node{Kind: planlang.KindUnion, Children: []planlang.ID{list}, Data: planlang.UnionAttrs{Alias: p.Alias}})
	case *logicalplan.Subquery:
		input, err := c.AddLogicalPlan(p.Input)
		if err != nil {
			return 0, err
		}
		return c.G.Add(planlang.Node{Kind: planlang.KindSubquery, Children: []planlang.ID{input}, Data: planlang.SubqueryAttrs{Alias: p.Alias}})
	case *logicalplan.TableUDF:
		args, err := c.addExprList(p.Args)
		if err != nil {
			return 0, err
		}
		input, err := c.AddLogicalPlan(p.Input)
		if err != nil {
			return 0, err
		}
		return c.G.Add(planlang.Node{Kind: planlang.KindTableUDF, Children: []planlang.ID{args, input}})
	case *logicalplan.TableScan:
		filters, err := c.addExprList(p.Filters)
		if err != nil {
			return 0, err
		}
		attrs := planlang.TableScanAttrs{Source: p.SourceName}
		if p.Fetch != nil {
			attrs.HasFetch, attrs.Fetch = true, *p.Fetch
		}
		id, err := c.G.Add(planlang.Node{Kind: planlang.KindTableScan, Children: []planlang.ID{filters}, Data: attrs})
		if err != nil {
			return 0, err
		}
		if c.Catalog != nil {
			if _, handle, err := c.Catalog.TableSchema(p.SourceName); err == nil {
				c.tableHandles[c.G.Find(id)] = handle
			}
		}
		return id, nil
	case *logicalplan.EmptyRelation:
		return c.G.AddLeaf(planlang.KindEmptyRelation, p.ProduceOneRow)
	case *logicalplan.Limit:
		input, err := c.AddLogicalPlan(p.Input)
		if err != nil {
			return 0, err
		}
		attrs := planlang.LimitAttrs{Skip: p.Skip}
		if p.Fetch != nil {
			attrs.HasFetch, attrs.Fetch = true, *p.Fetch
		}
		return c.G.Add(planlang.Node{Kind: planlang.KindLimit, Children: []planlang.ID{input}, Data: attrs})
	case *logicalplan.Distinct:
		input, err := c.AddLogicalPlan(p.Input)
		if err != nil {
			return 0, err
		}
		return c.G.Add(planlang.Node{Kind: planlang.KindDistinct, Children: []planlang.ID{input}})
	case *logicalplan.CubeScan:
		return c.addCubeScan(p)
	case *logicalplan.CubeScanWrapper:
		input, err := c.AddLogicalPlan(p.Input)
		if err != nil {
			return 0, err
		}
		return c.G.Add(planlang.Node{Kind: planlang.KindCubeScanWrapper, Children: []planlang.ID{input}})
	case *logicalplan.WrappedSelect:
		input, err := c.AddLogicalPlan(p.Input)
		if err != nil {
			return 0, err
		}
		return c.G.Add(planlang.Node{Kind: planlang.KindWrappedSelect, Children: []planlang.ID{input}, Data: planlang.WrappedSelectAttrs{Ungrouped: p.Ungrouped}})
	case *logicalplan.Values, *logicalplan.Explain, *logicalplan.Analyze, *logicalplan.CreateExternalTable:
		return 0, unsupported("%T has no plan-language representation", plan)
	default:
		return 0, unsupported("plan node type %T has no plan-language representation", plan)
	}
}

// ToLogicalPlan reconstructs the plan rooted at id, using the first e-node
// recorded in each visited class (run the cost extractor first on a
// saturated graph to pick the canonical node before calling this).
func (c *Converter) ToLogicalPlan(id planlang.ID) (logicalplan.Plan, error) {
	nodes := c.G.Nodes(id)
	if len(nodes) == 0 {
		return nil, unsupported("empty e-class %d", id)
	}
	n := nodes[0]
	switch n.Kind {
	case planlang.KindProjection:
		exprs, err := c.toExprList(n.Children[0])
		if err != nil {
			return nil, err
		}
		input, err := c.ToLogicalPlan(n.Children[1])
		if err != nil {
			return nil, err
		}
		p := &logicalplan.Projection{Exprs: exprs, Input: input}
		logicalplan.SetSchema(p, projectSchema(exprs, input.Schema()))
		return p, nil
	case planlang.KindFilter:
		pred, err := c.ToExpr(n.Children[0])
		if err != nil {
			return nil, err
		}
		input, err := c.ToLogicalPlan(n.Children[1])
		if err != nil {
			return nil, err
		}
		return &logicalplan.Filter{Predicate: pred, Input: input}, nil
	case planlang.KindWindow:
		exprs, err := c.toExprList(n.Children[0])
		if err != nil {
			return nil, err
		}
		input, err := c.ToLogicalPlan(n.Children[1])
		if err != nil {
			return nil, err
		}
		w := &logicalplan.Window{WindowExprs: exprs, Input: input}
		logicalplan.SetSchema(w, input.Schema())
		return w, nil
	case planlang.KindAggregate:
		group, err := c.toExprList(n.Children[0])
		if err != nil {
			return nil, err
		}
		agg, err := c.toExprList(n.Children[1])
		if err != nil {
			return nil, err
		}
		input, err := c.ToLogicalPlan(n.Children[2])
		if err != nil {
			return nil, err
		}
		a := &logicalplan.Aggregate{GroupExprs: group, AggExprs: agg, Input: input}
		logicalplan.SetSchema(a, input.Schema())
		return a, nil
	case planlang.KindSort:
		sortIDs, err := c.G.Flatten(n.Children[0])
		if err != nil {
			return nil, err
		}
		sorts := make([]logicalplan.SortExpr, 0, len(sortIDs))
		for _, sid := range sortIDs {
			e, err := c.ToExpr(sid)
			if err != nil {
				return nil, err
			}
			se, ok := e.(logicalplan.SortExpr)
			if !ok {
				return nil, unsupported("Sort child is not a SortExpr")
			}
			sorts = append(sorts, se)
		}
		input, err := c.ToLogicalPlan(n.Children[1])
		if err != nil {
			return nil, err
		}
		return &logicalplan.Sort{SortExprs: sorts, Input: input}, nil
	case planlang.KindJoin:
		left, err := c.ToLogicalPlan(n.Children[0])
		if err != nil {
			return nil, err
		}
		right, err := c.ToLogicalPlan(n.Children[1])
		if err != nil {
			return nil, err
		}
		keyExprs, err := c.toExprList(n.Children[2])
		if err != nil {
			return nil, err
		}
		leftKeys := make([]logicalplan.Expr, 0, len(keyExprs))
		rightKeys := make([]logicalplan.Expr, 0, len(keyExprs))
		for _, ke := range keyExprs {
			be, ok := ke.(logicalplan.BinaryExpr)
			if !ok {
				return nil, unsupported("Join key is not an equality expression")
			}
			leftKeys = append(leftKeys, be.Left)
			rightKeys = append(rightKeys, be.Right)
		}
		var constraint logicalplan.Expr
		if !isAbsent(c.G, n.Children[3]) {
			ce, err := c.ToExpr(n.Children[3])
			if err != nil {
				return nil, err
			}
			constraint = ce
		}
		j := &logicalplan.Join{Left: left, Right: right, LeftKeys: leftKeys, RightKeys: rightKeys, Kind: logicalplan.JoinKind(n.Data.(planlang.JoinAttrs).Kind), Constraint: constraint}
		logicalplan.SetSchema(j, left.Schema().Append(right.Schema()))
		return j, nil
	case planlang.KindCrossJoin:
		left, err := c.ToLogicalPlan(n.Children[0])
		if err != nil {
			return nil, err
		}
		right, err := c.ToLogicalPlan(n.Children[1])
		if err != nil {
			return nil, err
		}
		cj := &logicalplan.CrossJoin{Left: left, Right: right}
		logicalplan.SetSchema(cj, left.Schema().Append(right.Schema()))
		return cj, nil
	case planlang.KindUnion:
		ids, err := c.G.Flatten(n.Children[0])
		if err != nil {
			return nil, err
		}
		inputs := make([]logicalplan.Plan, len(ids))
		for i, id2 := range ids {
			p, err := c.ToLogicalPlan(id2)
			if err != nil {
				return nil, err
			}
			inputs[i] = p
		}
		u := &logicalplan.Union{Inputs: inputs, Alias: n.Data.(planlang.UnionAttrs).Alias}
		if len(inputs) > 0 {
			logicalplan.SetSchema(u, inputs[0].Schema())
		}
		return u, nil
	case planlang.KindSubquery:
		input, err := c.ToLogicalPlan(n.Children[0])
		if err != nil {
			return nil, err
		}
		return &logicalplan.Subquery{Input: input, Alias: n.Data.(planlang.SubqueryAttrs).Alias}, nil
	case planlang.KindTableUDF:
		args, err := c.toExprList(n.Children[0])
		if err != nil {
			return nil, err
		}
		input, err := c.ToLogicalPlan(n.Children[1])
		if err != nil {
			return nil, err
		}
		t := &logicalplan.TableUDF{Args: args, Input: input}
		logicalplan.SetSchema(t, input.Schema())
		return t, nil
	case planlang.KindTableScan:
		filters, err := c.toExprList(n.Children[0])
		if err != nil {
			return nil, err
		}
		a := n.Data.(planlang.TableScanAttrs)
		ts := &logicalplan.TableScan{SourceName: a.Source, Filters: filters}
		if a.HasFetch {
			f := a.Fetch
			ts.Fetch = &f
		}
		if c.Catalog != nil {
			if schema, _, err := c.Catalog.TableSchema(a.Source); err == nil {
				logicalplan.SetSchema(ts, schema)
			}
		}
		return ts, nil
	case planlang.KindEmptyRelation:
		produceOne, _ := n.Data.(bool)
		er := &logicalplan.EmptyRelation{ProduceOneRow: produceOne}
		logicalplan.SetSchema(er, &logicalplan.Schema{})
		return er, nil
	case planlang.KindLimit:
		input, err := c.ToLogicalPlan(n.Children[0])
		if err != nil {
			return nil, err
		}
		a := n.Data.(planlang.LimitAttrs)
		l := &logicalplan.Limit{Skip: a.Skip, Input: input}
		if a.HasFetch {
			f := a.Fetch
			l.Fetch = &f
		}
		return l, nil
	case planlang.KindDistinct:
		input, err := c.ToLogicalPlan(n.Children[0])
		if err != nil {
			return nil, err
		}
		return &logicalplan.Distinct{Input: input}, nil
	case planlang.KindCubeScan:
		return c.toCubeScan(n)
	case planlang.KindCubeScanWrapper:
		input, err := c.ToLogicalPlan(n.Children[0])
		if err != nil {
			return nil, err
		}
		w := &logicalplan.CubeScanWrapper{Input: input}
		logicalplan.SetSchema(w, input.Schema())
		return w, nil
	case planlang.KindWrappedSelect:
		input, err := c.ToLogicalPlan(n.Children[0])
		if err != nil {
			return nil, err
		}
		ws := &logicalplan.WrappedSelect{Input: input, Ungrouped: n.Data.(planlang.WrappedSelectAttrs).Ungrouped}
		logicalplan.SetSchema(ws, input.Schema())
		return ws, nil
	default:
		return nil, unsupported("e-node kind %s is not a plan", n.Kind)
	}
}

func projectSchema(exprs []logicalplan.Expr, input *logicalplan.Schema) *logicalplan.Schema {
	fields := make([]logicalplan.Field, 0, len(exprs))
	for _, e := range exprs {
		switch x := e.(type) {
		case logicalplan.Alias:
			fields = append(fields, logicalplan.Field{Name: x.Name})
		case logicalplan.Column:
			qualified := x.Name
			if x.Relation != "" {
				qualified = x.Relation + "." + x.Name
			}
			if input != nil {
				if f, ok := input.FieldByQualifiedName(qualified); ok {
					fields = append(fields, f)
					continue
				}
			}
			fields = append(fields, logicalplan.Field{Relation: x.Relation, Name: x.Name})
		default:
			fields = append(fields, logicalplan.Field{Name: e.String()})
		}
	}
	return &logicalplan.Schema{Fields: fields}
}
