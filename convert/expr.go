package convert

import (
	"github.com/cubegraph/cubeplan/logicalplan"
	"github.com/cubegraph/cubeplan/planlang"
)

func (c *Converter) addExprList(exprs []logicalplan.Expr) (planlang.ID, error) {
	ids := make([]planlang.ID, len(exprs))
	for i, e := range exprs {
		id, err := c.AddExpr(e)
		if err != nil {
			return 0, err
		}
		ids[i] = id
	}
	return c.G.AddList(ids), nil
}

func (c *Converter) addSortExprList(exprs []logicalplan.SortExpr) (planlang.ID, error) {
	ids := make([]planlang.ID, len(exprs))
	for i, e := range exprs {
		id, err := c.AddExpr(e)
		if err != nil {
			return 0, err
		}
		ids[i] = id
	}
	return c.G.AddList(ids), nil
}

// AddExpr hash-conses e and every subexpression into the converter's
// e-graph, returning the root e-class id.
func (c *Converter) AddExpr(e logicalplan.Expr) (planlang.ID, error) {
	switch n := e.(type) {
	case logicalplan.Alias:
		inner, err := c.AddExpr(n.Expr)
		if err != nil {
			return 0, err
		}
		return c.G.Add(planlang.Node{Kind: planlang.KindAlias, Children: []planlang.ID{inner}, Data: planlang.AliasAttrs{Name: n.Name}})
	case logicalplan.Column:
		return c.G.AddLeaf(planlang.KindColumn, planlang.ColumnAttrs{Relation: n.Relation, Name: n.Name})
	case logicalplan.OuterColumn:
		return c.G.AddLeaf(planlang.KindOuterColumn, planlang.ColumnAttrs{Relation: n.Relation, Name: n.Name})
	case logicalplan.Literal:
		return c.G.AddLeaf(planlang.KindLiteral, planlang.LiteralAttrs{Value: n.Value, Type: encodeType(n.Type)})
	case logicalplan.Not:
		return c.addUnary(planlang.KindNot, n.Expr, nil)
	case logicalplan.IsNull:
		return c.addUnary(planlang.KindIsNull, n.Expr, nil)
	case logicalplan.IsNotNull:
		return c.addUnary(planlang.KindIsNotNull, n.Expr, nil)
	case logicalplan.Negative:
		return c.addUnary(planlang.KindNegative, n.Expr, nil)
	case logicalplan.BinaryExpr:
		l, err := c.AddExpr(n.Left)
		if err != nil {
			return 0, err
		}
		r, err := c.AddExpr(n.Right)
		if err != nil {
			return 0, err
		}
		return c.G.Add(planlang.Node{Kind: planlang.KindBinaryExpr, Children: []planlang.ID{l, r}, Data: string(n.Op)})
	case logicalplan.Like:
		return c.addBinaryLeaf(planlang.KindLike, n.Expr, n.Pattern, planlang.NegatableAttrs{Negated: n.Negated})
	case logicalplan.ILike:
		return c.addBinaryLeaf(planlang.KindILike, n.Expr, n.Pattern, planlang.NegatableAttrs{Negated: n.Negated})
	case logicalplan.SimilarTo:
		return c.addBinaryLeaf(planlang.KindSimilarTo, n.Expr, n.Pattern, planlang.NegatableAttrs{Negated: n.Negated})
	case logicalplan.Between:
		e0, err := c.AddExpr(n.Expr)
		if err != nil {
			return 0, err
		}
		lo, err := c.AddExpr(n.Low)
		if err != nil {
			return 0, err
		}
		hi, err := c.AddExpr(n.High)
		if err != nil {
			return 0, err
		}
		return c.G.Add(planlang.Node{Kind: planlang.KindBetween, Children: []planlang.ID{e0, lo, hi}, Data: planlang.NegatableAttrs{Negated: n.Negated}})
	case logicalplan.Case:
		var subj planlang.ID
		var err error
		if n.Subject != nil {
			subj, err = c.AddExpr(n.Subject)
			if err != nil {
				return 0, err
			}
		} else {
			subj, err = c.G.AddLeaf(planlang.KindAbsent, nil)
			if err != nil {
				return 0, err
			}
		}
		whenThens := make([]planlang.ID, 0, len(n.WhenThen)*2)
		for _, wt := range n.WhenThen {
			w, err := c.AddExpr(wt.When)
			if err != nil {
				return 0, err
			}
			t, err := c.AddExpr(wt.Then)
			if err != nil {
				return 0, err
			}
			pair := c.G.AddList([]planlang.ID{w, t})
			whenThens = append(whenThens, pair)
		}
		wtList := c.G.AddList(whenThens)
		var elseID planlang.ID
		if n.Else != nil {
			elseID, err = c.AddExpr(n.Else)
			if err != nil {
				return 0, err
			}
		} else {
			elseID, err = c.G.AddLeaf(planlang.KindAbsent, nil)
			if err != nil {
				return 0, err
			}
		}
		return c.G.Add(planlang.Node{Kind: planlang.KindCase, Children: []planlang.ID{subj, wtList, elseID}})
	case logicalplan.Cast:
		return c.addCast(planlang.KindCast, n.Expr, n.To)
	case logicalplan.TryCast:
		return c.addCast(planlang.KindTryCast, n.Expr, n.To)
	case logicalplan.SortExpr:
		inner, err := c.AddExpr(n.Expr)
		if err != nil {
			return 0, err
		}
		return c.G.Add(planlang.Node{Kind: planlang.KindSortExpr, Children: []planlang.ID{inner}, Data: planlang.SortAttrs{Asc: n.Asc, NullsFirst: n.NullsFirst}})
	case logicalplan.ScalarFunction:
		args, err := c.addExprList(n.Args)
		if err != nil {
			return 0, err
		}
		return c.G.Add(planlang.Node{Kind: planlang.KindScalarFunction, Children: []planlang.ID{args}, Data: planlang.FuncAttrs{Name: n.Name, UDF: n.UDF}})
	case logicalplan.AggregateFunction:
		args, err := c.addExprList(n.Args)
		if err != nil {
			return 0, err
		}
		return c.G.Add(planlang.Node{Kind: planlang.KindAggregateFunction, Children: []planlang.ID{args}, Data: planlang.FuncAttrs{Name: n.Name, Distinct: n.Distinct}})
	case logicalplan.WindowFunction:
		args, err := c.addExprList(n.Args)
		if err != nil {
			return 0, err
		}
		part, err := c.addExprList(n.PartitionBy)
		if err != nil {
			return 0, err
		}
		order, err := c.addSortExprList(n.OrderBy)
		if err != nil {
			return 0, err
		}
		attrs := planlang.WindowAttrs{Name: n.Name}
		if n.Frame != nil {
			attrs.FrameUnits, attrs.FrameStart, attrs.FrameEnd = n.Frame.Units, n.Frame.StartBound, n.Frame.EndBound
		}
		return c.G.Add(planlang.Node{Kind: planlang.KindWindowFunction, Children: []planlang.ID{args, part, order}, Data: attrs})
	case logicalplan.InList:
		e0, err := c.AddExpr(n.Expr)
		if err != nil {
			return 0, err
		}
		lst, err := c.addExprList(n.List)
		if err != nil {
			return 0, err
		}
		return c.G.Add(planlang.Node{Kind: planlang.KindInList, Children: []planlang.ID{e0, lst}, Data: planlang.NegatableAttrs{Negated: n.Negated}})
	case logicalplan.Wildcard:
		return c.G.AddLeaf(planlang.KindWildcard, planlang.WildcardAttrs{Qualifier: n.Qualifier})
	case logicalplan.IndexedField:
		inner, err := c.AddExpr(n.Expr)
		if err != nil {
			return 0, err
		}
		return c.G.Add(planlang.Node{Kind: planlang.KindIndexedField, Children: []planlang.ID{inner}, Data: planlang.IndexedFieldAttrs{Key: n.Key}})
	default:
		return 0, unsupported("expression type %T", e)
	}
}

func (c *Converter) addUnary(kind planlang.Kind, inner logicalplan.Expr, data interface{}) (planlang.ID, error) {
	id, err := c.AddExpr(inner)
	if err != nil {
		return 0, err
	}
	return c.G.Add(planlang.Node{Kind: kind, Children: []planlang.ID{id}, Data: data})
}

func (c *Converter) addBinaryLeaf(kind planlang.Kind, a, b logicalplan.Expr, data interface{}) (planlang.ID, error) {
	ia, err := c.AddExpr(a)
	if err != nil {
		return 0, err
	}
	ib, err := c.AddExpr(b)
	if err != nil {
		return 0, err
	}
	return c.G.Add(planlang.Node{Kind: kind, Children: []planlang.ID{ia, ib}, Data: data})
}

func (c *Converter) addCast(kind planlang.Kind, inner logicalplan.Expr, to logicalplan.DataType) (planlang.ID, error) {
	id, err := c.AddExpr(inner)
	if err != nil {
		return 0, err
	}
	return c.G.Add(planlang.Node{Kind: kind, Children: []planlang.ID{id}, Data: planlang.CastAttrs{To: encodeType(to)}})
}

// ToExpr reconstructs one expression from the e-class rooted at id,
// picking the first node recorded for that class (callers extract a
// canonical node with the cost package before calling this on a
// rewritten graph).
func (c *Converter) ToExpr(id planlang.ID) (logicalplan.Expr, error) {
	nodes := c.G.Nodes(id)
	if len(nodes) == 0 {
		return nil, unsupported("empty e-class %d", id)
	}
	n := nodes[0]
	switch n.Kind {
	case planlang.KindAlias:
		inner, err := c.ToExpr(n.Children[0])
		if err != nil {
			return nil, err
		}
		return logicalplan.Alias{Expr: inner, Name: n.Data.(planlang.AliasAttrs).Name}, nil
	case planlang.KindColumn:
		a := n.Data.(planlang.ColumnAttrs)
		return logicalplan.Column{Relation: a.Relation, Name: a.Name}, nil
	case planlang.KindOuterColumn:
		a := n.Data.(planlang.ColumnAttrs)
		return logicalplan.OuterColumn{Relation: a.Relation, Name: a.Name}, nil
	case planlang.KindLiteral:
		a := n.Data.(planlang.LiteralAttrs)
		return logicalplan.Literal{Value: a.Value, Type: decodeType(a.Type)}, nil
	case planlang.KindNot:
		return c.toUnary(n, func(e logicalplan.Expr) logicalplan.Expr { return logicalplan.Not{Expr: e} })
	case planlang.KindIsNull:
		return c.toUnary(n, func(e logicalplan.Expr) logicalplan.Expr { return logicalplan.IsNull{Expr: e} })
	case planlang.KindIsNotNull:
		return c.toUnary(n, func(e logicalplan.Expr) logicalplan.Expr { return logicalplan.IsNotNull{Expr: e} })
	case planlang.KindNegative:
		return c.toUnary(n, func(e logicalplan.Expr) logicalplan.Expr { return logicalplan.Negative{Expr: e} })
	case planlang.KindBinaryExpr:
		l, err := c.ToExpr(n.Children[0])
		if err != nil {
			return nil, err
		}
		r, err := c.ToExpr(n.Children[1])
		if err != nil {
			return nil, err
		}
		return logicalplan.BinaryExpr{Left: l, Right: r, Op: logicalplan.BinaryOperator(n.Data.(string))}, nil
	case planlang.KindLike, planlang.KindILike, planlang.KindSimilarTo:
		e0, err := c.ToExpr(n.Children[0])
		if err != nil {
			return nil, err
		}
		p, err := c.ToExpr(n.Children[1])
		if err != nil {
			return nil, err
		}
		neg := n.Data.(planlang.NegatableAttrs).Negated
		switch n.Kind {
		case planlang.KindLike:
			return logicalplan.Like{Expr: e0, Pattern: p, Negated: neg}, nil
		case planlang.KindILike:
			return logicalplan.ILike{Expr: e0, Pattern: p, Negated: neg}, nil
		default:
			return logicalplan.SimilarTo{Expr: e0, Pattern: p, Negated: neg}, nil
		}
	case planlang.KindBetween:
		e0, err := c.ToExpr(n.Children[0])
		if err != nil {
			return nil, err
		}
		lo, err := c.ToExpr(n.Children[1])
		if err != nil {
			return nil, err
		}
		hi, err := c.ToExpr(n.Children[2])
		if err != nil {
			return nil, err
		}
		return logicalplan.Between{Expr: e0, Low: lo, High: hi, Negated: n.Data.(planlang.NegatableAttrs).Negated}, nil
	case planlang.KindCase:
		var subject logicalplan.Expr
		if !isAbsent(c.G, n.Children[0]) {
			s, err := c.ToExpr(n.Children[0])
			if err != nil {
				return nil, err
			}
			subject = s
		}
		wtIDs, err := c.G.Flatten(n.Children[1])
		if err != nil {
			return nil, err
		}
		whenThens := make([]logicalplan.WhenThen, 0, len(wtIDs))
		for _, pairID := range wtIDs {
			pair, err := c.G.Flatten(pairID)
			if err != nil || len(pair) != 2 {
				return nil, unsupported("malformed CASE when/then pair")
			}
			w, err := c.ToExpr(pair[0])
			if err != nil {
				return nil, err
			}
			t, err := c.ToExpr(pair[1])
			if err != nil {
				return nil, err
			}
			whenThens = append(whenThens, logicalplan.WhenThen{When: w, Then: t})
		}
		var elseExpr logicalplan.Expr
		if !isAbsent(c.G, n.Children[2]) {
			e0, err := c.ToExpr(n.Children[2])
			if err != nil {
				return nil, err
			}
			elseExpr = e0
		}
		return logicalplan.Case{Subject: subject, WhenThen: whenThens, Else: elseExpr}, nil
	case planlang.KindCast:
		e0, err := c.ToExpr(n.Children[0])
		if err != nil {
			return nil, err
		}
		return logicalplan.Cast{Expr: e0, To: decodeType(n.Data.(planlang.CastAttrs).To)}, nil
	case planlang.KindTryCast:
		e0, err := c.ToExpr(n.Children[0])
		if err != nil {
			return nil, err
		}
		return logicalplan.TryCast{Expr: e0, To: decodeType(n.Data.(planlang.CastAttrs).To)}, nil
	case planlang.KindSortExpr:
		e0, err := c.ToExpr(n.Children[0])
		if err != nil {
			return nil, err
		}
		a := n.Data.(planlang.SortAttrs)
		return logicalplan.SortExpr{Expr: e0, Asc: a.Asc, NullsFirst: a.NullsFirst}, nil
	case planlang.KindScalarFunction:
		args, err := c.toExprList(n.Children[0])
		if err != nil {
			return nil, err
		}
		a := n.Data.(planlang.FuncAttrs)
		return logicalplan.ScalarFunction{Name: a.Name, Args: args, UDF: a.UDF}, nil
	case planlang.KindAggregateFunction:
		args, err := c.toExprList(n.Children[0])
		if err != nil {
			return nil, err
		}
		a := n.Data.(planlang.FuncAttrs)
		return logicalplan.AggregateFunction{Name: a.Name, Args: args, Distinct: a.Distinct}, nil
	case planlang.KindWindowFunction:
		args, err := c.toExprList(n.Children[0])
		if err != nil {
			return nil, err
		}
		part, err := c.toExprList(n.Children[1])
		if err != nil {
			return nil, err
		}
		orderIDs, err := c.G.Flatten(n.Children[2])
		if err != nil {
			return nil, err
		}
		order := make([]logicalplan.SortExpr, 0, len(orderIDs))
		for _, oid := range orderIDs {
			e0, err := c.ToExpr(oid)
			if err != nil {
				return nil, err
			}
			se, ok := e0.(logicalplan.SortExpr)
			if !ok {
				return nil, unsupported("window order-by entry is not a SortExpr")
			}
			order = append(order, se)
		}
		a := n.Data.(planlang.WindowAttrs)
		var frame *logicalplan.WindowFrame
		if a.FrameUnits != "" {
			frame = &logicalplan.WindowFrame{Units: a.FrameUnits, StartBound: a.FrameStart, EndBound: a.FrameEnd}
		}
		return logicalplan.WindowFunction{Name: a.Name, Args: args, PartitionBy: part, OrderBy: order, Frame: frame}, nil
	case planlang.KindInList:
		e0, err := c.ToExpr(n.Children[0])
		if err != nil {
			return nil, err
		}
		lst, err := c.toExprList(n.Children[1])
		if err != nil {
			return nil, err
		}
		return logicalplan.InList{Expr: e0, List: lst, Negated: n.Data.(planlang.NegatableAttrs).Negated}, nil
	case planlang.KindWildcard:
		return logicalplan.Wildcard{Qualifier: n.Data.(planlang.WildcardAttrs).Qualifier}, nil
	case planlang.KindIndexedField:
		e0, err := c.ToExpr(n.Children[0])
		if err != nil {
			return nil, err
		}
		return logicalplan.IndexedField{Expr: e0, Key: n.Data.(planlang.IndexedFieldAttrs).Key}, nil
	default:
		return nil, unsupported("e-node kind %s is not an expression", n.Kind)
	}
}

func (c *Converter) toUnary(n planlang.Node, wrap func(logicalplan.Expr) logicalplan.Expr) (logicalplan.Expr, error) {
	inner, err := c.ToExpr(n.Children[0])
	if err != nil {
		return nil, err
	}
	return wrap(inner), nil
}

func (c *Converter) toExprList(listID planlang.ID) ([]logicalplan.Expr, error) {
	ids, err := c.G.Flatten(listID)
	if err != nil {
		return nil, err
	}
	out := make([]logicalplan.Expr, len(ids))
	for i, id := range ids {
		e, err := c.ToExpr(id)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

func isAbsent(g *planlang.EGraph, id planlang.ID) bool {
	nodes := g.Nodes(id)
	return len(nodes) > 0 && nodes[0].Kind == planlang.KindAbsent
}
