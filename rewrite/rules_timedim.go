package rewrite

import (
	"strings"

	"github.com/cubegraph/cubeplan/planlang"
)

// TimeDimensionRules returns the time-dimension recognition family
// (spec.md §4.3 "recognition of time-dimension patterns: date truncation
// functions → TimeDimension with granularity"). The defining rule finds
// an Aggregate whose group-by list truncates a column by `date_trunc`
// where the underlying CubeScan already carries that column as a plain
// Dimension member, and promotes the member to a TimeDimension carrying
// the call's granularity — turning `DATE(order_date) ... GROUP BY` into
// `time_dimensions=[{order_date, day}]` (spec.md scenario A). A second
// rule canonicalizes the granularity literal's casing so the first rule
// (and everything downstream) compares on one spelling.
func TimeDimensionRules() RuleSet {
	group, agg := planlang.PVar("group"), planlang.PVar("agg")
	members, filter, order := planlang.PVar("members"), planlang.PVar("filter"), planlang.PVar("order")

	return RuleSet{
		{
			Name: "promote-date-trunc-to-time-dimension",
			LHS:  planlang.P(planlang.KindAggregate, group, agg, planlang.P(planlang.KindCubeScan, members, filter, order)),
			Condition: func(g *planlang.EGraph, s planlang.Subst, matched planlang.ID) (planlang.Subst, bool, error) {
				aggNode := firstNode(g, matched, planlang.KindAggregate)
				if aggNode == nil {
					return s, false, nil
				}
				scanID := aggNode.Children[2]

				groupIDs, err := g.Flatten(s["group"])
				if err != nil {
					return s, false, nil
				}
				memberIDs, err := g.Flatten(s["members"])
				if err != nil {
					return s, false, nil
				}

				for _, exprID := range groupIDs {
					colName, ok := dateTruncColumnName(g, exprID)
					if !ok {
						continue
					}
					for _, memberID := range memberIDs {
						dim := firstNode(g, memberID, planlang.KindDimension)
						if dim == nil || dim.Data.(planlang.MemberAttrs).Name != colName {
							continue
						}
						augmented := make(planlang.Subst, len(s)+3)
						for k, v := range s {
							augmented[k] = v
						}
						augmented["scan"] = scanID
						augmented["groupExpr"] = exprID
						augmented["member"] = memberID
						return augmented, true, nil
					}
				}
				return s, false, nil
			},
			Apply: func(g *planlang.EGraph, s planlang.Subst, matched planlang.ID) (planlang.ID, error) {
				colName, gran := "", ""
				if name, ok := dateTruncColumnName(g, s["groupExpr"]); ok {
					colName, gran = name, dateTruncGranularity(g, s["groupExpr"])
				}

				timeDim, err := g.AddLeaf(planlang.KindTimeDimension, planlang.MemberAttrs{Name: colName, Granularity: gran})
				if err != nil {
					return 0, err
				}
				replacedCol, err := g.AddLeaf(planlang.KindColumn, planlang.ColumnAttrs{Name: colName})
				if err != nil {
					return 0, err
				}

				groupIDs, err := g.Flatten(s["group"])
				if err != nil {
					return 0, err
				}
				newGroup := make([]planlang.ID, len(groupIDs))
				for i, id := range groupIDs {
					if g.Find(id) == g.Find(s["groupExpr"]) {
						newGroup[i] = replacedCol
					} else {
						newGroup[i] = id
					}
				}

				memberIDs, err := g.Flatten(s["members"])
				if err != nil {
					return 0, err
				}
				newMembers := make([]planlang.ID, len(memberIDs))
				for i, id := range memberIDs {
					if g.Find(id) == g.Find(s["member"]) {
						newMembers[i] = timeDim
					} else {
						newMembers[i] = id
					}
				}

				scanNode := firstNode(g, s["scan"], planlang.KindCubeScan)
				newScan, err := g.Add(planlang.Node{
					Kind:     planlang.KindCubeScan,
					Children: []planlang.ID{g.AddList(newMembers), s["filter"], s["order"]},
					Data:     scanNode.Data,
				})
				if err != nil {
					return 0, err
				}

				return g.Add(planlang.Node{Kind: planlang.KindAggregate, Children: []planlang.ID{g.AddList(newGroup), s["agg"], newScan}})
			},
		},
		{
			Name: "normalize-date-trunc-granularity",
			LHS:  planlang.P(planlang.KindScalarFunction, planlang.PVar("args")),
			Condition: func(g *planlang.EGraph, s planlang.Subst, matched planlang.ID) (planlang.Subst, bool, error) {
				fn := firstNode(g, matched, planlang.KindScalarFunction)
				if fn == nil || fn.Data.(planlang.FuncAttrs).Name != "date_trunc" {
					return s, false, nil
				}
				args, err := g.Flatten(fn.Children[0])
				if err != nil || len(args) != 2 {
					return s, false, nil
				}
				litNode := firstNode(g, args[0], planlang.KindLiteral)
				if litNode == nil {
					return s, false, nil
				}
				lit := litNode.Data.(planlang.LiteralAttrs)
				granStr, ok := lit.Value.(string)
				if !ok || granStr == strings.ToLower(granStr) {
					return s, false, nil // already canonical, or not a string granularity
				}
				augmented := make(planlang.Subst, len(s)+2)
				for k, v := range s {
					augmented[k] = v
				}
				augmented["gran"] = args[0]
				augmented["col"] = args[1]
				return augmented, true, nil
			},
			Apply: func(g *planlang.EGraph, s planlang.Subst, matched planlang.ID) (planlang.ID, error) {
				lit := firstNode(g, s["gran"], planlang.KindLiteral).Data.(planlang.LiteralAttrs)
				granStr := lit.Value.(string)
				lowered, err := g.AddLeaf(planlang.KindLiteral, planlang.LiteralAttrs{Value: strings.ToLower(granStr), Type: lit.Type})
				if err != nil {
					return 0, err
				}
				argsList := g.AddList([]planlang.ID{lowered, s["col"]})
				return g.Add(planlang.Node{Kind: planlang.KindScalarFunction, Children: []planlang.ID{argsList}, Data: planlang.FuncAttrs{Name: "date_trunc"}})
			},
		},
	}
}

// dateTruncColumnName reports the column name a date_trunc(gran, col)
// call at exprID truncates, if exprID is such a call.
func dateTruncColumnName(g *planlang.EGraph, exprID planlang.ID) (string, bool) {
	fn := firstNode(g, exprID, planlang.KindScalarFunction)
	if fn == nil || fn.Data.(planlang.FuncAttrs).Name != "date_trunc" {
		return "", false
	}
	args, err := g.Flatten(fn.Children[0])
	if err != nil || len(args) != 2 {
		return "", false
	}
	col := firstNode(g, args[1], planlang.KindColumn)
	if col == nil {
		return "", false
	}
	return col.Data.(planlang.ColumnAttrs).Name, true
}

// dateTruncGranularity reports the (already-lowercased-if-canonicalized)
// granularity literal of a date_trunc(gran, col) call at exprID. Callers
// must already know exprID is such a call (see dateTruncColumnName).
func dateTruncGranularity(g *planlang.EGraph, exprID planlang.ID) string {
	fn := firstNode(g, exprID, planlang.KindScalarFunction)
	args, err := g.Flatten(fn.Children[0])
	if err != nil || len(args) != 2 {
		return ""
	}
	lit := firstNode(g, args[0], planlang.KindLiteral)
	if lit == nil {
		return ""
	}
	granStr, _ := lit.Data.(planlang.LiteralAttrs).Value.(string)
	return strings.ToLower(granStr)
}
