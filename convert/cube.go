package convert

import (
	"github.com/cubegraph/cubeplan/logicalplan"
	"github.com/cubegraph/cubeplan/planlang"
)

var memberKindToPlanlang = map[logicalplan.MemberKind]planlang.Kind{
	logicalplan.MMeasure:       planlang.KindMeasure,
	logicalplan.MDimension:     planlang.KindDimension,
	logicalplan.MTimeDimension: planlang.KindTimeDimension,
	logicalplan.MSegment:       planlang.KindSegment,
	logicalplan.MChangeUser:    planlang.KindChangeUser,
	logicalplan.MLiteralMember: planlang.KindLiteralMember,
	logicalplan.MVirtualField:  planlang.KindVirtualField,
	logicalplan.MMemberError:   planlang.KindMemberError,
	logicalplan.MAllMembers:    planlang.KindAllMembers,
}

var planlangToMemberKind = func() map[planlang.Kind]logicalplan.MemberKind {
	out := make(map[planlang.Kind]logicalplan.MemberKind, len(memberKindToPlanlang))
	for lk, pk := range memberKindToPlanlang {
		out[pk] = lk
	}
	return out
}()

// addCubeScan assembles a CubeScan's member list, filter tree and order
// list as genuine e-graph structure rather than opaque leaf data, so
// rewrite rules can rebuild a member list or a filter tree the same way
// they rebuild any other list-valued plan node (spec.md §4.2).
func (c *Converter) addCubeScan(p *logicalplan.CubeScan) (planlang.ID, error) {
	memberIDs := make([]planlang.ID, len(p.Members))
	for i, m := range p.Members {
		id, err := c.addMember(m)
		if err != nil {
			return 0, err
		}
		memberIDs[i] = id
	}
	members := c.G.AddList(memberIDs)

	var filterID planlang.ID
	var err error
	if p.Filter != nil {
		filterID, err = c.addCubeFilter(p.Filter)
		if err != nil {
			return 0, err
		}
	} else {
		filterID, err = c.G.AddLeaf(planlang.KindAbsent, nil)
		if err != nil {
			return 0, err
		}
	}

	orderIDs := make([]planlang.ID, len(p.Order))
	for i, o := range p.Order {
		id, err := c.G.AddLeaf(planlang.KindOrderEntry, planlang.OrderEntryAttrs{Member: o.Member, Desc: o.Desc})
		if err != nil {
			return 0, err
		}
		orderIDs[i] = id
	}
	order := c.G.AddList(orderIDs)

	attrs := planlang.CubeScanAttrs{Ungrouped: p.Ungrouped, Wrapped: p.Wrapped}
	if p.Limit != nil {
		attrs.HasLimit, attrs.Limit = true, *p.Limit
	}
	if p.Offset != nil {
		attrs.HasOffset, attrs.Offset = true, *p.Offset
	}
	return c.G.Add(planlang.Node{Kind: planlang.KindCubeScan, Children: []planlang.ID{members, filterID, order}, Data: attrs})
}

func (c *Converter) addMember(m logicalplan.Member) (planlang.ID, error) {
	kind, ok := memberKindToPlanlang[m.Kind]
	if !ok {
		return 0, unsupported("unknown member kind %d", m.Kind)
	}
	attrs := planlang.MemberAttrs{Name: m.Name, Granularity: m.Granularity, Error: m.Error, LiteralVal: m.LiteralVal}
	if m.DateRange != nil {
		attrs.HasDateRange, attrs.DateFrom, attrs.DateTo = true, m.DateRange.From, m.DateRange.To
	}
	return c.G.AddLeaf(kind, attrs)
}

func (c *Converter) addCubeFilter(f *logicalplan.CubeFilter) (planlang.ID, error) {
	switch {
	case f.Segment != "":
		return c.G.AddLeaf(planlang.KindCubeFilterSegmentRef, planlang.CubeFilterRefAttrs{Name: f.Segment})
	case f.ChangeUser:
		return c.G.AddLeaf(planlang.KindCubeFilterChangeUserRef, nil)
	case len(f.And) > 0:
		ids, err := c.addCubeFilterList(f.And)
		if err != nil {
			return 0, err
		}
		return c.G.Add(planlang.Node{Kind: planlang.KindCubeFilterAnd, Children: []planlang.ID{c.G.AddList(ids)}})
	case len(f.Or) > 0:
		for _, sub := range f.Or {
			if sub.Segment != "" || sub.ChangeUser {
				return 0, unsupported("OR combined with a segment or change_user membership is not allowed")
			}
		}
		ids, err := c.addCubeFilterList(f.Or)
		if err != nil {
			return 0, err
		}
		return c.G.Add(planlang.Node{Kind: planlang.KindCubeFilterOr, Children: []planlang.ID{c.G.AddList(ids)}})
	default:
		valueIDs := make([]planlang.ID, len(f.Values))
		for i, v := range f.Values {
			id, err := c.G.AddLeaf(planlang.KindLiteral, planlang.LiteralAttrs{Value: v, Type: planlang.DataTypeTag{Kind: uint8(logicalplan.DTString)}})
			if err != nil {
				return 0, err
			}
			valueIDs[i] = id
		}
		values := c.G.AddList(valueIDs)
		return c.G.Add(planlang.Node{Kind: planlang.KindCubeFilterAtom, Children: []planlang.ID{values}, Data: planlang.CubeFilterAtomAttrs{Member: f.Member, Op: string(f.Op)}})
	}
}

func (c *Converter) addCubeFilterList(fs []*logicalplan.CubeFilter) ([]planlang.ID, error) {
	ids := make([]planlang.ID, len(fs))
	for i, sub := range fs {
		id, err := c.addCubeFilter(sub)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}

func (c *Converter) toCubeScan(n planlang.Node) (logicalplan.Plan, error) {
	memberIDs, err := c.G.Flatten(n.Children[0])
	if err != nil {
		return nil, err
	}
	members := make([]logicalplan.Member, 0, len(memberIDs))
	for _, id := range memberIDs {
		m, err := c.toMember(id)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	if len(members) == 0 {
		return nil, unsupported("can't detect cube query")
	}

	var filter *logicalplan.CubeFilter
	if !isAbsent(c.G, n.Children[1]) {
		filter, err = c.toCubeFilter(n.Children[1])
		if err != nil {
			return nil, err
		}
	}

	orderIDs, err := c.G.Flatten(n.Children[2])
	if err != nil {
		return nil, err
	}
	order := make([]logicalplan.OrderEntry, 0, len(orderIDs))
	for _, id := range orderIDs {
		oa, err := c.orderEntryAttrs(id)
		if err != nil {
			return nil, err
		}
		order = append(order, logicalplan.OrderEntry{Member: oa.Member, Desc: oa.Desc})
	}

	a := n.Data.(planlang.CubeScanAttrs)
	scan := &logicalplan.CubeScan{Members: members, Filter: filter, Order: order, Ungrouped: a.Ungrouped, Wrapped: a.Wrapped}
	if a.HasLimit {
		l := a.Limit
		scan.Limit = &l
	}
	if a.HasOffset {
		o := a.Offset
		scan.Offset = &o
	}
	logicalplan.SetSchema(scan, c.cubeScanSchema(members))
	return scan, nil
}

func (c *Converter) orderEntryAttrs(id planlang.ID) (planlang.OrderEntryAttrs, error) {
	nodes := c.G.Nodes(id)
	if len(nodes) == 0 || nodes[0].Kind != planlang.KindOrderEntry {
		return planlang.OrderEntryAttrs{}, unsupported("expected OrderEntry e-node")
	}
	return nodes[0].Data.(planlang.OrderEntryAttrs), nil
}

func (c *Converter) toMember(id planlang.ID) (logicalplan.Member, error) {
	nodes := c.G.Nodes(id)
	if len(nodes) == 0 {
		return logicalplan.Member{}, unsupported("empty member e-class")
	}
	n := nodes[0]
	kind, ok := planlangToMemberKind[n.Kind]
	if !ok {
		return logicalplan.Member{}, unsupported("e-node kind %s is not a member", n.Kind)
	}
	a := n.Data.(planlang.MemberAttrs)
	m := logicalplan.Member{Kind: kind, Name: a.Name, Granularity: a.Granularity, Error: a.Error, LiteralVal: a.LiteralVal}
	if a.HasDateRange {
		m.DateRange = &logicalplan.DateRange{From: a.DateFrom, To: a.DateTo}
	}
	return m, nil
}

func (c *Converter) toCubeFilter(id planlang.ID) (*logicalplan.CubeFilter, error) {
	nodes := c.G.Nodes(id)
	if len(nodes) == 0 {
		return nil, unsupported("empty filter e-class")
	}
	n := nodes[0]
	switch n.Kind {
	case planlang.KindCubeFilterSegmentRef:
		return &logicalplan.CubeFilter{Segment: n.Data.(planlang.CubeFilterRefAttrs).Name}, nil
	case planlang.KindCubeFilterChangeUserRef:
		return &logicalplan.CubeFilter{ChangeUser: true}, nil
	case planlang.KindCubeFilterAnd:
		subs, err := c.toCubeFilterList(n.Children[0])
		if err != nil {
			return nil, err
		}
		return &logicalplan.CubeFilter{And: subs}, nil
	case planlang.KindCubeFilterOr:
		subs, err := c.toCubeFilterList(n.Children[0])
		if err != nil {
			return nil, err
		}
		for _, sub := range subs {
			if sub.Segment != "" || sub.ChangeUser {
				return nil, unsupported("OR combined with a segment or change_user membership is not allowed")
			}
		}
		return &logicalplan.CubeFilter{Or: subs}, nil
	case planlang.KindCubeFilterAtom:
		valueIDs, err := c.G.Flatten(n.Children[0])
		if err != nil {
			return nil, err
		}
		values := make([]string, len(valueIDs))
		for i, vid := range valueIDs {
			vnodes := c.G.Nodes(vid)
			if len(vnodes) == 0 || vnodes[0].Kind != planlang.KindLiteral {
				return nil, unsupported("filter value is not a literal")
			}
			lit := vnodes[0].Data.(planlang.LiteralAttrs)
			s, _ := lit.Value.(string)
			values[i] = s
		}
		a := n.Data.(planlang.CubeFilterAtomAttrs)
		return &logicalplan.CubeFilter{Member: a.Member, Op: logicalplan.FilterOp(a.Op), Values: values}, nil
	default:
		return nil, unsupported("e-node kind %s is not a filter", n.Kind)
	}
}

func (c *Converter) toCubeFilterList(listID planlang.ID) ([]*logicalplan.CubeFilter, error) {
	ids, err := c.G.Flatten(listID)
	if err != nil {
		return nil, err
	}
	out := make([]*logicalplan.CubeFilter, len(ids))
	for i, id := range ids {
		f, err := c.toCubeFilter(id)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}

func (c *Converter) cubeScanSchema(members []logicalplan.Member) *logicalplan.Schema {
	fields := make([]logicalplan.Field, 0, len(members))
	for _, m := range members {
		typ := logicalplan.DataType{Kind: logicalplan.DTString}
		if c.Catalog != nil && m.Kind == logicalplan.MMeasure {
			if t, err := c.Catalog.MeasureType(m.Name); err == nil {
				typ = t
			}
		}
		if m.Kind == logicalplan.MTimeDimension {
			typ = logicalplan.DataType{Kind: logicalplan.DTTimestamp}
		}
		fields = append(fields, logicalplan.Field{Name: m.Name, Type: typ, Nullable: true})
	}
	return &logicalplan.Schema{Fields: fields}
}
