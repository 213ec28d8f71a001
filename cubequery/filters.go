package cubequery

import "github.com/cubegraph/cubeplan/logicalplan"

// lowerFilter implements spec.md §4.5 rule 5: lower a CubeFilter tree
// into the flat FilterItem shape of spec.md §6, fusing
// beforeDate+afterDate pairs into inDateRange, pushing inDateRange atoms
// that target a known time dimension into that dimension's DateRange
// slot, and diverting segment/change-user memberships out of the
// returned list and into q.Segments/q.ChangeUser.
func lowerFilter(f *logicalplan.CubeFilter, q *CubeQuery) ([]FilterItem, error) {
	return lowerFilterUnder(f, q, false)
}

func lowerFilterUnder(f *logicalplan.CubeFilter, q *CubeQuery, underOr bool) ([]FilterItem, error) {
	switch {
	case f.Segment != "":
		if underOr {
			return nil, &OrWithSegmentError{}
		}
		addSegment(q, f.Segment)
		return nil, nil

	case f.ChangeUser:
		if underOr {
			return nil, &OrWithChangeUserError{}
		}
		if q.ChangeUser {
			return nil, &DuplicateChangeUserError{}
		}
		q.ChangeUser = true
		return nil, nil

	case len(f.And) > 0:
		fused := fuseDateRanges(f.And)
		var items []FilterItem
		for _, sub := range fused {
			subItems, err := lowerFilterUnder(sub, q, underOr)
			if err != nil {
				return nil, err
			}
			items = append(items, subItems...)
		}
		switch len(items) {
		case 0:
			return nil, nil
		case 1:
			return items, nil
		default:
			return []FilterItem{{And: items}}, nil
		}

	case len(f.Or) > 0:
		var items []FilterItem
		for _, sub := range f.Or {
			subItems, err := lowerFilterUnder(sub, q, true)
			if err != nil {
				return nil, err
			}
			items = append(items, subItems...)
		}
		return []FilterItem{{Or: items}}, nil

	default:
		if f.Op == logicalplan.FilterInDateRange && len(f.Values) == 2 {
			if pushIntoTimeDimension(q, f.Member, f.Values[0], f.Values[1]) {
				return nil, nil
			}
		}
		values := append([]string(nil), f.Values...)
		return []FilterItem{{Member: f.Member, Operator: string(f.Op), Values: values}}, nil
	}
}

// fuseDateRanges merges, at a single AND level, any beforeDate/afterDate
// pair that targets the same member into one inDateRange atom. Children
// that are themselves AND/OR/segment/change-user nodes pass through
// unchanged — the fusion is a purely local, single-level pattern that
// looks at one AND node at a time.
func fuseDateRanges(items []*logicalplan.CubeFilter) []*logicalplan.CubeFilter {
	beforeIdx := map[string]int{}
	afterIdx := map[string]int{}
	for i, it := range items {
		if it.Segment != "" || it.ChangeUser || len(it.And) > 0 || len(it.Or) > 0 {
			continue
		}
		switch it.Op {
		case logicalplan.FilterBeforeDate:
			beforeIdx[it.Member] = i
		case logicalplan.FilterAfterDate:
			afterIdx[it.Member] = i
		}
	}

	result := make([]*logicalplan.CubeFilter, len(items))
	copy(result, items)
	fusedAway := map[int]bool{}
	for member, bi := range beforeIdx {
		ai, ok := afterIdx[member]
		if !ok {
			continue
		}
		result[bi] = &logicalplan.CubeFilter{
			Member: member,
			Op:     logicalplan.FilterInDateRange,
			Values: []string{items[ai].Values[0], items[bi].Values[0]},
		}
		fusedAway[ai] = true
	}

	out := make([]*logicalplan.CubeFilter, 0, len(result))
	for i, it := range result {
		if fusedAway[i] {
			continue
		}
		out = append(out, it)
	}
	return out
}

func pushIntoTimeDimension(q *CubeQuery, member, from, to string) bool {
	for i := range q.TimeDimensions {
		if q.TimeDimensions[i].Dimension == member && q.TimeDimensions[i].DateRange == nil {
			q.TimeDimensions[i].DateRange = &DateRange{From: from, To: to}
			return true
		}
	}
	return false
}

func addSegment(q *CubeQuery, name string) {
	for _, s := range q.Segments {
		if s == name {
			return
		}
	}
	q.Segments = append(q.Segments, name)
}

// OrWithSegmentError is returned when a segment membership appears under
// an OR (spec.md §4.2/§4.5: "OR combined with a segment ... is
// rejected").
type OrWithSegmentError struct{}

func (e *OrWithSegmentError) Error() string {
	return "OR combined with a segment membership is not allowed"
}

// OrWithChangeUserError is returned when a change_user filter appears
// under an OR (spec.md §4.5 rule 5).
type OrWithChangeUserError struct{}

func (e *OrWithChangeUserError) Error() string {
	return "change_user filter may not appear under OR"
}

// DuplicateChangeUserError is returned when more than one change_user
// filter is present (spec.md §4.5 rule 5: "no more than one ... is
// allowed").
type DuplicateChangeUserError struct{}

func (e *DuplicateChangeUserError) Error() string { return "at most one change_user filter is allowed" }
