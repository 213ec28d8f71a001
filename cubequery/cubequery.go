// Package cubequery implements the cube query emitter (spec.md §4.5,
// C5): given an extracted CubeScan, build the declarative CubeQuery
// record (measures/dimensions/filters/time-dimensions/order/limit/
// offset) in the JSON shape spec.md §6 hands to the execution layer.
//
// Grounded on logicalplan.CubeScan (the decoded form convert.Converter
// produces) rather than directly on planlang, since C5 operates on
// "the extracted subtree" after C2/C4 have already turned it back into
// a logical plan node — the spec's own data-flow narrative (§2) places
// C5 after C2's "rebuild a logical plan" step.
package cubequery

import (
	"github.com/cubegraph/cubeplan/config"
	"github.com/cubegraph/cubeplan/logicalplan"
)

// TimeDimension is one entry of CubeQuery.TimeDimensions.
type TimeDimension struct {
	Dimension   string     `json:"dimension"`
	Granularity string     `json:"granularity,omitempty"`
	DateRange   *DateRange `json:"dateRange,omitempty"`
}

// DateRange is an inclusive-exclusive [From, To) pair.
type DateRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// FilterItem is the tagged union of spec.md §6's FilterItem: either an
// atom (Member/Operator/Values) or a nested And/Or combination. Exactly
// one of {Member-set, And, Or} is populated on any given value.
type FilterItem struct {
	Member   string       `json:"member,omitempty"`
	Operator string       `json:"operator,omitempty"`
	Values   []string     `json:"values,omitempty"`
	And      []FilterItem `json:"and,omitempty"`
	Or       []FilterItem `json:"or,omitempty"`
}

// Annotation is the per-field metadata the original emits alongside a
// CubeQuery (exportAnnotationFunction in the original source) so the
// execution layer can label result columns without re-resolving the
// catalog. Supplemental to spec.md per SPEC_FULL.md §2.6.
type Annotation struct {
	Title         string `json:"title,omitempty"`
	ShortTitle    string `json:"shortTitle,omitempty"`
	Type          string `json:"type"`
	MemberType    string `json:"memberType"` // "measure" | "dimension" | "timeDimension" | "segment"
	Granularity   string `json:"granularity,omitempty"`
}

// CubeQuery is the declarative query record of spec.md §4.5/§6.
type CubeQuery struct {
	Measures       []string              `json:"measures"`
	Dimensions     []string              `json:"dimensions"`
	Segments       []string              `json:"segments"`
	TimeDimensions []TimeDimension       `json:"timeDimensions,omitempty"`
	Filters        []FilterItem          `json:"filters,omitempty"`
	Order          [][2]string           `json:"order,omitempty"`
	Limit          *int64                `json:"limit,omitempty"`
	Offset         *int64                `json:"offset,omitempty"`
	Ungrouped      bool                  `json:"ungrouped,omitempty"`
	ChangeUser     bool                  `json:"changeUser,omitempty"`
	MaxRecords     bool                  `json:"-"`
	Annotations    map[string]Annotation `json:"-"`
}

// CatalogProvider resolves a measure's declared type for annotation
// purposes; the same role convert.CatalogProvider plays for C2.
type CatalogProvider interface {
	MeasureType(measureName string) (logicalplan.DataType, error)
}

// Emit builds a CubeQuery from an extracted CubeScan, per spec.md §4.5
// rules 1-9.
func Emit(scan *logicalplan.CubeScan, cfg config.Config, catalog CatalogProvider) (*CubeQuery, error) {
	q := &CubeQuery{Annotations: map[string]Annotation{}}

	seenMeasure := map[string]bool{}
	seenDimension := map[string]bool{}
	seenSegment := map[string]bool{}
	timeDimIndex := map[[2]string]int{} // (dimension, granularity) -> index into q.TimeDimensions

	for _, m := range scan.Members {
		switch m.Kind {
		case logicalplan.MMeasure:
			if seenMeasure[m.Name] {
				continue
			}
			seenMeasure[m.Name] = true
			q.Measures = append(q.Measures, m.Name)
			q.Annotations[m.Name] = measureAnnotation(m.Name, catalog)

		case logicalplan.MDimension, logicalplan.MVirtualField, logicalplan.MLiteralMember:
			if seenDimension[m.Name] {
				continue
			}
			seenDimension[m.Name] = true
			q.Dimensions = append(q.Dimensions, m.Name)
			q.Annotations[m.Name] = Annotation{Type: "string", MemberType: "dimension"}

		case logicalplan.MTimeDimension:
			key := [2]string{m.Name, m.Granularity}
			if idx, ok := timeDimIndex[key]; ok {
				// rule 3: multiple time-dimensions with the same
				// (dimension, granularity) dedup; first wins unless this
				// one carries a date range and the kept one doesn't.
				if q.TimeDimensions[idx].DateRange == nil && m.DateRange != nil {
					q.TimeDimensions[idx].DateRange = &DateRange{From: m.DateRange.From, To: m.DateRange.To}
				}
				continue
			}
			td := TimeDimension{Dimension: m.Name, Granularity: m.Granularity}
			if m.DateRange != nil {
				td.DateRange = &DateRange{From: m.DateRange.From, To: m.DateRange.To}
			}
			timeDimIndex[key] = len(q.TimeDimensions)
			q.TimeDimensions = append(q.TimeDimensions, td)
			q.Annotations[m.Name] = Annotation{Type: "time", MemberType: "timeDimension", Granularity: m.Granularity}

		case logicalplan.MSegment:
			if seenSegment[m.Name] {
				continue
			}
			seenSegment[m.Name] = true
			q.Segments = append(q.Segments, m.Name)
			q.Annotations[m.Name] = Annotation{Type: "boolean", MemberType: "segment"}

		case logicalplan.MChangeUser:
			q.ChangeUser = true

		case logicalplan.MMemberError:
			return nil, &MemberErrorSurfaced{Message: m.Error}

		case logicalplan.MAllMembers:
			// no projected field; the execution layer expands this
			// against the catalog at run time.
		}
	}

	if len(q.Measures) == 0 && len(q.Dimensions) == 0 && len(q.TimeDimensions) == 0 {
		return nil, &NoMembersError{}
	}

	if scan.Filter != nil {
		items, err := lowerFilter(scan.Filter, q)
		if err != nil {
			return nil, err
		}
		q.Filters = items
	}

	for _, o := range scan.Order {
		dir := "asc"
		if o.Desc {
			dir = "desc"
		}
		q.Order = append(q.Order, [2]string{o.Member, dir})
	}

	applyLimit(q, scan.Limit, cfg)
	q.Offset = scan.Offset
	q.Ungrouped = scan.Ungrouped

	return q, nil
}

func measureAnnotation(name string, catalog CatalogProvider) Annotation {
	a := Annotation{Type: "number", MemberType: "measure"}
	if catalog == nil {
		return a
	}
	if t, err := catalog.MeasureType(name); err == nil {
		a.Type = t.String()
	}
	return a
}

// applyLimit implements rule 7: clamp to the configured cap, and insert
// the cap with MaxRecords set even when no limit was requested if
// fail-on-max-limit-hit is enabled, so the execution layer can raise a
// controlled error instead of a silent truncation.
func applyLimit(q *CubeQuery, limit *int64, cfg config.Config) {
	cap64 := int64(cfg.QueryRowLimit)

	switch {
	case limit == nil:
		if cfg.FailOnMaxLimitHit {
			l := cap64
			q.Limit = &l
			q.MaxRecords = true
		}
	case *limit > cap64:
		l := cap64
		q.Limit = &l
		q.MaxRecords = true
	default:
		l := *limit
		q.Limit = &l
	}
}

// NoMembersError is returned when a CubeScan has no measures, dimensions
// or time dimensions to project (spec.md §4.2 "can't detect cube query",
// surfaced here as the corresponding user error at emission time).
type NoMembersError struct{}

func (e *NoMembersError) Error() string { return "can't detect cube query: no members" }

// MemberErrorSurfaced wraps a MemberError member reaching the emitter as
// the user error spec.md §7 describes ("the cube-query emitter will
// surface a MemberError content as a user error").
type MemberErrorSurfaced struct {
	Message string
}

func (e *MemberErrorSurfaced) Error() string { return e.Message }
