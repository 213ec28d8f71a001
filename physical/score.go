package physical

import "github.com/cubegraph/cubeplan/catalog"

// score is the four-tuple minimized when picking among eligible indexes
// (optimal_index_by_score's local Score struct in the original): an
// aggregate index beats a regular one outright, then smaller indexes win,
// then smaller filter/projection position sums win. Positions, not
// counts, are compared directly here because that's what the original's
// Ord impl does — summed 0-based column positions, not match counts —
// even though spec.md's prose describes the preference the other way
// around; this repo follows the original source on this point.
type score struct {
	indexType        catalog.IndexType
	indexSize        int
	filterScore      int
	projectionScore  int
}

// less reports whether s is a strictly better (smaller) score than o.
func (s score) less(o score) bool {
	if s.indexType != o.indexType {
		// Aggregate (1) must rank below Regular (0) -- aggregate wins.
		return s.indexType == catalog.IndexAggregate
	}
	if s.indexSize != o.indexSize {
		return s.indexSize < o.indexSize
	}
	if s.filterScore != o.filterScore {
		return s.filterScore < o.filterScore
	}
	return s.projectionScore < o.projectionScore
}

// positionSum returns the sum of each name's 0-based position within
// index.Columns, and false if any name is absent — absence disqualifies
// the index for that role entirely (filter_score/projection_score being
// None in the original).
func positionSum(names []string, index catalog.Index) (int, bool) {
	sum := 0
	for _, name := range names {
		pos := indexOfColumn(index, name)
		if pos < 0 {
			return 0, false
		}
		sum += pos
	}
	return sum, true
}

func indexOfColumn(index catalog.Index, name string) int {
	for i, c := range index.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// optimalIndexByScore picks the single best index among candidates for a
// constrained scan's projection and filter columns.
func optimalIndexByScore(candidates []catalog.Index, projectionCols, filterCols []string) (*catalog.Index, bool) {
	var best *catalog.Index
	var bestScore score

	for i := range candidates {
		idx := candidates[i]
		filterScore, ok := positionSum(filterCols, idx)
		if !ok {
			continue
		}
		projectionScore, ok := positionSum(projectionCols, idx)
		if !ok {
			continue
		}
		s := score{
			indexType:       idx.Type,
			indexSize:       idx.SortKeySize,
			filterScore:     filterScore,
			projectionScore: projectionScore,
		}
		if best == nil || s.less(bestScore) {
			best = &candidates[i]
			bestScore = s
		}
	}
	return best, best != nil
}
