package cubequery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cubegraph/cubeplan/config"
	"github.com/cubegraph/cubeplan/logicalplan"
)

type stubCatalog struct{}

func (stubCatalog) MeasureType(name string) (logicalplan.DataType, error) {
	return logicalplan.DataType{Kind: logicalplan.DTInt64}, nil
}

// spec.md §8 scenario A: KibanaEcom DATE/COUNT lowers to a single time
// dimension with day granularity and a date range, no leftover filters.
func TestEmitDateCountBecomesTimeDimension(t *testing.T) {
	scan := &logicalplan.CubeScan{
		Members: []logicalplan.Member{
			{Kind: logicalplan.MMeasure, Name: "KibanaEcom.count"},
			{
				Kind:        logicalplan.MTimeDimension,
				Name:        "KibanaEcom.order_date",
				Granularity: "day",
				DateRange:   &logicalplan.DateRange{From: "2020-01-01", To: "2020-02-01"},
			},
		},
	}

	q, err := Emit(scan, config.Default(), stubCatalog{})
	require.NoError(t, err)
	assert.Equal(t, []string{"KibanaEcom.count"}, q.Measures)
	require.Len(t, q.TimeDimensions, 1)
	assert.Equal(t, "KibanaEcom.order_date", q.TimeDimensions[0].Dimension)
	assert.Equal(t, "day", q.TimeDimensions[0].Granularity)
	require.NotNil(t, q.TimeDimensions[0].DateRange)
	assert.Equal(t, "2020-01-01", q.TimeDimensions[0].DateRange.From)
	assert.Empty(t, q.Filters)
}

// spec.md §8 scenario C: customer_gender IS NULL lowers to a single
// notSet filter atom.
func TestEmitIsNullBecomesNotSet(t *testing.T) {
	scan := &logicalplan.CubeScan{
		Members: []logicalplan.Member{
			{Kind: logicalplan.MDimension, Name: "Customers.customer_gender"},
		},
		Filter: &logicalplan.CubeFilter{
			Member: "Customers.customer_gender",
			Op:     logicalplan.FilterNotSet,
		},
	}

	q, err := Emit(scan, config.Default(), stubCatalog{})
	require.NoError(t, err)
	require.Len(t, q.Filters, 1)
	assert.Equal(t, "Customers.customer_gender", q.Filters[0].Member)
	assert.Equal(t, string(logicalplan.FilterNotSet), q.Filters[0].Operator)
}

// A beforeDate/afterDate AND pair on the same member fuses into a single
// inDateRange atom, which then pushes into the matching time dimension's
// date range rather than surfacing as a filter.
func TestEmitFusesBeforeAfterIntoTimeDimensionRange(t *testing.T) {
	scan := &logicalplan.CubeScan{
		Members: []logicalplan.Member{
			{Kind: logicalplan.MMeasure, Name: "Orders.count"},
			{Kind: logicalplan.MTimeDimension, Name: "Orders.created_at", Granularity: "month"},
		},
		Filter: &logicalplan.CubeFilter{
			And: []*logicalplan.CubeFilter{
				{Member: "Orders.created_at", Op: logicalplan.FilterAfterDate, Values: []string{"2020-01-01"}},
				{Member: "Orders.created_at", Op: logicalplan.FilterBeforeDate, Values: []string{"2020-02-01"}},
			},
		},
	}

	q, err := Emit(scan, config.Default(), stubCatalog{})
	require.NoError(t, err)
	assert.Empty(t, q.Filters)
	require.Len(t, q.TimeDimensions, 1)
	require.NotNil(t, q.TimeDimensions[0].DateRange)
	assert.Equal(t, "2020-01-01", q.TimeDimensions[0].DateRange.From)
	assert.Equal(t, "2020-02-01", q.TimeDimensions[0].DateRange.To)
}

// A segment atom is diverted to Segments, never appearing in Filters.
func TestEmitExtractsSegment(t *testing.T) {
	scan := &logicalplan.CubeScan{
		Members: []logicalplan.Member{
			{Kind: logicalplan.MMeasure, Name: "Orders.count"},
			{Kind: logicalplan.MSegment, Name: "Orders.completed"},
		},
		Filter: &logicalplan.CubeFilter{Segment: "Orders.completed"},
	}

	q, err := Emit(scan, config.Default(), stubCatalog{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Orders.completed"}, q.Segments)
	assert.Empty(t, q.Filters)
}

// A second top-level change_user filter is rejected.
func TestEmitRejectsDuplicateChangeUser(t *testing.T) {
	scan := &logicalplan.CubeScan{
		Members: []logicalplan.Member{{Kind: logicalplan.MMeasure, Name: "Orders.count"}},
		Filter: &logicalplan.CubeFilter{
			And: []*logicalplan.CubeFilter{
				{ChangeUser: true},
				{ChangeUser: true},
			},
		},
	}

	_, err := Emit(scan, config.Default(), stubCatalog{})
	assert.Error(t, err)
	var dup *DuplicateChangeUserError
	assert.ErrorAs(t, err, &dup)
}

// A change_user filter under OR is rejected.
func TestEmitRejectsChangeUserUnderOr(t *testing.T) {
	scan := &logicalplan.CubeScan{
		Members: []logicalplan.Member{{Kind: logicalplan.MMeasure, Name: "Orders.count"}},
		Filter: &logicalplan.CubeFilter{
			Or: []*logicalplan.CubeFilter{
				{ChangeUser: true},
				{Member: "Orders.status", Op: logicalplan.FilterEquals, Values: []string{"done"}},
			},
		},
	}

	_, err := Emit(scan, config.Default(), stubCatalog{})
	assert.Error(t, err)
	var orErr *OrWithChangeUserError
	assert.ErrorAs(t, err, &orErr)
}

// A CubeScan with no measures/dimensions/time-dimensions is rejected
// before the filter tree is even lowered.
func TestEmitRejectsNoMembers(t *testing.T) {
	scan := &logicalplan.CubeScan{}
	_, err := Emit(scan, config.Default(), stubCatalog{})
	assert.Error(t, err)
	var noMembers *NoMembersError
	assert.ErrorAs(t, err, &noMembers)
}

// A MemberError member surfaces as a user-facing error from Emit itself.
func TestEmitSurfacesMemberError(t *testing.T) {
	scan := &logicalplan.CubeScan{
		Members: []logicalplan.Member{
			{Kind: logicalplan.MMemberError, Error: "unknown member Orders.bogus"},
		},
	}
	_, err := Emit(scan, config.Default(), stubCatalog{})
	assert.EqualError(t, err, "unknown member Orders.bogus")
}

// rule 7: a requested limit above the configured cap clamps and sets
// MaxRecords.
func TestEmitClampsLimitToConfiguredCap(t *testing.T) {
	cfg := config.Default()
	cfg.QueryRowLimit = 100
	over := int64(5000)
	scan := &logicalplan.CubeScan{
		Members: []logicalplan.Member{{Kind: logicalplan.MMeasure, Name: "Orders.count"}},
		Limit:   &over,
	}

	q, err := Emit(scan, cfg, stubCatalog{})
	require.NoError(t, err)
	require.NotNil(t, q.Limit)
	assert.EqualValues(t, 100, *q.Limit)
	assert.True(t, q.MaxRecords)
}

// rule 7: no limit requested and fail-on-max-limit-hit disabled leaves
// the limit unset.
func TestEmitLeavesLimitUnsetByDefault(t *testing.T) {
	scan := &logicalplan.CubeScan{
		Members: []logicalplan.Member{{Kind: logicalplan.MMeasure, Name: "Orders.count"}},
	}
	q, err := Emit(scan, config.Default(), stubCatalog{})
	require.NoError(t, err)
	assert.Nil(t, q.Limit)
	assert.False(t, q.MaxRecords)
}
