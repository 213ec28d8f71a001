package catalog

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cubegraph/cubeplan/config"
)

func newTestStore(t *testing.T) *Metastore {
	t.Helper()
	dir, err := os.MkdirTemp("", "catalog-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	m, err := Open(dir, config.Default())
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestCreateSchemaIsUniqueByName(t *testing.T) {
	m := newTestStore(t)
	ctx := context.Background()

	s1, err := m.CreateSchema(ctx, "analytics", false)
	require.NoError(t, err)
	assert.NotZero(t, s1.ID)

	_, err = m.CreateSchema(ctx, "analytics", false)
	assert.Error(t, err)

	s2, err := m.CreateSchema(ctx, "analytics", true)
	require.NoError(t, err)
	assert.Equal(t, s1.ID, s2.ID)
}

func TestCreateTableBuildsDefaultIndexOverSortableColumns(t *testing.T) {
	m := newTestStore(t)
	ctx := context.Background()

	schema, err := m.CreateSchema(ctx, "analytics", false)
	require.NoError(t, err)

	columns := []Column{
		{Name: "id", Type: ColumnType{Kind: ColInt64}, Position: 0},
		{Name: "amount", Type: ColumnType{Kind: ColDecimal, Precision: 10, Scale: 2}, Position: 1},
		{Name: "created_at", Type: ColumnType{Kind: ColTimestamp}, Position: 2},
	}

	table, err := m.CreateTable(ctx, schema.ID, "orders", columns, nil, "", nil)
	require.NoError(t, err)

	indexes, err := m.GetIndexesForTable(table.ID)
	require.NoError(t, err)
	require.Len(t, indexes, 1)
	assert.Equal(t, "default", indexes[0].Name)
	// decimal column must be excluded from the default sort key.
	assert.Equal(t, []string{"id", "created_at"}, indexes[0].Columns)
}

func TestCreateTableRejectsDuplicateIndexNames(t *testing.T) {
	m := newTestStore(t)
	ctx := context.Background()

	schema, err := m.CreateSchema(ctx, "analytics", false)
	require.NoError(t, err)

	columns := []Column{{Name: "id", Type: ColumnType{Kind: ColInt64}}}
	_, err = m.CreateTable(ctx, schema.ID, "orders", columns, nil, "", []IndexSpec{
		{Name: "default", Columns: []string{"id"}, SortKeySize: 1},
	})
	assert.Error(t, err)
}

func TestCreateTableRejectsUnknownSortColumn(t *testing.T) {
	m := newTestStore(t)
	ctx := context.Background()

	schema, err := m.CreateSchema(ctx, "analytics", false)
	require.NoError(t, err)

	columns := []Column{{Name: "id", Type: ColumnType{Kind: ColInt64}}}
	_, err = m.CreateTable(ctx, schema.ID, "orders", columns, nil, "", []IndexSpec{
		{Name: "by_bogus", Columns: []string{"bogus"}, SortKeySize: 1},
	})
	assert.Error(t, err)
}

func TestAddJobRejectsDuplicateRowReference(t *testing.T) {
	m := newTestStore(t)
	ctx := context.Background()

	ref := RowReference{Kind: KindWAL, ID: 7}
	job, ok, err := m.AddJob(ctx, ref, "compact")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, JobScheduled, job.Status.Phase)

	_, ok, err = m.AddJob(ctx, ref, "compact")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStartProcessingJobRejectsAlreadyProcessing(t *testing.T) {
	m := newTestStore(t)
	ctx := context.Background()

	ref := RowReference{Kind: KindWAL, ID: 9}
	job, _, err := m.AddJob(ctx, ref, "compact")
	require.NoError(t, err)

	started, err := m.StartProcessingJob(ctx, job.ID, "worker-1")
	require.NoError(t, err)
	assert.Equal(t, JobProcessing, started.Status.Phase)
	assert.Equal(t, "worker-1", started.Status.ProcessingNode)

	_, err = m.StartProcessingJob(ctx, job.ID, "worker-2")
	assert.Error(t, err)
}

func TestSwapActivePartitionsAssertsRowCountConservation(t *testing.T) {
	m := newTestStore(t)
	ctx := context.Background()

	schema, err := m.CreateSchema(ctx, "analytics", false)
	require.NoError(t, err)
	columns := []Column{{Name: "id", Type: ColumnType{Kind: ColInt64}}}
	table, err := m.CreateTable(ctx, schema.ID, "orders", columns, nil, "", nil)
	require.NoError(t, err)
	indexes, err := m.GetIndexesForTable(table.ID)
	require.NoError(t, err)
	indexID := indexes[0].ID

	source, err := m.CreatePartition(ctx, Partition{IndexID: indexID, Active: true, MainTableRowCount: 100})
	require.NoError(t, err)
	target, err := m.CreatePartition(ctx, Partition{IndexID: indexID, Active: false})
	require.NoError(t, err)

	err = m.SwapActivePartitions(ctx, []EntityID{source.ID}, []EntityID{target.ID}, nil,
		map[EntityID]MinMaxUpdate{target.ID: {RowCount: 40}})
	assert.Error(t, err, "40 activated rows must not satisfy the 100-row conservation check")

	err = m.SwapActivePartitions(ctx, []EntityID{source.ID}, []EntityID{target.ID}, nil,
		map[EntityID]MinMaxUpdate{target.ID: {RowCount: 100}})
	assert.NoError(t, err)
}

func TestCommitDispatchesEventsInOrder(t *testing.T) {
	m := newTestStore(t)
	ctx := context.Background()

	var events []Event
	m.Subscribe(func(ev Event) { events = append(events, ev) })

	_, err := m.CreateSchema(ctx, "analytics", false)
	require.NoError(t, err)

	require.Len(t, events, 1)
	assert.Equal(t, EventInsert, events[0].Type)
	assert.Equal(t, KindSchema, events[0].Kind)
}

func TestGetActivePartitionsAndChunksIncludesUnrepartitionedAncestorChunks(t *testing.T) {
	m := newTestStore(t)
	ctx := context.Background()

	schema, err := m.CreateSchema(ctx, "analytics", false)
	require.NoError(t, err)
	columns := []Column{{Name: "id", Type: ColumnType{Kind: ColInt64}}}
	table, err := m.CreateTable(ctx, schema.ID, "orders", columns, nil, "", nil)
	require.NoError(t, err)
	indexes, err := m.GetIndexesForTable(table.ID)
	require.NoError(t, err)
	indexID := indexes[0].ID

	parent, err := m.CreatePartition(ctx, Partition{IndexID: indexID, Active: false, MainTableRowCount: 100})
	require.NoError(t, err)
	child, err := m.CreatePartition(ctx, Partition{IndexID: indexID, ParentID: &parent.ID, Active: true})
	require.NoError(t, err)

	b, err := m.newBatch(ctx)
	require.NoError(t, err)
	parentChunk := Chunk{PartitionID: parent.ID, RowCount: 10, Active: true}
	id, err := b.nextID(KindChunk)
	require.NoError(t, err)
	parentChunk.ID = id
	require.NoError(t, b.insert(KindChunk, id, parentChunk))
	require.NoError(t, b.Commit())

	result, err := m.GetActivePartitionsAndChunksByIndexIDForSelect(ctx, indexID)
	require.NoError(t, err)

	var sawParentChunk bool
	var sawChildEntry bool
	for _, pc := range result {
		if pc.Partition.ID == parent.ID && len(pc.Chunks) == 1 {
			sawParentChunk = true
		}
		if pc.Partition.ID == child.ID {
			sawChildEntry = true
		}
	}
	assert.True(t, sawParentChunk, "ancestor partition's active chunk must be included")
	assert.True(t, sawChildEntry, "active leaf partition must be included even with no chunks yet")
}
