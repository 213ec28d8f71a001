package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// IndexSpec is a caller-declared index passed to CreateTable, for
// indexes beyond the implicit default one.
type IndexSpec struct {
	Name        string
	Columns     []string
	SortKeySize int
	Type        IndexType
}

// CreateSchema implements spec.md §4.6's create_schema: unique by name,
// returning the existing row when ifNotExists is set.
func (m *Metastore) CreateSchema(ctx context.Context, name string, ifNotExists bool) (Schema, error) {
	if existing, err := m.GetSchemaByName(ctx, name); err == nil {
		if ifNotExists {
			return existing, nil
		}
		return Schema{}, fmt.Errorf("catalog: schema %q already exists", name)
	}

	b, err := m.newBatch(ctx)
	if err != nil {
		return Schema{}, err
	}
	id, err := b.nextID(KindSchema)
	if err != nil {
		b.Discard()
		return Schema{}, err
	}
	row := Schema{ID: id, Name: name}
	if err := b.insert(KindSchema, id, row); err != nil {
		b.Discard()
		return Schema{}, err
	}
	if err := b.Commit(); err != nil {
		return Schema{}, err
	}
	return row, nil
}

// CreateTable implements spec.md §4.6's create_table: creates the table
// plus a default index over every sortable column in declared order,
// then every explicitly requested index, rejecting duplicate index
// names and sort columns that don't name a declared column.
func (m *Metastore) CreateTable(
	ctx context.Context,
	schemaID EntityID,
	name string,
	columns []Column,
	locations []string,
	importFormat string,
	indexes []IndexSpec,
) (Table, error) {
	if err := validateIndexSpecs(columns, indexes); err != nil {
		return Table{}, err
	}

	b, err := m.newBatch(ctx)
	if err != nil {
		return Table{}, err
	}

	tableID, err := b.nextID(KindTable)
	if err != nil {
		b.Discard()
		return Table{}, err
	}
	table := Table{
		ID:           tableID,
		SchemaID:     schemaID,
		Name:         name,
		Columns:      columns,
		Locations:    locations,
		ImportFormat: importFormat,
		CreatedAt:    time.Now(),
	}
	if err := b.insert(KindTable, tableID, table); err != nil {
		b.Discard()
		return Table{}, err
	}

	defaultCols := defaultSortColumns(columns)
	specs := append([]IndexSpec{{Name: "default", Columns: defaultCols, SortKeySize: len(defaultCols), Type: IndexRegular}}, indexes...)
	for _, spec := range specs {
		indexID, err := b.nextID(KindIndex)
		if err != nil {
			b.Discard()
			return Table{}, err
		}
		idx := Index{
			ID:          indexID,
			TableID:     tableID,
			Name:        spec.Name,
			Columns:     spec.Columns,
			SortKeySize: spec.SortKeySize,
			Type:        spec.Type,
		}
		if err := b.insert(KindIndex, indexID, idx); err != nil {
			b.Discard()
			return Table{}, err
		}
	}

	if err := b.Commit(); err != nil {
		return Table{}, err
	}
	return table, nil
}

func defaultSortColumns(columns []Column) []string {
	var out []string
	for _, c := range columns {
		if c.Type.Sortable() {
			out = append(out, c.Name)
		}
	}
	return out
}

func validateIndexSpecs(columns []Column, indexes []IndexSpec) error {
	known := make(map[string]bool, len(columns))
	for _, c := range columns {
		known[c.Name] = true
	}
	seenNames := map[string]bool{"default": true}
	for _, spec := range indexes {
		if seenNames[spec.Name] {
			return fmt.Errorf("catalog: duplicate index name %q", spec.Name)
		}
		seenNames[spec.Name] = true
		for _, col := range spec.Columns {
			if !known[col] {
				return fmt.Errorf("catalog: index %q references unknown column %q", spec.Name, col)
			}
		}
	}
	return nil
}

// CreatePartition inserts a new partition row.
func (m *Metastore) CreatePartition(ctx context.Context, p Partition) (Partition, error) {
	b, err := m.newBatch(ctx)
	if err != nil {
		return Partition{}, err
	}
	id, err := b.nextID(KindPartition)
	if err != nil {
		b.Discard()
		return Partition{}, err
	}
	p.ID = id
	if err := b.insert(KindPartition, id, p); err != nil {
		b.Discard()
		return Partition{}, err
	}
	if err := b.Commit(); err != nil {
		return Partition{}, err
	}
	return p, nil
}

// MinMaxUpdate supplies the new bounds and row count for a partition
// being activated by SwapActivePartitions.
type MinMaxUpdate struct {
	Min      RowBound
	Max      RowBound
	RowCount int64
}

// SwapActivePartitions implements spec.md §4.6's swap_active_partitions:
// atomically deactivates a set of source partitions (and their
// compacted chunks) and activates a set of result partitions with new
// bounds, asserting that the sum of deactivated row counts equals the
// sum of activated row counts.
func (m *Metastore) SwapActivePartitions(
	ctx context.Context,
	deactivate []EntityID,
	activate []EntityID,
	compactedChunks []EntityID,
	newMinMax map[EntityID]MinMaxUpdate,
) error {
	b, err := m.newBatch(ctx)
	if err != nil {
		return err
	}

	var deactivatedRows, activatedRows int64

	deactivatedPartitions := make(map[EntityID]Partition, len(deactivate))
	for _, id := range deactivate {
		row, err := b.get(KindPartition, id)
		if err != nil {
			b.Discard()
			return err
		}
		p := row.(Partition)
		if !p.Active {
			b.Discard()
			return fmt.Errorf("catalog: partition %d is not active", id)
		}
		deactivatedRows += p.MainTableRowCount
		deactivatedPartitions[id] = p
	}

	activatedPartitions := make(map[EntityID]Partition, len(activate))
	for _, id := range activate {
		row, err := b.get(KindPartition, id)
		if err != nil {
			b.Discard()
			return err
		}
		p := row.(Partition)
		if p.Active {
			b.Discard()
			return fmt.Errorf("catalog: partition %d is already active", id)
		}
		if upd, ok := newMinMax[id]; ok {
			p.Min, p.Max, p.MainTableRowCount = upd.Min, upd.Max, upd.RowCount
		}
		activatedRows += p.MainTableRowCount
		activatedPartitions[id] = p
	}

	if deactivatedRows != activatedRows {
		b.Discard()
		return fmt.Errorf("catalog: row-count conservation violated: %d deactivated vs %d activated", deactivatedRows, activatedRows)
	}

	for id, p := range deactivatedPartitions {
		old := p
		p.Active = false
		if err := b.update(KindPartition, id, old, p); err != nil {
			b.Discard()
			return err
		}
	}
	for id, p := range activatedPartitions {
		old, err := b.get(KindPartition, id)
		if err != nil {
			b.Discard()
			return err
		}
		p.Active = true
		if err := b.update(KindPartition, id, old, p); err != nil {
			b.Discard()
			return err
		}
	}
	for _, chunkID := range compactedChunks {
		row, err := b.get(KindChunk, chunkID)
		if err != nil {
			b.Discard()
			return err
		}
		old := row.(Chunk)
		newChunk := old
		newChunk.Active = false
		if err := b.update(KindChunk, chunkID, old, newChunk); err != nil {
			b.Discard()
			return err
		}
	}

	return b.Commit()
}

// ActivateChunks implements spec.md §4.6's activate_chunks: marks every
// chunk id uploaded and active.
func (m *Metastore) ActivateChunks(ctx context.Context, tableID EntityID, chunkIDs []EntityID) error {
	b, err := m.newBatch(ctx)
	if err != nil {
		return err
	}
	for _, id := range chunkIDs {
		row, err := b.get(KindChunk, id)
		if err != nil {
			b.Discard()
			return err
		}
		old := row.(Chunk)
		newChunk := old
		newChunk.Uploaded = true
		newChunk.Active = true
		if err := b.update(KindChunk, id, old, newChunk); err != nil {
			b.Discard()
			return err
		}
	}
	return b.Commit()
}

// SwapChunks implements spec.md §4.6's swap_chunks: atomically
// deactivates one set of chunks and activates another, asserting
// row-count conservation across the swap.
func (m *Metastore) SwapChunks(ctx context.Context, deactivate []EntityID, activate []EntityID) error {
	b, err := m.newBatch(ctx)
	if err != nil {
		return err
	}

	var deactivatedRows, activatedRows int64
	deactivated := make(map[EntityID]Chunk, len(deactivate))
	for _, id := range deactivate {
		row, err := b.get(KindChunk, id)
		if err != nil {
			b.Discard()
			return err
		}
		c := row.(Chunk)
		deactivatedRows += c.RowCount
		deactivated[id] = c
	}
	activated := make(map[EntityID]Chunk, len(activate))
	for _, id := range activate {
		row, err := b.get(KindChunk, id)
		if err != nil {
			b.Discard()
			return err
		}
		c := row.(Chunk)
		activatedRows += c.RowCount
		activated[id] = c
	}
	if deactivatedRows != activatedRows {
		b.Discard()
		return fmt.Errorf("catalog: row-count conservation violated: %d deactivated vs %d activated", deactivatedRows, activatedRows)
	}

	for id, c := range deactivated {
		old := c
		c.Active = false
		if err := b.update(KindChunk, id, old, c); err != nil {
			b.Discard()
			return err
		}
	}
	for id, c := range activated {
		old := c
		c.Active = true
		c.Uploaded = true
		if err := b.update(KindChunk, id, old, c); err != nil {
			b.Discard()
			return err
		}
	}

	return b.Commit()
}

// PartitionChunks pairs a partition with the chunks GetActivePartitions...
// selected for it.
type PartitionChunks struct {
	Partition Partition
	Chunks    []Chunk
}

// GetActivePartitionsAndChunksByIndexIDForSelect implements spec.md
// §4.6: returns every active partition of indexID together with its
// active chunks, also walking up the parent chain to pick up chunks on
// ancestor partitions that have not yet had all their data migrated to
// descendants (an ancestor's own Active chunks, even once the ancestor
// partition itself has been superseded). Every returned partition and
// chunk has its LastUsed timestamp refreshed.
func (m *Metastore) GetActivePartitionsAndChunksByIndexIDForSelect(ctx context.Context, indexID EntityID) ([]PartitionChunks, error) {
	b, err := m.newBatch(ctx)
	if err != nil {
		return nil, err
	}

	var leaves []Partition
	if err := m.scanAll(KindPartition, func(row interface{}) bool {
		p := row.(Partition)
		if p.IndexID == indexID && p.Active {
			leaves = append(leaves, p)
		}
		return true
	}); err != nil {
		b.Discard()
		return nil, err
	}

	now := time.Now()
	seenPartitions := map[EntityID]bool{}
	var result []PartitionChunks

	for _, leaf := range leaves {
		chain := []Partition{leaf}
		cursor := leaf
		for cursor.ParentID != nil {
			row, err := b.get(KindPartition, *cursor.ParentID)
			if err != nil {
				if err == ErrNotFound {
					break
				}
				b.Discard()
				return nil, err
			}
			parent := row.(Partition)
			chain = append(chain, parent)
			cursor = parent
		}

		for _, p := range chain {
			if seenPartitions[p.ID] {
				continue
			}
			seenPartitions[p.ID] = true

			var chunks []Chunk
			var rawChunks []Chunk
			if err := m.scanAll(KindChunk, func(row interface{}) bool {
				c := row.(Chunk)
				if c.PartitionID == p.ID && c.Active {
					rawChunks = append(rawChunks, c)
				}
				return true
			}); err != nil {
				b.Discard()
				return nil, err
			}
			for _, c := range rawChunks {
				old := c
				c.LastUsed = &now
				if err := b.update(KindChunk, c.ID, old, c); err != nil {
					b.Discard()
					return nil, err
				}
				chunks = append(chunks, c)
			}

			oldPartition := p
			p.LastUsed = &now
			if err := b.update(KindPartition, p.ID, oldPartition, p); err != nil {
				b.Discard()
				return nil, err
			}
			if len(chunks) > 0 || p.ID == leaf.ID {
				result = append(result, PartitionChunks{Partition: p, Chunks: chunks})
			}
		}
	}

	return result, b.Commit()
}

// AddJob implements spec.md §4.6's add_job: rejected (returns ok=false)
// when another job already exists for the same (row_reference, kind).
func (m *Metastore) AddJob(ctx context.Context, row RowReference, jobKind string) (Job, bool, error) {
	b, err := m.newBatch(ctx)
	if err != nil {
		return Job{}, false, err
	}

	spec := m.secondaryIndexesFor(KindJob)[0]
	keyBytes := jobReferenceKey(row, jobKind)
	if existing, err := b.lookupSecondary(spec, keyBytes); err != nil {
		b.Discard()
		return Job{}, false, err
	} else if existing != nil {
		b.Discard()
		return Job{}, false, nil
	}

	id, err := b.nextID(KindJob)
	if err != nil {
		b.Discard()
		return Job{}, false, err
	}
	job := Job{
		ID:            id,
		RowReference:  row,
		JobKind:       jobKind,
		Status:        JobStatus{Phase: JobScheduled},
		LastHeartbeat: time.Now(),
	}
	if err := b.insert(KindJob, id, job); err != nil {
		b.Discard()
		return Job{}, false, err
	}
	if err := b.Commit(); err != nil {
		return Job{}, false, err
	}
	return job, true, nil
}

// StartProcessingJob implements spec.md §4.6's start_processing_job:
// atomically transitions a scheduled job to processing-by(worker),
// rejecting it if it is already being processed (or otherwise not
// scheduled).
func (m *Metastore) StartProcessingJob(ctx context.Context, jobID EntityID, worker string) (Job, error) {
	b, err := m.newBatch(ctx)
	if err != nil {
		return Job{}, err
	}
	row, err := b.get(KindJob, jobID)
	if err != nil {
		b.Discard()
		return Job{}, err
	}
	old := row.(Job)
	if old.Status.Phase != JobScheduled {
		b.Discard()
		return Job{}, fmt.Errorf("catalog: job %d is not scheduled (phase=%v)", jobID, old.Status.Phase)
	}
	updated := old
	updated.Status = JobStatus{Phase: JobProcessing, ProcessingNode: worker}
	updated.LastHeartbeat = time.Now()
	if err := b.update(KindJob, jobID, old, updated); err != nil {
		b.Discard()
		return Job{}, err
	}
	if err := b.Commit(); err != nil {
		return Job{}, err
	}
	return updated, nil
}

// scanAll walks every primary row of kind k on a read snapshot, calling
// visit(row) until it returns false.
func (m *Metastore) scanAll(k Kind, visit func(interface{}) bool) error {
	prefix := primaryPrefix(k)
	return m.view(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var row interface{}
			err := item.Value(func(val []byte) error {
				v, decodeErr := decodeEntity(val)
				if decodeErr != nil {
					return decodeErr
				}
				row = v
				return nil
			})
			if err != nil {
				return err
			}
			if !visit(row) {
				break
			}
		}
		return nil
	})
}

// GetSchemaByName looks up a schema by its unique name via the secondary
// index registered by registerDefaultSecondaryIndexes.
func (m *Metastore) GetSchemaByName(ctx context.Context, name string) (Schema, error) {
	b, err := m.newBatch(ctx)
	if err != nil {
		return Schema{}, err
	}
	defer b.Discard()

	spec := m.secondaryIndexesFor(KindSchema)[0]
	id, err := b.lookupSecondary(spec, []byte(name))
	if err != nil {
		return Schema{}, err
	}
	if id == nil {
		return Schema{}, ErrNotFound
	}
	row, err := b.get(KindSchema, *id)
	if err != nil {
		return Schema{}, err
	}
	return row.(Schema), nil
}

// GetTable looks up a table by id.
func (m *Metastore) GetTable(id EntityID) (Table, error) {
	var found *Table
	err := m.scanAll(KindTable, func(row interface{}) bool {
		t := row.(Table)
		if t.ID == id {
			found = &t
			return false
		}
		return true
	})
	if err != nil {
		return Table{}, err
	}
	if found == nil {
		return Table{}, ErrNotFound
	}
	return *found, nil
}

// GetIndexesForTable returns every index belonging to tableID.
func (m *Metastore) GetIndexesForTable(tableID EntityID) ([]Index, error) {
	var out []Index
	err := m.scanAll(KindIndex, func(row interface{}) bool {
		ix := row.(Index)
		if ix.TableID == tableID {
			out = append(out, ix)
		}
		return true
	})
	return out, err
}
