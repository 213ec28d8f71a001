package catalog

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// SecondaryIndexSpec declares one secondary index kept in sync on every
// insert/update/delete of rows of Kind (spec.md §4.6: "(index_id,
// key_bytes_fn, unique?)").
type SecondaryIndexSpec struct {
	IndexID uint32
	Kind    Kind
	KeyFunc func(row interface{}) []byte
	Unique  bool
}

func hashKeyBytes(keyBytes []byte) uint64 {
	return xxhash.Sum64(keyBytes)
}

// secondaryIndexesFor returns the declared secondary indexes for a kind,
// in a stable registration order.
func (m *Metastore) secondaryIndexesFor(k Kind) []SecondaryIndexSpec {
	return m.secondaryIndexes[k]
}

func (m *Metastore) registerSecondaryIndex(spec SecondaryIndexSpec) {
	m.secondaryIndexes[spec.Kind] = append(m.secondaryIndexes[spec.Kind], spec)
}

// Secondary index ids, one per unique-name constraint the entity
// registry declares (spec.md §4.6's create_schema/create_table/
// create_index uniqueness rules).
const (
	secIdxSchemaName uint32 = iota
	secIdxTableSchemaName
	secIdxIndexTableName
	secIdxJobRowReference
)

func registerDefaultSecondaryIndexes(m *Metastore) {
	m.registerSecondaryIndex(SecondaryIndexSpec{
		IndexID: secIdxSchemaName,
		Kind:    KindSchema,
		Unique:  true,
		KeyFunc: func(row interface{}) []byte {
			s := row.(Schema)
			return []byte(s.Name)
		},
	})
	m.registerSecondaryIndex(SecondaryIndexSpec{
		IndexID: secIdxTableSchemaName,
		Kind:    KindTable,
		Unique:  true,
		KeyFunc: func(row interface{}) []byte {
			t := row.(Table)
			return tableNameKey(t.SchemaID, t.Name)
		},
	})
	m.registerSecondaryIndex(SecondaryIndexSpec{
		IndexID: secIdxIndexTableName,
		Kind:    KindIndex,
		Unique:  true,
		KeyFunc: func(row interface{}) []byte {
			ix := row.(Index)
			return indexNameKey(ix.TableID, ix.Name)
		},
	})
	m.registerSecondaryIndex(SecondaryIndexSpec{
		IndexID: secIdxJobRowReference,
		Kind:    KindJob,
		Unique:  true,
		KeyFunc: func(row interface{}) []byte {
			j := row.(Job)
			return jobReferenceKey(j.RowReference, j.JobKind)
		},
	})
}

func tableNameKey(schemaID EntityID, name string) []byte {
	return []byte(fmt.Sprintf("%d/%s", schemaID, name))
}

func indexNameKey(tableID EntityID, name string) []byte {
	return []byte(fmt.Sprintf("%d/%s", tableID, name))
}

func jobReferenceKey(ref RowReference, jobKind string) []byte {
	return []byte(fmt.Sprintf("%d/%d/%s", ref.Kind, ref.ID, jobKind))
}
