package catalog

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// Batch is a single atomic write, spec.md §4.6's transactional contract:
// any number of primary and secondary key mutations commit together or
// not at all, and update events are queued until commit succeeds.
type Batch struct {
	m       *Metastore
	txn     *badger.Txn
	release func()
	events  []Event
}

// newBatch acquires the process-wide write lock and starts a writable
// badger transaction. Callers must call Commit or Discard exactly once.
func (m *Metastore) newBatch(ctx context.Context) (*Batch, error) {
	release, err := m.acquireWrite(ctx)
	if err != nil {
		return nil, err
	}
	return &Batch{m: m, txn: m.db.NewTransaction(true), release: release}, nil
}

// Commit applies every queued mutation atomically, then dispatches the
// batch's events to every listener in commit order. The write lock is
// held through dispatch so that no other batch's events can interleave
// for a given listener, satisfying spec.md §5's ordering guarantee.
func (b *Batch) Commit() error {
	defer b.release()
	if err := b.txn.Commit(); err != nil {
		return fmt.Errorf("catalog: commit: %w", err)
	}
	for _, l := range b.m.listeners {
		for _, ev := range b.events {
			l(ev)
		}
	}
	return nil
}

// Discard abandons every queued mutation.
func (b *Batch) Discard() {
	defer b.release()
	b.txn.Discard()
}

// nextID allocates the next row id for kind k from its sequence key.
func (b *Batch) nextID(k Kind) (EntityID, error) {
	key := sequenceKey(k)
	var current uint64
	item, err := b.txn.Get(key)
	switch {
	case err == nil:
		if err := item.Value(func(val []byte) error {
			current = binary.BigEndian.Uint64(val)
			return nil
		}); err != nil {
			return 0, fmt.Errorf("catalog: read sequence: %w", err)
		}
	case err == badger.ErrKeyNotFound:
		current = 0
	default:
		return 0, fmt.Errorf("catalog: read sequence: %w", err)
	}

	next := current + 1
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, next)
	if err := b.txn.Set(key, buf); err != nil {
		return 0, fmt.Errorf("catalog: write sequence: %w", err)
	}
	return EntityID(next), nil
}

// get reads a row of kind k within this batch's own in-flight snapshot.
func (b *Batch) get(k Kind, id EntityID) (interface{}, error) {
	item, err := b.txn.Get(primaryKey(k, id))
	if err == badger.ErrKeyNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var row interface{}
	err = item.Value(func(val []byte) error {
		v, decodeErr := decodeEntity(val)
		if decodeErr != nil {
			return decodeErr
		}
		row = v
		return nil
	})
	return row, err
}

// insert serializes row, enforces every unique secondary index, then
// writes the primary entry and every secondary entry (spec.md §4.6
// writer steps 1-4), queuing an insert event for step 5.
func (b *Batch) insert(k Kind, id EntityID, row interface{}) error {
	if err := b.checkUniqueSecondaries(k, row, id); err != nil {
		return err
	}

	data, err := encodeEntity(row)
	if err != nil {
		return err
	}
	if err := b.txn.Set(primaryKey(k, id), data); err != nil {
		return fmt.Errorf("catalog: write primary: %w", err)
	}
	if err := b.putSecondaries(k, id, row); err != nil {
		return err
	}

	b.events = append(b.events, Event{Type: EventInsert, Kind: k, New: row})
	return nil
}

// update replaces row id's value, re-keying any secondary index whose
// key function's output changed.
func (b *Batch) update(k Kind, id EntityID, old, row interface{}) error {
	if err := b.checkUniqueSecondaries(k, row, id); err != nil {
		return err
	}

	data, err := encodeEntity(row)
	if err != nil {
		return err
	}
	if err := b.deleteSecondaries(k, id, old); err != nil {
		return err
	}
	if err := b.txn.Set(primaryKey(k, id), data); err != nil {
		return fmt.Errorf("catalog: write primary: %w", err)
	}
	if err := b.putSecondaries(k, id, row); err != nil {
		return err
	}

	b.events = append(b.events, Event{Type: EventUpdate, Kind: k, Old: old, New: row})
	return nil
}

// delete removes row id and every secondary entry pointing at it.
func (b *Batch) delete(k Kind, id EntityID, old interface{}) error {
	if err := b.txn.Delete(primaryKey(k, id)); err != nil && err != badger.ErrKeyNotFound {
		return fmt.Errorf("catalog: delete primary: %w", err)
	}
	if err := b.deleteSecondaries(k, id, old); err != nil {
		return err
	}
	b.events = append(b.events, Event{Type: EventDelete, Kind: k, Old: old})
	return nil
}

func (b *Batch) checkUniqueSecondaries(k Kind, row interface{}, id EntityID) error {
	for _, spec := range b.m.secondaryIndexesFor(k) {
		if !spec.Unique {
			continue
		}
		keyBytes := spec.KeyFunc(row)
		existing, err := b.lookupSecondary(spec, keyBytes)
		if err != nil {
			return err
		}
		if existing != nil && *existing != id {
			return fmt.Errorf("catalog: %s violates unique secondary index %d", k, spec.IndexID)
		}
	}
	return nil
}

// lookupSecondary scans the hash-prefix bucket for a secondary index and
// confirms each candidate by comparing its stored key_bytes, rejecting
// hash collisions per spec.md §4.6.
func (b *Batch) lookupSecondary(spec SecondaryIndexSpec, keyBytes []byte) (*EntityID, error) {
	hash := hashKeyBytes(keyBytes)
	prefix := secondaryHashPrefix(spec.IndexID, hash)

	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = true
	it := b.txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		var matched bool
		var rowID EntityID
		err := item.Value(func(val []byte) error {
			if bytes.Equal(val, keyBytes) {
				matched = true
				rowID = rowIDFromSecondaryKey(item.Key())
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		if matched {
			return &rowID, nil
		}
	}
	return nil, nil
}

func (b *Batch) putSecondaries(k Kind, id EntityID, row interface{}) error {
	for _, spec := range b.m.secondaryIndexesFor(k) {
		keyBytes := spec.KeyFunc(row)
		key := secondaryKey(spec.IndexID, hashKeyBytes(keyBytes), id)
		if err := b.txn.Set(key, keyBytes); err != nil {
			return fmt.Errorf("catalog: write secondary: %w", err)
		}
	}
	return nil
}

func (b *Batch) deleteSecondaries(k Kind, id EntityID, row interface{}) error {
	for _, spec := range b.m.secondaryIndexesFor(k) {
		keyBytes := spec.KeyFunc(row)
		key := secondaryKey(spec.IndexID, hashKeyBytes(keyBytes), id)
		if err := b.txn.Delete(key); err != nil && err != badger.ErrKeyNotFound {
			return fmt.Errorf("catalog: delete secondary: %w", err)
		}
	}
	return nil
}

func rowIDFromSecondaryKey(key []byte) EntityID {
	return EntityID(binary.BigEndian.Uint64(key[len(key)-8:]))
}
