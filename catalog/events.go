package catalog

// EventType is the tagged-union discriminant of spec.md §4.6 rule 5:
// "{insert|update|delete, kind, old?, new?}".
type EventType uint8

const (
	EventInsert EventType = iota
	EventUpdate
	EventDelete
)

// Event is a single typed update emitted to every registered listener
// after the write batch that produced it commits.
type Event struct {
	Type EventType
	Kind Kind
	Old  interface{} // set for update/delete
	New  interface{} // set for insert/update
}

// EventListener observes committed catalog mutations. Listeners are
// invoked synchronously during Batch.Commit; a slow listener delays the
// write lock's release, mirroring how the teacher's own storage layer
// has no asynchronous event dispatch to speak of and callers are
// expected to keep hooks cheap.
type EventListener func(Event)
