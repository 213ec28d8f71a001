package checkpoint

import "io"

// Engine is the subset of catalog.Metastore the shipper depends on.
// *catalog.Metastore satisfies this via its Backup/Load methods.
// Kept as a narrow interface (rather than importing catalog directly)
// so the shipper and its recovery path stay independently testable
// against a fake engine, the same separation the original draws between
// RocksMetaStore and the generic RemoteFs trait it's parameterized over.
type Engine interface {
	// Backup writes every entry committed after version `since` to w and
	// returns the highest version written. since == 0 is a full backup.
	Backup(w io.Writer, since uint64) (uint64, error)
	// Load replays a stream produced by Backup into the engine.
	Load(r io.Reader) error
}
