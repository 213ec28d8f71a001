// Package config holds the single read-only configuration record injected
// into the cube query emitter, the catalog and the checkpoint shipper.
//
// There is deliberately no loader here: flags, environment variables and
// file parsing are bootstrap concerns and out of scope for this module.
// Callers construct a Config (or use Default()) and pass it down.
package config

import "time"

// Config is the recognized set of options from the cube engine's external
// interface. Zero value is not meaningful; use Default() as a base.
type Config struct {
	// QueryRowLimit is the hard cap applied to a cube query's limit.
	QueryRowLimit uint32

	// FailOnMaxLimitHit, when true, makes a query with no limit get
	// QueryRowLimit as its limit with MaxRecords set. A limit above
	// QueryRowLimit is clamped with MaxRecords set whether or not this
	// flag is on.
	FailOnMaxLimitHit bool

	// NotUsedTimeout is the minimum idle time after which a chunk or
	// partition becomes eligible for garbage collection.
	NotUsedTimeout time.Duration

	// MetaStoreLogUploadInterval is the sleep interval between log
	// shipper iterations.
	MetaStoreLogUploadInterval time.Duration

	// MetaStoreSnapshotInterval is the minimum spacing between full
	// metastore snapshots.
	MetaStoreSnapshotInterval time.Duration

	// MetaStoreSnapshotRetention is how long a superseded snapshot is
	// kept before being garbage collected, measured from the moment a
	// newer snapshot exists.
	MetaStoreSnapshotRetention time.Duration

	// SelectWorkers is the ordered list of worker addresses used when
	// distributing cluster-sends. Opaque to this module; carried through
	// for the physical planner to attach to ClusterSend snapshots.
	SelectWorkers []string

	// StrictRecovery aborts checkpoint recovery on the first corrupted
	// log file instead of truncating replay at that point. See
	// DESIGN.md, Open Question 2.
	StrictRecovery bool

	// LockTimeout is the implicit deadline on catalog lock acquisition
	// and batch commit (spec.md §5).
	LockTimeout time.Duration
}

// Default returns the documented defaults from spec.md §6.
func Default() Config {
	return Config{
		QueryRowLimit:              50000,
		FailOnMaxLimitHit:          false,
		NotUsedTimeout:             10 * time.Minute,
		MetaStoreLogUploadInterval: 60 * time.Second,
		MetaStoreSnapshotInterval:  5 * time.Minute,
		MetaStoreSnapshotRetention: 3 * time.Minute,
		StrictRecovery:             false,
		LockTimeout:                10 * time.Second,
	}
}
