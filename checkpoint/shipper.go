package checkpoint

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/cubegraph/cubeplan/config"
)

// Shipper runs the single background loop of spec.md §4.7: ship the log
// tail to remote storage on a short interval, and every so often fold it
// into a fresh full snapshot, garbage-collecting snapshots old enough
// that no in-flight reader still depends on them.
type Shipper struct {
	engine Engine
	remote RemoteStorage
	cfg    config.Config

	lastUploadedSeq   uint64
	lastCheckpointAt  time.Time
	currentSnapshot   string
}

// NewShipper constructs a Shipper against an already-open engine. The
// caller is responsible for having already recovered the engine's local
// state via Recover before starting the loop, matching the original's
// "create the RocksMetaStore, then spawn its upload loop" ordering.
func NewShipper(engine Engine, remote RemoteStorage, cfg config.Config) *Shipper {
	return &Shipper{engine: engine, remote: remote, cfg: cfg}
}

// Run ships log tails and checkpoints on cfg.MetaStoreLogUploadInterval
// until ctx is cancelled, mirroring the original's single-threaded
// cooperative upload_loop (spec.md §5: "a single-threaded cooperative
// loop per background concern").
func (s *Shipper) Run(ctx context.Context) error {
	interval := s.cfg.MetaStoreLogUploadInterval
	if interval <= 0 {
		interval = 60 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				return err
			}
		}
	}
}

// RunOnce performs a single iteration of the five steps in spec.md §4.7.
func (s *Shipper) RunOnce(ctx context.Context) error {
	if s.currentSnapshot == "" {
		// No snapshot exists yet to nest log files under; take one
		// before shipping any incremental writes.
		if err := s.takeCheckpoint(ctx); err != nil {
			return err
		}
	}

	if err := s.shipLogTail(ctx); err != nil {
		return err
	}

	if time.Since(s.lastCheckpointAt) > s.checkpointInterval() {
		if err := s.takeCheckpoint(ctx); err != nil {
			return err
		}
	}

	return s.garbageCollect(ctx)
}

func (s *Shipper) checkpointInterval() time.Duration {
	if s.cfg.MetaStoreSnapshotInterval > 0 {
		return s.cfg.MetaStoreSnapshotInterval
	}
	return 5 * time.Minute
}

func (s *Shipper) retention() time.Duration {
	if s.cfg.MetaStoreSnapshotRetention > 0 {
		return s.cfg.MetaStoreSnapshotRetention
	}
	return 3 * time.Minute
}

// shipLogTail implements steps 1-3: snapshot the committed sequence
// number via an incremental backup; if it's unchanged since the last
// iteration, there's nothing to ship.
func (s *Shipper) shipLogTail(ctx context.Context) error {
	var buf bytes.Buffer
	next, err := s.engine.Backup(&buf, s.lastUploadedSeq)
	if err != nil {
		return fmt.Errorf("checkpoint: snapshot updates since %d: %w", s.lastUploadedSeq, err)
	}
	if next == s.lastUploadedSeq {
		return nil
	}

	key := logKey(s.currentSnapshot, s.lastUploadedSeq+1)
	if err := s.remote.Put(ctx, key, &buf); err != nil {
		return fmt.Errorf("checkpoint: upload log %s: %w", key, err)
	}
	s.lastUploadedSeq = next
	return nil
}

// takeCheckpoint implements step 4: a full snapshot under a fresh
// `metastore-<ts>-<uuid>` prefix, with the `metastore-current` pointer
// file updated last so a crash mid-upload never points at a partial
// snapshot.
func (s *Shipper) takeCheckpoint(ctx context.Context) error {
	var buf bytes.Buffer
	maxSeq, err := s.engine.Backup(&buf, 0)
	if err != nil {
		return fmt.Errorf("checkpoint: full backup: %w", err)
	}

	now := time.Now()
	snapshot := snapshotPrefix(now.UnixMilli())
	if err := s.remote.Put(ctx, snapshot, &buf); err != nil {
		return fmt.Errorf("checkpoint: upload snapshot %s: %w", snapshot, err)
	}
	if err := s.remote.Put(ctx, pointerKey, bytes.NewBufferString(snapshot)); err != nil {
		return fmt.Errorf("checkpoint: write pointer: %w", err)
	}

	s.currentSnapshot = snapshot
	s.lastCheckpointAt = now
	s.lastUploadedSeq = maxSeq
	return nil
}

// garbageCollect implements step 5: snapshots older than the retention
// window are deleted, except the one the pointer file currently names,
// so at least one newer snapshot always exists before a deletion.
func (s *Shipper) garbageCollect(ctx context.Context) error {
	keys, err := s.remote.List(ctx, "metastore-")
	if err != nil {
		return fmt.Errorf("checkpoint: list snapshots: %w", err)
	}

	cutoff := time.Now().Add(-s.retention())
	for _, key := range keys {
		if key == pointerKey || key == s.currentSnapshot {
			continue
		}
		// Skip log-directory entries; only top-level snapshot blobs are
		// garbage-collected here.
		if containsLogSuffix(key) {
			continue
		}
		millis, ok := snapshotMillis(key)
		if !ok {
			continue
		}
		if time.UnixMilli(millis).Before(cutoff) {
			if err := s.remote.Delete(ctx, key); err != nil {
				return fmt.Errorf("checkpoint: gc snapshot %s: %w", key, err)
			}
			logPrefix := logsPrefix(key)
			logFiles, err := s.remote.List(ctx, logPrefix)
			if err != nil {
				return fmt.Errorf("checkpoint: list logs for gc %s: %w", key, err)
			}
			for _, lf := range logFiles {
				if err := s.remote.Delete(ctx, lf); err != nil {
					return fmt.Errorf("checkpoint: gc log %s: %w", lf, err)
				}
			}
		}
	}
	return nil
}

func containsLogSuffix(key string) bool {
	_, ok := logSeqOf(key)
	return ok
}
