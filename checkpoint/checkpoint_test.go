package checkpoint

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cubegraph/cubeplan/config"
)

// fakeEngine is an in-memory Engine: each "write" is a byte appended to
// a log, and Backup(w, since) replays everything after index `since`.
type fakeEngine struct {
	writes [][]byte
}

func (e *fakeEngine) write(b []byte) { e.writes = append(e.writes, b) }

func (e *fakeEngine) Backup(w io.Writer, since uint64) (uint64, error) {
	for i := since; i < uint64(len(e.writes)); i++ {
		if _, err := w.Write(e.writes[i]); err != nil {
			return since, err
		}
		if _, err := w.Write([]byte("\n")); err != nil {
			return since, err
		}
	}
	return uint64(len(e.writes)), nil
}

func (e *fakeEngine) Load(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	for _, line := range bytes.Split(bytes.TrimRight(data, "\n"), []byte("\n")) {
		if len(line) > 0 {
			e.writes = append(e.writes, line)
		}
	}
	return nil
}

func newTestRemote(t *testing.T) *LocalDirRemoteFs {
	t.Helper()
	dir := t.TempDir()
	remote, err := NewLocalDirRemoteFs(dir)
	require.NoError(t, err)
	return remote
}

func TestShipperTakesInitialCheckpointBeforeShippingLogs(t *testing.T) {
	ctx := context.Background()
	engine := &fakeEngine{}
	engine.write([]byte("row-1"))
	remote := newTestRemote(t)

	s := NewShipper(engine, remote, config.Default())
	require.NoError(t, s.RunOnce(ctx))

	keys, err := remote.List(ctx, "")
	require.NoError(t, err)
	assert.Contains(t, keys, pointerKey)
	assert.NotEmpty(t, s.currentSnapshot)
}

func TestShipperSkipsUploadWhenNothingChanged(t *testing.T) {
	ctx := context.Background()
	engine := &fakeEngine{}
	remote := newTestRemote(t)

	s := NewShipper(engine, remote, config.Default())
	require.NoError(t, s.RunOnce(ctx))

	keysAfterFirst, err := remote.List(ctx, s.currentSnapshot+"-logs/")
	require.NoError(t, err)
	assert.Empty(t, keysAfterFirst)

	require.NoError(t, s.RunOnce(ctx))
	keysAfterSecond, err := remote.List(ctx, s.currentSnapshot+"-logs/")
	require.NoError(t, err)
	assert.Empty(t, keysAfterSecond, "no new writes means no new log blob")
}

func TestShipperShipsLogTailBetweenCheckpoints(t *testing.T) {
	ctx := context.Background()
	engine := &fakeEngine{}
	remote := newTestRemote(t)

	s := NewShipper(engine, remote, config.Default())
	require.NoError(t, s.RunOnce(ctx))

	engine.write([]byte("row-2"))
	require.NoError(t, s.RunOnce(ctx))

	logKeys, err := remote.List(ctx, s.currentSnapshot+"-logs/")
	require.NoError(t, err)
	assert.Len(t, logKeys, 1)
}

func TestRecoverReplaysSnapshotAndLogTail(t *testing.T) {
	ctx := context.Background()
	source := &fakeEngine{}
	source.write([]byte("row-1"))
	remote := newTestRemote(t)

	s := NewShipper(source, remote, config.Default())
	require.NoError(t, s.RunOnce(ctx))
	source.write([]byte("row-2"))
	require.NoError(t, s.RunOnce(ctx))

	dataDir := filepath.Join(t.TempDir(), "fresh-process")
	target := &fakeEngine{}
	require.NoError(t, Recover(ctx, dataDir, target, remote, false))

	assert.Equal(t, source.writes, target.writes)
}

func TestRecoverIsNoOpWhenDataDirAlreadyExists(t *testing.T) {
	ctx := context.Background()
	remote := newTestRemote(t)
	dataDir := t.TempDir()

	target := &fakeEngine{}
	target.write([]byte("already-local"))
	require.NoError(t, Recover(ctx, dataDir, target, remote, false))

	assert.Equal(t, [][]byte{[]byte("already-local")}, target.writes)
}

// faultyEngine wraps fakeEngine and fails to deserialize any blob
// containing the literal marker "CORRUPT", simulating a partially
// uploaded log tail.
type faultyEngine struct {
	fakeEngine
}

func (e *faultyEngine) Load(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if bytes.Contains(data, []byte("CORRUPT")) {
		return fmt.Errorf("simulated deserialize failure")
	}
	return e.fakeEngine.Load(bytes.NewReader(data))
}

func TestRecoverTruncatesAtCorruptedLogByDefault(t *testing.T) {
	ctx := context.Background()
	remote := newTestRemote(t)

	require.NoError(t, remote.Put(ctx, "metastore-1-fixed", bytes.NewBufferString("row-1\n")))
	require.NoError(t, remote.Put(ctx, pointerKey, bytes.NewBufferString("metastore-1-fixed")))
	require.NoError(t, remote.Put(ctx, logKey("metastore-1-fixed", 1), bytes.NewBufferString("row-2\n")))
	require.NoError(t, remote.Put(ctx, logKey("metastore-1-fixed", 2), bytes.NewBufferString("CORRUPT\n")))
	require.NoError(t, remote.Put(ctx, logKey("metastore-1-fixed", 3), bytes.NewBufferString("row-4\n")))

	dataDir := filepath.Join(t.TempDir(), "fresh-process")
	target := &faultyEngine{}
	require.NoError(t, Recover(ctx, dataDir, target, remote, false))

	assert.Equal(t, [][]byte{[]byte("row-1"), []byte("row-2")}, target.writes,
		"replay stops at the corrupted log and never applies row-4")
}

func TestRecoverAbortsOnCorruptedLogUnderStrictRecovery(t *testing.T) {
	ctx := context.Background()
	remote := newTestRemote(t)

	require.NoError(t, remote.Put(ctx, "metastore-1-fixed", bytes.NewBufferString("row-1\n")))
	require.NoError(t, remote.Put(ctx, pointerKey, bytes.NewBufferString("metastore-1-fixed")))
	require.NoError(t, remote.Put(ctx, logKey("metastore-1-fixed", 1), bytes.NewBufferString("CORRUPT\n")))

	dataDir := filepath.Join(t.TempDir(), "fresh-process")
	target := &faultyEngine{}
	err := Recover(ctx, dataDir, target, remote, true)
	assert.Error(t, err)
}

func TestGarbageCollectKeepsCurrentSnapshotAndDeletesStaleOnes(t *testing.T) {
	ctx := context.Background()
	remote := newTestRemote(t)
	cfg := config.Default() // default retention window is still far newer than the 1970 test snapshot

	s := NewShipper(&fakeEngine{}, remote, cfg)
	s.currentSnapshot = "metastore-99999999999999-current"
	require.NoError(t, remote.Put(ctx, s.currentSnapshot, bytes.NewBufferString("keep")))
	require.NoError(t, remote.Put(ctx, "metastore-1-stale", bytes.NewBufferString("stale")))

	require.NoError(t, s.garbageCollect(ctx))

	keys, err := remote.List(ctx, "")
	require.NoError(t, err)
	assert.Contains(t, keys, s.currentSnapshot)
	assert.NotContains(t, keys, "metastore-1-stale")
}

func TestLocalDirRemoteFsRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	remote, err := NewLocalDirRemoteFs(dir)
	require.NoError(t, err)

	require.NoError(t, remote.Put(ctx, "a/b.flex", bytes.NewBufferString("payload")))
	r, err := remote.Get(ctx, "a/b.flex")
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	r.Close()
	assert.Equal(t, "payload", string(data))

	keys, err := remote.List(ctx, "a/")
	require.NoError(t, err)
	assert.Equal(t, []string{"a/b.flex"}, keys)

	require.NoError(t, remote.Delete(ctx, "a/b.flex"))
	_, err = remote.Get(ctx, "a/b.flex")
	assert.Error(t, err)
	_, statErr := os.Stat(filepath.Join(dir, "a", "b.flex"))
	assert.True(t, os.IsNotExist(statErr))
}
