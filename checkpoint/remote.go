// Package checkpoint ships a catalog engine's committed writes to remote
// storage and recovers a fresh process from the last snapshot plus log
// tail, grounded on original_source/rust/cubestore/src/metastore/mod.rs's
// RocksMetaStore upload/recovery loop and expressed against badger's own
// incremental Backup/Load stream format (spec.md §4.7).
package checkpoint

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// RemoteStorage is the object-storage surface the shipper needs: put a
// named blob, fetch it back, list everything under a prefix, and delete
// a named blob. Mirrors the original's `RemoteFs` trait narrowed to what
// this package actually calls.
type RemoteStorage interface {
	Put(ctx context.Context, key string, r io.Reader) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, key string) error
}

// LocalDirRemoteFs implements RemoteStorage against a local directory,
// the same role the teacher's test suite fills with a temp-dir BadgerStore
// and the original fills with `LocalDirRemoteFs` for non-cloud deploys.
type LocalDirRemoteFs struct {
	root string
}

// NewLocalDirRemoteFs returns a RemoteStorage rooted at dir, creating it
// if absent.
func NewLocalDirRemoteFs(dir string) (*LocalDirRemoteFs, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("checkpoint: create remote root: %w", err)
	}
	return &LocalDirRemoteFs{root: dir}, nil
}

func (f *LocalDirRemoteFs) path(key string) string {
	return filepath.Join(f.root, filepath.FromSlash(key))
}

func (f *LocalDirRemoteFs) Put(ctx context.Context, key string, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dst := f.path(key)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("checkpoint: mkdir for %s: %w", key, err)
	}
	tmp := dst + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("checkpoint: create %s: %w", key, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("checkpoint: write %s: %w", key, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("checkpoint: close %s: %w", key, err)
	}
	// Rename so a reader never observes a partially written file, the
	// same append-only-upload assumption spec.md §4.7 recovery relies on.
	return os.Rename(tmp, dst)
}

func (f *LocalDirRemoteFs) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file, err := os.Open(f.path(key))
	if err != nil {
		return nil, fmt.Errorf("checkpoint: get %s: %w", key, err)
	}
	return file, nil
}

func (f *LocalDirRemoteFs) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []string
	base := f.root
	err := filepath.Walk(base, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if strings.HasPrefix(rel, prefix) {
			out = append(out, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("checkpoint: list %s: %w", prefix, err)
	}
	sort.Strings(out)
	return out, nil
}

func (f *LocalDirRemoteFs) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(f.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("checkpoint: delete %s: %w", key, err)
	}
	return nil
}
