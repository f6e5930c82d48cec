// Package storage implements the sandboxed filesystem object storage engine.
//
// A Storage owns a sandbox root split into two areas:
//
//	<root>/data/**   durable content, mirroring the RelativePaths passed in
//	<root>/tmp/**    staging area for atomic renames, cleared on every New()
//
// Operations are plain values (CreateFile, Symlink, ReadFile) executed through
// the statically typed Executor returned for each kind:
//
//	store, err := storage.New(ctx, "/var/lib/baza")
//	if err != nil {
//	    return err
//	}
//
//	path, err := storage.ParseRelativePath("objects/a.bin")
//	if err != nil {
//	    return err // client input fault
//	}
//
//	_, err = store.FileCreator().Exec(ctx, storage.CreateFile{
//	    Path:   path,
//	    Chunks: storage.Chunks([]byte{1, 2}, []byte{3}),
//	})
//
// Thread Safety:
// Storage holds no mutable state beyond its two root paths and is safe for
// concurrent use. Operations never lock paths: they synchronize only through
// the filesystem's own atomic primitives (rename, directory entry creation).
package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/marmos91/baza/internal/logger"
)

const (
	// DataDir is the name of the durable content area below the sandbox root.
	DataDir = "data"

	// StagingDir is the name of the staging area below the sandbox root.
	StagingDir = "tmp"

	dirPerm  = 0o755
	filePerm = 0o644
)

// Storage is a filesystem-backed object storage engine confined to one
// sandbox root.
type Storage struct {
	// dataRoot is the absolute, canonical path of <root>/data
	dataRoot string

	// stagingRoot is the absolute, canonical path of <root>/tmp
	stagingRoot string

	// metrics never nil; noopMetrics when disabled
	metrics Metrics
}

// Option configures optional Storage behavior.
type Option func(*Storage)

// WithMetrics installs a Metrics sink. A nil value keeps the no-op sink.
func WithMetrics(m Metrics) Option {
	return func(s *Storage) {
		if m != nil {
			s.metrics = m
		}
	}
}

// New creates a Storage rooted at root.
//
// The data area (root/data) and the staging area (root/tmp) are created along
// with any missing parents. An existing staging area is removed first so every
// process run starts with an empty one; its absence is not an error. Data area
// content is never touched.
//
// Both areas are canonicalized (absolute, symlinks resolved) and must live on
// the same device so that renames between them are atomic.
//
// Returns:
//   - *Storage: Ready to use engine
//   - error: *OpError for filesystem failures, wrapping ErrCrossDevice when the
//     two areas are on different devices
func New(ctx context.Context, root string, opts ...Option) (*Storage, error) {
	// ========================================================================
	// Step 1: Check context before filesystem operation
	// ========================================================================

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	root, err := filepath.Abs(root)
	if err != nil {
		return nil, opError(OpInit, "abs", root, err)
	}

	dataRoot := filepath.Join(root, DataDir)
	stagingRoot := filepath.Join(root, StagingDir)

	// ========================================================================
	// Step 2: Clear the staging area left by a previous run
	// ========================================================================

	if err := os.RemoveAll(stagingRoot); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, opError(OpInit, "clear staging", stagingRoot, err)
	}

	// ========================================================================
	// Step 3: Create both areas
	// ========================================================================

	for _, dir := range []string{dataRoot, stagingRoot} {
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			return nil, opError(OpInit, "mkdir", dir, err)
		}
	}

	// ========================================================================
	// Step 4: Canonicalize and check both areas share a device
	// ========================================================================

	if dataRoot, err = canonicalDir(dataRoot); err != nil {
		return nil, err
	}
	if stagingRoot, err = canonicalDir(stagingRoot); err != nil {
		return nil, err
	}

	if err := sameDevice(dataRoot, stagingRoot); err != nil {
		return nil, err
	}

	s := &Storage{
		dataRoot:    dataRoot,
		stagingRoot: stagingRoot,
		metrics:     noopMetrics{},
	}
	for _, opt := range opts {
		opt(s)
	}

	logger.Info("Storage initialized: data=%s staging=%s", s.dataRoot, s.stagingRoot)

	return s, nil
}

// DataRoot returns the absolute path of the durable content area.
func (s *Storage) DataRoot() string {
	return s.dataRoot
}

// StagingRoot returns the absolute path of the staging area.
func (s *Storage) StagingRoot() string {
	return s.stagingRoot
}

// absolutize resolves a RelativePath below the data root.
//
// This performs no I/O; the RelativePath invariant guarantees the result stays
// inside the data root.
func (s *Storage) absolutize(p RelativePath) string {
	return p.under(s.dataRoot)
}

// canonicalDir returns the absolute, symlink-free form of dir and checks it is
// a directory.
func canonicalDir(dir string) (string, error) {
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return "", opError(OpInit, "canonicalize", dir, err)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", opError(OpInit, "stat", resolved, err)
	}
	if !info.IsDir() {
		return "", opError(OpInit, "stat", resolved, fmt.Errorf("not a directory"))
	}

	return resolved, nil
}

// sameDevice fails with ErrCrossDevice unless a and b are on the same device.
func sameDevice(a, b string) error {
	var sa, sb unix.Stat_t

	if err := unix.Stat(a, &sa); err != nil {
		return opError(OpInit, "stat", a, err)
	}
	if err := unix.Stat(b, &sb); err != nil {
		return opError(OpInit, "stat", b, err)
	}

	if sa.Dev != sb.Dev {
		return opError(OpInit, "device check", b, ErrCrossDevice)
	}

	return nil
}
