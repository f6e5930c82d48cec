package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/baza/internal/logger"
)

// Symlink makes Link resolve to Source, creating or re-targeting the link.
//
// Source does not need to exist yet. The link stores the absolute path of
// Source below the data root.
//
// Re-targeting an existing link goes through the staging area and a single
// rename, so a concurrent reader of Link always sees either the old or the
// new target, never a missing link. Two concurrent Symlink operations on the
// same Link race: the last rename to land wins.
type Symlink struct {
	// Source is the path the link points to, relative to the data root.
	Source RelativePath

	// Link is the path of the link itself, relative to the data root.
	Link RelativePath
}

// Symlink executes a Symlink operation.
//
// The link is first created directly. If its path is already taken the new
// link is built in the staging area and renamed over the existing entry (see
// ReplaceAtomically). Any other failure is returned as is.
//
// Returns:
//   - None on success
//   - error: *OpError wrapping the failing step's error
func (s *Storage) Symlink(ctx context.Context, op Symlink) (_ None, err error) {
	start := time.Now()
	defer func() { s.metrics.ObserveOperation(OpSymlink, time.Since(start), err) }()

	// ========================================================================
	// Step 1: Check context and resolve both paths
	// ========================================================================

	if op.Source.IsZero() || op.Link.IsZero() {
		return None{}, opError(OpSymlink, "resolve", s.dataRoot, ErrInvalidPath)
	}

	source := s.absolutize(op.Source)
	link := s.absolutize(op.Link)

	if err := ctx.Err(); err != nil {
		return None{}, opError(OpSymlink, "start", link, err)
	}

	dir := filepath.Dir(link)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return None{}, opError(OpSymlink, "mkdir", dir, err)
	}

	// ========================================================================
	// Step 2: Try to create the link in place
	// ========================================================================

	err = os.Symlink(source, link)
	if err == nil {
		logger.Debug("Symlink: created %s -> %s", op.Link, op.Source)
		return None{}, nil
	}
	if !errors.Is(err, fs.ErrExist) {
		return None{}, opError(OpSymlink, "symlink", link, err)
	}

	// ========================================================================
	// Step 3: Path taken, replace it through the staging area
	// ========================================================================

	if err := ctx.Err(); err != nil {
		return None{}, opError(OpSymlink, "replace", link, err)
	}

	err = ReplaceAtomically(s.stagingRoot, link, func(staged string) error {
		return os.Symlink(source, staged)
	})
	if err != nil {
		return None{}, opError(OpSymlink, "replace", link, err)
	}

	s.metrics.IncSymlinkReplacements()
	logger.Debug("Symlink: re-targeted %s -> %s", op.Link, op.Source)

	return None{}, nil
}

// ReplaceAtomically swaps the filesystem entry at dst for a new one without an
// observable gap.
//
// It runs in two phases:
//  1. stage is called with a fresh, collision-free path inside stagingDir and
//     must create the new entry there (file, symlink, ...).
//  2. The staged entry is renamed onto dst in a single rename(2), replacing
//     whatever dst held.
//
// stagingDir and dst must be on the same filesystem, otherwise the rename
// fails instead of degrading into a copy. If either phase fails, the staged
// entry is removed and dst is left untouched.
func ReplaceAtomically(stagingDir, dst string, stage func(staged string) error) error {
	staged := filepath.Join(stagingDir, uuid.NewString())

	if err := stage(staged); err != nil {
		_ = os.RemoveAll(staged)
		return fmt.Errorf("stage %s: %w", staged, err)
	}

	if err := os.Rename(staged, dst); err != nil {
		_ = os.RemoveAll(staged)
		return fmt.Errorf("rename %s: %w", staged, err)
	}

	return nil
}
