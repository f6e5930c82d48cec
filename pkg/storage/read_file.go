package storage

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// ReadFile opens an existing file for streamed reading.
//
// An absent file is a regular outcome: the operation then succeeds with a nil
// *File.
type ReadFile struct {
	// Path of the file to read, relative to the data root.
	Path RelativePath
}

// File is an open, readable stored file.
//
// It owns the underlying file descriptor until Close is called. Reads stream
// the bytes in order; File also implements io.ReaderAt and io.Seeker through
// the embedded *os.File.
type File struct {
	*os.File

	info fs.FileInfo
}

// Size returns the file size at open time.
func (f *File) Size() int64 {
	return f.info.Size()
}

// ModTime returns the file modification time at open time.
func (f *File) ModTime() time.Time {
	return f.info.ModTime()
}

// ReadFile executes a ReadFile operation.
//
// Symlinks are followed. A missing file, a dangling link and a directory are
// all reported as absence (nil *File, nil error).
//
// Returns:
//   - *File: Open file (caller must Close it), or nil when absent
//   - error: *OpError for any open/stat failure other than absence
func (s *Storage) ReadFile(ctx context.Context, op ReadFile) (_ *File, err error) {
	start := time.Now()
	defer func() { s.metrics.ObserveOperation(OpReadFile, time.Since(start), err) }()

	// ========================================================================
	// Step 1: Check context and resolve the target
	// ========================================================================

	if op.Path.IsZero() {
		return nil, opError(OpReadFile, "resolve", s.dataRoot, ErrInvalidPath)
	}

	path := s.absolutize(op.Path)

	if err := ctx.Err(); err != nil {
		return nil, opError(OpReadFile, "start", path, err)
	}

	// ========================================================================
	// Step 2: Open, mapping absence to a nil handle
	// ========================================================================

	f, err := os.Open(path)
	if err != nil {
		if isAbsent(err) {
			return nil, nil
		}
		return nil, opError(OpReadFile, "open", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, opError(OpReadFile, "stat", path, err)
	}

	if info.IsDir() {
		_ = f.Close()
		return nil, nil
	}

	return &File{File: f, info: info}, nil
}

// isAbsent reports whether err means nothing exists at the path.
//
// ENOTDIR is included: it happens when a parent segment is a regular file, in
// which case the requested path cannot exist either.
func isAbsent(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, unix.ENOTDIR)
}
