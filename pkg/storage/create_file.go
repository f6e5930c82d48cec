package storage

import (
	"context"
	"errors"
	"io"
	"iter"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/marmos91/baza/internal/logger"
)

// CreateFile writes a byte stream to a new or replaced file.
//
// Chunks is consumed exactly once, strictly in order; the file ends up holding
// the concatenation of every chunk. A chunk source reporting an error aborts
// the operation with that error.
//
// Known limitation: the destination is truncated and written in place, there
// is no staging step as for Symlink. Two concurrent CreateFile operations on
// the same Path interleave at chunk granularity and may leave mixed content,
// and a failed or abandoned write leaves a truncated file behind. If the path
// currently holds a symlink, the file it points to is the one rewritten.
type CreateFile struct {
	// Path of the file to create, relative to the data root.
	Path RelativePath

	// Chunks is the ordered, finite byte source. A nil source creates an
	// empty file.
	Chunks iter.Seq2[[]byte, error]
}

// Chunks returns a chunk source yielding each of the given slices in order.
func Chunks(chunks ...[]byte) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		for _, c := range chunks {
			if !yield(c, nil) {
				return
			}
		}
	}
}

// ReaderChunks returns a chunk source reading r in chunks of at most size
// bytes. The same buffer is reused between chunks, so consumers must not
// retain a chunk after asking for the next one.
func ReaderChunks(r io.Reader, size int) iter.Seq2[[]byte, error] {
	if size <= 0 {
		size = 64 * 1024
	}

	return func(yield func([]byte, error) bool) {
		buf := make([]byte, size)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				if !yield(buf[:n], nil) {
					return
				}
			}
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
		}
	}
}

// CreateFile executes a CreateFile operation.
//
// Missing parent directories of the target are created. The target is created
// or truncated, then every chunk is written as it arrives and the file is
// closed. The data is left in the page cache; no fsync is issued.
//
// Context Cancellation:
// The context is checked before touching the filesystem and before each chunk.
// A cancelled write is not rolled back.
//
// Returns:
//   - None on success
//   - error: *OpError wrapping the first failure (filesystem, chunk source or
//     context)
func (s *Storage) CreateFile(ctx context.Context, op CreateFile) (_ None, err error) {
	start := time.Now()
	defer func() { s.metrics.ObserveOperation(OpCreateFile, time.Since(start), err) }()

	// ========================================================================
	// Step 1: Check context and resolve the target
	// ========================================================================

	if op.Path.IsZero() {
		return None{}, opError(OpCreateFile, "resolve", s.dataRoot, ErrInvalidPath)
	}

	path := s.absolutize(op.Path)

	if err := ctx.Err(); err != nil {
		return None{}, opError(OpCreateFile, "start", path, err)
	}

	// ========================================================================
	// Step 2: Create parent directories
	// ========================================================================

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return None{}, opError(OpCreateFile, "mkdir", dir, err)
	}

	// ========================================================================
	// Step 3: Create or truncate the destination
	// ========================================================================

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePerm)
	if err != nil {
		return None{}, opError(OpCreateFile, "create", path, err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = opError(OpCreateFile, "close", path, cerr)
		}
	}()

	// ========================================================================
	// Step 4: Drain the chunk source in order
	// ========================================================================

	written, err := writeChunks(ctx, file, op.Chunks)
	s.metrics.AddBytesWritten(written)
	if err != nil {
		return None{}, opError(OpCreateFile, "write", path, err)
	}

	logger.Debug("CreateFile: wrote %s to %s", humanize.Bytes(uint64(written)), op.Path)

	return None{}, nil
}

// writeChunks copies every chunk of src to w, checking ctx before each one.
func writeChunks(ctx context.Context, w io.Writer, src iter.Seq2[[]byte, error]) (int64, error) {
	if src == nil {
		return 0, ctx.Err()
	}

	var written int64
	for chunk, err := range src {
		if err != nil {
			return written, err
		}
		if err := ctx.Err(); err != nil {
			return written, err
		}

		n, err := w.Write(chunk)
		written += int64(n)
		if err != nil {
			return written, err
		}
	}

	return written, nil
}
