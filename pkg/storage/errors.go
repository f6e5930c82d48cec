package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// ErrCrossDevice indicates the data and staging roots live on different
// devices, which would turn the staging rename into a copy.
var ErrCrossDevice = errors.New("data and staging roots are on different devices")

// Operation names used in OpError and metrics labels.
const (
	OpInit       = "init"
	OpCreateFile = "create_file"
	OpSymlink    = "symlink"
	OpReadFile   = "read_file"
)

// OpError records a failed storage operation together with the resolved path
// it was working on.
//
// The wrapped error is the underlying filesystem error, so errors.Is works
// against io/fs sentinels (fs.ErrPermission, ...) and context errors.
//
// Protocol Mapping:
//   - S3: 500 InternalError
//   - HTTP: 500 Internal Server Error
type OpError struct {
	// Op is the operation that failed (OpCreateFile, OpSymlink, ...).
	Op string

	// Step names the filesystem call that failed (e.g. "mkdir", "rename").
	Step string

	// Path is the absolute path the step was applied to.
	Path string

	// Err is the underlying error.
	Err error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s: %s %s: %v", e.Op, e.Step, e.Path, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// opError builds an *OpError. A top-level *fs.PathError or *os.LinkError is
// replaced by its cause, since OpError already carries the path.
func opError(op, step, path string, err error) error {
	switch e := err.(type) {
	case *fs.PathError:
		err = e.Err
	case *os.LinkError:
		err = e.Err
	}
	return &OpError{Op: op, Step: step, Path: path, Err: err}
}
