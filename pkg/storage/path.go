package storage

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
)

// separator is the segment separator accepted in raw paths.
const separator = "/"

// ErrInvalidPath indicates a raw string was rejected by ParseRelativePath.
//
// Protocol Mapping:
//   - S3: 400 InvalidArgument
//   - HTTP: 400 Bad Request
var ErrInvalidPath = errors.New("invalid relative path")

// InvalidPathError reports the raw input that failed to parse and why.
//
// It matches ErrInvalidPath with errors.Is.
type InvalidPathError struct {
	// Path is the raw string handed to ParseRelativePath.
	Path string

	// Reason describes the violated rule.
	Reason string
}

func (e *InvalidPathError) Error() string {
	return fmt.Sprintf("%s %q: %s", ErrInvalidPath, e.Path, e.Reason)
}

// Is reports whether target is ErrInvalidPath.
func (e *InvalidPathError) Is(target error) bool {
	return target == ErrInvalidPath
}

// RelativePath is a path relative to a storage root.
//
// A RelativePath can only be obtained from ParseRelativePath or by joining two
// existing values, which guarantees that it:
//   - does not start with the root separator ('/')
//   - contains no empty segment ("a//b", trailing '/')
//   - contains no current directory segment ('.')
//   - contains no parent directory segment ('..')
//
// It is the only path-shaped value the storage engine accepts, so an untrusted
// string can never address anything outside the sandbox root.
//
// RelativePath is immutable and safe to share between goroutines.
type RelativePath struct {
	segments []string
}

// ParseRelativePath validates s and returns it as a RelativePath.
//
// Returns an *InvalidPathError (matching ErrInvalidPath) if s is empty, starts
// with '/', or has an empty, '.' or '..' segment. No filesystem access happens.
func ParseRelativePath(s string) (RelativePath, error) {
	if strings.HasPrefix(s, separator) {
		return RelativePath{}, &InvalidPathError{Path: s, Reason: "must not start with the root separator '/'"}
	}

	segments := strings.Split(s, separator)
	for _, seg := range segments {
		switch seg {
		case "":
			return RelativePath{}, &InvalidPathError{Path: s, Reason: "must not contain empty segments"}
		case ".":
			return RelativePath{}, &InvalidPathError{Path: s, Reason: "must not contain '.' segments"}
		case "..":
			return RelativePath{}, &InvalidPathError{Path: s, Reason: "must not contain '..' segments"}
		}
	}

	return RelativePath{segments: segments}, nil
}

// MustParseRelativePath is like ParseRelativePath but panics on invalid input.
// Intended for constants and tests.
func MustParseRelativePath(s string) RelativePath {
	p, err := ParseRelativePath(s)
	if err != nil {
		panic(err)
	}
	return p
}

// Join returns a new path made of p's segments followed by other's.
//
// Both operands already hold the invariant, so the result is not re-validated.
func (p RelativePath) Join(other RelativePath) RelativePath {
	segments := make([]string, 0, len(p.segments)+len(other.segments))
	segments = append(segments, p.segments...)
	segments = append(segments, other.segments...)
	return RelativePath{segments: segments}
}

// Segments returns a copy of the path segments.
func (p RelativePath) Segments() []string {
	return slices.Clone(p.segments)
}

// IsZero reports whether p is the zero value (never produced by the parser).
func (p RelativePath) IsZero() bool {
	return len(p.segments) == 0
}

// String returns the path with segments joined by '/'.
func (p RelativePath) String() string {
	return strings.Join(p.segments, separator)
}

// under resolves p below root using the host separator.
func (p RelativePath) under(root string) string {
	return filepath.Join(append([]string{root}, p.segments...)...)
}
