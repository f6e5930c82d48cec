package storage

import "time"

// Metrics receives storage operation measurements.
//
// Implementations must be safe for concurrent use. A nil Metrics passed to
// WithMetrics selects the built-in no-op implementation, so collecting metrics
// is optional and free when disabled.
type Metrics interface {
	// ObserveOperation records one finished operation (OpCreateFile, OpSymlink,
	// OpReadFile), its latency and its error (nil on success).
	ObserveOperation(op string, duration time.Duration, err error)

	// AddBytesWritten records file bytes written by CreateFile.
	AddBytesWritten(n int64)

	// IncSymlinkReplacements records one symlink re-targeted through the
	// staging area.
	IncSymlinkReplacements()
}

type noopMetrics struct{}

func (noopMetrics) ObserveOperation(string, time.Duration, error) {}
func (noopMetrics) AddBytesWritten(int64)                         {}
func (noopMetrics) IncSymlinkReplacements()                       {}
