package s3

import "time"

// Metrics receives S3 adapter measurements.
//
// Implementations must be safe for concurrent use. A nil Metrics passed to New
// selects the built-in no-op implementation.
type Metrics interface {
	// ObserveRequest records one finished request.
	ObserveRequest(method string, status int, duration time.Duration)

	// AddBytes records object bytes moved in direction "in" (PUT bodies) or
	// "out" (GET bodies).
	AddBytes(direction string, n int64)

	// IncRateLimited records one request rejected by the rate limiter.
	IncRateLimited()
}

type noopMetrics struct{}

func (noopMetrics) ObserveRequest(string, int, time.Duration) {}
func (noopMetrics) AddBytes(string, int64)                    {}
func (noopMetrics) IncRateLimited()                           {}
