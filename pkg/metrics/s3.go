package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/baza/pkg/adapter/s3"
)

// s3Metrics is the Prometheus implementation of s3.Metrics.
//
// It collects:
//   - Request counts by HTTP method and response status
//   - Request latency by HTTP method
//   - Object bytes received (PUT) and sent (GET)
//   - Requests rejected by the rate limiter
type s3Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	bytesTotal      *prometheus.CounterVec
	rateLimited     prometheus.Counter
}

// NewS3Metrics creates the S3 adapter collectors on the global registry.
//
// Returns nil if metrics are not enabled (InitRegistry not called), which
// makes the adapter use its no-op implementation.
func NewS3Metrics() s3.Metrics {
	if !IsEnabled() {
		return nil
	}
	return newS3Metrics(GetRegistry())
}

func newS3Metrics(reg prometheus.Registerer) *s3Metrics {
	return &s3Metrics{
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "s3",
				Name:      "requests_total",
				Help:      "Total number of S3 requests by HTTP method and status code",
			},
			[]string{"method", "status"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "s3",
				Name:      "request_duration_seconds",
				Help:      "Duration of S3 requests in seconds",
				Buckets: []float64{
					0.001, // 1ms
					0.005, // 5ms
					0.01,  // 10ms
					0.05,  // 50ms
					0.1,   // 100ms
					0.5,   // 500ms
					1.0,   // 1s
					5.0,   // 5s
					30.0,  // 30s
					120.0, // 2min
				},
			},
			[]string{"method"},
		),
		bytesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "s3",
				Name:      "bytes_total",
				Help:      "Total object bytes transferred by direction (in, out)",
			},
			[]string{"direction"},
		),
		rateLimited: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "s3",
				Name:      "rate_limited_total",
				Help:      "Total number of S3 requests rejected by the rate limiter",
			},
		),
	}
}

// ObserveRequest implements s3.Metrics.
func (m *s3Metrics) ObserveRequest(method string, status int, duration time.Duration) {
	m.requestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// AddBytes implements s3.Metrics.
func (m *s3Metrics) AddBytes(direction string, n int64) {
	if n > 0 {
		m.bytesTotal.WithLabelValues(direction).Add(float64(n))
	}
}

// IncRateLimited implements s3.Metrics.
func (m *s3Metrics) IncRateLimited() {
	m.rateLimited.Inc()
}
