package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/baza/pkg/storage"
)

// storageMetrics is the Prometheus implementation of storage.Metrics.
type storageMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	bytesWritten      prometheus.Counter
	replacements      prometheus.Counter
}

// NewStorageMetrics creates the storage collectors on the global registry.
//
// Returns nil if metrics are not enabled, which makes storage.WithMetrics keep
// its no-op sink.
func NewStorageMetrics() storage.Metrics {
	if !IsEnabled() {
		return nil
	}
	return newStorageMetrics(GetRegistry())
}

func newStorageMetrics(reg prometheus.Registerer) *storageMetrics {
	return &storageMetrics{
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "storage",
				Name:      "operations_total",
				Help:      "Total number of storage operations by operation and status",
			},
			[]string{"operation", "status"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "storage",
				Name:      "operation_duration_seconds",
				Help:      "Duration of storage operations in seconds",
				Buckets: []float64{
					0.0001, // 100us
					0.0005, // 500us
					0.001,  // 1ms
					0.005,  // 5ms
					0.01,   // 10ms
					0.05,   // 50ms
					0.1,    // 100ms
					0.5,    // 500ms
					1.0,    // 1s
					5.0,    // 5s
					30.0,   // 30s
				},
			},
			[]string{"operation"},
		),
		bytesWritten: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "storage",
				Name:      "bytes_written_total",
				Help:      "Total file bytes written by CreateFile",
			},
		),
		replacements: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "storage",
				Name:      "symlink_replacements_total",
				Help:      "Total number of symlinks re-targeted through the staging area",
			},
		),
	}
}

// ObserveOperation implements storage.Metrics.
func (m *storageMetrics) ObserveOperation(op string, duration time.Duration, err error) {
	m.operationsTotal.WithLabelValues(op, statusLabel(err)).Inc()
	m.operationDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// AddBytesWritten implements storage.Metrics.
func (m *storageMetrics) AddBytesWritten(n int64) {
	if n > 0 {
		m.bytesWritten.Add(float64(n))
	}
}

// IncSymlinkReplacements implements storage.Metrics.
func (m *storageMetrics) IncSymlinkReplacements() {
	m.replacements.Inc()
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
