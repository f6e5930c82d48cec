// Package metrics provides Prometheus metrics collection for baza components.
//
// Metrics are optional. Until InitRegistry is called every constructor returns
// nil and components fall back to their no-op implementations, so a server
// started with metrics disabled pays nothing for them.
//
// Usage:
//
//	metrics.InitRegistry()
//
//	store, err := storage.New(ctx, root, storage.WithMetrics(metrics.NewStorageMetrics()))
//	adapter := s3.New(cfg, metrics.NewS3Metrics())
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// namespace prefixes every metric name exported by baza.
const namespace = "baza"

var (
	// registry is written once by InitRegistry and read afterwards
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry creates the global Prometheus registry.
//
// Safe to call multiple times; calls after the first are ignored. The registry
// also carries the Go runtime and process collectors.
func InitRegistry() {
	registryOnce.Do(func() {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		registry = reg
	})
}

// GetRegistry returns the global registry, or nil when metrics are disabled.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	return GetRegistry() != nil
}
