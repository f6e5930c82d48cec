package config

import (
	"github.com/marmos91/baza/pkg/adapter/s3"
	"github.com/marmos91/baza/pkg/metrics"
	"github.com/marmos91/baza/pkg/storage"
)

// MetricsResult contains all metrics-related components created from configuration.
type MetricsResult struct {
	// Server is the HTTP server exposing Prometheus metrics (nil if disabled)
	Server *metrics.Server

	// StorageMetrics is the collector for storage operations (nil if disabled)
	StorageMetrics storage.Metrics

	// S3Metrics is the collector for the S3 adapter (nil if disabled)
	S3Metrics s3.Metrics
}

// InitializeMetrics creates all metrics components based on configuration.
//
// If metrics are enabled:
//   - Initializes the global Prometheus registry
//   - Creates the metrics HTTP server
//   - Creates Prometheus-backed collectors for storage and the S3 adapter
//
// If metrics are disabled every field is nil; consumers fall back to their
// no-op implementations.
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Server.Metrics.Enabled {
		return &MetricsResult{}
	}

	metrics.InitRegistry()

	return &MetricsResult{
		Server: metrics.NewServer(metrics.ServerConfig{
			Port: cfg.Server.Metrics.Port,
		}),
		StorageMetrics: metrics.NewStorageMetrics(),
		S3Metrics:      metrics.NewS3Metrics(),
	}
}
