package config

import (
	"fmt"

	"github.com/marmos91/baza/pkg/adapter"
	"github.com/marmos91/baza/pkg/adapter/s3"
)

// CreateAdapters creates all enabled protocol adapters from the configuration.
//
// Storage is not injected here; BazaServer.AddAdapter does that when the
// adapter is registered.
//
// Parameters:
//   - cfg: The complete baza configuration
//   - m: Metrics components from InitializeMetrics
//
// Returns:
//   - []adapter.Adapter: List of enabled adapters ready to be added to the server
//   - error: If no adapter is enabled
func CreateAdapters(cfg *Config, m *MetricsResult) ([]adapter.Adapter, error) {
	var adapters []adapter.Adapter

	if cfg.Adapters.S3.Enabled {
		adapters = append(adapters, s3.New(cfg.Adapters.S3, m.S3Metrics))
	}

	if len(adapters) == 0 {
		return nil, fmt.Errorf("no adapters enabled in configuration")
	}

	return adapters, nil
}
