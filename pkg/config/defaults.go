package config

import (
	"strings"
	"time"

	"github.com/marmos91/baza/pkg/adapter/s3"
	"github.com/marmos91/baza/pkg/metrics"
)

// DefaultStorageRoot is where the filesystem engine keeps its data/ and tmp/
// areas when no root is configured.
const DefaultStorageRoot = "/var/lib/baza"

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyStorageDefaults(&cfg.Storage)
	applyAdaptersDefaults(&cfg.Adapters)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyServerDefaults sets server defaults.
func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}

	// Metrics stay disabled unless asked for; the port is always filled so
	// that turning them on only takes enabled: true.
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = metrics.DefaultPort
	}
}

// applyStorageDefaults sets storage engine defaults.
func applyStorageDefaults(cfg *StorageConfig) {
	if cfg.Type == "" {
		cfg.Type = "filesystem"
	}

	if cfg.Filesystem == nil {
		cfg.Filesystem = make(map[string]any)
	}
	if root, ok := cfg.Filesystem["root"]; !ok || root == "" {
		cfg.Filesystem["root"] = DefaultStorageRoot
	}
}

// applyAdaptersDefaults sets adapter defaults.
func applyAdaptersDefaults(cfg *AdaptersConfig) {
	// Enable the S3 adapter when it looks unconfigured (port 0), so that a
	// config loaded without any file still has one adapter and passes
	// validation. An explicit enabled: false with a port keeps it off.
	if !cfg.S3.Enabled && cfg.S3.Port == 0 {
		cfg.S3.Enabled = true
	}

	applyS3Defaults(&cfg.S3)
}

// applyS3Defaults sets S3 adapter defaults.
func applyS3Defaults(cfg *s3.Config) {
	if cfg.Port == 0 {
		cfg.Port = s3.DefaultPort
	}
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = s3.DefaultChunkSize
	}

	// RequestsPerSecond defaults to 0 (unlimited)

	if cfg.Burst == 0 {
		cfg.Burst = cfg.RequestsPerSecond
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 5 * time.Minute
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 5 * time.Minute
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 2 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.SymlinkMetaKey == "" {
		cfg.SymlinkMetaKey = s3.DefaultSymlinkMetaKey
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
func GetDefaultConfig() *Config {
	cfg := &Config{
		Storage: StorageConfig{
			Filesystem: make(map[string]any),
		},
		Adapters: AdaptersConfig{
			S3: s3.Config{
				Enabled: true,
			},
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
