package s3

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultPort is the S3 listening port when none is configured.
	DefaultPort = 9294

	// DefaultSymlinkMetaKey is the user metadata key turning a PutObject into a
	// symlink creation (sent as the x-amz-meta-symlink-to header).
	DefaultSymlinkMetaKey = "symlink-to"

	// DefaultChunkSize is the size of the chunks an uploaded body is split
	// into on its way to storage.
	DefaultChunkSize = 64 * 1024
)

// Config holds the S3 adapter configuration.
//
// Default values (applied by New if zero):
//   - Port: 9294
//   - ChunkSize: 64KiB
//   - RequestsPerSecond: 0 (no rate limiting)
//   - Burst: RequestsPerSecond
//   - ReadTimeout: 5m (large uploads)
//   - WriteTimeout: 5m (large downloads)
//   - IdleTimeout: 2m
//   - ShutdownTimeout: 30s
//   - SymlinkMetaKey: "symlink-to"
type Config struct {
	// Enabled controls whether the S3 adapter is started.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the TCP port to listen on.
	Port int `mapstructure:"port" yaml:"port" validate:"min=0,max=65535"`

	// ChunkSize is the maximum size of the chunks an uploaded body is handed
	// to storage in.
	ChunkSize int `mapstructure:"chunk_size" yaml:"chunk_size" validate:"min=0"`

	// RequestsPerSecond is the sustained request rate allowed per client IP.
	// 0 disables rate limiting.
	RequestsPerSecond uint `mapstructure:"requests_per_second" yaml:"requests_per_second"`

	// Burst is the number of requests a client may send at once.
	Burst uint `mapstructure:"burst" yaml:"burst"`

	// ReadTimeout bounds reading a whole request, body included.
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout" validate:"min=0"`

	// WriteTimeout bounds writing a whole response, body included.
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout" validate:"min=0"`

	// IdleTimeout closes keep-alive connections idle for longer.
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout" validate:"min=0"`

	// ShutdownTimeout bounds the wait for in-flight requests on shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"min=0"`

	// SymlinkMetaKey is the user metadata key (without the x-amz-meta- prefix)
	// whose presence makes PutObject create a symlink.
	SymlinkMetaKey string `mapstructure:"symlink_meta_key" yaml:"symlink_meta_key"`
}

// applyDefaults fills in zero values with sensible defaults.
func (c *Config) applyDefaults() {
	// Enabled is defaulted in pkg/config so that an explicit false survives.

	if c.Port <= 0 {
		c.Port = DefaultPort
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.Burst == 0 {
		c.Burst = c.RequestsPerSecond
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 5 * time.Minute
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 5 * time.Minute
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 2 * time.Minute
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
	if c.SymlinkMetaKey == "" {
		c.SymlinkMetaKey = DefaultSymlinkMetaKey
	}
}

// validate checks the configuration once defaults are applied.
func (c *Config) validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be 0-65535", c.Port)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("invalid chunk_size %d: must be > 0", c.ChunkSize)
	}
	if c.ReadTimeout < 0 || c.WriteTimeout < 0 || c.IdleTimeout < 0 {
		return fmt.Errorf("invalid timeouts (read=%v write=%v idle=%v): must be >= 0",
			c.ReadTimeout, c.WriteTimeout, c.IdleTimeout)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid shutdown_timeout %v: must be > 0", c.ShutdownTimeout)
	}
	if strings.ContainsAny(c.SymlinkMetaKey, " \t\r\n:") {
		return fmt.Errorf("invalid symlink_meta_key %q: must be a valid header token", c.SymlinkMetaKey)
	}
	return nil
}

// symlinkHeader returns the request header carrying the symlink source.
func (c *Config) symlinkHeader() string {
	return "X-Amz-Meta-" + c.SymlinkMetaKey
}
