package config

import (
	"strings"
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "default config",
			mutate: func(*Config) {},
		},
		{
			name:   "lowercase log level",
			mutate: func(c *Config) { c.Logging.Level = "warn" },
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Logging.Level = "TRACE" },
			wantErr: "Level",
		},
		{
			name:    "invalid log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "Format",
		},
		{
			name:    "zero shutdown timeout",
			mutate:  func(c *Config) { c.Server.ShutdownTimeout = 0 },
			wantErr: "ShutdownTimeout",
		},
		{
			name:    "negative shutdown timeout",
			mutate:  func(c *Config) { c.Server.ShutdownTimeout = -time.Second },
			wantErr: "ShutdownTimeout",
		},
		{
			name:    "metrics port out of range",
			mutate:  func(c *Config) { c.Server.Metrics.Port = 70000 },
			wantErr: "Port",
		},
		{
			name:    "unknown storage type",
			mutate:  func(c *Config) { c.Storage.Type = "memory" },
			wantErr: "Type",
		},
		{
			name:    "empty storage root",
			mutate:  func(c *Config) { c.Storage.Filesystem["root"] = "" },
			wantErr: "must be set",
		},
		{
			name:    "relative storage root",
			mutate:  func(c *Config) { c.Storage.Filesystem["root"] = "var/lib/baza" },
			wantErr: "absolute path",
		},
		{
			name:    "S3 port out of range",
			mutate:  func(c *Config) { c.Adapters.S3.Port = 65536 },
			wantErr: "Port",
		},
		{
			name:    "negative S3 timeout",
			mutate:  func(c *Config) { c.Adapters.S3.ReadTimeout = -time.Second },
			wantErr: "ReadTimeout",
		},
		{
			name:    "no adapters enabled",
			mutate:  func(c *Config) { c.Adapters.S3.Enabled = false },
			wantErr: "at least one adapter",
		},
		{
			name: "metrics port clashes with S3",
			mutate: func(c *Config) {
				c.Server.Metrics.Enabled = true
				c.Server.Metrics.Port = c.Adapters.S3.Port
			},
			wantErr: "already used by the S3 adapter",
		},
		{
			name: "disabled metrics may share the port",
			mutate: func(c *Config) {
				c.Server.Metrics.Port = c.Adapters.S3.Port
			},
		},
		{
			name:    "burst without rate",
			mutate:  func(c *Config) { c.Adapters.S3.Burst = 10 },
			wantErr: "requires requests_per_second",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Expected valid config, got: %v", err)
				}
				return
			}

			if err == nil {
				t.Fatalf("Expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got: %v", tt.wantErr, err)
			}
		})
	}
}
