package s3

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_ApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.applyDefaults()

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultChunkSize, cfg.ChunkSize)
	assert.Equal(t, DefaultSymlinkMetaKey, cfg.SymlinkMetaKey)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, uint(0), cfg.Burst)
	assert.NoError(t, cfg.validate())

	cfg = Config{RequestsPerSecond: 50}
	cfg.applyDefaults()
	assert.Equal(t, uint(50), cfg.Burst)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{name: "port too high", mutate: func(c *Config) { c.Port = 70000 }, errMsg: "invalid port"},
		{name: "negative read timeout", mutate: func(c *Config) { c.ReadTimeout = -time.Second }, errMsg: "invalid timeouts"},
		{name: "negative shutdown timeout", mutate: func(c *Config) { c.ShutdownTimeout = -time.Second }, errMsg: "invalid shutdown_timeout"},
		{name: "meta key with space", mutate: func(c *Config) { c.SymlinkMetaKey = "bad key" }, errMsg: "invalid symlink_meta_key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg Config
			cfg.applyDefaults()
			tt.mutate(&cfg)

			err := cfg.validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestNew_PanicsOnInvalidConfig(t *testing.T) {
	assert.Panics(t, func() { New(Config{Port: 70000}, nil) })
}

func TestAdapter_Identity(t *testing.T) {
	a := New(Config{Port: 19294}, nil)
	assert.Equal(t, "S3", a.Protocol())
	assert.Equal(t, 19294, a.Port())
}

func TestServe_WithoutStorage(t *testing.T) {
	a := New(Config{}, nil)
	err := a.Serve(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "without storage")
}

func freePort(t *testing.T) int {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func TestServe_Lifecycle(t *testing.T) {
	port := freePort(t)
	a, _ := newTestAdapter(t, Config{Port: port}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx) }()

	url := fmt.Sprintf("http://127.0.0.1:%d", port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(url + "/b/missing")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusNotFound
	}, 5*time.Second, 20*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}

	// Stop after shutdown is a no-op.
	assert.NoError(t, a.Stop(context.Background()))
}

func TestStop_BeforeServe(t *testing.T) {
	a, _ := newTestAdapter(t, Config{Port: freePort(t)}, nil)

	require.NoError(t, a.Stop(context.Background()))
	assert.NoError(t, a.Serve(context.Background()))
}
