package framework

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/marmos91/baza/internal/logger"
	"github.com/marmos91/baza/pkg/adapter/s3"
	"github.com/marmos91/baza/pkg/config"
	"github.com/marmos91/baza/pkg/metrics"
	"github.com/marmos91/baza/pkg/server"
	"github.com/marmos91/baza/pkg/storage"
)

// TestServerConfig holds configuration for the test server.
// This is distinct from pkg/config.Config, which it is translated into.
type TestServerConfig struct {
	// Root is the storage root. Default: a fresh t.TempDir()
	Root string

	S3Port      int
	MetricsPort int

	RequestsPerSecond uint
	LogLevel          string
	StartupTimeout    time.Duration
}

// TestServer runs a complete baza server (storage, S3 adapter, metrics)
// built through the same factories as the start command.
type TestServer struct {
	t       testing.TB
	config  TestServerConfig
	storage *storage.Storage
	server  *server.BazaServer
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	mu      sync.Mutex
}

// Collectors register on the global registry and can only be created once
// per process; every TestServer shares them.
var (
	collectorsOnce sync.Once
	sharedMetrics  *config.MetricsResult
)

func testMetrics() *config.MetricsResult {
	collectorsOnce.Do(func() {
		metrics.InitRegistry()
		sharedMetrics = &config.MetricsResult{
			StorageMetrics: metrics.NewStorageMetrics(),
			S3Metrics:      metrics.NewS3Metrics(),
		}
	})
	return sharedMetrics
}

// NewTestServer creates a new test server instance
func NewTestServer(t testing.TB, cfg TestServerConfig) *TestServer {
	t.Helper()

	if cfg.Root == "" {
		cfg.Root = t.TempDir()
	}
	if cfg.S3Port == 0 {
		cfg.S3Port = findFreePort(t)
	}
	if cfg.MetricsPort == 0 {
		cfg.MetricsPort = findFreePort(t)
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "ERROR" // Keep tests quiet by default
	}
	if cfg.StartupTimeout == 0 {
		cfg.StartupTimeout = 10 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &TestServer{
		t:      t,
		config: cfg,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start starts the test server and waits until both listeners accept
// connections.
func (ts *TestServer) Start() error {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.started {
		return fmt.Errorf("server already started")
	}

	ts.t.Helper()

	logger.SetLevel(ts.config.LogLevel)
	gin.SetMode(gin.TestMode)

	cfg := config.GetDefaultConfig()
	cfg.Storage.Filesystem["root"] = ts.config.Root
	cfg.Server.ShutdownTimeout = 5 * time.Second
	cfg.Server.Metrics.Enabled = true
	cfg.Server.Metrics.Port = ts.config.MetricsPort
	cfg.Adapters.S3.Port = ts.config.S3Port
	cfg.Adapters.S3.RequestsPerSecond = ts.config.RequestsPerSecond
	cfg.Adapters.S3.Burst = ts.config.RequestsPerSecond
	cfg.Adapters.S3.ShutdownTimeout = 5 * time.Second
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid test configuration: %w", err)
	}

	m := testMetrics()

	st, err := config.CreateStorage(ts.ctx, &cfg.Storage, m.StorageMetrics)
	if err != nil {
		return err
	}
	ts.storage = st

	ts.server = server.New(st, cfg.Server.ShutdownTimeout)
	ts.server.SetMetricsServer(metrics.NewServer(metrics.ServerConfig{Port: ts.config.MetricsPort}))

	adapters, err := config.CreateAdapters(cfg, m)
	if err != nil {
		return err
	}
	for _, a := range adapters {
		if err := ts.server.AddAdapter(a); err != nil {
			return err
		}
	}

	ts.wg.Add(1)
	go func() {
		defer ts.wg.Done()
		if err := ts.server.Serve(ts.ctx); err != nil && !errors.Is(err, context.Canceled) {
			ts.t.Logf("Server error: %v", err)
		}
	}()

	for _, port := range []int{ts.config.S3Port, ts.config.MetricsPort} {
		if err := ts.waitForPort(port); err != nil {
			ts.cancel()
			ts.wg.Wait()
			return fmt.Errorf("server failed to start: %w", err)
		}
	}

	ts.started = true
	ts.t.Logf("Server started: s3=%d metrics=%d root=%s", ts.config.S3Port, ts.config.MetricsPort, ts.config.Root)
	return nil
}

// Stop stops the test server and waits for it to exit.
//
// The storage root is left in place so that a restarted server can be
// pointed at it.
func (ts *TestServer) Stop() {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if !ts.started {
		return
	}

	ts.t.Helper()
	ts.cancel()

	done := make(chan struct{})
	go func() {
		ts.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		ts.t.Logf("Server stop timeout")
	}

	ts.started = false
}

// Endpoint returns the base URL of the S3 adapter.
func (ts *TestServer) Endpoint() string {
	return fmt.Sprintf("http://127.0.0.1:%d", ts.config.S3Port)
}

// MetricsEndpoint returns the base URL of the metrics server.
func (ts *TestServer) MetricsEndpoint() string {
	return fmt.Sprintf("http://127.0.0.1:%d", ts.config.MetricsPort)
}

// Root returns the configured storage root.
func (ts *TestServer) Root() string {
	return ts.config.Root
}

// Storage returns the storage engine the adapters serve.
func (ts *TestServer) Storage() *storage.Storage {
	return ts.storage
}

// SymlinkMetaKey returns the metadata key that turns a PUT into a symlink.
func (ts *TestServer) SymlinkMetaKey() string {
	return s3.DefaultSymlinkMetaKey
}

// waitForPort waits for the listener on port to accept connections.
func (ts *TestServer) waitForPort(port int) error {
	deadline := time.Now().Add(ts.config.StartupTimeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), 500*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return fmt.Errorf("timeout waiting for port %d", port)
}

// findFreePort finds an available port
func findFreePort(t testing.TB) int {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to find free port: %v", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	_ = listener.Close()
	return port
}
