// Package s3 exposes the storage engine through a minimal S3-compatible HTTP
// API.
//
// Supported operations:
//   - PutObject (PUT /{bucket}/{key...}): stores the body as a file, or creates a
//     symlink when the x-amz-meta-symlink-to header is present
//   - GetObject (GET /{bucket}/{key...}): streams the file back
//   - HeadObject (HEAD /{bucket}/{key...}): file metadata only
//
// Objects live at <data root>/<bucket>/<key>. Bucket and key are validated as
// storage.RelativePath values, so no request can address anything outside the
// data root. Every other S3 operation answers 501 NotImplemented.
//
// ETags are blake3 digests of the body (64 hex characters), not MD5, so
// clients comparing a single-part ETag with the body MD5 will see a mismatch.
//
// Request authentication is not performed; deploy behind a trusted proxy.
// Rate limiting is keyed on the connection peer address: X-Forwarded-For and
// X-Real-IP are ignored, so behind a proxy every client shares one budget.
package s3

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/marmos91/baza/internal/logger"
	"github.com/marmos91/baza/internal/ratelimiter"
	"github.com/marmos91/baza/pkg/storage"
)

// limiterSweepInterval is how often idle client buckets are dropped.
const limiterSweepInterval = time.Minute

// S3Adapter serves the S3 API on top of the storage executors.
type S3Adapter struct {
	config  Config
	metrics Metrics
	limiter *ratelimiter.Limiter

	// Executors are set once by SetStorage before Serve.
	creator storage.Executor[storage.CreateFile, storage.None]
	linker  storage.Executor[storage.Symlink, storage.None]
	reader  storage.Executor[storage.ReadFile, *storage.File]

	router *gin.Engine
	server *http.Server

	shutdownOnce sync.Once
	shutdownErr  error
}

// New creates an S3Adapter in the stopped state.
//
// Zero values in config are replaced with defaults. Call SetStorage() before
// Serve().
//
// Parameters:
//   - config: Adapter configuration
//   - m: Optional metrics collector (nil for no metrics)
//
// Panics if config validation fails.
func New(config Config, m Metrics) *S3Adapter {
	config.applyDefaults()

	if err := config.validate(); err != nil {
		panic(fmt.Sprintf("invalid S3 config: %v", err))
	}

	if m == nil {
		m = noopMetrics{}
	}

	a := &S3Adapter{
		config:  config,
		metrics: m,
		limiter: ratelimiter.New(config.RequestsPerSecond, config.Burst),
	}

	if a.limiter.Unlimited() {
		logger.Debug("S3 rate limiting: disabled")
	} else {
		logger.Debug("S3 rate limiting: %d req/s per client (burst %d)", config.RequestsPerSecond, config.Burst)
	}

	a.router = a.routes()
	a.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", config.Port),
		Handler:           a.router,
		ReadHeaderTimeout: 30 * time.Second,
		ReadTimeout:       config.ReadTimeout,
		WriteTimeout:      config.WriteTimeout,
		IdleTimeout:       config.IdleTimeout,
	}

	return a
}

// SetStorage injects the storage engine the adapter executes operations on.
func (a *S3Adapter) SetStorage(s *storage.Storage) {
	a.creator = s.FileCreator()
	a.linker = s.Linker()
	a.reader = s.FileReader()
	logger.Debug("S3 storage configured: data=%s", s.DataRoot())
}

// Handler returns the HTTP handler serving the S3 API.
func (a *S3Adapter) Handler() http.Handler {
	return a.router
}

// routes builds the gin engine.
//
// Trailing slash and path fixing redirects are disabled: "a//b" or "a/" are
// keys to reject, not URLs to repair.
func (a *S3Adapter) routes() *gin.Engine {
	r := gin.New()
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.RemoveExtraSlash = false

	// ClientIP keys the rate limiter, so forwarding headers are never trusted.
	if err := r.SetTrustedProxies(nil); err != nil {
		panic(fmt.Sprintf("s3: trusted proxies: %v", err))
	}

	r.Use(
		a.requestID(),
		a.observe(),
		gin.CustomRecovery(a.recovered),
		a.rateLimit(),
	)

	r.PUT("/:bucket/*key", a.storageReady(), a.putObject)
	r.GET("/:bucket/*key", a.storageReady(), a.getObject)
	r.HEAD("/:bucket/*key", a.storageReady(), a.getObject)

	// Other methods on object routes fall through to NoRoute as well, since
	// HandleMethodNotAllowed is off.
	r.NoRoute(a.notImplemented)

	return r
}

// Serve listens on the configured port and blocks until ctx is cancelled or
// the listener fails.
//
// On cancellation in-flight requests get up to ShutdownTimeout to complete.
// Their request contexts are derived from the connection, so a client that
// disconnects aborts its storage operation between chunks.
//
// Returns:
//   - nil on graceful shutdown (including shutdown through Stop)
//   - error if the listener cannot be created or fails
func (a *S3Adapter) Serve(ctx context.Context) error {
	if a.creator == nil || a.linker == nil || a.reader == nil {
		return errors.New("S3 adapter started without storage")
	}

	ln, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to create S3 listener on port %d: %w", a.config.Port, err)
	}

	logger.Info("S3 server listening on port %d", a.config.Port)
	logger.Debug("S3 config: chunk_size=%d read_timeout=%v write_timeout=%v idle_timeout=%v",
		a.config.ChunkSize, a.config.ReadTimeout, a.config.WriteTimeout, a.config.IdleTimeout)

	go a.limiter.Run(ctx, limiterSweepInterval)

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		logger.Info("S3 shutdown signal received: %v", ctx.Err())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.ShutdownTimeout)
		defer cancel()
		return a.Stop(shutdownCtx)

	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("S3 server failed: %w", err)
	}
}

// Stop gracefully shuts the HTTP server down.
//
// Safe to call multiple times and concurrently with Serve(). Subsequent calls
// return the result of the first one.
func (a *S3Adapter) Stop(ctx context.Context) error {
	a.shutdownOnce.Do(func() {
		logger.Debug("S3 shutdown initiated")

		if err := a.server.Shutdown(ctx); err != nil {
			logger.Warn("S3 shutdown did not complete: %v", err)
			_ = a.server.Close()
			a.shutdownErr = fmt.Errorf("S3 shutdown: %w", err)
			return
		}

		logger.Info("S3 graceful shutdown complete")
	})
	return a.shutdownErr
}

// Port returns the configured TCP port.
func (a *S3Adapter) Port() int {
	return a.config.Port
}

// Protocol returns "S3".
func (a *S3Adapter) Protocol() string {
	return "S3"
}
