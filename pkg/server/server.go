package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/marmos91/baza/internal/logger"
	"github.com/marmos91/baza/pkg/adapter"
	"github.com/marmos91/baza/pkg/metrics"
	"github.com/marmos91/baza/pkg/storage"
)

// DefaultShutdownTimeout bounds the Stop() calls issued to adapters.
const DefaultShutdownTimeout = 30 * time.Second

var (
	// ErrNoAdapters is returned by Serve when no adapter was registered.
	ErrNoAdapters = errors.New("no adapters registered; call AddAdapter() before Serve()")

	// ErrAlreadyServing is returned by a second call to Serve.
	ErrAlreadyServing = errors.New("Serve() has already been called on this server instance")
)

// BazaServer runs protocol adapters on top of one shared storage engine.
//
// Lifecycle:
//  1. Creation: New() with the storage engine
//  2. Registration: AddAdapter() for each protocol, SetMetricsServer() optionally
//  3. Startup: Serve() runs everything concurrently
//  4. Shutdown: context cancellation or the first adapter failure stops all
//     adapters in reverse registration order
//
// Example usage:
//
//	srv := server.New(store, server.DefaultShutdownTimeout)
//	if err := srv.AddAdapter(s3.New(s3Config, nil)); err != nil {
//	    return err
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer cancel()
//
//	if err := srv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
//	    return err
//	}
type BazaServer struct {
	storage         *storage.Storage
	shutdownTimeout time.Duration

	// mu protects adapters and metricsServer
	mu            sync.RWMutex
	adapters      []adapter.Adapter
	metricsServer *metrics.Server

	serving atomic.Bool
}

// New creates a BazaServer sharing st between all its adapters.
//
// A non-positive shutdownTimeout selects DefaultShutdownTimeout.
//
// Panics if st is nil.
func New(st *storage.Storage, shutdownTimeout time.Duration) *BazaServer {
	if st == nil {
		panic("storage cannot be nil")
	}
	if shutdownTimeout <= 0 {
		shutdownTimeout = DefaultShutdownTimeout
	}

	return &BazaServer{
		storage:         st,
		shutdownTimeout: shutdownTimeout,
		adapters:        make([]adapter.Adapter, 0, 2),
	}
}

// AddAdapter injects the storage engine into a and registers it.
//
// Returns an error if another adapter already serves the same protocol or
// port.
//
// Panics if a is nil or Serve() has already been called.
func (s *BazaServer) AddAdapter(a adapter.Adapter) error {
	if a == nil {
		panic("adapter cannot be nil")
	}
	if s.serving.Load() {
		panic("cannot add adapter after Serve() has been called")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	protocol := a.Protocol()
	port := a.Port()

	for _, existing := range s.adapters {
		if existing.Protocol() == protocol {
			return fmt.Errorf("adapter for protocol %s already registered", protocol)
		}
		if existing.Port() == port {
			return fmt.Errorf("port %d already in use by %s adapter", port, existing.Protocol())
		}
	}
	if s.metricsServer != nil && s.metricsServer.Port() == port {
		return fmt.Errorf("port %d already in use by the metrics server", port)
	}

	a.SetStorage(s.storage)
	s.adapters = append(s.adapters, a)

	logger.Info("Registered %s adapter on port %d", protocol, port)

	return nil
}

// SetMetricsServer makes Serve also run ms. A nil ms disables it.
func (s *BazaServer) SetMetricsServer(ms *metrics.Server) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metricsServer = ms
}

// Serve starts all adapters (and the metrics server, if set) and blocks until
// ctx is cancelled or one of them fails.
//
// Shutdown behavior:
//   - Every adapter receives Stop() in reverse registration order, bounded by
//     the shutdown timeout
//   - Serve waits for every Serve() goroutine to return
//
// An adapter whose Serve() returns before shutdown was requested, even
// without an error, counts as a failure.
//
// Returns:
//   - ctx.Err() when shutdown was triggered by ctx
//   - the first adapter (or metrics server) error otherwise
//   - ErrNoAdapters, ErrAlreadyServing on misuse
func (s *BazaServer) Serve(ctx context.Context) error {
	if !s.serving.CompareAndSwap(false, true) {
		return ErrAlreadyServing
	}

	s.mu.RLock()
	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	metricsServer := s.metricsServer
	s.mu.RUnlock()

	if len(adapters) == 0 {
		return ErrNoAdapters
	}

	logger.Info("Starting baza with %d adapter(s), data=%s", len(adapters), s.storage.DataRoot())

	g, gctx := errgroup.WithContext(ctx)

	for _, a := range adapters {
		g.Go(func() error {
			protocol := a.Protocol()
			logger.Info("Starting %s adapter on port %d", protocol, a.Port())

			err := a.Serve(gctx)
			switch {
			case err != nil && !errors.Is(err, context.Canceled):
				logger.Error("%s adapter failed: %v", protocol, err)
				return fmt.Errorf("%s adapter error: %w", protocol, err)
			case gctx.Err() == nil:
				return fmt.Errorf("%s adapter stopped unexpectedly", protocol)
			default:
				logger.Debug("%s adapter stopped", protocol)
				return nil
			}
		})
	}

	if metricsServer != nil {
		g.Go(func() error {
			if err := metricsServer.Serve(gctx); err != nil {
				return err
			}
			if gctx.Err() == nil {
				return errors.New("metrics server stopped unexpectedly")
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		s.stopAll(adapters)
		return nil
	})

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	logger.Info("baza stopped")

	return err
}

// stopAll stops adapters in reverse registration order. Errors are logged;
// every adapter is asked to stop regardless.
func (s *BazaServer) stopAll(adapters []adapter.Adapter) {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	logger.Info("Initiating graceful shutdown of %d adapter(s)", len(adapters))

	for i := len(adapters) - 1; i >= 0; i-- {
		a := adapters[i]
		if err := a.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Error stopping %s adapter: %v", a.Protocol(), err)
		}
	}
}

// Adapters returns a copy of the registered adapters.
func (s *BazaServer) Adapters() []adapter.Adapter {
	s.mu.RLock()
	defer s.mu.RUnlock()

	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	return adapters
}
