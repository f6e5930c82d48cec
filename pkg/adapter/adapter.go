package adapter

import (
	"context"

	"github.com/marmos91/baza/pkg/storage"
)

// Adapter is a protocol front end that BazaServer runs on top of the shared
// storage engine.
//
// Lifecycle:
//  1. Creation: Adapter is created with protocol-specific configuration
//  2. Storage injection: SetStorage() provides the shared engine
//  3. Startup: Serve() starts the protocol server and blocks until shutdown
//  4. Shutdown: Stop() initiates graceful shutdown with timeout
//
// Thread safety:
// SetStorage() is called once before Serve(); Stop() may be called
// concurrently with Serve().
type Adapter interface {
	// Serve starts the protocol server and blocks until ctx is cancelled or an
	// unrecoverable error occurs.
	//
	// On cancellation Serve shuts down gracefully and returns nil. Returning
	// before cancellation is treated by BazaServer as fatal, and all other
	// adapters are stopped.
	Serve(ctx context.Context) error

	// SetStorage injects the shared storage engine.
	//
	// Adapters should keep only the executors they need (see
	// storage.Storage.FileCreator and friends).
	SetStorage(s *storage.Storage)

	// Stop initiates graceful shutdown. It must be idempotent and safe to call
	// concurrently with Serve(). ctx bounds the shutdown time.
	Stop(ctx context.Context) error

	// Protocol returns the protocol name for logs and metrics (e.g. "S3").
	Protocol() string

	// Port returns the TCP port the adapter listens on.
	Port() int
}
