package config

import (
	"context"
	"fmt"

	"github.com/marmos91/baza/internal/logger"
	"github.com/marmos91/baza/pkg/storage"
	"github.com/mitchellh/mapstructure"
)

// CreateStorage creates the storage engine based on configuration.
//
// This factory function uses the Type field to determine which engine to
// create, then decodes the type-specific configuration from the
// corresponding map and passes it to the engine's constructor.
//
// Supported types:
//   - "filesystem": Uses pkg/storage (sandboxed local filesystem tree)
//
// Parameters:
//   - ctx: Context for initialization operations
//   - cfg: Storage configuration
//   - m: Metrics sink for storage operations (nil disables)
//
// Returns:
//   - *storage.Storage: Initialized storage engine
//   - error: Configuration or initialization error
func CreateStorage(ctx context.Context, cfg *StorageConfig, m storage.Metrics) (*storage.Storage, error) {
	switch cfg.Type {
	case "filesystem":
		return createFilesystemStorage(ctx, cfg.Filesystem, m)
	default:
		return nil, fmt.Errorf("unknown storage type: %q", cfg.Type)
	}
}

// createFilesystemStorage creates the filesystem storage engine.
func createFilesystemStorage(ctx context.Context, options map[string]any, m storage.Metrics) (*storage.Storage, error) {
	type FilesystemStorageConfig struct {
		Root string `mapstructure:"root"`
	}

	var storeCfg FilesystemStorageConfig
	if err := mapstructure.Decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode filesystem storage config: %w", err)
	}

	if storeCfg.Root == "" {
		return nil, fmt.Errorf("filesystem storage: root is required")
	}

	st, err := storage.New(ctx, storeCfg.Root, storage.WithMetrics(m))
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem storage: %w", err)
	}

	logger.Info("Storage ready: data=%s staging=%s", st.DataRoot(), st.StagingRoot())

	return st, nil
}
