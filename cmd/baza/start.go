package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/marmos91/baza/internal/logger"
	"github.com/marmos91/baza/pkg/config"
	"github.com/marmos91/baza/pkg/server"
	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the baza server",
	Long: `Start the storage engine and every enabled protocol adapter.

Configuration is read from --config, or from the default location when the
flag is omitted, and may be overridden with BAZA_* environment variables.
The server stops gracefully on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: cmdFunc(start),
}

func init() {
	startCmd.Flags().StringP("config", "c", "", "Path to the configuration file")
	rootCmd.AddCommand(startCmd)
}

func start(ctx context.Context, cmd *cobra.Command, _ []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := logger.Configure(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return err
	}
	defer logger.Sync()

	gin.SetMode(gin.ReleaseMode)

	logger.Info("baza %s starting", currentVersion())

	// Step 1: Metrics (no-op collectors when disabled)
	m := config.InitializeMetrics(cfg)

	// Step 2: Storage engine
	st, err := config.CreateStorage(ctx, &cfg.Storage, m.StorageMetrics)
	if err != nil {
		return err
	}

	// Step 3: Server and adapters
	srv := server.New(st, cfg.Server.ShutdownTimeout)
	if m.Server != nil {
		srv.SetMetricsServer(m.Server)
		logger.Info("Metrics enabled on port %d", m.Server.Port())
	}

	adapters, err := config.CreateAdapters(cfg, m)
	if err != nil {
		return err
	}
	for _, a := range adapters {
		if err := srv.AddAdapter(a); err != nil {
			return fmt.Errorf("failed to register %s adapter: %w", a.Protocol(), err)
		}
	}

	// Step 4: Serve until a signal arrives or an adapter fails
	if err := srv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Server stopped with error: %v", err)
		return err
	}

	logger.Info("Shutdown complete")
	return nil
}
