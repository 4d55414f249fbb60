package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marmos91/bytebeam/internal/logger"
	"github.com/marmos91/bytebeam/pkg/api"
	"github.com/marmos91/bytebeam/pkg/config"
	"github.com/marmos91/bytebeam/pkg/keys"
	"github.com/marmos91/bytebeam/pkg/metrics"
	"github.com/marmos91/bytebeam/pkg/metrics/prometheus"
	"github.com/marmos91/bytebeam/pkg/relay"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the ByteBeam server",
	Long: `Start the ByteBeam relay server with the specified configuration.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/bytebeam/config.yaml.

Examples:
  # Start with the default config file
  bytebeam start

  # Start with a custom config file
  bytebeam start --config /etc/bytebeam/config.yaml

  # Start with environment variable overrides
  BYTEBEAM_LOGGING_LEVEL=DEBUG bytebeam start`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	// Cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fmt.Println("ByteBeam - single-use in-memory file relay")
	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))

	// Metrics first, so the registry constructor sees the enabled gate
	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		metricsServer = metrics.NewServer(cfg.Metrics.Port)
		logger.Info("Metrics enabled", "port", cfg.Metrics.Port)
	} else {
		logger.Info("Metrics collection disabled")
	}

	directory := keys.NewDirectory(cfg.Keys.Keyserver, cfg.Keys.Users)
	logger.Info("Key directory loaded", "users", directory.Users())

	registry := relay.NewRegistry(ctx,
		cfg.Tiers.Public.Tier(),
		cfg.Tiers.Authenticated.Tier(),
		directory,
		prometheus.NewRelayMetrics(),
	)

	server := api.NewServer(cfg.Server, registry, Version)

	// Start servers in background
	serverDone := make(chan error, 1)
	go func() {
		serverDone <- server.Start(ctx)
	}()

	if metricsServer != nil {
		go func() {
			if err := metricsServer.Start(ctx); err != nil {
				logger.Error("Metrics server error", logger.Err(err))
			}
		}()
	}

	// Wait for interrupt signal or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Server is running. Press Ctrl+C to stop.")

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("Shutdown signal received, initiating graceful shutdown")
		cancel()

		if err := <-serverDone; err != nil {
			logger.Error("Server shutdown error", logger.Err(err))
			return err
		}
		logger.Info("Server stopped gracefully")

	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("Server error", logger.Err(err))
			return err
		}
		logger.Info("Server stopped")
	}

	return nil
}
