package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/leave-approval/internal/config"
	"github.com/garyjia/leave-approval/internal/container"
	httpapi "github.com/garyjia/leave-approval/internal/interfaces/http"
	"github.com/garyjia/leave-approval/pkg/utils"
)

func main() {
	// Load configuration
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
		Service:    cfg.Tracing.ServiceName,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("Server exited with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("Server exited successfully")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	containerCfg := cfg.ToContainerConfig()

	logger.Info("Starting Leave Approval Service",
		zap.String("version", containerCfg.Server.Version),
		zap.Int("port", containerCfg.Server.Port),
		zap.String("notification_channel", containerCfg.Notification.Channel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := setupTracing(cfg.Tracing, logger)
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Error("Failed to flush traces", zap.Error(err))
		}
	}()

	c, err := container.NewContainer(containerCfg, logger)
	if err != nil {
		return err
	}
	if err := c.Start(ctx); err != nil {
		return fmt.Errorf("failed to start container: %w", err)
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Error("Container shutdown error", zap.Error(err))
		}
	}()

	server := httpapi.NewServer(httpapi.ServerConfig{
		Host:            containerCfg.Server.Host,
		Port:            containerCfg.Server.Port,
		ReadTimeout:     containerCfg.Server.ReadTimeout,
		WriteTimeout:    containerCfg.Server.WriteTimeout,
		ShutdownTimeout: containerCfg.Server.ShutdownTimeout,
		Version:         containerCfg.Server.Version,
	}, c.LeaveService(), c.DB(), utils.NewSugaredAdapter(logger))

	// Blocks until SIGINT/SIGTERM, then shuts the listener down gracefully
	return server.Start(ctx)
}
