package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tendant/simple-storage/pkg/simplestorage/api"
	"github.com/tendant/simple-storage/pkg/simplestorage/config"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration from environment
	serverConfig, err := config.Load(config.WithEnv(""))
	if err != nil {
		logger.Error("Failed to load server configuration", "error", err)
		os.Exit(1)
	}

	if serverConfig.RunMigrations {
		if err := serverConfig.MigratePostgres(context.Background()); err != nil {
			logger.Error("Failed to run database migrations", "error", err)
			os.Exit(1)
		}
	}

	// Build service from configuration
	svc, err := serverConfig.BuildService(logger)
	if err != nil {
		logger.Error("Failed to build service", "error", err)
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", serverConfig.Port),
		Handler: api.NewRouter(svc),
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Simple Storage Server starting",
			"port", serverConfig.Port,
			"environment", serverConfig.Environment,
			"database", serverConfig.DatabaseType,
			"storage_backend", serverConfig.DefaultStorageBackend)

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("Server exiting")
}
