// Package cli provides common CLI initialization utilities shared by
// cmd/kanakku and cmd/kanakku-worker.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"kanakku/internal/config"
	"kanakku/internal/log"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger initializes structured logging at the given LOG_LEVEL value.
// Returns the configured logger and sets it as the default logger.
func SetupLogger(level, component string) *log.Logger {
	logger := log.New(log.Config{
		Level:     log.ParseLevel(level),
		Component: component,
	})
	log.SetDefault(logger)
	return logger
}

// LoadConfig reads the environment into a Config and sets up logging from
// it. The process exits when the configuration is invalid.
func LoadConfig(component string) (*config.Config, *log.Logger) {
	LoadEnvFile()
	cfg := config.Load()
	logger := SetupLogger(cfg.LogLevel, component)
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg, logger
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// On SIGINT, SIGTERM or the end of parent, cleanup runs with a context
// bounded by timeout, then the returned context is cancelled and done is
// closed.
func GracefulShutdown(parent context.Context, logger *log.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String(), log.FieldOperation, log.OpShutdown)
		case <-parent.Done():
			logger.Info("Shutdown requested", log.FieldOperation, log.OpShutdown)
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cleanupDone := make(chan struct{})
		go func() {
			defer close(cleanupDone)
			if cleanup != nil {
				cleanup(shutdownCtx)
			}
		}()

		select {
		case <-cleanupDone:
			logger.Info("Shutdown complete")
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timeout reached")
		}
		cancel()
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup ended.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
