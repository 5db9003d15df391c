// Package cli holds the start-up steps shared by the pisoheroes binaries.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"pisoheroes/internal/backend"
	"pisoheroes/internal/config"
	"pisoheroes/internal/log"
)

// LoadEnvFile loads .env for local development. A missing file is fine.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger from cfg and installs it as the slog
// default.
func SetupLogger(cfg *config.Config, component string) *log.Logger {
	lc := log.DefaultConfig()
	lc.Level = cfg.SlogLevel()
	lc.Component = component
	if os.Getenv("LOG_FORMAT") == "json" {
		lc.Format = "json"
	}
	logger := log.New(lc)
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads the configuration and exits on validation
// failure.
func LoadAndValidateConfig() *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.ForComponent(log.ComponentApp).Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// OpenApp opens the application stores or exits.
func OpenApp(ctx context.Context, logger *log.Logger, cfg *config.Config, opts backend.Options) *backend.App {
	app, err := backend.Open(ctx, cfg, opts)
	if err != nil {
		logger.Error("Failed to open application", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	return app
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM. cleanup
// runs with timeout before the returned channel closes.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}
