// Package cli provides common initialization utilities shared by
// cmd/fintrack, cmd/fintrack-worker and cmd/fintrackctl.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"fintrack/internal/backend"
	"fintrack/internal/config"
	applog "fintrack/internal/log"
)

// SetupLogger initializes structured logging from the LOG_LEVEL and
// LOG_FORMAT settings and makes it the process default. It runs before
// the configuration is validated, so unknown values fall back to info/text.
func SetupLogger(component string) *applog.Logger {
	cfg := applog.DefaultConfig()
	cfg.Level = applog.ParseLevel(os.Getenv("LOG_LEVEL"))
	if os.Getenv("LOG_FORMAT") == "json" {
		cfg.Format = "json"
	}
	cfg.Component = component
	logger := applog.New(cfg)
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and checks it with validate,
// which defaults to the full server validation. It exits the process on
// failure.
func LoadAndValidateConfig(logger *applog.Logger, validate ...func(*config.Config) error) *config.Config {
	cfg := config.Load()
	if len(validate) == 0 {
		validate = []func(*config.Config) error{(*config.Config).Validate}
	}
	for _, v := range validate {
		if err := v(cfg); err != nil {
			logger.Error("Configuration validation failed",
				applog.FieldError, err,
				applog.FieldErrorType, applog.ErrorTypeConfiguration)
			os.Exit(1)
		}
	}
	return cfg
}

// OpenStore opens the configured record store or exits the process.
func OpenStore(ctx context.Context, logger *applog.Logger, cfg *config.Config) *backend.Result {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger).Open(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to open record store",
			applog.FieldError, err,
			applog.FieldErrorType, applog.ErrorTypeDatabase,
			"backend", bcfg.Type)
		os.Exit(1)
	}
	return res
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that is cancelled on SIGINT/SIGTERM and a channel
// closed once cleanup has run. cleanup gets a context bounded by timeout.
func GracefulShutdown(logger *applog.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String(), applog.FieldOperation, applog.OpShutdown)
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		finished := make(chan struct{})
		go func() {
			if cleanup != nil {
				cleanup(shutdownCtx)
			}
			close(finished)
		}()

		select {
		case <-finished:
			logger.Info("Shutdown complete")
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timeout reached")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup has
// finished.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
