package main

import (
	"context"
	"errors"
	"os"
	"time"

	goption "google.golang.org/api/option"

	"fintrack/internal/amqp"
	"fintrack/internal/cli"
	"fintrack/internal/config"
	applog "fintrack/internal/log"
	"fintrack/internal/records"
	"fintrack/internal/sheets"
	gsheet "fintrack/internal/sheets/google"
	mem "fintrack/internal/sheets/memory"
	"fintrack/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).ValidateStore, (*config.Config).ValidateWorker)

	logger.Info("Starting fintrack-worker", applog.FieldOperation, applog.OpStartup)

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	res := cli.OpenStore(startCtx, logger, cfg)
	exporter, err := newExporter(startCtx, logger, cfg)
	cancelStart()
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client",
			applog.FieldError, err,
			applog.FieldErrorType, applog.ErrorTypeExternal)
		os.Exit(1)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client",
			applog.FieldError, err,
			applog.FieldErrorType, applog.ErrorTypeNetwork)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		if err := amqpClient.Close(); err != nil {
			logger.Warn("Failed to close AMQP client", applog.FieldError, err)
		}
		if err := res.Cleanup(); err != nil {
			logger.Warn("Failed to close record store", applog.FieldError, err)
		}
	})

	exportWorker := worker.NewExportWorker(exporter, records.NewRepository(res.Store))

	// Rows the broker never delivered (worker down, broker purged) are
	// recovered by replaying the store.
	if cfg.BackfillOnStart {
		n, err := exportWorker.Backfill(ctx)
		if err != nil {
			logger.Error("Startup backfill failed", applog.FieldError, err)
		} else {
			logger.Info("Startup backfill complete", "exported", n)
		}
	}

	if err := amqpClient.ConsumeWithReconnect(ctx, exportWorker.HandleLedgerEvent); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", applog.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}

// newExporter picks Google Sheets when a spreadsheet is configured and an
// in-memory exporter otherwise, which keeps the pipeline runnable locally.
func newExporter(ctx context.Context, logger *applog.Logger, cfg *config.Config) (sheets.LedgerExporter, error) {
	if cfg.GoogleSpreadsheetID == "" {
		logger.Info("Google Sheets disabled - exporting to memory")
		return mem.New(), nil
	}

	gcfg := gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	}
	var opts []goption.ClientOption
	if !cfg.HasServiceAccount() {
		opt, err := gsheet.WithOAuthFiles(context.Background(), cfg.GoogleOAuthClientFile, cfg.GoogleOAuthTokenFile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, opt)
	}

	client, err := gsheet.New(ctx, gcfg, opts...)
	if err != nil {
		return nil, err
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	return client, nil
}
