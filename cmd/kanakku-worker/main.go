package main

import (
	"context"
	"flag"
	"os"
	"strings"

	"kanakku/internal/amqp"
	"kanakku/internal/backend"
	"kanakku/internal/cli"
	"kanakku/internal/log"
	"kanakku/internal/services"
	"kanakku/internal/sheets"
	gsheet "kanakku/internal/sheets/google"
	mem "kanakku/internal/sheets/memory"
	"kanakku/internal/worker"
)

// familyList collects repeated -backfill-family flags.
type familyList []string

func (f *familyList) String() string { return strings.Join(*f, ",") }

func (f *familyList) Set(v string) error {
	for _, id := range strings.Split(v, ",") {
		if id = strings.TrimSpace(id); id != "" {
			*f = append(*f, id)
		}
	}
	return nil
}

func main() {
	var backfill familyList
	flag.Var(&backfill, "backfill-family", "family id to export in full on startup (repeatable, comma separated)")
	flag.Parse()

	cfg, logger := cli.LoadConfig(log.ComponentWorker)
	logger.Info("Starting kanakku-worker", log.FieldOperation, log.OpStartup)

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required by the export worker")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	// The worker consumes with its own client; the store is all it needs.
	backendConfig.AMQPURL = ""
	res, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, backendConfig)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	var exporter sheets.LedgerExporter
	if cfg.GoogleSpreadsheetID != "" {
		if err := cfg.ValidateExport(); err != nil {
			logger.Error("Export configuration validation failed", log.FieldError, err)
			os.Exit(1)
		}
		client, err := gsheet.New(ctx, gsheet.Options{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsFile: cfg.GoogleServiceAccountFile,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		exporter = client
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)
	} else {
		exporter = mem.New()
		logger.Warn("GOOGLE_SPREADSHEET_ID not set, exporting to an in-memory sheet")
	}

	consumer, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}

	exportWorker := worker.NewExportWorker(consumer, services.NewExportProcessor(res.Store, exporter, cfg.Location()), worker.Config{
		BackfillFamilies: backfill,
	})
	if err := exportWorker.Start(ctx); err != nil {
		logger.Error("Failed to start export worker", log.FieldError, err)
		os.Exit(1)
	}

	// A worker that stops consuming on its own ends the process.
	stopped, stop := context.WithCancel(ctx)
	go func() {
		select {
		case <-exportWorker.Done():
			stop()
		case <-stopped.Done():
		}
	}()

	shutdownCtx, done := cli.GracefulShutdown(stopped, logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := exportWorker.Stop(ctx); err != nil {
			logger.Warn("Export worker did not stop in time", log.FieldError, err)
		}
		if err := consumer.Close(); err != nil {
			logger.Warn("Failed to close AMQP connection", log.FieldError, err)
		}
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	})
	cli.WaitForShutdown(shutdownCtx, done)

	if err := exportWorker.Err(); err != nil {
		logger.Error("Export worker failed", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}
