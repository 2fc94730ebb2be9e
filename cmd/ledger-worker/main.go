package main

import (
	"context"
	"errors"
	"os"
	"time"

	"ledger/internal/amqp"
	"ledger/internal/cli"
	"ledger/internal/log"
	gsheet "ledger/internal/sheets/google"
	"ledger/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg)

	logger.Info("Starting ledger-worker")

	if cfg.AMQPURL == "" || cfg.GoogleSpreadsheetID == "" {
		logger.Error("ledger-worker needs AMQP_URL and GOOGLE_SPREADSHEET_ID")
		os.Exit(1)
	}

	ctx, cancel := cli.GracefulShutdown(logger.Logger)
	defer cancel()

	store := cli.InitStore(ctx, logger.WithComponent(log.ComponentStorage).Logger, cfg)
	if store.Cleanup != nil {
		defer store.Cleanup()
	}

	sheetLog := logger.WithComponent(log.ComponentSheets)
	sheetsClient, err := gsheet.New(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetPrefix, sheetLog.Logger)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		os.Exit(1)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger.WithComponent(log.ComponentAMQP).Logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	w := worker.NewSheetsWorker(store.Store, sheetsClient, cfg.VendorTableRows, sheetLog.Logger)

	// Catch up on manual edits made while the worker was down.
	if err := w.RefreshVendors(ctx); err != nil {
		logger.WithFields(log.NewFields().WithOperation(log.OpStartup).WithError(err)).Error("Startup vendor refresh failed")
	}

	go func() {
		if err := amqpClient.ConsumeRunCompleted(ctx, w.HandleRunCompleted); err != nil {
			if !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", log.FieldError, err)
			}
			cancel()
		}
	}()

	ticker := time.NewTicker(cfg.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Worker shutdown complete", log.FieldOperation, log.OpShutdown)
			return
		case <-ticker.C:
			if err := w.RefreshVendors(ctx); err != nil {
				logger.Error("Periodic vendor refresh failed", log.FieldError, err)
			}
		}
	}
}
