package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"ledger/internal/aggregate"
	"ledger/internal/amqp"
	"ledger/internal/backend"
	"ledger/internal/classify"
	"ledger/internal/cli"
	"ledger/internal/config"
	"ledger/internal/core"
	"ledger/internal/export"
	"ledger/internal/ingest"
	"ledger/internal/log"
	"ledger/internal/metrics"
	"ledger/internal/pipeline"
	"ledger/internal/registry"
	"ledger/internal/sheets"
	gsheet "ledger/internal/sheets/google"
	mem "ledger/internal/sheets/memory"
	"ledger/internal/storage"
)

const (
	memoSize          = 8192
	reviewRequestSize = 50
)

func main() {
	dryRun := flag.Bool("dry-run", false, "run the pipeline and export, but do not persist the registry or notify")
	rawDir := flag.String("raw", "", "raw payment schedule directory (overrides RAW_DIR)")
	outDir := flag.String("out", "", "output directory (overrides OUTPUT_DIR)")
	flag.Parse()

	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	if *rawDir != "" {
		cfg.RawDir = *rawDir
	}
	if *outDir != "" {
		cfg.OutputDir = *outDir
	}
	logger := cli.SetupLogger(cfg)

	ctx, cancel := cli.GracefulShutdown(logger.Logger)
	defer cancel()

	if err := run(ctx, cfg, logger, *dryRun); err != nil {
		logger.Error("Run failed", log.FieldError, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger, dryRun bool) error {
	appLog := logger.WithComponent(log.ComponentApp)
	ctx = log.WithContext(ctx, logger)

	store := cli.InitStore(ctx, logger.WithComponent(log.ComponentStorage).Logger, cfg)
	if store.Cleanup != nil {
		defer store.Cleanup()
	}

	corrections, err := classify.LoadCorrections(cfg.CorrectionsFile)
	if err != nil {
		return fmt.Errorf("load corrections: %w", err)
	}

	m := metrics.New()
	ing, err := ingest.Dir(ctx, cfg.RawDir)
	if err != nil {
		return fmt.Errorf("ingest %s: %w", cfg.RawDir, err)
	}
	m.ObserveIngest(len(ing.Files))

	prior, err := store.Store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load registry: %w", err)
	}

	memo := classify.NewMemo(memoSize)
	res, err := pipeline.Run(ctx, prior, ing.Payments, pipeline.Options{
		Cutoff:      cfg.AnalysisStartYear,
		TopN:        cfg.ClassifyTopN,
		Workers:     cfg.ClassifyWorkers,
		Corrections: corrections,
		Memo:        memo,
	})
	if err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("interrupted before persisting: %w", err)
	}

	reg := res.Registry
	if !dryRun {
		if reg, err = persist(ctx, store.Store, res); err != nil {
			return err
		}
		appLog.Info("Registry persisted",
			log.FieldOperation, log.OpPersist,
			log.FieldBackend, cfg.DataBackend,
			log.FieldCount, reg.Len())
	}
	vendors := reg.Vendors()
	review := aggregate.ReviewQueue(vendors, 0)

	exporter := export.NewService(logger.WithComponent(log.ComponentExport).Logger)
	datasets := export.Build(res.RunID, vendors, res.Aggregate, cfg.AnalysisStartYear)
	files, err := exporter.WriteJSON(ctx, cfg.OutputDir, datasets)
	if err != nil {
		return fmt.Errorf("export datasets: %w", err)
	}
	if cfg.ExportXLSX {
		if err := exporter.WriteWorkbook(ctx, cfg.XLSXPath, datasets, review); err != nil {
			return fmt.Errorf("export workbook: %w", err)
		}
		files = append(files, cfg.XLSXPath)
	}
	appLog.Info("Outputs written", log.FieldOperation, log.OpExport, log.FieldCount, len(files))

	publishSheets(ctx, cfg, logger, res, dryRun)
	if !dryRun {
		notify(ctx, cfg, logger, res, review)
	}

	finished := time.Now().UTC()
	m.ObserveRun(res, finished)
	m.ObserveMemo(memo.Stats())
	if cfg.MetricsTextfile != "" {
		if err := m.WriteToTextfile(cfg.MetricsTextfile); err != nil {
			logger.WithComponent(log.ComponentMetrics).Warn("Failed to write metrics textfile",
				log.FieldFile, cfg.MetricsTextfile, log.FieldError, err)
		}
	}

	appLog.Info("Run complete",
		log.FieldRunID, res.RunID,
		log.FieldDuration, finished.Sub(res.StartedAt).Milliseconds(),
		"dry_run", dryRun,
		"files", len(ing.Files),
		"payments", res.Stats.Payments,
		"vendors", len(vendors),
		"created", res.Stats.VendorsCreated,
		"corrected", res.Stats.Corrected,
		"review_queue", len(review))
	return nil
}

// persist saves the run into the store and records it in the run history
// when the store keeps one.
func persist(ctx context.Context, store backend.Store, res *pipeline.Result) (*registry.Registry, error) {
	merged, err := store.Save(ctx, res.Registry)
	if errors.Is(err, registry.ErrConflict) {
		return nil, fmt.Errorf("registry changed incompatibly since load, rerun: %w", err)
	}
	if err != nil {
		return nil, fmt.Errorf("save registry: %w", err)
	}

	if h, ok := store.(interface {
		RecordRun(context.Context, storage.RunRecord) error
	}); ok {
		rec := storage.RunRecord{
			ID:             res.RunID,
			StartedAt:      res.StartedAt,
			FinishedAt:     time.Now().UTC(),
			Payments:       res.Stats.Payments,
			VendorsCreated: res.Stats.VendorsCreated,
			Classified:     res.Stats.Classified,
			Corrected:      res.Stats.Corrected,
		}
		if err := h.RecordRun(ctx, rec); err != nil {
			return nil, fmt.Errorf("record run: %w", err)
		}
	}
	return merged, nil
}

// publishSheets pushes composition and lens tables to Google Sheets when a
// spreadsheet is configured. A dry run publishes to memory instead. Failures
// are logged, not fatal.
func publishSheets(ctx context.Context, cfg *config.Config, logger *log.Logger, res *pipeline.Result, dryRun bool) {
	if cfg.GoogleSpreadsheetID == "" {
		return
	}
	sheetLog := logger.WithComponent(log.ComponentSheets)

	var pub sheets.TablePublisher
	if dryRun {
		pub = mem.New()
	} else {
		client, err := gsheet.New(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetPrefix, sheetLog.Logger)
		if err != nil {
			sheetLog.Warn("Failed to initialize Google Sheets client, skipping publish", log.FieldError, err)
			return
		}
		pub = client
	}

	refs, err := sheets.PublishAll(ctx, pub, res.Aggregate)
	if err != nil {
		sheetLog.Warn("Failed to publish tables", log.FieldError, err, "published", len(refs))
		return
	}
	sheetLog.Info("Published tables", log.FieldOperation, log.OpPublish, log.FieldCount, len(refs), "dry_run", dryRun)
}

// notify announces the run over AMQP when configured. Failures are logged,
// not fatal.
func notify(ctx context.Context, cfg *config.Config, logger *log.Logger, res *pipeline.Result, review []core.ReviewItem) {
	if cfg.AMQPURL == "" {
		return
	}
	amqpLog := logger.WithComponent(log.ComponentAMQP)

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, amqpLog.Logger)
	if err != nil {
		amqpLog.Warn("Failed to initialize AMQP client, continuing without notifications", log.FieldError, err)
		return
	}
	defer client.Close()

	if err := client.PublishRunCompleted(ctx, amqp.NewRunCompletedMessage(res, time.Now().UTC())); err != nil {
		amqpLog.Warn("Failed to publish run completed message", log.FieldError, err)
	}
	if len(review) > reviewRequestSize {
		review = review[:reviewRequestSize]
	}
	if err := client.PublishReviewRequest(ctx, amqp.NewReviewRequestMessage(res.RunID, review)); err != nil {
		amqpLog.Warn("Failed to publish review request", log.FieldError, err)
	}
}
