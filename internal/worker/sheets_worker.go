package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ledger/internal/amqp"
	"ledger/internal/registry"
	"ledger/internal/sheets"
)

// RegistryLoader is the read side of a registry store.
type RegistryLoader interface {
	Load(ctx context.Context) (*registry.Registry, error)
}

// SheetsWorker keeps the published spreadsheet in step with finished runs.
// Composition comes from the run message; the vendor table is rebuilt from
// the persisted registry, so manual edits show up on the next refresh.
type SheetsWorker struct {
	store      RegistryLoader
	publisher  sheets.TablePublisher
	vendorRows int
	logger     *slog.Logger
}

func NewSheetsWorker(store RegistryLoader, publisher sheets.TablePublisher, vendorRows int, logger *slog.Logger) *SheetsWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &SheetsWorker{
		store:      store,
		publisher:  publisher,
		vendorRows: vendorRows,
		logger:     logger,
	}
}

// HandleRunCompleted publishes the run's composition and refreshes the
// vendor table.
func (w *SheetsWorker) HandleRunCompleted(ctx context.Context, msg *amqp.RunCompletedMessage) error {
	w.logger.InfoContext(ctx, "Processing run completed message",
		"run_id", msg.RunID,
		"years", len(msg.Composition))

	ref, err := w.publisher.PublishTable(ctx, CompositionTable(msg))
	if err != nil {
		return fmt.Errorf("publish composition: %w", err)
	}
	w.logger.InfoContext(ctx, "Published composition", "run_id", msg.RunID, "sheets_ref", ref)

	return w.RefreshVendors(ctx)
}

// RefreshVendors republishes the vendor table from the stored registry.
func (w *SheetsWorker) RefreshVendors(ctx context.Context) error {
	start := time.Now()
	reg, err := w.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load registry: %w", err)
	}

	table := sheets.VendorTable(reg.Vendors(), w.vendorRows)
	ref, err := w.publisher.PublishTable(ctx, table)
	if err != nil {
		return fmt.Errorf("publish vendors: %w", err)
	}

	w.logger.InfoContext(ctx, "Refreshed vendor table",
		"rows", len(table.Rows),
		"sheets_ref", ref,
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

// CompositionTable rebuilds the composition table from a run message.
func CompositionTable(msg *amqp.RunCompletedMessage) sheets.Table {
	t := sheets.Table{Name: sheets.CompositionTableName, Header: sheets.CompositionHeader}
	for _, c := range msg.Composition {
		t.Rows = append(t.Rows, []any{
			c.Year, c.Public, c.NonProfit, c.ForProfit, c.Unknown,
			c.Public + c.NonProfit + c.ForProfit + c.Unknown,
		})
	}
	return t
}
