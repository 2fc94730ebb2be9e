// Command ledger-review prints the vendors that still need a manual
// classification, highest spend first.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"ledger/internal/aggregate"
	"ledger/internal/cli"
	"ledger/internal/core"
	"ledger/internal/export"
	"ledger/internal/log"
	"ledger/internal/storage"
)

func main() {
	limit := flag.Int("limit", 50, "number of vendors to list, 0 for all")
	xlsxPath := flag.String("xlsx", "", "also write the queue to this workbook")
	signal := flag.String("signal", "", "only list vendors with this signal (no_signal or conflicting_signal)")
	runs := flag.Int("runs", 0, "list the most recent runs instead of the queue")
	flag.Parse()

	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg)

	ctx, cancel := cli.GracefulShutdown(logger.Logger)
	defer cancel()

	store := cli.InitStore(ctx, logger.WithComponent(log.ComponentStorage).Logger, cfg)
	if store.Cleanup != nil {
		defer store.Cleanup()
	}

	if *runs > 0 {
		repo, ok := store.Store.(*storage.SQLiteRepository)
		if !ok {
			logger.Error("Run history requires the sqlite backend", log.FieldBackend, cfg.DataBackend)
			os.Exit(1)
		}
		if err := printRuns(ctx, os.Stdout, repo, *runs); err != nil {
			logger.Error("Failed to list runs", log.FieldError, err)
			os.Exit(1)
		}
		return
	}

	reg, err := store.Store.Load(ctx)
	if err != nil {
		logger.Error("Failed to load registry", log.FieldError, err)
		os.Exit(1)
	}

	queue := filterSignal(aggregate.ReviewQueue(reg.Vendors(), 0), *signal)
	if *limit > 0 && len(queue) > *limit {
		queue = queue[:*limit]
	}
	if err := printQueue(os.Stdout, queue); err != nil {
		logger.Error("Failed to print review queue", log.FieldError, err)
		os.Exit(1)
	}

	if *xlsxPath != "" {
		exporter := export.NewService(logger.WithComponent(log.ComponentExport).Logger)
		if err := exporter.WriteReviewWorkbook(ctx, *xlsxPath, queue); err != nil {
			logger.Error("Failed to write review workbook", log.FieldError, err)
			os.Exit(1)
		}
	}
}

func filterSignal(items []core.ReviewItem, signal string) []core.ReviewItem {
	if signal == "" {
		return items
	}
	out := items[:0]
	for _, it := range items {
		if it.Signal == signal {
			out = append(out, it)
		}
	}
	return out
}

func printQueue(w io.Writer, queue []core.ReviewItem) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tID\tVENDOR\tTOTAL PAID\tSIGNAL\tCATEGORY\tALIASES")
	for i, it := range queue {
		category := string(it.Category)
		if category == "" {
			category = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			i+1, it.VendorID, it.Name, it.TotalPaid.String(), it.Signal, category, strings.Join(it.Aliases, "; "))
	}
	return tw.Flush()
}

func printRuns(ctx context.Context, w io.Writer, repo *storage.SQLiteRepository, limit int) error {
	recs, err := repo.ListRuns(ctx, limit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tDURATION\tPAYMENTS\tCREATED\tCLASSIFIED\tCORRECTED")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
			r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), r.FinishedAt.Sub(r.StartedAt).Round(1e6),
			r.Payments, r.VendorsCreated, r.Classified, r.Corrected)
	}
	return tw.Flush()
}
