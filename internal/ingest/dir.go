package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"

	"ledger/internal/core"
	"ledger/internal/log"
)

// Result is the outcome of reading a raw-data directory.
type Result struct {
	Payments []core.RawPayment
	Files    []FileStats
	// Ignored maps a selected file to the reason it was not read.
	Ignored map[string]error
}

// ReadFile reads one payment-schedule CSV, taking the fiscal year from its
// name.
func ReadFile(path string) ([]core.RawPayment, FileStats, error) {
	year, err := FiscalYear(path)
	if err != nil {
		return nil, FileStats{Path: path}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, FileStats{Path: path, Year: year}, fmt.Errorf("read %s: %w", path, err)
	}
	r, enc := Decode(data)
	payments, stats, err := Parse(r, year)
	stats.Path = path
	stats.Encoding = enc
	if err != nil {
		return nil, stats, fmt.Errorf("%s: %w", path, err)
	}
	return payments, stats, nil
}

// Dir reads every payment schedule under dir. Files without a fiscal year
// or a vendor column are logged and recorded in Result.Ignored; any other
// error aborts. Progress is logged through the logger carried by ctx.
func Dir(ctx context.Context, dir string) (*Result, error) {
	logger := log.FromContext(ctx)
	if logger.Component() != log.ComponentIngest {
		logger = logger.WithComponent(log.ComponentIngest)
	}
	files, err := SelectFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		logger.Warn("No payment schedule files found", log.FieldFile, dir)
	}

	res := &Result{Ignored: make(map[string]error)}
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		payments, stats, err := ReadFile(path)
		if errors.Is(err, ErrNoYear) || errors.Is(err, errNoVendorColumn) {
			logger.Warn("Skipping file", log.FieldFile, path, log.FieldError, err)
			res.Ignored[path] = err
			continue
		}
		if err != nil {
			return nil, err
		}
		logger.Info("Read payment schedule",
			log.FieldOperation, log.OpIngest,
			log.FieldFile, path,
			log.FieldYear, stats.Year,
			"encoding", stats.Encoding,
			"rows", stats.Rows,
			"kept", stats.Kept)
		res.Payments = append(res.Payments, payments...)
		res.Files = append(res.Files, stats)
	}
	return res, nil
}
