// Package storage persists the vendor registry.
//
// Both backends treat what is on disk at save time as authoritative: Save
// re-reads the stored registry, merges the run into it with registry.Merge
// and writes the result, so edits made between Load and Save survive.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"ledger/internal/core"
	"ledger/internal/registry"
)

const metaNextSeq = "next_seq"

// RunRecord is one row of the run history.
type RunRecord struct {
	ID             string
	StartedAt      time.Time
	FinishedAt     time.Time
	Payments       int
	VendorsCreated int
	Classified     int
	Corrected      int
}

type SQLiteRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// DSN builds the connection string used for dbPath. Write transactions
// take the database lock up front so concurrent savers serialize.
func DSN(dbPath string) string {
	return "file:" + dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate"
}

func NewSQLiteRepository(dbPath string, logger *slog.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := DSN(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, logger: logger}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Load reads the stored registry. An empty database yields an empty
// registry.
func (r *SQLiteRepository) Load(ctx context.Context) (*registry.Registry, error) {
	return loadRegistry(ctx, r.db)
}

// Save merges run into the stored registry inside one transaction and
// returns the merged registry.
func (r *SQLiteRepository) Save(ctx context.Context, run *registry.Registry) (*registry.Registry, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	base, err := loadRegistry(ctx, tx)
	if err != nil {
		return nil, err
	}
	merged, err := registry.Merge(base, run)
	if err != nil {
		return nil, err
	}
	if err := writeRegistry(ctx, tx, merged); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	r.logger.InfoContext(ctx, "Registry saved to SQLite",
		"vendors", merged.Len(),
		"next_seq", merged.NextSeq())
	return merged, nil
}

// RecordRun appends a row to the run history.
func (r *SQLiteRepository) RecordRun(ctx context.Context, rec RunRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, finished_at, payments, vendors_created, classified, corrected)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.StartedAt.UTC().Format(time.RFC3339),
		rec.FinishedAt.UTC().Format(time.RFC3339),
		rec.Payments, rec.VendorsCreated, rec.Classified, rec.Corrected)
	if err != nil {
		return fmt.Errorf("record run %s: %w", rec.ID, err)
	}
	return nil
}

// ListRuns returns the run history, newest first.
func (r *SQLiteRepository) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, payments, vendors_created, classified, corrected
		FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var rec RunRecord
		var started, finished string
		if err := rows.Scan(&rec.ID, &started, &finished, &rec.Payments, &rec.VendorsCreated, &rec.Classified, &rec.Corrected); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		rec.StartedAt, _ = time.Parse(time.RFC3339, started)
		rec.FinishedAt, _ = time.Parse(time.RFC3339, finished)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func loadRegistry(ctx context.Context, q queryer) (*registry.Registry, error) {
	var snap registry.Snapshot

	var next string
	err := q.QueryRowContext(ctx, `SELECT value FROM registry_meta WHERE key = ?`, metaNextSeq).Scan(&next)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("read next_seq: %w", err)
	default:
		n, err := strconv.Atoi(next)
		if err != nil {
			return nil, fmt.Errorf("parse next_seq %q: %w", next, err)
		}
		snap.NextSeq = n
	}

	rows, err := q.QueryContext(ctx, `
		SELECT id, normalized_name, vendor_type, service_category, confidence, evidence_note,
		       source, exclusion_reason, first_year_paid, last_year_paid, total_paid_cents, growth_rate
		FROM vendors ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query vendors: %w", err)
	}
	index := make(map[string]int)
	for rows.Next() {
		var (
			v                   core.VendorIdentity
			vtype, conf, source string
			category            sql.NullString
			first, last         sql.NullInt64
			growth              sql.NullFloat64
		)
		if err := rows.Scan(&v.ID, &v.NormalizedName, &vtype, &category, &conf, &v.Classification.Evidence,
			&source, &v.ExclusionReason, &first, &last, &v.TotalPaid.Cents, &growth); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan vendor: %w", err)
		}
		v.Classification.Type = core.VendorType(vtype)
		v.Classification.Category = core.ServiceCategory(category.String)
		v.Classification.Confidence = core.Confidence(conf)
		v.Source = core.ClassificationSource(source)
		if first.Valid {
			y := int(first.Int64)
			v.FirstYearPaid = &y
		}
		if last.Valid {
			y := int(last.Int64)
			v.LastYearPaid = &y
		}
		if growth.Valid {
			g := growth.Float64
			v.GrowthRate = &g
		}
		index[v.ID] = len(snap.Vendors)
		snap.Vendors = append(snap.Vendors, v)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vendors: %w", err)
	}

	aliases, err := q.QueryContext(ctx, `SELECT vendor_id, alias FROM vendor_aliases ORDER BY vendor_id, alias`)
	if err != nil {
		return nil, fmt.Errorf("query aliases: %w", err)
	}
	defer aliases.Close()
	for aliases.Next() {
		var id, alias string
		if err := aliases.Scan(&id, &alias); err != nil {
			return nil, fmt.Errorf("scan alias: %w", err)
		}
		if i, ok := index[id]; ok {
			snap.Vendors[i].Aliases = append(snap.Vendors[i].Aliases, alias)
		}
	}
	if err := aliases.Err(); err != nil {
		return nil, fmt.Errorf("iterate aliases: %w", err)
	}

	return registry.FromSnapshot(snap)
}

func writeRegistry(ctx context.Context, tx *sql.Tx, reg *registry.Registry) error {
	vendorStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO vendors (id, normalized_name, vendor_type, service_category, confidence, evidence_note,
		                     source, exclusion_reason, first_year_paid, last_year_paid, total_paid_cents, growth_rate, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		ON CONFLICT(id) DO UPDATE SET
		  normalized_name = excluded.normalized_name,
		  vendor_type = excluded.vendor_type,
		  service_category = excluded.service_category,
		  confidence = excluded.confidence,
		  evidence_note = excluded.evidence_note,
		  source = excluded.source,
		  exclusion_reason = excluded.exclusion_reason,
		  first_year_paid = excluded.first_year_paid,
		  last_year_paid = excluded.last_year_paid,
		  total_paid_cents = excluded.total_paid_cents,
		  growth_rate = excluded.growth_rate,
		  updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("prepare vendor upsert: %w", err)
	}
	defer vendorStmt.Close()

	aliasStmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO vendor_aliases (vendor_id, alias) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare alias insert: %w", err)
	}
	defer aliasStmt.Close()

	for _, v := range reg.Vendors() {
		c := v.Classification
		if _, err := vendorStmt.ExecContext(ctx,
			v.ID, v.NormalizedName, string(c.Type), nullString(string(c.Category)), string(c.Confidence), c.Evidence,
			string(v.Source), v.ExclusionReason, nullInt(v.FirstYearPaid), nullInt(v.LastYearPaid),
			v.TotalPaid.Cents, nullFloat(v.GrowthRate),
		); err != nil {
			return fmt.Errorf("upsert vendor %s: %w", v.ID, err)
		}
		for _, a := range v.Aliases {
			if _, err := aliasStmt.ExecContext(ctx, v.ID, a); err != nil {
				return fmt.Errorf("insert alias for %s: %w", v.ID, err)
			}
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO registry_meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		metaNextSeq, strconv.Itoa(reg.NextSeq())); err != nil {
		return fmt.Errorf("write next_seq: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}
