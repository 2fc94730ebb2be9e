package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
	"ledger/internal/registry"
)

// vendorRecord is the JSON shape of one identity in the registry file.
type vendorRecord struct {
	VendorID        string          `json:"vendor_id"`
	NormalizedName  string          `json:"vendor_name_normalized"`
	Aliases         []string        `json:"vendor_name_aliases"`
	VendorType      string          `json:"vendor_type"`
	ServiceCategory *string         `json:"service_category"`
	Confidence      string          `json:"confidence"`
	EvidenceNote    string          `json:"evidence_note,omitempty"`
	Source          string          `json:"classification_source,omitempty"`
	ExclusionReason string          `json:"exclusion_reason,omitempty"`
	FirstYearPaid   *int            `json:"first_year_paid"`
	LastYearPaid    *int            `json:"last_year_paid"`
	TotalPaid       decimal.Decimal `json:"total_paid_all_years"`
	GrowthRate      *float64        `json:"growth_rate"`
}

type registryFile struct {
	NextSeq int            `json:"next_seq"`
	Vendors []vendorRecord `json:"vendors"`
}

// FileRepository keeps the registry in a single JSON document. Writes go
// to a temporary file that is renamed over the original.
type FileRepository struct {
	path   string
	mu     sync.Mutex
	logger *slog.Logger
}

func NewFileRepository(path string, logger *slog.Logger) (*FileRepository, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create registry directory: %w", err)
	}
	return &FileRepository{path: path, logger: logger}, nil
}

func (r *FileRepository) Close() error { return nil }

// Load reads the registry file. A missing file yields an empty registry.
// A bare JSON array of vendors is accepted as well.
func (r *FileRepository) Load(ctx context.Context) (*registry.Registry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load()
}

// Save merges run into the file's current contents and writes the result.
func (r *FileRepository) Save(ctx context.Context, run *registry.Registry) (*registry.Registry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	base, err := r.load()
	if err != nil {
		return nil, err
	}
	merged, err := registry.Merge(base, run)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := r.write(merged); err != nil {
		return nil, err
	}
	r.logger.InfoContext(ctx, "Registry saved to file",
		"path", r.path,
		"vendors", merged.Len(),
		"next_seq", merged.NextSeq())
	return merged, nil
}

func (r *FileRepository) load() (*registry.Registry, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return registry.New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}

	var f registryFile
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0:
		return registry.New(), nil
	case trimmed[0] == '[':
		if err := json.Unmarshal(trimmed, &f.Vendors); err != nil {
			return nil, fmt.Errorf("decode registry %s: %w", r.path, err)
		}
	default:
		if err := json.Unmarshal(trimmed, &f); err != nil {
			return nil, fmt.Errorf("decode registry %s: %w", r.path, err)
		}
	}

	snap := registry.Snapshot{NextSeq: f.NextSeq}
	for _, rec := range f.Vendors {
		v, err := rec.identity()
		if err != nil {
			return nil, fmt.Errorf("%s: vendor %s: %w", r.path, rec.VendorID, err)
		}
		snap.Vendors = append(snap.Vendors, v)
	}
	return registry.FromSnapshot(snap)
}

func (r *FileRepository) write(reg *registry.Registry) error {
	snap := reg.Snapshot()
	f := registryFile{NextSeq: snap.NextSeq, Vendors: make([]vendorRecord, 0, len(snap.Vendors))}
	for _, v := range snap.Vendors {
		f.Vendors = append(f.Vendors, recordFor(v))
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("replace registry: %w", err)
	}
	return nil
}

func recordFor(v core.VendorIdentity) vendorRecord {
	rec := vendorRecord{
		VendorID:        v.ID,
		NormalizedName:  v.NormalizedName,
		Aliases:         v.Aliases,
		VendorType:      string(v.Classification.Type),
		Confidence:      string(v.Classification.Confidence),
		EvidenceNote:    v.Classification.Evidence,
		Source:          string(v.Source),
		ExclusionReason: v.ExclusionReason,
		FirstYearPaid:   v.FirstYearPaid,
		LastYearPaid:    v.LastYearPaid,
		TotalPaid:       v.TotalPaid.Decimal(),
		GrowthRate:      v.GrowthRate,
	}
	if rec.Aliases == nil {
		rec.Aliases = []string{}
	}
	if c := v.Classification.Category; c != core.NoCategory {
		s := string(c)
		rec.ServiceCategory = &s
	}
	return rec
}

func (rec vendorRecord) identity() (core.VendorIdentity, error) {
	vtype := core.Unknown
	if rec.VendorType != "" {
		t, err := core.ParseVendorType(rec.VendorType)
		if err != nil {
			return core.VendorIdentity{}, err
		}
		vtype = t
	}
	conf := core.Confidence(rec.Confidence)
	if conf == "" {
		conf = core.Low
	}
	var category core.ServiceCategory
	if rec.ServiceCategory != nil {
		category = core.ServiceCategory(*rec.ServiceCategory)
	}
	if !category.IsValid() || !conf.IsValid() {
		return core.VendorIdentity{}, fmt.Errorf("invalid category %q or confidence %q", category, conf)
	}
	source := core.ClassificationSource(rec.Source)
	if source == "" {
		source = core.SourceAuto
	}
	if !source.IsValid() {
		return core.VendorIdentity{}, fmt.Errorf("invalid classification source %q", source)
	}

	return core.VendorIdentity{
		ID:             rec.VendorID,
		NormalizedName: rec.NormalizedName,
		Aliases:        rec.Aliases,
		Classification: core.Classification{
			Type:       vtype,
			Category:   category,
			Confidence: conf,
			Evidence:   rec.EvidenceNote,
		},
		Source:          source,
		ExclusionReason: rec.ExclusionReason,
		FirstYearPaid:   rec.FirstYearPaid,
		LastYearPaid:    rec.LastYearPaid,
		TotalPaid:       core.MoneyFromDecimal(rec.TotalPaid),
		GrowthRate:      rec.GrowthRate,
	}, nil
}
