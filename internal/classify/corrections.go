package classify

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"ledger/internal/core"
)

var ErrInvalidCorrections = errors.New("invalid corrections table")

//go:embed corrections.schema.json
var correctionsSchema []byte

//go:embed default_corrections.yaml
var defaultCorrections []byte

// Correction kinds.
const (
	KindPassThrough       = "pass_through"
	KindPublicInstitution = "public_institution"
	KindTrust             = "trust"
	KindAggregate         = "aggregate"
)

// Reasons recorded on corrected identities.
const (
	ReasonPassThrough       = "Payment processor/pass-through - funds flow through to end recipients"
	ReasonPublicInstitution = "Public institution (hospital/municipality/crown corporation)"
	ReasonTrust             = "Trust/pass-through entity - funds flow through to beneficiaries"
	ReasonAggregate         = "Aggregate category - not a specific vendor"
)

// CorrectionTable is the curated, serialized form of the corrections.
// TrustThreshold is in dollars.
type CorrectionTable struct {
	PassThrough        []string        `json:"pass_through,omitempty"`
	PublicInstitutions []string        `json:"public_institutions,omitempty"`
	TrustPatterns      []string        `json:"trust_patterns,omitempty"`
	TrustKeywords      []string        `json:"trust_keywords,omitempty"`
	TrustThreshold     decimal.Decimal `json:"trust_threshold"`
	AggregateLabels    []string        `json:"aggregate_labels,omitempty"`
}

// Corrections is a compiled CorrectionTable.
type Corrections struct {
	passThrough    termSet
	public         termSet
	trustPatterns  termSet
	trustKeywords  termSet
	trustThreshold core.Money
	aggregates     termSet
}

// Subject is what a correction looks at: every name the vendor is known
// by, its current classification and its all-year spend.
type Subject struct {
	Names   []string
	Current core.Classification
	Total   core.Money
}

// Correction is the outcome of Apply.
type Correction struct {
	Classification core.Classification
	Kind           string
	Reason         string
}

func NewCorrections(t CorrectionTable) (*Corrections, error) {
	if t.TrustThreshold.IsNegative() {
		return nil, fmt.Errorf("trust_threshold %s: %w", t.TrustThreshold, ErrInvalidCorrections)
	}
	return &Corrections{
		passThrough:    newTermSet(t.PassThrough...),
		public:         newTermSet(t.PublicInstitutions...),
		trustPatterns:  newTermSet(t.TrustPatterns...),
		trustKeywords:  newTermSet(t.TrustKeywords...),
		trustThreshold: core.MoneyFromDecimal(t.TrustThreshold),
		aggregates:     newTermSet(t.AggregateLabels...),
	}, nil
}

// Apply runs the correction lists in order over s and returns the final
// classification if any list fired.
//
// Corrections only move a vendor out of a sector: pass-through entities,
// large trusts and aggregate labels go to unknown, and a for-profit match
// of a public institution becomes public. A vendor that is already unknown
// is never given a sector.
func (c *Corrections) Apply(s Subject) (Correction, bool) {
	cur := s.Current
	var out Correction
	fired := false

	set := func(t core.VendorType, kind, reason string) {
		cur = core.Classification{Type: t, Confidence: core.High, Evidence: reason}
		out = Correction{Classification: cur, Kind: kind, Reason: reason}
		fired = true
	}

	if cur.Type != core.Unknown && c.passThrough.matchAny(s.Names) {
		set(core.Unknown, KindPassThrough, ReasonPassThrough)
	}
	if cur.Type == core.ForProfit && c.public.matchAny(s.Names) {
		set(core.Public, KindPublicInstitution, ReasonPublicInstitution)
	}
	if cur.Type == core.ForProfit && s.Total.Cents > c.trustThreshold.Cents &&
		c.trustPatterns.matchAny(s.Names) && c.trustKeywords.matchAny(s.Names) {
		set(core.Unknown, KindTrust, ReasonTrust)
	}
	if cur.Type != core.Unknown && c.aggregates.matchAny(s.Names) {
		set(core.Unknown, KindAggregate, ReasonAggregate)
	}
	return out, fired
}

// DefaultCorrections returns the built-in correction table.
func DefaultCorrections() *Corrections {
	c, err := ParseCorrections(defaultCorrections, "yaml")
	if err != nil {
		panic(fmt.Sprintf("built-in corrections: %v", err))
	}
	return c
}

// LoadCorrections reads a correction table from a .yaml, .yml or .json
// file. An empty path yields the built-in table.
func LoadCorrections(path string) (*Corrections, error) {
	if path == "" {
		return DefaultCorrections(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corrections: %w", err)
	}
	format := "json"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = "yaml"
	}
	c, err := ParseCorrections(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// ParseCorrections decodes data ("yaml" or "json"), validates it against
// the embedded schema and compiles it.
func ParseCorrections(data []byte, format string) (*Corrections, error) {
	if format == "yaml" {
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCorrections, err)
		}
		if doc == nil {
			doc = map[string]any{}
		}
		b, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCorrections, err)
		}
		data = b
	}

	if err := validateTable(data); err != nil {
		return nil, err
	}

	var t CorrectionTable
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCorrections, err)
	}
	return NewCorrections(t)
}

func validateTable(data []byte) error {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("corrections.schema.json", bytes.NewReader(correctionsSchema)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("corrections.schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCorrections, err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCorrections, err)
	}
	return nil
}
