// Package ingest reads payment-schedule CSV exports into RawPayment
// records.
//
// Exports differ in encoding (UTF-8, UTF-16 or Windows-1252), delimiter and
// column language. The reader detects the first two and maps the French and
// English column variants onto a fixed record.
package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"ledger/internal/core"
)

// Column variants in priority order. For each row the first non-empty
// variant wins.
var (
	vendorColumns   = []string{"Bénéficiaire", "Beneficiaire", "Recipient", "Vendor", "vendor_name", "vendor", "recipient"}
	amountColumns   = []string{"Montant $", "Montant", "Amount $", "Amount", "amount", "amount_paid", "total"}
	ministryColumns = []string{"Ministère", "Nom du ministere", "Ministry", "ministry", "department"}
	categoryColumns = []string{"Categorie", "Catégorie", "Category", "category"}
)

var (
	placeholderNames = []string{"aucune valeur", "none", "n/a", "no value"}
	aggregateLabels  = []string{"accounts under", "comptes inf", "payments made for services", "interest on", "aucune valeur", "no value"}
	skippedCategory  = []string{"interest", "interet", "salary", "traitements", "travel", "deplacement"}
)

// SkipReason says why a row did not become a payment.
type SkipReason string

const (
	SkipBlankName   SkipReason = "blank_name"
	SkipBadAmount   SkipReason = "bad_amount"
	SkipNonPositive SkipReason = "non_positive"
	SkipAggregate   SkipReason = "aggregate_label"
	SkipCategory    SkipReason = "excluded_category"
	SkipInvalid     SkipReason = "invalid"
)

var errNoVendorColumn = errors.New("no vendor column in header")

// FileStats describes one parsed file.
type FileStats struct {
	Path      string
	Year      int
	Encoding  string
	Delimiter rune
	Rows      int
	Kept      int
	Skipped   map[SkipReason]int
}

// Decode returns a UTF-8 reader over data and the name of the detected
// encoding. A byte-order mark selects UTF-8 or UTF-16 and is removed;
// otherwise data is read as UTF-8 when valid and as Windows-1252 when not.
func Decode(data []byte) (io.Reader, string) {
	var fallback encoding.Encoding = unicode.UTF8
	name := "utf-8"
	switch {
	case bytes.HasPrefix(data, []byte{0xFF, 0xFE}), bytes.HasPrefix(data, []byte{0xFE, 0xFF}):
		name = "utf-16"
	case !utf8.Valid(data):
		fallback = charmap.Windows1252
		name = "windows-1252"
	}
	dec := unicode.BOMOverride(fallback.NewDecoder())
	return transform.NewReader(bytes.NewReader(data), dec), name
}

// SniffDelimiter picks comma, semicolon or tab, whichever occurs most in the
// header line. Ties favour the earlier one in that list.
func SniffDelimiter(header string) rune {
	best, bestN := ',', strings.Count(header, ",")
	for _, d := range []rune{';', '\t'} {
		if n := strings.Count(header, string(d)); n > bestN {
			best, bestN = d, n
		}
	}
	return best
}

// Parse reads one decoded CSV document. Every kept row gets fiscal year
// year.
func Parse(r io.Reader, year int) ([]core.RawPayment, FileStats, error) {
	stats := FileStats{Year: year, Skipped: make(map[SkipReason]int)}

	text, err := io.ReadAll(r)
	if err != nil {
		return nil, stats, fmt.Errorf("decode: %w", err)
	}
	text = bytes.TrimPrefix(text, []byte("\ufeff"))
	firstLine, _, _ := strings.Cut(string(text), "\n")
	stats.Delimiter = SniffDelimiter(firstLine)

	cr := csv.NewReader(bytes.NewReader(text))
	cr.Comma = stats.Delimiter
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, stats, nil
	}
	if err != nil {
		return nil, stats, fmt.Errorf("read header: %w", err)
	}
	cols := mapColumns(header)
	if len(cols.vendor) == 0 {
		return nil, stats, errNoVendorColumn
	}

	var out []core.RawPayment
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, stats, fmt.Errorf("row %d: %w", stats.Rows+2, err)
		}
		if len(row) == 0 {
			continue
		}
		stats.Rows++

		p, reason := parseRow(row, cols, year)
		if reason != "" {
			stats.Skipped[reason]++
			continue
		}
		out = append(out, p)
		stats.Kept++
	}
	return out, stats, nil
}

type columns struct {
	vendor, amount, ministry, category []int
}

func mapColumns(header []string) columns {
	index := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}
	pick := func(variants []string) []int {
		var out []int
		for _, v := range variants {
			if i, ok := index[v]; ok {
				out = append(out, i)
			}
		}
		return out
	}
	return columns{
		vendor:   pick(vendorColumns),
		amount:   pick(amountColumns),
		ministry: pick(ministryColumns),
		category: pick(categoryColumns),
	}
}

func valueAt(row []string, idx []int) string {
	for _, i := range idx {
		if i < len(row) {
			if v := strings.TrimSpace(row[i]); v != "" {
				return v
			}
		}
	}
	return ""
}

func parseRow(row []string, cols columns, year int) (core.RawPayment, SkipReason) {
	name := valueAt(row, cols.vendor)
	lower := strings.ToLower(name)
	if name == "" || containsExact(placeholderNames, lower) {
		return core.RawPayment{}, SkipBlankName
	}

	raw := valueAt(row, cols.amount)
	if raw == "" {
		return core.RawPayment{}, SkipNonPositive
	}
	amount, err := core.ParseMoney(raw)
	if err != nil {
		return core.RawPayment{}, SkipBadAmount
	}
	if !amount.IsPositive() {
		return core.RawPayment{}, SkipNonPositive
	}

	if containsAny(lower, aggregateLabels) {
		return core.RawPayment{}, SkipAggregate
	}
	if containsAny(strings.ToLower(valueAt(row, cols.category)), skippedCategory) {
		return core.RawPayment{}, SkipCategory
	}

	p := core.RawPayment{
		FiscalYear:    year,
		VendorNameRaw: name,
		Amount:        amount,
		Ministry:      valueAt(row, cols.ministry),
	}
	if err := p.Validate(); err != nil {
		return core.RawPayment{}, SkipInvalid
	}
	return p, ""
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func containsExact(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
