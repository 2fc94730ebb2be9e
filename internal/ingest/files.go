package ingest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var ErrNoYear = errors.New("no fiscal year in file name")

var (
	excludeKeywords = []string{
		"ministry_statements", "revenue", "capital", "operating", "spending_",
		"expense", "statement_of_operations", "economic_accounts", "sample", "assets",
	}
	includeKeywords = []string{"payment", "paiement", "schedule"}

	yearRangeFile = regexp.MustCompile(`20\d{2}[-_]\d{2}|20\d{2}-20\d{2}`)

	yearPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(\d{4})-\d{2}`),
		regexp.MustCompile(`(\d{4})_\d{2}`),
		regexp.MustCompile(`(\d{4})-\d{4}`),
		regexp.MustCompile(`(20\d{2})`),
	}
)

// IsPaymentSchedule reports whether a file name looks like a detailed
// schedule of payments rather than another public-accounts table.
func IsPaymentSchedule(name string) bool {
	lower := strings.ToLower(name)
	if !strings.HasSuffix(lower, ".csv") {
		return false
	}
	for _, kw := range excludeKeywords {
		if strings.Contains(lower, kw) {
			return false
		}
	}
	for _, kw := range includeKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return yearRangeFile.MatchString(name)
}

// FiscalYear extracts the starting fiscal year from a file name such as
// "payments_2018-19.csv".
func FiscalYear(name string) (int, error) {
	base := filepath.Base(name)
	for _, re := range yearPatterns {
		m := re.FindStringSubmatch(base)
		if m == nil {
			continue
		}
		year, err := strconv.Atoi(m[1])
		if err == nil && year >= 2000 && year <= 2100 {
			return year, nil
		}
	}
	return 0, fmt.Errorf("%s: %w", base, ErrNoYear)
}

// SelectFiles lists the payment-schedule CSVs directly under dir, sorted.
func SelectFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read raw dir: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !IsPaymentSchedule(e.Name()) {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}
