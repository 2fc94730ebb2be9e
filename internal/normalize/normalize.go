// Package normalize canonicalizes raw vendor names into the comparison key
// used for vendor deduplication.
package normalize

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// legalSuffix matches one trailing legal-entity suffix, optionally followed
// by a period. It needs leading whitespace so a bare "Inc" is kept.
var legalSuffix = regexp.MustCompile(`(?i)\s+(inc|ltd|llc|llp|lp|corp|corporation|incorporated|limited)\.?$`)

// Normalize returns the comparison key for raw. Empty or blank input yields
// "", which callers must treat as unmatched.
//
// Suffixes are stripped until none remain, so "Foo Inc, Ltd." and "Foo" share
// a key. Title-casing can expose a new suffix ("ınc" becomes "Inc"), so the
// strip-and-case pass repeats until the key stops changing and
// Normalize(Normalize(x)) == Normalize(x).
func Normalize(raw string) string {
	s := canonical(raw)
	for {
		next := canonical(s)
		if next == s {
			return s
		}
		s = next
	}
}

// canonical does one pass of suffix stripping, whitespace folding and title
// casing.
func canonical(s string) string {
	s = collapse(s)
	for {
		stripped := legalSuffix.ReplaceAllString(s, "")
		if stripped == s {
			break
		}
		s = strings.TrimRight(stripped, ", \t")
	}
	s = collapse(s)
	if s == "" {
		return ""
	}
	// A Caser keeps state between calls, so one is built per call.
	return cases.Title(language.Und).String(s)
}

// collapse trims s and folds every run of Unicode whitespace to one space.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
