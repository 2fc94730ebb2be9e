package classify

import (
	"regexp"
	"strings"
)

// termSet matches any of a list of literal terms as whole words,
// case-insensitively. Boundaries are any non-letter, non-digit rune so that
// terms ending in punctuation ("D+H", "In Trust)") still match.
type termSet struct {
	re *regexp.Regexp
}

func newTermSet(terms ...string) termSet {
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		quoted = append(quoted, regexp.QuoteMeta(strings.Join(strings.Fields(t), " ")))
	}
	if len(quoted) == 0 {
		return termSet{}
	}
	re := regexp.MustCompile(`(?i)(?:^|[^\pL\pN])(?:` + strings.Join(quoted, "|") + `)(?:[^\pL\pN]|$)`)
	return termSet{re: re}
}

func (s termSet) match(name string) bool {
	return s.re != nil && s.re.MatchString(name)
}

func (s termSet) matchAny(names []string) bool {
	for _, n := range names {
		if s.match(n) {
			return true
		}
	}
	return false
}

// pattern is one named keyword group of the cascade. Source is quoted in
// evidence notes.
type pattern struct {
	source string
	set    termSet
}

func group(terms ...string) pattern {
	return pattern{
		source: `\b(` + strings.Join(terms, "|") + `)\b`,
		set:    newTermSet(terms...),
	}
}

func firstMatch(patterns []pattern, name string) (pattern, bool) {
	for _, p := range patterns {
		if p.set.match(name) {
			return p, true
		}
	}
	return pattern{}, false
}
