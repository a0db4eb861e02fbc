// Package label canonicalizes field labels and table cell text into comparison keys.
//
// Two strings name the same field if and only if their keys are equal. Keys are
// insensitive to case, internal whitespace, whitespace inside parentheses and a
// trailing colon added by document authors.
package label

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const nbsp = "\u00a0"

var (
	whitespaceRun = regexp.MustCompile(`[\s\v\p{Zs}\x{2028}\x{2029}\x{FEFF}]+`)
	openParen     = regexp.MustCompile(`\s*\(\s*`)
	closeParen    = regexp.MustCompile(`\s*\)\s*`)
)

// Normalize returns the comparison key for s.
//
// The steps run in a fixed order: NBSP to space, whitespace collapse, parenthesis
// spacing, trim, trailing colon, lowercase. Collapsing must happen before the
// parenthesis pass so that mixed whitespace runs are removed as one unit.
// Stripping the colon re-trims and repeats so that Normalize(Normalize(s)) ==
// Normalize(s) also holds for inputs like "Ratio :" or "Ratio::".
func Normalize(s string) string {
	t := strings.ReplaceAll(s, nbsp, " ")
	t = whitespaceRun.ReplaceAllString(t, " ")
	t = openParen.ReplaceAllString(t, "(")
	t = closeParen.ReplaceAllString(t, ")")
	t = strings.TrimSpace(t)
	for strings.HasSuffix(t, ":") {
		t = strings.TrimSpace(strings.TrimSuffix(t, ":"))
	}
	// Caser carries state, so one is built per call.
	return cases.Lower(language.Und).String(t)
}

// Equal reports whether a and b normalize to the same key.
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

// ParseList splits a comma separated label string as typed by a user.
// Entries are trimmed and empty entries are dropped; order and duplicates are kept.
func ParseList(raw string) []string {
	parts := strings.Split(raw, ",")
	labels := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			labels = append(labels, p)
		}
	}
	return labels
}

// Clean trims each label and drops empty ones.
func Clean(labels []string) []string {
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}
