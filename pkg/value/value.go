// Package value strips extraction noise from raw cell values.
package value

import (
	"strings"

	"github.com/jmylchreest/labpool/pkg/label"
)

// ExemptSet holds normalized label keys whose values are kept verbatim.
// Identifier-like fields (e.g. "Cell ID") are alphanumeric and must not be
// reduced to their digits.
type ExemptSet map[string]struct{}

// NewExemptSet builds a set from labels, normalizing each one.
func NewExemptSet(labels ...string) ExemptSet {
	s := make(ExemptSet, len(labels))
	for _, l := range labels {
		if k := label.Normalize(l); k != "" {
			s[k] = struct{}{}
		}
	}
	return s
}

// DefaultExempt returns the set used when nothing is configured.
func DefaultExempt() ExemptSet {
	return NewExemptSet("cell id")
}

// Contains reports whether the normalized key is exempt.
func (s ExemptSet) Contains(key string) bool {
	_, ok := s[key]
	return ok
}

// Keys returns the members of the set in no particular order.
func (s ExemptSet) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	return keys
}

// Clean returns raw with surrounding whitespace trimmed. Unless key is exempt, only
// characters that can occur in a decimal or scientific numeral are kept:
// digits, '+', '-', '.', 'E' and 'e', in their original order.
//
// This is best-effort extraction, not validation. "1.2.3" passes through as is.
func Clean(raw, key string, exempt ExemptSet) string {
	v := strings.TrimSpace(raw)
	if exempt.Contains(key) {
		return v
	}
	return strings.Map(keepNumeric, v)
}

func keepNumeric(r rune) rune {
	switch {
	case r >= '0' && r <= '9':
		return r
	case r == '+', r == '-', r == '.', r == 'E', r == 'e':
		return r
	}
	return -1
}
