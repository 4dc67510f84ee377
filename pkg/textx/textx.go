// Package textx provides small text utilities used across the project.
package textx

import (
	"strings"
)

// SanitizeText strips control characters outside tab/newline/carriage
// return from broker-supplied free text.
func SanitizeText(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r == '\n' || r == '\r' || r == '\t' || (r >= 32 && r != 127) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// NormalizeTerm lower-cases and trims a single term for set comparison.
func NormalizeTerm(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeSet builds a set of normalized terms, dropping empties and
// collapsing duplicates.
func NormalizeSet(terms []string) map[string]struct{} {
	set := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		n := NormalizeTerm(t)
		if n == "" {
			continue
		}
		set[n] = struct{}{}
	}
	return set
}

// Tokenize splits free text into lower-cased whitespace-delimited tokens.
func Tokenize(s string) []string {
	return strings.Fields(strings.ToLower(s))
}

// JoinNonEmpty joins the non-empty parts with single spaces.
func JoinNonEmpty(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		kept = append(kept, p)
	}
	return strings.Join(kept, " ")
}
