package catalog

import (
	"strings"

	"github.com/shopspring/decimal"
)

// NormalizeTerms lowercases and trims free-text classification values
// (tags, categories, platforms, languages) and removes duplicates while
// preserving first-seen order. Empty results are dropped.
func NormalizeTerms(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		term := strings.ToLower(strings.TrimSpace(v))
		if term == "" {
			continue
		}
		if _, ok := seen[term]; ok {
			continue
		}
		seen[term] = struct{}{}
		out = append(out, term)
	}
	return out
}

// DedupeNames trims and deduplicates display names (developers,
// publishers) without changing their case.
func DedupeNames(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		name := strings.TrimSpace(v)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// MinPrice resolves the canonical price from however many variants a
// source reports (retail, keyshop, ...). Non-numeric and absent values are
// ignored; when nothing parses the price is absent, never zero. The bool
// result mirrors the comma-ok idiom so callers can omit the field.
func MinPrice(values ...string) (decimal.Decimal, bool) {
	var best decimal.Decimal
	found := false
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		d, err := decimal.NewFromString(v)
		if err != nil {
			continue
		}
		if !found || d.LessThan(best) {
			best = d
			found = true
		}
	}
	return best, found
}
