// Package header turns raw CSV column names into snake_case identifiers.
package header

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// UTF-8 punctuation decoded as Windows-1252 ("’" -> "â€™"), once or twice.
	doubleMojibakeApostrophe = regexp.MustCompile(`Ã¢â‚¬(â„¢|Ëœ)`)
	mojibakeApostrophe       = regexp.MustCompile(`â€[™˜]`)
	mojibakePunctuation      = regexp.MustCompile(`â€.?`)

	nonAlnum        = regexp.MustCompile(`[^a-z0-9]+`)
	multiUnderscore = regexp.MustCompile(`_{2,}`)

	artifacts = strings.NewReplacer(
		"\ufeff", "",
		"\u00c2\u00a0", " ",
		"\u00a0", " ",
		"\u2019", "",
		"\u2018", "",
		"'", "",
		"`", "",
		"\u00b4", "",
	)
)

// Normalize converts one raw header to an identifier: lowercase ASCII letters and
// digits separated by single underscores, with no leading or trailing underscore.
// Apostrophes are dropped rather than treated as separators, so
// "Patients’ rating" becomes "patients_rating". Empty or punctuation-only input
// yields "". Normalize is pure and safe for concurrent use.
func Normalize(raw string) string {
	s := clean(raw)
	s = strings.ToLower(s)
	s = nonAlnum.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	return multiUnderscore.ReplaceAllString(s, "_")
}

// clean removes encoding artifacts and folds accented letters to ASCII.
func clean(s string) string {
	s = doubleMojibakeApostrophe.ReplaceAllString(s, "")
	s = mojibakeApostrophe.ReplaceAllString(s, "")
	s = mojibakePunctuation.ReplaceAllString(s, " ")
	s = artifacts.Replace(s)
	return foldAccents(s)
}

func foldAccents(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return folded
}

// NormalizeAll normalizes every column of a header row, keeping positions.
func NormalizeAll(raw []string) []string {
	out := make([]string, len(raw))
	for i, r := range raw {
		out[i] = Normalize(r)
	}
	return out
}

// Disambiguate makes a normalized header row usable as column identifiers.
// Empty names become "column_<n>" (1-based position). Repeated names keep their
// first occurrence and get "_2", "_3", ... on later ones, skipping any suffix that
// is already taken. The input slice is not modified.
func Disambiguate(names []string) []string {
	out := make([]string, len(names))
	taken := make(map[string]bool, len(names))
	for _, n := range names {
		if n != "" {
			taken[n] = false
		}
	}

	for i, n := range names {
		if n == "" {
			n = fmt.Sprintf("column_%d", i+1)
		}
		if used, seen := taken[n]; !seen || !used {
			taken[n] = true
			out[i] = n
			continue
		}
		for k := 2; ; k++ {
			candidate := fmt.Sprintf("%s_%d", n, k)
			if _, exists := taken[candidate]; !exists {
				taken[candidate] = true
				out[i] = candidate
				break
			}
		}
	}
	return out
}
