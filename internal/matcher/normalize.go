package matcher

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldTransformer strips combining marks so that accented renderings of an
// HCP name ("José Muñoz") compare equal to their ASCII forms ("Jose Munoz").
var foldTransformer = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalize prepares a name for comparison: trim, strip accents, lowercase.
func normalize(s string) string {
	folded, _, err := transform.String(foldTransformer, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.TrimSpace(folded))
}

// tokenize splits a raw entered name into comparison tokens: all
// non-alphabetic, non-whitespace characters are removed, the rest is
// lowercased and split on whitespace, dropping empties.
func tokenize(s string) []string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, normalize(s))
	return strings.Fields(cleaned)
}

// lastToken returns the final whitespace-delimited token of s, normalized.
func lastToken(s string) string {
	fields := strings.Fields(normalize(s))
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}
