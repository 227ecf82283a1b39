// Package matcher scores free-text nominated names against canonical HCP
// records and ranks candidate matches for review and bulk auto-matching.
package matcher

import (
	"strings"

	"github.com/sells-group/kolscout/internal/model"
)

// Confidence thresholds produced by the scoring rules. The rules are
// evaluated in this order and the first hit wins.
const (
	ScoreExactFullName     = 100 // raw name equals "First Last"
	ScoreExactAlias        = 95  // raw name equals a known alias
	ScoreFullNameSubstring = 85  // full name contains raw, or raw contains full name
	ScoreLastNameExact     = 75  // last token of raw equals the HCP last name
	ScoreAliasSubstring    = 70  // alias contains raw, or raw contains an alias
	tokenPoints            = 25  // per matched token in the fallback rule
	tokenCap               = 60  // fallback rule ceiling
)

// Score rates how confidently rawName refers to hcp, on a 0-100 scale.
// Pure function: no side effects, no state beyond the HCP's own alias list.
// All comparisons are case-insensitive after trimming both sides.
func Score(hcp *model.HCP, rawName string) int {
	raw := normalize(rawName)
	if raw == "" {
		return 0
	}

	fullName := normalize(hcp.FullName())

	// Rule 1: exact full-name match.
	if raw == fullName {
		return ScoreExactFullName
	}

	// Rule 2: exact alias match.
	aliases := make([]string, 0, len(hcp.Aliases))
	for _, a := range hcp.Aliases {
		aliases = append(aliases, normalize(a.Text))
	}
	for _, alias := range aliases {
		if alias != "" && raw == alias {
			return ScoreExactAlias
		}
	}

	// Rule 3: full name contains raw, or raw contains full name.
	if fullName != "" && (strings.Contains(fullName, raw) || strings.Contains(raw, fullName)) {
		return ScoreFullNameSubstring
	}

	// Rule 4: last token of the raw name equals the HCP last name.
	if last := lastToken(rawName); last != "" && last == normalize(hcp.LastName) {
		return ScoreLastNameExact
	}

	// Rule 5: alias substring in either direction.
	for _, alias := range aliases {
		if alias != "" && (strings.Contains(alias, raw) || strings.Contains(raw, alias)) {
			return ScoreAliasSubstring
		}
	}

	// Rule 6: token overlap fallback.
	first := normalize(hcp.FirstName)
	lastName := normalize(hcp.LastName)
	matched := 0
	for _, tok := range tokenize(rawName) {
		if strings.Contains(first, tok) || strings.Contains(lastName, tok) {
			matched++
		}
	}
	score := matched * tokenPoints
	if score > tokenCap {
		score = tokenCap
	}
	return score
}
