package matcher

import (
	"sort"

	"github.com/sells-group/kolscout/internal/model"
)

// Candidate pairs an HCP with its confidence score for a given raw name.
type Candidate struct {
	HCP   *model.HCP `json:"hcp"`
	Score int        `json:"score"`
}

// Rank scores every candidate HCP against rawName and returns them sorted
// descending by score. Ties preserve the input iteration order (stable sort),
// so repeated runs over unchanged data rank identically.
func Rank(hcps []*model.HCP, rawName string) []Candidate {
	candidates := make([]Candidate, 0, len(hcps))
	for _, h := range hcps {
		candidates = append(candidates, Candidate{HCP: h, Score: Score(h, rawName)})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	return candidates
}

// Top returns the best candidate and the runner-up score, for auto-match
// ambiguity checks. Returns nil when hcps is empty.
func Top(hcps []*model.HCP, rawName string) (*Candidate, int) {
	ranked := Rank(hcps, rawName)
	if len(ranked) == 0 {
		return nil, 0
	}
	runnerUp := 0
	if len(ranked) > 1 {
		runnerUp = ranked[1].Score
	}
	best := ranked[0]
	return &best, runnerUp
}
