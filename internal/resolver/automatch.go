package resolver

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/kolscout/internal/matcher"
	"github.com/sells-group/kolscout/internal/model"
	"github.com/sells-group/kolscout/internal/store"
)

// AutoMatchError records a nomination the pass tried and failed to resolve.
type AutoMatchError struct {
	NominationID string `json:"nomination_id"`
	Message      string `json:"message"`
}

// AutoMatchReport summarizes one auto-match pass over a campaign.
type AutoMatchReport struct {
	Total   int              `json:"total"`
	Matched int              `json:"matched"`
	Skipped int              `json:"skipped"`
	Failed  int              `json:"failed"`
	Errors  []AutoMatchError `json:"errors,omitempty"`
}

// AutoMatch resolves every unmatched nomination in a campaign whose top
// candidate clears the accept threshold with an unambiguous lead. Nominations
// below the bar are left unmatched for human review, so running the pass
// again is a no-op for everything it already settled.
func (r *Resolver) AutoMatch(ctx context.Context, campaignID, resolvedBy string) (*AutoMatchReport, error) {
	noms, err := r.store.ListNominations(ctx, store.NominationFilter{
		CampaignID: campaignID,
		Status:     model.NominationUnmatched,
	})
	if err != nil {
		return nil, err
	}

	hcps, err := r.activeHcps(ctx)
	if err != nil {
		return nil, err
	}

	report := &AutoMatchReport{Total: len(noms)}
	for i := range noms {
		nom := &noms[i]
		top, runnerUp := matcher.Top(hcps, nom.RawName)
		if !r.accepts(top, runnerUp) {
			report.Skipped++
			continue
		}

		err := r.store.ResolveNomination(ctx, nom.ID, model.Resolution{
			Status:     model.NominationMatched,
			HcpID:      &top.HCP.ID,
			ResolvedBy: resolvedBy,
			ResolvedAt: time.Now().UTC(),
		})
		if err != nil {
			// Another operator may have resolved it since the list query.
			if model.IsInvalidState(err) {
				report.Skipped++
				continue
			}
			zap.L().Error("auto-match resolve failed",
				zap.String("nomination_id", nom.ID),
				zap.Error(err),
			)
			report.Failed++
			report.Errors = append(report.Errors, AutoMatchError{
				NominationID: nom.ID,
				Message:      err.Error(),
			})
			continue
		}

		if _, err := r.store.AddAlias(ctx, top.HCP.ID, nom.RawName); err != nil {
			zap.L().Warn("auto-match alias record failed",
				zap.String("hcp_id", top.HCP.ID),
				zap.Error(err),
			)
		}
		report.Matched++
	}

	zap.L().Info("auto-match pass complete",
		zap.String("campaign_id", campaignID),
		zap.Int("total", report.Total),
		zap.Int("matched", report.Matched),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

// accepts decides whether the top candidate is safe to match without review.
// A tie with the runner-up is always ambiguous, regardless of margin.
func (r *Resolver) accepts(top *matcher.Candidate, runnerUp int) bool {
	if top == nil || top.Score < r.cfg.AutoAcceptThreshold {
		return false
	}
	if top.Score == runnerUp {
		return false
	}
	return top.Score-runnerUp >= r.cfg.AutoAcceptMargin
}
