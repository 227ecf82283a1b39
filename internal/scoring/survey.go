// Package scoring turns resolved nominations and objective segment data into
// campaign scores and versioned disease-area scores.
package scoring

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/kolscout/internal/model"
	"github.com/sells-group/kolscout/internal/registry"
	"github.com/sells-group/kolscout/internal/store"
)

// DefaultPointsPerNomination is the survey points each resolved nomination
// contributes before capping.
const DefaultPointsPerNomination = 10.0

// SurveyAggregator consolidates resolved nominations into per-HCP survey
// scores for one campaign. Each nomination is worth PointsPerNomination
// points; both per-type scores and the overall survey score cap at 100.
type SurveyAggregator struct {
	store     store.NominationRepository
	questions *registry.QuestionMap

	// PointsPerNomination defaults to DefaultPointsPerNomination when zero.
	PointsPerNomination float64
}

// NewSurveyAggregator creates an aggregator over the given nomination store.
func NewSurveyAggregator(st store.NominationRepository, questions *registry.QuestionMap, points float64) *SurveyAggregator {
	if points <= 0 {
		points = DefaultPointsPerNomination
	}
	return &SurveyAggregator{store: st, questions: questions, PointsPerNomination: points}
}

// Aggregate computes one HcpCampaignScore per HCP that received at least one
// matched or new_hcp nomination in the campaign. Composite fields are left
// zero; the composite engine fills them in. Results are ordered by HCP id.
func (a *SurveyAggregator) Aggregate(ctx context.Context, campaignID string) ([]model.HcpCampaignScore, error) {
	matched, err := a.store.ListNominations(ctx, store.NominationFilter{
		CampaignID: campaignID,
		Status:     model.NominationMatched,
	})
	if err != nil {
		return nil, err
	}
	created, err := a.store.ListNominations(ctx, store.NominationFilter{
		CampaignID: campaignID,
		Status:     model.NominationNewHcp,
	})
	if err != nil {
		return nil, err
	}

	byHcp := map[string]*model.HcpCampaignScore{}
	for _, nom := range append(matched, created...) {
		if nom.HcpID == nil {
			continue
		}
		t, ok := a.questions.TypeOf(nom.QuestionID)
		if !ok {
			zap.L().Warn("nomination question not in registry, skipping",
				zap.String("nomination_id", nom.ID),
				zap.String("question_id", nom.QuestionID),
			)
			continue
		}

		sc, ok := byHcp[*nom.HcpID]
		if !ok {
			sc = &model.HcpCampaignScore{
				CampaignID: campaignID,
				HcpID:      *nom.HcpID,
				TypeCounts: map[model.NominationType]int{},
				TypeScores: map[model.NominationType]float64{},
			}
			byHcp[*nom.HcpID] = sc
		}
		sc.TypeCounts[t]++
		sc.NominationCount++
	}

	now := time.Now().UTC()
	scores := make([]model.HcpCampaignScore, 0, len(byHcp))
	for _, sc := range byHcp {
		for t, count := range sc.TypeCounts {
			sc.TypeScores[t] = cap100(float64(count) * a.PointsPerNomination)
		}
		sc.ScoreSurvey = cap100(float64(sc.NominationCount) * a.PointsPerNomination)
		sc.CalculatedAt = now
		scores = append(scores, *sc)
	}

	sort.Slice(scores, func(i, j int) bool { return scores[i].HcpID < scores[j].HcpID })
	return scores, nil
}

func cap100(v float64) float64 {
	if v > 100 {
		return 100
	}
	return v
}
