package scoring

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/sells-group/kolscout/internal/model"
	"github.com/sells-group/kolscout/internal/store"
)

// ComputeComposite blends the eight objective segment scores and the survey
// score using w. Missing segment data is passed in as zero and contributes
// nothing. The result is clamped to [0, 100] and rounded to one decimal.
func ComputeComposite(w model.Weights, seg model.SegmentScores, survey float64) float64 {
	total := w.Publications*seg.Publications +
		w.ClinicalTrials*seg.ClinicalTrials +
		w.Congress*seg.Congress +
		w.Guidelines*seg.Guidelines +
		w.Claims*seg.Claims +
		w.DigitalPresence*seg.DigitalPresence +
		w.Grants*seg.Grants +
		w.Societies*seg.Societies +
		w.Survey*survey

	return round1(clamp100(total / 100))
}

func clamp100(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Engine computes and stores campaign scores.
type Engine struct {
	store store.Store
	agg   *SurveyAggregator
}

// NewEngine creates a scoring engine.
func NewEngine(st store.Store, agg *SurveyAggregator) *Engine {
	return &Engine{store: st, agg: agg}
}

// Weights returns the campaign's configured weights, falling back to the
// defaults when no config has been saved. Stored weights are re-validated so
// a config row edited out-of-band cannot silently skew scores.
func (e *Engine) Weights(ctx context.Context, campaignID string) (model.Weights, error) {
	cfg, err := e.store.GetScoreConfig(ctx, campaignID)
	if err != nil {
		return model.Weights{}, err
	}
	if cfg == nil {
		return model.DefaultWeights(), nil
	}
	if err := cfg.Weights.Validate(); err != nil {
		return model.Weights{}, err
	}
	return cfg.Weights, nil
}

// ScoreCampaign recomputes survey and composite scores for every nominated
// HCP in the campaign and upserts the rows unpublished. Returns the number of
// score rows written.
func (e *Engine) ScoreCampaign(ctx context.Context, campaignID string) (int, error) {
	campaign, err := e.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return 0, err
	}

	weights, err := e.Weights(ctx, campaignID)
	if err != nil {
		return 0, err
	}

	scores, err := e.agg.Aggregate(ctx, campaignID)
	if err != nil {
		return 0, err
	}

	for i := range scores {
		sc := &scores[i]

		var seg model.SegmentScores
		if s, err := e.store.GetSegmentScores(ctx, sc.HcpID, campaign.DiseaseAreaID); err != nil {
			return 0, err
		} else if s != nil {
			seg = *s
		}

		sc.ScoreComposite = ComputeComposite(weights, seg, sc.ScoreSurvey)
		if err := e.store.UpsertCampaignScore(ctx, sc); err != nil {
			return 0, err
		}
	}

	zap.L().Info("campaign scored",
		zap.String("campaign_id", campaignID),
		zap.Int("hcps", len(scores)),
	)
	return len(scores), nil
}
