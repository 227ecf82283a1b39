package scoring

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/kolscout/internal/model"
	"github.com/sells-group/kolscout/internal/resilience"
	"github.com/sells-group/kolscout/internal/store"
)

// PublishReport summarizes one campaign publish.
type PublishReport struct {
	CampaignID   string `json:"campaign_id"`
	CampaignRows int    `json:"campaign_rows"`
	Snapshots    int    `json:"snapshots"`
}

// Publisher releases campaign scores to dashboards and maintains the
// versioned cross-campaign disease-area scores.
type Publisher struct {
	store store.Store
	retry resilience.RetryConfig
}

// NewPublisher creates a Publisher with default retry settings.
func NewPublisher(st store.Store) *Publisher {
	cfg := resilience.DefaultRetryConfig()
	cfg.ShouldRetry = func(err error) bool {
		// Concurrent publishes for the same HCP lose the single-current-row
		// race; retrying re-runs the close-and-insert on fresh state.
		return resilience.IsTransient(err) || model.IsConflict(err)
	}
	cfg.OnRetry = resilience.RetryLogger("publisher", "publish")
	return &Publisher{store: st, retry: cfg}
}

// PublishCampaign stamps every score row of the campaign as published, then
// rebuilds the disease-area snapshot for each HCP that now has published
// scores in the campaign's disease area. Each snapshot insert closes the
// previous current row; history stays intact.
func (p *Publisher) PublishCampaign(ctx context.Context, campaignID string) (*PublishReport, error) {
	campaign, err := p.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	// Stamping with a fixed timestamp is idempotent, so the whole update is
	// safe to retry on transient store failures.
	now := time.Now().UTC()
	rows, err := resilience.DoVal(ctx, p.retry, func(ctx context.Context) (int, error) {
		return p.store.PublishCampaignScores(ctx, campaignID, now)
	})
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, &model.InvalidStateError{
			Entity: "campaign", ID: campaignID, State: "unscored", Op: "publish",
		}
	}

	aggs, err := p.aggregateDiseaseArea(ctx, campaign.DiseaseAreaID)
	if err != nil {
		return nil, err
	}

	for _, agg := range aggs {
		snap := &model.HcpDiseaseAreaScore{
			HcpID:           agg.hcpID,
			DiseaseAreaID:   campaign.DiseaseAreaID,
			ScoreSurvey:     round1(agg.surveySum / float64(agg.campaigns)),
			ScoreComposite:  round1(agg.compositeSum / float64(agg.campaigns)),
			CampaignCount:   agg.campaigns,
			NominationCount: agg.nominations,
			EffectiveFrom:   now,
		}

		if seg, err := p.store.GetSegmentScores(ctx, agg.hcpID, campaign.DiseaseAreaID); err != nil {
			return nil, err
		} else if seg != nil {
			snap.Segments = *seg
		}

		err := resilience.Do(ctx, p.retry, func(ctx context.Context) error {
			fresh := *snap
			fresh.ID = ""
			err := p.store.PublishSnapshot(ctx, &fresh)
			if err == nil {
				*snap = fresh
			}
			return err
		})
		if err != nil {
			return nil, err
		}
	}

	zap.L().Info("campaign published",
		zap.String("campaign_id", campaignID),
		zap.String("disease_area_id", campaign.DiseaseAreaID),
		zap.Int("campaign_rows", rows),
		zap.Int("snapshots", len(aggs)),
	)
	return &PublishReport{
		CampaignID:   campaignID,
		CampaignRows: rows,
		Snapshots:    len(aggs),
	}, nil
}

type hcpAggregate struct {
	hcpID        string
	surveySum    float64
	compositeSum float64
	campaigns    int
	nominations  int
}

// aggregateDiseaseArea folds every published campaign score row in the
// disease area into one aggregate per HCP, ordered by HCP id.
func (p *Publisher) aggregateDiseaseArea(ctx context.Context, diseaseAreaID string) ([]hcpAggregate, error) {
	campaigns, err := p.store.ListCampaigns(ctx)
	if err != nil {
		return nil, err
	}

	byHcp := map[string]*hcpAggregate{}
	for _, c := range campaigns {
		if c.DiseaseAreaID != diseaseAreaID {
			continue
		}
		scores, err := p.store.ListCampaignScores(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		for _, sc := range scores {
			if sc.PublishedAt == nil {
				continue
			}
			agg, ok := byHcp[sc.HcpID]
			if !ok {
				agg = &hcpAggregate{hcpID: sc.HcpID}
				byHcp[sc.HcpID] = agg
			}
			agg.surveySum += sc.ScoreSurvey
			agg.compositeSum += sc.ScoreComposite
			agg.campaigns++
			agg.nominations += sc.NominationCount
		}
	}

	out := make([]hcpAggregate, 0, len(byHcp))
	for _, agg := range byHcp {
		out = append(out, *agg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].hcpID < out[j].hcpID })
	return out, nil
}
