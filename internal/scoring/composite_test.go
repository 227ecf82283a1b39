package scoring

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/kolscout/internal/model"
	"github.com/sells-group/kolscout/internal/registry"
	"github.com/sells-group/kolscout/internal/store"
)

func TestComputeComposite(t *testing.T) {
	allHundred := model.SegmentScores{
		Publications: 100, ClinicalTrials: 100, Congress: 100, Guidelines: 100,
		Claims: 100, DigitalPresence: 100, Grants: 100, Societies: 100,
	}

	tests := []struct {
		name    string
		weights model.Weights
		seg     model.SegmentScores
		survey  float64
		want    float64
	}{
		{"all inputs 100 give 100", model.DefaultWeights(), allHundred, 100, 100},
		{"all inputs zero give zero", model.DefaultWeights(), model.SegmentScores{}, 0, 0},
		{"survey only weights track survey", model.Weights{Survey: 100}, allHundred, 40, 40},
		{
			"missing segments contribute nothing",
			model.DefaultWeights(),
			model.SegmentScores{Publications: 80}, // weight 10
			50,                                    // weight 25
			20.5,
		},
		{
			"rounds to one decimal",
			model.Weights{Survey: 100},
			model.SegmentScores{},
			33.33,
			33.3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeComposite(tt.weights, tt.seg, tt.survey)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 100.0)
		})
	}
}

func newTestEngine(t *testing.T) (*Engine, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	questions, err := registry.FromMap(map[string]string{
		"q-national": "national_kol",
		"q-rising":   "rising_star",
	})
	require.NoError(t, err)

	agg := NewSurveyAggregator(st, questions, 0)
	return NewEngine(st, agg), st
}

func seedScoredHcp(t *testing.T, st store.Store, campaignID, npi string, nominations int) *model.HCP {
	t.Helper()
	ctx := context.Background()
	h := &model.HCP{NPI: npi, FirstName: "Test", LastName: "Subject"}
	require.NoError(t, st.CreateHcp(ctx, h))
	for i := 0; i < nominations; i++ {
		n := &model.Nomination{CampaignID: campaignID, QuestionID: "q-national", RawName: h.FullName()}
		require.NoError(t, st.CreateNomination(ctx, n))
		require.NoError(t, st.ResolveNomination(ctx, n.ID, model.Resolution{
			Status:     model.NominationMatched,
			HcpID:      &h.ID,
			ResolvedBy: "test",
			ResolvedAt: time.Now().UTC(),
		}))
	}
	return h
}

func TestEngine_Weights_FallsBackToDefaults(t *testing.T) {
	e, _ := newTestEngine(t)

	w, err := e.Weights(context.Background(), "no-config")
	require.NoError(t, err)
	assert.Equal(t, model.DefaultWeights(), w)
}

func TestEngine_Weights_UsesStoredConfig(t *testing.T) {
	e, st := newTestEngine(t)
	ctx := context.Background()

	c := &model.Campaign{Name: "Wave", DiseaseAreaID: "retina"}
	require.NoError(t, st.CreateCampaign(ctx, c))

	custom := model.Weights{Survey: 100}
	require.NoError(t, st.SaveScoreConfig(ctx, &model.CompositeScoreConfig{
		CampaignID: c.ID,
		Weights:    custom,
	}))

	w, err := e.Weights(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, custom, w)
}

func TestEngine_ScoreCampaign(t *testing.T) {
	e, st := newTestEngine(t)
	ctx := context.Background()

	c := &model.Campaign{Name: "Wave", DiseaseAreaID: "retina"}
	require.NoError(t, st.CreateCampaign(ctx, c))

	withSegments := seedScoredHcp(t, st, c.ID, "1111111111", 3)
	require.NoError(t, st.UpsertSegmentScores(ctx, withSegments.ID, "retina", model.SegmentScores{
		Publications: 100, ClinicalTrials: 100, Congress: 100, Guidelines: 100,
		Claims: 100, DigitalPresence: 100, Grants: 100, Societies: 100,
	}))

	noSegments := seedScoredHcp(t, st, c.ID, "2222222222", 2)

	n, err := e.ScoreCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	scores, err := st.ListCampaignScores(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, scores, 2)

	byHcp := map[string]model.HcpCampaignScore{}
	for _, sc := range scores {
		byHcp[sc.HcpID] = sc
	}

	// 3 nominations at 10 points: survey 30, segments all 100.
	// Composite = (75*100 + 25*30) / 100 = 82.5.
	full := byHcp[withSegments.ID]
	assert.Equal(t, 30.0, full.ScoreSurvey)
	assert.Equal(t, 3, full.NominationCount)
	assert.InDelta(t, 82.5, full.ScoreComposite, 1e-9)
	assert.Nil(t, full.PublishedAt)

	// No segment data: only the survey term contributes. 20 * 0.25 = 5.
	bare := byHcp[noSegments.ID]
	assert.Equal(t, 20.0, bare.ScoreSurvey)
	assert.InDelta(t, 5.0, bare.ScoreComposite, 1e-9)
}

func TestEngine_ScoreCampaign_UnknownCampaign(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.ScoreCampaign(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, model.IsNotFound(err))
}

func TestEngine_ScoreCampaign_Rescore(t *testing.T) {
	e, st := newTestEngine(t)
	ctx := context.Background()

	c := &model.Campaign{Name: "Wave", DiseaseAreaID: "retina"}
	require.NoError(t, st.CreateCampaign(ctx, c))
	h := seedScoredHcp(t, st, c.ID, "1111111111", 1)

	_, err := e.ScoreCampaign(ctx, c.ID)
	require.NoError(t, err)

	// More nominations arrive and the campaign is rescored in place.
	n := &model.Nomination{CampaignID: c.ID, QuestionID: "q-rising", RawName: h.FullName()}
	require.NoError(t, st.CreateNomination(ctx, n))
	require.NoError(t, st.ResolveNomination(ctx, n.ID, model.Resolution{
		Status:     model.NominationMatched,
		HcpID:      &h.ID,
		ResolvedBy: "test",
		ResolvedAt: time.Now().UTC(),
	}))

	_, err = e.ScoreCampaign(ctx, c.ID)
	require.NoError(t, err)

	scores, err := st.ListCampaignScores(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Equal(t, 2, scores[0].NominationCount)
	assert.Equal(t, 20.0, scores[0].ScoreSurvey)
	assert.Equal(t, 1, scores[0].TypeCounts[model.TypeNationalKOL])
	assert.Equal(t, 1, scores[0].TypeCounts[model.TypeRisingStar])
}
