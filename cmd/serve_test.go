package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/kolscout/internal/model"
	"github.com/sells-group/kolscout/internal/registry"
	"github.com/sells-group/kolscout/internal/resolver"
	"github.com/sells-group/kolscout/internal/scoring"
	"github.com/sells-group/kolscout/internal/store"
)

func newTestServer(t *testing.T) (*httptest.Server, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	questions, err := registry.FromMap(map[string]string{"q1": "national_kol"})
	require.NoError(t, err)
	engine := scoring.NewEngine(st, scoring.NewSurveyAggregator(st, questions, 0))

	mux := newServeMux(st, resolver.New(st, resolver.DefaultConfig()), engine, scoring.NewPublisher(st))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, st
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(method, url, bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestServe_Health(t *testing.T) {
	srv, _ := newTestServer(t)

	var body map[string]string
	resp := getJSON(t, srv.URL+"/health", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestServe_NominationFlow(t *testing.T) {
	srv, st := newTestServer(t)
	ctx := context.Background()

	c := &model.Campaign{Name: "Wave", DiseaseAreaID: "retina"}
	require.NoError(t, st.CreateCampaign(ctx, c))
	h := &model.HCP{NPI: "1111111111", FirstName: "John", LastName: "Smith"}
	require.NoError(t, st.CreateHcp(ctx, h))

	// Create a nomination.
	resp := postJSON(t, srv.URL+"/nominations", map[string]string{
		"campaign_id": c.ID,
		"question_id": "q1",
		"raw_name":    "John Smith",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var nom model.Nomination
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&nom))
	assert.Equal(t, model.NominationUnmatched, nom.Status)

	// The registered HCP shows up as a suggestion.
	var candidates []struct {
		HCP   model.HCP `json:"hcp"`
		Score int       `json:"score"`
	}
	resp = getJSON(t, srv.URL+"/nominations/"+nom.ID+"/suggestions", &candidates)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, candidates, 1)
	assert.Equal(t, 100, candidates[0].Score)

	// Match it.
	resp = postJSON(t, srv.URL+"/nominations/"+nom.ID+"/match", map[string]any{
		"hcp_id":      h.ID,
		"resolved_by": "reviewer",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got, err := st.GetNomination(ctx, nom.ID)
	require.NoError(t, err)
	assert.Equal(t, model.NominationMatched, got.Status)

	// A second match attempt conflicts with the terminal state.
	resp = postJSON(t, srv.URL+"/nominations/"+nom.ID+"/match", map[string]any{
		"hcp_id":      h.ID,
		"resolved_by": "reviewer",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestServe_CreateNomination_Errors(t *testing.T) {
	srv, st := newTestServer(t)
	ctx := context.Background()

	// Unknown campaign.
	resp := postJSON(t, srv.URL+"/nominations", map[string]string{
		"campaign_id": "missing",
		"question_id": "q1",
		"raw_name":    "John Smith",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Empty raw name.
	c := &model.Campaign{Name: "Wave", DiseaseAreaID: "retina"}
	require.NoError(t, st.CreateCampaign(ctx, c))
	resp = postJSON(t, srv.URL+"/nominations", map[string]string{
		"campaign_id": c.ID,
		"question_id": "q1",
		"raw_name":    "  ",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServe_Exclude(t *testing.T) {
	srv, st := newTestServer(t)
	ctx := context.Background()

	c := &model.Campaign{Name: "Wave", DiseaseAreaID: "retina"}
	require.NoError(t, st.CreateCampaign(ctx, c))
	n := &model.Nomination{CampaignID: c.ID, QuestionID: "q1", RawName: "Acme Pharma"}
	require.NoError(t, st.CreateNomination(ctx, n))

	resp := postJSON(t, srv.URL+"/nominations/"+n.ID+"/exclude", map[string]string{
		"reason":      "company name, not a person",
		"resolved_by": "reviewer",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got, err := st.GetNomination(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, model.NominationExcluded, got.Status)
}

func TestServe_CampaignScores_PublishedOnly(t *testing.T) {
	srv, st := newTestServer(t)
	ctx := context.Background()

	c := &model.Campaign{Name: "Wave", DiseaseAreaID: "retina"}
	require.NoError(t, st.CreateCampaign(ctx, c))
	h := &model.HCP{NPI: "1111111111", FirstName: "John", LastName: "Smith"}
	require.NoError(t, st.CreateHcp(ctx, h))

	require.NoError(t, st.UpsertCampaignScore(ctx, &model.HcpCampaignScore{
		CampaignID:      c.ID,
		HcpID:           h.ID,
		ScoreSurvey:     20,
		ScoreComposite:  5,
		NominationCount: 2,
		CalculatedAt:    time.Now().UTC(),
	}))

	// Unpublished rows stay off the dashboard.
	var scores []model.HcpCampaignScore
	resp := getJSON(t, srv.URL+"/campaigns/"+c.ID+"/scores", &scores)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, scores)

	_, err := st.PublishCampaignScores(ctx, c.ID, time.Now().UTC())
	require.NoError(t, err)

	resp = getJSON(t, srv.URL+"/campaigns/"+c.ID+"/scores", &scores)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, scores, 1)
	assert.Equal(t, h.ID, scores[0].HcpID)
}

func TestServe_SnapshotEndpoints(t *testing.T) {
	srv, st := newTestServer(t)
	ctx := context.Background()

	h := &model.HCP{NPI: "1111111111", FirstName: "John", LastName: "Smith"}
	require.NoError(t, st.CreateHcp(ctx, h))

	// No snapshot yet.
	resp := getJSON(t, srv.URL+"/hcps/"+h.ID+"/disease-areas/retina/score", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	require.NoError(t, st.PublishSnapshot(ctx, &model.HcpDiseaseAreaScore{
		HcpID: h.ID, DiseaseAreaID: "retina",
		ScoreSurvey: 30, ScoreComposite: 42,
		CampaignCount: 1, NominationCount: 3,
		EffectiveFrom: time.Now().UTC(),
	}))
	require.NoError(t, st.PublishSnapshot(ctx, &model.HcpDiseaseAreaScore{
		HcpID: h.ID, DiseaseAreaID: "retina",
		ScoreSurvey: 40, ScoreComposite: 50,
		CampaignCount: 2, NominationCount: 7,
		EffectiveFrom: time.Now().UTC(),
	}))

	var snap model.HcpDiseaseAreaScore
	resp = getJSON(t, srv.URL+"/hcps/"+h.ID+"/disease-areas/retina/score", &snap)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 50.0, snap.ScoreComposite)
	assert.True(t, snap.IsCurrent)

	var history []model.HcpDiseaseAreaScore
	resp = getJSON(t, srv.URL+"/hcps/"+h.ID+"/disease-areas/retina/history", &history)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, history, 2)
	assert.True(t, history[0].IsCurrent)
	assert.False(t, history[1].IsCurrent)
}

func TestServe_CreateHcpFromNomination(t *testing.T) {
	srv, st := newTestServer(t)
	ctx := context.Background()

	c := &model.Campaign{Name: "Wave", DiseaseAreaID: "retina"}
	require.NoError(t, st.CreateCampaign(ctx, c))
	n := &model.Nomination{CampaignID: c.ID, QuestionID: "q1", RawName: "Dr. Maria Garcia"}
	require.NoError(t, st.CreateNomination(ctx, n))

	resp := postJSON(t, srv.URL+"/nominations/"+n.ID+"/create-hcp", map[string]string{
		"npi":         "9999999999",
		"first_name":  "Maria",
		"last_name":   "Garcia",
		"resolved_by": "reviewer",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created model.HCP
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))

	got, err := st.GetNomination(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, model.NominationNewHcp, got.Status)
	require.NotNil(t, got.HcpID)
	assert.Equal(t, created.ID, *got.HcpID)

	// Duplicate NPI conflicts.
	n2 := &model.Nomination{CampaignID: c.ID, QuestionID: "q1", RawName: "M Garcia"}
	require.NoError(t, st.CreateNomination(ctx, n2))
	resp = postJSON(t, srv.URL+"/nominations/"+n2.ID+"/create-hcp", map[string]string{
		"npi":         "9999999999",
		"first_name":  "Maria",
		"last_name":   "Garcia",
		"resolved_by": "reviewer",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestServe_Automatch(t *testing.T) {
	srv, st := newTestServer(t)
	ctx := context.Background()

	c := &model.Campaign{Name: "Wave", DiseaseAreaID: "retina"}
	require.NoError(t, st.CreateCampaign(ctx, c))
	h := &model.HCP{NPI: "1111111111", FirstName: "John", LastName: "Smith"}
	require.NoError(t, st.CreateHcp(ctx, h))
	n := &model.Nomination{CampaignID: c.ID, QuestionID: "q1", RawName: "John Smith"}
	require.NoError(t, st.CreateNomination(ctx, n))

	var report struct {
		Total   int `json:"total"`
		Matched int `json:"matched"`
	}
	resp := postJSON(t, srv.URL+"/campaigns/"+c.ID+"/automatch", map[string]string{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	assert.Equal(t, 1, report.Total)
	assert.Equal(t, 1, report.Matched)

	got, err := st.GetNomination(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, model.NominationMatched, got.Status)
	assert.Equal(t, "automatch", got.ResolvedBy)
}

func TestServe_Weights(t *testing.T) {
	srv, st := newTestServer(t)
	ctx := context.Background()

	c := &model.Campaign{Name: "Wave", DiseaseAreaID: "retina"}
	require.NoError(t, st.CreateCampaign(ctx, c))

	// Defaults until a config is saved.
	var weights model.Weights
	resp := getJSON(t, srv.URL+"/campaigns/"+c.ID+"/weights", &weights)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, model.DefaultWeights(), weights)

	// Weights that do not sum to 100 are rejected before persistence.
	bad := model.DefaultWeights()
	bad.Survey = 50
	resp = doJSON(t, http.MethodPut, srv.URL+"/campaigns/"+c.ID+"/weights", bad)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	custom := model.Weights{Survey: 100}
	resp = doJSON(t, http.MethodPut, srv.URL+"/campaigns/"+c.ID+"/weights", custom)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = getJSON(t, srv.URL+"/campaigns/"+c.ID+"/weights", &weights)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, custom, weights)

	// Reset restores the defaults.
	resp = doJSON(t, http.MethodDelete, srv.URL+"/campaigns/"+c.ID+"/weights", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = getJSON(t, srv.URL+"/campaigns/"+c.ID+"/weights", &weights)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, model.DefaultWeights(), weights)
}

func TestServe_CalculateAndPublish(t *testing.T) {
	srv, st := newTestServer(t)
	ctx := context.Background()

	c := &model.Campaign{Name: "Wave", DiseaseAreaID: "retina"}
	require.NoError(t, st.CreateCampaign(ctx, c))

	// Publishing before any scores exist conflicts.
	resp := postJSON(t, srv.URL+"/campaigns/"+c.ID+"/publish", map[string]string{})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	h := &model.HCP{NPI: "1111111111", FirstName: "John", LastName: "Smith"}
	require.NoError(t, st.CreateHcp(ctx, h))
	n := &model.Nomination{CampaignID: c.ID, QuestionID: "q1", RawName: "John Smith"}
	require.NoError(t, st.CreateNomination(ctx, n))
	require.NoError(t, st.ResolveNomination(ctx, n.ID, model.Resolution{
		Status:     model.NominationMatched,
		HcpID:      &h.ID,
		ResolvedBy: "reviewer",
		ResolvedAt: time.Now().UTC(),
	}))

	var calc map[string]int
	resp = postJSON(t, srv.URL+"/campaigns/"+c.ID+"/calculate", map[string]string{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&calc))
	assert.Equal(t, 1, calc["scored"])

	var report struct {
		CampaignRows int `json:"campaign_rows"`
		Snapshots    int `json:"snapshots"`
	}
	resp = postJSON(t, srv.URL+"/campaigns/"+c.ID+"/publish", map[string]string{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	assert.Equal(t, 1, report.CampaignRows)
	assert.Equal(t, 1, report.Snapshots)

	snap, err := st.GetCurrentSnapshot(ctx, h.ID, "retina")
	require.NoError(t, err)
	assert.Equal(t, 10.0, snap.ScoreSurvey)
}
