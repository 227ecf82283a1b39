package resolver

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/kolscout/internal/model"
	"github.com/sells-group/kolscout/internal/store"
)

func newTestResolver(t *testing.T) (*Resolver, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return New(st, DefaultConfig()), st
}

func seedHcp(t *testing.T, st store.Store, npi, first, last string) *model.HCP {
	t.Helper()
	h := &model.HCP{NPI: npi, FirstName: first, LastName: last}
	require.NoError(t, st.CreateHcp(context.Background(), h))
	return h
}

func seedNomination(t *testing.T, st store.Store, rawName string) *model.Nomination {
	t.Helper()
	c := &model.Campaign{Name: "Wave", DiseaseAreaID: "retina"}
	require.NoError(t, st.CreateCampaign(context.Background(), c))
	n := &model.Nomination{CampaignID: c.ID, QuestionID: "q1", RawName: rawName}
	require.NoError(t, st.CreateNomination(context.Background(), n))
	return n
}

func TestResolver_Suggest_RanksAndFiltersZero(t *testing.T) {
	r, st := newTestResolver(t)
	ctx := context.Background()

	exact := seedHcp(t, st, "1111111111", "John", "Smith")
	lastName := seedHcp(t, st, "2222222222", "Jane", "Smith")
	seedHcp(t, st, "3333333333", "Alice", "Wong") // scores zero

	n := seedNomination(t, st, "John Smith")

	candidates, err := r.Suggest(ctx, n.ID)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, exact.ID, candidates[0].HCP.ID)
	assert.Equal(t, 100, candidates[0].Score)
	assert.Equal(t, lastName.ID, candidates[1].HCP.ID)
	assert.Equal(t, 75, candidates[1].Score)
}

func TestResolver_Suggest_ExcludesInactive(t *testing.T) {
	r, st := newTestResolver(t)
	ctx := context.Background()

	h := seedHcp(t, st, "1111111111", "John", "Smith")
	require.NoError(t, st.DeactivateHcp(ctx, h.ID))

	n := seedNomination(t, st, "John Smith")

	candidates, err := r.Suggest(ctx, n.ID)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestResolver_Match_RecordsAliasAndAudit(t *testing.T) {
	r, st := newTestResolver(t)
	ctx := context.Background()

	h := seedHcp(t, st, "1111111111", "John", "Smith")
	n := seedNomination(t, st, "Dr. J Smith")

	require.NoError(t, r.Match(ctx, n.ID, h.ID, "reviewer", true))

	got, err := st.GetNomination(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, model.NominationMatched, got.Status)
	require.NotNil(t, got.HcpID)
	assert.Equal(t, h.ID, *got.HcpID)
	assert.Equal(t, "reviewer", got.ResolvedBy)

	aliases, err := st.ListAliases(ctx, h.ID)
	require.NoError(t, err)
	require.Len(t, aliases, 1)
	assert.Equal(t, "Dr. J Smith", aliases[0].Text)
}

func TestResolver_Match_InactiveHcpRejected(t *testing.T) {
	r, st := newTestResolver(t)
	ctx := context.Background()

	h := seedHcp(t, st, "1111111111", "John", "Smith")
	require.NoError(t, st.DeactivateHcp(ctx, h.ID))
	n := seedNomination(t, st, "John Smith")

	err := r.Match(ctx, n.ID, h.ID, "reviewer", false)
	require.Error(t, err)
	assert.True(t, model.IsInvalidState(err))

	// Nomination stays open.
	got, err := st.GetNomination(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, model.NominationUnmatched, got.Status)
}

func TestResolver_CreateHcp_ResolvesAndAliases(t *testing.T) {
	r, st := newTestResolver(t)
	ctx := context.Background()

	n := seedNomination(t, st, "Dr. Maria Garcia")

	created, err := r.CreateHcp(ctx, n.ID, &model.HCP{
		NPI: "9999999999", FirstName: "Maria", LastName: "Garcia",
	}, "reviewer")
	require.NoError(t, err)

	got, err := st.GetNomination(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, model.NominationNewHcp, got.Status)
	require.NotNil(t, got.HcpID)
	assert.Equal(t, created.ID, *got.HcpID)

	aliases, err := st.ListAliases(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, aliases, 1)
	assert.Equal(t, "Dr. Maria Garcia", aliases[0].Text)
}

func TestResolver_CreateHcp_TerminalNominationRejected(t *testing.T) {
	r, st := newTestResolver(t)
	ctx := context.Background()

	n := seedNomination(t, st, "Someone")
	require.NoError(t, r.Exclude(ctx, n.ID, "out of scope", "reviewer"))

	_, err := r.CreateHcp(ctx, n.ID, &model.HCP{
		NPI: "9999999999", FirstName: "Some", LastName: "One",
	}, "reviewer")
	require.Error(t, err)
	assert.True(t, model.IsInvalidState(err))
}

func TestResolver_Exclude(t *testing.T) {
	r, st := newTestResolver(t)
	ctx := context.Background()

	n := seedNomination(t, st, "Not an HCP")

	require.NoError(t, r.Exclude(ctx, n.ID, "company name, not a person", "reviewer"))

	got, err := st.GetNomination(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, model.NominationExcluded, got.Status)
	assert.Equal(t, "company name, not a person", got.ExcludeReason)
}

func TestResolver_Exclude_ReasonTooLong(t *testing.T) {
	r, st := newTestResolver(t)

	n := seedNomination(t, st, "Someone")

	err := r.Exclude(context.Background(), n.ID, strings.Repeat("x", model.MaxReasonLen+1), "reviewer")
	require.Error(t, err)
	assert.True(t, model.IsValidation(err))
}
