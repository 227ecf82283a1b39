package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/kolscout/internal/model"
)

func TestRank_OrdersByScoreDescending(t *testing.T) {
	a := hcp("John", "Smith")                 // exact, 100
	b := hcp("Jane", "Smith")                 // last-name, 75
	c := hcp("Jonathan", "Smythe", "John Smith") // alias, 95

	ranked := Rank([]*model.HCP{a, b, c}, "John Smith")
	require.Len(t, ranked, 3)

	assert.Same(t, a, ranked[0].HCP)
	assert.Equal(t, 100, ranked[0].Score)
	assert.Same(t, c, ranked[1].HCP)
	assert.Equal(t, 95, ranked[1].Score)
	assert.Same(t, b, ranked[2].HCP)
	assert.Equal(t, 75, ranked[2].Score)
}

func TestRank_TiesPreserveInputOrder(t *testing.T) {
	first := hcp("Jane", "Smith")
	second := hcp("Joan", "Smith")

	ranked := Rank([]*model.HCP{first, second}, "Alex Smith")
	require.Len(t, ranked, 2)
	assert.Equal(t, ranked[0].Score, ranked[1].Score)
	assert.Same(t, first, ranked[0].HCP)
	assert.Same(t, second, ranked[1].HCP)

	// Same data, same order on every run.
	again := Rank([]*model.HCP{first, second}, "Alex Smith")
	assert.Same(t, first, again[0].HCP)
	assert.Same(t, second, again[1].HCP)
}

func TestTop(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		top, runnerUp := Top(nil, "John Smith")
		assert.Nil(t, top)
		assert.Zero(t, runnerUp)
	})

	t.Run("single candidate has zero runner-up", func(t *testing.T) {
		top, runnerUp := Top([]*model.HCP{hcp("John", "Smith")}, "John Smith")
		require.NotNil(t, top)
		assert.Equal(t, 100, top.Score)
		assert.Zero(t, runnerUp)
	})

	t.Run("reports runner-up score", func(t *testing.T) {
		hcps := []*model.HCP{hcp("Jane", "Smith"), hcp("John", "Smith")}
		top, runnerUp := Top(hcps, "John Smith")
		require.NotNil(t, top)
		assert.Equal(t, 100, top.Score)
		assert.Equal(t, 75, runnerUp)
	})
}
