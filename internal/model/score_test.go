package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultWeights_SumTo100(t *testing.T) {
	w := DefaultWeights()
	assert.InDelta(t, 100.0, w.Sum(), WeightSumTolerance)
	assert.NoError(t, w.Validate())
}

func TestWeights_Validate(t *testing.T) {
	t.Run("sum off by more than tolerance", func(t *testing.T) {
		w := DefaultWeights()
		w.Survey = 26
		err := w.Validate()
		require.Error(t, err)
		assert.True(t, IsValidation(err))
		assert.Contains(t, err.Error(), "sum to 100")
	})

	t.Run("sum within tolerance accepted", func(t *testing.T) {
		w := DefaultWeights()
		w.Survey += 0.009
		assert.NoError(t, w.Validate())
	})

	t.Run("negative weight rejected", func(t *testing.T) {
		w := DefaultWeights()
		w.Grants = -5
		w.Survey += 10 // keep the sum at 100
		err := w.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "grants")
	})

	t.Run("weight above 100 rejected", func(t *testing.T) {
		w := Weights{Publications: 150, Survey: -50}
		assert.Error(t, w.Validate())
	})

	t.Run("zero weights rejected", func(t *testing.T) {
		assert.Error(t, Weights{}.Validate())
	})

	t.Run("survey only accepted", func(t *testing.T) {
		assert.NoError(t, Weights{Survey: 100}.Validate())
	})
}

func TestValidNominationType(t *testing.T) {
	for _, typ := range AllNominationTypes {
		assert.True(t, ValidNominationType(typ), string(typ))
	}
	assert.False(t, ValidNominationType("celebrity"))
	assert.False(t, ValidNominationType(""))
}
