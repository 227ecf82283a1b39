package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/kolscout/internal/model"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "questions.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
questions:
  q-national-1: national_kol
  q-rising-1: rising_star
  q-digital-1: digital_influencer
`), 0o644))

	m, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, m.Len())

	typ, ok := m.TypeOf("q-national-1")
	require.True(t, ok)
	assert.Equal(t, model.TypeNationalKOL, typ)

	_, ok = m.TypeOf("q-unknown")
	assert.False(t, ok)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "questions.yaml")
	require.NoError(t, os.WriteFile(path, []byte("questions: [not, a, map]"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestFromMap_RejectsUnknownType(t *testing.T) {
	_, err := FromMap(map[string]string{"q1": "celebrity"})
	require.Error(t, err)
	assert.True(t, model.IsValidation(err))
}

func TestFromMap_Empty(t *testing.T) {
	m, err := FromMap(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, m.Len())
}
