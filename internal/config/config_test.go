package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "kolscout.db", cfg.Store.SQLitePath)
	assert.Equal(t, 90, cfg.Matcher.AutoAcceptThreshold)
	assert.Equal(t, 0, cfg.Matcher.AutoAcceptMargin)
	assert.Equal(t, 10, cfg.Matcher.SuggestionLimit)
	assert.InDelta(t, 10.0, cfg.Scoring.PointsPerNomination, 0.001)
	assert.Equal(t, 4, cfg.Scoring.MaxConcurrentCampaigns)
	assert.Equal(t, "questions.yaml", cfg.Registry.QuestionMapPath)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/kol
matcher:
  auto_accept_threshold: 95
log:
  level: debug
  format: console
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/kol", cfg.Store.DatabaseURL)
	assert.Equal(t, 95, cfg.Matcher.AutoAcceptThreshold)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Defaults still apply for unset values
	assert.Equal(t, 10, cfg.Matcher.SuggestionLimit)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("KOLSCOUT_STORE_DRIVER", "postgres")
	t.Setenv("KOLSCOUT_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("KOLSCOUT_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.SQLitePath = "kolscout.db"
	cfg.Matcher.AutoAcceptThreshold = 90
	cfg.Scoring.PointsPerNomination = 10
	cfg.Scoring.MaxConcurrentCampaigns = 4
	cfg.Server.Port = 8080
	return cfg
}

func TestValidateStore_Sqlite(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("store"))

	cfg.Store.SQLitePath = ""
	err := cfg.Validate("store")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "sqlite_path is required")
}

func TestValidateStore_Postgres(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "postgres"

	err := cfg.Validate("store")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "database_url is required")

	cfg.Store.DatabaseURL = "postgres://localhost/kol"
	assert.NoError(t, cfg.Validate("store"))
}

func TestValidateStore_UnknownDriver(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "oracle"

	err := cfg.Validate("store")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "must be sqlite or postgres")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidateScoringBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Scoring.MaxConcurrentCampaigns = 0
	err := cfg.Validate("store")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "max_concurrent_campaigns must be between 1 and 32")

	cfg.Scoring.MaxConcurrentCampaigns = 33
	err = cfg.Validate("store")
	assert.Error(t, err)

	cfg.Scoring.MaxConcurrentCampaigns = 32
	assert.NoError(t, cfg.Validate("store"))

	cfg.Scoring.PointsPerNomination = 0
	err = cfg.Validate("store")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "points_per_nomination must be > 0")
}

func TestValidateMatcherBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Matcher.AutoAcceptThreshold = 101
	err := cfg.Validate("store")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "auto_accept_threshold")

	cfg.Matcher.AutoAcceptThreshold = 90
	cfg.Matcher.AutoAcceptMargin = -1
	err = cfg.Validate("store")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "auto_accept_margin")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
