package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/geoinfer/metering/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFromFileSubstitutesEnvVars(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "hunter2")
	t.Setenv("TEST_PORT", "9090")

	path := writeConfigFile(t, `
server:
  port: "${TEST_PORT}"
  environment: "${TEST_ENVIRONMENT:-development}"
database:
  type: sqlite
  file_path: ":memory:"
  password: "${TEST_DB_PASSWORD}"
billing:
  trial_credit_amount: 15
  trial_expiry_days: 15
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	// Unset variables fall back to the default.
	assert.Equal(t, "development", cfg.Server.Environment)
	assert.Equal(t, "hunter2", cfg.Database.Password)
	assert.Equal(t, models.SQLite, cfg.Database.Type)
	assert.Equal(t, int64(15), cfg.Billing.TrialCreditAmount)
}

func TestLoadFromFileUnsetVarWithoutDefaultBecomesEmpty(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: "8080"
database:
  type: sqlite
  file_path: ":memory:"
  password: "${DEFINITELY_NOT_SET_VAR}"
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.Database.Password)
}

func TestLoadFromFileRejectsBadPaths(t *testing.T) {
	_, err := LoadFromFile("../../../etc/passwd.yaml")
	require.Error(t, err)

	_, err = LoadFromFile(filepath.Join(t.TempDir(), "config.json"))
	require.Error(t, err)

	_, err = LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := &Config{
		Database: models.DatabaseConfig{Type: models.PostgreSQL},
	}
	require.NoError(t, valid.Validate())

	missingType := &Config{}
	require.Error(t, missingType.Validate())

	clickhouseLedger := &Config{
		Database: models.DatabaseConfig{Type: models.ClickHouse},
	}
	require.Error(t, clickhouseLedger.Validate())

	cacheWithoutURL := &Config{
		Database: models.DatabaseConfig{Type: models.SQLite},
		Cache:    models.CacheConfig{Enabled: true},
	}
	require.Error(t, cacheWithoutURL.Validate())

	negativeTrial := &Config{
		Database: models.DatabaseConfig{Type: models.SQLite},
		Billing:  models.BillingConfig{TrialExpiryDays: -1},
	}
	require.Error(t, negativeTrial.Validate())
}

func TestGetNormalizedLogLevel(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, "info", cfg.GetNormalizedLogLevel())

	cfg.Server.LogLevel = " DEBUG "
	assert.Equal(t, "debug", cfg.GetNormalizedLogLevel())
}

func TestIsProduction(t *testing.T) {
	cfg := &Config{}
	assert.False(t, cfg.IsProduction())

	cfg.Server.Environment = "Production"
	assert.True(t, cfg.IsProduction())
}
