package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chTempDir(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
}

func TestLoadDefaults(t *testing.T) {
	chTempDir(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "leadflow.db", cfg.Store.SQLitePath)
	assert.Equal(t, 587, cfg.Mail.SMTPPort)
	assert.Equal(t, "INBOX", cfg.Mail.IMAPMailbox)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.Model)
	assert.Equal(t, 1024, cfg.Anthropic.MaxTokens)
	assert.Equal(t, int64(100_000_000), cfg.Scoring.PremiumBudgetThreshold)
	assert.Equal(t, 60, cfg.Webhook.RatePerMinute)
	assert.Equal(t, 10, cfg.Webhook.RateBurst)
	assert.Equal(t, 24, cfg.Webhook.IdempotencyTTLHours)
	assert.Equal(t, 300, cfg.Poll.IntervalSecs)
	assert.False(t, cfg.Monitoring.Enabled)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	chTempDir(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/leadflow
log:
  level: debug
  format: console
server:
  port: 9090
scoring:
  premium_budget_threshold: 250000000
`
	dir, _ := os.Getwd()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, int64(250_000_000), cfg.Scoring.PremiumBudgetThreshold)
	// Defaults still apply for unset values
	assert.Equal(t, 300, cfg.Poll.IntervalSecs)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	chTempDir(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	dir, _ := os.Getwd()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("LEADFLOW_STORE_DRIVER", "postgres")
	t.Setenv("LEADFLOW_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func validServeConfig() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.SQLitePath = "leadflow.db"
	cfg.Mail.SMTPHost = "smtp.example.com"
	cfg.Mail.IMAPAddr = "imap.example.com:993"
	cfg.Mail.FromAddress = "agent@example.com"
	cfg.Anthropic.Key = "sk-ant-key"
	cfg.Scoring.PremiumBudgetThreshold = 100_000_000
	cfg.Server.Port = 8080
	return cfg
}

func TestValidateServe(t *testing.T) {
	assert.NoError(t, validServeConfig().Validate("serve"))
}

func TestValidateServeMissingFields(t *testing.T) {
	cfg := validServeConfig()
	cfg.Mail.SMTPHost = ""
	cfg.Anthropic.Key = ""

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mail.smtp_host is required")
	assert.Contains(t, err.Error(), "anthropic.key is required")
}

func TestValidatePostgresNeedsURL(t *testing.T) {
	cfg := validServeConfig()
	cfg.Store.Driver = "postgres"
	cfg.Store.DatabaseURL = ""

	err := cfg.Validate("migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url")
}

func TestValidateUnknownMode(t *testing.T) {
	err := validServeConfig().Validate("unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
