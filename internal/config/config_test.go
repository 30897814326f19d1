package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/bankmail-ledger/internal/config"
	"github.com/dvloznov/bankmail-ledger/internal/domain"
)

const sampleYAML = `
senders:
  - Alerts@BankMuscat.com
  - "notify@nbo.co.om"
ledger:
  backend: bigquery
  id: ledger_entries
  project: my-project
labels:
  processed: Bank/Done
source:
  backend: gcs
  bucket: inbound-mail
  prefix: alerts/
escalation:
  backend: webhook
  url: https://hooks.example.com/bank
  timeout: 5s
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_DefaultsOnly(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, config.BackendMemory, cfg.Ledger.Backend)
	assert.Equal(t, "BankTransactions/Processed", cfg.Labels.Processed)
	assert.Equal(t, "BankTransactions/Failed", cfg.Labels.Failed)
	assert.Equal(t, "Bank Transaction", cfg.Category)
	assert.Equal(t, 30*time.Second, cfg.Escalation.Timeout)
	assert.Equal(t, "@every 15m", cfg.Schedule)
	assert.Equal(t, config.DedupConfig{MaxFuzzyLength: 10, MaxDistance: 2, AmountTolerance: 0.001}, cfg.Dedup)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, []string{"alerts@bankmuscat.com", "notify@nbo.co.om"}, cfg.Senders)
	assert.Equal(t, config.BackendBigQuery, cfg.Ledger.Backend)
	assert.Equal(t, "ledger_entries", cfg.Ledger.ID)
	assert.Equal(t, "finance", cfg.Ledger.Dataset)
	assert.Equal(t, "Bank/Done", cfg.Labels.Processed)
	assert.Equal(t, "BankTransactions/Failed", cfg.Labels.Failed)
	assert.Equal(t, 5*time.Second, cfg.Escalation.Timeout)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	t.Setenv("BANKLEDGER_LEDGER__ID", "from_env")
	t.Setenv("BANKLEDGER_SENDERS", "a@bank.om, B@Bank.om")
	t.Setenv("BANKLEDGER_LOG__LEVEL", "debug")
	t.Setenv("BANKLEDGER_DEDUP__MAX_DISTANCE", "3")

	cfg, err := config.Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "from_env", cfg.Ledger.ID)
	assert.Equal(t, []string{"a@bank.om", "b@bank.om"}, cfg.Senders)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 3, cfg.Dedup.MaxDistance)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func validConfig() config.Config {
	return config.Config{
		Senders:    []string{"alerts@bank.om"},
		Ledger:     config.LedgerConfig{Backend: config.BackendMemory, ID: "ledger"},
		Labels:     config.LabelConfig{Processed: "P", Failed: "F"},
		Source:     config.SourceConfig{Backend: config.BackendDir, Dir: "inbox"},
		Escalation: config.EscalationConfig{Backend: config.BackendNone},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"missing ledger id", func(c *config.Config) { c.Ledger.ID = " " }},
		{"no senders", func(c *config.Config) { c.Senders = nil }},
		{"unknown ledger backend", func(c *config.Config) { c.Ledger.Backend = "sheets" }},
		{"bigquery without project", func(c *config.Config) { c.Ledger.Backend = config.BackendBigQuery }},
		{"notion without token", func(c *config.Config) { c.Ledger.Backend = config.BackendNotion }},
		{"same labels", func(c *config.Config) { c.Labels.Failed = "P" }},
		{"empty label", func(c *config.Config) { c.Labels.Processed = "" }},
		{"gcs without bucket", func(c *config.Config) { c.Source.Backend = config.BackendGCS }},
		{"webhook without url", func(c *config.Config) { c.Escalation.Backend = config.BackendWebhook }},
		{"unknown escalation", func(c *config.Config) { c.Escalation.Backend = "zapier" }},
		{"negative dedup distance", func(c *config.Config) { c.Dedup.MaxDistance = -1 }},
	}

	require.NoError(t, validConfig().Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrConfiguration), "want ErrConfiguration, got %v", err)
		})
	}
}

func TestIsRecognizedSender(t *testing.T) {
	cfg := validConfig()

	assert.True(t, cfg.IsRecognizedSender("alerts@bank.om"))
	assert.True(t, cfg.IsRecognizedSender("Bank Alerts <ALERTS@bank.om>"))
	assert.True(t, cfg.IsRecognizedSender("  Alerts@Bank.om "))
	assert.False(t, cfg.IsRecognizedSender("promo@bank.om"))
	assert.False(t, cfg.IsRecognizedSender(""))
}
