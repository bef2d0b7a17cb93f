package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_DefaultsAndOverrides(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("SERVER_PORT", "9090")

	path := writeConfig(t, `
database:
  path: /tmp/invoices.db
workflow:
  two_level_approval_threshold: 50000.50
extraction:
  workers: 4
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "test-key", cfg.Gemini.APIKey)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "/tmp/invoices.db", cfg.Database.Path)
	assert.Equal(t, 4, cfg.Extraction.Workers)
	assert.Equal(t, ProviderGemini, cfg.Extraction.Provider)
	assert.Equal(t, 2*time.Minute, cfg.Extraction.Timeout)
	assert.Equal(t, 10, cfg.Storage.MaxFiles)
	assert.Empty(t, cfg.Database.MigrationsDir)

	threshold, err := cfg.TwoLevelThreshold()
	require.NoError(t, err)
	assert.True(t, threshold.Equal(decimal.RequireFromString("50000.5")))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Database:   DatabaseConfig{Path: "db"},
			Storage:    StorageConfig{UploadDir: "uploads", MaxFiles: 10},
			Workflow:   WorkflowConfig{TwoLevelApprovalThreshold: "100000"},
			Extraction: ExtractionConfig{Provider: ProviderOpenAI, Workers: 1},
			OpenAI:     OpenAIConfig{APIKey: "sk"},
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{"zero threshold", func(c *Config) { c.Workflow.TwoLevelApprovalThreshold = "0" }, "must be positive"},
		{"bad threshold", func(c *Config) { c.Workflow.TwoLevelApprovalThreshold = "lots" }, "two_level_approval_threshold"},
		{"unknown provider", func(c *Config) { c.Extraction.Provider = "tesseract" }, "unknown extraction.provider"},
		{"missing openai key", func(c *Config) { c.OpenAI.APIKey = "" }, "openai.api_key"},
		{"missing gemini key", func(c *Config) { c.Extraction.Provider = ProviderGemini }, "gemini.api_key"},
		{"no workers", func(c *Config) { c.Extraction.Workers = 0 }, "extraction.workers"},
		{"lark without credentials", func(c *Config) { c.Lark.Enabled = true }, "lark.app_id"},
		{"no upload dir", func(c *Config) { c.Storage.UploadDir = "" }, "storage.upload_dir"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
