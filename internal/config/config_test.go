package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.Retrieval.KSearch)
	assert.Equal(t, 10, cfg.Retrieval.KPick)
	assert.Equal(t, 1000, cfg.Retrieval.ScanCap)
	assert.Equal(t, 8000, cfg.Embedding.MaxChars)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	content := `
retrieval:
  k_search: 50
  scan_cap: 250
llm:
  model: gemini-2.5-pro
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "modus.yaml"), []byte(content), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.Retrieval.KSearch)
	assert.Equal(t, 250, cfg.Retrieval.ScanCap)
	assert.Equal(t, "gemini-2.5-pro", cfg.LLM.Model)
	// Untouched sections keep defaults
	assert.Equal(t, "genai", cfg.Embedding.Provider)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MODUS_LLM_API_KEY", "sk-test")
	t.Setenv("MODUS_SCAN_CAP", "77")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, 77, cfg.Retrieval.ScanCap)
}

func TestValidateRejectsNonPositiveScanCap(t *testing.T) {
	cfg := Default()
	cfg.Retrieval.ScanCap = 0
	assert.Error(t, cfg.Validate())
}

func TestLLMTimeoutFallback(t *testing.T) {
	cfg := Default()
	cfg.LLM.Timeout = "bogus"
	assert.Equal(t, "2m0s", cfg.LLMTimeout().String())
}
