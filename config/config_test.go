package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "sk-env", cfg.LLM.APIKey)
	assert.Equal(t, 3, cfg.Chain.Steps)
	assert.Equal(t, 75, cfg.Chain.MinTokens)
	assert.Equal(t, 2, cfg.Chain.InitialRetries)
	assert.Equal(t, 3, cfg.Chain.RewriteRetries)
	assert.Equal(t, 60*time.Second, cfg.Chain.TransportBackoff)
	assert.True(t, cfg.TrackEntities())
	assert.Equal(t, 30, cfg.Dataset.Offset)
	assert.Equal(t, 5, cfg.Dataset.Limit)
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := writeFile(t, "config.yaml", `
llm:
  provider: ollama
  model: llama3
  base_url: http://localhost:11434
  temperature: 0.2
chain:
  steps: 5
  retry_backoff: 500ms
  track_entities: false
output:
  jsonl: out.jsonl
log_level: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ollama", cfg.LLM.Provider)
	require.NotNil(t, cfg.LLM.Temperature)
	assert.InDelta(t, 0.2, *cfg.LLM.Temperature, 1e-9)
	assert.Equal(t, 5, cfg.Chain.Steps)
	assert.Equal(t, 500*time.Millisecond, cfg.Chain.RetryBackoff)
	assert.False(t, cfg.TrackEntities())
	assert.Equal(t, 75, cfg.Chain.MinTokens)
	assert.Equal(t, "out.jsonl", cfg.Output.JSONL)
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "config.json", `{"llm": {"provider": "mock"}, "chain": {"steps": 2}}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "mock", cfg.LLM.Provider)
	assert.Equal(t, 2, cfg.Chain.Steps)
}

func TestLoadExplicitKeyWins(t *testing.T) {
	t.Setenv("MY_KEY", "from-env")
	path := writeFile(t, "c.yaml", "llm:\n  provider: openai\n  model: gpt-4o\n  api_key_env: MY_KEY\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.LLM.APIKey)

	path = writeFile(t, "d.yaml", "llm:\n  provider: openai\n  model: gpt-4o\n  api_key: inline\n  api_key_env: MY_KEY\n")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "inline", cfg.LLM.APIKey)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown provider", "llm:\n  provider: bard\n  model: x\n"},
		{"zero steps", "llm:\n  provider: mock\nchain:\n  steps: 0\n"},
		{"negative retries", "llm:\n  provider: mock\nchain:\n  rewrite_retries: -1\n"},
		{"deepseek without base url", "llm:\n  provider: deepseek\n  model: deepseek-chat\n"},
		{"bad log level", "llm:\n  provider: mock\nlog_level: loud\n"},
		{"malformed yaml", "llm: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "c.yaml", tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestExampleConfigLoads(t *testing.T) {
	cfg, err := Load("../config.example.yaml")
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, 60*time.Second, cfg.Chain.TransportBackoff)
	assert.True(t, cfg.TrackEntities())
}
