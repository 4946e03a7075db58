package configs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"GoInlineAI/app/backends"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultPath)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func clearEnv(t *testing.T) {
	for _, k := range []string{"OPENAI_API_KEY", "OPENAI_ORG_ID", "HUGGINGFACE_API_TOKEN", "GEMINI_API_KEY", "LOCAL_LLM_URL", "DB_PATH"} {
		t.Setenv(k, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-env")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)

	assert.Equal(t, DefaultBackend, cfg.AIBackend)
	assert.Equal(t, DefaultModel, cfg.AIModel)
	assert.Equal(t, "sk-env", cfg.APIKey)
	assert.Equal(t, DefaultConcurrency, cfg.Concurrency)
	assert.Equal(t, DefaultDebounce, cfg.Debounce)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.False(t, cfg.InsertNewlines)
}

func TestLoadConfigJSON(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `{
  "aiBackend": "huggingface",
  "aiModel": "bigcode/starcoder",
  "apiKey": "hf-key",
  "ignore": ["*.md", "/build/"],
  "concurrency": 2,
  "debounce": "250ms",
  "timeout": "30s",
  "retries": 3,
  "insertNewlines": true
}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "huggingface", cfg.AIBackend)
	assert.Equal(t, []string{"*.md", "/build/"}, cfg.Ignore)
	assert.Equal(t, 2, cfg.Concurrency)
	assert.Equal(t, 250*time.Millisecond, cfg.Debounce)
	assert.Equal(t, 3, cfg.Retries)
	assert.True(t, cfg.InsertNewlines)

	d := cfg.Descriptor()
	assert.Equal(t, backends.KindHuggingFace, d.Kind)
	assert.Equal(t, "bigcode/starcoder", d.Model)
	assert.Equal(t, "hf-key", d.APIKey)
	assert.Equal(t, 30*time.Second, d.Timeout)
}

func TestLoadConfigExpandsEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("MY_LLM", "http://127.0.0.1:9000")
	path := writeConfig(t, `{"aiBackend": "local", "endpoint": "${MY_LLM}"}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9000", cfg.Endpoint)
	assert.Empty(t, cfg.AIModel)
}

func TestLoadConfigEnvFallbacks(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOCAL_LLM_URL", "http://localhost:7000")
	t.Setenv("DB_PATH", "journal.db")

	cfg, err := LoadConfig(writeConfig(t, `{"aiBackend": "local"}`))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:7000", cfg.Endpoint)
	assert.Equal(t, "journal.db", cfg.Journal)
}

func TestLoadConfigInvalid(t *testing.T) {
	clearEnv(t)
	cases := map[string]string{
		"unknown_backend": `{"aiBackend": "llama"}`,
		"bad_concurrency": `{"concurrency": 1000}`,
		"bad_endpoint":    `{"endpoint": "not a url"}`,
		"bad_client":      `{"clients": [{"enabled": true}]}`,
		"malformed":       `{"aiBackend": `,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigClients(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
aiBackend: gemini
apiKey: g-key
clients:
  - type: discord
    enabled: true
    config:
      token: abc
      channel_id: "42"
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Len(t, cfg.Clients, 1)
	assert.Equal(t, "discord", cfg.Clients[0].Type)
	assert.Equal(t, "42", cfg.Clients[0].Config["channel_id"])
}
