package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configData := `
rag:
  chunk_size: 500
  chunk_overlap: 100
  top_k: 6
  max_files: 3

embed_llm:
  base_url: "http://localhost:11434"
  model: "nomic-embed-text"

chat_llm:
  base_url: "http://localhost:11434/v1"
  model: "llama3.1"

database:
  enabled: true
  url: "postgres://localhost:5432/docs"
`
	err := os.WriteFile(configPath, []byte(configData), 0644)
	require.NoError(t, err)

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.RAG.ChunkSize)
	assert.Equal(t, 100, cfg.RAG.ChunkOverlap)
	assert.Equal(t, 6, cfg.RAG.TopK)
	assert.Equal(t, "nomic-embed-text", cfg.EmbedLLM.Model)
	assert.Equal(t, "llama3.1", cfg.ChatLLM.Model)
	assert.True(t, cfg.Database.Enabled)
	assert.Equal(t, "postgres://localhost:5432/docs", cfg.Database.URL)
}

func TestLoadConfig_AppliesDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("rag: {}\n"), 0644))

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, defaultChunkSize, cfg.RAG.ChunkSize)
	assert.Equal(t, defaultChunkOverlap, cfg.RAG.ChunkOverlap)
	assert.Equal(t, defaultTopK, cfg.RAG.TopK)
	assert.Equal(t, defaultMaxFiles, cfg.RAG.MaxFiles)
	assert.NotEmpty(t, cfg.EmbedLLM.BaseURL)
	assert.NotEmpty(t, cfg.ChatLLM.Model)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*Config)
		wantFields []string
	}{
		{
			name:       "valid config",
			mutate:     func(c *Config) {},
			wantFields: nil,
		},
		{
			name: "zero chunk size",
			mutate: func(c *Config) {
				c.RAG.ChunkSize = 0
				c.RAG.ChunkOverlap = 0
			},
			wantFields: []string{"rag.chunk_size"},
		},
		{
			name: "overlap not below chunk size",
			mutate: func(c *Config) {
				c.RAG.ChunkSize = 100
				c.RAG.ChunkOverlap = 100
			},
			wantFields: []string{"rag.chunk_overlap"},
		},
		{
			name:       "short encryption key",
			mutate:     func(c *Config) { c.RAG.EncryptionKey = "too-short" },
			wantFields: []string{"rag.encryption_key"},
		},
		{
			name:       "missing embed base url",
			mutate:     func(c *Config) { c.EmbedLLM.BaseURL = "" },
			wantFields: []string{"embed_llm.base_url"},
		},
		{
			name: "archive enabled without url",
			mutate: func(c *Config) {
				c.Database.Enabled = true
				c.Database.URL = ""
			},
			wantFields: []string{"database.url"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			errs := cfg.Validate()

			var fields []string
			for _, e := range errs {
				fields = append(fields, e.Field)
			}
			assert.Equal(t, tt.wantFields, fields)
		})
	}
}

func TestMergeWithEnv(t *testing.T) {
	t.Setenv("CHAT_LLM_KEY", "secret-chat")
	t.Setenv("DATABASE_URL", "postgres://env:5432/docs")

	cfg := DefaultConfig()

	assert.Equal(t, "secret-chat", cfg.ChatLLM.Key)
	assert.Equal(t, "postgres://env:5432/docs", cfg.Database.URL)
}
