package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// LLMConfig describes one model endpoint, either an OpenAI-compatible
// service or a local Ollama server.
type LLMConfig struct {
	BaseURL string `yaml:"base_url"`
	Key     string `yaml:"key"`
	Model   string `yaml:"model"`
}

type RAGConfig struct {
	ChunkSize     int    `yaml:"chunk_size"`
	ChunkOverlap  int    `yaml:"chunk_overlap"`
	TopK          int    `yaml:"top_k"`
	MaxFiles      int    `yaml:"max_files"`
	EncryptionKey string `yaml:"encryption_key"`
}

type DatabaseConfig struct {
	URL     string `yaml:"url"`
	Key     string `yaml:"key"`
	Enabled bool   `yaml:"enabled"`
	Debug   bool   `yaml:"debug"`
}

type Config struct {
	RAG      RAGConfig      `yaml:"rag"`
	EmbedLLM LLMConfig      `yaml:"embed_llm"`
	ChatLLM  LLMConfig      `yaml:"chat_llm"`
	Database DatabaseConfig `yaml:"database"`
}

const (
	defaultChunkSize    = 1000
	defaultChunkOverlap = 200
	defaultTopK         = 4
	defaultMaxFiles     = 3
)

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	mergeWithEnv(&cfg)
	return &cfg, nil
}

// DefaultConfig returns a config usable without a config file.
func DefaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	mergeWithEnv(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.RAG.ChunkSize == 0 {
		cfg.RAG.ChunkSize = defaultChunkSize
	}
	if cfg.RAG.ChunkOverlap == 0 {
		cfg.RAG.ChunkOverlap = defaultChunkOverlap
	}
	if cfg.RAG.TopK == 0 {
		cfg.RAG.TopK = defaultTopK
	}
	if cfg.RAG.MaxFiles == 0 {
		cfg.RAG.MaxFiles = defaultMaxFiles
	}
	if cfg.EmbedLLM.BaseURL == "" {
		cfg.EmbedLLM.BaseURL = "http://localhost:11434"
	}
	if cfg.EmbedLLM.Model == "" {
		cfg.EmbedLLM.Model = "nomic-embed-text"
	}
	if cfg.ChatLLM.BaseURL == "" {
		cfg.ChatLLM.BaseURL = "http://localhost:11434/v1"
	}
	if cfg.ChatLLM.Model == "" {
		cfg.ChatLLM.Model = "llama3.1"
	}
}

func mergeWithEnv(cfg *Config) {
	if key := os.Getenv("CHAT_LLM_KEY"); key != "" {
		cfg.ChatLLM.Key = key
	}
	if key := os.Getenv("EMBED_LLM_KEY"); key != "" {
		cfg.EmbedLLM.Key = key
	}
	if url := os.Getenv("DATABASE_URL"); url != "" {
		cfg.Database.URL = url
	}
}
