package config

import (
	"fmt"
	"net/url"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	if c.RAG.ChunkSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "rag.chunk_size",
			Message: "chunk_size must be positive",
		})
	}

	if c.RAG.ChunkOverlap < 0 || c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		errors = append(errors, ValidationError{
			Field:   "rag.chunk_overlap",
			Message: "chunk_overlap must be non-negative and less than chunk_size",
		})
	}

	if c.RAG.TopK < 1 {
		errors = append(errors, ValidationError{
			Field:   "rag.top_k",
			Message: "top_k must be positive",
		})
	}

	if c.RAG.MaxFiles < 1 {
		errors = append(errors, ValidationError{
			Field:   "rag.max_files",
			Message: "max_files must be positive",
		})
	}

	// chromem encrypts exports with AES-256.
	if key := c.RAG.EncryptionKey; key != "" && len(key) != 32 {
		errors = append(errors, ValidationError{
			Field:   "rag.encryption_key",
			Message: "encryption_key must be empty or exactly 32 characters",
		})
	}

	if c.EmbedLLM.BaseURL == "" {
		errors = append(errors, ValidationError{
			Field:   "embed_llm.base_url",
			Message: "embedding base URL is required",
		})
	} else if _, err := url.Parse(c.EmbedLLM.BaseURL); err != nil {
		errors = append(errors, ValidationError{
			Field:   "embed_llm.base_url",
			Message: "invalid embedding base URL",
		})
	}

	if c.ChatLLM.BaseURL == "" {
		errors = append(errors, ValidationError{
			Field:   "chat_llm.base_url",
			Message: "chat base URL is required",
		})
	} else if _, err := url.Parse(c.ChatLLM.BaseURL); err != nil {
		errors = append(errors, ValidationError{
			Field:   "chat_llm.base_url",
			Message: "invalid chat base URL",
		})
	}

	if c.Database.Enabled && c.Database.URL == "" {
		errors = append(errors, ValidationError{
			Field:   "database.url",
			Message: "database URL is required when the archive is enabled",
		})
	}

	return errors
}
