package llmservice

import (
	"context"
	"strings"

	"document-qa/internal/config"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// NewChatModel builds a chat model client for the configured endpoint.
func NewChatModel(llmConfig *config.LLMConfig) (llms.Model, error) {
	return openai.New(
		openai.WithBaseURL(llmConfig.BaseURL),
		openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
		openai.WithModel(llmConfig.Model),
	)
}

// GenerateContent runs a single chat completion over the given messages.
func GenerateContent(ctx context.Context, model llms.Model, tools []llms.Tool, messages []llms.MessageContent) (*llms.ContentResponse, error) {
	if len(tools) > 0 {
		return model.GenerateContent(ctx, messages, llms.WithTools(tools))
	}
	return model.GenerateContent(ctx, messages)
}
