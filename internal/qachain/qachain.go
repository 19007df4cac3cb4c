package qachain

import (
	"context"
	"fmt"
	"strings"

	"document-qa/internal/config"
	"document-qa/internal/embedding"
	"document-qa/internal/knowledge"
	"document-qa/internal/llmservice"
	"document-qa/internal/models"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
)

// Runner retrieves the chunks most relevant to a question and runs the
// question-answering chain over them.
type Runner struct {
	cfg      *config.Config
	embedder embedding.Embedder
	chat     llms.Model
}

func NewRunner(cfg *config.Config, embedder embedding.Embedder) *Runner {
	return &Runner{cfg: cfg, embedder: embedder}
}

// NewRunnerWithModel injects a pre-built chat model, bypassing Setup's
// client construction.
func NewRunnerWithModel(cfg *config.Config, embedder embedding.Embedder, chat llms.Model) *Runner {
	return &Runner{cfg: cfg, embedder: embedder, chat: chat}
}

// Setup initializes the chat model client. Called once at construction
// of the coordinator.
func (r *Runner) Setup() error {
	if r.chat != nil {
		return nil
	}
	chat, err := llmservice.NewChatModel(&r.cfg.ChatLLM)
	if err != nil {
		return fmt.Errorf("failed to initialize chat model: %w", err)
	}
	r.chat = chat
	log.Info().Str("model", r.cfg.ChatLLM.Model).Msg("QA chain runner ready")
	return nil
}

// RelevantChunks embeds the question and returns the top-k matching
// chunks from the knowledge base. An empty result with a nil error means
// nothing matched.
func (r *Runner) RelevantChunks(ctx context.Context, base *knowledge.Base, question string) ([]string, error) {
	queryEmbedding, err := r.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}

	results, err := base.Search(ctx, queryEmbedding, r.cfg.RAG.TopK)
	if err != nil {
		return nil, err
	}

	docs := make([]string, 0, len(results))
	for _, res := range results {
		docs = append(docs, res.Content)
	}
	return docs, nil
}

// RunChain prompts the chat model with the retrieved chunks as context
// and returns the answer as-is.
func (r *Runner) RunChain(ctx context.Context, docs []string, question string) (string, error) {
	var contextText strings.Builder
	for _, doc := range docs {
		contextText.WriteString(doc)
		contextText.WriteString("\n\n")
	}

	prompt := fmt.Sprintf(models.QAPromptTemplate, contextText.String(), question)
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, "You are a helpful assistant. Use the provided context to answer the question."),
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}

	res, err := llmservice.GenerateContent(ctx, r.chat, nil, messages)
	if err != nil {
		return "", err
	}
	if len(res.Choices) == 0 {
		return "", fmt.Errorf("chat model returned no choices")
	}
	return res.Choices[0].Content, nil
}
