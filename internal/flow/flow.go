package flow

import (
	"context"
	"fmt"
	"strings"

	"document-qa/internal/config"
	"document-qa/internal/knowledge"
	"document-qa/internal/models"
	"document-qa/internal/parser"

	"github.com/rs/zerolog/log"
)

// FileHandlerFactory resolves a text-extraction handler from a file's
// declared type.
type FileHandlerFactory interface {
	FileHandler(fileType string) (parser.FileHandler, error)
}

// TextProcessor splits raw text into chunks and builds a knowledge base
// from them.
type TextProcessor interface {
	SplitText(text string) []string
	CreateEmbeddings(ctx context.Context, chunks []string) (*knowledge.Base, error)
}

// ChainRunner retrieves relevant chunks and runs the QA chain.
type ChainRunner interface {
	Setup() error
	RelevantChunks(ctx context.Context, base *knowledge.Base, question string) ([]string, error)
	RunChain(ctx context.Context, docs []string, question string) (string, error)
}

// User-facing messages for every terminal state of the pipeline.
const (
	msgNoInput       = "Please upload your files and enter a question to get started."
	msgNoFiles       = "Please upload at least one file to get started."
	msgNoQuestion    = "Please enter a question about your files."
	msgNoText        = "No text could be extracted from the provided files. Please try again with different files."
	msgNoChunks      = "Couldn't split the text into chunks. Please try again with different text."
	msgNoEmbeddings  = "Couldn't create embeddings from the text. Please try again."
	msgNoRelevant    = "Couldn't find any relevant chunks for your question. Please try asking a different question."
	msgChainFailed   = "Something went wrong while answering your question. Please try again."
	msgExtractFormat = "No text could be extracted from %s. Please ensure the file is not encrypted or corrupted."
)

// Coordinator sequences file reading, chunking, embedding, retrieval and
// the QA chain into a single linear pipeline. Every anticipated failure
// is converted into a user-facing message; nothing panics across Run.
type Coordinator struct {
	factory   FileHandlerFactory
	processor TextProcessor
	runner    ChainRunner
	maxFiles  int
}

// NewCoordinator wires the collaborators together and performs the chain
// runner's one-time setup.
func NewCoordinator(cfg *config.Config, factory FileHandlerFactory, processor TextProcessor, runner ChainRunner) (*Coordinator, error) {
	if err := runner.Setup(); err != nil {
		return nil, err
	}

	maxFiles := cfg.RAG.MaxFiles
	if maxFiles <= 0 {
		maxFiles = 3
	}
	log.Info().Int("max_files", maxFiles).Msg("Flow coordinator initialized")

	return &Coordinator{
		factory:   factory,
		processor: processor,
		runner:    runner,
		maxFiles:  maxFiles,
	}, nil
}

// Run processes the uploaded files and the user's question and returns
// either the chain's answer or a message describing why the pipeline
// stopped. Each invocation builds fresh combined text and a fresh
// knowledge base, so concurrent calls do not share pipeline state.
func (c *Coordinator) Run(ctx context.Context, files []models.UploadedFile, question string) string {
	question = strings.TrimSpace(question)

	if len(files) > c.maxFiles {
		msg := fmt.Sprintf("Please upload a maximum of %d files", c.maxFiles)
		log.Warn().Int("files", len(files)).Msg(msg)
		return msg
	}

	// every combination of missing inputs gets a defined answer
	switch {
	case len(files) == 0 && question == "":
		log.Warn().Msg("No files and no question provided")
		return msgNoInput
	case len(files) == 0:
		log.Warn().Msg("No files provided")
		return msgNoFiles
	case question == "":
		log.Warn().Msg("No question provided")
		return msgNoQuestion
	}

	var combined strings.Builder
	for _, file := range files {
		if len(file.Data) == 0 && file.Name == "" {
			continue
		}
		handler, err := c.factory.FileHandler(file.Type)
		if err != nil {
			log.Error().Err(err).Str("file", file.Name).Str("type", file.Type).Msg("No handler for file type")
			return fmt.Sprintf(msgExtractFormat, file.Name)
		}
		text, err := handler.ReadFile(file)
		if err != nil {
			log.Error().Err(err).Str("file", file.Name).Msg("Failed to read file")
			return fmt.Sprintf(msgExtractFormat, file.Name)
		}
		if text == "" {
			log.Error().Str("file", file.Name).Msg("No text could be extracted")
			return fmt.Sprintf(msgExtractFormat, file.Name)
		}
		combined.WriteString(text)
		combined.WriteString("\n")
	}

	combinedText := strings.TrimSpace(combined.String())
	if combinedText == "" {
		log.Warn().Msg("No text extracted from any file")
		return msgNoText
	}

	chunks := c.processor.SplitText(combinedText)
	if len(chunks) == 0 {
		log.Warn().Msg("Couldn't split the text into chunks")
		return msgNoChunks
	}

	base, err := c.processor.CreateEmbeddings(ctx, chunks)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create embeddings")
		return msgNoEmbeddings
	}
	if base == nil || base.Len() == 0 {
		log.Warn().Msg("Couldn't create embeddings from the text")
		return msgNoEmbeddings
	}

	docs, err := c.runner.RelevantChunks(ctx, base, question)
	if err != nil {
		log.Error().Err(err).Msg("Failed to retrieve relevant chunks")
		return msgNoRelevant
	}
	if len(docs) == 0 {
		log.Warn().Msg("No relevant chunks found for the question")
		return msgNoRelevant
	}

	answer, err := c.runner.RunChain(ctx, docs, question)
	if err != nil {
		log.Error().Err(err).Msg("QA chain failed")
		return msgChainFailed
	}
	return answer
}
