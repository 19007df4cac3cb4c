package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"document-qa/internal/config"
	"document-qa/internal/helper"
	"document-qa/internal/knowledge"
	"document-qa/internal/db"
	"document-qa/internal/embedding"
	"document-qa/internal/flow"
	"document-qa/internal/models"
	"document-qa/internal/parser"
	"document-qa/internal/processor"
	"document-qa/internal/qachain"
)

const (
	configFilePath = "./configs/config.yaml"
	kbPath         = "./kb"
	kbCollection   = "knowledge_base"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	configPath := flag.String("config", configFilePath, "Path to the config file")
	query := flag.String("query", "", "Question to ask about the files")
	archive := flag.Bool("archive", false, "Persist the files' chunk embeddings to the archive database")
	export := flag.Bool("export", false, "Build a persistent knowledge base from the files and export it encrypted")
	kb := flag.Bool("kb", false, "Answer the question from the persistent knowledge base")
	reset := flag.Bool("reset", false, "Drop the archive table and exit")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	cfg := loadConfig(*configPath)
	filePaths := flag.Args()

	ctx := context.Background()

	switch {
	case *reset:
		resetArchive(ctx, cfg)
	case *archive:
		archiveFiles(ctx, cfg, filePaths)
	case *export:
		exportKnowledgeBase(ctx, cfg, filePaths)
	case *kb:
		askKnowledgeBase(ctx, cfg, *query)
	case len(filePaths) == 0 && *query != "" && cfg.Database.Enabled:
		searchArchive(ctx, cfg, *query)
	default:
		askFiles(ctx, cfg, filePaths, *query)
	}
}

func loadConfig(path string) *config.Config {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn().Str("path", path).Msg("Config file not found, using defaults")
			cfg = config.DefaultConfig()
		} else {
			log.Fatal().Err(err).Msg("Error loading config")
		}
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			log.Error().Str("field", e.Field).Msg(e.Message)
		}
		log.Fatal().Msg("Invalid configuration")
	}
	log.Debug().Interface("config", cfg).Msg("Loaded config")
	return cfg
}

// askFiles runs the one-shot pipeline: read files, chunk, embed,
// retrieve and answer.
func askFiles(ctx context.Context, cfg *config.Config, filePaths []string, query string) {
	files, err := loadFiles(filePaths)
	if err != nil {
		log.Fatal().Err(err).Msg("Error reading files")
	}

	embedder, err := embedding.NewOllamaEmbedder(&cfg.EmbedLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}

	coordinator, err := flow.NewCoordinator(
		cfg,
		parser.NewFactory(),
		processor.NewProcessor(&cfg.RAG, embedder),
		qachain.NewRunner(cfg, embedder),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing flow coordinator")
	}

	answer := coordinator.Run(ctx, files, query)
	fmt.Printf("%s\n", answer)
}

// archiveFiles extracts, chunks and embeds the files and persists the
// chunk embeddings to the archive database.
func archiveFiles(ctx context.Context, cfg *config.Config, filePaths []string) {
	if len(filePaths) == 0 {
		log.Fatal().Msg("Please provide at least one file to archive")
	}

	dbClient, err := db.ConnectDB(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Error connecting to database")
	}
	dbInstance := db.NewDB(dbClient, cfg.Database.Debug)
	defer dbInstance.Close()

	if err := db.InitDB(ctx, dbInstance); err != nil {
		log.Fatal().Err(err).Msg("Error initializing database")
	}

	embedder, err := embedding.NewOllamaEmbedder(&cfg.EmbedLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}

	factory := parser.NewFactory()
	proc := processor.NewProcessor(&cfg.RAG, embedder)

	for _, path := range filePaths {
		file, err := loadFile(path)
		if err != nil {
			log.Fatal().Err(err).Str("file", path).Msg("Error reading file")
		}
		handler, err := factory.FileHandler(file.Type)
		if err != nil {
			log.Fatal().Err(err).Str("file", file.Name).Msg("Unsupported file type")
		}
		text, err := handler.ReadFile(file)
		if err != nil || text == "" {
			log.Fatal().Err(err).Str("file", file.Name).Msg("No text could be extracted")
		}

		var chunks []models.Chunk
		for i, content := range proc.SplitText(text) {
			chunks = append(chunks, models.Chunk{Content: content, ChunkID: i + 1})
		}

		chunkEmbeddings, err := embedding.GenerateChunkEmbeddings(ctx, embedder, file.Name, chunks)
		if err != nil {
			log.Fatal().Err(err).Msg("Error generating embeddings")
		}

		if err := db.StoreDocuments(ctx, dbInstance, chunkEmbeddings); err != nil {
			log.Fatal().Err(err).Msg("Error storing documents")
		}
		log.Info().Str("file", file.Name).Int("chunks", len(chunkEmbeddings)).Msg("Archived file")
	}
}

// exportKnowledgeBase extracts, chunks and embeds the files into a
// persistent knowledge base and exports it to an encrypted file.
func exportKnowledgeBase(ctx context.Context, cfg *config.Config, filePaths []string) {
	if len(filePaths) == 0 {
		log.Fatal().Msg("Please provide at least one file to export")
	}
	if cfg.RAG.EncryptionKey == "" {
		log.Fatal().Msg("rag.encryption_key is required to export the knowledge base")
	}

	embedder, err := embedding.NewOllamaEmbedder(&cfg.EmbedLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}

	factory := parser.NewFactory()
	proc := processor.NewProcessor(&cfg.RAG, embedder)

	base, err := knowledge.NewPersistentBase(kbPath, kbCollection, cfg.RAG.EncryptionKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Error creating knowledge base")
	}

	for _, path := range filePaths {
		file, err := loadFile(path)
		if err != nil {
			log.Fatal().Err(err).Str("file", path).Msg("Error reading file")
		}
		handler, err := factory.FileHandler(file.Type)
		if err != nil {
			log.Fatal().Err(err).Str("file", file.Name).Msg("Unsupported file type")
		}
		text, err := handler.ReadFile(file)
		if err != nil || text == "" {
			log.Fatal().Err(err).Str("file", file.Name).Msg("No text could be extracted")
		}

		var docs []chromem.Document
		for i, content := range proc.SplitText(text) {
			id, err := helper.GenerateUUID()
			if err != nil {
				log.Fatal().Err(err).Msg("Error generating document ID")
			}
			vector, err := embedder.EmbedQuery(ctx, content)
			if err != nil {
				log.Fatal().Err(err).Msg("Error generating embedding")
			}
			docs = append(docs, chromem.Document{
				ID:      id,
				Content: content,
				Metadata: map[string]string{
					"source": file.Name,
					"chunk":  fmt.Sprintf("%d", i+1),
				},
				Embedding: vector,
			})
		}

		if err := base.AddDocuments(ctx, docs); err != nil {
			log.Fatal().Err(err).Str("file", file.Name).Msg("Error adding documents to knowledge base")
		}
		log.Info().Str("file", file.Name).Int("chunks", len(docs)).Msg("Indexed file")
	}

	if err := base.Export(ctx); err != nil {
		log.Fatal().Err(err).Msg("Error exporting knowledge base")
	}
	log.Info().Int("chunks", base.Len()).Msg("Knowledge base exported")
}

// askKnowledgeBase answers a question from the persistent knowledge
// base, importing the encrypted export if the store is empty.
func askKnowledgeBase(ctx context.Context, cfg *config.Config, query string) {
	if query == "" {
		log.Fatal().Msg("Please provide a question using the -query flag")
	}

	base, err := knowledge.NewPersistentBase(kbPath, kbCollection, cfg.RAG.EncryptionKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Error opening knowledge base")
	}
	if base.Len() == 0 {
		if err := base.Import(ctx); err != nil {
			log.Fatal().Err(err).Msg("Error importing knowledge base")
		}
	}

	embedder, err := embedding.NewOllamaEmbedder(&cfg.EmbedLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}

	queryEmbedding, err := embedder.EmbedQuery(ctx, query)
	if err != nil {
		log.Fatal().Err(err).Msg("Error embedding query")
	}

	results, err := base.Search(ctx, queryEmbedding, cfg.RAG.TopK)
	if err != nil {
		log.Fatal().Err(err).Msg("Error searching knowledge base")
	}
	if len(results) == 0 {
		fmt.Println("No knowledge base chunks matched your question.")
		return
	}

	runner := qachain.NewRunner(cfg, embedder)
	if err := runner.Setup(); err != nil {
		log.Fatal().Err(err).Msg("Error initializing QA chain runner")
	}

	contents := make([]string, len(results))
	for i, res := range results {
		contents[i] = res.Content
	}
	answer, err := runner.RunChain(ctx, contents, query)
	if err != nil {
		log.Fatal().Err(err).Msg("Error running QA chain")
	}

	fmt.Printf("%s\n", answer)
}

// searchArchive answers a question from previously archived documents.
func searchArchive(ctx context.Context, cfg *config.Config, query string) {
	dbClient, err := db.ConnectDB(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Error connecting to database")
	}
	dbInstance := db.NewDB(dbClient, cfg.Database.Debug)
	defer dbInstance.Close()

	embedder, err := embedding.NewOllamaEmbedder(&cfg.EmbedLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}

	queryEmbedding, err := embedder.EmbedQuery(ctx, query)
	if err != nil {
		log.Fatal().Err(err).Msg("Error embedding query")
	}

	docs, err := db.SearchDocuments(ctx, dbInstance, queryEmbedding, cfg.RAG.TopK)
	if err != nil {
		log.Fatal().Err(err).Msg("Error searching archive")
	}
	if len(docs) == 0 {
		fmt.Println("No archived documents matched your question.")
		return
	}

	runner := qachain.NewRunner(cfg, embedder)
	if err := runner.Setup(); err != nil {
		log.Fatal().Err(err).Msg("Error initializing QA chain runner")
	}

	contents := make([]string, len(docs))
	for i, doc := range docs {
		contents[i] = doc.Content
	}
	answer, err := runner.RunChain(ctx, contents, query)
	if err != nil {
		log.Fatal().Err(err).Msg("Error running QA chain")
	}

	fmt.Printf("%s\n", answer)
}

func resetArchive(ctx context.Context, cfg *config.Config) {
	dbClient, err := db.ConnectDB(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Error connecting to database")
	}
	dbInstance := db.NewDB(dbClient, cfg.Database.Debug)
	defer dbInstance.Close()

	if err := db.DropDocuments(ctx, dbInstance); err != nil {
		log.Fatal().Err(err).Msg("Error dropping archive table")
	}
	log.Info().Msg("Archive table dropped")
}

func loadFiles(paths []string) ([]models.UploadedFile, error) {
	files := make([]models.UploadedFile, 0, len(paths))
	for _, path := range paths {
		file, err := loadFile(path)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, nil
}

func loadFile(path string) (models.UploadedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.UploadedFile{}, err
	}
	return models.UploadedFile{
		Name: path,
		Type: parser.DetectType(path),
		Data: data,
	}, nil
}
