package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"docchat/internal/config"
	"docchat/internal/convmemory"
	"docchat/internal/embedding"
	"docchat/internal/extractor"
	"docchat/internal/helper"
	"docchat/internal/ingest"
	"docchat/internal/llmservice"
	"docchat/internal/models"
	"docchat/internal/rag"
	"docchat/internal/registry"
	"docchat/internal/vectorstore"
)

const defaultConfigPath = "./configs/config.yaml"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	configPath := flag.String("config", defaultConfigPath, "Path to the config file")
	filePath := flag.String("file", "", "Path to a document file to ingest")
	docID := flag.String("id", "", "Document id (generated when empty)")
	query := flag.String("query", "", "Question to be answered")
	session := flag.String("session", "default", "Conversation session key")
	docFilter := flag.String("docs", "", "Comma-separated document ids to restrict retrieval to")
	deleteID := flag.String("delete", "", "Document id to remove")
	list := flag.Bool("list", false, "List stored documents")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}

	ctx := context.Background()
	app, err := buildApp(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error building pipeline")
	}
	defer app.close()

	switch {
	case *filePath != "":
		ingestFile(ctx, app, *filePath, *docID)
	case *query != "":
		askQuestion(ctx, app, *query, *session, *docFilter)
	case *deleteID != "":
		if err := app.ingester.Remove(ctx, *deleteID); err != nil {
			log.Fatal().Err(err).Msg("Error removing document")
		}
		log.Info().Str("document", *deleteID).Msg("Document removed")
	case *list:
		listDocuments(ctx, app)
	default:
		log.Fatal().Msg("Provide a document via -file, a question via -query, -delete <id> or -list")
	}
}

type app struct {
	store    vectorstore.Store
	registry *registry.Registry
	history  convmemory.History
	gateway  *embedding.Gateway
	ingester *ingest.Service
	engine   *rag.Engine

	redisHistory *convmemory.RedisHistory
}

func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}

	switch cfg.Store.Backend {
	case "memory":
		a.store = vectorstore.NewMemoryStore()
	case "chromem":
		store, err := vectorstore.NewChromemStore(cfg.Store.Path, cfg.Store.Collection)
		if err != nil {
			return nil, err
		}
		a.store = store
	case "postgres":
		sqldb, err := registry.ConnectDB(&cfg.Database)
		if err != nil {
			return nil, err
		}
		db := registry.NewDB(sqldb, cfg.Database.Debug)
		store := vectorstore.NewPostgresStore(db, cfg.Database.VectorSize)
		if err := store.Init(ctx); err != nil {
			return nil, err
		}
		a.store = store
		a.registry = registry.New(db)
		if err := a.registry.Init(ctx); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	embedClient, err := newEmbedClient(&cfg.EmbedLLM)
	if err != nil {
		return nil, err
	}
	a.gateway = embedding.NewGateway(embedClient)

	if cfg.Redis.Addr != "" {
		a.redisHistory = convmemory.NewRedisHistory(&cfg.Redis)
		a.history = a.redisHistory
	} else {
		a.history = convmemory.NewMemoryHistory()
	}

	chat, err := llmservice.NewClient(&cfg.ChatLLM)
	if err != nil {
		return nil, err
	}

	ext := extractor.New(cfg.RAG.MaxUploadBytes)
	var reg ingest.DocumentRegistry
	if a.registry != nil {
		reg = a.registry
	}
	a.ingester = ingest.NewService(ext, a.gateway, a.store, reg, cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	a.engine = rag.NewEngine(a.store, a.gateway, chat, a.history, cfg.RAG.TopK)
	return a, nil
}

func (a *app) close() {
	if a.redisHistory != nil {
		a.redisHistory.Close()
	}
}

// newEmbedClient prefers the OpenAI-compatible endpoint when a key is
// configured, else a local ollama server.
func newEmbedClient(cfg *config.LLMConfig) (embedding.Client, error) {
	if cfg.Key != "" {
		return embedding.NewOpenAIClient(cfg)
	}
	return embedding.NewOllamaClient(cfg)
}

func ingestFile(ctx context.Context, a *app, filePath, docID string) {
	raw, err := os.ReadFile(filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error reading document file")
	}

	if docID == "" {
		docID, err = helper.GenerateUUID()
		if err != nil {
			log.Fatal().Err(err).Msg("Error generating document id")
		}
	}

	count, err := a.ingester.Ingest(ctx, models.IngestRequest{
		DocumentID: docID,
		Filename:   filepath.Base(filePath),
		MimeType:   mimeForPath(filePath),
		Raw:        raw,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Error ingesting document")
	}
	log.Info().Str("document", docID).Int("chunks", count).Msg("Ingestion complete")
}

func askQuestion(ctx context.Context, a *app, query, session, docFilter string) {
	var documentIDs []string
	if docFilter != "" {
		for _, id := range strings.Split(docFilter, ",") {
			if id = strings.TrimSpace(id); id != "" {
				documentIDs = append(documentIDs, id)
			}
		}
	}

	response, err := a.engine.Answer(ctx, models.QueryRequest{
		SessionKey:  session,
		Question:    query,
		DocumentIDs: documentIDs,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Error answering question")
	}

	log.Info().Msg("Question: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", query)

	log.Info().Msg("Sources: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	for _, source := range response.Sources {
		fmt.Printf("[%s] %s\n", source.DocumentID, source.ChunkText)
	}
	fmt.Println()

	log.Info().Msg("Assistant: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", response.Answer)
}

func listDocuments(ctx context.Context, a *app) {
	if a.registry == nil {
		log.Fatal().Msg("Document listing needs the postgres backend")
	}
	docs, err := a.registry.ListDocuments(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Error listing documents")
	}
	helper.PrettyPrint(docs)
}

func mimeForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return extractor.MimePDF
	case ".md", ".markdown":
		return extractor.MimeMarkdown
	case ".docx":
		return extractor.MimeDOCX
	case ".pptx":
		return extractor.MimePPTX
	case ".xlsx":
		return extractor.MimeXLSX
	case ".ods":
		return extractor.MimeODS
	default:
		return extractor.MimeText
	}
}
