package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/askmynotes/backend/internal/config"
	"github.com/askmynotes/backend/internal/core/ports"
	"github.com/askmynotes/backend/internal/core/usecase"
	"github.com/askmynotes/backend/internal/infrastructure/chunking"
	"github.com/askmynotes/backend/internal/infrastructure/extractor"
	"github.com/askmynotes/backend/internal/infrastructure/llm/ollama"
	"github.com/askmynotes/backend/internal/infrastructure/llm/openai"
	"github.com/askmynotes/backend/internal/infrastructure/queue/nats"
	"github.com/askmynotes/backend/internal/infrastructure/repository/postgres"
	"github.com/askmynotes/backend/internal/infrastructure/resilience"
	"github.com/askmynotes/backend/internal/infrastructure/storage/localfs"
	"github.com/askmynotes/backend/internal/infrastructure/vector/qdrant"
)

// App holds the wired dependency graph shared by the API and the worker.
type App struct {
	Config config.Config
	Logger *slog.Logger

	Subjects ports.SubjectRepository
	Notes    ports.NoteRepository
	Turns    ports.ConversationStore
	QALogs   ports.QALogStore
	Queue    ports.MessageQueue

	IngestUC  ports.NoteIngestor
	ProcessUC ports.NoteProcessor
	AskUC     ports.QuestionAnswerer

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	subjects := postgres.NewSubjectRepository(db)
	notes := postgres.NewNoteRepository(db)
	turns := postgres.NewConversationRepository(db)
	qaLogs := postgres.NewQALogRepository(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		Runner: resilience.NewRunner(resilience.DefaultPolicy()),
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	embedder, primary, auxiliary, err := buildModels(cfg)
	if err != nil {
		queue.Close()
		_ = db.Close()
		return nil, err
	}

	vectorDB := qdrant.New(cfg.QdrantURL, cfg.QdrantCollectionPrefix)
	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	extract := extractor.NewDispatcher(storage)

	ingestUC := usecase.NewIngestNoteUseCase(subjects, notes, storage, queue)
	processUC := usecase.NewProcessNoteUseCase(notes, extract, chunker, embedder, vectorDB)
	askUC := usecase.NewAskUseCase(embedder, vectorDB, primary, auxiliary, usecase.AskConfig{
		TopK: cfg.RAGTopK,
		Weights: usecase.ConfidenceWeights{
			Max:           cfg.ConfidenceMaxWeight,
			Avg:           cfg.ConfidenceAvgWeight,
			SpreadPenalty: cfg.ConfidenceSpreadPenalty,
			KeywordCap:    cfg.ConfidenceKeywordCap,
		},
	})

	return &App{
		Config: cfg,
		Logger: logger,

		Subjects: subjects,
		Notes:    notes,
		Turns:    turns,
		QALogs:   qaLogs,
		Queue:    queue,

		IngestUC:  ingestUC,
		ProcessUC: processUC,
		AskUC:     askUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

// buildModels wires the embedder plus the primary and auxiliary generators for
// the configured provider. The primary model answers under deterministic
// decoding settings; the auxiliary model handles expansion and reranking.
func buildModels(cfg config.Config) (ports.Embedder, ports.TextGenerator, ports.TextGenerator, error) {
	runner := resilience.NewRunner(resilience.DefaultPolicy())

	switch cfg.LLMProvider {
	case "ollama":
		client := ollama.New(cfg.OllamaURL, runner)
		primary := ollama.NewGenerator(client, cfg.OllamaGenModel, ollama.GenOptions{
			Temperature: cfg.GenTemperature,
			TopP:        cfg.GenTopP,
			TopK:        cfg.GenTopK,
			MaxTokens:   cfg.GenMaxTokens,
		})
		auxiliary := ollama.NewGenerator(client, cfg.OllamaFastModel, ollama.GenOptions{})
		embedder := ollama.NewEmbedder(client, cfg.OllamaEmbedModel)
		return embedder, primary, auxiliary, nil

	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, nil, nil, fmt.Errorf("OPENAI_API_KEY is required for provider %q", cfg.LLMProvider)
		}
		client := openai.New(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, runner)
		primary := openai.NewGenerator(client, cfg.OpenAIGenModel, openai.GenOptions{
			Temperature: float32(cfg.GenTemperature),
			TopP:        float32(cfg.GenTopP),
			MaxTokens:   cfg.GenMaxTokens,
		})
		auxiliary := openai.NewGenerator(client, cfg.OpenAIFastModel, openai.GenOptions{})
		embedder := openai.NewEmbedder(client, cfg.OpenAIEmbedModel)
		return embedder, primary, auxiliary, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown llm provider %q", cfg.LLMProvider)
	}
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
