// Package bootstrap wires configuration into the object graph the API
// binary runs: storage, bus, model clients, the corpus manager and the
// answering pipeline.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/agentdesk/banking-copilot/internal/config"
	"github.com/agentdesk/banking-copilot/internal/core/corpus"
	"github.com/agentdesk/banking-copilot/internal/core/domain"
	"github.com/agentdesk/banking-copilot/internal/core/ports"
	"github.com/agentdesk/banking-copilot/internal/core/promptctx"
	"github.com/agentdesk/banking-copilot/internal/core/rerank"
	"github.com/agentdesk/banking-copilot/internal/core/usecase"
	"github.com/agentdesk/banking-copilot/internal/infrastructure/bankdata"
	"github.com/agentdesk/banking-copilot/internal/infrastructure/extractor/pdfdoc"
	"github.com/agentdesk/banking-copilot/internal/infrastructure/llm/ollama"
	"github.com/agentdesk/banking-copilot/internal/infrastructure/llm/reranker"
	"github.com/agentdesk/banking-copilot/internal/infrastructure/queue/nats"
	"github.com/agentdesk/banking-copilot/internal/infrastructure/repository/postgres"
	"github.com/agentdesk/banking-copilot/internal/infrastructure/resilience"
	"github.com/agentdesk/banking-copilot/internal/observability/logging"
	"github.com/agentdesk/banking-copilot/internal/observability/metrics"
)

type App struct {
	Config  config.Config
	Logger  *slog.Logger
	Metrics *metrics.HTTPServerMetrics

	Corpus        *corpus.Manager
	Conversations ports.ConversationStore
	Bus           ports.RefreshBus
	Answerer      ports.QuestionAnswerer
	RerankName    string

	db      *sql.DB
	busConn *nats.Bus
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger := logging.NewJSONLogger("banking-copilot-api", cfg.LogLevel)
	httpMetrics := metrics.NewHTTPServerMetrics("banking-copilot-api")
	executor := resilience.NewExecutor(resilience.DefaultConfig()).WithLogger(logger)

	db, err := postgres.OpenDB(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	conversations := postgres.NewConversationRepository(db)

	bus, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
		Logger:             logger,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init refresh bus: %w", err)
	}

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaChatModel, cfg.OllamaEmbedModel, executor)
	generator := ollama.NewGenerator(ollamaClient)

	var embedder ports.Embedder = ollama.NewEmbedder(ollamaClient)
	if cfg.OllamaEmbedFallback != "" {
		fallbackClient := ollama.New(cfg.OllamaURL, cfg.OllamaChatModel, cfg.OllamaEmbedFallback, executor)
		embedder = ollama.NewFallbackEmbedder(embedder, ollama.NewEmbedder(fallbackClient), logger)
	}

	var scorer ports.RelevanceScorer
	if cfg.RerankerURL != "" {
		scorer = reranker.New(cfg.RerankerURL)
	}
	strategy := rerank.Select(cfg.RerankStrategy, generator, scorer, logger)
	if strategy.Name() != cfg.RerankStrategy {
		logger.Warn("rerank strategy unavailable, running without reranking", "requested", cfg.RerankStrategy)
	}

	policy := domain.DefaultRetrievalPolicy()
	builder := corpus.NewBuilder(policy, logger)
	manager := corpus.NewManager(
		cfg.DataDir,
		bankdata.NewLoader(logger),
		pdfdoc.NewExtractor(logger),
		embedder,
		builder,
		logger,
	).WithAgreementPath(cfg.AgreementPath).
		WithBuildObserver(func(chunks int, duration time.Duration, err error) {
			httpMetrics.RecordCorpusBuild("banking-copilot-api", chunks, duration, err)
		})

	assembler := promptctx.NewAssembler(cfg.MaxChunkChars)
	answerer := usecase.NewAnswerUseCase(manager, strategy, generator, assembler, policy, usecase.Options{
		UseHybrid:       cfg.RetrievalUseHybrid,
		Alpha:           cfg.RetrievalAlpha,
		CandidatesN:     cfg.RetrievalCandidatesN,
		FinalK:          cfg.RetrievalFinalK,
		FreshnessLambda: cfg.FreshnessLambda,
	}, logger)

	return &App{
		Config:        cfg,
		Logger:        logger,
		Metrics:       httpMetrics,
		Corpus:        manager,
		Conversations: conversations,
		Bus:           bus,
		Answerer:      answerer,
		RerankName:    strategy.Name(),
		db:            db,
		busConn:       bus,
	}, nil
}

func (a *App) Close() {
	if a.busConn != nil {
		a.busConn.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}
