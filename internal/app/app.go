// Package app wires the application together: database pool, model client,
// stores, retrieval pipeline, and HTTP server.
//
// Construction is explicit and happens once at startup. Components receive
// their dependencies through constructors; nothing reaches for globals.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quillhq/quill/api"
	"github.com/quillhq/quill/internal/answer"
	"github.com/quillhq/quill/internal/config"
	"github.com/quillhq/quill/internal/conversation"
	"github.com/quillhq/quill/internal/database"
	"github.com/quillhq/quill/internal/document"
	"github.com/quillhq/quill/internal/genai"
	"github.com/quillhq/quill/internal/planner"
	"github.com/quillhq/quill/internal/retrieval"
	"github.com/quillhq/quill/internal/snippet"
	"github.com/quillhq/quill/internal/sqlc"
	"github.com/quillhq/quill/internal/usage"
)

// App is the assembled application.
type App struct {
	Config *config.Config
	Logger *slog.Logger
	Pool   *pgxpool.Pool
	Client genai.Client

	Store     *conversation.Store
	Catalog   *document.Catalog
	Meter     *usage.Meter
	Pipeline  *answer.Pipeline
	Integrity *conversation.IntegrityManager
	Server    *api.Server
}

// Setup builds the application from configuration. The caller owns the
// returned App and must call Close.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := database.Connect(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	queries := sqlc.New(pool)
	store := conversation.NewStore(queries, pool, logger)
	catalog := document.NewCatalog(queries, logger)
	meter := usage.NewMeter(queries, logger)

	client := newClient(ctx, cfg, logger)

	searcher := retrieval.NewVectorSearcher(queries, client, logger)
	orchestrator := retrieval.NewOrchestrator(
		searcher,
		snippet.NewExtractor(client, logger),
		catalog,
		client,
		store,
		retrieval.Config{
			Width:      cfg.SearchWidth,
			TopK:       cfg.SearchTopK,
			ProbeCount: cfg.ProbeQuestions,
		},
		logger,
	)

	pipeline := answer.NewPipeline(
		store,
		planner.New(client, logger),
		orchestrator,
		answer.NewGenerator(client, logger),
		answer.NewResolver(store, logger),
		conversation.NewSummarizer(store, client, cfg.SummaryEvery, logger),
		catalog,
		logger,
	)

	integrity := conversation.NewIntegrityManager(store, client, logger)
	server := api.NewServer(store, pipeline, integrity, meter, pool, logger)

	return &App{
		Config:    cfg,
		Logger:    logger,
		Pool:      pool,
		Client:    client,
		Store:     store,
		Catalog:   catalog,
		Meter:     meter,
		Pipeline:  pipeline,
		Integrity: integrity,
		Server:    server,
	}, nil
}

// newClient builds the model client. Without an API key the app still
// starts; model-backed operations degrade to their fallbacks until a key
// is configured.
func newClient(ctx context.Context, cfg *config.Config, logger *slog.Logger) genai.Client {
	if cfg.GeminiAPIKey == "" {
		logger.Warn("GEMINI_API_KEY not set; model operations disabled")
		return genai.Disabled{}
	}

	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{APIKey: cfg.GeminiAPIKey}))
	if g == nil {
		logger.Warn("genkit initialization failed; model operations disabled")
		return genai.Disabled{}
	}

	embedder := googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	return genai.New(g, embedder, genai.Config{
		Model:           cfg.Model,
		ClassifierModel: cfg.ClassifierModel,
		EmbedderModel:   cfg.EmbedderModel,
		Temperature:     cfg.Temperature,
	}, logger)
}

// RepairStartup sweeps every session for exchanges a previous process left
// open and closes them. Failures are logged, never fatal; the server starts
// regardless.
func (a *App) RepairStartup(ctx context.Context) {
	repaired, err := a.Integrity.RepairAll(ctx)
	if err != nil {
		a.Logger.Warn("startup integrity sweep incomplete", "error", err)
	}
	if repaired > 0 {
		a.Logger.Info("closed orphaned exchanges", "count", repaired)
	}
}

// Close releases the application's resources.
func (a *App) Close() {
	if a.Pool != nil {
		a.Pool.Close()
	}
}
