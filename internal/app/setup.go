package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/tracing"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/time/rate"

	"github.com/balakganesh2k3/gitRAG/db"
	"github.com/balakganesh2k3/gitRAG/internal/api"
	"github.com/balakganesh2k3/gitRAG/internal/chunker"
	"github.com/balakganesh2k3/gitRAG/internal/config"
	"github.com/balakganesh2k3/gitRAG/internal/embedding"
	"github.com/balakganesh2k3/gitRAG/internal/ingest"
	"github.com/balakganesh2k3/gitRAG/internal/ratelimit"
	"github.com/balakganesh2k3/gitRAG/internal/repository"
	"github.com/balakganesh2k3/gitRAG/internal/retrieval"
	"github.com/balakganesh2k3/gitRAG/internal/vectorstore"
)

// Setup creates and initializes the application. Credentials for both
// model providers are verified here so misconfiguration fails at
// startup, before any request arrives. Call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	if err := cfg.RequireGeminiKey(); err != nil {
		return nil, err
	}
	if err := cfg.RequireCohereKey(); err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized.
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	a.otelCleanup = provideOtelShutdown(ctx, cfg, logger)

	pool, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.DBPool = pool

	a.Redis = redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	g, err := provideGenkit(ctx)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found", cfg.EmbedderModel)
	}
	a.Embedder = embedder

	if err := provideServices(a, g, embedder, logger); err != nil {
		return nil, err
	}

	return a, nil
}

// provideServices builds the pipeline services and the HTTP server on
// top of the already-initialized infrastructure.
func provideServices(a *App, g *genkit.Genkit, embedder ai.Embedder, logger *slog.Logger) error {
	cfg := a.Config

	var pacer *rate.Limiter
	if cfg.EmbedRPS > 0 {
		pacer = rate.NewLimiter(rate.Limit(cfg.EmbedRPS), 1)
	}

	gen, err := embedding.New(embedder, cfg.EmbeddingDimension, pacer, logger)
	if err != nil {
		return fmt.Errorf("creating embedding generator: %w", err)
	}

	chk, err := chunker.New(cfg.ChunkSize, logger)
	if err != nil {
		return fmt.Errorf("creating chunker: %w", err)
	}

	a.Chunks, err = vectorstore.New(a.DBPool, logger)
	if err != nil {
		return fmt.Errorf("creating vector store: %w", err)
	}

	a.Repositories, err = repository.New(a.DBPool, logger)
	if err != nil {
		return fmt.Errorf("creating repository store: %w", err)
	}

	a.Ingest, err = ingest.New(chk, gen, a.Chunks, a.Repositories, logger)
	if err != nil {
		return fmt.Errorf("creating ingest service: %w", err)
	}

	model, err := retrieval.NewGenkitModel(g, cfg.OptimizerModel)
	if err != nil {
		return fmt.Errorf("creating optimizer model: %w", err)
	}
	optimizer, err := retrieval.NewOptimizer(model, cfg.GeminiAPIKey != "", logger)
	if err != nil {
		return fmt.Errorf("creating query optimizer: %w", err)
	}

	reranker, err := retrieval.NewReranker(cfg.CohereAPIKey, cfg.RerankModel, cfg.RerankBaseURL, logger)
	if err != nil {
		return fmt.Errorf("creating reranker: %w", err)
	}

	a.Pipeline, err = retrieval.NewPipeline(optimizer, gen, a.Chunks, reranker, retrieval.PipelineConfig{
		RetrieveLimit: cfg.RetrieveLimit,
		MinSimilarity: cfg.MinSimilarity,
		RerankTopN:    cfg.RerankTopN,
	}, logger)
	if err != nil {
		return fmt.Errorf("creating pipeline: %w", err)
	}

	limiter, err := ratelimit.New(a.Redis, cfg.RateLimitQuota, cfg.RateLimitWindow, logger)
	if err != nil {
		return fmt.Errorf("creating rate limiter: %w", err)
	}

	a.Server = api.NewServer(
		api.NewHealthHandler(a.DBPool, logger),
		api.NewRepositoryHandler(a.Repositories, logger),
		api.NewIngestHandler(a.Ingest, logger),
		api.NewQueryHandler(a.Pipeline, a.Repositories, logger),
		limiter,
		cfg.TrustProxy,
		logger,
	)
	return nil
}

// provideOtelShutdown wires OTLP HTTP trace export into Genkit's
// TracerProvider. Disabled when no endpoint is configured; export
// failures degrade to a warning rather than blocking startup.
func provideOtelShutdown(ctx context.Context, cfg *config.Config, logger *slog.Logger) func() {
	if cfg.OTLPEndpoint == "" {
		return func() {}
	}

	// Genkit's TracerProvider reads these at Init time.
	// SAFETY: os.Setenv is not concurrent-safe, but this runs exactly
	// once during startup before goroutines are spawned.
	if cfg.ServiceName != "" {
		_ = os.Setenv("OTEL_SERVICE_NAME", cfg.ServiceName)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.OTLPEndpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		logger.Warn("creating OTLP exporter, tracing disabled", "error", err)
		return func() {}
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	logger.Debug("trace export enabled", "endpoint", cfg.OTLPEndpoint, "service", cfg.ServiceName)

	shutdown := tracing.TracerProvider().Shutdown
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideGenkit initializes Genkit with the Google AI plugin. The
// plugin reads GEMINI_API_KEY from the environment.
func provideGenkit(ctx context.Context) (*genkit.Genkit, error) {
	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, errors.New("initializing genkit")
	}
	return g, nil
}

// provideDBPool runs migrations and creates the connection pool.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}
