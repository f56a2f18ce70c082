// Package app assembles the application: configuration, storage,
// model providers, pipeline services, and the HTTP server.
package app

import (
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/balakganesh2k3/gitRAG/internal/api"
	"github.com/balakganesh2k3/gitRAG/internal/config"
	"github.com/balakganesh2k3/gitRAG/internal/ingest"
	"github.com/balakganesh2k3/gitRAG/internal/repository"
	"github.com/balakganesh2k3/gitRAG/internal/retrieval"
	"github.com/balakganesh2k3/gitRAG/internal/vectorstore"
)

// App is the application container. Setup populates it, Close releases
// everything it holds.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	DBPool   *pgxpool.Pool
	Redis    *redis.Client

	Repositories *repository.Store
	Chunks       *vectorstore.Store
	Ingest       *ingest.Service
	Pipeline     *retrieval.Pipeline
	Server       *api.Server

	otelCleanup func()
}

// Close gracefully releases all resources. Safe on a partially
// initialized App, which is how Setup cleans up after a failure.
func (a *App) Close() error {
	if a.Logger != nil {
		a.Logger.Info("shutting down application")
	}

	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil && a.Logger != nil {
			a.Logger.Warn("closing redis client", "error", err)
		}
	}

	if a.DBPool != nil {
		a.DBPool.Close()
	}

	if a.otelCleanup != nil {
		a.otelCleanup()
	}

	return nil
}
