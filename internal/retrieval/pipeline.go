package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/balakganesh2k3/gitRAG/internal/domain"
	"github.com/balakganesh2k3/gitRAG/internal/vectorstore"
)

// DocumentReranker narrows a candidate set to its most relevant
// members. Satisfied by *Reranker.
type DocumentReranker interface {
	Rerank(ctx context.Context, query string, candidates []domain.RankedResult, topN int) ([]domain.RankedResult, error)
}

// QueryOptimizer rewrites a raw query for retrieval. Satisfied by
// *Optimizer.
type QueryOptimizer interface {
	Optimize(ctx context.Context, query string) (string, error)
}

// PipelineConfig carries the tunable stage parameters.
type PipelineConfig struct {
	RetrieveLimit int     // candidate pool size for the vector search
	MinSimilarity float64 // strict lower bound on cosine similarity
	RerankTopN    int     // final result count after reranking
}

// Pipeline sequences the full query path: optimize once, embed the
// rewrite, search wide, rerank narrow. It owns no stage logic of its
// own; each stage keeps its error behavior and the pipeline stops at
// the first failure.
type Pipeline struct {
	optimizer QueryOptimizer
	embedder  Embedder
	searcher  Searcher
	reranker  DocumentReranker
	cfg       PipelineConfig
	logger    *slog.Logger
}

// NewPipeline creates a Pipeline. Stage parameters are validated here
// so a bad configuration fails at startup.
func NewPipeline(optimizer QueryOptimizer, embedder Embedder, searcher Searcher, reranker DocumentReranker, cfg PipelineConfig, logger *slog.Logger) (*Pipeline, error) {
	if optimizer == nil || embedder == nil || searcher == nil || reranker == nil {
		return nil, errors.New("all pipeline stages are required")
	}
	if cfg.RetrieveLimit <= 0 {
		return nil, fmt.Errorf("%w: retrieve limit must be positive, got %d", domain.ErrConfiguration, cfg.RetrieveLimit)
	}
	if cfg.MinSimilarity < -1 || cfg.MinSimilarity > 1 {
		return nil, fmt.Errorf("%w: min similarity %g outside [-1, 1]", domain.ErrConfiguration, cfg.MinSimilarity)
	}
	if cfg.RerankTopN <= 0 || cfg.RerankTopN > cfg.RetrieveLimit {
		return nil, fmt.Errorf("%w: rerank topN %d outside (0, %d]", domain.ErrConfiguration, cfg.RerankTopN, cfg.RetrieveLimit)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		optimizer: optimizer,
		embedder:  embedder,
		searcher:  searcher,
		reranker:  reranker,
		cfg:       cfg,
		logger:    logger,
	}, nil
}

// Run executes the pipeline for q. The optimized query drives both the
// vector search and the rerank scoring. An empty candidate pool is a
// valid empty answer, not an error.
func (p *Pipeline) Run(ctx context.Context, q domain.Query) ([]domain.RankedResult, error) {
	if err := validateMessage(q.Message); err != nil {
		return nil, err
	}

	// An all-denied permission set grants access to nothing. The store
	// treats an empty class list as "no filter", so it must never see
	// one from here.
	classes := q.Permissions.Classes()
	if len(classes) == 0 {
		p.logger.Info("all content classes denied, returning empty result")
		return nil, nil
	}

	optimized, err := p.optimizer.Optimize(ctx, q.Message)
	if err != nil {
		return nil, err
	}

	embedding, err := p.embedder.EmbedOne(ctx, optimized)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	var repoID *uuid.UUID
	if q.RepositoryID != uuid.Nil {
		repoID = &q.RepositoryID
	}
	candidates, err := p.searcher.Search(ctx, embedding, vectorstore.SearchOptions{
		RepositoryID:  repoID,
		Classes:       classes,
		Limit:         p.cfg.RetrieveLimit,
		MinSimilarity: p.cfg.MinSimilarity,
	})
	if err != nil {
		return nil, fmt.Errorf("searching chunks: %w", err)
	}
	if len(candidates) == 0 {
		p.logger.Info("no candidates above similarity floor", "min_similarity", p.cfg.MinSimilarity)
		return nil, nil
	}

	ranked, err := p.reranker.Rerank(ctx, optimized, candidates, p.cfg.RerankTopN)
	if err != nil {
		return nil, fmt.Errorf("reranking candidates: %w", err)
	}

	p.logger.Info("pipeline complete",
		"candidates", len(candidates),
		"results", len(ranked),
	)
	return ranked, nil
}

// validateMessage enforces the query message bounds.
func validateMessage(message string) error {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return fmt.Errorf("%w: message must not be empty", domain.ErrValidation)
	}
	if len([]rune(message)) > domain.MaxQueryLength {
		return fmt.Errorf("%w: message exceeds %d characters", domain.ErrValidation, domain.MaxQueryLength)
	}
	return nil
}
