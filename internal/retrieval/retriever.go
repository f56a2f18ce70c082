package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/balakganesh2k3/gitRAG/internal/domain"
	"github.com/balakganesh2k3/gitRAG/internal/vectorstore"
)

// Embedder produces a single query embedding.
type Embedder interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
}

// Searcher runs a similarity search over stored chunks.
type Searcher interface {
	Search(ctx context.Context, embedding []float32, opts vectorstore.SearchOptions) ([]domain.RankedResult, error)
}

// Retriever composes query optimization, embedding, and vector search
// into a single lookup. Results come back in the store's order with
// the store's similarity scores.
type Retriever struct {
	optimizer *Optimizer
	embedder  Embedder
	searcher  Searcher
	logger    *slog.Logger
}

// NewRetriever creates a Retriever from its three stages.
func NewRetriever(optimizer *Optimizer, embedder Embedder, searcher Searcher, logger *slog.Logger) (*Retriever, error) {
	if optimizer == nil {
		return nil, errors.New("optimizer is required")
	}
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if searcher == nil {
		return nil, errors.New("searcher is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{optimizer: optimizer, embedder: embedder, searcher: searcher, logger: logger}, nil
}

// Retrieve optimizes query, embeds the rewrite, and searches the store
// with opts. Optimization failures propagate; they are never papered
// over with the raw query.
func (r *Retriever) Retrieve(ctx context.Context, query string, opts vectorstore.SearchOptions) ([]domain.RankedResult, error) {
	optimized, err := r.optimizer.Optimize(ctx, query)
	if err != nil {
		return nil, err
	}

	embedding, err := r.embedder.EmbedOne(ctx, optimized)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	results, err := r.searcher.Search(ctx, embedding, opts)
	if err != nil {
		return nil, fmt.Errorf("searching chunks: %w", err)
	}

	r.logger.Debug("retrieved candidates", "count", len(results))
	return results, nil
}
