// Package embedding converts text chunks and queries into
// fixed-dimension vectors via an external embedding model.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/balakganesh2k3/gitRAG/internal/domain"
)

// Generator produces embedding vectors of a fixed dimension D. Raw
// provider output is truncated or zero-padded so every vector leaving
// this package has exactly D components, matching the store's column.
//
// Provider failures degrade to all-zero vectors instead of propagating:
// ingestion availability is worth more than retrievability of the
// affected chunks, which stay unreachable (zero similarity) until the
// file is re-ingested. Callers that cannot tolerate this (the query
// path's optimizer) use their own components with strict errors.
//
// Generator is safe for concurrent use.
type Generator struct {
	embedder  ai.Embedder
	dimension int
	limiter   *rate.Limiter // nil = no pacing
	logger    *slog.Logger
}

// New creates a Generator.
//
// limiter, when non-nil, paces provider calls; each batched request
// consumes one token. dimension is the fixed output dimension D.
func New(embedder ai.Embedder, dimension int, limiter *rate.Limiter, logger *slog.Logger) (*Generator, error) {
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if dimension < 1 {
		return nil, fmt.Errorf("dimension must be >= 1, got %d", dimension)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		embedder:  embedder,
		dimension: dimension,
		limiter:   limiter,
		logger:    logger,
	}, nil
}

// Dimension returns the fixed output dimension D.
func (g *Generator) Dimension() int { return g.dimension }

// Embed returns one vector per input text, order preserved, each of
// exactly Dimension() components. All texts go to the provider in a
// single batched request.
//
// On provider failure the result is one all-zero vector per text;
// the failure is logged, with credential rejections surfaced
// separately from transient errors. Context cancellation is the one
// failure that propagates: it reflects the caller going away, not the
// provider, and degraded output would be written by nobody.
func (g *Generator) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("embedding rate wait: %w", err)
		}
	}

	input := make([]*ai.Document, len(texts))
	for i, text := range texts {
		input[i] = ai.DocumentFromText(text, nil)
	}

	dim := int32(g.dimension) // #nosec G115 -- validated range in New
	resp, err := g.embedder.Embed(ctx, &ai.EmbedRequest{
		Input:   input,
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("embedding canceled: %w", ctx.Err())
		}
		if domain.IsAuthError(err) {
			g.logger.Error("embedding provider rejected credentials, returning zero vectors",
				"texts", len(texts), "error", err)
		} else {
			g.logger.Error("embedding call failed, returning zero vectors",
				"texts", len(texts), "error", err)
		}
		return g.zeroVectors(len(texts)), nil
	}

	if len(resp.Embeddings) != len(texts) {
		g.logger.Error("embedding count mismatch, returning zero vectors",
			"want", len(texts), "got", len(resp.Embeddings))
		return g.zeroVectors(len(texts)), nil
	}

	vectors := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		vectors[i] = g.conform(emb.Embedding)
	}
	return vectors, nil
}

// EmbedOne embeds a single text. Same degradation semantics as Embed.
func (g *Generator) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := g.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// conform enforces the fixed dimension: truncate long vectors, pad
// short ones with zeros.
func (g *Generator) conform(vec []float32) []float32 {
	switch {
	case len(vec) == g.dimension:
		return vec
	case len(vec) > g.dimension:
		return vec[:g.dimension]
	default:
		padded := make([]float32, g.dimension)
		copy(padded, vec)
		return padded
	}
}

func (g *Generator) zeroVectors(n int) [][]float32 {
	vectors := make([][]float32, n)
	for i := range vectors {
		vectors[i] = make([]float32, g.dimension)
	}
	return vectors
}

// IsZero reports whether vec is all zeros, i.e. the degraded fallback
// produced under provider failure.
func IsZero(vec []float32) bool {
	for _, v := range vec {
		if v != 0 {
			return false
		}
	}
	return true
}
