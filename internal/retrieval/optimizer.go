// Package retrieval implements the query path of the RAG pipeline:
// query optimization, vector retrieval, reranking, and the pipeline
// that sequences them.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/balakganesh2k3/gitRAG/internal/domain"
)

// optimizerSystemPrompt instructs the model to rewrite a free-form
// user query into a retrieval-optimized form.
const optimizerSystemPrompt = `You are an AI assistant tasked with optimizing queries for a RAG (Retrieval-Augmented Generation) system. Your goal is to refine the original query to improve the retrieval of relevant information from the knowledge base.

Follow these guidelines to optimize the query:
1. Remove unnecessary words or phrases that don't contribute to the core meaning.
2. Identify and emphasize key concepts or entities.
3. Use more specific or technical terms if appropriate.
4. Ensure the query is clear and concise.
5. Maintain the original intent of the query.

Output only the refined query text, without any additional explanation or formatting, on a single line.

Examples:
- "What are the best ways to improve memory?" -> "Improve memory"
- "How does climate change affect biodiversity in tropical regions?" -> "Climate change impact on tropical biodiversity"
- "What are the symptoms of COVID-19?" -> "COVID-19 symptoms"
- "How can I learn to play the guitar?" -> "Learn guitar basics"
- "What is the capital of France?" -> "Capital of France"`

// TextModel generates a single text completion. Defined here, by the
// consumer, so tests can substitute a double for the Genkit-backed
// implementation.
type TextModel interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// GenkitModel implements TextModel on a Genkit instance.
type GenkitModel struct {
	g     *genkit.Genkit
	model string // provider-qualified, e.g. "googleai/gemini-2.5-flash"
}

// NewGenkitModel creates a TextModel backed by the named model.
func NewGenkitModel(g *genkit.Genkit, model string) (*GenkitModel, error) {
	if g == nil {
		return nil, errors.New("genkit instance is required")
	}
	if model == "" {
		return nil, errors.New("model name is required")
	}
	return &GenkitModel{g: g, model: model}, nil
}

// Generate runs one completion and returns its text.
func (m *GenkitModel) Generate(ctx context.Context, system, prompt string) (string, error) {
	resp, err := genkit.Generate(ctx, m.g,
		ai.WithModelName(m.model),
		ai.WithSystem(system),
		ai.WithPrompt(prompt),
	)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// Optimizer rewrites free-form queries into retrieval-optimized form.
// Unlike the embedding generator it never degrades silently: a model
// failure surfaces as an error carrying the taxonomy sentinel, and the
// caller decides whether to fail the request or fall back to the raw
// query.
type Optimizer struct {
	model  TextModel
	logger *slog.Logger
}

// NewOptimizer creates an Optimizer. credentialSet reports whether the
// generation credential is configured; it is checked here, eagerly,
// so misconfiguration fails at startup rather than on first query.
func NewOptimizer(model TextModel, credentialSet bool, logger *slog.Logger) (*Optimizer, error) {
	if model == nil {
		return nil, errors.New("text model is required")
	}
	if !credentialSet {
		return nil, fmt.Errorf("%w: generation API key is not configured", domain.ErrConfiguration)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Optimizer{model: model, logger: logger}, nil
}

// Optimize returns the retrieval-optimized rewrite of query. An empty
// model output falls back to the raw query; model failures propagate,
// classified as authentication or provider errors.
func (o *Optimizer) Optimize(ctx context.Context, query string) (string, error) {
	text, err := o.model.Generate(ctx, optimizerSystemPrompt, query)
	if err != nil {
		return "", fmt.Errorf("%w: optimizing query: %w", domain.ClassifyProviderError(err), err)
	}

	optimized := strings.TrimSpace(text)
	if optimized == "" {
		o.logger.Warn("optimizer returned empty rewrite, using raw query")
		return query, nil
	}

	// The model is instructed to answer on a single line; collapse any
	// stray newlines it produces anyway.
	if i := strings.IndexByte(optimized, '\n'); i >= 0 {
		optimized = strings.TrimSpace(optimized[:i])
	}

	o.logger.Debug("query optimized", "original_len", len(query), "optimized", optimized)
	return optimized, nil
}
