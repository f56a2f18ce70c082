package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/balakganesh2k3/gitRAG/internal/domain"
)

// DefaultRerankBaseURL is the Cohere API endpoint used when the
// configuration does not override it.
const DefaultRerankBaseURL = "https://api.cohere.com"

const rerankRequestTimeout = 30 * time.Second

// Reranker scores candidate documents against a query with an external
// cross-encoder model and keeps the best ones.
type Reranker struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
	logger  *slog.Logger
}

// NewReranker creates a Reranker. The API key is required up front so
// a missing credential is a startup failure, not a per-query one.
func NewReranker(apiKey, model, baseURL string, logger *slog.Logger) (*Reranker, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: rerank API key is not configured", domain.ErrConfiguration)
	}
	if model == "" {
		return nil, errors.New("rerank model is required")
	}
	if baseURL == "" {
		baseURL = DefaultRerankBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reranker{
		client:  &http.Client{Timeout: rerankRequestTimeout},
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		logger:  logger,
	}, nil
}

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// Rerank scores candidates against query and returns at most topN of
// them, ordered by relevance, with scores replaced by the reranker's.
// An empty candidate set short-circuits without a network call.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []domain.RankedResult, topN int) ([]domain.RankedResult, error) {
	if topN <= 0 {
		return nil, fmt.Errorf("%w: topN must be positive, got %d", domain.ErrValidation, topN)
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	if topN > len(candidates) {
		topN = len(candidates)
	}

	docs := make([]string, len(candidates))
	for i, c := range candidates {
		docs[i] = c.Content
	}

	body, err := json.Marshal(rerankRequest{
		Model:     r.model,
		Query:     query,
		Documents: docs,
		TopN:      topN,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/v2/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: calling rerank API: %w", domain.ErrProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		sentinel := domain.ErrProvider
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			sentinel = domain.ErrAuthentication
		}
		return nil, fmt.Errorf("%w: rerank API returned %d: %s", sentinel, resp.StatusCode, bytes.TrimSpace(msg))
	}

	var parsed rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decoding rerank response: %w", domain.ErrProvider, err)
	}

	// The API returns results already ordered by relevance; preserve
	// that order rather than re-sorting locally.
	ranked := make([]domain.RankedResult, 0, topN)
	for _, res := range parsed.Results {
		if res.Index < 0 || res.Index >= len(candidates) {
			return nil, fmt.Errorf("%w: rerank result index %d out of range", domain.ErrProvider, res.Index)
		}
		ranked = append(ranked, domain.RankedResult{
			Content: candidates[res.Index].Content,
			Score:   res.RelevanceScore,
		})
		if len(ranked) == topN {
			break
		}
	}

	r.logger.Debug("reranked candidates", "in", len(candidates), "out", len(ranked))
	return ranked, nil
}
