package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/balakganesh2k3/gitRAG/internal/domain"
	"github.com/balakganesh2k3/gitRAG/internal/log"
)

func rerankServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestRerank(t *testing.T) {
	candidates := []domain.RankedResult{
		{Content: "alpha", Score: 0.9},
		{Content: "beta", Score: 0.8},
		{Content: "gamma", Score: 0.7},
	}

	srv := rerankServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/rerank" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}

		var req rerankRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if len(req.Documents) != 3 || req.TopN != 2 {
			t.Errorf("got %d documents topN=%d, want 3 documents topN=2", len(req.Documents), req.TopN)
		}

		// Cross-encoder prefers gamma over alpha; beta drops out.
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"index": 2, "relevance_score": 0.95},
				{"index": 0, "relevance_score": 0.42},
			},
		})
	})

	r, err := NewReranker("test-key", "rerank-english-v3.0", srv.URL, log.NewNop())
	if err != nil {
		t.Fatalf("NewReranker: %v", err)
	}

	got, err := r.Rerank(context.Background(), "query", candidates, 2)
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d results, want 2", len(got))
	}
	if got[0].Content != "gamma" || got[0].Score != 0.95 {
		t.Errorf("first result = %+v, want gamma@0.95", got[0])
	}
	if got[1].Content != "alpha" || got[1].Score != 0.42 {
		t.Errorf("second result = %+v, want alpha@0.42", got[1])
	}
	if got[0].Score < got[1].Score {
		t.Error("results not ordered by descending score")
	}
}

func TestRerankEmptyCandidates(t *testing.T) {
	called := false
	srv := rerankServer(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	r, err := NewReranker("test-key", "m", srv.URL, log.NewNop())
	if err != nil {
		t.Fatalf("NewReranker: %v", err)
	}

	got, err := r.Rerank(context.Background(), "query", nil, 5)
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	if got != nil {
		t.Errorf("got %v, want nil", got)
	}
	if called {
		t.Error("empty candidate set should not hit the API")
	}
}

func TestRerankTopNClamped(t *testing.T) {
	srv := rerankServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req rerankRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.TopN != 2 {
			t.Errorf("topN = %d, want 2 (clamped to candidate count)", req.TopN)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"index": 0, "relevance_score": 0.8},
				{"index": 1, "relevance_score": 0.3},
			},
		})
	})

	r, err := NewReranker("test-key", "m", srv.URL, log.NewNop())
	if err != nil {
		t.Fatalf("NewReranker: %v", err)
	}

	got, err := r.Rerank(context.Background(), "query", []domain.RankedResult{
		{Content: "a"}, {Content: "b"},
	}, 10)
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("got %d results, want 2", len(got))
	}
}

func TestRerankErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"unauthorized", http.StatusUnauthorized, `{"message":"invalid api token"}`, domain.ErrAuthentication},
		{"forbidden", http.StatusForbidden, `{"message":"forbidden"}`, domain.ErrAuthentication},
		{"server error", http.StatusInternalServerError, "boom", domain.ErrProvider},
		{"too many requests", http.StatusTooManyRequests, "slow down", domain.ErrProvider},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := rerankServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			r, err := NewReranker("test-key", "m", srv.URL, log.NewNop())
			if err != nil {
				t.Fatalf("NewReranker: %v", err)
			}

			_, err = r.Rerank(context.Background(), "query", []domain.RankedResult{{Content: "a"}}, 1)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("got error %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRerankInvalidTopN(t *testing.T) {
	r, err := NewReranker("test-key", "m", "http://unused", log.NewNop())
	if err != nil {
		t.Fatalf("NewReranker: %v", err)
	}

	_, err = r.Rerank(context.Background(), "query", []domain.RankedResult{{Content: "a"}}, 0)
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("got error %v, want ErrValidation", err)
	}
}

func TestRerankOutOfRangeIndex(t *testing.T) {
	srv := rerankServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{{"index": 7, "relevance_score": 0.5}},
		})
	})

	r, err := NewReranker("test-key", "m", srv.URL, log.NewNop())
	if err != nil {
		t.Fatalf("NewReranker: %v", err)
	}

	_, err = r.Rerank(context.Background(), "query", []domain.RankedResult{{Content: "a"}}, 1)
	if !errors.Is(err, domain.ErrProvider) {
		t.Errorf("got error %v, want ErrProvider", err)
	}
}

func TestNewRerankerRequiresKey(t *testing.T) {
	_, err := NewReranker("", "m", "", log.NewNop())
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("got error %v, want ErrConfiguration", err)
	}
}
