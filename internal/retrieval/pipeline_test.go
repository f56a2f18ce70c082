package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/balakganesh2k3/gitRAG/internal/domain"
	"github.com/balakganesh2k3/gitRAG/internal/log"
	"github.com/balakganesh2k3/gitRAG/internal/vectorstore"
)

type stubOptimizer struct {
	out string
	err error
}

func (s *stubOptimizer) Optimize(_ context.Context, query string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if s.out != "" {
		return s.out, nil
	}
	return query, nil
}

type stubEmbedder struct {
	vec []float32
	err error
	got string
}

func (s *stubEmbedder) EmbedOne(_ context.Context, text string) ([]float32, error) {
	s.got = text
	return s.vec, s.err
}

type stubSearcher struct {
	results []domain.RankedResult
	err     error
	called  bool
	gotOpts vectorstore.SearchOptions
}

func (s *stubSearcher) Search(_ context.Context, _ []float32, opts vectorstore.SearchOptions) ([]domain.RankedResult, error) {
	s.called = true
	s.gotOpts = opts
	return s.results, s.err
}

func allowAll() domain.Permissions {
	return domain.Permissions{AllowCode: true, AllowDocs: true, AllowIssues: true}
}

type stubReranker struct {
	results  []domain.RankedResult
	err      error
	called   bool
	gotQuery string
	gotTopN  int
}

func (s *stubReranker) Rerank(_ context.Context, query string, candidates []domain.RankedResult, topN int) ([]domain.RankedResult, error) {
	s.called = true
	s.gotQuery = query
	s.gotTopN = topN
	if s.err != nil {
		return nil, s.err
	}
	if s.results != nil {
		return s.results, nil
	}
	if topN > len(candidates) {
		topN = len(candidates)
	}
	return candidates[:topN], nil
}

func testConfig() PipelineConfig {
	return PipelineConfig{RetrieveLimit: 25, MinSimilarity: 0.2, RerankTopN: 5}
}

func newTestPipeline(t *testing.T, o QueryOptimizer, e Embedder, s Searcher, r DocumentReranker) *Pipeline {
	t.Helper()
	p, err := NewPipeline(o, e, s, r, testConfig(), log.NewNop())
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	return p
}

func TestPipelineRun(t *testing.T) {
	repoID := uuid.New()
	searcher := &stubSearcher{results: []domain.RankedResult{
		{Content: "a", Score: 0.9},
		{Content: "b", Score: 0.8},
		{Content: "c", Score: 0.7},
	}}
	reranker := &stubReranker{results: []domain.RankedResult{
		{Content: "c", Score: 0.97},
		{Content: "a", Score: 0.61},
	}}
	p := newTestPipeline(t,
		&stubOptimizer{out: "optimized form"},
		&stubEmbedder{vec: make([]float32, 256)},
		searcher,
		reranker,
	)

	got, err := p.Run(context.Background(), domain.Query{
		Message:      "what does the scheduler do?",
		RepositoryID: repoID,
		Permissions:  domain.Permissions{AllowCode: true, AllowDocs: true},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(got) != 2 || got[0].Content != "c" {
		t.Errorf("got %+v, want reranker output", got)
	}

	opts := searcher.gotOpts
	if opts.RepositoryID == nil || *opts.RepositoryID != repoID {
		t.Errorf("search not scoped to repository: %v", opts.RepositoryID)
	}
	if opts.Limit != 25 || opts.MinSimilarity != 0.2 {
		t.Errorf("search opts = %+v, want limit 25 floor 0.2", opts)
	}
	if len(opts.Classes) != 2 {
		t.Errorf("classes = %v, want code+docs", opts.Classes)
	}

	// The optimized rewrite, not the raw message, drives reranking.
	if reranker.gotQuery != "optimized form" {
		t.Errorf("reranker saw query %q, want optimized form", reranker.gotQuery)
	}
	if reranker.gotTopN != 5 {
		t.Errorf("reranker topN = %d, want 5", reranker.gotTopN)
	}
}

func TestPipelineMessageValidation(t *testing.T) {
	reranker := &stubReranker{}
	p := newTestPipeline(t, &stubOptimizer{}, &stubEmbedder{vec: []float32{1}}, &stubSearcher{}, reranker)

	tests := []struct {
		name    string
		message string
	}{
		{"empty", ""},
		{"whitespace only", "   \n\t"},
		{"too long", strings.Repeat("x", domain.MaxQueryLength+1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Run(context.Background(), domain.Query{Message: tt.message})
			if !errors.Is(err, domain.ErrValidation) {
				t.Errorf("got error %v, want ErrValidation", err)
			}
		})
	}

	// Exactly at the limit passes validation.
	t.Run("at limit", func(t *testing.T) {
		_, err := p.Run(context.Background(), domain.Query{
			Message:     strings.Repeat("x", domain.MaxQueryLength),
			Permissions: allowAll(),
		})
		if errors.Is(err, domain.ErrValidation) {
			t.Errorf("message of exactly %d runes rejected: %v", domain.MaxQueryLength, err)
		}
	})
}

func TestPipelineStopsAtFirstFailure(t *testing.T) {
	authErr := domain.ErrAuthentication

	t.Run("optimizer failure", func(t *testing.T) {
		reranker := &stubReranker{}
		p := newTestPipeline(t, &stubOptimizer{err: authErr}, &stubEmbedder{}, &stubSearcher{}, reranker)
		_, err := p.Run(context.Background(), domain.Query{Message: "q", Permissions: allowAll()})
		if !errors.Is(err, domain.ErrAuthentication) {
			t.Errorf("got %v, want ErrAuthentication", err)
		}
		if reranker.called {
			t.Error("reranker ran after optimizer failure")
		}
	})

	t.Run("search failure", func(t *testing.T) {
		reranker := &stubReranker{}
		p := newTestPipeline(t, &stubOptimizer{}, &stubEmbedder{vec: []float32{1}},
			&stubSearcher{err: errors.New("connection refused")}, reranker)
		_, err := p.Run(context.Background(), domain.Query{Message: "q", Permissions: allowAll()})
		if err == nil {
			t.Fatal("expected error")
		}
		if reranker.called {
			t.Error("reranker ran after search failure")
		}
	})
}

func TestPipelineEmptyCandidates(t *testing.T) {
	reranker := &stubReranker{}
	p := newTestPipeline(t, &stubOptimizer{}, &stubEmbedder{vec: []float32{1}}, &stubSearcher{}, reranker)

	got, err := p.Run(context.Background(), domain.Query{Message: "obscure topic", Permissions: allowAll()})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got != nil {
		t.Errorf("got %v, want nil", got)
	}
	if reranker.called {
		t.Error("reranker should not run with no candidates")
	}
}

func TestPipelineAllClassesDenied(t *testing.T) {
	searcher := &stubSearcher{results: []domain.RankedResult{{Content: "secret", Score: 0.9}}}
	reranker := &stubReranker{}
	p := newTestPipeline(t, &stubOptimizer{}, &stubEmbedder{vec: []float32{1}}, searcher, reranker)

	// Denying every content class grants access to nothing; the store
	// must never see the empty class list it would read as "no filter".
	got, err := p.Run(context.Background(), domain.Query{
		Message:     "what does the scheduler do?",
		Permissions: domain.Permissions{},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("all-denied query returned %d results, want none", len(got))
	}
	if searcher.called {
		t.Error("search ran despite every class being denied")
	}
	if reranker.called {
		t.Error("reranker ran despite every class being denied")
	}
}

func TestPipelineRunIdempotent(t *testing.T) {
	searcher := &stubSearcher{results: []domain.RankedResult{
		{Content: "a", Score: 0.9},
		{Content: "b", Score: 0.8},
		{Content: "c", Score: 0.7},
	}}
	p := newTestPipeline(t, &stubOptimizer{out: "optimized form"},
		&stubEmbedder{vec: make([]float32, 256)}, searcher, &stubReranker{})

	q := domain.Query{Message: "what does the scheduler do?", Permissions: allowAll()}

	first, err := p.Run(context.Background(), q)
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	second, err := p.Run(context.Background(), q)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}

	// Same query against unchanged store state yields the same ordered
	// results.
	if len(first) != len(second) {
		t.Fatalf("result counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("result %d differs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestNewPipelineValidation(t *testing.T) {
	o, e, s, r := &stubOptimizer{}, &stubEmbedder{}, &stubSearcher{}, &stubReranker{}

	tests := []struct {
		name string
		cfg  PipelineConfig
	}{
		{"zero limit", PipelineConfig{RetrieveLimit: 0, MinSimilarity: 0.2, RerankTopN: 5}},
		{"similarity out of range", PipelineConfig{RetrieveLimit: 25, MinSimilarity: 1.5, RerankTopN: 5}},
		{"topN above limit", PipelineConfig{RetrieveLimit: 5, MinSimilarity: 0.2, RerankTopN: 10}},
		{"zero topN", PipelineConfig{RetrieveLimit: 25, MinSimilarity: 0.2, RerankTopN: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPipeline(o, e, s, r, tt.cfg, log.NewNop())
			if !errors.Is(err, domain.ErrConfiguration) {
				t.Errorf("got %v, want ErrConfiguration", err)
			}
		})
	}

	if _, err := NewPipeline(nil, e, s, r, testConfig(), log.NewNop()); err == nil {
		t.Error("expected error for nil stage")
	}
}

func TestRetrieve(t *testing.T) {
	model := &stubModel{text: "optimized"}
	opt, err := NewOptimizer(model, true, log.NewNop())
	if err != nil {
		t.Fatalf("NewOptimizer: %v", err)
	}
	embedder := &stubEmbedder{vec: make([]float32, 256)}
	searcher := &stubSearcher{results: []domain.RankedResult{{Content: "hit", Score: 0.8}}}

	r, err := NewRetriever(opt, embedder, searcher, log.NewNop())
	if err != nil {
		t.Fatalf("NewRetriever: %v", err)
	}

	got, err := r.Retrieve(context.Background(), "raw question", vectorstore.SearchOptions{Limit: 10, MinSimilarity: 0.2})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(got) != 1 || got[0].Content != "hit" {
		t.Errorf("got %+v, want single hit", got)
	}
	if embedder.got != "optimized" {
		t.Errorf("embedded %q, want the optimized rewrite", embedder.got)
	}
}

func TestRetrievePropagatesOptimizerError(t *testing.T) {
	model := &stubModel{err: errors.New("401 Unauthorized")}
	opt, err := NewOptimizer(model, true, log.NewNop())
	if err != nil {
		t.Fatalf("NewOptimizer: %v", err)
	}

	r, err := NewRetriever(opt, &stubEmbedder{}, &stubSearcher{}, log.NewNop())
	if err != nil {
		t.Fatalf("NewRetriever: %v", err)
	}

	_, err = r.Retrieve(context.Background(), "q", vectorstore.SearchOptions{Limit: 10})
	if !errors.Is(err, domain.ErrAuthentication) {
		t.Errorf("got %v, want ErrAuthentication", err)
	}
}
