package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/balakganesh2k3/gitRAG/internal/domain"
	"github.com/balakganesh2k3/gitRAG/internal/log"
)

type wordChunker struct{ size int }

func (c wordChunker) ChunkAll(text string) []string {
	words := strings.Fields(text)
	var out []string
	for len(words) > 0 {
		n := c.size
		if n > len(words) {
			n = len(words)
		}
		out = append(out, strings.Join(words[:n], " "))
		words = words[n:]
	}
	return out
}

type fakeEmbedder struct {
	err   error
	zeros bool
	calls int
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		vec := make([]float32, 4)
		if !f.zeros {
			vec[0] = 1
		}
		out[i] = vec
	}
	return out, nil
}

type fakeChunkStore struct {
	err      error
	inserted []domain.Chunk
}

func (f *fakeChunkStore) Insert(_ context.Context, _ uuid.UUID, chunks []domain.Chunk) error {
	if f.err != nil {
		return f.err
	}
	f.inserted = append(f.inserted, chunks...)
	return nil
}

type fakeStatusStore struct {
	repo       domain.Repository
	getErr     error
	transition []string
	lastError  string
}

func (f *fakeStatusStore) Get(_ context.Context, id uuid.UUID) (domain.Repository, error) {
	if f.getErr != nil {
		return domain.Repository{}, f.getErr
	}
	return f.repo, nil
}

func (f *fakeStatusStore) MarkProcessing(_ context.Context, _ uuid.UUID) error {
	f.transition = append(f.transition, "processing")
	return nil
}

func (f *fakeStatusStore) MarkReady(_ context.Context, _ uuid.UUID) error {
	f.transition = append(f.transition, "ready")
	return nil
}

func (f *fakeStatusStore) MarkError(_ context.Context, _ uuid.UUID, message string) error {
	f.transition = append(f.transition, "error")
	f.lastError = message
	return nil
}

func newService(t *testing.T, embed *fakeEmbedder, chunks *fakeChunkStore, repos *fakeStatusStore) *Service {
	t.Helper()
	s, err := New(wordChunker{size: 3}, embed, chunks, repos, log.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestIngest(t *testing.T) {
	embed := &fakeEmbedder{}
	chunks := &fakeChunkStore{}
	repos := &fakeStatusStore{repo: domain.Repository{Status: domain.StatusPending}}
	s := newService(t, embed, chunks, repos)

	id := uuid.New()
	err := s.Ingest(context.Background(), id, []Document{
		{FileName: "README.md", Class: domain.ClassDocs, Content: "one two three four five"},
		{FileName: "main.go", Class: domain.ClassCode, Content: "package main"},
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if got, want := strings.Join(repos.transition, ","), "processing,ready"; got != want {
		t.Errorf("transitions = %s, want %s", got, want)
	}
	// 5 words at size 3 -> 2 chunks, plus 1 chunk for main.go.
	if len(chunks.inserted) != 3 {
		t.Fatalf("inserted %d chunks, want 3", len(chunks.inserted))
	}
	if chunks.inserted[0].FileName != "README.md" || chunks.inserted[0].Class != domain.ClassDocs {
		t.Errorf("first chunk = %+v", chunks.inserted[0])
	}
	if chunks.inserted[2].Class != domain.ClassCode {
		t.Errorf("code chunk class = %s", chunks.inserted[2].Class)
	}
}

func TestIngestEmbeddingFailureMarksError(t *testing.T) {
	embed := &fakeEmbedder{err: context.Canceled}
	chunks := &fakeChunkStore{}
	repos := &fakeStatusStore{}
	s := newService(t, embed, chunks, repos)

	err := s.Ingest(context.Background(), uuid.New(), []Document{
		{FileName: "a.md", Content: "some words here"},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if got, want := strings.Join(repos.transition, ","), "processing,error"; got != want {
		t.Errorf("transitions = %s, want %s", got, want)
	}
	if repos.lastError == "" {
		t.Error("error message not recorded on repository")
	}
	if len(chunks.inserted) != 0 {
		t.Errorf("inserted %d chunks after failure, want 0", len(chunks.inserted))
	}
}

func TestIngestStoreFailureMarksError(t *testing.T) {
	chunks := &fakeChunkStore{err: errors.New("connection refused")}
	repos := &fakeStatusStore{}
	s := newService(t, &fakeEmbedder{}, chunks, repos)

	err := s.Ingest(context.Background(), uuid.New(), []Document{
		{FileName: "a.md", Content: "words"},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if got, want := strings.Join(repos.transition, ","), "processing,error"; got != want {
		t.Errorf("transitions = %s, want %s", got, want)
	}
}

func TestIngestUnknownRepository(t *testing.T) {
	repos := &fakeStatusStore{getErr: domain.ErrNotFound}
	s := newService(t, &fakeEmbedder{}, &fakeChunkStore{}, repos)

	err := s.Ingest(context.Background(), uuid.New(), []Document{{FileName: "a", Content: "x"}})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
	if len(repos.transition) != 0 {
		t.Errorf("status changed for unknown repository: %v", repos.transition)
	}
}

func TestIngestValidation(t *testing.T) {
	repos := &fakeStatusStore{}
	s := newService(t, &fakeEmbedder{}, &fakeChunkStore{}, repos)

	tests := []struct {
		name string
		docs []Document
	}{
		{"no documents", nil},
		{"blank file name", []Document{{FileName: "  ", Content: "x"}}},
		{"unknown class", []Document{{FileName: "a", Class: "wiki", Content: "x"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Ingest(context.Background(), uuid.New(), tt.docs)
			if !errors.Is(err, domain.ErrValidation) {
				t.Errorf("got %v, want ErrValidation", err)
			}
		})
	}
}

func TestIngestEmptyDocumentsIsNoOp(t *testing.T) {
	embed := &fakeEmbedder{}
	chunks := &fakeChunkStore{}
	repos := &fakeStatusStore{}
	s := newService(t, embed, chunks, repos)

	err := s.Ingest(context.Background(), uuid.New(), []Document{
		{FileName: "empty.md", Content: "   "},
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if got, want := strings.Join(repos.transition, ","), "processing,ready"; got != want {
		t.Errorf("transitions = %s, want %s", got, want)
	}
	if embed.calls != 0 {
		t.Errorf("embedder called %d times for empty content, want 0", embed.calls)
	}
}
