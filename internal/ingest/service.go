// Package ingest drives the write path of the pipeline: it chunks
// source documents, embeds the chunks, stores them, and moves the
// owning repository through its lifecycle states.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/balakganesh2k3/gitRAG/internal/domain"
	"github.com/balakganesh2k3/gitRAG/internal/embedding"
)

// Chunker splits a document into bounded-size pieces.
type Chunker interface {
	ChunkAll(text string) []string
}

// Embedder turns a batch of texts into fixed-dimension vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// ChunkStore persists embedded chunks.
type ChunkStore interface {
	Insert(ctx context.Context, repositoryID uuid.UUID, chunks []domain.Chunk) error
}

// StatusStore moves a repository through its lifecycle.
type StatusStore interface {
	Get(ctx context.Context, id uuid.UUID) (domain.Repository, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	MarkReady(ctx context.Context, id uuid.UUID) error
	MarkError(ctx context.Context, id uuid.UUID, message string) error
}

// Document is one source file queued for ingestion.
type Document struct {
	FileName string
	Class    domain.ContentClass
	Content  string
}

// Service ingests documents for a repository.
type Service struct {
	chunker Chunker
	embed   Embedder
	chunks  ChunkStore
	repos   StatusStore
	logger  *slog.Logger
}

// New creates an ingest Service.
func New(chunker Chunker, embed Embedder, chunks ChunkStore, repos StatusStore, logger *slog.Logger) (*Service, error) {
	if chunker == nil || embed == nil || chunks == nil || repos == nil {
		return nil, errors.New("all ingest dependencies are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{chunker: chunker, embed: embed, chunks: chunks, repos: repos, logger: logger}, nil
}

// Ingest processes docs for the repository: marks it processing,
// chunks and embeds every document, stores the results, and marks the
// repository ready. Any failure after the processing transition marks
// the repository errored with the failure message; re-running Ingest
// for the same documents is the remediation path, since inserts
// replace prior chunks of the same file.
func (s *Service) Ingest(ctx context.Context, repositoryID uuid.UUID, docs []Document) error {
	if _, err := s.repos.Get(ctx, repositoryID); err != nil {
		return err
	}
	if err := validateDocuments(docs); err != nil {
		return err
	}

	if err := s.repos.MarkProcessing(ctx, repositoryID); err != nil {
		return fmt.Errorf("marking repository processing: %w", err)
	}

	if err := s.ingest(ctx, repositoryID, docs); err != nil {
		if markErr := s.repos.MarkError(ctx, repositoryID, err.Error()); markErr != nil {
			s.logger.Error("recording ingest failure", "repository_id", repositoryID, "error", markErr)
		}
		return err
	}

	if err := s.repos.MarkReady(ctx, repositoryID); err != nil {
		return fmt.Errorf("marking repository ready: %w", err)
	}
	return nil
}

func (s *Service) ingest(ctx context.Context, repositoryID uuid.UUID, docs []Document) error {
	var all []domain.Chunk
	for _, doc := range docs {
		pieces := s.chunker.ChunkAll(doc.Content)
		if len(pieces) == 0 {
			s.logger.Warn("document produced no chunks", "file", doc.FileName)
			continue
		}

		vectors, err := s.embed.Embed(ctx, pieces)
		if err != nil {
			return fmt.Errorf("embedding %s: %w", doc.FileName, err)
		}

		zeroes := 0
		for i, piece := range pieces {
			if embedding.IsZero(vectors[i]) {
				zeroes++
			}
			all = append(all, domain.Chunk{
				RepositoryID: repositoryID,
				FileName:     doc.FileName,
				Class:        doc.Class,
				Content:      piece,
				Embedding:    vectors[i],
			})
		}
		if zeroes > 0 {
			s.logger.Warn("stored chunks with placeholder embeddings",
				"file", doc.FileName, "count", zeroes, "total", len(pieces))
		}
	}

	// Every document was empty: nothing to store, but the run is a
	// successful no-op rather than a failure.
	if len(all) == 0 {
		s.logger.Info("ingest produced no chunks", "repository_id", repositoryID)
		return nil
	}

	if err := s.chunks.Insert(ctx, repositoryID, all); err != nil {
		return fmt.Errorf("storing chunks: %w", err)
	}

	s.logger.Info("ingest complete", "repository_id", repositoryID,
		"documents", len(docs), "chunks", len(all))
	return nil
}

func validateDocuments(docs []Document) error {
	if len(docs) == 0 {
		return fmt.Errorf("%w: no documents to ingest", domain.ErrValidation)
	}
	for _, doc := range docs {
		if strings.TrimSpace(doc.FileName) == "" {
			return fmt.Errorf("%w: document file name must not be empty", domain.ErrValidation)
		}
		if doc.Class != "" {
			switch doc.Class {
			case domain.ClassCode, domain.ClassDocs, domain.ClassIssues:
			default:
				return fmt.Errorf("%w: unknown content class %q", domain.ErrValidation, doc.Class)
			}
		}
	}
	return nil
}
