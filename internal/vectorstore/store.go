// Package vectorstore persists document chunks with their embeddings
// and answers cosine-similarity queries, backed by PostgreSQL +
// pgvector.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/balakganesh2k3/gitRAG/internal/domain"
)

// querier is the common interface satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const insertChunkSQL = `INSERT INTO chunks (repository_id, file_name, content_class, content, embedding)
	VALUES ($1, $2, $3, $4, $5)`

// Store manages chunk rows and vector search.
//
// Store is safe for concurrent use by multiple goroutines: concurrent
// inserts for different files never touch the same rows, and reads
// during writes see whatever subset has committed.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New creates a chunk Store.
func New(pool *pgxpool.Pool, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}, nil
}

// ChunkFileName returns the stored file name for the i-th chunk of a
// source file. The ordinal suffix keeps chunk identity unique within
// a repository, matching the (repository, file, ordinal) identity.
func ChunkFileName(fileName string, ordinal int) string {
	return fmt.Sprintf("%s-chunk-%d", fileName, ordinal)
}

// Insert persists one row per chunk inside a single transaction:
// either every chunk of the batch lands or none do, so a cancelled
// ingestion never leaves a partial file behind.
//
// Chunks are grouped by source file name; each file's chunks receive
// consecutive ordinal suffixes in slice order. Existing rows for the
// same (repository, file) pair are replaced, which is what makes
// re-ingesting a file the remediation path for zero-embedding rows.
func (s *Store) Insert(ctx context.Context, repositoryID uuid.UUID, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning chunk transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Debug("chunk transaction rollback", "error", rbErr)
		}
	}()

	// Replace any prior rows of the source files being written.
	for _, file := range sourceFiles(chunks) {
		if err := deleteFileChunks(ctx, tx, repositoryID, file); err != nil {
			return err
		}
	}

	ordinals := make(map[string]int, 4)
	for _, chunk := range chunks {
		class := chunk.Class
		if class == "" {
			class = domain.ClassDocs
		}
		ordinal := ordinals[chunk.FileName]
		ordinals[chunk.FileName] = ordinal + 1

		_, err := tx.Exec(ctx, insertChunkSQL,
			repositoryID,
			ChunkFileName(chunk.FileName, ordinal),
			string(class),
			chunk.Content,
			pgvector.NewVector(chunk.Embedding),
		)
		if err != nil {
			return fmt.Errorf("inserting chunk %q: %w", ChunkFileName(chunk.FileName, ordinal), err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing chunk transaction: %w", err)
	}

	s.logger.Debug("inserted chunks", "repository_id", repositoryID, "count", len(chunks))
	return nil
}

// sourceFiles returns the distinct source file names in input order.
func sourceFiles(chunks []domain.Chunk) []string {
	seen := make(map[string]struct{}, 4)
	var files []string
	for _, c := range chunks {
		if _, ok := seen[c.FileName]; !ok {
			seen[c.FileName] = struct{}{}
			files = append(files, c.FileName)
		}
	}
	return files
}

// deleteFileChunks removes all rows belonging to one source file.
func deleteFileChunks(ctx context.Context, q querier, repositoryID uuid.UUID, fileName string) error {
	pattern := likeEscape(fileName) + "-chunk-%"
	if _, err := q.Exec(ctx,
		`DELETE FROM chunks WHERE repository_id = $1 AND file_name LIKE $2`,
		repositoryID, pattern,
	); err != nil {
		return fmt.Errorf("deleting prior chunks of %q: %w", fileName, err)
	}
	return nil
}

// likeEscape escapes LIKE metacharacters in a literal file name.
func likeEscape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// SearchOptions filter a similarity search.
type SearchOptions struct {
	// RepositoryID restricts results to one repository when non-nil.
	RepositoryID *uuid.UUID

	// Classes restricts results to the given content classes when
	// non-empty (query-time permission scoping).
	Classes []domain.ContentClass

	// Limit truncates the eligible set after ordering.
	Limit int

	// MinSimilarity is a strict lower bound: only rows with
	// similarity > MinSimilarity are eligible.
	MinSimilarity float64
}

// Search returns chunk contents ordered by cosine similarity to the
// query embedding, descending. Similarity is 1 - cosine distance.
// Ties break by insertion order (row id), keeping results
// deterministic for identical store states.
func (s *Store) Search(ctx context.Context, queryEmbedding []float32, opts SearchOptions) ([]domain.RankedResult, error) {
	if opts.Limit < 1 {
		return nil, fmt.Errorf("limit must be >= 1, got %d", opts.Limit)
	}

	query := strings.Builder{}
	query.WriteString(`SELECT content, 1 - (embedding <=> $1) AS similarity
		FROM chunks
		WHERE 1 - (embedding <=> $1) > $2`)
	args := []any{pgvector.NewVector(queryEmbedding), opts.MinSimilarity}

	if opts.RepositoryID != nil {
		args = append(args, *opts.RepositoryID)
		fmt.Fprintf(&query, " AND repository_id = $%d", len(args))
	}
	if len(opts.Classes) > 0 {
		classes := make([]string, len(opts.Classes))
		for i, c := range opts.Classes {
			classes[i] = string(c)
		}
		args = append(args, classes)
		fmt.Fprintf(&query, " AND content_class = ANY($%d)", len(args))
	}

	args = append(args, opts.Limit)
	fmt.Fprintf(&query, " ORDER BY similarity DESC, id ASC LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("searching chunks: %w", err)
	}
	defer rows.Close()

	var results []domain.RankedResult
	for rows.Next() {
		var r domain.RankedResult
		if err := rows.Scan(&r.Content, &r.Score); err != nil {
			return nil, fmt.Errorf("scanning chunk row: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading chunk rows: %w", err)
	}

	return results, nil
}

// CountByRepository returns the number of stored chunks for a repository.
func (s *Store) CountByRepository(ctx context.Context, repositoryID uuid.UUID) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM chunks WHERE repository_id = $1`, repositoryID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return count, nil
}
