// Package repository manages registered repositories and their
// ingestion lifecycle status.
package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/balakganesh2k3/gitRAG/internal/domain"
)

const repositoryCols = `id, name, owner, url, private, status, error_message, created_at`

// Store persists repositories. Status transitions are explicit calls
// made by the ingestion pipeline on completion or failure; nothing
// polls.
//
// Store is safe for concurrent use.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New creates a repository Store.
func New(pool *pgxpool.Pool, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Create registers a repository in the pending state and returns it.
func (s *Store) Create(ctx context.Context, name, owner, url string, private bool) (domain.Repository, error) {
	if strings.TrimSpace(name) == "" {
		return domain.Repository{}, fmt.Errorf("%w: repository name is required", domain.ErrValidation)
	}

	repo := domain.Repository{
		ID:      uuid.New(),
		Name:    name,
		Owner:   owner,
		URL:     url,
		Private: private,
		Status:  domain.StatusPending,
	}

	err := s.pool.QueryRow(ctx,
		`INSERT INTO repositories (id, name, owner, url, private, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at`,
		repo.ID, repo.Name, repo.Owner, repo.URL, repo.Private, string(repo.Status),
	).Scan(&repo.CreatedAt)
	if err != nil {
		return domain.Repository{}, fmt.Errorf("creating repository: %w", err)
	}

	s.logger.Info("repository registered", "id", repo.ID, "name", repo.Name)
	return repo, nil
}

// Get returns a repository by id, or domain.ErrNotFound.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (domain.Repository, error) {
	var (
		repo      domain.Repository
		status    string
		createdAt time.Time
	)
	err := s.pool.QueryRow(ctx,
		`SELECT `+repositoryCols+` FROM repositories WHERE id = $1`, id,
	).Scan(&repo.ID, &repo.Name, &repo.Owner, &repo.URL, &repo.Private, &status, &repo.ErrorMessage, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Repository{}, fmt.Errorf("%w: repository %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return domain.Repository{}, fmt.Errorf("getting repository: %w", err)
	}

	repo.Status = domain.Status(status)
	repo.CreatedAt = createdAt
	return repo, nil
}

// Delete removes a repository; its chunks cascade at the schema level.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM repositories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting repository: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: repository %s", domain.ErrNotFound, id)
	}

	s.logger.Info("repository deleted", "id", id)
	return nil
}

// MarkProcessing transitions a repository to processing at ingestion start.
func (s *Store) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	return s.setStatus(ctx, id, domain.StatusProcessing, "")
}

// MarkReady transitions a repository to ready. Clears any prior error.
func (s *Store) MarkReady(ctx context.Context, id uuid.UUID) error {
	return s.setStatus(ctx, id, domain.StatusReady, "")
}

// MarkError transitions a repository to error with a stored message.
func (s *Store) MarkError(ctx context.Context, id uuid.UUID, message string) error {
	return s.setStatus(ctx, id, domain.StatusError, message)
}

func (s *Store) setStatus(ctx context.Context, id uuid.UUID, status domain.Status, message string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE repositories SET status = $1, error_message = $2 WHERE id = $3`,
		string(status), message, id,
	)
	if err != nil {
		return fmt.Errorf("updating repository status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: repository %s", domain.ErrNotFound, id)
	}

	s.logger.Debug("repository status updated", "id", id, "status", status)
	return nil
}
