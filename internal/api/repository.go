package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/balakganesh2k3/gitRAG/internal/domain"
)

// RepositoryStore is the registry surface the handler needs.
// Satisfied by *repository.Store.
type RepositoryStore interface {
	Create(ctx context.Context, name, owner, url string, private bool) (domain.Repository, error)
	Get(ctx context.Context, id uuid.UUID) (domain.Repository, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// RepositoryHandler handles repository registration and lifecycle
// endpoints.
type RepositoryHandler struct {
	store  RepositoryStore
	logger *slog.Logger
}

// NewRepositoryHandler creates a repository handler.
func NewRepositoryHandler(store RepositoryStore, logger *slog.Logger) *RepositoryHandler {
	return &RepositoryHandler{store: store, logger: logger}
}

// RegisterRoutes registers repository routes on the given mux.
func (h *RepositoryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/repositories", h.create)
	mux.HandleFunc("GET /api/v1/repositories/{id}", h.get)
	mux.HandleFunc("DELETE /api/v1/repositories/{id}", h.delete)
}

// createRepositoryRequest is the body for registering a repository.
type createRepositoryRequest struct {
	Name    string `json:"name"`
	Owner   string `json:"owner"`
	URL     string `json:"url"`
	Private bool   `json:"private"`
}

// repositoryResponse is the wire form of a repository.
type repositoryResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Owner        string    `json:"owner,omitempty"`
	URL          string    `json:"url,omitempty"`
	Private      bool      `json:"private"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

func toRepositoryResponse(repo domain.Repository) repositoryResponse {
	return repositoryResponse{
		ID:           repo.ID.String(),
		Name:         repo.Name,
		Owner:        repo.Owner,
		URL:          repo.URL,
		Private:      repo.Private,
		Status:       string(repo.Status),
		ErrorMessage: repo.ErrorMessage,
		CreatedAt:    repo.CreatedAt,
	}
}

func (h *RepositoryHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createRepositoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error(), h.logger)
		return
	}

	repo, err := h.store.Create(r.Context(), req.Name, req.Owner, req.URL, req.Private)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	h.logger.Info("repository registered", "id", repo.ID, "name", repo.Name)
	writeJSON(w, http.StatusCreated, toRepositoryResponse(repo), h.logger)
}

func (h *RepositoryHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, h.logger)
	if !ok {
		return
	}

	repo, err := h.store.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, toRepositoryResponse(repo), h.logger)
}

func (h *RepositoryHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	h.logger.Info("repository deleted", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

// pathUUID parses the {id} path segment, writing a 400 on failure.
func pathUUID(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "id must be a UUID", logger)
		return uuid.Nil, false
	}
	return id, true
}
