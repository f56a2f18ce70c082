package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/balakganesh2k3/gitRAG/internal/domain"
)

// PipelineRunner executes the retrieval pipeline. Satisfied by
// *retrieval.Pipeline.
type PipelineRunner interface {
	Run(ctx context.Context, q domain.Query) ([]domain.RankedResult, error)
}

// QueryHandler handles the query endpoint.
type QueryHandler struct {
	pipeline PipelineRunner
	repos    RepositoryStore
	logger   *slog.Logger
}

// NewQueryHandler creates a query handler. repos gates queries on
// repository readiness.
func NewQueryHandler(pipeline PipelineRunner, repos RepositoryStore, logger *slog.Logger) *QueryHandler {
	return &QueryHandler{pipeline: pipeline, repos: repos, logger: logger}
}

// RegisterRoutes registers query routes on the given mux.
func (h *QueryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/query", h.query)
}

type queryRequest struct {
	Message      string             `json:"message"`
	RepositoryID string             `json:"repositoryId"`
	Permissions  domain.Permissions `json:"permissions"`
}

type queryResponse struct {
	Results []domain.RankedResult `json:"results"`
}

func (h *QueryHandler) query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error(), h.logger)
		return
	}

	repoID, err := uuid.Parse(req.RepositoryID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "repositoryId must be a UUID", h.logger)
		return
	}

	repo, err := h.repos.Get(r.Context(), repoID)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	if repo.Status != domain.StatusReady {
		writeError(w, http.StatusConflict, "repository_not_ready",
			"repository status is "+string(repo.Status), h.logger)
		return
	}

	results, err := h.pipeline.Run(r.Context(), domain.Query{
		Message:      req.Message,
		RepositoryID: repoID,
		Permissions:  req.Permissions,
	})
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	if results == nil {
		results = []domain.RankedResult{}
	}

	writeJSON(w, http.StatusOK, queryResponse{Results: results}, h.logger)
}
