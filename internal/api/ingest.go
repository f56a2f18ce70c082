package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/balakganesh2k3/gitRAG/internal/domain"
	"github.com/balakganesh2k3/gitRAG/internal/ingest"
)

// Ingester runs document ingestion. Satisfied by *ingest.Service.
type Ingester interface {
	Ingest(ctx context.Context, repositoryID uuid.UUID, docs []ingest.Document) error
}

// IngestHandler handles the document ingestion endpoint.
type IngestHandler struct {
	service Ingester
	logger  *slog.Logger
}

// NewIngestHandler creates an ingest handler.
func NewIngestHandler(service Ingester, logger *slog.Logger) *IngestHandler {
	return &IngestHandler{service: service, logger: logger}
}

// RegisterRoutes registers ingest routes on the given mux.
func (h *IngestHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/ingest", h.ingest)
}

type ingestDocument struct {
	FileName string `json:"fileName"`
	Class    string `json:"class"`
	Content  string `json:"content"`
}

type ingestRequest struct {
	RepositoryID string           `json:"repositoryId"`
	Documents    []ingestDocument `json:"documents"`
}

type ingestResponse struct {
	RepositoryID string `json:"repositoryId"`
	Documents    int    `json:"documents"`
	Status       string `json:"status"`
}

// ingest runs ingestion synchronously: the response reports the final
// repository state, ready or error.
func (h *IngestHandler) ingest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error(), h.logger)
		return
	}

	repoID, err := uuid.Parse(req.RepositoryID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "repositoryId must be a UUID", h.logger)
		return
	}

	docs := make([]ingest.Document, len(req.Documents))
	for i, d := range req.Documents {
		docs[i] = ingest.Document{
			FileName: d.FileName,
			Class:    domain.ContentClass(d.Class),
			Content:  d.Content,
		}
	}

	if err := h.service.Ingest(r.Context(), repoID, docs); err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, ingestResponse{
		RepositoryID: repoID.String(),
		Documents:    len(docs),
		Status:       string(domain.StatusReady),
	}, h.logger)
}
