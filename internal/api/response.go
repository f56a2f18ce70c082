package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/balakganesh2k3/gitRAG/internal/domain"
)

// writeJSON writes a JSON response. Buffer-first so headers are only
// sent after successful encoding and a proper 500 can be returned when
// encoding fails.
func writeJSON(w http.ResponseWriter, status int, data any, logger *slog.Logger) {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(data); err != nil {
		logger.Error("encoding JSON response", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		// Client disconnects are common and expected.
		logger.Debug("writing response body", "error", err)
	}
}

// errorResponse is the JSON body for every error status.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, code, message string, logger *slog.Logger) {
	writeJSON(w, status, errorResponse{Error: code, Message: message}, logger)
}

// writeDomainError maps a taxonomy error to its HTTP status. Internal
// causes (configuration, provider, unknown) are logged but not echoed
// to the client.
func writeDomainError(w http.ResponseWriter, err error, logger *slog.Logger) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error(), logger)
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error(), logger)
	case errors.Is(err, domain.ErrRateLimited):
		w.Header().Set("Retry-After", "60")
		writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests", logger)
	case errors.Is(err, domain.ErrAuthentication):
		logger.Error("upstream authentication failed", "error", err)
		writeError(w, http.StatusUnauthorized, "authentication_failed", "upstream credential rejected", logger)
	case errors.Is(err, domain.ErrProvider):
		logger.Error("upstream provider failed", "error", err)
		writeError(w, http.StatusBadGateway, "provider_unavailable", "upstream provider error", logger)
	case errors.Is(err, domain.ErrConfiguration):
		logger.Error("configuration error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error", logger)
	default:
		logger.Error("unhandled error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error", logger)
	}
}

// decodeJSON decodes a request body into dst, rejecting unknown fields
// and oversized payloads.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 10<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	return nil
}
