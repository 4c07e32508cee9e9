// Package httputil centralizes JSON response writing and error mapping for
// HTTP handlers.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"veritas/internal/audit/models"
	"veritas/pkg/platform/sentinel"
)

type errorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// WriteJSON writes v as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps a domain error to an HTTP status and a stable error code.
// Internal failures never leak their description to the client.
func WriteError(w http.ResponseWriter, err error) {
	var (
		ve *models.ValidationError
		pe *models.PersistenceError
	)
	switch {
	case errors.As(err, &ve):
		WriteJSON(w, http.StatusBadRequest, errorResponse{Error: "bad_request", Description: ve.Error()})
	case errors.Is(err, models.ErrUnsupportedPayloadType):
		WriteJSON(w, http.StatusBadRequest, errorResponse{Error: "bad_request", Description: err.Error()})
	case errors.Is(err, models.ErrChainContinuity):
		WriteJSON(w, http.StatusConflict, errorResponse{Error: "conflict", Description: "chain tip moved, retry the submission"})
	case errors.Is(err, sentinel.ErrNotFound):
		WriteJSON(w, http.StatusNotFound, errorResponse{Error: "not_found"})
	case errors.As(err, &pe), errors.Is(err, sentinel.ErrUnavailable):
		WriteJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "unavailable"})
	default:
		WriteJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal_error"})
	}
}
