package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"datematch-backend/internal/models"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// respondDeny surfaces a capability gate denial verbatim
func respondDeny(w http.ResponseWriter, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	json.NewEncoder(w).Encode(ErrorResponse{Error: "forbidden", Reason: reason})
}

// respondServiceError maps the business error taxonomy to HTTP statuses
func respondServiceError(w http.ResponseWriter, err error) {
	var (
		validation *models.ValidationError
		conflict   *models.ConflictError
		notFound   *models.NotFoundError
		denied     *models.PolicyDeniedError
		external   *models.ExternalServiceError
		stale      *models.StaleRequestError
	)
	switch {
	case errors.As(err, &validation):
		respondError(w, validation.Error(), http.StatusBadRequest)
	case errors.As(err, &conflict):
		respondError(w, conflict.Error(), http.StatusConflict)
	case errors.As(err, &notFound):
		respondError(w, notFound.Error(), http.StatusNotFound)
	case errors.As(err, &denied):
		respondDeny(w, denied.Reason)
	case errors.As(err, &external):
		respondError(w, "payment gateway unavailable", http.StatusBadGateway)
	case errors.As(err, &stale):
		respondError(w, stale.Error(), http.StatusGone)
	default:
		respondError(w, "internal error", http.StatusInternalServerError)
	}
}
