package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pirate-baby/ATC/internal/store"
)

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// BaseHandler provides common functionality for all handlers
type BaseHandler struct{}

// respondWithJSON writes a JSON response
func (h *BaseHandler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"Internal Server Error","message":"Failed to marshal response"}`)) // Simple fallback
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// mapError resolves a sentinel error to its HTTP status, error type, and
// default message
func mapError(err error) (int, string, string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not_found", "Resource not found"
	case errors.Is(err, store.ErrInvalidCredentialFormat):
		return http.StatusBadRequest, "invalid_credential_format", "Credential is not a Claude subscription token"
	case errors.Is(err, store.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input", "Invalid input data"
	case errors.Is(err, store.ErrAlreadyExists):
		return http.StatusConflict, "already_exists", "Resource already exists"
	case errors.Is(err, store.ErrTokenUnavailable):
		return http.StatusConflict, "token_unavailable", "Requested token is not currently usable"
	case errors.Is(err, store.ErrForbidden):
		return http.StatusForbidden, "forbidden", "Permission denied"
	case errors.Is(err, store.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized", "Unauthorized"
	case errors.Is(err, store.ErrPoolExhausted):
		return http.StatusServiceUnavailable, "pool_exhausted", "No available tokens in pool - the pool needs contributors"
	case errors.Is(err, store.ErrServiceUnavailable):
		return http.StatusServiceUnavailable, "service_unavailable", "Service temporarily unavailable"
	case errors.Is(err, store.ErrValidationTimeout):
		return http.StatusGatewayTimeout, "validation_timeout", "Credential validation timed out"
	default:
		return http.StatusInternalServerError, "internal_error", "Internal server error"
	}
}

// respondWithError sends a standard error response. Sentinel errors carry
// their canonical status; anything unrecognized is a 500.
func (h *BaseHandler) respondWithError(w http.ResponseWriter, code int, err error) {
	code, errType, message := mapError(err)

	h.respondWithJSON(w, code, ErrorResponse{
		Error:   errType,
		Message: message,
	})
}

// respondWithErrorDetail sends a mapped error with a caller-supplied message
// in place of the default
func (h *BaseHandler) respondWithErrorDetail(w http.ResponseWriter, err error, message string) {
	code, errType, fallback := mapError(err)
	if message == "" {
		message = fallback
	}

	h.respondWithJSON(w, code, ErrorResponse{
		Error:   errType,
		Message: message,
	})
}
