package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/pirate-baby/ATC/internal/metrics"
	"github.com/pirate-baby/ATC/internal/pool"
	"github.com/pirate-baby/ATC/internal/store"
)

// InternalHandler serves the service-token allocation surface. This is the
// one place where plaintext credentials cross the wire, so it never shares
// routes with the user-facing API.
type InternalHandler struct {
	BaseHandler
	allocator *pool.Allocator
}

// NewInternalHandler creates a new internal allocation handler
func NewInternalHandler(allocator *pool.Allocator) *InternalHandler {
	return &InternalHandler{allocator: allocator}
}

// AcquireRequest optionally names a specific token, bypassing rotation.
// Used by the debug console's token override.
type AcquireRequest struct {
	TokenID string `json:"token_id,omitempty"`
}

// ReportRequest carries the outcome of using an acquired token
type ReportRequest struct {
	TokenID string `json:"token_id"`
	Outcome string `json:"outcome"`
	// ResetHint is the upstream-provided rate limit reset time, if any
	ResetHint *time.Time `json:"reset_hint,omitempty"`
	// Error is the diagnostic for invalid outcomes
	Error string `json:"error,omitempty"`
}

// Acquire handles POST /internal/v1/claude-tokens/acquire
func (h *InternalHandler) Acquire(w http.ResponseWriter, r *http.Request) {
	var req AcquireRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.respondWithError(w, http.StatusBadRequest, store.ErrInvalidInput)
			return
		}
	}

	selection := "rotation"
	if req.TokenID != "" {
		selection = "explicit"
	}

	acquired, err := h.allocator.Acquire(r.Context(), req.TokenID)
	if err != nil {
		metrics.RecordAcquire(selection, acquireResult(err))
		switch {
		case errors.Is(err, store.ErrPoolExhausted):
			h.respondWithErrorDetail(w, err, "No tokens available in the pool - ask your team to contribute Claude subscription tokens")
		case errors.Is(err, store.ErrTokenUnavailable):
			h.respondWithErrorDetail(w, err, "Requested token is not currently eligible")
		default:
			h.respondWithError(w, http.StatusInternalServerError, err)
		}
		return
	}

	metrics.RecordAcquire(selection, "ok")
	h.respondWithJSON(w, http.StatusOK, acquired)
}

// Report handles POST /internal/v1/claude-tokens/report. A report against a
// deleted token succeeds as a no-op, so executors never have to special-case
// a contributor withdrawing mid-request.
func (h *InternalHandler) Report(w http.ResponseWriter, r *http.Request) {
	var req ReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, store.ErrInvalidInput)
		return
	}

	if req.TokenID == "" {
		h.respondWithErrorDetail(w, store.ErrInvalidInput, "token_id is required")
		return
	}

	outcome := pool.Outcome(req.Outcome)
	switch outcome {
	case pool.OutcomeSuccess, pool.OutcomeRateLimited, pool.OutcomeInvalid:
	default:
		h.respondWithErrorDetail(w, store.ErrInvalidInput, "outcome must be one of: success, rate_limited, invalid")
		return
	}

	err := h.allocator.Report(r.Context(), req.TokenID, pool.UsageReport{
		Outcome:   outcome,
		ResetHint: req.ResetHint,
		Message:   req.Error,
	})
	if err != nil {
		h.respondWithError(w, http.StatusInternalServerError, err)
		return
	}

	metrics.RecordUsageReport(req.Outcome)
	w.WriteHeader(http.StatusNoContent)
}

// acquireResult maps an acquire error to its metric label
func acquireResult(err error) string {
	switch {
	case errors.Is(err, store.ErrPoolExhausted):
		return "pool_exhausted"
	case errors.Is(err, store.ErrTokenUnavailable):
		return "token_unavailable"
	case errors.Is(err, store.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
