package handlers

import (
	"net/http"
	"time"

	"github.com/pirate-baby/ATC/internal/metrics"
	"github.com/pirate-baby/ATC/internal/pool"
)

// PoolHandler serves the anonymized pool dashboard endpoints
type PoolHandler struct {
	BaseHandler
}

// NewPoolHandler creates a new pool handler
func NewPoolHandler() *PoolHandler {
	return &PoolHandler{}
}

// GetPoolStatus handles GET /api/v1/claude-tokens/pool/status
func (h *PoolHandler) GetPoolStatus(w http.ResponseWriter, r *http.Request) {
	status, err := pool.PoolStatus(r.Context(), time.Now().UTC())
	if err != nil {
		h.respondWithError(w, http.StatusInternalServerError, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, status)
}

// GetPoolStats handles GET /api/v1/claude-tokens/pool/stats. Stats are
// computed from the store on every call; nothing is cached.
func (h *PoolHandler) GetPoolStats(w http.ResponseWriter, r *http.Request) {
	stats, err := pool.PoolStats(r.Context(), time.Now().UTC())
	if err != nil {
		h.respondWithError(w, http.StatusInternalServerError, err)
		return
	}

	metrics.UpdatePoolGauges(
		float64(stats.Status.ActiveTokens),
		float64(stats.Status.RateLimitedTokens),
		float64(stats.Status.InvalidTokens),
		float64(stats.Status.TotalRequestsServed),
		stats.FairnessScore,
	)

	h.respondWithJSON(w, http.StatusOK, stats)
}
