package handlers

import (
	"net/http"
	"sort"

	"github.com/pirate-baby/ATC/internal/archive"
	"github.com/pirate-baby/ATC/internal/crypto"
	"github.com/pirate-baby/ATC/internal/pool"
	"github.com/pirate-baby/ATC/internal/snapshots"
	"github.com/pirate-baby/ATC/internal/store"
)

// AdminHandler serves the debug console surfaces: the full contributor
// listing and the archived stats history. All routes require the admin role.
type AdminHandler struct {
	BaseHandler
	store        store.Store
	cipher       *crypto.TokenCipher
	archiveStore archive.Store
}

// NewAdminHandler creates a new admin handler. The archive store may be nil
// when snapshotting is disabled.
func NewAdminHandler(appStore store.Store, cipher *crypto.TokenCipher, archiveStore archive.Store) *AdminHandler {
	return &AdminHandler{
		store:        appStore,
		cipher:       cipher,
		archiveStore: archiveStore,
	}
}

// AdminTokenEntry is one row of the contributor listing
type AdminTokenEntry struct {
	pool.TokenView
	Username string `json:"username"`
}

// ListTokens handles GET /api/v1/admin/claude-tokens. Views carry masked
// previews only; the admin surface never exposes credentials either.
func (h *AdminHandler) ListTokens(w http.ResponseWriter, r *http.Request) {
	tokens, err := h.store.ListClaudeTokens(r.Context())
	if err != nil {
		h.respondWithError(w, http.StatusInternalServerError, err)
		return
	}

	entries := make([]AdminTokenEntry, 0, len(tokens))
	for i := range tokens {
		entry := AdminTokenEntry{TokenView: pool.NewTokenView(h.cipher, &tokens[i])}
		if user, err := h.store.GetUserByID(r.Context(), tokens[i].UserID); err == nil {
			entry.Username = user.Username
		}
		entries = append(entries, entry)
	}

	h.respondWithJSON(w, http.StatusOK, entries)
}

// ListSnapshots handles GET /api/v1/admin/claude-tokens/snapshots
func (h *AdminHandler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	if h.archiveStore == nil {
		h.respondWithJSON(w, http.StatusOK, []archive.ObjectInfo{})
		return
	}

	entries, err := h.archiveStore.List(r.Context(), snapshots.KeyPrefix)
	if err != nil {
		h.respondWithError(w, http.StatusInternalServerError, err)
		return
	}

	// Newest first; RFC3339 keys sort chronologically
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Key > entries[j].Key
	})

	h.respondWithJSON(w, http.StatusOK, entries)
}
