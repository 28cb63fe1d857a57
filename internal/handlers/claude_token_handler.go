package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/pirate-baby/ATC/internal/checkauth"
	"github.com/pirate-baby/ATC/internal/claudecli"
	"github.com/pirate-baby/ATC/internal/crypto"
	"github.com/pirate-baby/ATC/internal/events"
	"github.com/pirate-baby/ATC/internal/metrics"
	"github.com/pirate-baby/ATC/internal/pool"
	"github.com/pirate-baby/ATC/internal/store"
	"github.com/pirate-baby/ATC/internal/store/models"
)

// minClaudeTokenLength rejects values too short to be a real subscription
// token before any crypto or network work happens.
const minClaudeTokenLength = 40

// ClaudeTokenHandler handles contributed pool credential HTTP requests
type ClaudeTokenHandler struct {
	BaseHandler
	store       store.Store
	cipher      *crypto.TokenCipher
	validator   claudecli.Validator
	broadcaster *events.Broadcaster
}

// NewClaudeTokenHandler creates a new claude token handler
func NewClaudeTokenHandler(appStore store.Store, cipher *crypto.TokenCipher, validator claudecli.Validator, broadcaster *events.Broadcaster) *ClaudeTokenHandler {
	return &ClaudeTokenHandler{
		store:       appStore,
		cipher:      cipher,
		validator:   validator,
		broadcaster: broadcaster,
	}
}

// CreateClaudeTokenRequest represents the payload for contributing a token
type CreateClaudeTokenRequest struct {
	Name  string `json:"name"`
	Token string `json:"token"`
}

// UpdateClaudeTokenRequest represents the payload for updating a contribution.
// Nil fields are left untouched.
type UpdateClaudeTokenRequest struct {
	Name  *string `json:"name,omitempty"`
	Token *string `json:"token,omitempty"`
}

// ValidateClaudeTokenFormat applies the cheap shape checks that run before
// any encryption or network call. It returns the trimmed credential.
func ValidateClaudeTokenFormat(token string) (string, string) {
	value := strings.TrimSpace(token)

	if strings.HasPrefix(value, "sk-ant-api") {
		return "", "Invalid token type: this looks like an Anthropic API key (sk-ant-api), " +
			"but the pool requires Claude Code subscription tokens (sk-ant-sid). " +
			"Generate one with 'claude setup-token' from a Claude Pro or Max subscription."
	}
	if !strings.HasPrefix(value, "sk-ant-sid") {
		return "", "Invalid token format: expected a Claude Code subscription token starting " +
			"with 'sk-ant-sid'. Generate one with 'claude setup-token'. Do not use API keys " +
			"from the Anthropic console."
	}
	if len(value) < minClaudeTokenLength {
		return "", "Invalid token format: value is too short to be a Claude subscription token"
	}
	return value, ""
}

// publish emits a pool event when a broadcaster is wired
func (h *ClaudeTokenHandler) publish(eventType events.Type, view pool.TokenView) {
	if h.broadcaster != nil {
		h.broadcaster.Publish(eventType, view)
	}
}

// CreateToken handles POST /api/v1/claude-tokens
func (h *ClaudeTokenHandler) CreateToken(w http.ResponseWriter, r *http.Request) {
	var req CreateClaudeTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, store.ErrInvalidInput)
		return
	}

	user := checkauth.GetUserFromContext(r.Context())
	if user == nil {
		h.respondWithError(w, http.StatusUnauthorized, store.ErrUnauthorized)
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		h.respondWithErrorDetail(w, store.ErrInvalidInput, "Name cannot be empty")
		return
	}

	credential, problem := ValidateClaudeTokenFormat(req.Token)
	if problem != "" {
		h.respondWithErrorDetail(w, store.ErrInvalidCredentialFormat, problem)
		return
	}

	encrypted, err := h.cipher.EncryptToken(credential)
	if err != nil {
		h.respondWithError(w, http.StatusInternalServerError, err)
		return
	}

	token := &models.ClaudeToken{
		UserID:         user.UserID,
		Name:           name,
		EncryptedToken: encrypted,
		Status:         models.ClaudeTokenStatusActive,
		RequestCount:   0,
	}

	if err := h.store.CreateClaudeToken(r.Context(), token); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			h.respondWithErrorDetail(w, err, "You already have a token. Use PATCH to update or DELETE to remove it first.")
			return
		}
		h.respondWithError(w, http.StatusInternalServerError, err)
		return
	}

	view := pool.NewTokenView(h.cipher, token)
	h.publish(events.TypeTokenCreated, view)
	h.respondWithJSON(w, http.StatusCreated, view)
}

// GetMyToken handles GET /api/v1/claude-tokens/me. Having no token is not an
// error; the response is a 200 with a null body.
func (h *ClaudeTokenHandler) GetMyToken(w http.ResponseWriter, r *http.Request) {
	user := checkauth.GetUserFromContext(r.Context())
	if user == nil {
		h.respondWithError(w, http.StatusUnauthorized, store.ErrUnauthorized)
		return
	}

	token, err := h.store.GetClaudeTokenByOwner(r.Context(), user.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.respondWithJSON(w, http.StatusOK, nil)
			return
		}
		h.respondWithError(w, http.StatusInternalServerError, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, pool.NewTokenView(h.cipher, token))
}

// UpdateMyToken handles PATCH /api/v1/claude-tokens/me. Replacing the secret
// resets status and diagnostics; a name-only change touches nothing else.
func (h *ClaudeTokenHandler) UpdateMyToken(w http.ResponseWriter, r *http.Request) {
	var req UpdateClaudeTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, store.ErrInvalidInput)
		return
	}

	user := checkauth.GetUserFromContext(r.Context())
	if user == nil {
		h.respondWithError(w, http.StatusUnauthorized, store.ErrUnauthorized)
		return
	}

	token, err := h.store.GetClaudeTokenByOwner(r.Context(), user.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.respondWithErrorDetail(w, err, "You don't have a token. Use POST to add one.")
			return
		}
		h.respondWithError(w, http.StatusInternalServerError, err)
		return
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			h.respondWithErrorDetail(w, store.ErrInvalidInput, "Name cannot be empty")
			return
		}
		token.Name = name
	}

	if req.Token != nil {
		credential, problem := ValidateClaudeTokenFormat(*req.Token)
		if problem != "" {
			h.respondWithErrorDetail(w, store.ErrInvalidCredentialFormat, problem)
			return
		}

		encrypted, err := h.cipher.EncryptToken(credential)
		if err != nil {
			h.respondWithError(w, http.StatusInternalServerError, err)
			return
		}

		// A fresh secret starts over: active, no diagnostics, no backoff
		token.EncryptedToken = encrypted
		token.Status = models.ClaudeTokenStatusActive
		token.LastError = nil
		token.RateLimitResetAt = nil
	}

	if err := h.store.UpdateClaudeToken(r.Context(), token); err != nil {
		h.respondWithError(w, http.StatusInternalServerError, err)
		return
	}

	view := pool.NewTokenView(h.cipher, token)
	h.publish(events.TypeTokenUpdated, view)
	h.respondWithJSON(w, http.StatusOK, view)
}

// DeleteMyToken handles DELETE /api/v1/claude-tokens/me
func (h *ClaudeTokenHandler) DeleteMyToken(w http.ResponseWriter, r *http.Request) {
	user := checkauth.GetUserFromContext(r.Context())
	if user == nil {
		h.respondWithError(w, http.StatusUnauthorized, store.ErrUnauthorized)
		return
	}

	token, err := h.store.GetClaudeTokenByOwner(r.Context(), user.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.respondWithErrorDetail(w, err, "You don't have a token to remove.")
			return
		}
		h.respondWithError(w, http.StatusInternalServerError, err)
		return
	}

	if err := h.store.DeleteClaudeTokenByOwner(r.Context(), user.UserID); err != nil {
		h.respondWithError(w, http.StatusInternalServerError, err)
		return
	}

	h.publish(events.TypeTokenDeleted, pool.NewTokenView(h.cipher, token))
	w.WriteHeader(http.StatusNoContent)
}

// ValidateMyToken handles POST /api/v1/claude-tokens/validate. This is the
// only path that runs a live check; it is rate limited at the router.
func (h *ClaudeTokenHandler) ValidateMyToken(w http.ResponseWriter, r *http.Request) {
	user := checkauth.GetUserFromContext(r.Context())
	if user == nil {
		h.respondWithError(w, http.StatusUnauthorized, store.ErrUnauthorized)
		return
	}

	token, err := h.store.GetClaudeTokenByOwner(r.Context(), user.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.respondWithErrorDetail(w, err, "You don't have a token to validate.")
			return
		}
		h.respondWithError(w, http.StatusInternalServerError, err)
		return
	}

	credential, err := h.cipher.DecryptToken(token.EncryptedToken)
	if err != nil {
		message := "Token could not be decrypted - may be corrupted"
		if markErr := h.store.SetClaudeTokenValidation(r.Context(), token.TokenID, false, &message); markErr != nil {
			h.respondWithError(w, http.StatusInternalServerError, markErr)
			return
		}
		h.publishStatusChange(r, token.TokenID)
		h.respondWithJSON(w, http.StatusOK, claudecli.ValidationResult{Valid: false, Error: "Token is corrupted"})
		return
	}

	started := time.Now()
	result, err := h.validator.Validate(r.Context(), credential)
	if err != nil {
		metrics.RecordValidation("error", time.Since(started).Seconds())
		h.respondWithError(w, http.StatusInternalServerError, err)
		return
	}
	verdict := "invalid"
	if result.Valid {
		verdict = "valid"
	}
	metrics.RecordValidation(verdict, time.Since(started).Seconds())

	var message *string
	if !result.Valid {
		message = &result.Error
	}
	if err := h.store.SetClaudeTokenValidation(r.Context(), token.TokenID, result.Valid, message); err != nil {
		h.respondWithError(w, http.StatusInternalServerError, err)
		return
	}

	h.publishStatusChange(r, token.TokenID)
	h.respondWithJSON(w, http.StatusOK, result)
}

// publishStatusChange rereads the row so the event carries the stored state
func (h *ClaudeTokenHandler) publishStatusChange(r *http.Request, tokenID string) {
	if h.broadcaster == nil {
		return
	}
	token, err := h.store.GetClaudeTokenByID(r.Context(), tokenID)
	if err != nil {
		return
	}
	h.publish(events.TypeTokenStatusChanged, pool.NewTokenView(h.cipher, token))
}
