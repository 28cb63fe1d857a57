package pool

import (
	"time"

	"github.com/pirate-baby/ATC/internal/crypto"
	"github.com/pirate-baby/ATC/internal/store/models"
)

// TokenView is the secret-free token representation served on the public API
// and carried on pool events. The credential itself only appears in the
// masked preview.
type TokenView struct {
	ID               string                   `json:"id"`
	UserID           string                   `json:"user_id"`
	Name             string                   `json:"name"`
	Status           models.ClaudeTokenStatus `json:"status"`
	TokenPreview     string                   `json:"token_preview"`
	RequestCount     int64                    `json:"request_count"`
	LastUsedAt       *time.Time               `json:"last_used_at"`
	RateLimitResetAt *time.Time               `json:"rate_limit_reset_at"`
	LastError        *string                  `json:"last_error"`
	CreatedAt        time.Time                `json:"created_at"`
	UpdatedAt        time.Time                `json:"updated_at"`
}

// NewTokenView builds the view for one token, decrypting only to derive the
// masked preview. A row that no longer decrypts still renders, with an error
// marker in place of the preview.
func NewTokenView(cipher *crypto.TokenCipher, token *models.ClaudeToken) TokenView {
	preview := "****[error]"
	if plaintext, err := cipher.DecryptToken(token.EncryptedToken); err == nil {
		preview = crypto.MaskToken(plaintext)
	}

	return TokenView{
		ID:               token.TokenID,
		UserID:           token.UserID,
		Name:             token.Name,
		Status:           token.Status,
		TokenPreview:     preview,
		RequestCount:     token.RequestCount,
		LastUsedAt:       token.LastUsedAt,
		RateLimitResetAt: token.RateLimitResetAt,
		LastError:        token.LastError,
		CreatedAt:        token.CreatedAt,
		UpdatedAt:        token.UpdatedAt,
	}
}
