package models

import (
	"time"
)

// ClaudeTokenStatus represents the claude_token_status enum type from the database
type ClaudeTokenStatus string

const (
	ClaudeTokenStatusActive      ClaudeTokenStatus = "active"
	ClaudeTokenStatusInvalid     ClaudeTokenStatus = "invalid"
	ClaudeTokenStatusRateLimited ClaudeTokenStatus = "rate_limited"
	ClaudeTokenStatusExpired     ClaudeTokenStatus = "expired"
)

// ClaudeToken is one contributed subscription credential. Each user may
// contribute at most one; the secret is stored Fernet-encrypted and is never
// serialized.
type ClaudeToken struct {
	TokenID          string            `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	CreatedAt        time.Time         `gorm:"autoCreateTime:false;default:timezone('utc', now())" json:"created_at"`
	UpdatedAt        time.Time         `gorm:"autoUpdateTime:false;default:timezone('utc', now())" json:"updated_at"`
	UserID           string            `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	Name             string            `gorm:"type:text;not null" json:"name"`
	EncryptedToken   []byte            `gorm:"type:bytea;not null" json:"-"`
	Status           ClaudeTokenStatus `gorm:"type:claude_token_status;default:'active';not null" json:"status"`
	RequestCount     int64             `gorm:"not null;default:0" json:"request_count"`
	LastUsedAt       *time.Time        `json:"last_used_at"`
	RateLimitResetAt *time.Time        `json:"rate_limit_reset_at"`
	LastError        *string           `gorm:"type:text" json:"last_error"`

	// Relationships
	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// TableName specifies the table name for the model
func (ClaudeToken) TableName() string {
	return "claude_tokens"
}

// IsEligibleAt reports whether the token may be selected at the given instant.
// A rate-limited token becomes eligible again the moment its reset time
// passes, even though the status column lags until the next successful use.
func (t *ClaudeToken) IsEligibleAt(now time.Time) bool {
	switch t.Status {
	case ClaudeTokenStatusActive:
		return true
	case ClaudeTokenStatusRateLimited:
		return t.RateLimitResetAt != nil && !t.RateLimitResetAt.After(now)
	default:
		return false
	}
}
