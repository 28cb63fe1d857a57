package store

import (
	"context"
	"time"

	"github.com/pirate-baby/ATC/internal/store/models"
	"gorm.io/gorm"
)

var AppStore Store

// GetDB returns the database connection
func GetDB() *gorm.DB {
	// This is a convenience function to access the DB from other packages
	// It's used by the transaction middleware
	if store, ok := AppStore.(interface{ GetDB() *gorm.DB }); ok {
		return store.GetDB()
	}
	return nil
}

type Store interface {
	Initialize() (deferredFunc func(), err error)

	// Claude token operations
	CreateClaudeToken(ctx context.Context, token *models.ClaudeToken) error
	GetClaudeTokenByOwner(ctx context.Context, userID string) (*models.ClaudeToken, error)
	GetClaudeTokenByID(ctx context.Context, tokenID string) (*models.ClaudeToken, error)
	ListEligibleClaudeTokens(ctx context.Context, now time.Time) ([]models.ClaudeToken, error)
	ListClaudeTokens(ctx context.Context) ([]models.ClaudeToken, error)
	UpdateClaudeToken(ctx context.Context, token *models.ClaudeToken) error
	DeleteClaudeTokenByOwner(ctx context.Context, userID string) error
	RecordClaudeTokenSuccess(ctx context.Context, tokenID string, usedAt time.Time) error
	RecordClaudeTokenRateLimited(ctx context.Context, tokenID string, resetAt time.Time, message string) error
	RecordClaudeTokenInvalid(ctx context.Context, tokenID string, message string) error
	SetClaudeTokenValidation(ctx context.Context, tokenID string, valid bool, message *string) error
	GetClaudeTokenPoolCounts(ctx context.Context, now time.Time) (*PoolCounts, error)
	ListClaudeTokenRequestCounts(ctx context.Context) ([]int64, error)
	GetNextRateLimitReset(ctx context.Context, now time.Time) (*time.Time, error)

	// API Token operations
	ValidateAPIToken(ctx context.Context, token string) (*models.APIToken, *models.User, error)
	CreateAPIToken(ctx context.Context, apiToken *models.APIToken) error
	UpdateTokenLastUsed(ctx context.Context, tokenID string, lastUsed time.Time) error
	GetAPITokensByUser(ctx context.Context, userID string) ([]models.APIToken, error)
	DeleteAPIToken(ctx context.Context, tokenID string) error

	// User operations
	GetUserByID(ctx context.Context, userID string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	EnsureDefaultUser() error
}
