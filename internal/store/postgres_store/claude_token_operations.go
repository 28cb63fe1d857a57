package postgres_store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/pirate-baby/ATC/internal/store"
	"github.com/pirate-baby/ATC/internal/store/models"
	"gorm.io/gorm"
)

// eligibleWhere matches tokens selectable right now: active rows plus
// rate-limited rows whose reset time has already passed. The status column
// is not flipped here; it heals on the next successful use.
const eligibleWhere = "status = 'active' OR (status = 'rate_limited' AND rate_limit_reset_at <= ?)"

// rotationOrder sorts never-used tokens first, then the least recently used.
// Ties break toward the least-used, then the oldest contribution.
const rotationOrder = "last_used_at ASC NULLS FIRST, request_count ASC, created_at ASC"

// CreateClaudeToken persists a contributed token. Each user may hold at most
// one; a second contribution fails with ErrAlreadyExists.
func (ps PostgresDbStore) CreateClaudeToken(ctx context.Context, token *models.ClaudeToken) error {
	if err := ps.getDB(ctx).Create(token).Error; err != nil {
		if strings.Contains(err.Error(), "duplicate key value") {
			return store.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create claude token: %w", err)
	}
	return nil
}

// GetClaudeTokenByOwner retrieves the token contributed by the given user
func (ps PostgresDbStore) GetClaudeTokenByOwner(ctx context.Context, userID string) (*models.ClaudeToken, error) {
	var token models.ClaudeToken

	if err := ps.getDB(ctx).Where("user_id = ?", userID).First(&token).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, store.ErrNotFound
		}
		if strings.Contains(err.Error(), "invalid input syntax for type uuid") {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get claude token for user %s: %w", userID, err)
	}

	return &token, nil
}

// GetClaudeTokenByID retrieves a token by its ID
func (ps PostgresDbStore) GetClaudeTokenByID(ctx context.Context, tokenID string) (*models.ClaudeToken, error) {
	var token models.ClaudeToken

	if err := ps.getDB(ctx).Where("token_id = ?", tokenID).First(&token).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, store.ErrNotFound
		}
		if strings.Contains(err.Error(), "invalid input syntax for type uuid") {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get claude token %s: %w", tokenID, err)
	}

	return &token, nil
}

// ListEligibleClaudeTokens returns every selectable token in rotation order:
// oldest last_used_at first with never-used rows ahead of everything.
func (ps PostgresDbStore) ListEligibleClaudeTokens(ctx context.Context, now time.Time) ([]models.ClaudeToken, error) {
	var tokens []models.ClaudeToken

	if err := ps.getDB(ctx).
		Where(eligibleWhere, now).
		Order(rotationOrder).
		Find(&tokens).Error; err != nil {
		return nil, fmt.Errorf("failed to list eligible claude tokens: %w", err)
	}

	return tokens, nil
}

// ListClaudeTokens returns every contributed token, oldest contribution first
func (ps PostgresDbStore) ListClaudeTokens(ctx context.Context) ([]models.ClaudeToken, error) {
	var tokens []models.ClaudeToken

	if err := ps.getDB(ctx).Order("created_at ASC").Find(&tokens).Error; err != nil {
		return nil, fmt.Errorf("failed to list claude tokens: %w", err)
	}

	return tokens, nil
}

// UpdateClaudeToken saves owner-editable changes to a token
func (ps PostgresDbStore) UpdateClaudeToken(ctx context.Context, token *models.ClaudeToken) error {
	result := ps.getDB(ctx).Save(token)
	if result.Error != nil {
		return fmt.Errorf("failed to update claude token %s: %w", token.TokenID, result.Error)
	}
	if result.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeleteClaudeTokenByOwner hard-deletes the caller's token. The row is
// immediately ineligible; in-flight uses report into a no-op.
func (ps PostgresDbStore) DeleteClaudeTokenByOwner(ctx context.Context, userID string) error {
	result := ps.getDB(ctx).Where("user_id = ?", userID).Delete(&models.ClaudeToken{})
	if result.Error != nil {
		if strings.Contains(result.Error.Error(), "invalid input syntax for type uuid") {
			return store.ErrNotFound
		}
		return fmt.Errorf("failed to delete claude token for user %s: %w", userID, result.Error)
	}
	if result.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// RecordClaudeTokenSuccess applies a successful-use outcome in one atomic
// update: bump the counter, stamp last_used_at, clear the error, and heal a
// lagging rate_limited status. All CASE expressions evaluate against the row
// state before the update, so the status check and the reset clear agree.
func (ps PostgresDbStore) RecordClaudeTokenSuccess(ctx context.Context, tokenID string, usedAt time.Time) error {
	if !isValidUUID(tokenID) {
		return store.ErrNotFound
	}

	result := ps.getDB(ctx).Model(&models.ClaudeToken{}).
		Where("token_id = ?", tokenID).
		Updates(map[string]interface{}{
			"request_count":       gorm.Expr("request_count + 1"),
			"last_used_at":        usedAt,
			"last_error":          nil,
			"rate_limit_reset_at": gorm.Expr("CASE WHEN status = 'rate_limited' THEN NULL ELSE rate_limit_reset_at END"),
			"status":              gorm.Expr("CASE WHEN status = 'rate_limited' THEN 'active'::claude_token_status ELSE status END"),
			"updated_at":          usedAt,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to record claude token success: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// RecordClaudeTokenRateLimited marks a token rate-limited until resetAt
func (ps PostgresDbStore) RecordClaudeTokenRateLimited(ctx context.Context, tokenID string, resetAt time.Time, message string) error {
	if !isValidUUID(tokenID) {
		return store.ErrNotFound
	}

	result := ps.getDB(ctx).Model(&models.ClaudeToken{}).
		Where("token_id = ?", tokenID).
		Updates(map[string]interface{}{
			"status":              models.ClaudeTokenStatusRateLimited,
			"rate_limit_reset_at": resetAt,
			"last_error":          message,
			"updated_at":          time.Now().UTC(),
		})

	if result.Error != nil {
		return fmt.Errorf("failed to record claude token rate limit: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// RecordClaudeTokenInvalid marks a token invalid with a diagnostic. The row
// stays out of rotation until the owner replaces the secret.
func (ps PostgresDbStore) RecordClaudeTokenInvalid(ctx context.Context, tokenID string, message string) error {
	if !isValidUUID(tokenID) {
		return store.ErrNotFound
	}

	result := ps.getDB(ctx).Model(&models.ClaudeToken{}).
		Where("token_id = ?", tokenID).
		Updates(map[string]interface{}{
			"status":     models.ClaudeTokenStatusInvalid,
			"last_error": message,
			"updated_at": time.Now().UTC(),
		})

	if result.Error != nil {
		return fmt.Errorf("failed to record claude token invalid: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// SetClaudeTokenValidation applies a live-check verdict. A passing check
// reactivates the row and clears the diagnostic; a failing one marks it
// invalid with the reason. Usage counters are not touched.
func (ps PostgresDbStore) SetClaudeTokenValidation(ctx context.Context, tokenID string, valid bool, message *string) error {
	if !isValidUUID(tokenID) {
		return store.ErrNotFound
	}

	status := models.ClaudeTokenStatusActive
	if !valid {
		status = models.ClaudeTokenStatusInvalid
	}

	result := ps.getDB(ctx).Model(&models.ClaudeToken{}).
		Where("token_id = ?", tokenID).
		Updates(map[string]interface{}{
			"status":     status,
			"last_error": message,
			"updated_at": time.Now().UTC(),
		})

	if result.Error != nil {
		return fmt.Errorf("failed to set claude token validation result: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// GetClaudeTokenPoolCounts aggregates the status breakdown in a single query
func (ps PostgresDbStore) GetClaudeTokenPoolCounts(ctx context.Context, now time.Time) (*store.PoolCounts, error) {
	var counts store.PoolCounts

	err := ps.getDB(ctx).Raw(`
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE status = 'active') AS active,
			COUNT(*) FILTER (WHERE status = 'rate_limited') AS rate_limited,
			COUNT(*) FILTER (WHERE status IN ('invalid', 'expired')) AS invalid,
			COUNT(*) FILTER (WHERE status = 'active' OR (status = 'rate_limited' AND rate_limit_reset_at <= ?)) AS eligible,
			COALESCE(SUM(request_count), 0) AS total_requests
		FROM claude_tokens`, now).Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get claude token pool counts: %w", err)
	}

	return &counts, nil
}

// ListClaudeTokenRequestCounts returns the request_count of every token
func (ps PostgresDbStore) ListClaudeTokenRequestCounts(ctx context.Context) ([]int64, error) {
	var counts []int64

	if err := ps.getDB(ctx).Model(&models.ClaudeToken{}).
		Pluck("request_count", &counts).Error; err != nil {
		return nil, fmt.Errorf("failed to list claude token request counts: %w", err)
	}

	return counts, nil
}

// GetNextRateLimitReset returns the earliest reset time still in the future
// among rate-limited tokens, or nil when none are waiting.
func (ps PostgresDbStore) GetNextRateLimitReset(ctx context.Context, now time.Time) (*time.Time, error) {
	var next sql.NullTime

	row := ps.getDB(ctx).Raw(`
		SELECT MIN(rate_limit_reset_at)
		FROM claude_tokens
		WHERE status = 'rate_limited' AND rate_limit_reset_at > ?`, now).Row()
	if err := row.Scan(&next); err != nil {
		return nil, fmt.Errorf("failed to get next rate limit reset: %w", err)
	}

	if !next.Valid {
		return nil, nil
	}
	reset := next.Time.UTC()
	return &reset, nil
}
