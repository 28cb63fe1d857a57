package test

import (
	"context"
	"net/http"
	"testing"

	"github.com/pirate-baby/ATC/internal/store/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// TestTransactionMiddleware verifies the per-request transaction plumbing:
// requests inside a test transaction see and mutate only that transaction's
// state, and everything rolls back afterwards.
func TestTransactionMiddleware(t *testing.T) {
	t.Run("handler writes are visible inside the test transaction", func(t *testing.T) {
		RunTransactionalTest(t, func(ctx context.Context, tx *gorm.DB) {
			dataUtils := &DataUtils{db: tx}
			user, err := dataUtils.CreateUser(DataSetup{})
			require.NoError(t, err)

			authHeader, err := createAuthHeader(user.UserID, user.Username)
			require.NoError(t, err)

			rr := doJSON(t, ctx, "POST", "/api/v1/claude-tokens", authHeader, map[string]string{
				"name":  "Tx Test",
				"token": FakeCredential(),
			})
			require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

			// The row exists in the transaction the request ran in
			var count int64
			require.NoError(t, tx.Model(&models.ClaudeToken{}).
				Where("user_id = ?", user.UserID).Count(&count).Error)
			assert.Equal(t, int64(1), count)

			// And is invisible to a connection outside the transaction
			var outside int64
			require.NoError(t, testDB.Model(&models.ClaudeToken{}).
				Where("user_id = ?", user.UserID).Count(&outside).Error)
			assert.Equal(t, int64(0), outside)
		})
	})

	t.Run("seeded data rolls back between tests", func(t *testing.T) {
		RunTransactionalTest(t, func(ctx context.Context, tx *gorm.DB) {
			var count int64
			require.NoError(t, tx.Model(&models.ClaudeToken{}).
				Where("name = ?", "Tx Test").Count(&count).Error)
			assert.Equal(t, int64(0), count)
		})
	})
}
