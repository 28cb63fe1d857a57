package test

import (
	"context"
	"testing"
	"time"

	"github.com/pirate-baby/ATC/internal/store"
	"github.com/pirate-baby/ATC/internal/store/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestClaudeTokenStoreOperations(t *testing.T) {
	t.Run("one token per owner", func(t *testing.T) {
		RunTransactionalTest(t, func(ctx context.Context, tx *gorm.DB) {
			dataUtils := &DataUtils{db: tx}
			user, err := dataUtils.CreateUser(DataSetup{})
			require.NoError(t, err)

			first, err := dataUtils.CreateClaudeToken(DataSetup{"UserID": user.UserID})
			require.NoError(t, err)

			second := &models.ClaudeToken{
				UserID:         user.UserID,
				Name:           "Duplicate",
				EncryptedToken: first.EncryptedToken,
				Status:         models.ClaudeTokenStatusActive,
			}
			err = store.AppStore.CreateClaudeToken(ctx, second)
			assert.ErrorIs(t, err, store.ErrAlreadyExists)
		})
	})

	t.Run("eligibility includes lazily expired rate limits", func(t *testing.T) {
		RunTransactionalTest(t, func(ctx context.Context, tx *gorm.DB) {
			dataUtils := &DataUtils{db: tx}
			now := time.Now().UTC()

			active, err := dataUtils.CreateClaudeToken(DataSetup{})
			require.NoError(t, err)
			resettable, err := dataUtils.CreateClaudeToken(DataSetup{
				"Status":           models.ClaudeTokenStatusRateLimited,
				"RateLimitResetAt": now.Add(-time.Minute),
			})
			require.NoError(t, err)
			_, err = dataUtils.CreateClaudeToken(DataSetup{
				"Status":           models.ClaudeTokenStatusRateLimited,
				"RateLimitResetAt": now.Add(time.Hour),
			})
			require.NoError(t, err)
			_, err = dataUtils.CreateClaudeToken(DataSetup{"Status": models.ClaudeTokenStatusInvalid})
			require.NoError(t, err)

			eligible, err := store.AppStore.ListEligibleClaudeTokens(ctx, now)
			require.NoError(t, err)
			require.Len(t, eligible, 2)

			ids := []string{eligible[0].TokenID, eligible[1].TokenID}
			assert.Contains(t, ids, active.TokenID)
			assert.Contains(t, ids, resettable.TokenID)
		})
	})

	t.Run("rotation orders by last use with never-used first", func(t *testing.T) {
		RunTransactionalTest(t, func(ctx context.Context, tx *gorm.DB) {
			dataUtils := &DataUtils{db: tx}
			now := time.Now().UTC()

			usedRecently, err := dataUtils.CreateClaudeToken(DataSetup{"LastUsedAt": now.Add(-time.Hour)})
			require.NoError(t, err)
			usedLongAgo, err := dataUtils.CreateClaudeToken(DataSetup{"LastUsedAt": now.Add(-72 * time.Hour)})
			require.NoError(t, err)
			neverUsed, err := dataUtils.CreateClaudeToken(DataSetup{})
			require.NoError(t, err)

			eligible, err := store.AppStore.ListEligibleClaudeTokens(ctx, now)
			require.NoError(t, err)
			require.Len(t, eligible, 3)
			assert.Equal(t, neverUsed.TokenID, eligible[0].TokenID)
			assert.Equal(t, usedLongAgo.TokenID, eligible[1].TokenID)
			assert.Equal(t, usedRecently.TokenID, eligible[2].TokenID)
		})
	})

	t.Run("pool counts aggregate by status", func(t *testing.T) {
		RunTransactionalTest(t, func(ctx context.Context, tx *gorm.DB) {
			dataUtils := &DataUtils{db: tx}
			now := time.Now().UTC()

			_, err := dataUtils.CreateClaudeToken(DataSetup{"RequestCount": 7})
			require.NoError(t, err)
			_, err = dataUtils.CreateClaudeToken(DataSetup{
				"Status":           models.ClaudeTokenStatusRateLimited,
				"RateLimitResetAt": now.Add(-time.Minute),
				"RequestCount":     3,
			})
			require.NoError(t, err)
			_, err = dataUtils.CreateClaudeToken(DataSetup{"Status": models.ClaudeTokenStatusInvalid})
			require.NoError(t, err)

			counts, err := store.AppStore.GetClaudeTokenPoolCounts(ctx, now)
			require.NoError(t, err)
			assert.Equal(t, int64(3), counts.Total)
			assert.Equal(t, int64(1), counts.Active)
			assert.Equal(t, int64(1), counts.RateLimited)
			assert.Equal(t, int64(1), counts.Invalid)
			// Active plus the resettable rate-limited row
			assert.Equal(t, int64(2), counts.Eligible)
			assert.Equal(t, int64(10), counts.TotalRequests)
		})
	})

	t.Run("next rate limit reset skips past timestamps", func(t *testing.T) {
		RunTransactionalTest(t, func(ctx context.Context, tx *gorm.DB) {
			dataUtils := &DataUtils{db: tx}
			now := time.Now().UTC()

			_, err := dataUtils.CreateClaudeToken(DataSetup{
				"Status":           models.ClaudeTokenStatusRateLimited,
				"RateLimitResetAt": now.Add(-time.Hour),
			})
			require.NoError(t, err)
			_, err = dataUtils.CreateClaudeToken(DataSetup{
				"Status":           models.ClaudeTokenStatusRateLimited,
				"RateLimitResetAt": now.Add(3 * time.Hour),
			})
			require.NoError(t, err)
			_, err = dataUtils.CreateClaudeToken(DataSetup{
				"Status":           models.ClaudeTokenStatusRateLimited,
				"RateLimitResetAt": now.Add(time.Hour),
			})
			require.NoError(t, err)

			next, err := store.AppStore.GetNextRateLimitReset(ctx, now)
			require.NoError(t, err)
			require.NotNil(t, next)
			assert.WithinDuration(t, now.Add(time.Hour), *next, time.Second)
		})
	})

	t.Run("next rate limit reset is nil when nothing waits", func(t *testing.T) {
		RunTransactionalTest(t, func(ctx context.Context, tx *gorm.DB) {
			dataUtils := &DataUtils{db: tx}
			_, err := dataUtils.CreateClaudeToken(DataSetup{})
			require.NoError(t, err)

			next, err := store.AppStore.GetNextRateLimitReset(ctx, time.Now().UTC())
			require.NoError(t, err)
			assert.Nil(t, next)
		})
	})

	t.Run("recording success on a bad uuid is a clean not-found", func(t *testing.T) {
		RunTransactionalTest(t, func(ctx context.Context, tx *gorm.DB) {
			err := store.AppStore.RecordClaudeTokenSuccess(ctx, "not-a-uuid", time.Now().UTC())
			assert.ErrorIs(t, err, store.ErrNotFound)
		})
	})
}
