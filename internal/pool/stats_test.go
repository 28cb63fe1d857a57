package pool

import (
	"testing"
	"time"

	"github.com/pirate-baby/ATC/internal/config"
	"github.com/pirate-baby/ATC/internal/store"
	"github.com/stretchr/testify/assert"
)

func TestFairnessScore(t *testing.T) {
	t.Run("even usage is perfectly fair", func(t *testing.T) {
		assert.InDelta(t, 1.0, fairnessScore([]int64{10, 10, 10}), 0.001)
	})

	t.Run("single token is trivially fair", func(t *testing.T) {
		assert.Equal(t, 1.0, fairnessScore([]int64{42}))
	})

	t.Run("empty pool is trivially fair", func(t *testing.T) {
		assert.Equal(t, 1.0, fairnessScore(nil))
	})

	t.Run("unused pool is trivially fair", func(t *testing.T) {
		assert.Equal(t, 1.0, fairnessScore([]int64{0, 0, 0}))
	})

	t.Run("heavily skewed usage scores low", func(t *testing.T) {
		score := fairnessScore([]int64{100, 0, 0})
		assert.Less(t, score, 0.3)
		assert.GreaterOrEqual(t, score, 0.0)
	})

	t.Run("mild skew lands between", func(t *testing.T) {
		score := fairnessScore([]int64{8, 10, 12})
		assert.Greater(t, score, 0.9)
		assert.Less(t, score, 1.0)
	})

	t.Run("score is rounded to three decimals", func(t *testing.T) {
		// cv = sqrt(2)/3, so the raw score is 0.76429...
		assert.Equal(t, 0.764, fairnessScore([]int64{1, 2, 3, 4, 5}))
	})
}

func TestDistributeUsage(t *testing.T) {
	t.Run("counts land in inclusive buckets", func(t *testing.T) {
		distribution := distributeUsage([]int64{0, 1, 10, 11, 50, 51, 100, 101, 500, 501})

		expected := map[string]int64{
			"0":       1,
			"1-10":    2,
			"11-50":   2,
			"51-100":  2,
			"101-500": 2,
			"500+":    1,
		}
		assert.Len(t, distribution, len(expected))
		for _, d := range distribution {
			assert.Equal(t, expected[d.Bucket], d.Count, "bucket %s", d.Bucket)
		}
	})

	t.Run("empty buckets are omitted", func(t *testing.T) {
		distribution := distributeUsage([]int64{3, 7})
		assert.Len(t, distribution, 1)
		assert.Equal(t, "1-10", distribution[0].Bucket)
		assert.Equal(t, int64(2), distribution[0].Count)
	})

	t.Run("empty pool has no buckets", func(t *testing.T) {
		assert.Empty(t, distributeUsage(nil))
	})
}

func TestHealthFromCounts(t *testing.T) {
	tests := []struct {
		name     string
		counts   store.PoolCounts
		expected PoolHealth
	}{
		{
			name:     "no eligible tokens is exhausted",
			counts:   store.PoolCounts{Total: 2, Invalid: 2},
			expected: PoolHealthExhausted,
		},
		{
			name:     "active majority is healthy",
			counts:   store.PoolCounts{Total: 4, Active: 3, RateLimited: 1, Eligible: 3},
			expected: PoolHealthHealthy,
		},
		{
			name:     "rate limited majority is limited",
			counts:   store.PoolCounts{Total: 3, Active: 1, RateLimited: 2, Eligible: 1},
			expected: PoolHealthLimited,
		},
		{
			name:     "even split is limited",
			counts:   store.PoolCounts{Total: 2, Active: 1, RateLimited: 1, Eligible: 1},
			expected: PoolHealthLimited,
		},
		{
			name: "resettable rate limit without actives is limited not exhausted",
			// Status column lags; the row counts as eligible once its reset passes
			counts:   store.PoolCounts{Total: 1, RateLimited: 1, Eligible: 1},
			expected: PoolHealthLimited,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, healthFromCounts(&tt.counts))
		})
	}
}

func TestDefaultResetTime(t *testing.T) {
	now := time.Date(2025, 6, 1, 14, 37, 12, 0, time.UTC)
	reset := defaultResetTime(now)

	expected := time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC).
		Add(time.Duration(config.RateLimitedBackoffHours) * time.Hour)
	assert.Equal(t, expected, reset)
}
