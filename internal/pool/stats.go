package pool

import (
	"context"
	"math"
	"time"

	"github.com/pirate-baby/ATC/internal/store"
)

// PoolHealth summarizes whether the pool can serve requests right now.
type PoolHealth string

const (
	// PoolHealthHealthy means active tokens outnumber rate-limited ones.
	PoolHealthHealthy PoolHealth = "healthy"
	// PoolHealthLimited means requests can be served but capacity is
	// constrained.
	PoolHealthLimited PoolHealth = "limited"
	// PoolHealthExhausted means no token is currently eligible.
	PoolHealthExhausted PoolHealth = "exhausted"
)

// TokenPoolStatus is the anonymized pool summary.
type TokenPoolStatus struct {
	TotalContributors   int64      `json:"total_contributors"`
	ActiveTokens        int64      `json:"active_tokens"`
	RateLimitedTokens   int64      `json:"rate_limited_tokens"`
	InvalidTokens       int64      `json:"invalid_tokens"`
	PoolHealth          PoolHealth `json:"pool_health"`
	TotalRequestsServed int64      `json:"total_requests_served"`
	NextAvailableAt     *time.Time `json:"next_available_at"`
}

// UsageDistribution is one anonymized request-count bucket.
type UsageDistribution struct {
	Bucket string `json:"bucket"`
	Count  int64  `json:"count"`
}

// TokenPoolStats extends the status with distribution and fairness data.
type TokenPoolStats struct {
	Status            TokenPoolStatus     `json:"status"`
	UsageDistribution []UsageDistribution `json:"usage_distribution"`
	FairnessScore     float64             `json:"fairness_score"`
}

// usageBuckets defines the distribution histogram. Labels are inclusive
// ranges over request_count.
var usageBuckets = []struct {
	label string
	min   int64
	max   int64
}{
	{"0", 0, 0},
	{"1-10", 1, 10},
	{"11-50", 11, 50},
	{"51-100", 51, 100},
	{"101-500", 101, 500},
	{"500+", 501, math.MaxInt64},
}

// PoolStatus aggregates the pool summary as of now. Nothing is persisted;
// every call reads fresh counts.
func PoolStatus(ctx context.Context, now time.Time) (*TokenPoolStatus, error) {
	counts, err := store.AppStore.GetClaudeTokenPoolCounts(ctx, now)
	if err != nil {
		return nil, err
	}

	nextAvailable, err := store.AppStore.GetNextRateLimitReset(ctx, now)
	if err != nil {
		return nil, err
	}

	return &TokenPoolStatus{
		TotalContributors:   counts.Total,
		ActiveTokens:        counts.Active,
		RateLimitedTokens:   counts.RateLimited,
		InvalidTokens:       counts.Invalid,
		PoolHealth:          healthFromCounts(counts),
		TotalRequestsServed: counts.TotalRequests,
		NextAvailableAt:     nextAvailable,
	}, nil
}

// PoolStats aggregates the extended dashboard statistics as of now.
func PoolStats(ctx context.Context, now time.Time) (*TokenPoolStats, error) {
	status, err := PoolStatus(ctx, now)
	if err != nil {
		return nil, err
	}

	requestCounts, err := store.AppStore.ListClaudeTokenRequestCounts(ctx)
	if err != nil {
		return nil, err
	}

	return &TokenPoolStats{
		Status:            *status,
		UsageDistribution: distributeUsage(requestCounts),
		FairnessScore:     fairnessScore(requestCounts),
	}, nil
}

// healthFromCounts applies the health policy. Eligibility counts lazily
// expired rate limits, so a pool of one resettable token is limited rather
// than exhausted. A pool with no active token is never healthy.
func healthFromCounts(counts *store.PoolCounts) PoolHealth {
	if counts.Eligible == 0 {
		return PoolHealthExhausted
	}
	if counts.Active >= 1 && counts.RateLimited*2 < counts.Active+counts.RateLimited {
		return PoolHealthHealthy
	}
	return PoolHealthLimited
}

// distributeUsage sorts request counts into the histogram buckets. Empty
// buckets are omitted so the dashboard only renders populated ranges.
func distributeUsage(requestCounts []int64) []UsageDistribution {
	distribution := []UsageDistribution{}
	for _, bucket := range usageBuckets {
		var count int64
		for _, c := range requestCounts {
			if c >= bucket.min && c <= bucket.max {
				count++
			}
		}
		if count > 0 {
			distribution = append(distribution, UsageDistribution{Bucket: bucket.label, Count: count})
		}
	}
	return distribution
}

// fairnessScore maps the coefficient of variation of request counts onto
// [0, 1], where 1.0 is perfectly even usage and anything at or beyond a CV
// of 2 scores 0. Pools of zero or one token, and pools with no usage yet,
// are trivially fair.
func fairnessScore(requestCounts []int64) float64 {
	if len(requestCounts) <= 1 {
		return 1.0
	}

	var sum float64
	for _, c := range requestCounts {
		sum += float64(c)
	}
	mean := sum / float64(len(requestCounts))
	if mean == 0 {
		return 1.0
	}

	var variance float64
	for _, c := range requestCounts {
		diff := float64(c) - mean
		variance += diff * diff
	}
	variance /= float64(len(requestCounts))

	cv := math.Sqrt(variance) / mean
	score := 1.0 - cv/2.0
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return math.Round(score*1000) / 1000
}
