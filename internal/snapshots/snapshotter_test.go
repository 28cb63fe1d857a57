package snapshots

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/pirate-baby/ATC/internal/archive"
	"github.com/pirate-baby/ATC/internal/pool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedStats(healthy int64) statsFunc {
	return func(ctx context.Context, now time.Time) (*pool.TokenPoolStats, error) {
		return &pool.TokenPoolStats{
			Status: pool.TokenPoolStatus{
				TotalContributors:   healthy,
				ActiveTokens:        healthy,
				PoolHealth:          pool.PoolHealthHealthy,
				TotalRequestsServed: 100,
			},
			FairnessScore: 1.0,
		}, nil
	}
}

func newTestSnapshotter(store archive.Store, retention int, at time.Time) *Snapshotter {
	s := NewSnapshotter(store, time.Minute, retention)
	s.stats = fixedStats(3)
	s.NowFunc = func() time.Time { return at }
	return s
}

func TestSnapshotWritesTimestampedJSON(t *testing.T) {
	store := archive.NewMemoryStore()
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := newTestSnapshotter(store, 10, at)

	require.NoError(t, s.Snapshot(context.Background()))

	key := KeyPrefix + at.Format(time.RFC3339) + ".json"
	reader, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	defer reader.Close()

	payload, err := io.ReadAll(reader)
	require.NoError(t, err)

	var stats pool.TokenPoolStats
	require.NoError(t, json.Unmarshal(payload, &stats))
	assert.Equal(t, int64(3), stats.Status.ActiveTokens)
	assert.Equal(t, pool.PoolHealthHealthy, stats.Status.PoolHealth)
	assert.Equal(t, 1.0, stats.FairnessScore)
}

func TestSnapshotPropagatesStatsError(t *testing.T) {
	store := archive.NewMemoryStore()
	s := newTestSnapshotter(store, 10, time.Now().UTC())
	s.stats = func(ctx context.Context, now time.Time) (*pool.TokenPoolStats, error) {
		return nil, errors.New("database unavailable")
	}

	assert.Error(t, s.Snapshot(context.Background()))
	assert.Equal(t, 0, store.Size())
}

func TestSnapshotPrunesBeyondRetention(t *testing.T) {
	store := archive.NewMemoryStore()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	s := newTestSnapshotter(store, 3, base)

	for i := 0; i < 5; i++ {
		s.NowFunc = func() time.Time { return base.Add(time.Duration(i) * time.Hour) }
		require.NoError(t, s.Snapshot(context.Background()))
	}

	assert.Equal(t, 3, store.Size())

	// The two oldest snapshots are gone; the newest three remain.
	for i := 0; i < 2; i++ {
		exists, err := store.Exists(context.Background(), KeyPrefix+base.Add(time.Duration(i)*time.Hour).Format(time.RFC3339)+".json")
		require.NoError(t, err)
		assert.False(t, exists, "snapshot %d should be pruned", i)
	}
	for i := 2; i < 5; i++ {
		exists, err := store.Exists(context.Background(), KeyPrefix+base.Add(time.Duration(i)*time.Hour).Format(time.RFC3339)+".json")
		require.NoError(t, err)
		assert.True(t, exists, "snapshot %d should be retained", i)
	}
}

func TestSnapshotZeroRetentionKeepsEverything(t *testing.T) {
	store := archive.NewMemoryStore()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	s := newTestSnapshotter(store, 0, base)

	for i := 0; i < 4; i++ {
		s.NowFunc = func() time.Time { return base.Add(time.Duration(i) * time.Hour) }
		require.NoError(t, s.Snapshot(context.Background()))
	}
	assert.Equal(t, 4, store.Size())
}

func TestListNewestFirst(t *testing.T) {
	store := archive.NewMemoryStore()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	s := newTestSnapshotter(store, 10, base)

	for i := 0; i < 3; i++ {
		s.NowFunc = func() time.Time { return base.Add(time.Duration(i) * time.Hour) }
		require.NoError(t, s.Snapshot(context.Background()))
	}

	entries, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, KeyPrefix+base.Add(2*time.Hour).Format(time.RFC3339)+".json", entries[0].Key)
	assert.Equal(t, KeyPrefix+base.Format(time.RFC3339)+".json", entries[2].Key)
}

func TestStartStop(t *testing.T) {
	store := archive.NewMemoryStore()
	s := newTestSnapshotter(store, 10, time.Now().UTC())
	s.interval = 10 * time.Millisecond

	s.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	s.Stop()

	assert.GreaterOrEqual(t, store.Size(), 1)
}
