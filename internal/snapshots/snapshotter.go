// Package snapshots periodically archives pool statistics for the admin
// history view. Each tick serializes the current stats to JSON under a
// timestamped key and prunes the oldest entries beyond the retention count.
package snapshots

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/catalystcommunity/app-utils-go/logging"
	"github.com/pirate-baby/ATC/internal/archive"
	"github.com/pirate-baby/ATC/internal/metrics"
	"github.com/pirate-baby/ATC/internal/pool"
)

// KeyPrefix namespaces snapshot objects within the archive store
const KeyPrefix = "pool-stats/"

// statsFunc computes the stats to archive. Swapped out in tests.
type statsFunc func(ctx context.Context, now time.Time) (*pool.TokenPoolStats, error)

// Snapshotter writes periodic pool stats snapshots into an archive store
type Snapshotter struct {
	store     archive.Store
	interval  time.Duration
	retention int
	stats     statsFunc

	// NowFunc supplies the clock for snapshot keys. Tests override it.
	NowFunc func() time.Time

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewSnapshotter creates a snapshotter. Retention is the maximum number of
// archived snapshots kept; older entries are deleted after each write.
func NewSnapshotter(store archive.Store, interval time.Duration, retention int) *Snapshotter {
	return &Snapshotter{
		store:     store,
		interval:  interval,
		retention: retention,
		stats:     pool.PoolStats,
		NowFunc:   func() time.Time { return time.Now().UTC() },
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start runs the snapshot loop until Stop is called or the context ends
func (s *Snapshotter) Start(ctx context.Context) {
	go s.loop(ctx)
}

// Stop stops the loop and waits for it to exit
func (s *Snapshotter) Stop() {
	close(s.stopCh)
	<-s.doneCh
}

func (s *Snapshotter) loop(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Log.Info("Snapshot archiver stopping due to context cancellation")
			return
		case <-s.stopCh:
			logging.Log.Info("Snapshot archiver stopping")
			return
		case <-ticker.C:
			if err := s.Snapshot(ctx); err != nil {
				logging.Log.WithError(err).Warn("Failed to archive pool stats snapshot")
			}
		}
	}
}

// Snapshot archives one stats snapshot and prunes old entries
func (s *Snapshotter) Snapshot(ctx context.Context) error {
	now := s.NowFunc()

	stats, err := s.stats(ctx, now)
	if err != nil {
		metrics.RecordSnapshot(false)
		return err
	}

	payload, err := json.Marshal(stats)
	if err != nil {
		metrics.RecordSnapshot(false)
		return err
	}

	key := KeyPrefix + now.Format(time.RFC3339) + ".json"
	if err := s.store.Put(ctx, key, bytes.NewReader(payload), "application/json"); err != nil {
		metrics.RecordSnapshot(false)
		return err
	}
	metrics.RecordSnapshot(true)

	// Gauges piggyback on the snapshot cadence so scrapes stay fresh even
	// when no requests are flowing.
	metrics.UpdatePoolGauges(
		float64(stats.Status.ActiveTokens),
		float64(stats.Status.RateLimitedTokens),
		float64(stats.Status.InvalidTokens),
		float64(stats.Status.TotalRequestsServed),
		stats.FairnessScore,
	)

	return s.prune(ctx)
}

// prune deletes the oldest snapshots beyond the retention count. The RFC3339
// key format sorts chronologically.
func (s *Snapshotter) prune(ctx context.Context) error {
	if s.retention <= 0 {
		return nil
	}

	entries, err := s.store.List(ctx, KeyPrefix)
	if err != nil {
		return err
	}
	if len(entries) <= s.retention {
		return nil
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Key < entries[j].Key
	})

	for _, entry := range entries[:len(entries)-s.retention] {
		if err := s.store.Delete(ctx, entry.Key); err != nil {
			logging.Log.WithError(err).WithField("key", entry.Key).
				Warn("Failed to prune archived snapshot")
		}
	}
	return nil
}

// List returns archived snapshots, newest first
func (s *Snapshotter) List(ctx context.Context) ([]archive.ObjectInfo, error) {
	entries, err := s.store.List(ctx, KeyPrefix)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Key > entries[j].Key
	})
	return entries, nil
}
