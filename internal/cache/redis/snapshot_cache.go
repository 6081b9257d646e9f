package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/predictlabs/marketd/internal/domain"
)

const (
	snapshotKey = "market:snapshot"

	// snapshotTTL bounds how long a stale mirror can outlive the process
	// that wrote it. The in-process reader refreshes far more often.
	snapshotTTL = 10 * time.Minute
)

// SnapshotCache implements domain.SnapshotCache by mirroring the current
// market snapshot as a JSON blob under a single key.
type SnapshotCache struct {
	rdb *redis.Client
}

// NewSnapshotCache creates a SnapshotCache backed by the given Client.
func NewSnapshotCache(c *Client) *SnapshotCache {
	return &SnapshotCache{rdb: c.Underlying()}
}

// Set replaces the mirrored snapshot wholesale.
func (sc *SnapshotCache) Set(ctx context.Context, snap domain.MarketSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redis: marshal snapshot: %w", err)
	}
	if err := sc.rdb.Set(ctx, snapshotKey, data, snapshotTTL).Err(); err != nil {
		return fmt.Errorf("redis: set snapshot: %w", err)
	}
	return nil
}

// Get returns the mirrored snapshot, or domain.ErrNotFound if nothing has
// been written yet (or the mirror expired).
func (sc *SnapshotCache) Get(ctx context.Context) (domain.MarketSnapshot, error) {
	data, err := sc.rdb.Get(ctx, snapshotKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.MarketSnapshot{}, domain.ErrNotFound
		}
		return domain.MarketSnapshot{}, fmt.Errorf("redis: get snapshot: %w", err)
	}

	var snap domain.MarketSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("redis: unmarshal snapshot: %w", err)
	}
	return snap, nil
}

// Compile-time interface check.
var _ domain.SnapshotCache = (*SnapshotCache)(nil)
