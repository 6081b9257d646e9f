// Package snapshot owns the process-wide market snapshot. A single Reader
// refreshes it from the settlement engine, replaces it wholesale under a
// version counter, and fans the new version out to the cache and signal bus.
// Everything else only reads.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/predictlabs/marketd/internal/domain"
)

// Reader periodically refreshes the market snapshot. It is the only writer
// of the current snapshot; consumers read through Current.
type Reader struct {
	engine domain.EngineReader
	cache  domain.SnapshotCache // optional
	bus    domain.SignalBus     // optional
	logger *slog.Logger

	mu      sync.RWMutex
	current domain.MarketSnapshot
	version domain.SnapshotVersion
}

// NewReader creates a Reader. cache and bus may be nil; refresh then skips
// the corresponding fan-out.
func NewReader(engine domain.EngineReader, cache domain.SnapshotCache, bus domain.SignalBus, logger *slog.Logger) *Reader {
	return &Reader{
		engine: engine,
		cache:  cache,
		bus:    bus,
		logger: logger.With(slog.String("component", "snapshot")),
	}
}

// Refresh fetches the engine's market state and installs it as the current
// snapshot under the next version. The previous snapshot is superseded
// wholesale; reserve fields from different refreshes are never mixed.
func (r *Reader) Refresh(ctx context.Context) (domain.MarketSnapshot, error) {
	snap, err := r.engine.MarketState(ctx)
	if err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("snapshot: refresh: %w", err)
	}

	r.mu.Lock()
	r.version++
	snap.Version = r.version
	snap.FetchedAt = time.Now().UTC()
	r.current = snap
	r.mu.Unlock()

	r.fanOut(ctx, snap)

	r.logger.DebugContext(ctx, "snapshot refreshed",
		slog.Uint64("version", uint64(snap.Version)),
		slog.Bool("resolved", snap.IsResolved),
	)
	return snap, nil
}

// Current returns the latest snapshot and true, or false when no refresh
// has succeeded yet.
func (r *Reader) Current() (domain.MarketSnapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current, r.version > 0
}

// Version returns the current snapshot version. Zero means no snapshot yet.
func (r *Reader) Version() domain.SnapshotVersion {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

// Run refreshes at the given interval until ctx is done. Individual refresh
// failures degrade the snapshot to its previous value and are logged, not
// fatal; the engine being briefly unreachable must not kill the process.
func (r *Reader) Run(ctx context.Context, interval time.Duration) error {
	r.warmStart(ctx)

	// Prime immediately so the first HTTP consumers see data.
	if _, err := r.Refresh(ctx); err != nil {
		r.logger.WarnContext(ctx, "initial snapshot refresh failed",
			slog.String("error", err.Error()),
		)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.Refresh(ctx); err != nil {
				r.logger.WarnContext(ctx, "snapshot refresh failed",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// warmStart installs the last cached snapshot, under its cached version, so
// consumers see data while the engine is still unreachable at startup. It
// only fills an empty reader; the first live refresh supersedes it and any
// quotes cut against the cached version go stale then.
func (r *Reader) warmStart(ctx context.Context) {
	if r.cache == nil {
		return
	}
	snap, err := r.cache.Get(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			r.logger.WarnContext(ctx, "snapshot cache read failed",
				slog.String("error", err.Error()),
			)
		}
		return
	}
	if snap.Version == 0 {
		return
	}

	r.mu.Lock()
	if r.version == 0 {
		r.current = snap
		r.version = snap.Version
	}
	r.mu.Unlock()

	r.logger.InfoContext(ctx, "snapshot warm start from cache",
		slog.Uint64("version", uint64(snap.Version)),
	)
}

// fanOut mirrors the fresh snapshot to the cache and publishes a refresh
// event. Both are best-effort: fan-out failures never invalidate the
// in-process snapshot.
func (r *Reader) fanOut(ctx context.Context, snap domain.MarketSnapshot) {
	if r.cache != nil {
		if err := r.cache.Set(ctx, snap); err != nil {
			r.logger.WarnContext(ctx, "snapshot cache set failed",
				slog.String("error", err.Error()),
			)
		}
	}

	if r.bus != nil {
		probs := snap.Probabilities()
		evt, _ := json.Marshal(map[string]any{
			"event":    "snapshot",
			"version":  snap.Version,
			"resolved": snap.IsResolved,
			"probabilities": map[string]float64{
				snap.OutcomeLabels[0]: probs[0],
				snap.OutcomeLabels[1]: probs[1],
			},
		})
		if err := r.bus.Publish(ctx, domain.ChannelSnapshot, evt); err != nil {
			r.logger.WarnContext(ctx, "snapshot publish failed",
				slog.String("error", err.Error()),
			)
		}
	}
}
