package domain

import (
	"context"
	"time"
)

// SnapshotCache mirrors the current market snapshot for consumers outside
// the serving process (dashboards, the watch mode). The in-process snapshot
// reader remains the single writer; cache errors degrade reads, never writes.
type SnapshotCache interface {
	Set(ctx context.Context, snap MarketSnapshot) error
	Get(ctx context.Context) (MarketSnapshot, error)
}

// SignalBus provides pub/sub fan-out for snapshot refreshes and handle
// lifecycle transitions. The WebSocket hub subscribes and forwards to
// browser clients.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// Well-known bus channels.
const (
	ChannelSnapshot = "ch:snapshot"
	ChannelHandle   = "ch:handle"
)

// RateLimiter provides distributed rate limiting for the HTTP API.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locking. The controller takes a short
// writer lock around each broadcast so two replicas sharing one wallet
// cannot race nonce assignment.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}
