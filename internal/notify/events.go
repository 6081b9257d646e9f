package notify

// Well-known event types emitted by the session. Operators configure which
// of these reach their channels.
const (
	// EventSettled fires when a submitted action reaches its successful
	// terminal state.
	EventSettled = "settled"

	// EventFailed fires when a submitted action fails, locally or at the
	// engine.
	EventFailed = "failed"

	// EventResolved fires when a snapshot refresh first observes the market
	// in its resolved state.
	EventResolved = "resolved"

	// EventDegraded fires when snapshot refreshes start failing and the
	// session is serving a stale view.
	EventDegraded = "degraded"
)
