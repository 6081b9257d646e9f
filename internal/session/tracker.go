package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/predictlabs/marketd/internal/domain"
	"github.com/predictlabs/marketd/internal/notify"
)

// defaultPatience is how long a handle may sit in Confirming before the
// still-waiting indicator is raised. Elapsed time never fails a handle.
const defaultPatience = 90 * time.Second

// Tracker owns every TransactionHandle from submission to its terminal
// state. It observes confirmation through the receipt waiter and never
// resubmits or cancels the underlying transaction. Display layers read
// handle state through the journal; only the tracker writes it.
type Tracker struct {
	waiter   domain.ReceiptWaiter
	journal  domain.HandleStore
	bus      domain.SignalBus // optional
	notifier *notify.Notifier // optional
	logger   *slog.Logger
	patience time.Duration
}

// NewTracker creates a Tracker. bus and notifier may be nil.
func NewTracker(waiter domain.ReceiptWaiter, journal domain.HandleStore, bus domain.SignalBus, notifier *notify.Notifier, logger *slog.Logger) *Tracker {
	return &Tracker{
		waiter:   waiter,
		journal:  journal,
		bus:      bus,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "tracker")),
		patience: defaultPatience,
	}
}

// WithPatience overrides the still-waiting window.
func (t *Tracker) WithPatience(d time.Duration) *Tracker {
	if d > 0 {
		t.patience = d
	}
	return t
}

// Track drives one pending handle to its terminal state: Pending →
// Confirming once the network has the transaction, then Settled or
// Failed(reason) from the finality receipt. It blocks until terminal or ctx
// is done and returns the final handle.
func (t *Tracker) Track(ctx context.Context, h domain.TransactionHandle) (domain.TransactionHandle, error) {
	if err := t.advance(ctx, &h, domain.LifecycleConfirming); err != nil {
		return h, err
	}

	// Raise the still-waiting indicator if confirmation drags on. The
	// timer only flips a flag; it never declares failure.
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go t.raiseStillWaiting(waitCtx, h.ID)

	receipt, err := t.waiter.WaitReceipt(ctx, h.TxHash)
	if err != nil {
		if ctx.Err() != nil {
			// Shutdown, not an outcome: leave the handle in Confirming so a
			// restart can resume tracking from the journal.
			return h, ctx.Err()
		}
		t.fail(ctx, &h, err.Error())
		return h, nil
	}

	if receipt.Succeeded {
		t.settle(ctx, &h)
	} else {
		reason := receipt.RevertReason
		if reason == "" {
			reason = "transaction reverted"
		}
		t.fail(ctx, &h, reason)
	}
	return h, nil
}

// Resume re-attaches tracking to every in-flight handle found in the
// journal, typically after a restart.
func (t *Tracker) Resume(ctx context.Context) error {
	handles, err := t.journal.ListInFlight(ctx)
	if err != nil {
		return fmt.Errorf("tracker: resume: %w", err)
	}
	for _, h := range handles {
		if h.TxHash == "" {
			// Submitted but never broadcast; the write cannot be recovered.
			t.fail(ctx, &h, "lost before broadcast")
			continue
		}
		go t.Track(ctx, h)
	}
	if len(handles) > 0 {
		t.logger.InfoContext(ctx, "resumed in-flight handles", slog.Int("count", len(handles)))
	}
	return nil
}

func (t *Tracker) advance(ctx context.Context, h *domain.TransactionHandle, next domain.Lifecycle) error {
	if err := h.Transition(next, time.Now().UTC()); err != nil {
		return fmt.Errorf("tracker: advance %s: %w", h.ID, err)
	}
	t.persist(ctx, *h)
	return nil
}

func (t *Tracker) settle(ctx context.Context, h *domain.TransactionHandle) {
	if err := h.Transition(domain.LifecycleSettled, time.Now().UTC()); err != nil {
		t.logger.ErrorContext(ctx, "settle transition failed",
			slog.String("handle_id", h.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	t.persist(ctx, *h)

	t.logger.InfoContext(ctx, "action settled",
		slog.String("handle_id", h.ID),
		slog.String("action", string(h.Action.Type)),
		slog.String("tx_hash", h.TxHash),
	)
	if t.notifier != nil {
		t.notifier.Notify(ctx, notify.EventSettled, "Action settled",
			fmt.Sprintf("%s settled (tx %s)", h.Action.Type, h.TxHash))
	}
}

func (t *Tracker) fail(ctx context.Context, h *domain.TransactionHandle, reason string) {
	if err := h.Fail(reason, time.Now().UTC()); err != nil {
		t.logger.ErrorContext(ctx, "fail transition failed",
			slog.String("handle_id", h.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	t.persist(ctx, *h)

	t.logger.WarnContext(ctx, "action failed",
		slog.String("handle_id", h.ID),
		slog.String("action", string(h.Action.Type)),
		slog.String("reason", reason),
	)
	if t.notifier != nil {
		t.notifier.Notify(ctx, notify.EventFailed, "Action failed",
			fmt.Sprintf("%s failed: %s", h.Action.Type, reason))
	}
}

// persist journals the handle and publishes its new state. Journal errors
// are logged but do not interrupt tracking; the in-memory lifecycle is the
// source of truth while the process lives.
func (t *Tracker) persist(ctx context.Context, h domain.TransactionHandle) {
	if err := t.journal.Update(ctx, h); err != nil {
		t.logger.ErrorContext(ctx, "journal update failed",
			slog.String("handle_id", h.ID),
			slog.String("error", err.Error()),
		)
	}
	t.publish(ctx, h)
}

func (t *Tracker) publish(ctx context.Context, h domain.TransactionHandle) {
	if t.bus == nil {
		return
	}
	evt, _ := json.Marshal(h)
	if err := t.bus.Publish(ctx, domain.ChannelHandle, evt); err != nil {
		t.logger.WarnContext(ctx, "handle publish failed",
			slog.String("handle_id", h.ID),
			slog.String("error", err.Error()),
		)
	}
}

// raiseStillWaiting flips the StillWaiting flag on the journaled handle once
// the patience window elapses. The write is state-guarded in the store; a
// handle that went terminal in the meantime is left untouched.
func (t *Tracker) raiseStillWaiting(ctx context.Context, handleID string) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(t.patience):
	}

	h, err := t.journal.MarkStillWaiting(ctx, handleID, time.Now().UTC())
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			t.logger.WarnContext(ctx, "still-waiting update failed",
				slog.String("handle_id", handleID),
				slog.String("error", err.Error()),
			)
		}
		return
	}
	t.publish(ctx, h)
}
