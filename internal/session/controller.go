package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/predictlabs/marketd/internal/domain"
)

// Controller is the trading-session controller: one generic quote → submit →
// track engine parameterized by the Action variant, replacing what would
// otherwise be a near-identical state machine per action type. It enforces
// the submission gates (fresh quote, valid quantity, resolution state) and
// produces an independent TransactionHandle per accepted action; handles are
// never merged, so concurrent actions stay distinguishable.
type Controller struct {
	writer  domain.EngineWriter
	quotes  *QuoteService
	tracker *Tracker
	journal domain.HandleStore
	snaps   SnapshotSource
	logger  *slog.Logger

	locks   domain.LockManager // optional
	lockTTL time.Duration
}

// NewController wires the session controller.
func NewController(
	writer domain.EngineWriter,
	quotes *QuoteService,
	tracker *Tracker,
	journal domain.HandleStore,
	snaps SnapshotSource,
	logger *slog.Logger,
) *Controller {
	return &Controller{
		writer:  writer,
		quotes:  quotes,
		tracker: tracker,
		journal: journal,
		snaps:   snaps,
		logger:  logger.With(slog.String("component", "session")),
	}
}

// WithLocks serializes broadcasts through a distributed lock so replicas
// sharing one wallet cannot race nonce assignment. Without it only the
// in-process writer mutex guards.
func (c *Controller) WithLocks(locks domain.LockManager, ttl time.Duration) *Controller {
	c.locks = locks
	c.lockTTL = ttl
	return c
}

// Quotes exposes the quote service for the transport layer.
func (c *Controller) Quotes() *QuoteService {
	return c.quotes
}

// Submit validates, gates, and submits one action, returning its handle in
// state Pending on success. Local validation failures (invalid quantity,
// absent or stale quote, resolution gate) return an error without creating
// a handle: the action is blocked, not failed. Once the write is accepted by
// the engine, tracking continues in the background past the request's
// lifetime until the handle is terminal.
func (c *Controller) Submit(ctx context.Context, action domain.Action, quoteID string) (domain.TransactionHandle, error) {
	if err := action.Validate(); err != nil {
		return domain.TransactionHandle{}, err
	}
	if err := c.gate(action); err != nil {
		return domain.TransactionHandle{}, err
	}

	value, err := c.valueBound(action, quoteID)
	if err != nil {
		return domain.TransactionHandle{}, err
	}

	now := time.Now().UTC()
	h := domain.TransactionHandle{
		ID:        uuid.NewString(),
		Action:    action,
		State:     domain.LifecycleSubmitting,
		Value:     value,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := c.journal.Create(ctx, h); err != nil {
		return domain.TransactionHandle{}, fmt.Errorf("session: journal create: %w", err)
	}

	txHash, err := c.broadcast(ctx, action, value)
	if err != nil {
		// The write never reached the mempool: terminal failure with the
		// engine's (or user's) verbatim reason. Re-attempting is a brand-new
		// action.
		reason := errText(err)
		c.tracker.fail(ctx, &h, reason)
		return h, nil
	}

	h.TxHash = txHash
	if err := h.Transition(domain.LifecyclePending, time.Now().UTC()); err != nil {
		return h, fmt.Errorf("session: to pending: %w", err)
	}
	c.tracker.persist(ctx, h)

	c.logger.InfoContext(ctx, "action submitted",
		slog.String("handle_id", h.ID),
		slog.String("action", string(action.Type)),
		slog.String("tx_hash", txHash),
	)

	// Confirmation outlives the HTTP request that initiated it.
	go c.tracker.Track(context.WithoutCancel(ctx), h)

	return h, nil
}

// gate applies the snapshot-derived submission gates. Redeem requires a
// resolved market; Report is the one action valid exactly while unresolved
// (it is what resolves the market). Oracle and owner role checks are left to
// the engine: a local role check is advisory UX only and never the guard.
func (c *Controller) gate(action domain.Action) error {
	snap, ok := c.snaps.Current()
	if !ok {
		return fmt.Errorf("session: no market snapshot yet: %w", domain.ErrEngineUnavailable)
	}

	switch action.Type {
	case domain.ActionRedeem:
		if !snap.IsResolved {
			return fmt.Errorf("session: redeem before resolution: %w", domain.ErrEngineError)
		}
	case domain.ActionReport:
		if snap.IsResolved {
			return fmt.Errorf("session: market already resolved: %w", domain.ErrEngineError)
		}
	}
	return nil
}

// valueBound computes the value transferred with the write. Buys attach
// exactly the quoted cost and are blocked without a fresh quote: a zero
// value fallback would let the engine take the payment and revert, so its
// absence is an InsufficientQuote error, never a default. Liquidity adds
// attach the contributed quantity itself. Everything else transfers nothing.
func (c *Controller) valueBound(action domain.Action, quoteID string) (*big.Int, error) {
	switch {
	case action.NeedsQuote():
		if quoteID == "" {
			return nil, fmt.Errorf("session: %s: %w", action.Type, domain.ErrInsufficientQuote)
		}
		q, ok := c.quotes.Lookup(quoteID)
		if !ok {
			return nil, fmt.Errorf("session: %s: quote %s unknown or expired: %w", action.Type, quoteID, domain.ErrInsufficientQuote)
		}
		if !q.FreshFor(domain.SideBuy, action.Outcome, action.Quantity, c.snaps.Version()) {
			return nil, fmt.Errorf("session: %s: %w", action.Type, domain.ErrStaleQuote)
		}
		return new(big.Int).Set(q.Price), nil

	case action.Type == domain.ActionAddLiquidity:
		return new(big.Int).Set(action.Quantity), nil

	default:
		return nil, nil
	}
}

// writeLockKey is the distributed lock key shared by all replicas writing
// with the same wallet.
const writeLockKey = "engine:write"

// broadcast dispatches the action to the engine's write surface.
func (c *Controller) broadcast(ctx context.Context, action domain.Action, value *big.Int) (string, error) {
	if c.locks != nil {
		unlock, err := c.acquireWriteLock(ctx)
		if err != nil {
			return "", fmt.Errorf("session: write lock: %w", err)
		}
		defer unlock()
	}

	switch action.Type {
	case domain.ActionBuy:
		return c.writer.Buy(ctx, action.Outcome, action.Quantity, value)
	case domain.ActionSell:
		return c.writer.Sell(ctx, action.Outcome, action.Quantity)
	case domain.ActionAddLiquidity:
		return c.writer.AddLiquidity(ctx, value)
	case domain.ActionRemoveLiquidity:
		return c.writer.RemoveLiquidity(ctx, action.Quantity)
	case domain.ActionRedeem:
		return c.writer.Redeem(ctx, action.Quantity)
	case domain.ActionReport:
		return c.writer.Report(ctx, action.Outcome)
	case domain.ActionResolveAndWithdraw:
		return c.writer.ResolveAndWithdraw(ctx)
	default:
		return "", fmt.Errorf("session: unsupported action %q", action.Type)
	}
}

// acquireWriteLock polls for the shared writer lock until acquired or ctx is
// done.
func (c *Controller) acquireWriteLock(ctx context.Context) (func(), error) {
	for {
		unlock, err := c.locks.Acquire(ctx, writeLockKey, c.lockTTL)
		if err == nil {
			return unlock, nil
		}
		if !errors.Is(err, domain.ErrLockHeld) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// Dismiss removes a terminal handle from the journal at the user's request.
// In-flight handles cannot be dismissed; the underlying transaction cannot
// be cancelled locally.
func (c *Controller) Dismiss(ctx context.Context, id string) error {
	h, err := c.journal.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("session: dismiss %s: %w", id, err)
	}
	if !h.State.Terminal() {
		return fmt.Errorf("session: dismiss %s: %w", id, domain.ErrHandleInFlight)
	}
	if err := c.journal.Delete(ctx, id); err != nil {
		return fmt.Errorf("session: dismiss %s: %w", id, err)
	}
	return nil
}

// errText extracts the reason to surface to the user: the engine's verbatim
// revert text when available, otherwise the full error message.
func errText(err error) string {
	var rej *domain.EngineRejection
	if errors.As(err, &rej) {
		return rej.Reason
	}
	if errors.Is(err, domain.ErrUserRejected) {
		return domain.ErrUserRejected.Error()
	}
	return err.Error()
}
