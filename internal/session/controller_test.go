package session

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/predictlabs/marketd/internal/domain"
)

type fixture struct {
	engine  *fakeEngine
	waiter  *fakeWaiter
	journal *memJournal
	snaps   *fakeSnapshots
	quotes  *QuoteService
	ctrl    *Controller
}

func newFixture() *fixture {
	engine := &fakeEngine{
		buyPriceFn: func(o domain.Outcome, q *big.Int) (*big.Int, error) {
			return big.NewInt(0).Div(q, big.NewInt(2)), nil // cost = quantity/2
		},
		sellPriceFn: func(o domain.Outcome, q *big.Int) (*big.Int, error) {
			return big.NewInt(0).Div(q, big.NewInt(3)), nil
		},
		submitFn: func(method string, value *big.Int) (string, error) {
			return "0xtx_" + method, nil
		},
	}
	waiter := &fakeWaiter{receipts: map[string]domain.Receipt{}}
	journal := newMemJournal()
	snaps := &fakeSnapshots{}
	snaps.set(domain.MarketSnapshot{
		Version:  1,
		Reserves: [2]*big.Int{big.NewInt(0), big.NewInt(0)},
	})

	logger := testLogger()
	quotes := NewQuoteService(engine, snaps, logger)
	tracker := NewTracker(waiter, journal, nil, nil, logger)
	ctrl := NewController(engine, quotes, tracker, journal, snaps, logger)

	return &fixture{engine: engine, waiter: waiter, journal: journal, snaps: snaps, quotes: quotes, ctrl: ctrl}
}

func (f *fixture) waitState(t *testing.T, id string, want domain.Lifecycle) domain.TransactionHandle {
	t.Helper()
	var h domain.TransactionHandle
	require.Eventually(t, func() bool {
		var err error
		h, err = f.journal.GetByID(context.Background(), id)
		return err == nil && h.State == want
	}, 2*time.Second, 5*time.Millisecond, "handle %s never reached %s", id, want)
	return h
}

func TestSubmit_BuyWithoutQuoteBlocked(t *testing.T) {
	f := newFixture()

	_, err := f.ctrl.Submit(context.Background(), domain.Action{
		Type: domain.ActionBuy, Outcome: domain.OutcomeYes, Quantity: big.NewInt(10),
	}, "")
	assert.ErrorIs(t, err, domain.ErrInsufficientQuote)

	n, _ := f.journal.Count(context.Background())
	assert.Zero(t, n, "a blocked submission creates no handle")
}

func TestSubmit_BuyAttachesQuotedValue(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	qty := big.NewInt(10)
	quote, err := f.quotes.Request(ctx, domain.SideBuy, domain.OutcomeYes, qty)
	require.NoError(t, err)
	assert.Equal(t, int64(5), quote.Price.Int64())

	var attached *big.Int
	f.engine.submitFn = func(method string, value *big.Int) (string, error) {
		attached = value
		return "0xabc", nil
	}
	f.waiter.receipts["0xabc"] = domain.Receipt{TxHash: "0xabc", Succeeded: true}

	h, err := f.ctrl.Submit(ctx, domain.Action{
		Type: domain.ActionBuy, Outcome: domain.OutcomeYes, Quantity: qty,
	}, quote.ID)
	require.NoError(t, err)

	// The payable bound is exactly the quoted cost.
	require.NotNil(t, attached)
	assert.Zero(t, attached.Cmp(quote.Price))
	assert.Equal(t, domain.LifecyclePending, h.State)
	assert.Equal(t, "0xabc", h.TxHash)

	final := f.waitState(t, h.ID, domain.LifecycleSettled)
	assert.NotNil(t, final.SettledAt)
}

func TestSubmit_StaleQuoteAfterQuantityEdit(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	quote, err := f.quotes.Request(ctx, domain.SideBuy, domain.OutcomeYes, big.NewInt(10))
	require.NoError(t, err)

	// The user edits the quantity to 20 after the quote for 10 arrived.
	_, err = f.ctrl.Submit(ctx, domain.Action{
		Type: domain.ActionBuy, Outcome: domain.OutcomeYes, Quantity: big.NewInt(20),
	}, quote.ID)
	assert.ErrorIs(t, err, domain.ErrStaleQuote)
}

func TestSubmit_StaleQuoteAfterSnapshotMove(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	quote, err := f.quotes.Request(ctx, domain.SideBuy, domain.OutcomeNo, big.NewInt(10))
	require.NoError(t, err)

	// Reserves moved: a refresh bumped the snapshot version.
	f.snaps.set(domain.MarketSnapshot{Version: 2})

	_, err = f.ctrl.Submit(ctx, domain.Action{
		Type: domain.ActionBuy, Outcome: domain.OutcomeNo, Quantity: big.NewInt(10),
	}, quote.ID)
	assert.ErrorIs(t, err, domain.ErrStaleQuote)
}

func TestSubmit_InvalidQuantityBlocked(t *testing.T) {
	f := newFixture()

	_, err := f.ctrl.Submit(context.Background(), domain.Action{
		Type: domain.ActionSell, Outcome: domain.OutcomeYes, Quantity: big.NewInt(0),
	}, "")
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
}

func TestSubmit_RedeemGatedOnResolution(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.ctrl.Submit(ctx, domain.Action{Type: domain.ActionRedeem, Quantity: big.NewInt(5)}, "")
	assert.ErrorIs(t, err, domain.ErrEngineError, "redeem blocked while unresolved")

	f.snaps.set(domain.MarketSnapshot{Version: 2, IsResolved: true, WinningToken: "0xyes"})
	f.engine.submitFn = func(method string, value *big.Int) (string, error) {
		return "0xredeem", nil
	}
	f.waiter.receipts["0xredeem"] = domain.Receipt{TxHash: "0xredeem", Succeeded: true}

	h, err := f.ctrl.Submit(ctx, domain.Action{Type: domain.ActionRedeem, Quantity: big.NewInt(5)}, "")
	require.NoError(t, err)
	f.waitState(t, h.ID, domain.LifecycleSettled)
}

func TestSubmit_ReportOnlyWhileUnresolved(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	// Unresolved: the oracle may report.
	f.waiter.receipts["0xtx_report"] = domain.Receipt{TxHash: "0xtx_report", Succeeded: true}
	h, err := f.ctrl.Submit(ctx, domain.Action{Type: domain.ActionReport, Outcome: domain.OutcomeYes}, "")
	require.NoError(t, err)
	f.waitState(t, h.ID, domain.LifecycleSettled)

	// Resolved: reporting again is blocked.
	f.snaps.set(domain.MarketSnapshot{Version: 2, IsResolved: true})
	_, err = f.ctrl.Submit(ctx, domain.Action{Type: domain.ActionReport, Outcome: domain.OutcomeYes}, "")
	assert.ErrorIs(t, err, domain.ErrEngineError)
}

func TestSubmit_EngineRevertSurfacesVerbatimReason(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.snaps.set(domain.MarketSnapshot{Version: 2, IsResolved: true})

	f.engine.submitFn = func(method string, value *big.Int) (string, error) {
		return "0xdead", nil
	}
	f.waiter.receipts["0xdead"] = domain.Receipt{
		TxHash: "0xdead", Succeeded: false, RevertReason: "not resolved",
	}

	h, err := f.ctrl.Submit(ctx, domain.Action{Type: domain.ActionRedeem, Quantity: big.NewInt(5)}, "")
	require.NoError(t, err)

	final := f.waitState(t, h.ID, domain.LifecycleFailed)
	assert.Equal(t, "not resolved", final.FailReason)

	// The control remains actionable: a retry is a brand-new handle.
	f.waiter.receipts["0xdead"] = domain.Receipt{TxHash: "0xdead", Succeeded: true}
	h2, err := f.ctrl.Submit(ctx, domain.Action{Type: domain.ActionRedeem, Quantity: big.NewInt(5)}, "")
	require.NoError(t, err)
	assert.NotEqual(t, final.ID, h2.ID)
}

func TestSubmit_BroadcastRejectionFailsHandle(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.engine.submitFn = func(method string, value *big.Int) (string, error) {
		return "", &domain.EngineRejection{Reason: "only oracle can report"}
	}

	h, err := f.ctrl.Submit(ctx, domain.Action{Type: domain.ActionReport, Outcome: domain.OutcomeNo}, "")
	require.NoError(t, err, "a rejected broadcast is a failed handle, not a transport error")
	assert.Equal(t, domain.LifecycleFailed, h.State)
	assert.Equal(t, "only oracle can report", h.FailReason)
	assert.Empty(t, h.TxHash)
}

func TestSubmit_ConcurrentHandlesIndependent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.snaps.set(domain.MarketSnapshot{Version: 1, IsResolved: true})

	// Neither receipt resolves yet: both stay in flight.
	h1, err := f.ctrl.Submit(ctx, domain.Action{Type: domain.ActionSell, Outcome: domain.OutcomeYes, Quantity: big.NewInt(3)}, "")
	require.NoError(t, err)
	h2, err := f.ctrl.Submit(ctx, domain.Action{Type: domain.ActionRedeem, Quantity: big.NewInt(4)}, "")
	require.NoError(t, err)
	require.NotEqual(t, h1.ID, h2.ID)

	inFlight, err := f.journal.ListInFlight(ctx)
	require.NoError(t, err)
	assert.Len(t, inFlight, 2)
}

func TestDismiss_OnlyTerminalHandles(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	h, err := f.ctrl.Submit(ctx, domain.Action{Type: domain.ActionSell, Outcome: domain.OutcomeYes, Quantity: big.NewInt(3)}, "")
	require.NoError(t, err)

	// Still confirming: dismissal refused.
	assert.Error(t, f.ctrl.Dismiss(ctx, h.ID))

	f.waiter.receipts["0xtx_sell"] = domain.Receipt{TxHash: "0xtx_sell", Succeeded: true}
	// Re-submit so the new handle can settle against the now-present receipt.
	h2, err := f.ctrl.Submit(ctx, domain.Action{Type: domain.ActionSell, Outcome: domain.OutcomeYes, Quantity: big.NewInt(3)}, "")
	require.NoError(t, err)
	f.waitState(t, h2.ID, domain.LifecycleSettled)

	require.NoError(t, f.ctrl.Dismiss(ctx, h2.ID))
	_, err = f.journal.GetByID(ctx, h2.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
