package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/predictlabs/marketd/internal/domain"
)

type blockingWaiter struct {
	release chan domain.Receipt
}

func (b *blockingWaiter) WaitReceipt(ctx context.Context, txHash string) (domain.Receipt, error) {
	select {
	case r := <-b.release:
		return r, nil
	case <-ctx.Done():
		return domain.Receipt{}, ctx.Err()
	}
}

func pendingHandle(id, tx string) domain.TransactionHandle {
	now := time.Now().UTC()
	return domain.TransactionHandle{
		ID: id, TxHash: tx,
		Action:    domain.Action{Type: domain.ActionSell, Outcome: domain.OutcomeYes},
		State:     domain.LifecyclePending,
		CreatedAt: now, UpdatedAt: now,
	}
}

func TestTracker_StillWaitingDoesNotFail(t *testing.T) {
	journal := newMemJournal()
	waiter := &blockingWaiter{release: make(chan domain.Receipt)}
	tracker := NewTracker(waiter, journal, nil, nil, testLogger())
	tracker.patience = 10 * time.Millisecond

	h := pendingHandle("h1", "0x1")
	require.NoError(t, journal.Create(context.Background(), h))

	done := make(chan domain.TransactionHandle, 1)
	go func() {
		final, _ := tracker.Track(context.Background(), h)
		done <- final
	}()

	// Patience elapses: the indicator is raised but the handle stays alive.
	require.Eventually(t, func() bool {
		got, err := journal.GetByID(context.Background(), "h1")
		return err == nil && got.StillWaiting
	}, time.Second, 2*time.Millisecond)

	got, err := journal.GetByID(context.Background(), "h1")
	require.NoError(t, err)
	assert.Equal(t, domain.LifecycleConfirming, got.State, "elapsed time never fails a handle")

	waiter.release <- domain.Receipt{TxHash: "0x1", Succeeded: true}
	final := <-done
	assert.Equal(t, domain.LifecycleSettled, final.State)
}

// gatedJournal delays the still-waiting write until released so tests can
// force it to land after a concurrent settle.
type gatedJournal struct {
	*memJournal
	entered chan struct{}
	release chan struct{}
}

func (g *gatedJournal) MarkStillWaiting(ctx context.Context, id string, now time.Time) (domain.TransactionHandle, error) {
	close(g.entered)
	<-g.release
	return g.memJournal.MarkStillWaiting(ctx, id, now)
}

func TestTracker_StillWaitingNeverRegressesTerminalHandle(t *testing.T) {
	journal := &gatedJournal{
		memJournal: newMemJournal(),
		entered:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	waiter := &blockingWaiter{release: make(chan domain.Receipt)}
	tracker := NewTracker(waiter, journal, nil, nil, testLogger())
	tracker.patience = time.Millisecond

	h := pendingHandle("h1", "0x1")
	require.NoError(t, journal.Create(context.Background(), h))

	done := make(chan domain.TransactionHandle, 1)
	go func() {
		final, _ := tracker.Track(context.Background(), h)
		done <- final
	}()

	// Patience elapses and the indicator write starts, then stalls while
	// the receipt settles the handle.
	<-journal.entered
	waiter.release <- domain.Receipt{TxHash: "0x1", Succeeded: true}
	final := <-done
	require.Equal(t, domain.LifecycleSettled, final.State)

	// The stalled write now lands. It must not touch the settled row.
	close(journal.release)

	assert.Never(t, func() bool {
		got, err := journal.GetByID(context.Background(), "h1")
		return err != nil || got.State != domain.LifecycleSettled || got.StillWaiting
	}, 50*time.Millisecond, 5*time.Millisecond, "settled handle regressed in the journal")
}

func TestTracker_ShutdownLeavesHandleResumable(t *testing.T) {
	journal := newMemJournal()
	waiter := &blockingWaiter{release: make(chan domain.Receipt)}
	tracker := NewTracker(waiter, journal, nil, nil, testLogger())

	h := pendingHandle("h1", "0x1")
	require.NoError(t, journal.Create(context.Background(), h))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := tracker.Track(ctx, h)
		done <- err
	}()
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	got, err := journal.GetByID(context.Background(), "h1")
	require.NoError(t, err)
	assert.Equal(t, domain.LifecycleConfirming, got.State, "shutdown is not an outcome")

	inFlight, err := journal.ListInFlight(context.Background())
	require.NoError(t, err)
	assert.Len(t, inFlight, 1)
}

func TestTracker_ResumeFailsUnbroadcastHandles(t *testing.T) {
	journal := newMemJournal()
	tracker := NewTracker(&blockingWaiter{release: make(chan domain.Receipt)}, journal, nil, nil, testLogger())

	h := pendingHandle("lost", "")
	h.State = domain.LifecycleSubmitting
	require.NoError(t, journal.Create(context.Background(), h))

	require.NoError(t, tracker.Resume(context.Background()))

	got, err := journal.GetByID(context.Background(), "lost")
	require.NoError(t, err)
	assert.Equal(t, domain.LifecycleFailed, got.State)
	assert.Equal(t, "lost before broadcast", got.FailReason)
}
