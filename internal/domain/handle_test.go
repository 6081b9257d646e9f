package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLifecycle_ForwardOnly(t *testing.T) {
	assert.True(t, LifecycleSubmitting.CanTransition(LifecyclePending))
	assert.True(t, LifecyclePending.CanTransition(LifecycleConfirming))
	assert.True(t, LifecycleConfirming.CanTransition(LifecycleSettled))

	// No backward moves.
	assert.False(t, LifecycleConfirming.CanTransition(LifecyclePending))
	assert.False(t, LifecyclePending.CanTransition(LifecycleSubmitting))

	// Settled only from Confirming.
	assert.False(t, LifecyclePending.CanTransition(LifecycleSettled))
	assert.False(t, LifecycleSubmitting.CanTransition(LifecycleSettled))

	// Failure is reachable from any non-terminal state.
	assert.True(t, LifecycleSubmitting.CanTransition(LifecycleFailed))
	assert.True(t, LifecycleQuoting.CanTransition(LifecycleFailed))
}

func TestLifecycle_TerminalIsAbsorbing(t *testing.T) {
	for _, terminal := range []Lifecycle{LifecycleSettled, LifecycleFailed} {
		for _, next := range []Lifecycle{
			LifecycleIdle, LifecycleQuoting, LifecycleSubmitting,
			LifecyclePending, LifecycleConfirming, LifecycleSettled, LifecycleFailed,
		} {
			assert.False(t, terminal.CanTransition(next), "%s -> %s", terminal, next)
		}
	}
}

func TestHandle_Transition(t *testing.T) {
	now := time.Now()
	h := TransactionHandle{ID: "h1", State: LifecycleSubmitting, CreatedAt: now}

	require.NoError(t, h.Transition(LifecyclePending, now))
	require.NoError(t, h.Transition(LifecycleConfirming, now))
	require.NoError(t, h.Transition(LifecycleSettled, now))
	require.NotNil(t, h.SettledAt)

	err := h.Transition(LifecycleConfirming, now)
	assert.ErrorIs(t, err, ErrHandleTerminal)
	assert.Equal(t, LifecycleSettled, h.State, "terminal handle is immutable")
}

func TestHandle_Fail(t *testing.T) {
	now := time.Now()
	h := TransactionHandle{ID: "h1", State: LifecycleConfirming, CreatedAt: now}

	require.NoError(t, h.Fail("not resolved", now))
	assert.Equal(t, LifecycleFailed, h.State)
	assert.Equal(t, "not resolved", h.FailReason)

	assert.ErrorIs(t, h.Fail("again", now), ErrHandleTerminal)
	assert.Equal(t, "not resolved", h.FailReason)
}

func TestHandle_IllegalTransition(t *testing.T) {
	h := TransactionHandle{State: LifecyclePending}
	err := h.Transition(LifecycleSettled, time.Now())

	var te *TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, LifecyclePending, te.From)
	assert.Equal(t, LifecycleSettled, te.To)
}
