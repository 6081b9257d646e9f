package domain

import (
	"math/big"
	"time"
)

// Lifecycle is the per-action state machine. Transitions are strictly
// monotonic; Settled and Failed are absorbing. A failed action is never
// retried in place, the user re-initiates it as a brand-new handle.
type Lifecycle string

const (
	LifecycleIdle       Lifecycle = "idle"
	LifecycleQuoting    Lifecycle = "quoting"
	LifecycleSubmitting Lifecycle = "submitting"
	LifecyclePending    Lifecycle = "pending"
	LifecycleConfirming Lifecycle = "confirming"
	LifecycleSettled    Lifecycle = "settled"
	LifecycleFailed     Lifecycle = "failed"
)

// Terminal reports whether the state is absorbing.
func (l Lifecycle) Terminal() bool {
	return l == LifecycleSettled || l == LifecycleFailed
}

// rank orders lifecycle states for the monotonicity check. Failed is
// reachable from any non-terminal state so it sits above everything.
func (l Lifecycle) rank() int {
	switch l {
	case LifecycleIdle:
		return 0
	case LifecycleQuoting:
		return 1
	case LifecycleSubmitting:
		return 2
	case LifecyclePending:
		return 3
	case LifecycleConfirming:
		return 4
	case LifecycleSettled, LifecycleFailed:
		return 5
	default:
		return -1
	}
}

// CanTransition reports whether moving from l to next preserves the state
// machine's invariants: strictly forward moves only, no leaving a terminal
// state, and Settled only reachable from Confirming. Forward skips are legal
// so that actions without a quote step can enter at Submitting.
func (l Lifecycle) CanTransition(next Lifecycle) bool {
	if l.Terminal() {
		return false
	}
	if next == LifecycleFailed {
		return true
	}
	if next == LifecycleSettled {
		return l == LifecycleConfirming
	}
	return next.rank() > l.rank()
}

// TransactionHandle is the local record tracking one submitted write
// operation from submission to its terminal outcome. Handles are owned by
// the tracker; everything else only reads them. Handles for concurrent
// actions are independent and never merged.
type TransactionHandle struct {
	ID     string    `json:"id"`
	Action Action    `json:"action"`
	State  Lifecycle `json:"state"`

	// TxHash is the engine-assigned transaction identifier, set once the
	// submission is accepted (Pending and later).
	TxHash string `json:"txHash,omitempty"`

	// Value is the amount attached to the write for payable actions (the
	// quoted cost for buys, the contributed amount for liquidity adds).
	Value *big.Int `json:"value,omitempty"`

	// FailReason carries the verbatim engine/user error text when State is
	// Failed. Empty otherwise.
	FailReason string `json:"failReason,omitempty"`

	// StillWaiting is set when confirmation has exceeded the configured
	// patience window. Purely informational: elapsed time never fails a
	// handle on its own.
	StillWaiting bool `json:"stillWaiting,omitempty"`

	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	SettledAt *time.Time `json:"settledAt,omitempty"`
}

// Transition advances the handle to next, stamping timestamps. It returns
// ErrHandleTerminal when the handle is already settled or failed, and a
// wrapped error for any other illegal move.
func (h *TransactionHandle) Transition(next Lifecycle, now time.Time) error {
	if h.State.Terminal() {
		return ErrHandleTerminal
	}
	if !h.State.CanTransition(next) {
		return &TransitionError{From: h.State, To: next}
	}
	h.State = next
	h.UpdatedAt = now
	if next.Terminal() {
		t := now
		h.SettledAt = &t
	}
	return nil
}

// Fail moves the handle to Failed with the given verbatim reason.
func (h *TransactionHandle) Fail(reason string, now time.Time) error {
	if err := h.Transition(LifecycleFailed, now); err != nil {
		return err
	}
	h.FailReason = reason
	return nil
}

// TransitionError reports an illegal lifecycle move.
type TransitionError struct {
	From, To Lifecycle
}

func (e *TransitionError) Error() string {
	return "domain: illegal lifecycle transition " + string(e.From) + " -> " + string(e.To)
}
