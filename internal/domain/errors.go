package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrInsufficientQuote = errors.New("no fresh quote for submission")
	ErrStaleQuote        = errors.New("quote is stale")
	ErrQuoteSuperseded   = errors.New("quote superseded by a newer request")
	ErrUserRejected      = errors.New("user rejected submission")
	ErrEngineError       = errors.New("engine rejected write")
	ErrEngineUnavailable = errors.New("engine unavailable")
	ErrHandleTerminal    = errors.New("handle already terminal")
	ErrHandleInFlight    = errors.New("handle still in flight")
	ErrLockHeld          = errors.New("lock already held")
)

// EngineRejection is an EngineError carrying the engine's verbatim failure
// text. The UI must surface Reason unmodified, so wrappers preserve it as a
// distinct field rather than burying it in a message chain.
type EngineRejection struct {
	Reason string
}

func (e *EngineRejection) Error() string { return e.Reason }

// Is makes errors.Is(err, ErrEngineError) match any EngineRejection.
func (e *EngineRejection) Is(target error) bool { return target == ErrEngineError }
