package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// HandleStore journals transaction handles so in-flight and settled actions
// survive process restarts and remain queryable as history.
type HandleStore interface {
	Create(ctx context.Context, h TransactionHandle) error
	Update(ctx context.Context, h TransactionHandle) error

	// MarkStillWaiting raises the still-waiting indicator if and only if
	// the handle is not yet terminal, and returns the updated handle. The
	// guard lives in the store so a settle landing between the patience
	// timer firing and this write can never be overwritten with stale
	// in-flight state. ErrNotFound is returned when the handle is missing
	// or already terminal; nothing is written then.
	MarkStillWaiting(ctx context.Context, id string, now time.Time) (TransactionHandle, error)

	GetByID(ctx context.Context, id string) (TransactionHandle, error)
	ListRecent(ctx context.Context, opts ListOpts) ([]TransactionHandle, error)
	ListInFlight(ctx context.Context) ([]TransactionHandle, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
}

// Archiver exports terminal handles to long-term storage for audit.
type Archiver interface {
	ArchiveSettled(ctx context.Context, day time.Time) (int, error)
}
