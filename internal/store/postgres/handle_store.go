package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/predictlabs/marketd/internal/domain"
)

// HandleStore implements domain.HandleStore using PostgreSQL. Amounts are
// stored as NUMERIC(78,0) so full 256-bit base-unit values round-trip
// without precision loss.
type HandleStore struct {
	pool *pgxpool.Pool
}

// NewHandleStore creates a HandleStore backed by the given connection pool.
func NewHandleStore(pool *pgxpool.Pool) *HandleStore {
	return &HandleStore{pool: pool}
}

const handleSelectCols = `id, action_type, outcome, quantity, value, state,
	tx_hash, fail_reason, still_waiting, created_at, updated_at, settled_at`

// Create journals a freshly submitted handle.
func (s *HandleStore) Create(ctx context.Context, h domain.TransactionHandle) error {
	const query = `
		INSERT INTO handles (
			id, action_type, outcome, quantity, value, state,
			tx_hash, fail_reason, still_waiting, created_at, updated_at, settled_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := s.pool.Exec(ctx, query,
		h.ID, string(h.Action.Type), int16(h.Action.Outcome),
		bigString(h.Action.Quantity), bigString(h.Value),
		string(h.State), nullable(h.TxHash), nullable(h.FailReason),
		h.StillWaiting, h.CreatedAt, h.UpdatedAt, h.SettledAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create handle %s: %w", h.ID, err)
	}
	return nil
}

// Update persists a lifecycle transition or indicator change.
func (s *HandleStore) Update(ctx context.Context, h domain.TransactionHandle) error {
	const query = `
		UPDATE handles SET
			state = $2, tx_hash = $3, fail_reason = $4,
			still_waiting = $5, updated_at = $6, settled_at = $7
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query,
		h.ID, string(h.State), nullable(h.TxHash), nullable(h.FailReason),
		h.StillWaiting, h.UpdatedAt, h.SettledAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: update handle %s: %w", h.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// MarkStillWaiting sets the still-waiting indicator on a non-terminal
// handle and returns the updated row. The state guard is part of the UPDATE
// so a concurrent settle cannot be regressed.
func (s *HandleStore) MarkStillWaiting(ctx context.Context, id string, now time.Time) (domain.TransactionHandle, error) {
	query := `UPDATE handles SET still_waiting = TRUE, updated_at = $2
		WHERE id = $1 AND state NOT IN ('settled', 'failed')
		RETURNING ` + handleSelectCols

	h, err := scanHandle(s.pool.QueryRow(ctx, query, id, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.TransactionHandle{}, domain.ErrNotFound
		}
		return domain.TransactionHandle{}, fmt.Errorf("postgres: mark still waiting %s: %w", id, err)
	}
	return h, nil
}

// GetByID retrieves a single handle.
func (s *HandleStore) GetByID(ctx context.Context, id string) (domain.TransactionHandle, error) {
	query := `SELECT ` + handleSelectCols + ` FROM handles WHERE id = $1`

	h, err := scanHandle(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.TransactionHandle{}, domain.ErrNotFound
		}
		return domain.TransactionHandle{}, fmt.Errorf("postgres: get handle %s: %w", id, err)
	}
	return h, nil
}

// ListRecent returns handles newest first.
func (s *HandleStore) ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.TransactionHandle, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + handleSelectCols + ` FROM handles
		ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := s.pool.Query(ctx, query, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list handles: %w", err)
	}
	defer rows.Close()

	return collectHandles(rows)
}

// ListInFlight returns all handles not yet terminal, for resume-on-restart.
func (s *HandleStore) ListInFlight(ctx context.Context) ([]domain.TransactionHandle, error) {
	query := `SELECT ` + handleSelectCols + ` FROM handles
		WHERE state NOT IN ('settled', 'failed')
		ORDER BY created_at ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list in-flight handles: %w", err)
	}
	defer rows.Close()

	return collectHandles(rows)
}

// ListTerminalOn returns settled and failed handles whose terminal timestamp
// falls on the given UTC day, for the archiver.
func (s *HandleStore) ListTerminalOn(ctx context.Context, day time.Time) ([]domain.TransactionHandle, error) {
	start := time.Date(day.UTC().Year(), day.UTC().Month(), day.UTC().Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	query := `SELECT ` + handleSelectCols + ` FROM handles
		WHERE state IN ('settled', 'failed')
		  AND settled_at >= $1 AND settled_at < $2
		ORDER BY settled_at ASC`

	rows, err := s.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("postgres: list terminal handles: %w", err)
	}
	defer rows.Close()

	return collectHandles(rows)
}

// Delete removes a handle (user dismissal of a terminal handle).
func (s *HandleStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM handles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete handle %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Count returns the total number of journaled handles.
func (s *HandleStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM handles`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count handles: %w", err)
	}
	return n, nil
}

func scanHandle(row pgx.Row) (domain.TransactionHandle, error) {
	var (
		h                  domain.TransactionHandle
		actionType         string
		outcome            *int16
		quantityStr        *string
		valueStr           *string
		state              string
		txHash, failReason *string
	)

	err := row.Scan(
		&h.ID, &actionType, &outcome, &quantityStr, &valueStr, &state,
		&txHash, &failReason, &h.StillWaiting, &h.CreatedAt, &h.UpdatedAt, &h.SettledAt,
	)
	if err != nil {
		return domain.TransactionHandle{}, err
	}

	h.Action.Type = domain.ActionType(actionType)
	if outcome != nil {
		h.Action.Outcome = domain.Outcome(*outcome)
	}
	h.Action.Quantity = parseBig(quantityStr)
	h.Value = parseBig(valueStr)
	h.State = domain.Lifecycle(state)
	if txHash != nil {
		h.TxHash = *txHash
	}
	if failReason != nil {
		h.FailReason = *failReason
	}
	return h, nil
}

func collectHandles(rows pgx.Rows) ([]domain.TransactionHandle, error) {
	var out []domain.TransactionHandle
	for rows.Next() {
		h, err := scanHandle(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan handle: %w", err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate handles: %w", err)
	}
	return out, nil
}

// bigString converts a big.Int to its decimal string, or nil for NULL.
func bigString(v *big.Int) *string {
	if v == nil {
		return nil
	}
	s := v.String()
	return &s
}

func parseBig(s *string) *big.Int {
	if s == nil {
		return nil
	}
	v, ok := new(big.Int).SetString(*s, 10)
	if !ok {
		return nil
	}
	return v
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
