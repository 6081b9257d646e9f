package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/predictlabs/marketd/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// stubActions scripts the controller surface.
type stubActions struct {
	submitFn  func(ctx context.Context, action domain.Action, quoteID string) (domain.TransactionHandle, error)
	dismissFn func(ctx context.Context, id string) error
}

func (s *stubActions) Submit(ctx context.Context, action domain.Action, quoteID string) (domain.TransactionHandle, error) {
	return s.submitFn(ctx, action, quoteID)
}

func (s *stubActions) Dismiss(ctx context.Context, id string) error {
	return s.dismissFn(ctx, id)
}

// stubJournal is an in-memory domain.HandleStore.
type stubJournal struct {
	mu      sync.Mutex
	handles map[string]domain.TransactionHandle
}

func newStubJournal() *stubJournal {
	return &stubJournal{handles: make(map[string]domain.TransactionHandle)}
}

func (j *stubJournal) Create(_ context.Context, h domain.TransactionHandle) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.handles[h.ID] = h
	return nil
}

func (j *stubJournal) Update(_ context.Context, h domain.TransactionHandle) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, ok := j.handles[h.ID]; !ok {
		return domain.ErrNotFound
	}
	j.handles[h.ID] = h
	return nil
}

func (j *stubJournal) MarkStillWaiting(_ context.Context, id string, now time.Time) (domain.TransactionHandle, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	h, ok := j.handles[id]
	if !ok || h.State.Terminal() {
		return domain.TransactionHandle{}, domain.ErrNotFound
	}
	h.StillWaiting = true
	h.UpdatedAt = now
	j.handles[id] = h
	return h, nil
}

func (j *stubJournal) GetByID(_ context.Context, id string) (domain.TransactionHandle, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	h, ok := j.handles[id]
	if !ok {
		return domain.TransactionHandle{}, domain.ErrNotFound
	}
	return h, nil
}

func (j *stubJournal) ListRecent(_ context.Context, _ domain.ListOpts) ([]domain.TransactionHandle, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]domain.TransactionHandle, 0, len(j.handles))
	for _, h := range j.handles {
		out = append(out, h)
	}
	return out, nil
}

func (j *stubJournal) ListInFlight(_ context.Context) ([]domain.TransactionHandle, error) {
	return nil, nil
}

func (j *stubJournal) Delete(_ context.Context, id string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	delete(j.handles, id)
	return nil
}

func (j *stubJournal) Count(_ context.Context) (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return int64(len(j.handles)), nil
}

// stubSnapshots scripts the snapshot source.
type stubSnapshots struct {
	snap domain.MarketSnapshot
	ok   bool
}

func (s *stubSnapshots) Current() (domain.MarketSnapshot, bool) { return s.snap, s.ok }

func (s *stubSnapshots) Refresh(context.Context) (domain.MarketSnapshot, error) {
	if !s.ok {
		return domain.MarketSnapshot{}, domain.ErrEngineUnavailable
	}
	return s.snap, nil
}

func testSnapshot() domain.MarketSnapshot {
	return domain.MarketSnapshot{
		Version:       7,
		FetchedAt:     time.Now().UTC(),
		Question:      "Will it rain tomorrow?",
		OutcomeLabels: [2]string{"Yes", "No"},
		Oracle:        "0xaaaa000000000000000000000000000000000001",
		Owner:         "0xbbbb000000000000000000000000000000000002",
		Reserves:      [2]*big.Int{big.NewInt(3000), big.NewInt(1000)},
		OutcomeTokens: [2]string{"0x1111000000000000000000000000000000000001", "0x2222000000000000000000000000000000000002"},
		Collateral:    big.NewInt(4000),
	}
}

func TestGetMarket_NoSnapshotIsUnavailable(t *testing.T) {
	h := NewMarketHandler(&stubSnapshots{}, testLogger())

	rec := httptest.NewRecorder()
	h.GetMarket(rec, httptest.NewRequest(http.MethodGet, "/api/market", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetMarket_ProbabilitiesAndRoles(t *testing.T) {
	snaps := &stubSnapshots{snap: testSnapshot(), ok: true}
	h := NewMarketHandler(snaps, testLogger())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/market?viewer=0xAAAA000000000000000000000000000000000001", nil)
	h.GetMarket(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp marketResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, domain.SnapshotVersion(7), resp.Version)
	// Yes reserve is larger, so Yes is the cheaper, less likely outcome.
	assert.Equal(t, 25.0, resp.Outcomes[0].Probability)
	assert.Equal(t, 75.0, resp.Outcomes[1].Probability)

	require.NotNil(t, resp.Viewer)
	assert.True(t, resp.Viewer.IsOracle) // case-insensitive match
	assert.False(t, resp.Viewer.IsOwner)
}

func TestSubmitAction_MapsBlockingErrors(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"invalid quantity", domain.ErrInvalidQuantity, http.StatusBadRequest},
		{"missing quote", domain.ErrInsufficientQuote, http.StatusConflict},
		{"stale quote", domain.ErrStaleQuote, http.StatusConflict},
		{"engine unavailable", domain.ErrEngineUnavailable, http.StatusServiceUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			actions := &stubActions{
				submitFn: func(context.Context, domain.Action, string) (domain.TransactionHandle, error) {
					return domain.TransactionHandle{}, tc.err
				},
			}
			h := NewActionHandler(actions, newStubJournal(), testLogger())

			body := `{"type":"buy","outcome":0,"quantity":"1.5","quoteId":"q1"}`
			rec := httptest.NewRecorder()
			h.SubmitAction(rec, httptest.NewRequest(http.MethodPost, "/api/actions", strings.NewReader(body)))

			assert.Equal(t, tc.wantStatus, rec.Code)
		})
	}
}

func TestSubmitAction_EngineRejectionKeepsVerbatimReason(t *testing.T) {
	actions := &stubActions{
		submitFn: func(context.Context, domain.Action, string) (domain.TransactionHandle, error) {
			return domain.TransactionHandle{}, &domain.EngineRejection{Reason: "market already resolved"}
		},
	}
	h := NewActionHandler(actions, newStubJournal(), testLogger())

	body := `{"type":"report","outcome":1}`
	rec := httptest.NewRecorder()
	h.SubmitAction(rec, httptest.NewRequest(http.MethodPost, "/api/actions", strings.NewReader(body)))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "market already resolved")
}

func TestSubmitAction_ParsesDecimalQuantity(t *testing.T) {
	var got domain.Action
	actions := &stubActions{
		submitFn: func(_ context.Context, action domain.Action, _ string) (domain.TransactionHandle, error) {
			got = action
			now := time.Now().UTC()
			return domain.TransactionHandle{
				ID: "h1", Action: action, State: domain.LifecyclePending,
				TxHash: "0xabc", Value: big.NewInt(1), CreatedAt: now, UpdatedAt: now,
			}, nil
		},
	}
	h := NewActionHandler(actions, newStubJournal(), testLogger())

	body := `{"type":"sell","outcome":1,"quantity":"2.5"}`
	rec := httptest.NewRecorder()
	h.SubmitAction(rec, httptest.NewRequest(http.MethodPost, "/api/actions", strings.NewReader(body)))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, domain.ActionSell, got.Type)
	assert.Equal(t, domain.OutcomeNo, got.Outcome)
	assert.Equal(t, "2500000000000000000", got.Quantity.String())

	var view handleView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "pending", view.State)
	assert.Equal(t, "2.5", view.QuantityDec)
}

func TestSubmitAction_UnknownTypeRejected(t *testing.T) {
	h := NewActionHandler(&stubActions{}, newStubJournal(), testLogger())

	rec := httptest.NewRecorder()
	h.SubmitAction(rec, httptest.NewRequest(http.MethodPost, "/api/actions", strings.NewReader(`{"type":"short"}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDismissAction_InFlightConflicts(t *testing.T) {
	actions := &stubActions{
		dismissFn: func(context.Context, string) error {
			return domain.ErrHandleInFlight
		},
	}
	h := NewActionHandler(actions, newStubJournal(), testLogger())

	req := httptest.NewRequest(http.MethodDelete, "/api/actions/h1", nil)
	req.SetPathValue("id", "h1")
	rec := httptest.NewRecorder()
	h.DismissAction(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}
