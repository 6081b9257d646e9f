package session

import (
	"context"
	"log/slog"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/predictlabs/marketd/internal/domain"
)

// fakeEngine implements the engine read/write surface with overridable
// hooks so each test controls pricing and submission outcomes.
type fakeEngine struct {
	buyPriceFn  func(o domain.Outcome, q *big.Int) (*big.Int, error)
	sellPriceFn func(o domain.Outcome, q *big.Int) (*big.Int, error)
	submitFn    func(method string, value *big.Int) (string, error)
}

func (f *fakeEngine) BuyPrice(ctx context.Context, o domain.Outcome, q *big.Int) (*big.Int, error) {
	return f.buyPriceFn(o, q)
}

func (f *fakeEngine) SellPrice(ctx context.Context, o domain.Outcome, q *big.Int) (*big.Int, error) {
	return f.sellPriceFn(o, q)
}

func (f *fakeEngine) MarketState(ctx context.Context) (domain.MarketSnapshot, error) {
	return domain.MarketSnapshot{}, nil
}

func (f *fakeEngine) Buy(ctx context.Context, o domain.Outcome, q, value *big.Int) (string, error) {
	return f.submitFn("buy", value)
}

func (f *fakeEngine) Sell(ctx context.Context, o domain.Outcome, q *big.Int) (string, error) {
	return f.submitFn("sell", nil)
}

func (f *fakeEngine) AddLiquidity(ctx context.Context, value *big.Int) (string, error) {
	return f.submitFn("addLiquidity", value)
}

func (f *fakeEngine) RemoveLiquidity(ctx context.Context, q *big.Int) (string, error) {
	return f.submitFn("removeLiquidity", nil)
}

func (f *fakeEngine) Redeem(ctx context.Context, q *big.Int) (string, error) {
	return f.submitFn("redeem", nil)
}

func (f *fakeEngine) Report(ctx context.Context, o domain.Outcome) (string, error) {
	return f.submitFn("report", nil)
}

func (f *fakeEngine) ResolveAndWithdraw(ctx context.Context) (string, error) {
	return f.submitFn("resolveMarketAndWithdraw", nil)
}

// fakeWaiter resolves receipts from a predefined table.
type fakeWaiter struct {
	receipts map[string]domain.Receipt
}

func (f *fakeWaiter) WaitReceipt(ctx context.Context, txHash string) (domain.Receipt, error) {
	if r, ok := f.receipts[txHash]; ok {
		return r, nil
	}
	<-ctx.Done()
	return domain.Receipt{}, ctx.Err()
}

// memJournal is an in-memory HandleStore.
type memJournal struct {
	mu      sync.Mutex
	handles map[string]domain.TransactionHandle
}

func newMemJournal() *memJournal {
	return &memJournal{handles: make(map[string]domain.TransactionHandle)}
}

func (m *memJournal) Create(ctx context.Context, h domain.TransactionHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handles[h.ID] = h
	return nil
}

func (m *memJournal) Update(ctx context.Context, h domain.TransactionHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handles[h.ID] = h
	return nil
}

func (m *memJournal) MarkStillWaiting(ctx context.Context, id string, now time.Time) (domain.TransactionHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.handles[id]
	if !ok || h.State.Terminal() {
		return domain.TransactionHandle{}, domain.ErrNotFound
	}
	h.StillWaiting = true
	h.UpdatedAt = now
	m.handles[id] = h
	return h, nil
}

func (m *memJournal) GetByID(ctx context.Context, id string) (domain.TransactionHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.handles[id]
	if !ok {
		return domain.TransactionHandle{}, domain.ErrNotFound
	}
	return h, nil
}

func (m *memJournal) ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.TransactionHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.TransactionHandle, 0, len(m.handles))
	for _, h := range m.handles {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memJournal) ListInFlight(ctx context.Context) ([]domain.TransactionHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.TransactionHandle
	for _, h := range m.handles {
		if !h.State.Terminal() {
			out = append(out, h)
		}
	}
	return out, nil
}

func (m *memJournal) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.handles[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.handles, id)
	return nil
}

func (m *memJournal) Count(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.handles)), nil
}

// fakeSnapshots is a settable SnapshotSource.
type fakeSnapshots struct {
	mu   sync.Mutex
	snap domain.MarketSnapshot
	ok   bool
}

func (f *fakeSnapshots) set(snap domain.MarketSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snap = snap
	f.ok = true
}

func (f *fakeSnapshots) Current() (domain.MarketSnapshot, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap, f.ok
}

func (f *fakeSnapshots) Version() domain.SnapshotVersion {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap.Version
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
