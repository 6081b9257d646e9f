package domain

import (
	"math/big"
	"time"
)

// Side distinguishes the two pricing semantics the engine exposes: a buy
// quote returns the cost of acquiring tokens, a sell quote the proceeds of
// surrendering them.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Quote is a non-binding, point-in-time price estimate for a prospective
// trade. It records the exact inputs it priced and the snapshot version it
// was fetched under; either drifting invalidates it for submission.
type Quote struct {
	ID               string          `json:"id"`
	Side             Side            `json:"side"`
	Outcome          Outcome         `json:"outcome"`
	Quantity         *big.Int        `json:"quantity"`
	Price            *big.Int        `json:"price"` // cost for buys, proceeds for sells
	FetchedAtVersion SnapshotVersion `json:"fetchedAtVersion"`
	FetchedAt        time.Time       `json:"fetchedAt"`
}

// FreshFor reports whether the quote may back a submission of the given
// inputs under the current snapshot version. Any mismatch is conservative:
// a stale quote whose price would happen to equal a fresh one still blocks.
func (q Quote) FreshFor(side Side, outcome Outcome, quantity *big.Int, current SnapshotVersion) bool {
	if q.Price == nil || q.Quantity == nil || quantity == nil {
		return false
	}
	return q.Side == side &&
		q.Outcome == outcome &&
		q.Quantity.Cmp(quantity) == 0 &&
		q.FetchedAtVersion == current
}
