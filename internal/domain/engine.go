package domain

import (
	"context"
	"math/big"
)

// EngineReader is the settlement engine's read surface. Reads never change
// engine state and may be issued concurrently.
type EngineReader interface {
	// MarketState decodes the engine's full public market tuple. The
	// returned snapshot has no Version or FetchedAt set; the snapshot
	// reader assigns both when it publishes.
	MarketState(ctx context.Context) (MarketSnapshot, error)

	// BuyPrice returns the current cost, in base units, of acquiring
	// quantity outcome tokens.
	BuyPrice(ctx context.Context, outcome Outcome, quantity *big.Int) (*big.Int, error)

	// SellPrice returns the current proceeds, in base units, of
	// surrendering quantity outcome tokens.
	SellPrice(ctx context.Context, outcome Outcome, quantity *big.Int) (*big.Int, error)
}

// EngineWriter submits state-changing requests to the settlement engine.
// Each call signs and broadcasts exactly one transaction and returns its
// hash once the engine's node has accepted it into the mempool. Acceptance
// is not confirmation; the ReceiptWaiter observes finality.
type EngineWriter interface {
	// Buy purchases quantity outcome tokens, attaching value as the
	// payable bound. The engine refunds nothing: value must be the
	// quoted cost, no more, no less at submission time.
	Buy(ctx context.Context, outcome Outcome, quantity, value *big.Int) (string, error)

	// Sell surrenders quantity outcome tokens for the curve's proceeds.
	Sell(ctx context.Context, outcome Outcome, quantity *big.Int) (string, error)

	// AddLiquidity contributes value to the pool.
	AddLiquidity(ctx context.Context, value *big.Int) (string, error)

	// RemoveLiquidity burns quantity LP tokens.
	RemoveLiquidity(ctx context.Context, quantity *big.Int) (string, error)

	// Redeem burns quantity winning tokens for collateral.
	Redeem(ctx context.Context, quantity *big.Int) (string, error)

	// Report declares the winning outcome. Oracle-gated by the engine.
	Report(ctx context.Context, outcome Outcome) (string, error)

	// ResolveAndWithdraw finalizes the market. Owner-gated by the engine.
	ResolveAndWithdraw(ctx context.Context) (string, error)
}

// Receipt is the finality result for one submitted transaction.
type Receipt struct {
	TxHash string
	// Succeeded is true for a success receipt, false for a revert.
	Succeeded bool
	// RevertReason carries the engine's verbatim failure text when
	// Succeeded is false and the node exposed one.
	RevertReason string
	BlockNumber  uint64
}

// ReceiptWaiter blocks until the given transaction reaches finality or ctx
// is done. It observes only: it never resubmits or cancels the underlying
// transaction.
type ReceiptWaiter interface {
	WaitReceipt(ctx context.Context, txHash string) (Receipt, error)
}
