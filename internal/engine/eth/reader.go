package eth

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/predictlabs/marketd/internal/domain"
)

// call executes a read against the contract at the latest block.
func (c *Client) call(ctx context.Context, method string, args ...any) ([]any, error) {
	input, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("eth: pack %s: %w", method, err)
	}

	out, err := c.eth.CallContract(ctx, ethereum.CallMsg{
		To:   &c.contract,
		Data: input,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("eth: call %s: %w: %w", method, domain.ErrEngineUnavailable, err)
	}

	vals, err := contractABI.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("eth: unpack %s: %w", method, err)
	}
	return vals, nil
}

// MarketState reads and decodes the engine's 16-field market tuple. An
// unresolved market (isReported false, zero winning token) is a normal
// state, not an error.
func (c *Client) MarketState(ctx context.Context) (domain.MarketSnapshot, error) {
	vals, err := c.call(ctx, "getPrediction")
	if err != nil {
		return domain.MarketSnapshot{}, err
	}
	if len(vals) != 16 {
		return domain.MarketSnapshot{}, fmt.Errorf("eth: getPrediction returned %d values, want 16", len(vals))
	}

	snap := domain.MarketSnapshot{
		Question:           vals[0].(string),
		OutcomeLabels:      [2]string{vals[1].(string), vals[2].(string)},
		Oracle:             vals[3].(common.Address).Hex(),
		InitialTokenValue:  vals[4].(*big.Int),
		Reserves:           [2]*big.Int{vals[5].(*big.Int), vals[6].(*big.Int)},
		IsResolved:         vals[7].(bool),
		OutcomeTokens:      [2]string{vals[8].(common.Address).Hex(), vals[9].(common.Address).Hex()},
		Collateral:         vals[11].(*big.Int),
		LiquidityRevenue:   vals[12].(*big.Int),
		Owner:              vals[13].(common.Address).Hex(),
		InitialProbability: vals[14].(*big.Int).Uint64(),
		PercentageLocked:   vals[15].(*big.Int).Uint64(),
	}

	// The winning token slot is the zero address until the oracle reports.
	if win := vals[10].(common.Address); win != (common.Address{}) {
		snap.WinningToken = win.Hex()
	}

	return snap, nil
}

// BuyPrice returns the current cost in base units of buying quantity
// outcome tokens.
func (c *Client) BuyPrice(ctx context.Context, outcome domain.Outcome, quantity *big.Int) (*big.Int, error) {
	vals, err := c.call(ctx, "getBuyPriceInEth", uint8(outcome), quantity)
	if err != nil {
		return nil, err
	}
	return vals[0].(*big.Int), nil
}

// SellPrice returns the current proceeds in base units of selling quantity
// outcome tokens.
func (c *Client) SellPrice(ctx context.Context, outcome domain.Outcome, quantity *big.Int) (*big.Int, error) {
	vals, err := c.call(ctx, "getSellPriceInEth", uint8(outcome), quantity)
	if err != nil {
		return nil, err
	}
	return vals[0].(*big.Int), nil
}
