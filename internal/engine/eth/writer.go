package eth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/predictlabs/marketd/internal/domain"
)

// transact packs, signs, and broadcasts one state-changing call with the
// given attached value. It returns the transaction hash once the node has
// accepted the transaction into its mempool. Gas estimation failures are
// engine rejections (the call would revert) and wrap ErrEngineError.
func (c *Client) transact(ctx context.Context, method string, value *big.Int, args ...any) (string, error) {
	if c.wallet == nil {
		return "", fmt.Errorf("eth: %s: no wallet configured for writes", method)
	}

	input, err := contractABI.Pack(method, args...)
	if err != nil {
		return "", fmt.Errorf("eth: pack %s: %w", method, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	from := c.wallet.Address()

	nonce, err := c.eth.PendingNonceAt(ctx, from)
	if err != nil {
		return "", fmt.Errorf("eth: %s: nonce: %w: %w", method, domain.ErrEngineUnavailable, err)
	}

	msg := ethereum.CallMsg{From: from, To: &c.contract, Value: value, Data: input}
	gas, err := c.eth.EstimateGas(ctx, msg)
	if err != nil {
		// The node simulates the call during estimation, so a revert
		// surfaces here with the engine's reason text.
		return "", fmt.Errorf("eth: %s: %w", method, &domain.EngineRejection{Reason: revertText(err)})
	}

	tipCap, err := c.eth.SuggestGasTipCap(ctx)
	if err != nil {
		return "", fmt.Errorf("eth: %s: tip cap: %w: %w", method, domain.ErrEngineUnavailable, err)
	}
	head, err := c.eth.HeaderByNumber(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("eth: %s: head: %w: %w", method, domain.ErrEngineUnavailable, err)
	}
	feeCap := new(big.Int).Add(tipCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   c.chainID,
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &c.contract,
		Value:     value,
		Data:      input,
	})

	signed, err := c.wallet.SignTx(tx, c.chainID)
	if err != nil {
		return "", fmt.Errorf("eth: %s: %w", method, err)
	}

	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("eth: %s: send: %w", method, &domain.EngineRejection{Reason: revertText(err)})
	}

	hash := signed.Hash().Hex()
	c.logger.InfoContext(ctx, "transaction broadcast",
		slog.String("method", method),
		slog.String("tx_hash", hash),
		slog.Uint64("nonce", nonce),
	)
	return hash, nil
}

// revertText extracts the most useful human-readable reason from a node
// error, preferring any ABI-encoded revert string carried as error data.
func revertText(err error) string {
	var dataErr interface{ ErrorData() interface{} }
	if errors.As(err, &dataErr) {
		if hexData, ok := dataErr.ErrorData().(string); ok {
			if reason, ok := decodeRevertReason(hexData); ok {
				return reason
			}
		}
	}
	return err.Error()
}

// Buy purchases quantity outcome tokens with value attached as the payable
// bound. The caller is responsible for value being a fresh quoted cost.
func (c *Client) Buy(ctx context.Context, outcome domain.Outcome, quantity, value *big.Int) (string, error) {
	return c.transact(ctx, "buyTokensWithETH", value, uint8(outcome), quantity)
}

// Sell surrenders quantity outcome tokens; no value is attached.
func (c *Client) Sell(ctx context.Context, outcome domain.Outcome, quantity *big.Int) (string, error) {
	return c.transact(ctx, "sellTokensForEth", nil, uint8(outcome), quantity)
}

// AddLiquidity contributes value to the pool.
func (c *Client) AddLiquidity(ctx context.Context, value *big.Int) (string, error) {
	return c.transact(ctx, "addLiquidity", value)
}

// RemoveLiquidity burns quantity LP tokens.
func (c *Client) RemoveLiquidity(ctx context.Context, quantity *big.Int) (string, error) {
	return c.transact(ctx, "removeLiquidity", nil, quantity)
}

// Redeem burns quantity winning tokens for collateral.
func (c *Client) Redeem(ctx context.Context, quantity *big.Int) (string, error) {
	return c.transact(ctx, "redeemWinningTokens", nil, quantity)
}

// Report declares the winning outcome. The engine enforces the oracle role;
// a non-oracle caller reverts there.
func (c *Client) Report(ctx context.Context, outcome domain.Outcome) (string, error) {
	return c.transact(ctx, "report", nil, uint8(outcome))
}

// ResolveAndWithdraw finalizes the market. Owner-gated at the engine.
func (c *Client) ResolveAndWithdraw(ctx context.Context) (string, error) {
	return c.transact(ctx, "resolveMarketAndWithdraw", nil)
}
