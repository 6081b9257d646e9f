package eth

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/predictlabs/marketd/internal/domain"
)

// receiptPollInterval is how often WaitReceipt re-queries the node while a
// transaction is unmined.
const receiptPollInterval = 2 * time.Second

// WaitReceipt polls the node until the transaction is mined or ctx is done.
// It observes only; the transaction is never resubmitted or cancelled. A
// revert receipt is reported with the engine's reason text recovered by
// replaying the call at the receipt's block.
func (c *Client) WaitReceipt(ctx context.Context, txHash string) (domain.Receipt, error) {
	hash := common.HexToHash(txHash)

	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.eth.TransactionReceipt(ctx, hash)
		if err == nil {
			return c.finishReceipt(ctx, hash, receipt)
		}
		if !errors.Is(err, ethereum.NotFound) {
			return domain.Receipt{}, fmt.Errorf("eth: receipt %s: %w: %w", txHash, domain.ErrEngineUnavailable, err)
		}

		select {
		case <-ctx.Done():
			return domain.Receipt{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) finishReceipt(ctx context.Context, hash common.Hash, receipt *types.Receipt) (domain.Receipt, error) {
	out := domain.Receipt{
		TxHash:      hash.Hex(),
		Succeeded:   receipt.Status == types.ReceiptStatusSuccessful,
		BlockNumber: receipt.BlockNumber.Uint64(),
	}

	if !out.Succeeded {
		out.RevertReason = c.revertReasonAt(ctx, hash, receipt)
		c.logger.WarnContext(ctx, "transaction reverted",
			slog.String("tx_hash", out.TxHash),
			slog.String("reason", out.RevertReason),
		)
	}

	return out, nil
}

// revertReasonAt replays the failed transaction as a call at its block to
// recover the engine's revert string. Falls back to a generic message when
// the node does not expose one.
func (c *Client) revertReasonAt(ctx context.Context, hash common.Hash, receipt *types.Receipt) string {
	tx, _, err := c.eth.TransactionByHash(ctx, hash)
	if err != nil {
		return "transaction reverted"
	}

	signer := types.LatestSignerForChainID(c.chainID)
	from, err := types.Sender(signer, tx)
	if err != nil {
		return "transaction reverted"
	}

	_, err = c.eth.CallContract(ctx, ethereum.CallMsg{
		From:  from,
		To:    tx.To(),
		Gas:   tx.Gas(),
		Value: tx.Value(),
		Data:  tx.Data(),
	}, receipt.BlockNumber)
	if err == nil {
		return "transaction reverted"
	}
	return revertText(err)
}

// decodeRevertReason unpacks an ABI-encoded Error(string) payload from hex
// error data. Returns false when the payload is not a standard revert string.
func decodeRevertReason(hexData string) (string, bool) {
	data, err := hex.DecodeString(strings.TrimPrefix(hexData, "0x"))
	if err != nil {
		return "", false
	}
	// 4-byte Error(string) selector 0x08c379a0 followed by ABI-encoded string.
	if len(data) < 4+32+32 || data[0] != 0x08 || data[1] != 0xc3 || data[2] != 0x79 || data[3] != 0xa0 {
		return "", false
	}
	payload := data[4:]
	// Skip the offset word; the next word is the string length.
	length := new(big.Int).SetBytes(payload[32:64])
	if !length.IsUint64() || 64+length.Uint64() > uint64(len(payload)) {
		return "", false
	}
	return string(payload[64 : 64+length.Uint64()]), true
}
