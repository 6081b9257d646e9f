// Package eth implements the domain engine interfaces against an EVM
// settlement contract using go-ethereum's JSON-RPC client. All amounts cross
// this boundary as 18-decimal base units; nothing here converts to or from
// human decimal strings.
package eth

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/predictlabs/marketd/internal/crypto"
)

// ClientConfig holds connection parameters for the engine client.
type ClientConfig struct {
	RPCURL          string
	ContractAddress string
	ChainID         int64
}

// Client wraps an ethclient connection to the node hosting the settlement
// engine. It is safe for concurrent use; write submissions are serialized
// internally so nonce assignment stays consistent.
type Client struct {
	eth      *ethclient.Client
	contract common.Address
	chainID  *big.Int
	wallet   *crypto.Wallet
	logger   *slog.Logger

	// writeMu serializes nonce fetch + sign + broadcast for writes.
	writeMu sync.Mutex
}

// New dials the node, verifies the chain ID when one is configured, and
// returns a ready Client. The wallet may be nil for read-only deployments;
// writes then fail with an explicit error.
func New(ctx context.Context, cfg ClientConfig, wallet *crypto.Wallet, logger *slog.Logger) (*Client, error) {
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, fmt.Errorf("eth: invalid contract address %q", cfg.ContractAddress)
	}

	ec, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("eth: dial %s: %w", cfg.RPCURL, err)
	}

	chainID, err := ec.ChainID(ctx)
	if err != nil {
		ec.Close()
		return nil, fmt.Errorf("eth: chain id: %w", err)
	}
	if cfg.ChainID != 0 && chainID.Int64() != cfg.ChainID {
		ec.Close()
		return nil, fmt.Errorf("eth: node chain id %d does not match configured %d", chainID, cfg.ChainID)
	}

	return &Client{
		eth:      ec,
		contract: common.HexToAddress(cfg.ContractAddress),
		chainID:  chainID,
		wallet:   wallet,
		logger:   logger.With(slog.String("component", "engine")),
	}, nil
}

// Ping checks node connectivity with a block number request.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.eth.BlockNumber(ctx); err != nil {
		return fmt.Errorf("eth: ping: %w", err)
	}
	return nil
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}

// ContractAddress returns the deployed engine's address.
func (c *Client) ContractAddress() common.Address {
	return c.contract
}
