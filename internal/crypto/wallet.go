package crypto

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Wallet holds the secp256k1 key that signs settlement-engine transactions.
type Wallet struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// NewWallet creates a Wallet from a hex-encoded private key (with or without
// 0x prefix), typically resolved via LoadKey.
func NewWallet(privateKeyHex string) (*Wallet, error) {
	keyHex := strings.TrimPrefix(privateKeyHex, "0x")
	pk, err := ethcrypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("crypto/wallet: invalid private key: %w", err)
	}

	return &Wallet{
		privateKey: pk,
		address:    ethcrypto.PubkeyToAddress(pk.PublicKey),
	}, nil
}

// Address returns the Ethereum address derived from the wallet's key.
func (w *Wallet) Address() common.Address {
	return w.address
}

// SignTx signs a transaction for the given chain using EIP-155 replay
// protection (or the typed-transaction signer when the tx demands it).
func (w *Wallet) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	signer := types.LatestSignerForChainID(chainID)
	signed, err := types.SignTx(tx, signer, w.privateKey)
	if err != nil {
		return nil, fmt.Errorf("crypto/wallet: sign tx: %w", err)
	}
	return signed, nil
}
