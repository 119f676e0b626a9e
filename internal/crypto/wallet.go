package crypto

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Wallet is the local signing account.
type Wallet struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewWallet parses a hex private key (no 0x).
func NewWallet(privateKeyHex string) (*Wallet, error) {
	key, err := ethcrypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("crypto: parse private key: %w", err)
	}
	return &Wallet{key: key, address: ethcrypto.PubkeyToAddress(key.PublicKey)}, nil
}

// LoadWallet resolves the key with LoadKey and builds a Wallet.
func LoadWallet(cfg KeyConfig) (*Wallet, error) {
	k, err := LoadKey(cfg)
	if err != nil {
		return nil, err
	}
	return NewWallet(k)
}

// Address returns the wallet's account address.
func (w *Wallet) Address() common.Address { return w.address }

// SignTx signs tx for chainID with the latest signer rules.
func (w *Wallet) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), w.key)
	if err != nil {
		return nil, fmt.Errorf("crypto: sign tx: %w", err)
	}
	return signed, nil
}
