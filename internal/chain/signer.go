package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/stomatrade/chain-sync/internal/logging"
	"github.com/stomatrade/chain-sync/internal/models"
)

// Submitter is the write surface the executor depends on. Submissions from
// one signer are serialized internally: two in-flight transactions with the
// same nonce would collide.
type Submitter interface {
	Address() common.Address
	Submit(ctx context.Context, to common.Address, data []byte, value *big.Int, gasLimit uint64, fees *FeeData) (common.Hash, error)
}

// WalletSigner holds the single hot key used for all contract writes.
// The key material itself must never reach a log line.
type WalletSigner struct {
	key      *ecdsa.PrivateKey
	address  common.Address
	provider *ChainProvider

	// serializes nonce acquisition and broadcast
	mu sync.Mutex
}

// NewWalletSigner parses the hex-encoded private key and binds the signer to
// a provider.
func NewWalletSigner(keyHex string, provider *ChainProvider) (*WalletSigner, error) {
	keyHex = strings.TrimPrefix(strings.TrimSpace(keyHex), "0x")

	key, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		// Deliberately not echoing the input back
		return nil, fmt.Errorf("invalid signer private key: %w", err)
	}

	return &WalletSigner{
		key:      key,
		address:  crypto.PubkeyToAddress(key.PublicKey),
		provider: provider,
	}, nil
}

// Address returns the signer's account address
func (s *WalletSigner) Address() common.Address {
	return s.address
}

// Balance returns the signer's native balance
func (s *WalletSigner) Balance(ctx context.Context) (*big.Int, error) {
	return s.provider.BalanceAt(ctx, s.address)
}

// PendingNonce returns the next usable nonce including pending transactions
func (s *WalletSigner) PendingNonce(ctx context.Context) (uint64, error) {
	return s.provider.PendingNonceAt(ctx, s.address)
}

// CheckFunding logs a warning when the wallet balance is below the
// operational threshold. A warning, not a failure: an underfunded signer can
// still serve reads and may be topped up while running.
func (s *WalletSigner) CheckFunding(ctx context.Context, threshold *big.Int) {
	logger := logging.FromContext(ctx)

	balance, err := s.Balance(ctx)
	if err != nil {
		logger.WithError(err).Warn("Could not check signer wallet balance")
		return
	}

	if threshold != nil && balance.Cmp(threshold) < 0 {
		logger.WithFields(map[string]interface{}{
			"address":   s.address.Hex(),
			"balance":   models.FromBaseUnits(balance),
			"threshold": models.FromBaseUnits(threshold),
		}).Warn("Signer wallet balance below operational threshold, submissions will fail")
		return
	}

	logger.WithFields(map[string]interface{}{
		"address": s.address.Hex(),
		"balance": models.FromBaseUnits(balance),
	}).Info("Signer wallet funded")
}

// Submit signs and broadcasts one dynamic-fee transaction. The nonce is
// fetched fresh under the lock so every attempt is an independent
// submission, never a replay of an earlier signed payload.
func (s *WalletSigner) Submit(ctx context.Context, to common.Address, data []byte, value *big.Int, gasLimit uint64, fees *FeeData) (common.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nonce, err := s.provider.PendingNonceAt(ctx, s.address)
	if err != nil {
		return common.Hash{}, err
	}

	if value == nil {
		value = big.NewInt(0)
	}

	tx := ethtypes.NewTx(&ethtypes.DynamicFeeTx{
		ChainID:   s.provider.ChainID(),
		Nonce:     nonce,
		GasTipCap: fees.TipCap,
		GasFeeCap: fees.FeeCap,
		Gas:       gasLimit,
		To:        &to,
		Value:     value,
		Data:      data,
	})

	signedTx, err := ethtypes.SignTx(tx, ethtypes.LatestSignerForChainID(s.provider.ChainID()), s.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := s.provider.SendTransaction(ctx, signedTx); err != nil {
		return common.Hash{}, err
	}

	return signedTx.Hash(), nil
}
