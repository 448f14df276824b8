// Package chain wraps the JSON-RPC endpoint, the hot wallet and the
// transaction retry engine behind small interfaces the rest of the service
// consumes.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/time/rate"

	"github.com/stomatrade/chain-sync/internal/config"
	"github.com/stomatrade/chain-sync/internal/errors"
	"github.com/stomatrade/chain-sync/internal/logging"
)

// FeeData holds the dynamic-fee parameters for one submission attempt
type FeeData struct {
	BaseFee *big.Int
	TipCap  *big.Int
	FeeCap  *big.Int
}

// Backend is the read surface of the chain the executor and sync engine
// depend on. *ChainProvider is the production implementation; tests use
// fakes.
type Backend interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FeeData(ctx context.Context) (*FeeData, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error)
	FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]ethtypes.Log, error)
	WaitForReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
	ChainID() *big.Int
}

// ChainProvider wraps an ethclient connection pinned to one chain id.
// All RPC calls pass through a request-rate limiter.
type ChainProvider struct {
	client         *ethclient.Client
	chainID        *big.Int
	limiter        *rate.Limiter
	receiptTimeout time.Duration
	receiptPoll    time.Duration
}

// NewChainProvider dials the RPC endpoint and verifies it reports the
// configured chain id. A mismatch is fatal: trusting whatever network the
// endpoint happens to serve would sign transactions into the wrong chain.
func NewChainProvider(ctx context.Context, cfg *config.ChainConfig, receiptTimeout time.Duration) (*ChainProvider, error) {
	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, errors.NewProviderError("dial", err)
	}

	reported, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, errors.NewProviderError("chain id check", err)
	}

	if reported.Int64() != cfg.ChainID {
		client.Close()
		return nil, errors.NewChainMismatchError(cfg.ChainID, reported.Int64())
	}

	rps := cfg.RPCRateLimit
	if rps <= 0 {
		rps = 20
	}

	logging.GetGlobalLogger().WithFields(map[string]interface{}{
		"chainId": cfg.ChainID,
		"rps":     rps,
	}).Info("Chain provider connected")

	return &ChainProvider{
		client:         client,
		chainID:        new(big.Int).Set(reported),
		limiter:        rate.NewLimiter(rate.Limit(rps), rps),
		receiptTimeout: receiptTimeout,
		receiptPoll:    2 * time.Second,
	}, nil
}

// ChainID returns the pinned chain id
func (p *ChainProvider) ChainID() *big.Int {
	return p.chainID
}

// BlockNumber returns the current head block number
func (p *ChainProvider) BlockNumber(ctx context.Context) (uint64, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	blockNum, err := p.client.BlockNumber(ctx)
	if err != nil {
		return 0, errors.NewProviderError("block number", err)
	}
	return blockNum, nil
}

// FeeData fetches the current dynamic-fee parameters. FeeCap is
// 2*baseFee + tip, giving headroom for base fee growth over the next blocks.
func (p *ChainProvider) FeeData(ctx context.Context) (*FeeData, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	header, err := p.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, errors.NewProviderError("fee data header", err)
	}

	tipCap, err := p.client.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, errors.NewProviderError("fee data tip cap", err)
	}

	baseFee := header.BaseFee
	if baseFee == nil {
		baseFee = big.NewInt(0)
	}

	feeCap := new(big.Int).Add(
		new(big.Int).Mul(baseFee, big.NewInt(2)),
		tipCap,
	)

	return &FeeData{
		BaseFee: baseFee,
		TipCap:  tipCap,
		FeeCap:  feeCap,
	}, nil
}

// EstimateGas estimates gas for the given call. Callers must set msg.From:
// estimating without the sender silently underestimates for calls whose cost
// depends on sender state.
func (p *ChainProvider) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	if msg.From == (common.Address{}) {
		return 0, fmt.Errorf("gas estimation requires the sender address")
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	gas, err := p.client.EstimateGas(ctx, msg)
	if err != nil {
		return 0, errors.NewProviderError("gas estimation", err)
	}
	return gas, nil
}

// CallContract performs a read-only call at the latest block
func (p *ChainProvider) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	out, err := p.client.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, errors.NewProviderError("contract call", err)
	}
	return out, nil
}

// FilterLogs queries historical logs
func (p *ChainProvider) FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]ethtypes.Log, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	logs, err := p.client.FilterLogs(ctx, query)
	if err != nil {
		return nil, errors.NewProviderError("filter logs", err)
	}
	return logs, nil
}

// WaitForReceipt polls for the transaction receipt until it appears or the
// receipt timeout elapses. The timeout surfaces as a retryable failure, not
// a hang.
func (p *ChainProvider) WaitForReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error) {
	waitCtx, cancel := context.WithTimeout(ctx, p.receiptTimeout)
	defer cancel()

	ticker := time.NewTicker(p.receiptPoll)
	defer ticker.Stop()

	for {
		if err := p.limiter.Wait(waitCtx); err != nil {
			return nil, errors.NewReceiptTimeoutError(txHash.Hex())
		}

		receipt, err := p.client.TransactionReceipt(waitCtx, txHash)
		if err == nil {
			return receipt, nil
		}
		if err != ethereum.NotFound {
			return nil, errors.NewProviderError("transaction receipt", err)
		}

		select {
		case <-waitCtx.Done():
			return nil, errors.NewReceiptTimeoutError(txHash.Hex())
		case <-ticker.C:
		}
	}
}

// PendingNonceAt returns the next nonce for an account including pending txs
func (p *ChainProvider) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	nonce, err := p.client.PendingNonceAt(ctx, account)
	if err != nil {
		return 0, errors.NewProviderError("pending nonce", err)
	}
	return nonce, nil
}

// BalanceAt returns the native balance of an account at the latest block
func (p *ChainProvider) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	balance, err := p.client.BalanceAt(ctx, account, nil)
	if err != nil {
		return nil, errors.NewProviderError("balance", err)
	}
	return balance, nil
}

// SendTransaction broadcasts a signed transaction
func (p *ChainProvider) SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}

	if err := p.client.SendTransaction(ctx, tx); err != nil {
		return errors.NewProviderError("send transaction", err)
	}
	return nil
}

// Close closes the underlying client connection
func (p *ChainProvider) Close() {
	if p.client != nil {
		p.client.Close()
	}
}
