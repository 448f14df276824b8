package chain

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/stomatrade/chain-sync/internal/errors"
	"github.com/stomatrade/chain-sync/internal/logging"
	"github.com/stomatrade/chain-sync/internal/models"
	"github.com/stomatrade/chain-sync/internal/retry"
)

// DefaultGasSafetyFactor pads gas estimates against drift between the
// estimate and inclusion.
const DefaultGasSafetyFactor = 1.2

// TransactionExecutor is the contract the domain services program against:
// writes go through Submit with retries, reads through Call without them.
type TransactionExecutor interface {
	Submit(ctx context.Context, req *models.TransactionRequest, opts *SubmitOptions) (*models.TransactionOutcome, error)
	Call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error)
}

// SubmitOptions tune one submission. Zero values fall back to the
// executor's configured defaults.
type SubmitOptions struct {
	GasLimit           uint64
	MaxRetries         int
	ConfirmationBlocks uint64
}

// ExecutorConfig configures an Executor
type ExecutorConfig struct {
	Contract        common.Address
	ABI             abi.ABI
	Backend         Backend
	Submitter       Submitter
	Policy          retry.Policy
	GasSafetyFactor float64
}

// Executor populates contract calls into raw transactions, estimates gas
// with a safety margin, submits through the signer and retries transient
// failures with exponential backoff.
type Executor struct {
	contract        common.Address
	abi             abi.ABI
	backend         Backend
	submitter       Submitter
	policy          retry.Policy
	gasSafetyFactor float64
}

// NewExecutor creates a transaction executor
func NewExecutor(cfg *ExecutorConfig) (*Executor, error) {
	if cfg.Backend == nil {
		return nil, fmt.Errorf("backend cannot be nil")
	}
	if cfg.Submitter == nil {
		return nil, fmt.Errorf("submitter cannot be nil")
	}

	policy := cfg.Policy
	if policy.MaxAttempts == 0 {
		policy = retry.DefaultPolicy()
	}

	gasSafetyFactor := cfg.GasSafetyFactor
	if gasSafetyFactor <= 0 {
		gasSafetyFactor = DefaultGasSafetyFactor
	}

	return &Executor{
		contract:        cfg.Contract,
		abi:             cfg.ABI,
		backend:         cfg.Backend,
		submitter:       cfg.Submitter,
		policy:          policy,
		gasSafetyFactor: gasSafetyFactor,
	}, nil
}

// Submit executes a contract write. Every attempt is a fully independent
// submission: fresh fee data, fresh gas estimate, fresh nonce. A mined
// receipt with a failed status counts as a retryable failure, the same as a
// submission error, since gas and nonce state may have moved underneath the
// attempt. After exhausting retries the last failure is surfaced as a
// TX_RETRIES_EXHAUSTED error.
func (e *Executor) Submit(ctx context.Context, req *models.TransactionRequest, opts *SubmitOptions) (*models.TransactionOutcome, error) {
	if opts == nil {
		opts = &SubmitOptions{}
	}

	policy := e.policy
	if opts.MaxRetries > 0 {
		policy.MaxAttempts = opts.MaxRetries
	}

	confirmations := opts.ConfirmationBlocks
	if confirmations == 0 {
		confirmations = 1
	}

	data, err := e.abi.Pack(req.Method, req.Args...)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s call: %w", req.Method, err)
	}

	var outcome *models.TransactionOutcome

	result := policy.Run(ctx, errors.IsRetryable, func(ctx context.Context, attempt int) error {
		out, err := e.attempt(ctx, req, data, opts.GasLimit, confirmations, attempt)
		if err != nil {
			return err
		}
		outcome = out
		return nil
	})

	if !result.Success {
		return nil, errors.NewRetriesExhaustedError(result.Attempts, result.LastError)
	}

	outcome.Attempts = result.Attempts
	return outcome, nil
}

// attempt performs one full submission cycle: fees, gas, broadcast, receipt.
func (e *Executor) attempt(ctx context.Context, req *models.TransactionRequest, data []byte, gasOverride uint64, confirmations uint64, attempt int) (*models.TransactionOutcome, error) {
	logger := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"method":  req.Method,
		"attempt": attempt,
	})

	fees, err := e.backend.FeeData(ctx)
	if err != nil {
		return nil, err
	}

	gasLimit := gasOverride
	if gasLimit == 0 {
		gasLimit = req.GasLimit
	}
	if gasLimit == 0 {
		// The sender address must be part of the estimate call; omitting
		// it silently underestimates sender-dependent call paths.
		estimate, err := e.backend.EstimateGas(ctx, ethereum.CallMsg{
			From:  e.submitter.Address(),
			To:    &e.contract,
			Data:  data,
			Value: req.Value,
		})
		if err != nil {
			return nil, err
		}
		gasLimit = uint64(math.Ceil(float64(estimate) * e.gasSafetyFactor))
	}

	logger.WithFields(map[string]interface{}{
		"gasLimit": gasLimit,
		"tipCap":   fees.TipCap.String(),
		"feeCap":   fees.FeeCap.String(),
	}).Info("Submitting transaction")

	txHash, err := e.submitter.Submit(ctx, e.contract, data, req.Value, gasLimit, fees)
	if err != nil {
		return nil, err
	}

	receipt, err := e.backend.WaitForReceipt(ctx, txHash)
	if err != nil {
		return nil, err
	}

	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		logger.WithField("txHash", txHash.Hex()).Warn("Transaction mined but reverted")
		return nil, errors.NewRevertedError(txHash.Hex())
	}

	if confirmations > 1 {
		if err := e.waitConfirmations(ctx, receipt.BlockNumber.Uint64(), confirmations); err != nil {
			return nil, err
		}
	}

	effectiveGasPrice := "0"
	if receipt.EffectiveGasPrice != nil {
		effectiveGasPrice = receipt.EffectiveGasPrice.String()
	}

	logger.WithFields(map[string]interface{}{
		"txHash":  txHash.Hex(),
		"block":   receipt.BlockNumber.Uint64(),
		"gasUsed": receipt.GasUsed,
	}).Info("Transaction confirmed")

	return &models.TransactionOutcome{
		Hash:              txHash.Hex(),
		Receipt:           receipt,
		Success:           true,
		BlockNumber:       receipt.BlockNumber.Uint64(),
		GasUsed:           receipt.GasUsed,
		EffectiveGasPrice: effectiveGasPrice,
	}, nil
}

// waitConfirmations blocks until the head has advanced the requested number
// of blocks past the inclusion block.
func (e *Executor) waitConfirmations(ctx context.Context, minedAt uint64, confirmations uint64) error {
	target := minedAt + confirmations - 1

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		head, err := e.backend.BlockNumber(ctx)
		if err != nil {
			return err
		}
		if head >= target {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Call performs a read-only contract method call through the provider.
// Reads fail immediately on error: they are idempotent and cheap for the
// caller to retry at its own discretion.
func (e *Executor) Call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := e.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s call: %w", method, err)
	}

	out, err := e.backend.CallContract(ctx, ethereum.CallMsg{
		From: e.submitter.Address(),
		To:   &e.contract,
		Data: data,
	})
	if err != nil {
		return nil, err
	}

	results, err := e.abi.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s result: %w", method, err)
	}

	return results, nil
}

// Contract returns the target contract address
func (e *Executor) Contract() common.Address {
	return e.contract
}
