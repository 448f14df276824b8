package chain

import (
	"context"
	"errors"
	"math"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chainerrors "github.com/stomatrade/chain-sync/internal/errors"
	"github.com/stomatrade/chain-sync/internal/models"
	"github.com/stomatrade/chain-sync/internal/retry"
)

const testABIJSON = `[
	{"type":"function","name":"ping","stateMutability":"nonpayable","inputs":[{"name":"x","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"echo","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]}
]`

var testContract = common.HexToAddress("0x00000000000000000000000000000000000000aa")

type fakeBackend struct {
	head            uint64
	estimate        uint64
	estimateErr     error
	lastEstimateMsg ethereum.CallMsg
	receipts        []*ethtypes.Receipt
	receiptErrs     []error
	receiptCalls    int
	callResult      []byte
}

func (b *fakeBackend) BlockNumber(ctx context.Context) (uint64, error) { return b.head, nil }

func (b *fakeBackend) FeeData(ctx context.Context) (*FeeData, error) {
	return &FeeData{
		BaseFee: big.NewInt(10_000_000_000),
		TipCap:  big.NewInt(1_000_000_000),
		FeeCap:  big.NewInt(21_000_000_000),
	}, nil
}

func (b *fakeBackend) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	b.lastEstimateMsg = msg
	if b.estimateErr != nil {
		return 0, b.estimateErr
	}
	return b.estimate, nil
}

func (b *fakeBackend) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	return b.callResult, nil
}

func (b *fakeBackend) FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]ethtypes.Log, error) {
	return nil, nil
}

func (b *fakeBackend) WaitForReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error) {
	i := b.receiptCalls
	b.receiptCalls++
	if i < len(b.receiptErrs) && b.receiptErrs[i] != nil {
		return nil, b.receiptErrs[i]
	}
	if i >= len(b.receipts) {
		return nil, errors.New("no receipt scripted for this attempt")
	}
	return b.receipts[i], nil
}

func (b *fakeBackend) ChainID() *big.Int { return big.NewInt(1337) }

type fakeSubmitter struct {
	address   common.Address
	gasLimits []uint64
	submitErr error
	hashes    int
}

func (s *fakeSubmitter) Address() common.Address { return s.address }

func (s *fakeSubmitter) Submit(ctx context.Context, to common.Address, data []byte, value *big.Int, gasLimit uint64, fees *FeeData) (common.Hash, error) {
	s.gasLimits = append(s.gasLimits, gasLimit)
	if s.submitErr != nil {
		return common.Hash{}, s.submitErr
	}
	s.hashes++
	return common.BigToHash(big.NewInt(int64(s.hashes))), nil
}

func successReceipt(block int64) *ethtypes.Receipt {
	return &ethtypes.Receipt{
		Status:            ethtypes.ReceiptStatusSuccessful,
		BlockNumber:       big.NewInt(block),
		GasUsed:           60_000,
		EffectiveGasPrice: big.NewInt(11_000_000_000),
	}
}

func revertedReceipt(block int64) *ethtypes.Receipt {
	return &ethtypes.Receipt{
		Status:      ethtypes.ReceiptStatusFailed,
		BlockNumber: big.NewInt(block),
		GasUsed:     60_000,
	}
}

func newTestExecutor(t *testing.T, backend *fakeBackend, submitter *fakeSubmitter) *Executor {
	t.Helper()

	parsed, err := abi.JSON(strings.NewReader(testABIJSON))
	require.NoError(t, err)

	executor, err := NewExecutor(&ExecutorConfig{
		Contract:  testContract,
		ABI:       parsed,
		Backend:   backend,
		Submitter: submitter,
		Policy: retry.Policy{
			MaxAttempts:  3,
			InitialDelay: time.Second,
			MaxDelay:     time.Minute,
			Multiplier:   2.0,
			Sleep:        func(ctx context.Context, d time.Duration) error { return nil },
		},
	})
	require.NoError(t, err)

	return executor
}

func pingRequest() *models.TransactionRequest {
	return &models.TransactionRequest{
		Method: "ping",
		Args:   []interface{}{big.NewInt(7)},
	}
}

func TestSubmit_AppliesGasSafetyFactor(t *testing.T) {
	backend := &fakeBackend{
		head:     100,
		estimate: 100_000,
		receipts: []*ethtypes.Receipt{successReceipt(101)},
	}
	submitter := &fakeSubmitter{address: common.HexToAddress("0x00000000000000000000000000000000000000bb")}

	executor := newTestExecutor(t, backend, submitter)

	outcome, err := executor.Submit(context.Background(), pingRequest(), nil)
	require.NoError(t, err)

	assert.True(t, outcome.Success)
	require.Len(t, submitter.gasLimits, 1)
	assert.Equal(t, uint64(120_000), submitter.gasLimits[0])
	// The estimate must carry the sender, sender-dependent paths
	// underestimate without it
	assert.Equal(t, submitter.address, backend.lastEstimateMsg.From)
}

func TestSubmit_GasOverrideSkipsEstimation(t *testing.T) {
	backend := &fakeBackend{
		head:        100,
		estimateErr: errors.New("estimation must not be called"),
		receipts:    []*ethtypes.Receipt{successReceipt(101)},
	}
	submitter := &fakeSubmitter{}

	executor := newTestExecutor(t, backend, submitter)

	_, err := executor.Submit(context.Background(), pingRequest(), &SubmitOptions{GasLimit: 250_000})
	require.NoError(t, err)

	require.Len(t, submitter.gasLimits, 1)
	assert.Equal(t, uint64(250_000), submitter.gasLimits[0])
}

func TestSubmit_RetriesAfterRevertedReceipt(t *testing.T) {
	backend := &fakeBackend{
		head:     100,
		estimate: 100_000,
		receipts: []*ethtypes.Receipt{revertedReceipt(101), successReceipt(102)},
	}
	submitter := &fakeSubmitter{}

	executor := newTestExecutor(t, backend, submitter)

	outcome, err := executor.Submit(context.Background(), pingRequest(), nil)
	require.NoError(t, err)

	assert.True(t, outcome.Success)
	assert.Equal(t, 2, outcome.Attempts)
	assert.Equal(t, uint64(102), outcome.BlockNumber)
	assert.Len(t, submitter.gasLimits, 2)
}

func TestSubmit_ExhaustsRetries(t *testing.T) {
	backend := &fakeBackend{
		head:     100,
		estimate: 100_000,
		receipts: []*ethtypes.Receipt{revertedReceipt(101), revertedReceipt(102), revertedReceipt(103)},
	}
	submitter := &fakeSubmitter{}

	executor := newTestExecutor(t, backend, submitter)

	_, err := executor.Submit(context.Background(), pingRequest(), nil)
	require.Error(t, err)

	assert.True(t, chainerrors.Is(err, chainerrors.CodeRetriesExhausted))

	var chainErr *chainerrors.ChainError
	require.ErrorAs(t, err, &chainErr)
	assert.True(t, chainerrors.Is(chainErr.Cause, chainerrors.CodeReverted))
	assert.Equal(t, 3, submitter.hashes)
}

func TestSubmit_UnknownMethodFailsBeforeSubmission(t *testing.T) {
	backend := &fakeBackend{}
	submitter := &fakeSubmitter{}

	executor := newTestExecutor(t, backend, submitter)

	_, err := executor.Submit(context.Background(), &models.TransactionRequest{Method: "missing"}, nil)
	require.Error(t, err)
	assert.Empty(t, submitter.gasLimits)
}

func TestCall_DecodesResult(t *testing.T) {
	backend := &fakeBackend{
		callResult: common.LeftPadBytes(big.NewInt(42).Bytes(), 32),
	}
	submitter := &fakeSubmitter{}

	executor := newTestExecutor(t, backend, submitter)

	out, err := executor.Call(context.Background(), "echo")
	require.NoError(t, err)
	require.Len(t, out, 1)

	value, ok := out[0].(*big.Int)
	require.True(t, ok)
	assert.Equal(t, int64(42), value.Int64())
}

func TestSubmit_GasMarginProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("submitted gas limit keeps the safety margin", prop.ForAll(
		func(estimate uint64) bool {
			backend := &fakeBackend{
				head:     100,
				estimate: estimate,
				receipts: []*ethtypes.Receipt{successReceipt(101)},
			}
			submitter := &fakeSubmitter{}

			executor := newTestExecutor(t, backend, submitter)

			_, err := executor.Submit(context.Background(), pingRequest(), nil)
			if err != nil {
				return false
			}
			if len(submitter.gasLimits) != 1 {
				return false
			}

			got := float64(submitter.gasLimits[0])
			want := float64(estimate) * DefaultGasSafetyFactor
			return got >= want && got <= math.Ceil(want)
		},
		gen.UInt64Range(21_000, 10_000_000),
	))

	properties.TestingRun(t)
}
