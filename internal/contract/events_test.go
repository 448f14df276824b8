package contract

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stomatrade/chain-sync/internal/chain"
	"github.com/stomatrade/chain-sync/internal/models"
)

var (
	testContractAddr = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	testInvestor     = common.HexToAddress("0x00000000000000000000000000000000000000cc")
)

type fakeLogBackend struct {
	logs      []ethtypes.Log
	lastQuery ethereum.FilterQuery
	queryErr  error
}

func (b *fakeLogBackend) BlockNumber(ctx context.Context) (uint64, error) { return 0, nil }
func (b *fakeLogBackend) FeeData(ctx context.Context) (*chain.FeeData, error) {
	return nil, errors.New("not implemented")
}
func (b *fakeLogBackend) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return 0, errors.New("not implemented")
}
func (b *fakeLogBackend) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	return nil, errors.New("not implemented")
}
func (b *fakeLogBackend) WaitForReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error) {
	return nil, errors.New("not implemented")
}
func (b *fakeLogBackend) ChainID() *big.Int { return big.NewInt(1337) }

func (b *fakeLogBackend) FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]ethtypes.Log, error) {
	b.lastQuery = query
	if b.queryErr != nil {
		return nil, b.queryErr
	}
	return b.logs, nil
}

// investedLog builds a raw Invested log the way the node would emit it:
// projectId and investor indexed in topics, amount and tokenId packed in
// the data segment.
func investedLog(t *testing.T, projectID, amount, tokenID int64, block uint64, logIndex uint) ethtypes.Log {
	t.Helper()

	parsed, err := ParsedABI()
	require.NoError(t, err)
	event := parsed.Events[models.EventInvested]

	data := append(
		common.LeftPadBytes(big.NewInt(amount).Bytes(), 32),
		common.LeftPadBytes(big.NewInt(tokenID).Bytes(), 32)...,
	)

	return ethtypes.Log{
		Address: testContractAddr,
		Topics: []common.Hash{
			event.ID,
			common.BigToHash(big.NewInt(projectID)),
			common.BytesToHash(common.LeftPadBytes(testInvestor.Bytes(), 32)),
		},
		Data:        data,
		BlockNumber: block,
		TxHash:      common.BigToHash(big.NewInt(int64(block))),
		Index:       logIndex,
	}
}

func TestQueryEvents_DecodesInvested(t *testing.T) {
	backend := &fakeLogBackend{
		logs: []ethtypes.Log{investedLog(t, 1, 100, 7, 1200, 3)},
	}

	source, err := NewEventQuerySource(testContractAddr, backend)
	require.NoError(t, err)

	events, err := source.QueryEvents(context.Background(), models.EventInvested, 1000, 1999)
	require.NoError(t, err)
	require.Len(t, events, 1)

	decoded := events[0]
	assert.Equal(t, models.EventInvested, decoded.Name)
	assert.Equal(t, uint64(1200), decoded.BlockNumber)
	assert.Equal(t, uint(3), decoded.LogIndex)

	projectID, ok := decoded.Args["projectId"].(*big.Int)
	require.True(t, ok)
	assert.Equal(t, int64(1), projectID.Int64())

	investor, ok := decoded.Args["investor"].(common.Address)
	require.True(t, ok)
	assert.Equal(t, testInvestor, investor)

	amount, ok := decoded.Args["amount"].(*big.Int)
	require.True(t, ok)
	assert.Equal(t, int64(100), amount.Int64())

	tokenID, ok := decoded.Args["tokenId"].(*big.Int)
	require.True(t, ok)
	assert.Equal(t, int64(7), tokenID.Int64())
}

func TestQueryEvents_FiltersByEventTopicAndRange(t *testing.T) {
	backend := &fakeLogBackend{}

	source, err := NewEventQuerySource(testContractAddr, backend)
	require.NoError(t, err)

	_, err = source.QueryEvents(context.Background(), models.EventInvested, 1000, 1999)
	require.NoError(t, err)

	parsed, err := ParsedABI()
	require.NoError(t, err)

	query := backend.lastQuery
	assert.Equal(t, []common.Address{testContractAddr}, query.Addresses)
	require.Len(t, query.Topics, 1)
	assert.Equal(t, []common.Hash{parsed.Events[models.EventInvested].ID}, query.Topics[0])
	assert.Equal(t, int64(1000), query.FromBlock.Int64())
	assert.Equal(t, int64(1999), query.ToBlock.Int64())
}

func TestQueryEvents_SortsByBlockThenLogIndex(t *testing.T) {
	backend := &fakeLogBackend{
		logs: []ethtypes.Log{
			investedLog(t, 1, 300, 9, 1500, 0),
			investedLog(t, 1, 100, 7, 1200, 5),
			investedLog(t, 1, 200, 8, 1200, 2),
		},
	}

	source, err := NewEventQuerySource(testContractAddr, backend)
	require.NoError(t, err)

	events, err := source.QueryEvents(context.Background(), models.EventInvested, 1000, 1999)
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.Equal(t, uint64(1200), events[0].BlockNumber)
	assert.Equal(t, uint(2), events[0].LogIndex)
	assert.Equal(t, uint64(1200), events[1].BlockNumber)
	assert.Equal(t, uint(5), events[1].LogIndex)
	assert.Equal(t, uint64(1500), events[2].BlockNumber)
}

func TestQueryEvents_UnknownEventType(t *testing.T) {
	source, err := NewEventQuerySource(testContractAddr, &fakeLogBackend{})
	require.NoError(t, err)

	_, err = source.QueryEvents(context.Background(), "NoSuchEvent", 1000, 1999)
	assert.Error(t, err)
}

func TestQueryEvents_BackendErrorPropagates(t *testing.T) {
	backend := &fakeLogBackend{queryErr: errors.New("rpc unavailable")}

	source, err := NewEventQuerySource(testContractAddr, backend)
	require.NoError(t, err)

	_, err = source.QueryEvents(context.Background(), models.EventInvested, 1000, 1999)
	assert.Error(t, err)
}
