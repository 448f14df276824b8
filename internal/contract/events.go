package contract

import (
	"context"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/stomatrade/chain-sync/internal/chain"
	"github.com/stomatrade/chain-sync/internal/models"
)

// BlockchainEventSource is the interface the sync engine consumes
type BlockchainEventSource interface {
	QueryEvents(ctx context.Context, eventName string, fromBlock, toBlock uint64) ([]*models.ChainEvent, error)
}

// EventQuerySource queries and decodes historical logs for the contract's
// named events over a block range.
type EventQuerySource struct {
	contract common.Address
	abi      abi.ABI
	backend  chain.Backend
}

// NewEventQuerySource creates an event query source for the contract
func NewEventQuerySource(contract common.Address, backend chain.Backend) (*EventQuerySource, error) {
	contractABI, err := ParsedABI()
	if err != nil {
		return nil, err
	}

	return &EventQuerySource{
		contract: contract,
		abi:      contractABI,
		backend:  backend,
	}, nil
}

// QueryEvents fetches all logs for one event type in [fromBlock, toBlock]
// and decodes them. Results come back sorted by (blockNumber, logIndex),
// the chain's own order for a single event type.
func (s *EventQuerySource) QueryEvents(ctx context.Context, eventName string, fromBlock, toBlock uint64) ([]*models.ChainEvent, error) {
	event, ok := s.abi.Events[eventName]
	if !ok {
		return nil, fmt.Errorf("unknown event type %q", eventName)
	}

	logs, err := s.backend.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{s.contract},
		Topics:    [][]common.Hash{{event.ID}},
	})
	if err != nil {
		return nil, err
	}

	events := make([]*models.ChainEvent, 0, len(logs))
	for i := range logs {
		decoded, err := s.decodeLog(event, &logs[i])
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s log in tx %s: %w", eventName, logs[i].TxHash.Hex(), err)
		}
		events = append(events, decoded)
	}

	sort.SliceStable(events, func(i, j int) bool {
		if events[i].BlockNumber != events[j].BlockNumber {
			return events[i].BlockNumber < events[j].BlockNumber
		}
		return events[i].LogIndex < events[j].LogIndex
	})

	return events, nil
}

// decodeLog unpacks one raw log into a ChainEvent
func (s *EventQuerySource) decodeLog(event abi.Event, log *ethtypes.Log) (*models.ChainEvent, error) {
	args := make(map[string]interface{})

	// Non-indexed inputs live in the data segment
	if err := s.abi.UnpackIntoMap(args, event.Name, log.Data); err != nil {
		return nil, err
	}

	// Indexed inputs live in topics[1:]
	var indexed abi.Arguments
	for _, input := range event.Inputs {
		if input.Indexed {
			indexed = append(indexed, input)
		}
	}
	if len(indexed) > 0 {
		if len(log.Topics) < len(indexed)+1 {
			return nil, fmt.Errorf("log has %d topics, event declares %d indexed inputs", len(log.Topics), len(indexed))
		}
		if err := abi.ParseTopicsIntoMap(args, indexed, log.Topics[1:]); err != nil {
			return nil, err
		}
	}

	rawTopics := make([]string, len(log.Topics))
	for i, topic := range log.Topics {
		rawTopics[i] = topic.Hex()
	}

	return &models.ChainEvent{
		Name:        event.Name,
		TxHash:      log.TxHash.Hex(),
		BlockNumber: log.BlockNumber,
		LogIndex:    log.Index,
		Args:        args,
		RawTopics:   rawTopics,
		RawData:     log.Data,
	}, nil
}
