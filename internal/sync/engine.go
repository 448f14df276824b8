// Package sync implements the historical event synchronization engine.
// It scans the contract's logs in bounded batches, hands decoded events to
// an ingestor, and keeps a durable cursor marking the last block whose
// events are fully processed.
package sync

import (
	"context"
	"sync"
	"time"

	chainerrors "github.com/stomatrade/chain-sync/internal/errors"
	"github.com/stomatrade/chain-sync/internal/logging"
	"github.com/stomatrade/chain-sync/internal/models"
)

// HeadReader reports the current chain head
type HeadReader interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// EventSource queries decoded historical events for one event type
type EventSource interface {
	QueryEvents(ctx context.Context, eventName string, fromBlock, toBlock uint64) ([]*models.ChainEvent, error)
}

// CursorStore persists the last fully synced block
type CursorStore interface {
	Last(ctx context.Context) (uint64, error)
	Advance(ctx context.Context, blockNumber uint64) error
}

// EventHandler processes one decoded event. Handlers must be idempotent;
// the engine re-delivers events when a range is re-synced.
type EventHandler interface {
	HandleEvent(ctx context.Context, event *models.ChainEvent) error
}

// Engine runs historical sync passes over the contract's event log. Only
// one pass runs at a time; concurrent callers get SYNC_IN_PROGRESS
// immediately instead of queueing.
type Engine struct {
	head       HeadReader
	source     EventSource
	cursor     CursorStore
	handler    EventHandler
	batchSize  uint64
	eventTypes []string
	logger     *logging.Logger

	mu      sync.Mutex
	syncing bool
}

// NewEngine creates a historical sync engine
func NewEngine(head HeadReader, source EventSource, cursor CursorStore, handler EventHandler, batchSize uint64, logger *logging.Logger) *Engine {
	if batchSize == 0 {
		batchSize = 1000
	}
	return &Engine{
		head:       head,
		source:     source,
		cursor:     cursor,
		handler:    handler,
		batchSize:  batchSize,
		eventTypes: models.SyncedEventTypes,
		logger:     logger.WithField("component", "sync_engine"),
	}
}

// tryAcquire marks the engine as syncing, failing fast when a pass is
// already running.
func (e *Engine) tryAcquire() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.syncing {
		return chainerrors.NewSyncInProgressError()
	}
	e.syncing = true
	return nil
}

func (e *Engine) release() {
	e.mu.Lock()
	e.syncing = false
	e.mu.Unlock()
}

// IsSyncing reports whether a sync pass is currently running
func (e *Engine) IsSyncing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.syncing
}

// Sync scans [fromBlock, toBlock] in batches of at most batchSize blocks.
// toBlock of zero means the current chain head. batchSize of zero uses the
// engine's configured default.
//
// A failed event query or handler call is recorded in the result and the
// pass keeps going; the result's Success is true only when every query and
// every handler call succeeded. The durable cursor is not touched here,
// callers that want cursor advancement use SyncSinceCursor.
func (e *Engine) Sync(ctx context.Context, fromBlock, toBlock, batchSize uint64) (*models.SyncResult, error) {
	if err := e.tryAcquire(); err != nil {
		return nil, err
	}
	defer e.release()

	return e.run(ctx, fromBlock, toBlock, batchSize)
}

func (e *Engine) run(ctx context.Context, fromBlock, toBlock, batchSize uint64) (*models.SyncResult, error) {
	start := time.Now()

	if batchSize == 0 {
		batchSize = e.batchSize
	}

	if toBlock == 0 {
		head, err := e.head.BlockNumber(ctx)
		if err != nil {
			return nil, chainerrors.NewProviderError("get chain head", err)
		}
		toBlock = head
	}

	result := &models.SyncResult{
		StartBlock: fromBlock,
		EndBlock:   toBlock,
	}

	if fromBlock > toBlock {
		// Nothing to scan. An empty range is a successful no-op.
		result.Success = true
		result.DurationMs = time.Since(start).Milliseconds()
		return result, nil
	}

	e.logger.WithFields(map[string]interface{}{
		"from_block": fromBlock,
		"to_block":   toBlock,
		"batch_size": batchSize,
	}).Info("Starting historical sync")

	for batchStart := fromBlock; batchStart <= toBlock; batchStart += batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		batchEnd := batchStart + batchSize - 1
		if batchEnd > toBlock {
			batchEnd = toBlock
		}

		e.syncBatch(ctx, batchStart, batchEnd, result)

		// Guard against overflow on ranges ending near MaxUint64
		if batchEnd == toBlock {
			break
		}
	}

	result.BlocksProcessed = toBlock - fromBlock + 1
	result.Success = len(result.Errors) == 0
	result.DurationMs = time.Since(start).Milliseconds()

	e.logger.WithFields(map[string]interface{}{
		"from_block":       fromBlock,
		"to_block":         toBlock,
		"events_processed": result.EventsProcessed,
		"errors":           len(result.Errors),
		"duration_ms":      result.DurationMs,
	}).Info("Historical sync finished")

	return result, nil
}

// syncBatch queries every event type over one block range. Failures are
// recorded on the result, never returned.
func (e *Engine) syncBatch(ctx context.Context, fromBlock, toBlock uint64, result *models.SyncResult) {
	for _, eventType := range e.eventTypes {
		events, err := e.source.QueryEvents(ctx, eventType, fromBlock, toBlock)
		if err != nil {
			e.logger.WithError(err).WithFields(map[string]interface{}{
				"event_type": eventType,
				"from_block": fromBlock,
				"to_block":   toBlock,
			}).Error("Event query failed")
			result.Errors = append(result.Errors, models.SyncError{
				FromBlock: fromBlock,
				ToBlock:   toBlock,
				EventType: eventType,
				Message:   err.Error(),
			})
			continue
		}

		for _, event := range events {
			if err := e.handler.HandleEvent(ctx, event); err != nil {
				e.logger.WithError(err).WithFields(map[string]interface{}{
					"event_type": eventType,
					"tx_hash":    event.TxHash,
					"block":      event.BlockNumber,
				}).Error("Event handler failed")
				result.Errors = append(result.Errors, models.SyncError{
					FromBlock: fromBlock,
					ToBlock:   toBlock,
					EventType: eventType,
					Message:   err.Error(),
				})
				continue
			}
			result.EventsProcessed++
		}
	}
}

// SyncSinceCursor scans from the block after the durable cursor up to the
// current head, then advances the cursor, but only when the pass was fully
// clean. A pass with any recorded error leaves the cursor where it was so
// the failed range is retried next time.
func (e *Engine) SyncSinceCursor(ctx context.Context) (*models.SyncResult, error) {
	if err := e.tryAcquire(); err != nil {
		return nil, err
	}
	defer e.release()

	last, err := e.cursor.Last(ctx)
	if err != nil {
		return nil, err
	}

	head, err := e.head.BlockNumber(ctx)
	if err != nil {
		return nil, chainerrors.NewProviderError("get chain head", err)
	}

	if last >= head {
		return &models.SyncResult{
			Success:    true,
			StartBlock: last,
			EndBlock:   head,
		}, nil
	}

	result, err := e.run(ctx, last+1, head, 0)
	if err != nil {
		return nil, err
	}

	if result.Success {
		if err := e.cursor.Advance(ctx, result.EndBlock); err != nil {
			return result, err
		}
	} else {
		e.logger.WithFields(map[string]interface{}{
			"errors":       len(result.Errors),
			"cursor_block": last,
		}).Warn("Sync pass had errors, cursor not advanced")
	}

	return result, nil
}

// Status reports how far behind the head the durable cursor is
func (e *Engine) Status(ctx context.Context) (*models.SyncStatusView, error) {
	last, err := e.cursor.Last(ctx)
	if err != nil {
		return nil, err
	}

	head, err := e.head.BlockNumber(ctx)
	if err != nil {
		return nil, chainerrors.NewProviderError("get chain head", err)
	}

	behind := uint64(0)
	if head > last {
		behind = head - last
	}

	return &models.SyncStatusView{
		LastSyncedBlock: last,
		CurrentBlock:    head,
		BlocksBehind:    behind,
		IsSyncing:       e.IsSyncing(),
	}, nil
}
