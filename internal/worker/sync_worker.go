// Package worker provides the background loops that keep the ledger and
// portfolio snapshots current without operator intervention.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	chainerrors "github.com/stomatrade/chain-sync/internal/errors"
	"github.com/stomatrade/chain-sync/internal/logging"
	"github.com/stomatrade/chain-sync/internal/models"
)

// SyncRunner is the cursor-driven sync surface the worker polls
type SyncRunner interface {
	SyncSinceCursor(ctx context.Context) (*models.SyncResult, error)
}

// SyncWorker periodically runs a cursor-based sync pass so the ledger
// follows the chain head. Manual admin syncs and the worker share the
// engine's single-flight guard; a tick that loses the race just waits for
// the next one.
type SyncWorker struct {
	engine       SyncRunner
	pollInterval time.Duration
	logger       *logging.Logger

	running bool
	mu      sync.Mutex
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewSyncWorker creates a sync worker
func NewSyncWorker(engine SyncRunner, pollInterval time.Duration, logger *logging.Logger) *SyncWorker {
	if pollInterval == 0 {
		pollInterval = 30 * time.Second
	}
	return &SyncWorker{
		engine:       engine,
		pollInterval: pollInterval,
		logger:       logger.WithField("component", "sync_worker"),
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
}

// Start begins the polling loop
func (w *SyncWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("sync worker is already running")
	}
	w.running = true
	w.mu.Unlock()

	w.logger.WithField("poll_interval", w.pollInterval.String()).Info("Starting sync worker")

	go w.pollLoop(ctx)

	return nil
}

// Stop gracefully stops the worker, waiting for the loop to finish
func (w *SyncWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return fmt.Errorf("sync worker is not running")
	}
	w.mu.Unlock()

	close(w.stopCh)

	select {
	case <-w.doneCh:
		w.logger.Info("Sync worker stopped")
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(30 * time.Second):
		return fmt.Errorf("stop timeout")
	}

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	return nil
}

func (w *SyncWorker) pollLoop(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			result, err := w.engine.SyncSinceCursor(ctx)
			if err != nil {
				if chainerrors.Is(err, chainerrors.CodeSyncInProgress) {
					w.logger.Debug("Sync already running, skipping tick")
					continue
				}
				w.logger.WithError(err).Error("Scheduled sync failed")
				continue
			}
			if result.EventsProcessed > 0 || len(result.Errors) > 0 {
				w.logger.WithFields(map[string]interface{}{
					"start_block":      result.StartBlock,
					"end_block":        result.EndBlock,
					"events_processed": result.EventsProcessed,
					"errors":           len(result.Errors),
				}).Info("Scheduled sync pass completed")
			}
		}
	}
}
