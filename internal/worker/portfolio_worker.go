package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stomatrade/chain-sync/internal/logging"
)

// PortfolioSweeper is the bulk recompute surface the worker sweeps
type PortfolioSweeper interface {
	RecomputeAll(ctx context.Context) (int, error)
}

// PortfolioWorker periodically recomputes every investor's snapshot. The
// event-driven recomputes keep snapshots fresh in the common case; the
// sweep catches users whose triggering event was missed or failed.
type PortfolioWorker struct {
	aggregator    PortfolioSweeper
	sweepInterval time.Duration
	logger        *logging.Logger

	running bool
	mu      sync.Mutex
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewPortfolioWorker creates a portfolio sweep worker
func NewPortfolioWorker(aggregator PortfolioSweeper, sweepInterval time.Duration, logger *logging.Logger) *PortfolioWorker {
	if sweepInterval == 0 {
		sweepInterval = 10 * time.Minute
	}
	return &PortfolioWorker{
		aggregator:    aggregator,
		sweepInterval: sweepInterval,
		logger:        logger.WithField("component", "portfolio_worker"),
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
}

// Start begins the sweep loop
func (w *PortfolioWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("portfolio worker is already running")
	}
	w.running = true
	w.mu.Unlock()

	w.logger.WithField("sweep_interval", w.sweepInterval.String()).Info("Starting portfolio worker")

	go w.sweepLoop(ctx)

	return nil
}

// Stop gracefully stops the worker
func (w *PortfolioWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return fmt.Errorf("portfolio worker is not running")
	}
	w.mu.Unlock()

	close(w.stopCh)

	select {
	case <-w.doneCh:
		w.logger.Info("Portfolio worker stopped")
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

func (w *PortfolioWorker) sweepLoop(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			start := time.Now()
			recomputed, err := w.aggregator.RecomputeAll(ctx)
			if err != nil {
				w.logger.WithError(err).Error("Portfolio sweep failed")
				continue
			}
			w.logger.WithFields(map[string]interface{}{
				"users_recomputed": recomputed,
				"duration_ms":      time.Since(start).Milliseconds(),
			}).Info("Portfolio sweep completed")
		}
	}
}
