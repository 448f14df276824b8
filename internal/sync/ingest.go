package sync

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/stomatrade/chain-sync/internal/logging"
	"github.com/stomatrade/chain-sync/internal/models"
)

// LedgerWriter is the dedup-and-append surface of the ledger store
type LedgerWriter interface {
	Has(ctx context.Context, txHash, entryType string) (bool, error)
	Insert(ctx context.Context, entry *models.LedgerEntry) error
}

// PortfolioRefresher recomputes a user's portfolio from their wallet
// address. A wallet with no known user is a no-op, not an error.
type PortfolioRefresher interface {
	RecomputeByWallet(ctx context.Context, wallet string) error
}

// Ingestor turns decoded chain events into ledger entries and triggers
// portfolio recomputes for the event types that change a user's holdings.
// Ingestion is idempotent on (tx hash, event type), so re-syncing a block
// range never duplicates ledger rows.
type Ingestor struct {
	ledger    LedgerWriter
	portfolio PortfolioRefresher
	logger    *logging.Logger
}

// NewIngestor creates an event ingestor. portfolio may be nil when the
// caller only wants ledger persistence.
func NewIngestor(ledger LedgerWriter, portfolio PortfolioRefresher, logger *logging.Logger) *Ingestor {
	return &Ingestor{
		ledger:    ledger,
		portfolio: portfolio,
		logger:    logger.WithField("component", "event_ingestor"),
	}
}

// HandleEvent persists one event into the ledger, skipping entries already
// seen, then kicks off any follow-up recompute.
func (in *Ingestor) HandleEvent(ctx context.Context, event *models.ChainEvent) error {
	seen, err := in.ledger.Has(ctx, event.TxHash, event.Name)
	if err != nil {
		return err
	}
	if seen {
		in.logger.WithFields(map[string]interface{}{
			"tx_hash":    event.TxHash,
			"event_type": event.Name,
		}).Debug("Skipping already ingested event")
		return nil
	}

	payload, err := json.Marshal(event.Args)
	if err != nil {
		return fmt.Errorf("failed to encode event args: %w", err)
	}

	entry := &models.LedgerEntry{
		TxHash:      event.TxHash,
		Type:        event.Name,
		Status:      models.LedgerStatusSuccess,
		BlockNumber: event.BlockNumber,
		Payload:     string(payload),
	}
	if err := in.ledger.Insert(ctx, entry); err != nil {
		return err
	}

	return in.afterIngest(ctx, event)
}

// afterIngest triggers portfolio recomputes for events that move a user's
// invested, claimed, or refunded totals.
func (in *Ingestor) afterIngest(ctx context.Context, event *models.ChainEvent) error {
	if in.portfolio == nil {
		return nil
	}

	switch event.Name {
	case models.EventInvested, models.EventProfitClaimed, models.EventRefunded:
		wallet, ok := eventWallet(event)
		if !ok {
			in.logger.WithFields(map[string]interface{}{
				"tx_hash":    event.TxHash,
				"event_type": event.Name,
			}).Warn("Event has no investor address, skipping recompute")
			return nil
		}
		return in.portfolio.RecomputeByWallet(ctx, wallet)
	}

	return nil
}

// eventWallet extracts the investor address from a decoded event
func eventWallet(event *models.ChainEvent) (string, bool) {
	raw, ok := event.Args["investor"]
	if !ok {
		return "", false
	}
	addr, ok := raw.(common.Address)
	if !ok {
		return "", false
	}
	return addr.Hex(), true
}
