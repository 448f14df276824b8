// Package portfolio computes per-investor aggregates from the investment
// records. Snapshots are recomputed wholesale and upserted; there is no
// incremental math to drift.
package portfolio

import (
	"context"
	"math/big"
	"time"

	"github.com/stomatrade/chain-sync/internal/logging"
	"github.com/stomatrade/chain-sync/internal/models"
)

// InvestmentStore reads investment records with their nested profit claims
type InvestmentStore interface {
	ListByUser(ctx context.Context, userID string) ([]*models.Investment, error)
	ListUserIDsWithInvestments(ctx context.Context) ([]string, error)
	UserIDByWallet(ctx context.Context, wallet string) (string, error)
}

// SnapshotStore persists computed snapshots
type SnapshotStore interface {
	Upsert(ctx context.Context, snapshot *models.PortfolioSnapshot) error
	Get(ctx context.Context, userID string) (*models.PortfolioSnapshot, error)
}

// SnapshotCache invalidates cached snapshot views after a recompute.
// Optional; a nil cache disables invalidation.
type SnapshotCache interface {
	InvalidateSnapshot(ctx context.Context, userID string) error
}

// Aggregator recomputes portfolio snapshots. All money math runs on
// big.Int over base-unit amounts; floats appear only in the final ROI
// percentage.
type Aggregator struct {
	investments InvestmentStore
	snapshots   SnapshotStore
	cache       SnapshotCache
	logger      *logging.Logger
}

// NewAggregator creates a portfolio aggregator
func NewAggregator(investments InvestmentStore, snapshots SnapshotStore, cache SnapshotCache, logger *logging.Logger) *Aggregator {
	return &Aggregator{
		investments: investments,
		snapshots:   snapshots,
		cache:       cache,
		logger:      logger.WithField("component", "portfolio_aggregator"),
	}
}

// Recompute rebuilds a user's snapshot from scratch and upserts it. A user
// with no investments gets an all-zero snapshot, not an error.
func (a *Aggregator) Recompute(ctx context.Context, userID string) (*models.PortfolioSnapshot, error) {
	investments, err := a.investments.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	snapshot := Compute(userID, investments)

	if err := a.snapshots.Upsert(ctx, snapshot); err != nil {
		return nil, err
	}

	if a.cache != nil {
		if err := a.cache.InvalidateSnapshot(ctx, userID); err != nil {
			// Stale cache entries expire on their own TTL
			a.logger.WithError(err).WithField("user_id", userID).Warn("Snapshot cache invalidation failed")
		}
	}

	a.logger.WithFields(map[string]interface{}{
		"user_id":            userID,
		"total_invested":     snapshot.TotalInvested,
		"total_claimed":      snapshot.TotalClaimed,
		"active_investments": snapshot.ActiveInvestments,
		"avg_roi":            snapshot.AvgROI,
	}).Debug("Portfolio snapshot recomputed")

	return snapshot, nil
}

// RecomputeByWallet resolves a wallet address to a user and recomputes
// their snapshot. Unknown wallets are skipped silently; not every on-chain
// investor has an account here.
func (a *Aggregator) RecomputeByWallet(ctx context.Context, wallet string) error {
	userID, err := a.investments.UserIDByWallet(ctx, wallet)
	if err != nil {
		return err
	}
	if userID == "" {
		a.logger.WithField("wallet", wallet).Debug("No user for wallet, skipping recompute")
		return nil
	}

	_, err = a.Recompute(ctx, userID)
	return err
}

// RecomputeAll rebuilds snapshots for every user holding investments.
// Per-user failures are logged and counted, not fatal to the sweep.
func (a *Aggregator) RecomputeAll(ctx context.Context) (int, error) {
	userIDs, err := a.investments.ListUserIDsWithInvestments(ctx)
	if err != nil {
		return 0, err
	}

	recomputed := 0
	for _, userID := range userIDs {
		if err := ctx.Err(); err != nil {
			return recomputed, err
		}
		if _, err := a.Recompute(ctx, userID); err != nil {
			a.logger.WithError(err).WithField("user_id", userID).Error("Snapshot recompute failed")
			continue
		}
		recomputed++
	}

	return recomputed, nil
}

// Snapshot returns the stored snapshot for a user, or an all-zero snapshot
// when none has been computed yet.
func (a *Aggregator) Snapshot(ctx context.Context, userID string) (*models.PortfolioSnapshot, error) {
	snapshot, err := a.snapshots.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if snapshot == nil {
		return Compute(userID, nil), nil
	}
	return snapshot, nil
}

// Compute derives a snapshot from a user's investments. Soft-deleted
// records are expected to be filtered out by the store; amounts that fail
// to parse count as zero.
//
// Profit is realized on claim, so total profit and total claimed are the
// same sum. ROI is totalClaimed / totalInvested as a percentage, zero when
// nothing was invested.
func Compute(userID string, investments []*models.Investment) *models.PortfolioSnapshot {
	totalInvested := new(big.Int)
	totalClaimed := new(big.Int)
	active := 0

	for _, inv := range investments {
		if amount, err := models.ParseBaseUnits(inv.Amount); err == nil {
			totalInvested.Add(totalInvested, amount)
		}
		if inv.ReceiptTokenID != nil {
			active++
		}
		for _, claim := range inv.ProfitClaims {
			if amount, err := models.ParseBaseUnits(claim.Amount); err == nil {
				totalClaimed.Add(totalClaimed, amount)
			}
		}
	}

	roi := 0.0
	if totalInvested.Sign() > 0 {
		ratio := new(big.Rat).SetFrac(totalClaimed, totalInvested)
		ratio.Mul(ratio, big.NewRat(100, 1))
		roi, _ = ratio.Float64()
	}

	return &models.PortfolioSnapshot{
		UserID:            userID,
		TotalInvested:     totalInvested.String(),
		TotalProfit:       totalClaimed.String(),
		TotalClaimed:      totalClaimed.String(),
		ActiveInvestments: active,
		AvgROI:            roi,
		CalculatedAt:      time.Now().UTC(),
	}
}
