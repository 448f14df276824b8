package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	chainerrors "github.com/stomatrade/chain-sync/internal/errors"
	"github.com/stomatrade/chain-sync/internal/models"
)

// SnapshotRepository persists per-user portfolio snapshots as single
// upserted rows. No history is kept; the snapshot is a point-in-time view
// recomputed wholesale by the aggregator.
type SnapshotRepository struct {
	db *PostgresDB
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(db *PostgresDB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Upsert writes the snapshot row for a user
func (r *SnapshotRepository) Upsert(ctx context.Context, snapshot *models.PortfolioSnapshot) error {
	query := `
		INSERT INTO portfolio_snapshots (
			user_id, total_invested, total_profit, total_claimed,
			active_investments, avg_roi, calculated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id)
		DO UPDATE SET
			total_invested = EXCLUDED.total_invested,
			total_profit = EXCLUDED.total_profit,
			total_claimed = EXCLUDED.total_claimed,
			active_investments = EXCLUDED.active_investments,
			avg_roi = EXCLUDED.avg_roi,
			calculated_at = EXCLUDED.calculated_at
	`

	_, err := r.db.Pool().Exec(ctx, query,
		snapshot.UserID,
		snapshot.TotalInvested,
		snapshot.TotalProfit,
		snapshot.TotalClaimed,
		snapshot.ActiveInvestments,
		snapshot.AvgROI,
		snapshot.CalculatedAt,
	)
	if err != nil {
		return chainerrors.NewDatabaseError("upsert portfolio snapshot", err)
	}

	return nil
}

// Get returns the snapshot row for a user, or nil when none exists yet
func (r *SnapshotRepository) Get(ctx context.Context, userID string) (*models.PortfolioSnapshot, error) {
	query := `
		SELECT user_id, total_invested, total_profit, total_claimed,
			   active_investments, avg_roi, calculated_at
		FROM portfolio_snapshots
		WHERE user_id = $1
	`

	var snapshot models.PortfolioSnapshot
	err := r.db.Pool().QueryRow(ctx, query, userID).Scan(
		&snapshot.UserID,
		&snapshot.TotalInvested,
		&snapshot.TotalProfit,
		&snapshot.TotalClaimed,
		&snapshot.ActiveInvestments,
		&snapshot.AvgROI,
		&snapshot.CalculatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, chainerrors.NewDatabaseError("get portfolio snapshot", err)
	}

	return &snapshot, nil
}
