package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	chainerrors "github.com/stomatrade/chain-sync/internal/errors"
)

// SyncCursorRepository persists the last fully processed block as a single
// durable row. The update is monotonic at the SQL level, so a stale writer
// can never move the cursor backwards regardless of interleaving.
type SyncCursorRepository struct {
	db *PostgresDB
}

// NewSyncCursorRepository creates a new sync cursor repository
func NewSyncCursorRepository(db *PostgresDB) *SyncCursorRepository {
	return &SyncCursorRepository{db: db}
}

// Last returns the last fully processed block, or 0 when the engine has
// never synced.
func (r *SyncCursorRepository) Last(ctx context.Context) (uint64, error) {
	query := `SELECT last_block FROM sync_cursor WHERE id = 1`

	var lastBlock int64
	err := r.db.Pool().QueryRow(ctx, query).Scan(&lastBlock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, chainerrors.NewDatabaseError("read sync cursor", err)
	}

	return uint64(lastBlock), nil
}

// Advance moves the cursor forward to blockNumber. Moves backwards are
// silently ignored via GREATEST, keeping the cursor non-decreasing.
func (r *SyncCursorRepository) Advance(ctx context.Context, blockNumber uint64) error {
	query := `
		INSERT INTO sync_cursor (id, last_block, updated_at)
		VALUES (1, $1, NOW())
		ON CONFLICT (id)
		DO UPDATE SET
			last_block = GREATEST(sync_cursor.last_block, EXCLUDED.last_block),
			updated_at = NOW()
	`

	if _, err := r.db.Pool().Exec(ctx, query, int64(blockNumber)); err != nil {
		return chainerrors.NewDatabaseError("advance sync cursor", err)
	}

	return nil
}
