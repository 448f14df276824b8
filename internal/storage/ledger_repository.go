package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	chainerrors "github.com/stomatrade/chain-sync/internal/errors"
	"github.com/stomatrade/chain-sync/internal/models"
)

// LedgerRepository stores the blockchain transaction/event ledger in
// ClickHouse. Ingestion is idempotent: entries are deduplicated by
// (tx hash, type) before insertion, since one transaction can emit several
// distinct event types.
type LedgerRepository struct {
	db *ClickHouseDB
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *ClickHouseDB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Has reports whether a ledger entry already exists for the transaction
// hash and entry type.
func (r *LedgerRepository) Has(ctx context.Context, txHash, entryType string) (bool, error) {
	query := `SELECT count() FROM chain_ledger WHERE tx_hash = ? AND type = ?`

	var count uint64
	if err := r.db.Conn().QueryRow(ctx, query, txHash, entryType).Scan(&count); err != nil {
		return false, chainerrors.NewDatabaseError("ledger lookup", err)
	}

	return count > 0, nil
}

// Insert appends one ledger entry. The caller is expected to have checked
// Has first; ClickHouse has no unique constraint to fall back on.
func (r *LedgerRepository) Insert(ctx context.Context, entry *models.LedgerEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO chain_ledger (id, tx_hash, type, status, block_number, gas_used, gas_price, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := r.db.Conn().Exec(ctx, query,
		entry.ID,
		entry.TxHash,
		entry.Type,
		entry.Status,
		entry.BlockNumber,
		entry.GasUsed,
		entry.GasPrice,
		entry.Payload,
		entry.CreatedAt,
	)
	if err != nil {
		return chainerrors.NewDatabaseError("ledger insert", err)
	}

	return nil
}

// BatchInsert appends multiple ledger entries in one ClickHouse batch
func (r *LedgerRepository) BatchInsert(ctx context.Context, entries []*models.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}

	batch, err := r.db.Conn().PrepareBatch(ctx,
		`INSERT INTO chain_ledger (id, tx_hash, type, status, block_number, gas_used, gas_price, payload, created_at)`)
	if err != nil {
		return chainerrors.NewDatabaseError("ledger batch prepare", err)
	}

	for _, entry := range entries {
		if entry.ID == "" {
			entry.ID = uuid.New().String()
		}
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = time.Now().UTC()
		}

		err := batch.Append(
			entry.ID,
			entry.TxHash,
			entry.Type,
			entry.Status,
			entry.BlockNumber,
			entry.GasUsed,
			entry.GasPrice,
			entry.Payload,
			entry.CreatedAt,
		)
		if err != nil {
			return chainerrors.NewDatabaseError("ledger batch append", err)
		}
	}

	if err := batch.Send(); err != nil {
		return chainerrors.NewDatabaseError("ledger batch send", err)
	}

	return nil
}

// ListByBlockRange returns ledger entries within [fromBlock, toBlock],
// ordered by block number.
func (r *LedgerRepository) ListByBlockRange(ctx context.Context, fromBlock, toBlock uint64) ([]*models.LedgerEntry, error) {
	query := `
		SELECT id, tx_hash, type, status, block_number, gas_used, gas_price, payload, created_at
		FROM chain_ledger
		WHERE block_number >= ? AND block_number <= ?
		ORDER BY block_number
	`

	rows, err := r.db.Conn().Query(ctx, query, fromBlock, toBlock)
	if err != nil {
		return nil, chainerrors.NewDatabaseError("ledger range query", err)
	}
	defer rows.Close()

	var entries []*models.LedgerEntry
	for rows.Next() {
		var entry models.LedgerEntry
		err := rows.Scan(
			&entry.ID,
			&entry.TxHash,
			&entry.Type,
			&entry.Status,
			&entry.BlockNumber,
			&entry.GasUsed,
			&entry.GasPrice,
			&entry.Payload,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, chainerrors.NewDatabaseError("ledger row scan", err)
		}
		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}
