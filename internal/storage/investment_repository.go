package storage

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	chainerrors "github.com/stomatrade/chain-sync/internal/errors"
	"github.com/stomatrade/chain-sync/internal/models"
)

// InvestmentRepository reads the investment and profit-claim ledgers owned
// by the platform's data layer. The aggregator only reads here; writes
// happen in the excluded CRUD services.
type InvestmentRepository struct {
	db *PostgresDB
}

// NewInvestmentRepository creates a new investment repository
func NewInvestmentRepository(db *PostgresDB) *InvestmentRepository {
	return &InvestmentRepository{db: db}
}

// ListByUser returns every non-deleted investment of a user with nested
// profit claims.
func (r *InvestmentRepository) ListByUser(ctx context.Context, userID string) ([]*models.Investment, error) {
	query := `
		SELECT id, user_id, project_id, amount, receipt_token_id, tx_hash, created_at, deleted_at
		FROM investments
		WHERE user_id = $1 AND deleted_at IS NULL
		ORDER BY created_at
	`

	rows, err := r.db.Pool().Query(ctx, query, userID)
	if err != nil {
		return nil, chainerrors.NewDatabaseError("list investments", err)
	}
	defer rows.Close()

	var investments []*models.Investment
	byID := make(map[string]*models.Investment)

	for rows.Next() {
		var inv models.Investment
		err := rows.Scan(
			&inv.ID,
			&inv.UserID,
			&inv.ProjectID,
			&inv.Amount,
			&inv.ReceiptTokenID,
			&inv.TxHash,
			&inv.CreatedAt,
			&inv.DeletedAt,
		)
		if err != nil {
			return nil, chainerrors.NewDatabaseError("scan investment", err)
		}
		investments = append(investments, &inv)
		byID[inv.ID] = &inv
	}
	if err := rows.Err(); err != nil {
		return nil, chainerrors.NewDatabaseError("iterate investments", err)
	}

	if len(investments) == 0 {
		return investments, nil
	}

	claimQuery := `
		SELECT pc.id, pc.investment_id, pc.amount, pc.tx_hash, pc.created_at
		FROM profit_claims pc
		JOIN investments i ON i.id = pc.investment_id
		WHERE i.user_id = $1 AND i.deleted_at IS NULL
		ORDER BY pc.created_at
	`

	claimRows, err := r.db.Pool().Query(ctx, claimQuery, userID)
	if err != nil {
		return nil, chainerrors.NewDatabaseError("list profit claims", err)
	}
	defer claimRows.Close()

	for claimRows.Next() {
		var claim models.ProfitClaim
		err := claimRows.Scan(
			&claim.ID,
			&claim.InvestmentID,
			&claim.Amount,
			&claim.TxHash,
			&claim.CreatedAt,
		)
		if err != nil {
			return nil, chainerrors.NewDatabaseError("scan profit claim", err)
		}

		if inv, ok := byID[claim.InvestmentID]; ok {
			inv.ProfitClaims = append(inv.ProfitClaims, claim)
		}
	}
	if err := claimRows.Err(); err != nil {
		return nil, chainerrors.NewDatabaseError("iterate profit claims", err)
	}

	return investments, nil
}

// ListUserIDsWithInvestments returns the ids of every user holding at least
// one non-deleted investment, the population for the scheduled sweep.
func (r *InvestmentRepository) ListUserIDsWithInvestments(ctx context.Context) ([]string, error) {
	query := `
		SELECT DISTINCT user_id
		FROM investments
		WHERE deleted_at IS NULL
		ORDER BY user_id
	`

	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, chainerrors.NewDatabaseError("list investor ids", err)
	}
	defer rows.Close()

	var userIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, chainerrors.NewDatabaseError("scan investor id", err)
		}
		userIDs = append(userIDs, id)
	}

	return userIDs, rows.Err()
}

// UserIDByWallet resolves a wallet address to the owning user id, used to
// map chain events back to investors. Returns empty string when no user
// owns the wallet.
func (r *InvestmentRepository) UserIDByWallet(ctx context.Context, wallet string) (string, error) {
	query := `SELECT id FROM users WHERE LOWER(wallet_address) = $1`

	var userID string
	err := r.db.Pool().QueryRow(ctx, query, strings.ToLower(wallet)).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", chainerrors.NewDatabaseError("resolve wallet", err)
	}

	return userID, nil
}
