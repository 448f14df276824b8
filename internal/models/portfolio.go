package models

import (
	"time"
)

// Investment is an investor's stake in a project as recorded by the data
// layer. Amount is a base-unit integer encoded as a decimal string.
// ReceiptTokenID is set once the blockchain leg of the investment confirmed;
// a nil value means the on-chain mint never landed.
type Investment struct {
	ID             string        `json:"id" db:"id"`
	UserID         string        `json:"userId" db:"user_id"`
	ProjectID      string        `json:"projectId" db:"project_id"`
	Amount         string        `json:"amount" db:"amount"`
	ReceiptTokenID *string       `json:"receiptTokenId,omitempty" db:"receipt_token_id"`
	TxHash         *string       `json:"txHash,omitempty" db:"tx_hash"`
	CreatedAt      time.Time     `json:"createdAt" db:"created_at"`
	DeletedAt      *time.Time    `json:"deletedAt,omitempty" db:"deleted_at"`
	ProfitClaims   []ProfitClaim `json:"profitClaims,omitempty" db:"-"`
}

// ProfitClaim is one realized profit withdrawal against an investment
type ProfitClaim struct {
	ID           string    `json:"id" db:"id"`
	InvestmentID string    `json:"investmentId" db:"investment_id"`
	Amount       string    `json:"amount" db:"amount"`
	TxHash       *string   `json:"txHash,omitempty" db:"tx_hash"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

// PortfolioSnapshot is the per-investor aggregate, recomputed wholesale on
// every trigger and upserted as a single row. TotalProfit always equals
// TotalClaimed: profit is realized only upon claim.
type PortfolioSnapshot struct {
	UserID            string    `json:"userId" db:"user_id"`
	TotalInvested     string    `json:"totalInvested" db:"total_invested"`
	TotalProfit       string    `json:"totalProfit" db:"total_profit"`
	TotalClaimed      string    `json:"totalClaimed" db:"total_claimed"`
	ActiveInvestments int       `json:"activeInvestments" db:"active_investments"`
	AvgROI            float64   `json:"avgRoi" db:"avg_roi"`
	CalculatedAt      time.Time `json:"calculatedAt" db:"calculated_at"`
}
