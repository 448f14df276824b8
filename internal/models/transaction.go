package models

import (
	"math/big"
	"time"

	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

// TransactionRequest describes a contract write before it becomes a raw
// transaction. Constructed fresh for every call, never reused across
// attempts.
type TransactionRequest struct {
	Method   string
	Args     []interface{}
	Value    *big.Int // native token attached to the call, nil for zero
	GasLimit uint64   // explicit override; 0 means estimate with safety factor
}

// TransactionOutcome is the result of a confirmed submission. Populated once
// from the final attempt's receipt; retries produce new hashes and only the
// last one is kept.
type TransactionOutcome struct {
	Hash              string            `json:"hash"`
	Receipt           *ethtypes.Receipt `json:"-"`
	Success           bool              `json:"success"`
	BlockNumber       uint64            `json:"blockNumber"`
	GasUsed           uint64            `json:"gasUsed"`
	EffectiveGasPrice string            `json:"effectiveGasPrice"`
	Attempts          int               `json:"attempts"`
}

// LedgerEntry is a persisted record of a chain interaction, written to the
// transaction ledger by sync ingestion and by domain callers after a
// successful submission.
type LedgerEntry struct {
	ID          string    `json:"id" ch:"id"`
	TxHash      string    `json:"txHash" ch:"tx_hash"`
	Type        string    `json:"type" ch:"type"` // event name or write method
	Status      string    `json:"status" ch:"status"`
	BlockNumber uint64    `json:"blockNumber" ch:"block_number"`
	GasUsed     uint64    `json:"gasUsed" ch:"gas_used"`
	GasPrice    string    `json:"gasPrice" ch:"gas_price"`
	Payload     string    `json:"payload" ch:"payload"` // decoded event args as JSON
	CreatedAt   time.Time `json:"createdAt" ch:"created_at"`
}

// Ledger entry statuses
const (
	LedgerStatusSuccess = "success"
	LedgerStatusFailed  = "failed"
)
