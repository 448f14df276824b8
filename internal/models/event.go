package models

// ChainEvent is one decoded contract log. Args hold the ABI-decoded values
// keyed by the event input names; Raw keeps the undecoded topics and data for
// ledger persistence.
type ChainEvent struct {
	Name        string                 `json:"name"`
	TxHash      string                 `json:"txHash"`
	BlockNumber uint64                 `json:"blockNumber"`
	LogIndex    uint                   `json:"logIndex"`
	Args        map[string]interface{} `json:"args"`
	RawTopics   []string               `json:"rawTopics,omitempty"`
	RawData     []byte                 `json:"rawData,omitempty"`
}

// Event names emitted by the crowdfunding contract.
const (
	EventProjectCreated  = "ProjectCreated"
	EventFarmerAdded     = "FarmerAdded"
	EventInvested        = "Invested"
	EventProfitDeposited = "ProfitDeposited"
	EventProfitClaimed   = "ProfitClaimed"
	EventRefunded        = "Refunded"
	EventProjectClosed   = "ProjectClosed"
	EventProjectFinished = "ProjectFinished"
	EventProjectRefunded = "ProjectRefunded"
)

// SyncedEventTypes lists the event types the historical sync engine scans,
// in the order their queries run per batch. Order across types within one
// block range is not chronological; the chain's own log order is the only
// true order and per-type queries cannot reconstruct it.
var SyncedEventTypes = []string{
	EventProjectCreated,
	EventFarmerAdded,
	EventInvested,
	EventProfitDeposited,
	EventProfitClaimed,
	EventRefunded,
	EventProjectClosed,
	EventProjectFinished,
	EventProjectRefunded,
}
