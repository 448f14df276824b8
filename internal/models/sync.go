package models

// SyncError records one failed per-batch event query. The sync engine keeps
// going after recording it; forward progress beats completeness mid-run.
type SyncError struct {
	FromBlock uint64 `json:"fromBlock"`
	ToBlock   uint64 `json:"toBlock"`
	EventType string `json:"eventType"`
	Message   string `json:"message"`
}

// SyncResult summarizes one historical sync run
type SyncResult struct {
	Success         bool        `json:"success"`
	StartBlock      uint64      `json:"startBlock"`
	EndBlock        uint64      `json:"endBlock"`
	BlocksProcessed uint64      `json:"blocksProcessed"`
	EventsProcessed int         `json:"eventsProcessed"`
	Errors          []SyncError `json:"errors"`
	DurationMs      int64       `json:"durationMs"`
}

// SyncStatusView is the observational sync status exposed to the admin API
type SyncStatusView struct {
	LastSyncedBlock uint64 `json:"lastSyncedBlock"`
	CurrentBlock    uint64 `json:"currentBlock"`
	BlocksBehind    uint64 `json:"blocksBehind"`
	IsSyncing       bool   `json:"isSyncing"`
}
