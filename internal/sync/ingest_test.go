package sync

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stomatrade/chain-sync/internal/models"
)

type fakeLedger struct {
	entries map[string]*models.LedgerEntry // keyed by txHash:type
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{entries: make(map[string]*models.LedgerEntry)}
}

func (f *fakeLedger) key(txHash, entryType string) string { return txHash + ":" + entryType }

func (f *fakeLedger) Has(ctx context.Context, txHash, entryType string) (bool, error) {
	_, ok := f.entries[f.key(txHash, entryType)]
	return ok, nil
}

func (f *fakeLedger) Insert(ctx context.Context, entry *models.LedgerEntry) error {
	f.entries[f.key(entry.TxHash, entry.Type)] = entry
	return nil
}

type fakeRefresher struct {
	wallets []string
}

func (f *fakeRefresher) RecomputeByWallet(ctx context.Context, wallet string) error {
	f.wallets = append(f.wallets, wallet)
	return nil
}

var investorAddr = common.HexToAddress("0x00000000000000000000000000000000000000cc")

func investedEvent(txHash string, block uint64) *models.ChainEvent {
	return &models.ChainEvent{
		Name:        models.EventInvested,
		TxHash:      txHash,
		BlockNumber: block,
		Args: map[string]interface{}{
			"projectId": big.NewInt(1),
			"investor":  investorAddr,
			"amount":    big.NewInt(100),
			"tokenId":   big.NewInt(7),
		},
	}
}

func TestHandleEvent_PersistsLedgerEntry(t *testing.T) {
	ledger := newFakeLedger()
	refresher := &fakeRefresher{}
	ingestor := NewIngestor(ledger, refresher, testLogger())

	err := ingestor.HandleEvent(context.Background(), investedEvent("0x01", 1200))
	require.NoError(t, err)

	entry, ok := ledger.entries["0x01:"+models.EventInvested]
	require.True(t, ok)
	assert.Equal(t, models.LedgerStatusSuccess, entry.Status)
	assert.Equal(t, uint64(1200), entry.BlockNumber)
	assert.Contains(t, entry.Payload, "investor")
}

func TestHandleEvent_ReingestIsIdempotent(t *testing.T) {
	ledger := newFakeLedger()
	refresher := &fakeRefresher{}
	ingestor := NewIngestor(ledger, refresher, testLogger())

	event := investedEvent("0x01", 1200)
	require.NoError(t, ingestor.HandleEvent(context.Background(), event))
	require.NoError(t, ingestor.HandleEvent(context.Background(), event))

	assert.Len(t, ledger.entries, 1)
	// Recompute fires only for the first ingestion
	assert.Len(t, refresher.wallets, 1)
}

func TestHandleEvent_SameTxDifferentEventTypes(t *testing.T) {
	ledger := newFakeLedger()
	ingestor := NewIngestor(ledger, nil, testLogger())

	invested := investedEvent("0x01", 1200)
	closed := &models.ChainEvent{
		Name:        models.EventProjectClosed,
		TxHash:      "0x01",
		BlockNumber: 1200,
		Args:        map[string]interface{}{"projectId": big.NewInt(1)},
	}

	require.NoError(t, ingestor.HandleEvent(context.Background(), invested))
	require.NoError(t, ingestor.HandleEvent(context.Background(), closed))

	assert.Len(t, ledger.entries, 2)
}

func TestHandleEvent_TriggersRecomputeForHoldingEvents(t *testing.T) {
	tests := []struct {
		name      string
		eventName string
		recompute bool
	}{
		{"invested", models.EventInvested, true},
		{"profit claimed", models.EventProfitClaimed, true},
		{"refunded", models.EventRefunded, true},
		{"project created", models.EventProjectCreated, false},
		{"project closed", models.EventProjectClosed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := newFakeLedger()
			refresher := &fakeRefresher{}
			ingestor := NewIngestor(ledger, refresher, testLogger())

			event := &models.ChainEvent{
				Name:        tt.eventName,
				TxHash:      "0x01",
				BlockNumber: 1200,
				Args: map[string]interface{}{
					"investor": investorAddr,
				},
			}

			require.NoError(t, ingestor.HandleEvent(context.Background(), event))

			if tt.recompute {
				require.Len(t, refresher.wallets, 1)
				assert.Equal(t, investorAddr.Hex(), refresher.wallets[0])
			} else {
				assert.Empty(t, refresher.wallets)
			}
		})
	}
}

func TestHandleEvent_MissingInvestorSkipsRecompute(t *testing.T) {
	ledger := newFakeLedger()
	refresher := &fakeRefresher{}
	ingestor := NewIngestor(ledger, refresher, testLogger())

	event := &models.ChainEvent{
		Name:        models.EventInvested,
		TxHash:      "0x01",
		BlockNumber: 1200,
		Args:        map[string]interface{}{"amount": big.NewInt(100)},
	}

	require.NoError(t, ingestor.HandleEvent(context.Background(), event))
	assert.Empty(t, refresher.wallets)
	assert.Len(t, ledger.entries, 1)
}
