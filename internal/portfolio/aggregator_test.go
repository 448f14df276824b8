package portfolio

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stomatrade/chain-sync/internal/logging"
	"github.com/stomatrade/chain-sync/internal/models"
)

type fakeInvestmentStore struct {
	byUser  map[string][]*models.Investment
	wallets map[string]string
	listErr error
}

func (f *fakeInvestmentStore) ListByUser(ctx context.Context, userID string) ([]*models.Investment, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.byUser[userID], nil
}

func (f *fakeInvestmentStore) ListUserIDsWithInvestments(ctx context.Context) ([]string, error) {
	var ids []string
	for id := range f.byUser {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeInvestmentStore) UserIDByWallet(ctx context.Context, wallet string) (string, error) {
	return f.wallets[wallet], nil
}

type fakeSnapshotStore struct {
	snapshots map[string]*models.PortfolioSnapshot
}

func newFakeSnapshotStore() *fakeSnapshotStore {
	return &fakeSnapshotStore{snapshots: make(map[string]*models.PortfolioSnapshot)}
}

func (f *fakeSnapshotStore) Upsert(ctx context.Context, snapshot *models.PortfolioSnapshot) error {
	f.snapshots[snapshot.UserID] = snapshot
	return nil
}

func (f *fakeSnapshotStore) Get(ctx context.Context, userID string) (*models.PortfolioSnapshot, error) {
	return f.snapshots[userID], nil
}

type fakeCache struct {
	invalidated []string
}

func (f *fakeCache) InvalidateSnapshot(ctx context.Context, userID string) error {
	f.invalidated = append(f.invalidated, userID)
	return nil
}

func testLogger() *logging.Logger {
	return logging.NewLogger(logging.LevelError, logging.FormatText)
}

func tokenID(id string) *string { return &id }

// 100 tokens in 18-decimal base units
const hundredTokens = "100000000000000000000"

// 10 tokens
const tenTokens = "10000000000000000000"

func TestCompute_EmptyPortfolio(t *testing.T) {
	snapshot := Compute("user-1", nil)

	assert.Equal(t, "0", snapshot.TotalInvested)
	assert.Equal(t, "0", snapshot.TotalProfit)
	assert.Equal(t, "0", snapshot.TotalClaimed)
	assert.Equal(t, 0, snapshot.ActiveInvestments)
	assert.Equal(t, 0.0, snapshot.AvgROI)
}

func TestCompute_SumsAndROI(t *testing.T) {
	investments := []*models.Investment{
		{
			ID:             "inv-1",
			UserID:         "user-1",
			Amount:         hundredTokens,
			ReceiptTokenID: tokenID("1"),
			ProfitClaims: []models.ProfitClaim{
				{ID: "claim-1", InvestmentID: "inv-1", Amount: tenTokens},
			},
		},
	}

	snapshot := Compute("user-1", investments)

	assert.Equal(t, hundredTokens, snapshot.TotalInvested)
	assert.Equal(t, tenTokens, snapshot.TotalClaimed)
	// Profit is realized on claim, the two totals always agree
	assert.Equal(t, snapshot.TotalClaimed, snapshot.TotalProfit)
	assert.Equal(t, 1, snapshot.ActiveInvestments)
	assert.InDelta(t, 10.0, snapshot.AvgROI, 1e-9)
}

func TestCompute_ZeroInvestedHasZeroROI(t *testing.T) {
	investments := []*models.Investment{
		{
			ID:     "inv-1",
			UserID: "user-1",
			Amount: "0",
			ProfitClaims: []models.ProfitClaim{
				{ID: "claim-1", InvestmentID: "inv-1", Amount: tenTokens},
			},
		},
	}

	snapshot := Compute("user-1", investments)

	assert.Equal(t, 0.0, snapshot.AvgROI)
	assert.Equal(t, tenTokens, snapshot.TotalClaimed)
}

func TestCompute_PendingMintNotActive(t *testing.T) {
	investments := []*models.Investment{
		{ID: "inv-1", UserID: "user-1", Amount: hundredTokens, ReceiptTokenID: tokenID("1")},
		{ID: "inv-2", UserID: "user-1", Amount: hundredTokens, ReceiptTokenID: nil},
	}

	snapshot := Compute("user-1", investments)

	assert.Equal(t, 1, snapshot.ActiveInvestments)
	assert.Equal(t, "200000000000000000000", snapshot.TotalInvested)
}

func TestRecompute_UpsertsAndInvalidates(t *testing.T) {
	investments := &fakeInvestmentStore{
		byUser: map[string][]*models.Investment{
			"user-1": {
				{ID: "inv-1", UserID: "user-1", Amount: hundredTokens, ReceiptTokenID: tokenID("1")},
			},
		},
	}
	snapshots := newFakeSnapshotStore()
	cache := &fakeCache{}

	aggregator := NewAggregator(investments, snapshots, cache, testLogger())

	snapshot, err := aggregator.Recompute(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Equal(t, hundredTokens, snapshot.TotalInvested)
	require.Contains(t, snapshots.snapshots, "user-1")
	assert.Equal(t, []string{"user-1"}, cache.invalidated)
}

func TestRecompute_ListFailurePropagates(t *testing.T) {
	investments := &fakeInvestmentStore{listErr: errors.New("database down")}
	aggregator := NewAggregator(investments, newFakeSnapshotStore(), nil, testLogger())

	_, err := aggregator.Recompute(context.Background(), "user-1")
	assert.Error(t, err)
}

func TestRecomputeByWallet(t *testing.T) {
	investments := &fakeInvestmentStore{
		byUser: map[string][]*models.Investment{
			"user-1": {{ID: "inv-1", UserID: "user-1", Amount: hundredTokens}},
		},
		wallets: map[string]string{"0xabc": "user-1"},
	}
	snapshots := newFakeSnapshotStore()

	aggregator := NewAggregator(investments, snapshots, nil, testLogger())

	t.Run("known wallet recomputes", func(t *testing.T) {
		require.NoError(t, aggregator.RecomputeByWallet(context.Background(), "0xabc"))
		assert.Contains(t, snapshots.snapshots, "user-1")
	})

	t.Run("unknown wallet is a no-op", func(t *testing.T) {
		before := len(snapshots.snapshots)
		require.NoError(t, aggregator.RecomputeByWallet(context.Background(), "0xdef"))
		assert.Len(t, snapshots.snapshots, before)
	})
}

func TestRecomputeAll(t *testing.T) {
	investments := &fakeInvestmentStore{
		byUser: map[string][]*models.Investment{
			"user-1": {{ID: "inv-1", UserID: "user-1", Amount: hundredTokens}},
			"user-2": {{ID: "inv-2", UserID: "user-2", Amount: tenTokens}},
		},
	}
	snapshots := newFakeSnapshotStore()

	aggregator := NewAggregator(investments, snapshots, nil, testLogger())

	recomputed, err := aggregator.RecomputeAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, recomputed)
	assert.Len(t, snapshots.snapshots, 2)
}

func TestSnapshot_ZeroValuedWhenMissing(t *testing.T) {
	aggregator := NewAggregator(&fakeInvestmentStore{}, newFakeSnapshotStore(), nil, testLogger())

	snapshot, err := aggregator.Snapshot(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Equal(t, "user-1", snapshot.UserID)
	assert.Equal(t, "0", snapshot.TotalInvested)
}
