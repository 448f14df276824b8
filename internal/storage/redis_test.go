package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stomatrade/chain-sync/internal/models"
)

func setupTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewRedisCacheWithClient(client)
	t.Cleanup(func() { _ = cache.Close() }) // nolint:errcheck

	return cache, mr
}

func testSnapshot(userID string) *models.PortfolioSnapshot {
	return &models.PortfolioSnapshot{
		UserID:            userID,
		TotalInvested:     "100000000000000000000",
		TotalProfit:       "10000000000000000000",
		TotalClaimed:      "10000000000000000000",
		ActiveInvestments: 2,
		AvgROI:            10.0,
		CalculatedAt:      time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestSnapshotCache_RoundTrip(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.SetSnapshot(ctx, testSnapshot("user-1"), time.Minute))

	got, err := cache.GetSnapshot(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, "100000000000000000000", got.TotalInvested)
	assert.Equal(t, 10.0, got.AvgROI)
}

func TestSnapshotCache_MissReturnsNil(t *testing.T) {
	cache, _ := setupTestCache(t)

	got, err := cache.GetSnapshot(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSnapshotCache_Invalidate(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.SetSnapshot(ctx, testSnapshot("user-1"), time.Minute))
	require.NoError(t, cache.InvalidateSnapshot(ctx, "user-1"))

	got, err := cache.GetSnapshot(ctx, "user-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSnapshotCache_TTLExpiry(t *testing.T) {
	cache, mr := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.SetSnapshot(ctx, testSnapshot("user-1"), 5*time.Second))

	mr.FastForward(6 * time.Second)

	got, err := cache.GetSnapshot(ctx, "user-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSyncStatusCache_RoundTrip(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	status := &models.SyncStatusView{
		LastSyncedBlock: 1500,
		CurrentBlock:    1600,
		BlocksBehind:    100,
		IsSyncing:       true,
	}
	require.NoError(t, cache.SetSyncStatus(ctx, status, 5*time.Second))

	got, err := cache.GetSyncStatus(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, uint64(1500), got.LastSyncedBlock)
	assert.Equal(t, uint64(100), got.BlocksBehind)
	assert.True(t, got.IsSyncing)
}

func TestSyncStatusCache_Miss(t *testing.T) {
	cache, _ := setupTestCache(t)

	got, err := cache.GetSyncStatus(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
}
