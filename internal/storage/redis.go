package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stomatrade/chain-sync/internal/config"
	"github.com/stomatrade/chain-sync/internal/models"
)

// RedisCache wraps the Redis client. It caches read-heavy views (portfolio
// snapshots, sync status) with short TTLs; every cached value has a durable
// source of truth in Postgres.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new Redis cache connection
func NewRedisCache(cfg *config.RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.MaxConnections,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

// NewRedisCacheWithClient wraps an existing client, used by tests
func NewRedisCacheWithClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Close closes the Redis connection
func (r *RedisCache) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// Ping checks if Redis is reachable
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func snapshotKey(userID string) string {
	return "portfolio:snapshot:" + userID
}

const syncStatusKey = "sync:status"

// GetSnapshot returns a cached portfolio snapshot, or nil on a miss.
// Cache errors degrade to a miss; the caller falls through to Postgres.
func (r *RedisCache) GetSnapshot(ctx context.Context, userID string) (*models.PortfolioSnapshot, error) {
	data, err := r.client.Get(ctx, snapshotKey(userID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var snapshot models.PortfolioSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// SetSnapshot caches a portfolio snapshot with the given TTL
func (r *RedisCache) SetSnapshot(ctx context.Context, snapshot *models.PortfolioSnapshot, ttl time.Duration) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, snapshotKey(snapshot.UserID), data, ttl).Err()
}

// InvalidateSnapshot drops a user's cached snapshot after a recompute
func (r *RedisCache) InvalidateSnapshot(ctx context.Context, userID string) error {
	return r.client.Del(ctx, snapshotKey(userID)).Err()
}

// GetSyncStatus returns the cached sync status view, or nil on a miss
func (r *RedisCache) GetSyncStatus(ctx context.Context) (*models.SyncStatusView, error) {
	data, err := r.client.Get(ctx, syncStatusKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var status models.SyncStatusView
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// SetSyncStatus caches the sync status view with the given TTL
func (r *RedisCache) SetSyncStatus(ctx context.Context, status *models.SyncStatusView, ttl time.Duration) error {
	data, err := json.Marshal(status)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, syncStatusKey, data, ttl).Err()
}
