// Package main provides the admin API server entry point for the chain
// sync service.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stomatrade/chain-sync/internal/api"
	"github.com/stomatrade/chain-sync/internal/chain"
	"github.com/stomatrade/chain-sync/internal/config"
	"github.com/stomatrade/chain-sync/internal/contract"
	"github.com/stomatrade/chain-sync/internal/logging"
	"github.com/stomatrade/chain-sync/internal/portfolio"
	"github.com/stomatrade/chain-sync/internal/storage"
	syncengine "github.com/stomatrade/chain-sync/internal/sync"

	"github.com/ethereum/go-ethereum/common"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.GetGlobalLogger().WithError(err).Fatal("Failed to load configuration")
	}

	logging.InitGlobalLogger(
		logging.ParseLogLevel(cfg.Logging.Level),
		logging.ParseLogFormat(cfg.Logging.Format),
	)
	logger := logging.GetGlobalLogger()

	logger.Info("Connecting to databases...")

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	clickhouse, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to ClickHouse")
	}
	defer func() {
		if err := clickhouse.Close(); err != nil {
			logger.WithError(err).Warn("Error closing ClickHouse connection")
		}
	}()

	redis, err := storage.NewRedisCache(&cfg.Database.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer func() {
		if err := redis.Close(); err != nil {
			logger.WithError(err).Warn("Error closing Redis connection")
		}
	}()

	logger.Info("Database connections established")

	ctx := context.Background()

	provider, err := chain.NewChainProvider(ctx, &cfg.Chain, cfg.Executor.ReceiptTimeout)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to chain RPC")
	}
	defer provider.Close()

	contractAddr := common.HexToAddress(cfg.Chain.ContractAddress)

	eventSource, err := contract.NewEventQuerySource(contractAddr, provider)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize event source")
	}

	cursorRepo := storage.NewSyncCursorRepository(postgres)
	ledgerRepo := storage.NewLedgerRepository(clickhouse)
	investmentRepo := storage.NewInvestmentRepository(postgres)
	snapshotRepo := storage.NewSnapshotRepository(postgres)

	aggregator := portfolio.NewAggregator(investmentRepo, snapshotRepo, redis, logger)
	ingestor := syncengine.NewIngestor(ledgerRepo, aggregator, logger)
	engine := syncengine.NewEngine(provider, eventSource, cursorRepo, ingestor, cfg.Sync.BatchSize, logger)

	serverConfig := &api.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ShutdownTimeout: 10 * time.Second,
	}

	server := api.NewServer(serverConfig, engine, aggregator, redis, logger)

	go func() {
		if err := server.Start(); err != nil {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server exited")
}
