// Package main provides the background worker entry point. It runs the
// cursor-driven sync loop and the periodic portfolio sweep.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stomatrade/chain-sync/internal/chain"
	"github.com/stomatrade/chain-sync/internal/config"
	"github.com/stomatrade/chain-sync/internal/contract"
	"github.com/stomatrade/chain-sync/internal/logging"
	"github.com/stomatrade/chain-sync/internal/portfolio"
	"github.com/stomatrade/chain-sync/internal/storage"
	syncengine "github.com/stomatrade/chain-sync/internal/sync"
	"github.com/stomatrade/chain-sync/internal/worker"

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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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

	syncWorker := worker.NewSyncWorker(engine, cfg.Sync.PollInterval, logger)
	portfolioWorker := worker.NewPortfolioWorker(aggregator, cfg.Portfolio.SweepInterval, logger)

	if err := syncWorker.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to start sync worker")
	}
	if err := portfolioWorker.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to start portfolio worker")
	}

	logger.Info("Workers started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down workers...")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()

	if err := syncWorker.Stop(stopCtx); err != nil {
		logger.WithError(err).Error("Sync worker did not stop cleanly")
	}
	if err := portfolioWorker.Stop(stopCtx); err != nil {
		logger.WithError(err).Error("Portfolio worker did not stop cleanly")
	}

	logger.Info("Workers exited")
}
