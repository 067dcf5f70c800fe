package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	clts "github.com/arielbenavi/WhaleWatcher/clients"
	"github.com/arielbenavi/WhaleWatcher/config"
	"github.com/arielbenavi/WhaleWatcher/internal/app"

	"go.uber.org/zap"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// Load config from .env / environment variables
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}
	logger.Info("starting whale watcher",
		zap.Bool("isProd", cfg.IsProd),
		zap.Bool("dryRun", cfg.DryRun),
		zap.String("dataDir", cfg.DataDir),
	)

	logger.Info("instantiating clients")
	clients := clts.NewClients(logger, cfg)
	defer clients.Notifier.Close()

	storage := app.NewStorage(logger, cfg.DataDir)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	if cfg.CollectOnRun {
		collector := app.NewCollector(logger, clients, storage)
		logger.Info("refreshing live price series")
		if err := collector.UpdatePrices(ctx, time.Now()); err != nil {
			logger.Error("price update failed, continuing with cached data", zap.Error(err))
		}
		logger.Info("refreshing wallet transfer histories")
		if err := collector.CollectTransfers(ctx); err != nil {
			logger.Error("transfer collection failed, continuing with cached data", zap.Error(err))
		}
	}

	runner := app.NewRunner(logger, cfg, clients, storage)
	report, err := runner.Run(ctx)
	if err != nil {
		logger.Fatal("batch pass failed", zap.Error(err))
	}

	if report.WalletsFailed > 0 {
		logger.Warn("some wallets failed this pass",
			zap.String("runID", report.RunID),
			zap.Int("failed", report.WalletsFailed),
		)
		os.Exit(1)
	}
}
