package main

import (
	"context"
	"errors"
	"time"

	"ledger/internal/cli"
	applog "ledger/internal/log"
	"ledger/internal/services"
	"ledger/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentWorker)
	logger.Info("Starting ledger-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	audit := worker.NewAuditWorker(repo, &services.AggregateMaintainer{})
	sweeper := worker.NewSweeper(audit, worker.SweeperConfig{
		Interval:   cfg.AuditInterval,
		RunOnStart: cfg.AuditOnStart,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		logger.Info("Shutting down worker...")
		if err := sweeper.Stop(ctx); err != nil {
			logger.Error("Sweeper stop error", "error", err)
		}
	})

	if err := sweeper.Start(ctx); err != nil {
		cli.Fatal(logger, "Failed to start sweeper", err)
	}

	amqpClient := cli.InitAMQP(logger, cfg)
	if amqpClient != nil {
		defer amqpClient.Close()
		go func() {
			err := amqpClient.ConsumeWithRetry(ctx, audit.HandleLedgerChange)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", "error", err)
			}
		}()
	} else {
		logger.Info("Running sweeper only, no change messages will be consumed")
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}
