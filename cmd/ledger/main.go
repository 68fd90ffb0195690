package main

import (
	"context"
	"net/http"
	"time"

	"ledger/internal/amqp"
	"ledger/internal/cli"
	apphttp "ledger/internal/http"
	applog "ledger/internal/log"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentApp)
	logger.Info("Starting ledger server")

	cfg := cli.LoadAndValidateConfig(logger)
	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	var publisher amqp.Publisher
	amqpClient := cli.InitAMQP(logger, cfg)
	if amqpClient != nil {
		defer amqpClient.Close()
		publisher = amqpClient
	}

	app := cli.NewApp(logger, cfg, repo, publisher)
	app.Cache.StartCleanup(time.Minute)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Services{
		Ledger:     app.Ledger,
		Imports:    app.Imports,
		Reports:    app.Reports,
		Categories: app.Categories,
		Store:      repo,
	}, apphttp.Options{
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		ImportMaxBytes:     cfg.ImportMaxBytes,
		Logger:             logger.WithComponent(applog.ComponentHTTP),
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		app.Cache.Stop()
	})

	logger.Info("Listening", "port", cfg.Port, "database", cfg.SQLiteDBPath, "amqp", publisher != nil)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		cli.Fatal(logger, "Server error", err)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
