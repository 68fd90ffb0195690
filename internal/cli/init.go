// Package cli holds the bootstrap steps shared by the ledger commands.
package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"ledger/internal/amqp"
	"ledger/internal/cache"
	"ledger/internal/config"
	"ledger/internal/core"
	applog "ledger/internal/log"
	"ledger/internal/services"
	"ledger/internal/storage"
)

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// installs it as the slog default.
func SetupLogger(component string) *applog.Logger {
	logger := applog.New(applog.Config{
		Level:     applog.ParseLevel(os.Getenv("LOG_LEVEL")),
		Format:    os.Getenv("LOG_FORMAT"),
		Component: component,
		Output:    os.Stdout,
	})
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads .env for local development. A missing file is fine.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and exits on validation failure.
func LoadAndValidateConfig(logger *applog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// InitSQLite opens and migrates the database or exits.
func InitSQLite(logger *applog.Logger, dbPath string) *storage.SQLiteRepository {
	logger = logger.WithComponent(applog.ComponentStorage)
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", dbPath)
		os.Exit(1)
	}
	if version, dirty, err := repo.SchemaVersion(); err == nil {
		logger.Info("Database ready", "path", dbPath, "schema_version", version, "dirty", dirty)
	}
	return repo
}

// InitAMQP connects the change publisher when AMQP_URL is set. Failure to
// connect is logged and publishing stays disabled.
func InitAMQP(logger *applog.Logger, cfg *config.Config) *amqp.Client {
	logger = logger.WithComponent(applog.ComponentAMQP)
	if !cfg.AMQPEnabled() {
		logger.Info("AMQP disabled, ledger changes will not be published")
		return nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Warn("AMQP unavailable, ledger changes will not be published", "error", err)
		return nil
	}
	logger.Info("AMQP connected", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	return client
}

// App bundles the services every command builds the same way.
type App struct {
	Repo       *storage.SQLiteRepository
	Aggregates *services.AggregateMaintainer
	Ledger     *services.LedgerService
	Imports    *services.ImportService
	Reports    *services.ReportService
	Categories *services.CategoryService
	Cache      *cache.Manager
}

// NewApp wires the services over repo. publisher may be nil.
func NewApp(logger *applog.Logger, cfg *config.Config, repo *storage.SQLiteRepository, publisher amqp.Publisher) *App {
	reportCache := cache.NewLRUCache[any](cfg.ReportCacheSize, cfg.ReportCacheTTL)
	manager := cache.NewManager(logger.WithComponent(applog.ComponentCache).Logger)
	manager.Register("reports", reportCache)

	reports := services.NewReportService(repo, reportCache)
	events := applog.NewStructuredLogger(logger.WithComponent(applog.ComponentLedger))

	notifiers := services.Notifiers{
		reports,
		services.NotifierFunc(func(ctx context.Context, c services.Change) error {
			periods := make([]string, 0, len(c.Periods))
			for _, p := range c.Periods {
				periods = append(periods, p.String())
			}
			events.LogLedgerChange(ctx, c.TenantID, c.Operation, periods)
			return nil
		}),
	}
	if publisher != nil {
		notifiers = append(notifiers, amqp.ChangeNotifier{Publisher: publisher})
	}

	aggregates := &services.AggregateMaintainer{}
	currency := core.Currency(cfg.DefaultCurrency)
	return &App{
		Repo:       repo,
		Aggregates: aggregates,
		Ledger:     services.NewLedgerService(repo, aggregates, notifiers, currency),
		Imports:    services.NewImportService(repo, aggregates, notifiers, currency, cfg.ImportMaxBytes),
		Reports:    reports,
		Categories: services.NewCategoryService(repo),
		Cache:      manager,
	}
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM. cleanup
// runs first, bounded by timeout; done closes when it has returned.
func GracefulShutdown(logger *applog.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		cancel()

		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup is done.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}

// Fatal logs and exits.
func Fatal(logger *applog.Logger, msg string, err error) {
	logger.Error(msg, slog.Any("error", err))
	os.Exit(1)
}
