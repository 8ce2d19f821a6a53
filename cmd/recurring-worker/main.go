package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"

	"ledger/internal/amqp"
	"ledger/internal/config"
	"ledger/internal/log"
	"ledger/internal/services"
	"ledger/internal/storage"
)

func main() {
	once := flag.Bool("once", false, "run a single generation sweep and exit")
	flag.Parse()
	os.Exit(run(*once))
}

// run returns the process exit code so deferred cleanup runs before exit.
func run(once bool) int {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()
	logger := log.Init(log.Config{Level: log.ParseLevel(cfg.LogLevel), Component: log.ComponentRecurring})

	logger.Info("Starting recurring-worker", log.FieldOperation, log.OpStartup, "once", once)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		return 1
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", cfg.SQLiteDBPath)
		return 1
	}
	defer repo.Close()

	// Generated transactions are announced to ledger-worker when AMQP is set.
	var publisher services.EventPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing in SQLite-only mode", log.FieldError, err)
		} else {
			defer client.Close()
			publisher = client
		}
	}

	gen := services.NewGenerator(repo, publisher, services.SystemClock{}, services.GeneratorConfig{
		Overflow: cfg.Overflow(),
		Location: cfg.Location(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if once {
		return runOnce(ctx, logger, gen)
	}

	scheduler := services.NewScheduler(gen, cfg.RecurringInterval)
	logger.Info("Recurring generation configured",
		"interval", cfg.RecurringInterval,
		"month_overflow", cfg.RecurringMonthOverflow,
		"timezone", cfg.RecurringTimezone,
		"sqlite_db", cfg.SQLiteDBPath)

	if err := scheduler.Start(ctx); err != nil {
		logger.Error("Failed to start scheduler", log.FieldError, err)
		return 1
	}

	<-ctx.Done()
	logger.Info("Shutdown signal received", log.FieldOperation, log.OpShutdown)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := scheduler.Stop(shutdownCtx); err != nil {
		logger.Warn("Shutdown timeout reached", log.FieldError, err)
		return 0
	}
	logger.Info("Recurring-worker shutdown complete")
	return 0
}

// runOnce performs one sweep and returns the process exit code. Any
// per-template failure makes the run fail.
func runOnce(ctx context.Context, logger *log.Logger, gen *services.Generator) int {
	report, err := gen.Run(ctx)
	if err != nil {
		logger.Error("Recurring generation failed", log.FieldTrigger, "once", log.FieldError, err)
		return 1
	}
	if report.Failed > 0 {
		logger.Error("Recurring generation had failures",
			log.FieldTrigger, "once",
			log.FieldExecutionID, report.ExecutionID,
			log.FieldFailed, report.Failed,
			log.FieldError, report.Err())
		return 1
	}
	return 0
}
