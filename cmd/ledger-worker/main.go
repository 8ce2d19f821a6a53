package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"ledger/internal/amqp"
	"ledger/internal/config"
	"ledger/internal/log"
	"ledger/internal/sheets"
	gsheet "ledger/internal/sheets/google"
	"ledger/internal/sheets/memory"
	"ledger/internal/storage"
	"ledger/internal/worker"
)

func main() {
	resyncUser := flag.String("resync-user", "", "export every transaction of this user id and exit")
	flag.Parse()
	os.Exit(run(*resyncUser))
}

// run returns the process exit code so deferred cleanup runs before exit.
func run(resyncUser string) int {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()
	logger := log.Init(log.Config{Level: log.ParseLevel(cfg.LogLevel), Component: log.ComponentWorker})

	logger.Info("Starting ledger-worker", log.FieldOperation, log.OpStartup)

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var exporter sheets.TransactionExporter
	if cfg.SheetsEnabled() {
		client, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsJSON: cfg.GoogleCredentialsJSON,
			CredentialsFile: cfg.GoogleCredentialsFile,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			return 1
		}
		exporter = client
		logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		exporter = memory.New()
		logger.Info("Google Sheets disabled - exporting to memory only")
	}

	ew := worker.NewExportWorker(repo, exporter)

	if resyncUser != "" {
		n, err := ew.Resync(ctx, resyncUser)
		if err != nil {
			logger.Error("Resync failed", log.FieldUserID, resyncUser, "exported", n, log.FieldError, err)
			return 1
		}
		return 0
	}

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required to consume transaction events")
		return 1
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		return 1
	}
	defer client.Close()

	logger.Info("Consuming transaction events", log.FieldQueue, cfg.AMQPQueue)
	if err := client.Consume(ctx, ew.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
		return 1
	}
	logger.Info("Worker shutdown complete")
	return 0
}
