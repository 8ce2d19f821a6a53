package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"ledger/internal/amqp"
	"ledger/internal/config"
	apphttp "ledger/internal/http"
	"ledger/internal/log"
	"ledger/internal/services"
	"ledger/internal/storage"
)

const sessionPurgeInterval = time.Hour

func main() {
	os.Exit(run())
}

// run returns the process exit code so deferred cleanup runs before exit.
func run() int {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()
	logger := log.Init(log.Config{Level: log.ParseLevel(cfg.LogLevel), Component: log.ComponentApp})

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

	// Left as a nil interface when AMQP is off, so services skip publishing.
	var publisher services.EventPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without events", log.FieldError, err)
		} else {
			defer client.Close()
			publisher = client
			logger.Info("AMQP publisher initialized", "exchange", cfg.AMQPExchange)
		}
	} else {
		logger.Info("AMQP disabled - transaction events will not be published")
	}

	gen := services.NewGenerator(repo, publisher, services.SystemClock{}, services.GeneratorConfig{
		Overflow: cfg.Overflow(),
		Location: cfg.Location(),
	})
	auth := services.NewAuthService(repo, services.SystemClock{}, cfg.SessionTTL)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Auth:               auth,
		Categories:         repo,
		Transactions:       services.NewTransactionService(repo, publisher),
		Recurring:          gen,
		Trigger:            services.NewTrigger(gen, cfg.RecurringTriggerTimeout),
		Health:             repo,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		CORSOrigin:         cfg.CORSOrigin,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting server", log.FieldOperation, log.OpStartup, "addr", srv.Addr, "recurring_timezone", cfg.RecurringTimezone)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server", log.FieldOperation, log.OpShutdown)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		ticker := time.NewTicker(sessionPurgeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				n, err := auth.PurgeExpired(gctx)
				if err != nil {
					logger.Warn("Failed to purge expired sessions", log.FieldError, err)
					continue
				}
				if n > 0 {
					logger.Info("Purged expired sessions", "count", n)
				}
			}
		}
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err)
		return 1
	}
	logger.Info("Server stopped")
	return 0
}
