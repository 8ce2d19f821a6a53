package main

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"ledger/internal/log"
	"ledger/internal/services"
	"ledger/internal/storage"
)

func TestRunOnce_ExitCode(t *testing.T) {
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}

	var buf bytes.Buffer
	logger := log.New(log.Config{Level: slog.LevelDebug, Component: log.ComponentRecurring, Output: &buf})
	clock := services.ClockFunc(func() time.Time { return time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC) })
	gen := services.NewGenerator(repo, nil, clock, services.GeneratorConfig{})

	if code := runOnce(context.Background(), logger, gen); code != 0 {
		t.Fatalf("empty sweep exit code = %d, want 0", code)
	}

	repo.Close()
	if code := runOnce(context.Background(), logger, gen); code != 1 {
		t.Fatalf("sweep over a closed database exit code = %d, want 1", code)
	}
	if !bytes.Contains(buf.Bytes(), []byte("Recurring generation failed")) {
		t.Errorf("expected the failure to be logged, got %q", buf.String())
	}
}
