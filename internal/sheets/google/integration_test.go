//go:build integration

package google

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	ports "ledger/internal/sheets"
)

// Run with: go test -tags=integration ./internal/sheets/google
func TestIntegration_UpsertAndDelete(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	spreadsheetID := os.Getenv("GOOGLE_SPREADSHEET_ID")
	if spreadsheetID == "" {
		t.Skip("GOOGLE_SPREADSHEET_ID not set, skipping integration test")
	}
	cfg := Config{
		SpreadsheetID:   spreadsheetID,
		SheetName:       os.Getenv("GOOGLE_SHEET_NAME"),
		CredentialsJSON: os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"),
		CredentialsFile: os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"),
	}
	if cfg.CredentialsJSON == "" && cfg.CredentialsFile == "" {
		t.Skip("service account credentials not configured, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := New(ctx, cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	id := "it-" + time.Now().Format("20060102150405")
	row := ports.Row{
		TransactionID: id,
		Date:          time.Now().Format("2006-01-02"),
		Name:          "Integration test",
		Kind:          "expense",
		Amount:        decimal.RequireFromString("-1.23"),
	}

	ref, err := client.Upsert(ctx, row)
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	row.Name = "Integration test (updated)"
	ref2, err := client.Upsert(ctx, row)
	if err != nil {
		t.Fatalf("second Upsert() error = %v", err)
	}
	if ref != ref2 {
		t.Errorf("second Upsert() wrote %s, want same row %s", ref2, ref)
	}
	if !strings.HasPrefix(ref, client.sheetName+"!") {
		t.Errorf("unexpected ref %q", ref)
	}

	if err := client.Delete(ctx, id); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
}
