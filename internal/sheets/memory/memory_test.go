package memory

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"ledger/internal/sheets"
)

func TestStoreUpsertAndDelete(t *testing.T) {
	ctx := context.Background()
	s := New()

	ref, err := s.Upsert(ctx, sheets.Row{TransactionID: "a", Name: "Rent", Amount: decimal.NewFromInt(-950)})
	if err != nil || ref != "mem:1" {
		t.Fatalf("unexpected upsert: ref=%q err=%v", ref, err)
	}
	if _, err := s.Upsert(ctx, sheets.Row{TransactionID: "b", Name: "Salary"}); err != nil {
		t.Fatal(err)
	}

	ref, err = s.Upsert(ctx, sheets.Row{TransactionID: "a", Name: "Rent (new)"})
	if err != nil || ref != "mem:1" {
		t.Fatalf("upsert of existing id should replace row 1: ref=%q err=%v", ref, err)
	}

	rows := s.Rows()
	if len(rows) != 2 || rows[0].Name != "Rent (new)" {
		t.Fatalf("unexpected rows: %+v", rows)
	}

	if err := s.Delete(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "missing"); err != nil {
		t.Fatalf("deleting a missing row should be a no-op, got %v", err)
	}
	if rows := s.Rows(); len(rows) != 1 || rows[0].TransactionID != "b" {
		t.Fatalf("unexpected rows after delete: %+v", rows)
	}
}

func TestStoreUpsert_RequiresID(t *testing.T) {
	if _, err := New().Upsert(context.Background(), sheets.Row{Name: "x"}); err == nil {
		t.Fatal("expected error for row without transaction id")
	}
}
