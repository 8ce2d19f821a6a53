package core

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		Name:   "Rent",
		Amount: decimal.RequireFromString("-850.00"),
		Kind:   Expense,
		Date:   NewDate(2025, 1, 1),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Transaction{
		{Name: "", Amount: decimal.NewFromInt(1), Kind: Income, Date: NewDate(2025, 1, 1)},
		{Name: strings.Repeat("x", 201), Amount: decimal.NewFromInt(1), Kind: Income, Date: NewDate(2025, 1, 1)},
		{Name: "a", Amount: decimal.NewFromInt(1), Kind: "transfer", Date: NewDate(2025, 1, 1)},
		{Name: "a", Amount: decimal.Zero, Kind: Income, Date: NewDate(2025, 1, 1)},
		{Name: "a", Amount: decimal.NewFromInt(1), Kind: Income},
	}
	for i, tx := range bads {
		if err := tx.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestRecurringTemplateValidate(t *testing.T) {
	end := NewDate(2024, 12, 31)
	before := NewDate(2023, 12, 31)

	tests := []struct {
		name    string
		mutate  func(*RecurringTemplate)
		wantErr error
	}{
		{name: "valid", mutate: func(*RecurringTemplate) {}},
		{name: "valid with end date", mutate: func(rt *RecurringTemplate) { rt.EndDate = &end }},
		{name: "unknown pattern", mutate: func(rt *RecurringTemplate) { rt.Pattern = "daily" }, wantErr: ErrUnknownPattern},
		{name: "end before start", mutate: func(rt *RecurringTemplate) { rt.EndDate = &before }, wantErr: ErrEndBeforeStart},
		{name: "bad kind", mutate: func(rt *RecurringTemplate) { rt.Kind = "" }, wantErr: ErrInvalidKind},
		{name: "zero amount", mutate: func(rt *RecurringTemplate) { rt.Amount = decimal.Zero }, wantErr: ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := RecurringTemplate{
				Name:      "Salary",
				Amount:    decimal.NewFromInt(2500),
				Kind:      Income,
				Pattern:   Monthly,
				StartDate: NewDate(2024, 1, 1),
			}
			tt.mutate(&rt)
			err := rt.Validate()
			if tt.wantErr == nil && err != nil {
				t.Fatalf("expected ok, got %v", err)
			}
			if tt.wantErr != nil && err != tt.wantErr {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestOccurrenceCopiesTemplate(t *testing.T) {
	cat := "cat-1"
	rt := RecurringTemplate{
		ID:          "tpl-1",
		UserID:      "user-1",
		CategoryID:  &cat,
		Name:        "Gym",
		Description: "membership",
		Amount:      decimal.RequireFromString("-39.90"),
		Kind:        Expense,
		Pattern:     Monthly,
	}

	tx := rt.Occurrence(NewDate(2024, 3, 5))
	if tx.UserID != "user-1" || tx.Name != "Gym" || tx.Description != "membership" || tx.Kind != Expense {
		t.Fatalf("unexpected transaction %+v", tx)
	}
	if !tx.Amount.Equal(rt.Amount) {
		t.Fatalf("amount = %s, want %s", tx.Amount, rt.Amount)
	}
	if tx.CategoryID == nil || *tx.CategoryID != cat {
		t.Fatalf("category not copied")
	}
	if tx.TemplateID == nil || *tx.TemplateID != "tpl-1" {
		t.Fatalf("template id not linked")
	}
	if tx.Date.String() != "2024-03-05" {
		t.Fatalf("date = %s", tx.Date)
	}
}

func TestCategoryValidate(t *testing.T) {
	if err := (Category{Name: "Food", Emoji: "🍕"}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Category{Name: "Food"}).Validate(); err != ErrEmptyEmoji {
		t.Fatalf("expected ErrEmptyEmoji, got %v", err)
	}
	if err := (Category{Emoji: "🍕"}).Validate(); err != ErrEmptyName {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
}
