package services

import (
	"errors"
	"testing"

	"ledger/internal/core"
)

func TestCheckers_IsDue(t *testing.T) {
	asOf := core.NewDate(2024, 3, 1)

	tests := []struct {
		name    string
		checker DuenessChecker
		last    core.Date
		want    bool
	}{
		{"weekly same day", WeeklyChecker{}, asOf, false},
		{"weekly one day", WeeklyChecker{}, asOf.AddDays(-1), true},
		{"monthly 26 days", MonthlyChecker{}, asOf.AddDays(-26), false},
		{"monthly 27 days", MonthlyChecker{}, asOf.AddDays(-27), true},
		{"yearly 363 days", YearlyChecker{}, asOf.AddDays(-363), false},
		{"yearly 364 days", YearlyChecker{}, asOf.AddDays(-364), true},
		{"future watermark", WeeklyChecker{}, asOf.AddDays(3), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.checker.IsDue(tt.last, asOf); got != tt.want {
				t.Errorf("IsDue(%s, %s) = %v, want %v", tt.last, asOf, got, tt.want)
			}
		})
	}
}

func TestGetDuenessChecker(t *testing.T) {
	for _, p := range []core.Pattern{core.Weekly, core.Monthly, core.Yearly} {
		if _, err := GetDuenessChecker(p); err != nil {
			t.Errorf("GetDuenessChecker(%q) error = %v", p, err)
		}
	}

	_, err := GetDuenessChecker("fortnightly")
	if !errors.Is(err, core.ErrUnknownPattern) {
		t.Errorf("GetDuenessChecker(unknown) error = %v, want ErrUnknownPattern", err)
	}
}

func TestIsDue(t *testing.T) {
	asOf := core.NewDate(2024, 3, 1)
	end := core.NewDate(2024, 2, 29)

	base := core.RecurringTemplate{
		Pattern:           core.Weekly,
		LastGeneratedDate: asOf.AddDays(-7),
		IsActive:          true,
	}

	tests := []struct {
		name    string
		mutate  func(*core.RecurringTemplate)
		want    bool
		wantErr bool
	}{
		{name: "due", mutate: func(*core.RecurringTemplate) {}, want: true},
		{name: "inactive", mutate: func(tpl *core.RecurringTemplate) { tpl.IsActive = false }},
		{name: "ended", mutate: func(tpl *core.RecurringTemplate) { tpl.EndDate = &end }},
		{name: "ends today", mutate: func(tpl *core.RecurringTemplate) { tpl.EndDate = &asOf }, want: true},
		{name: "unknown pattern", mutate: func(tpl *core.RecurringTemplate) { tpl.Pattern = "daily" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tpl := base
			tt.mutate(&tpl)
			got, err := IsDue(tpl, asOf)
			if (err != nil) != tt.wantErr {
				t.Fatalf("IsDue() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("IsDue() = %v, want %v", got, tt.want)
			}
		})
	}
}

// The storage query is built from core.Pattern.GateDays too.
func TestCheckers_MinDays(t *testing.T) {
	want := map[core.Pattern]int{core.Weekly: 1, core.Monthly: 27, core.Yearly: 364}
	for p, days := range want {
		c, _ := GetDuenessChecker(p)
		if c.MinDays() != days {
			t.Errorf("%s MinDays() = %d, want %d", p, c.MinDays(), days)
		}
	}
}
