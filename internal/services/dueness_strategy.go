// Package services holds the ledger's business logic: the recurring
// transaction generator, the transaction and auth services, and the
// in-process trigger used by the HTTP handlers.
//
// This file implements the elapsed-day gate as one strategy per recurrence
// pattern. The gate is a cheap prefilter; the exact next date comes from
// core.Pattern.Next.
package services

import (
	"fmt"

	"ledger/internal/core"
)

// DuenessChecker decides whether a template is worth examining at asOf.
type DuenessChecker interface {
	// IsDue reports whether enough days have elapsed since the watermark.
	IsDue(lastGenerated, asOf core.Date) bool
	// MinDays is the gate width. The storage query is built from the same
	// core.Pattern.GateDays values.
	MinDays() int
}

type WeeklyChecker struct{}

func (c WeeklyChecker) IsDue(last, asOf core.Date) bool { return last.DaysUntil(asOf) >= c.MinDays() }
func (WeeklyChecker) MinDays() int                      { return core.Weekly.GateDays() }

type MonthlyChecker struct{}

func (c MonthlyChecker) IsDue(last, asOf core.Date) bool { return last.DaysUntil(asOf) >= c.MinDays() }
func (MonthlyChecker) MinDays() int                      { return core.Monthly.GateDays() }

type YearlyChecker struct{}

func (c YearlyChecker) IsDue(last, asOf core.Date) bool { return last.DaysUntil(asOf) >= c.MinDays() }
func (YearlyChecker) MinDays() int                      { return core.Yearly.GateDays() }

var duenessStrategies = map[core.Pattern]DuenessChecker{
	core.Weekly:  WeeklyChecker{},
	core.Monthly: MonthlyChecker{},
	core.Yearly:  YearlyChecker{},
}

// GetDuenessChecker returns the checker for a pattern, or an error wrapping
// core.ErrUnknownPattern.
func GetDuenessChecker(p core.Pattern) (DuenessChecker, error) {
	checker, ok := duenessStrategies[p]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownPattern, p)
	}
	return checker, nil
}

// IsDue applies the gate of tpl's pattern together with the active and
// end-date conditions.
func IsDue(tpl core.RecurringTemplate, asOf core.Date) (bool, error) {
	if !tpl.IsActive {
		return false, nil
	}
	if tpl.EndDate != nil && tpl.EndDate.Before(asOf) {
		return false, nil
	}
	checker, err := GetDuenessChecker(tpl.Pattern)
	if err != nil {
		return false, err
	}
	return checker.IsDue(tpl.LastGeneratedDate, asOf), nil
}
