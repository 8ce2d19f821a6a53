package core

import (
	"fmt"
	"time"
)

// OverflowPolicy decides what happens when the target month has no such day
// (Jan 31 + 1 month).
type OverflowPolicy string

const (
	// OverflowClamp lands on the last day of the target month and returns to
	// the anchor day as soon as the month allows it.
	OverflowClamp OverflowPolicy = "clamp"
	// OverflowRoll carries the surplus days into the following month, the
	// way time.AddDate normalizes dates.
	OverflowRoll OverflowPolicy = "roll"
)

func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch p := OverflowPolicy(s); p {
	case OverflowClamp, OverflowRoll:
		return p, nil
	}
	return "", fmt.Errorf("invalid month overflow policy %q: must be %q or %q", s, OverflowClamp, OverflowRoll)
}

// GateDays is the number of days that must elapse after the watermark before
// a template is examined again. Monthly opens after 27 days so a February in
// between still yields its occurrence. Unknown patterns return 0.
func (p Pattern) GateDays() int {
	switch p {
	case Weekly:
		return 1
	case Monthly:
		return 27
	case Yearly:
		return 364
	default:
		return 0
	}
}

// Next returns the occurrence following last. anchorDay is the preferred day
// of month (the template's start day); zero means last.Day().
func (p Pattern) Next(last Date, anchorDay int, policy OverflowPolicy) (Date, error) {
	switch p {
	case Weekly:
		return last.AddDays(7), nil
	case Monthly:
		return addMonths(last, 1, anchorDay, policy), nil
	case Yearly:
		return addMonths(last, 12, anchorDay, policy), nil
	default:
		return Date{}, fmt.Errorf("%w: %q", ErrUnknownPattern, string(p))
	}
}

// NextFor is Next with the template's own anchor day.
func (rt RecurringTemplate) NextFor(policy OverflowPolicy) (Date, error) {
	return rt.Pattern.Next(rt.LastGeneratedDate, rt.StartDate.Day(), policy)
}

func addMonths(d Date, months, anchorDay int, policy OverflowPolicy) Date {
	if policy == OverflowRoll {
		return Date{Time: d.Time.AddDate(0, months, 0)}
	}

	if anchorDay <= 0 {
		anchorDay = d.Day()
	}
	first := time.Date(d.Year(), d.Time.Month()+time.Month(months), 1, 0, 0, 0, 0, time.UTC)
	day := anchorDay
	if last := DaysInMonth(first.Year(), first.Month()); day > last {
		day = last
	}
	return Date{Time: time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)}
}

// DaysInMonth returns the number of days of the given month.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
