// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts from user input
// into signed decimals rounded to cents.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// maxAmount bounds accepted amounts to keep them representable in reports.
var maxAmount = decimal.New(1, 12)

// ParseAmount converts a decimal string to a signed amount rounded to cents.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and an
// optional sign. Rounding is half away from zero on the third decimal place.
// Returns ErrInvalidAmount for malformed input, zero, or out-of-range values.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount("-12,34") -> -12.34, nil
//	ParseAmount("12.345") -> 12.35, nil
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.Count(s, ".") > 1 || strings.ContainsAny(s, "eE") {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	d = d.Round(2)
	if d.IsZero() || d.Abs().GreaterThanOrEqual(maxAmount) {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// Signed returns the amount with the sign implied by the kind: expenses are
// negative, income positive.
func Signed(amount decimal.Decimal, kind Kind) decimal.Decimal {
	if kind == Expense {
		return amount.Abs().Neg()
	}
	return amount.Abs()
}
