package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	Weekly  Pattern = "weekly"
	Monthly Pattern = "monthly"
	Yearly  Pattern = "yearly"

	Income  Kind = "income"
	Expense Kind = "expense"
)

type (
	// Pattern is the recurrence rule of a template. It never changes after creation.
	Pattern string

	// Kind tells income and expense transactions apart.
	Kind string

	Category struct {
		ID          string
		UserID      string
		Name        string
		Emoji       string
		Description string
	}

	Transaction struct {
		ID          string
		UserID      string
		CategoryID  *string
		Name        string
		Description string
		Amount      decimal.Decimal
		Kind        Kind
		Date        Date
		TemplateID  *string // set when produced from a recurring template
	}

	// RecurringTemplate describes the shape and cadence of a recurring transaction.
	RecurringTemplate struct {
		ID                string
		UserID            string
		CategoryID        *string
		Name              string
		Description       string
		Amount            decimal.Decimal
		Kind              Kind
		Pattern           Pattern
		StartDate         Date
		LastGeneratedDate Date
		EndDate           *Date
		IsActive          bool
	}

	User struct {
		ID    string
		Email string
		Name  string
	}
)

var (
	ErrEmptyName      = errors.New("empty name")
	ErrInvalidKind    = errors.New("invalid transaction kind")
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrUnknownPattern = errors.New("unknown recurrence pattern")
	ErrEndBeforeStart = errors.New("end date must not be before start date")
	ErrEmptyEmoji     = errors.New("empty emoji")
	ErrNameTooLong    = errors.New("name too long (max 200 characters)")
)

func (k Kind) Valid() bool {
	return k == Income || k == Expense
}

func (p Pattern) Valid() bool {
	switch p {
	case Weekly, Monthly, Yearly:
		return true
	}
	return false
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}
	if len(name) > 200 {
		return ErrNameTooLong
	}
	return nil
}

func (t Transaction) Validate() error {
	if err := validateName(t.Name); err != nil {
		return err
	}
	if !t.Kind.Valid() {
		return ErrInvalidKind
	}
	if t.Amount.IsZero() {
		return ErrInvalidAmount
	}
	return t.Date.Validate()
}

func (rt RecurringTemplate) Validate() error {
	if err := validateName(rt.Name); err != nil {
		return err
	}
	if !rt.Kind.Valid() {
		return ErrInvalidKind
	}
	if rt.Amount.IsZero() {
		return ErrInvalidAmount
	}
	if !rt.Pattern.Valid() {
		return ErrUnknownPattern
	}
	if err := rt.StartDate.Validate(); err != nil {
		return errors.New("invalid start date: " + err.Error())
	}
	if rt.EndDate != nil {
		if err := rt.EndDate.Validate(); err != nil {
			return errors.New("invalid end date: " + err.Error())
		}
		if rt.EndDate.Before(rt.StartDate) {
			return ErrEndBeforeStart
		}
	}
	return nil
}

func (c Category) Validate() error {
	if err := validateName(c.Name); err != nil {
		return err
	}
	if strings.TrimSpace(c.Emoji) == "" {
		return ErrEmptyEmoji
	}
	return nil
}

// Occurrence builds the transaction a template produces on the given date.
func (rt RecurringTemplate) Occurrence(on Date) Transaction {
	id := rt.ID
	return Transaction{
		UserID:      rt.UserID,
		CategoryID:  rt.CategoryID,
		Name:        rt.Name,
		Description: rt.Description,
		Amount:      rt.Amount,
		Kind:        rt.Kind,
		Date:        on,
		TemplateID:  &id,
	}
}
