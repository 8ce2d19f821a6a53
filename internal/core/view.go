package core

import "errors"

// Store-level outcomes shared by the storage adapters and the services.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	// ErrWatermarkMoved reports that a template's last generated date changed
	// between selection and generation, so the occurrence belongs to someone else.
	ErrWatermarkMoved = errors.New("recurring template watermark moved")
)

// TransactionView is a transaction enriched with its category and the
// recurrence of the template that produced it.
type TransactionView struct {
	Transaction
	CategoryName      string
	CategoryEmoji     string
	RecurrencePattern Pattern
	RecurrenceEndDate *Date
}

// IsRecurring reports whether the transaction was produced by a template.
func (v TransactionView) IsRecurring() bool {
	return v.TemplateID != nil
}
