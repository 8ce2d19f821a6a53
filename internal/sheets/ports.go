package sheets

import (
	"context"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
)

// Row is one transaction as mirrored into a spreadsheet. Amount is signed:
// expenses are negative.
type Row struct {
	TransactionID string
	Date          string
	Name          string
	Description   string
	Category      string
	Kind          string
	Amount        decimal.Decimal
	TemplateID    string
}

// Ports for outbound adapters.
type (
	// TransactionExporter keeps one row per transaction ID.
	TransactionExporter interface {
		Upsert(ctx context.Context, r Row) (rowRef string, err error)
		Delete(ctx context.Context, transactionID string) error
	}
)

// RowFrom flattens a transaction for export.
func RowFrom(t core.Transaction, categoryName string) Row {
	r := Row{
		TransactionID: t.ID,
		Date:          t.Date.String(),
		Name:          t.Name,
		Description:   t.Description,
		Category:      categoryName,
		Kind:          string(t.Kind),
		Amount:        core.Signed(t.Amount, t.Kind),
	}
	if t.TemplateID != nil {
		r.TemplateID = *t.TemplateID
	}
	return r
}
