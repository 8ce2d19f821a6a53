package worker

import (
	"context"
	"errors"
	"fmt"

	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/sheets"
)

// Store is the read side the export worker needs.
type Store interface {
	GetTransaction(ctx context.Context, id string) (core.Transaction, error)
	GetCategory(ctx context.Context, userID, id string) (core.Category, error)
	ListTransactions(ctx context.Context, userID string) ([]core.TransactionView, error)
}

// ExportWorker mirrors stored transactions into a spreadsheet as transaction
// events arrive.
type ExportWorker struct {
	store    Store
	exporter sheets.TransactionExporter
	logger   *log.Logger
}

func NewExportWorker(store Store, exporter sheets.TransactionExporter) *ExportWorker {
	return &ExportWorker{
		store:    store,
		exporter: exporter,
		logger:   log.WithComponent(log.ComponentWorker),
	}
}

// HandleEvent is the AMQP consumer callback. A returned error requeues the
// message.
func (w *ExportWorker) HandleEvent(ctx context.Context, e *amqp.TransactionEvent) error {
	switch e.Action {
	case amqp.ActionCreated, amqp.ActionUpdated:
		return w.export(ctx, e.ID)
	case amqp.ActionDeleted:
		if err := w.exporter.Delete(ctx, e.ID); err != nil {
			return fmt.Errorf("delete exported row %s: %w", e.ID, err)
		}
		w.logger.InfoContext(ctx, "Removed exported transaction", log.FieldTransactionID, e.ID)
		return nil
	default:
		// Requeueing would loop forever.
		w.logger.WarnContext(ctx, "Ignoring event with unknown action",
			log.FieldTransactionID, e.ID,
			log.FieldAction, e.Action)
		return nil
	}
}

func (w *ExportWorker) export(ctx context.Context, id string) error {
	t, err := w.store.GetTransaction(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		w.logger.InfoContext(ctx, "Transaction gone before export, skipping", log.FieldTransactionID, id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load transaction %s: %w", id, err)
	}

	ref, err := w.exporter.Upsert(ctx, sheets.RowFrom(t, w.categoryName(ctx, t)))
	if err != nil {
		return fmt.Errorf("export transaction %s: %w", id, err)
	}

	w.logger.InfoContext(ctx, "Exported transaction",
		log.FieldOperation, log.OpExport,
		log.FieldTransactionID, id,
		"ref", ref)
	return nil
}

func (w *ExportWorker) categoryName(ctx context.Context, t core.Transaction) string {
	if t.CategoryID == nil {
		return ""
	}
	c, err := w.store.GetCategory(ctx, t.UserID, *t.CategoryID)
	if err != nil {
		w.logger.WarnContext(ctx, "Category lookup failed, exporting without it",
			log.FieldTransactionID, t.ID,
			log.FieldError, err)
		return ""
	}
	return c.Name
}

// Resync exports every transaction of userID. It recovers from lost events.
func (w *ExportWorker) Resync(ctx context.Context, userID string) (int, error) {
	views, err := w.store.ListTransactions(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("list transactions: %w", err)
	}

	exported := 0
	var errs []error
	for _, v := range views {
		if err := ctx.Err(); err != nil {
			return exported, err
		}
		if _, err := w.exporter.Upsert(ctx, sheets.RowFrom(v.Transaction, v.CategoryName)); err != nil {
			errs = append(errs, fmt.Errorf("transaction %s: %w", v.ID, err))
			continue
		}
		exported++
	}

	w.logger.InfoContext(ctx, "Resync completed",
		log.FieldOperation, log.OpResync,
		log.FieldUserID, userID,
		"total", len(views),
		"exported", exported,
		log.FieldFailed, len(errs))
	return exported, errors.Join(errs...)
}
