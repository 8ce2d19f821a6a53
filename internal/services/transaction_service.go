package services

import (
	"context"
	"errors"
	"fmt"

	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/log"
)

// ErrUnknownCategory is returned when a transaction names a category the user
// does not own.
var ErrUnknownCategory = errors.New("unknown category")

// ValidationError marks input the caller can fix.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return "invalid input: " + e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(err error) error {
	if err == nil {
		return nil
	}
	return &ValidationError{Err: err}
}

type TransactionStore interface {
	CategoryExists(ctx context.Context, userID, id string) (bool, error)
	CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	CreateRecurring(ctx context.Context, tpl core.RecurringTemplate) (core.RecurringTemplate, core.Transaction, error)
	GetTransaction(ctx context.Context, id string) (core.Transaction, error)
	ListTransactions(ctx context.Context, userID string) ([]core.TransactionView, error)
	UpdateTransaction(ctx context.Context, t core.Transaction, updateFuture bool) error
	DeleteTransaction(ctx context.Context, userID, id string, deleteFuture bool) error
}

// NewTransaction is a create request. With Recurring set, a template with
// Pattern starting on Transaction.Date is stored as well.
type NewTransaction struct {
	core.Transaction
	Recurring bool
	Pattern   core.Pattern
	EndDate   *core.Date
}

// TransactionService stores transactions in SQLite first and then announces
// them on the message bus, best effort.
type TransactionService struct {
	store     TransactionStore
	publisher EventPublisher
	logger    *log.Logger
}

func NewTransactionService(store TransactionStore, publisher EventPublisher) *TransactionService {
	return &TransactionService{
		store:     store,
		publisher: publisher,
		logger:    log.WithComponent(log.ComponentStorage),
	}
}

func (s *TransactionService) List(ctx context.Context, userID string) ([]core.TransactionView, error) {
	return s.store.ListTransactions(ctx, userID)
}

// Create stores a one-off transaction, or a template plus its first
// occurrence. The returned template ID is empty for one-off transactions.
func (s *TransactionService) Create(ctx context.Context, in NewTransaction) (core.Transaction, string, error) {
	if err := s.checkCategory(ctx, in.UserID, in.CategoryID); err != nil {
		return core.Transaction{}, "", err
	}

	if !in.Recurring {
		if err := in.Transaction.Validate(); err != nil {
			return core.Transaction{}, "", invalid(err)
		}
		t, err := s.store.CreateTransaction(ctx, in.Transaction)
		if err != nil {
			return core.Transaction{}, "", fmt.Errorf("save transaction: %w", err)
		}
		s.publish(ctx, t, amqp.ActionCreated)
		return t, "", nil
	}

	tpl := core.RecurringTemplate{
		UserID:            in.UserID,
		CategoryID:        in.CategoryID,
		Name:              in.Name,
		Description:       in.Description,
		Amount:            in.Amount,
		Kind:              in.Kind,
		Pattern:           in.Pattern,
		StartDate:         in.Date,
		LastGeneratedDate: in.Date,
		EndDate:           in.EndDate,
		IsActive:          true,
	}
	if err := tpl.Validate(); err != nil {
		return core.Transaction{}, "", invalid(err)
	}

	tpl, first, err := s.store.CreateRecurring(ctx, tpl)
	if err != nil {
		return core.Transaction{}, "", fmt.Errorf("save recurring transaction: %w", err)
	}
	s.logger.InfoContext(ctx, "Recurring template created",
		log.FieldTemplateID, tpl.ID,
		log.FieldUserID, tpl.UserID,
		log.FieldPattern, string(tpl.Pattern))
	s.publish(ctx, first, amqp.ActionCreated)
	return first, tpl.ID, nil
}

// Update rewrites a transaction the user owns. updateFuture also rewrites the
// descriptive fields of the template that produced it.
func (s *TransactionService) Update(ctx context.Context, t core.Transaction, updateFuture bool) error {
	if err := t.Validate(); err != nil {
		return invalid(err)
	}
	if err := s.checkCategory(ctx, t.UserID, t.CategoryID); err != nil {
		return err
	}
	if err := s.store.UpdateTransaction(ctx, t, updateFuture); err != nil {
		return err
	}
	s.publish(ctx, t, amqp.ActionUpdated)
	return nil
}

// Delete removes a transaction. deleteFuture deactivates its template; the
// transactions it already produced stay.
func (s *TransactionService) Delete(ctx context.Context, userID, id string, deleteFuture bool) error {
	if err := s.store.DeleteTransaction(ctx, userID, id, deleteFuture); err != nil {
		return err
	}
	s.publish(ctx, core.Transaction{ID: id, UserID: userID}, amqp.ActionDeleted)
	return nil
}

func (s *TransactionService) checkCategory(ctx context.Context, userID string, categoryID *string) error {
	if categoryID == nil || *categoryID == "" {
		return nil
	}
	ok, err := s.store.CategoryExists(ctx, userID, *categoryID)
	if err != nil {
		return err
	}
	if !ok {
		return invalid(fmt.Errorf("%w: %s", ErrUnknownCategory, *categoryID))
	}
	return nil
}

func (s *TransactionService) publish(ctx context.Context, t core.Transaction, action amqp.Action) {
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "AMQP publisher not configured, skipping event")
		return
	}
	if err := s.publisher.Publish(ctx, amqp.NewTransactionEvent(t.ID, t.UserID, action)); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish transaction event",
			log.FieldTransactionID, t.ID,
			log.FieldAction, action,
			log.FieldError, err)
	}
}
