package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"ledger/internal/core"
)

// timestampLayout is how session expiries are stored so that plain string
// comparison in SQL orders them correctly.
const timestampLayout = "2006-01-02 15:04:05"

const dsnPragmas = "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := dbPath + dsnPragmas
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping backs the readiness probe.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func newID() string {
	return ulid.Make().String()
}

func (r *SQLiteRepository) withTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(r.queries.WithTx(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrNotFound
	}
	return err
}

// Users and sessions

func (r *SQLiteRepository) CreateUser(ctx context.Context, email, passwordHash, name string) (core.User, error) {
	u := User{ID: newID(), Email: email, PasswordHash: passwordHash, Name: name}
	if err := r.queries.CreateUser(ctx, CreateUserParams(u)); err != nil {
		if isUniqueViolation(err) {
			return core.User{}, fmt.Errorf("user %s: %w", email, core.ErrConflict)
		}
		return core.User{}, fmt.Errorf("create user: %w", err)
	}
	return core.User{ID: u.ID, Email: u.Email, Name: u.Name}, nil
}

// UserByEmail returns the user and its password hash.
func (r *SQLiteRepository) UserByEmail(ctx context.Context, email string) (core.User, string, error) {
	u, err := r.queries.GetUserByEmail(ctx, email)
	if err != nil {
		return core.User{}, "", fmt.Errorf("get user by email: %w", notFound(err))
	}
	return core.User{ID: u.ID, Email: u.Email, Name: u.Name}, u.PasswordHash, nil
}

func (r *SQLiteRepository) CreateSession(ctx context.Context, token, userID string, expiresAt time.Time) error {
	if err := r.queries.CreateSession(ctx, token, userID, expiresAt.UTC().Format(timestampLayout)); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// SessionUser resolves a bearer token that has not expired at now.
func (r *SQLiteRepository) SessionUser(ctx context.Context, token string, now time.Time) (core.User, error) {
	u, err := r.queries.GetSessionUser(ctx, token, now.UTC().Format(timestampLayout))
	if err != nil {
		return core.User{}, fmt.Errorf("get session: %w", notFound(err))
	}
	return core.User{ID: u.ID, Email: u.Email, Name: u.Name}, nil
}

func (r *SQLiteRepository) DeleteSession(ctx context.Context, token string) error {
	if err := r.queries.DeleteSession(ctx, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	n, err := r.queries.DeleteExpiredSessions(ctx, now.UTC().Format(timestampLayout))
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return n, nil
}

// Categories

func (r *SQLiteRepository) ListCategories(ctx context.Context, userID string) ([]core.Category, error) {
	rows, err := r.queries.ListCategories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	out := make([]core.Category, 0, len(rows))
	for _, c := range rows {
		out = append(out, core.Category(c))
	}
	return out, nil
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, userID, id string) (core.Category, error) {
	c, err := r.queries.GetCategory(ctx, id, userID)
	if err != nil {
		return core.Category{}, fmt.Errorf("get category %s: %w", id, notFound(err))
	}
	return core.Category(c), nil
}

func (r *SQLiteRepository) CategoryExists(ctx context.Context, userID, id string) (bool, error) {
	n, err := r.queries.CountUserCategory(ctx, id, userID)
	if err != nil {
		return false, fmt.Errorf("check category: %w", err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	c.ID = newID()
	if err := r.queries.CreateCategory(ctx, Category(c)); err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	return c, nil
}

func (r *SQLiteRepository) UpdateCategory(ctx context.Context, c core.Category) error {
	n, err := r.queries.UpdateCategory(ctx, Category(c))
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("category %s: %w", c.ID, core.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) DeleteCategory(ctx context.Context, userID, id string) error {
	n, err := r.queries.DeleteCategory(ctx, id, userID)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("category %s: %w", id, core.ErrNotFound)
	}
	return nil
}

// Transactions

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	t.ID = newID()
	if err := r.queries.CreateTransaction(ctx, toTransactionRow(t)); err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	return t, nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	row, err := r.queries.GetTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %s: %w", id, notFound(err))
	}
	return fromTransactionRow(row)
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, userID string) ([]core.TransactionView, error) {
	rows, err := r.queries.ListTransactions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	out := make([]core.TransactionView, 0, len(rows))
	for _, row := range rows {
		t, err := fromTransactionRow(row.Transaction)
		if err != nil {
			return nil, err
		}
		v := core.TransactionView{
			Transaction:       t,
			CategoryName:      row.CategoryName.String,
			CategoryEmoji:     row.CategoryEmoji.String,
			RecurrencePattern: core.Pattern(row.RecurrencePattern.String),
		}
		if row.RecurrenceEndDate.Valid {
			end, err := core.ParseDate(row.RecurrenceEndDate.String)
			if err != nil {
				return nil, fmt.Errorf("transaction %s: recurrence end date: %w", t.ID, err)
			}
			v.RecurrenceEndDate = &end
		}
		out = append(out, v)
	}
	return out, nil
}

// UpdateTransaction rewrites a transaction owned by t.UserID. With updateFuture
// the template that produced it gets the same descriptive fields, so later
// occurrences follow the change.
func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, t core.Transaction, updateFuture bool) error {
	return r.withTx(ctx, func(q *Queries) error {
		existing, err := q.GetTransaction(ctx, t.ID)
		if err != nil {
			return fmt.Errorf("get transaction %s: %w", t.ID, notFound(err))
		}
		if existing.UserID != t.UserID {
			return fmt.Errorf("transaction %s: %w", t.ID, core.ErrNotFound)
		}

		row := toTransactionRow(t)
		if _, err := q.UpdateTransaction(ctx, row); err != nil {
			return fmt.Errorf("update transaction: %w", err)
		}

		if updateFuture && existing.RecurringTemplateID.Valid {
			if _, err := q.UpdateTemplateDetails(ctx, RecurringTransactionTemplate{
				ID:          existing.RecurringTemplateID.String,
				UserID:      t.UserID,
				CategoryID:  row.CategoryID,
				Name:        row.Name,
				Description: row.Description,
				Amount:      row.Amount,
				Type:        row.Type,
			}); err != nil {
				return fmt.Errorf("update recurring template: %w", err)
			}
		}
		return nil
	})
}

// DeleteTransaction removes one transaction. With deleteFuture its template is
// deactivated; transactions already generated stay.
func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, userID, id string, deleteFuture bool) error {
	return r.withTx(ctx, func(q *Queries) error {
		existing, err := q.GetTransaction(ctx, id)
		if err != nil {
			return fmt.Errorf("get transaction %s: %w", id, notFound(err))
		}
		if existing.UserID != userID {
			return fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
		}

		if _, err := q.DeleteTransaction(ctx, id, userID); err != nil {
			return fmt.Errorf("delete transaction: %w", err)
		}

		if deleteFuture && existing.RecurringTemplateID.Valid {
			if _, err := q.DeactivateTemplate(ctx, existing.RecurringTemplateID.String, userID); err != nil {
				return fmt.Errorf("deactivate recurring template: %w", err)
			}
		}
		return nil
	})
}

// Recurring templates

// CreateRecurring stores a template together with its first transaction, dated
// on the start date. The watermark starts at the start date.
func (r *SQLiteRepository) CreateRecurring(ctx context.Context, tpl core.RecurringTemplate) (core.RecurringTemplate, core.Transaction, error) {
	tpl.ID = newID()
	tpl.LastGeneratedDate = tpl.StartDate
	tpl.IsActive = true

	first := tpl.Occurrence(tpl.StartDate)
	first.ID = newID()

	err := r.withTx(ctx, func(q *Queries) error {
		if err := q.CreateTemplate(ctx, toTemplateRow(tpl)); err != nil {
			return fmt.Errorf("create recurring template: %w", err)
		}
		if err := q.CreateTransaction(ctx, toTransactionRow(first)); err != nil {
			return fmt.Errorf("create initial transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return core.RecurringTemplate{}, core.Transaction{}, err
	}
	return tpl, first, nil
}

func (r *SQLiteRepository) GetTemplate(ctx context.Context, id string) (core.RecurringTemplate, error) {
	row, err := r.queries.GetTemplate(ctx, id)
	if err != nil {
		return core.RecurringTemplate{}, fmt.Errorf("get recurring template %s: %w", id, notFound(err))
	}
	return fromTemplateRow(row)
}

// ListDueTemplates returns active, unexpired templates whose elapsed-day gate
// has opened at asOf. An empty userID selects every user.
func (r *SQLiteRepository) ListDueTemplates(ctx context.Context, asOf core.Date, userID string) ([]core.RecurringTemplate, error) {
	rows, err := r.queries.ListDueTemplates(ctx, asOf.String(), userID)
	if err != nil {
		return nil, fmt.Errorf("list due templates: %w", err)
	}
	out := make([]core.RecurringTemplate, 0, len(rows))
	for _, row := range rows {
		tpl, err := fromTemplateRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, tpl)
	}
	return out, nil
}

// AppendOccurrence advances the template's watermark from tpl.LastGeneratedDate
// to on and inserts the matching transaction, both or neither. When the
// watermark no longer matches, core.ErrWatermarkMoved is returned and nothing
// is written.
func (r *SQLiteRepository) AppendOccurrence(ctx context.Context, tpl core.RecurringTemplate, on core.Date) (core.Transaction, error) {
	t := tpl.Occurrence(on)
	t.ID = newID()

	err := r.withTx(ctx, func(q *Queries) error {
		n, err := q.AdvanceWatermark(ctx, tpl.ID, tpl.LastGeneratedDate.String(), on.String())
		if err != nil {
			return fmt.Errorf("advance watermark: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("template %s: %w", tpl.ID, core.ErrWatermarkMoved)
		}
		if err := q.CreateTransaction(ctx, toTransactionRow(t)); err != nil {
			return fmt.Errorf("create generated transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return core.Transaction{}, err
	}
	return t, nil
}

// Row conversions

func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func toTransactionRow(t core.Transaction) Transaction {
	return Transaction{
		ID:                  t.ID,
		UserID:              t.UserID,
		CategoryID:          nullString(t.CategoryID),
		Name:                t.Name,
		Description:         t.Description,
		Amount:              t.Amount.StringFixed(2),
		Type:                string(t.Kind),
		Date:                t.Date.String(),
		RecurringTemplateID: nullString(t.TemplateID),
	}
}

func fromTransactionRow(row Transaction) (core.Transaction, error) {
	amount, err := decimal.NewFromString(row.Amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s: amount %q: %w", row.ID, row.Amount, err)
	}
	date, err := core.ParseDate(row.Date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", row.ID, err)
	}
	return core.Transaction{
		ID:          row.ID,
		UserID:      row.UserID,
		CategoryID:  stringPtr(row.CategoryID),
		Name:        row.Name,
		Description: row.Description,
		Amount:      amount,
		Kind:        core.Kind(row.Type),
		Date:        date,
		TemplateID:  stringPtr(row.RecurringTemplateID),
	}, nil
}

func toTemplateRow(tpl core.RecurringTemplate) RecurringTransactionTemplate {
	row := RecurringTransactionTemplate{
		ID:                tpl.ID,
		UserID:            tpl.UserID,
		CategoryID:        nullString(tpl.CategoryID),
		Name:              tpl.Name,
		Description:       tpl.Description,
		Amount:            tpl.Amount.StringFixed(2),
		Type:              string(tpl.Kind),
		RecurrencePattern: string(tpl.Pattern),
		StartDate:         tpl.StartDate.String(),
		LastGeneratedDate: tpl.LastGeneratedDate.String(),
		IsActive:          tpl.IsActive,
	}
	if tpl.EndDate != nil {
		row.EndDate = sql.NullString{String: tpl.EndDate.String(), Valid: true}
	}
	return row
}

func fromTemplateRow(row RecurringTransactionTemplate) (core.RecurringTemplate, error) {
	amount, err := decimal.NewFromString(row.Amount)
	if err != nil {
		return core.RecurringTemplate{}, fmt.Errorf("template %s: amount %q: %w", row.ID, row.Amount, err)
	}
	start, err := core.ParseDate(row.StartDate)
	if err != nil {
		return core.RecurringTemplate{}, fmt.Errorf("template %s: start date: %w", row.ID, err)
	}
	last, err := core.ParseDate(row.LastGeneratedDate)
	if err != nil {
		return core.RecurringTemplate{}, fmt.Errorf("template %s: last generated date: %w", row.ID, err)
	}
	tpl := core.RecurringTemplate{
		ID:                row.ID,
		UserID:            row.UserID,
		CategoryID:        stringPtr(row.CategoryID),
		Name:              row.Name,
		Description:       row.Description,
		Amount:            amount,
		Kind:              core.Kind(row.Type),
		Pattern:           core.Pattern(row.RecurrencePattern),
		StartDate:         start,
		LastGeneratedDate: last,
		IsActive:          row.IsActive,
	}
	if row.EndDate.Valid {
		end, err := core.ParseDate(row.EndDate.String)
		if err != nil {
			return core.RecurringTemplate{}, fmt.Errorf("template %s: end date: %w", row.ID, err)
		}
		tpl.EndDate = &end
	}
	return tpl, nil
}
