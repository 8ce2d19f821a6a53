package storage

import (
	"context"
	"fmt"

	"ledger/internal/core"
)

const templateColumns = `id, user_id, category_id, name, description, amount, type,
	recurrence_pattern, start_date, last_generated_date, end_date, is_active`

func scanTemplate(row interface{ Scan(...any) error }) (RecurringTransactionTemplate, error) {
	var t RecurringTransactionTemplate
	err := row.Scan(
		&t.ID, &t.UserID, &t.CategoryID, &t.Name, &t.Description, &t.Amount, &t.Type,
		&t.RecurrencePattern, &t.StartDate, &t.LastGeneratedDate, &t.EndDate, &t.IsActive,
	)
	return t, err
}

// Users

const createUser = `INSERT INTO users (id, email, password_hash, name) VALUES (?, ?, ?, ?)`

type CreateUserParams struct {
	ID           string
	Email        string
	PasswordHash string
	Name         string
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) error {
	_, err := q.db.ExecContext(ctx, createUser, arg.ID, arg.Email, arg.PasswordHash, arg.Name)
	return err
}

const getUserByEmail = `SELECT id, email, password_hash, name FROM users WHERE email = ?`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var u User
	err := q.db.QueryRowContext(ctx, getUserByEmail, email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name)
	return u, err
}

// Sessions

const createSession = `INSERT INTO sessions (token, user_id, expires_at) VALUES (?, ?, ?)`

func (q *Queries) CreateSession(ctx context.Context, token, userID, expiresAt string) error {
	_, err := q.db.ExecContext(ctx, createSession, token, userID, expiresAt)
	return err
}

const getSessionUser = `
SELECT u.id, u.email, u.password_hash, u.name
FROM sessions s
JOIN users u ON u.id = s.user_id
WHERE s.token = ? AND s.expires_at > ?`

func (q *Queries) GetSessionUser(ctx context.Context, token, now string) (User, error) {
	var u User
	err := q.db.QueryRowContext(ctx, getSessionUser, token, now).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name)
	return u, err
}

const deleteSession = `DELETE FROM sessions WHERE token = ?`

func (q *Queries) DeleteSession(ctx context.Context, token string) error {
	_, err := q.db.ExecContext(ctx, deleteSession, token)
	return err
}

const deleteExpiredSessions = `DELETE FROM sessions WHERE expires_at <= ?`

func (q *Queries) DeleteExpiredSessions(ctx context.Context, now string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteExpiredSessions, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Categories

const listCategories = `
SELECT id, user_id, name, emoji, description
FROM categories
WHERE user_id = ?
ORDER BY name`

func (q *Queries) ListCategories(ctx context.Context, userID string) ([]Category, error) {
	rows, err := q.db.QueryContext(ctx, listCategories, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Emoji, &c.Description); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

const getCategory = `SELECT id, user_id, name, emoji, description FROM categories WHERE id = ? AND user_id = ?`

func (q *Queries) GetCategory(ctx context.Context, id, userID string) (Category, error) {
	var c Category
	err := q.db.QueryRowContext(ctx, getCategory, id, userID).Scan(&c.ID, &c.UserID, &c.Name, &c.Emoji, &c.Description)
	return c, err
}

const countUserCategory = `SELECT COUNT(*) FROM categories WHERE id = ? AND user_id = ?`

func (q *Queries) CountUserCategory(ctx context.Context, id, userID string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countUserCategory, id, userID).Scan(&n)
	return n, err
}

const createCategory = `INSERT INTO categories (id, user_id, name, emoji, description) VALUES (?, ?, ?, ?, ?)`

func (q *Queries) CreateCategory(ctx context.Context, arg Category) error {
	_, err := q.db.ExecContext(ctx, createCategory, arg.ID, arg.UserID, arg.Name, arg.Emoji, arg.Description)
	return err
}

const updateCategory = `UPDATE categories SET name = ?, emoji = ?, description = ? WHERE id = ? AND user_id = ?`

func (q *Queries) UpdateCategory(ctx context.Context, arg Category) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateCategory, arg.Name, arg.Emoji, arg.Description, arg.ID, arg.UserID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteCategory = `DELETE FROM categories WHERE id = ? AND user_id = ?`

func (q *Queries) DeleteCategory(ctx context.Context, id, userID string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteCategory, id, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Transactions

const createTransaction = `
INSERT INTO transactions (
    id, user_id, category_id, name, description, amount, type, date, recurring_template_id
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateTransaction(ctx context.Context, arg Transaction) error {
	_, err := q.db.ExecContext(ctx, createTransaction,
		arg.ID, arg.UserID, arg.CategoryID, arg.Name, arg.Description,
		arg.Amount, arg.Type, arg.Date, arg.RecurringTemplateID,
	)
	return err
}

const getTransaction = `
SELECT id, user_id, category_id, name, description, amount, type, date, recurring_template_id
FROM transactions
WHERE id = ?`

func (q *Queries) GetTransaction(ctx context.Context, id string) (Transaction, error) {
	var t Transaction
	err := q.db.QueryRowContext(ctx, getTransaction, id).Scan(
		&t.ID, &t.UserID, &t.CategoryID, &t.Name, &t.Description,
		&t.Amount, &t.Type, &t.Date, &t.RecurringTemplateID,
	)
	return t, err
}

const listTransactions = `
SELECT
    t.id, t.user_id, t.category_id, t.name, t.description, t.amount, t.type, t.date,
    t.recurring_template_id,
    c.name, c.emoji,
    rt.recurrence_pattern, rt.end_date
FROM transactions t
LEFT JOIN categories c ON t.category_id = c.id
LEFT JOIN recurring_transaction_templates rt ON t.recurring_template_id = rt.id
WHERE t.user_id = ?
ORDER BY t.date DESC, t.id DESC`

func (q *Queries) ListTransactions(ctx context.Context, userID string) ([]TransactionRow, error) {
	rows, err := q.db.QueryContext(ctx, listTransactions, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []TransactionRow
	for rows.Next() {
		var r TransactionRow
		if err := rows.Scan(
			&r.ID, &r.UserID, &r.CategoryID, &r.Name, &r.Description, &r.Amount, &r.Type, &r.Date,
			&r.RecurringTemplateID,
			&r.CategoryName, &r.CategoryEmoji,
			&r.RecurrencePattern, &r.RecurrenceEndDate,
		); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const updateTransaction = `
UPDATE transactions
SET name = ?, description = ?, amount = ?, type = ?, category_id = ?, date = ?,
    updated_at = CURRENT_TIMESTAMP
WHERE id = ? AND user_id = ?`

func (q *Queries) UpdateTransaction(ctx context.Context, arg Transaction) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateTransaction,
		arg.Name, arg.Description, arg.Amount, arg.Type, arg.CategoryID, arg.Date,
		arg.ID, arg.UserID,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteTransaction = `DELETE FROM transactions WHERE id = ? AND user_id = ?`

func (q *Queries) DeleteTransaction(ctx context.Context, id, userID string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteTransaction, id, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Recurring templates

const createTemplate = `
INSERT INTO recurring_transaction_templates (
    id, user_id, category_id, name, description, amount, type,
    recurrence_pattern, start_date, last_generated_date, end_date, is_active
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateTemplate(ctx context.Context, arg RecurringTransactionTemplate) error {
	_, err := q.db.ExecContext(ctx, createTemplate,
		arg.ID, arg.UserID, arg.CategoryID, arg.Name, arg.Description, arg.Amount, arg.Type,
		arg.RecurrencePattern, arg.StartDate, arg.LastGeneratedDate, arg.EndDate, arg.IsActive,
	)
	return err
}

const getTemplate = `SELECT ` + templateColumns + ` FROM recurring_transaction_templates WHERE id = ?`

func (q *Queries) GetTemplate(ctx context.Context, id string) (RecurringTransactionTemplate, error) {
	return scanTemplate(q.db.QueryRowContext(ctx, getTemplate, id))
}

// The elapsed-day gates come from core.Pattern.GateDays, which the
// generator's dueness checkers use as well.
var listDueTemplates = fmt.Sprintf(`SELECT `+templateColumns+`
FROM recurring_transaction_templates
WHERE is_active = 1
  AND (end_date IS NULL OR end_date >= ?1)
  AND (
      (recurrence_pattern = 'weekly' AND last_generated_date <= date(?1, '-%d days'))
      OR (recurrence_pattern = 'monthly' AND last_generated_date <= date(?1, '-%d days'))
      OR (recurrence_pattern = 'yearly' AND last_generated_date <= date(?1, '-%d days'))
      OR recurrence_pattern NOT IN ('weekly', 'monthly', 'yearly')
  )
  AND (?2 = '' OR user_id = ?2)
ORDER BY last_generated_date, id`,
	core.Weekly.GateDays(), core.Monthly.GateDays(), core.Yearly.GateDays())

func (q *Queries) ListDueTemplates(ctx context.Context, asOf, userID string) ([]RecurringTransactionTemplate, error) {
	rows, err := q.db.QueryContext(ctx, listDueTemplates, asOf, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []RecurringTransactionTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

const advanceWatermark = `
UPDATE recurring_transaction_templates
SET last_generated_date = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ? AND last_generated_date = ? AND is_active = 1`

// AdvanceWatermark is a compare-and-swap on last_generated_date. It returns the
// number of rows updated: zero means another run moved the watermark first.
func (q *Queries) AdvanceWatermark(ctx context.Context, id, from, to string) (int64, error) {
	res, err := q.db.ExecContext(ctx, advanceWatermark, to, id, from)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const updateTemplateDetails = `
UPDATE recurring_transaction_templates
SET name = ?, description = ?, amount = ?, type = ?, category_id = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ? AND user_id = ?`

func (q *Queries) UpdateTemplateDetails(ctx context.Context, arg RecurringTransactionTemplate) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateTemplateDetails,
		arg.Name, arg.Description, arg.Amount, arg.Type, arg.CategoryID, arg.ID, arg.UserID,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deactivateTemplate = `
UPDATE recurring_transaction_templates
SET is_active = 0, updated_at = CURRENT_TIMESTAMP
WHERE id = ? AND user_id = ?`

func (q *Queries) DeactivateTemplate(ctx context.Context, id, userID string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deactivateTemplate, id, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
