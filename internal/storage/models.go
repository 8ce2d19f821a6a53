package storage

import "database/sql"

type User struct {
	ID           string
	Email        string
	PasswordHash string
	Name         string
}

type Category struct {
	ID          string
	UserID      string
	Name        string
	Emoji       string
	Description string
}

type Transaction struct {
	ID                  string
	UserID              string
	CategoryID          sql.NullString
	Name                string
	Description         string
	Amount              string
	Type                string
	Date                string
	RecurringTemplateID sql.NullString
}

type TransactionRow struct {
	Transaction
	CategoryName      sql.NullString
	CategoryEmoji     sql.NullString
	RecurrencePattern sql.NullString
	RecurrenceEndDate sql.NullString
}

type RecurringTransactionTemplate struct {
	ID                string
	UserID            string
	CategoryID        sql.NullString
	Name              string
	Description       string
	Amount            string
	Type              string
	RecurrencePattern string
	StartDate         string
	LastGeneratedDate string
	EndDate           sql.NullString
	IsActive          bool
}
