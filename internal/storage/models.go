package storage

import "database/sql"

// Row types as stored. Dates are ISO 8601 text, amounts are decimal text.

type Category struct {
	ID        int64
	UserID    int64
	Name      string
	CreatedAt string
}

type RecurringRule struct {
	ID                int64
	UserID            int64
	CategoryID        int64
	Type              string
	Amount            string
	Description       string
	Frequency         string
	DayOfWeek         sql.NullInt64
	DayOfMonth        sql.NullInt64
	StartDate         string
	EndDate           sql.NullString
	IsActive          int64
	LastGeneratedDate sql.NullString
	CreatedAt         string
	UpdatedAt         string
}

type Transaction struct {
	ID             int64
	UserID         int64
	CategoryID     int64
	RuleID         sql.NullInt64
	Type           string
	Amount         string
	Description    string
	Date           string
	IdempotencyKey sql.NullString
	CreatedAt      string
}
