package storage

import (
	"context"
	"database/sql"
)

const transactionColumns = `id, user_id, category_id, rule_id, type, amount, description, date,
    idempotency_key, created_at`

func scanTransaction(row rowScanner) (Transaction, error) {
	var i Transaction
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.CategoryID,
		&i.RuleID,
		&i.Type,
		&i.Amount,
		&i.Description,
		&i.Date,
		&i.IdempotencyKey,
		&i.CreatedAt,
	)
	return i, err
}

const createTransaction = `INSERT INTO transactions (
    user_id, category_id, rule_id, type, amount, description, date, idempotency_key, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + transactionColumns

type CreateTransactionParams struct {
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

func (q *Queries) CreateTransaction(ctx context.Context, arg CreateTransactionParams) (Transaction, error) {
	row := q.db.QueryRowContext(ctx, createTransaction,
		arg.UserID,
		arg.CategoryID,
		arg.RuleID,
		arg.Type,
		arg.Amount,
		arg.Description,
		arg.Date,
		arg.IdempotencyKey,
		arg.CreatedAt,
	)
	return scanTransaction(row)
}

const listTransactions = `SELECT ` + transactionColumns + `
FROM transactions
WHERE (?1 IS NULL OR user_id = ?1) AND (?2 IS NULL OR rule_id = ?2)
ORDER BY date, id`

func (q *Queries) ListTransactions(ctx context.Context, userID, ruleID sql.NullInt64) ([]Transaction, error) {
	rows, err := q.db.QueryContext(ctx, listTransactions, userID, ruleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Transaction
	for rows.Next() {
		i, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createCategory = `INSERT INTO categories (user_id, name, created_at) VALUES (?, ?, ?)
RETURNING id, user_id, name, created_at`

func (q *Queries) CreateCategory(ctx context.Context, userID int64, name, createdAt string) (Category, error) {
	var i Category
	err := q.db.QueryRowContext(ctx, createCategory, userID, name, createdAt).Scan(
		&i.ID,
		&i.UserID,
		&i.Name,
		&i.CreatedAt,
	)
	return i, err
}

const deleteCategory = `DELETE FROM categories WHERE id = ?`

func (q *Queries) DeleteCategory(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteCategory, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
