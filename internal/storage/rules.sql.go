package storage

import (
	"context"
	"database/sql"
)

const recurringRuleColumns = `id, user_id, category_id, type, amount, description, frequency,
    day_of_week, day_of_month, start_date, end_date, is_active, last_generated_date,
    created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecurringRule(row rowScanner) (RecurringRule, error) {
	var i RecurringRule
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.CategoryID,
		&i.Type,
		&i.Amount,
		&i.Description,
		&i.Frequency,
		&i.DayOfWeek,
		&i.DayOfMonth,
		&i.StartDate,
		&i.EndDate,
		&i.IsActive,
		&i.LastGeneratedDate,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func (q *Queries) listRecurringRules(ctx context.Context, query string, args ...interface{}) ([]RecurringRule, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []RecurringRule
	for rows.Next() {
		i, err := scanRecurringRule(rows)
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

const createRecurringRule = `INSERT INTO recurring_rules (
    user_id, category_id, type, amount, description, frequency,
    day_of_week, day_of_month, start_date, end_date, is_active, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
RETURNING ` + recurringRuleColumns

type CreateRecurringRuleParams struct {
	UserID      int64
	CategoryID  int64
	Type        string
	Amount      string
	Description string
	Frequency   string
	DayOfWeek   sql.NullInt64
	DayOfMonth  sql.NullInt64
	StartDate   string
	EndDate     sql.NullString
	CreatedAt   string
}

func (q *Queries) CreateRecurringRule(ctx context.Context, arg CreateRecurringRuleParams) (RecurringRule, error) {
	row := q.db.QueryRowContext(ctx, createRecurringRule,
		arg.UserID,
		arg.CategoryID,
		arg.Type,
		arg.Amount,
		arg.Description,
		arg.Frequency,
		arg.DayOfWeek,
		arg.DayOfMonth,
		arg.StartDate,
		arg.EndDate,
		arg.CreatedAt,
		arg.CreatedAt,
	)
	return scanRecurringRule(row)
}

const updateRecurringRule = `UPDATE recurring_rules
SET category_id = ?, type = ?, amount = ?, description = ?, frequency = ?,
    day_of_week = ?, day_of_month = ?, start_date = ?, end_date = ?, updated_at = ?
WHERE id = ?
RETURNING ` + recurringRuleColumns

type UpdateRecurringRuleParams struct {
	ID          int64
	CategoryID  int64
	Type        string
	Amount      string
	Description string
	Frequency   string
	DayOfWeek   sql.NullInt64
	DayOfMonth  sql.NullInt64
	StartDate   string
	EndDate     sql.NullString
	UpdatedAt   string
}

func (q *Queries) UpdateRecurringRule(ctx context.Context, arg UpdateRecurringRuleParams) (RecurringRule, error) {
	row := q.db.QueryRowContext(ctx, updateRecurringRule,
		arg.CategoryID,
		arg.Type,
		arg.Amount,
		arg.Description,
		arg.Frequency,
		arg.DayOfWeek,
		arg.DayOfMonth,
		arg.StartDate,
		arg.EndDate,
		arg.UpdatedAt,
		arg.ID,
	)
	return scanRecurringRule(row)
}

const setRecurringRuleActive = `UPDATE recurring_rules SET is_active = ?, updated_at = ? WHERE id = ?`

func (q *Queries) SetRecurringRuleActive(ctx context.Context, id int64, active bool, updatedAt string) (int64, error) {
	var flag int64
	if active {
		flag = 1
	}
	result, err := q.db.ExecContext(ctx, setRecurringRuleActive, flag, updatedAt, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteRecurringRule = `DELETE FROM recurring_rules WHERE id = ?`

func (q *Queries) DeleteRecurringRule(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteRecurringRule, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const getRecurringRule = `SELECT ` + recurringRuleColumns + ` FROM recurring_rules WHERE id = ?`

func (q *Queries) GetRecurringRule(ctx context.Context, id int64) (RecurringRule, error) {
	return scanRecurringRule(q.db.QueryRowContext(ctx, getRecurringRule, id))
}

const listActiveRecurringRules = `SELECT ` + recurringRuleColumns + `
FROM recurring_rules WHERE is_active = 1 ORDER BY id`

func (q *Queries) ListActiveRecurringRules(ctx context.Context) ([]RecurringRule, error) {
	return q.listRecurringRules(ctx, listActiveRecurringRules)
}

const listRecurringRules = `SELECT ` + recurringRuleColumns + `
FROM recurring_rules
WHERE (?1 IS NULL OR user_id = ?1) AND (?2 IS NULL OR is_active = ?2)
ORDER BY id`

func (q *Queries) ListRecurringRules(ctx context.Context, userID, active sql.NullInt64) ([]RecurringRule, error) {
	return q.listRecurringRules(ctx, listRecurringRules, userID, active)
}

// advanceWatermark only moves forward; zero rows affected means the rule is
// missing or already at or past the date.
const advanceWatermark = `UPDATE recurring_rules
SET last_generated_date = ?1, updated_at = ?2
WHERE id = ?3 AND (last_generated_date IS NULL OR last_generated_date < ?1)`

func (q *Queries) AdvanceWatermark(ctx context.Context, id int64, date, updatedAt string) (int64, error) {
	result, err := q.db.ExecContext(ctx, advanceWatermark, date, updatedAt, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const getWatermark = `SELECT last_generated_date FROM recurring_rules WHERE id = ?`

func (q *Queries) GetWatermark(ctx context.Context, id int64) (sql.NullString, error) {
	var date sql.NullString
	err := q.db.QueryRowContext(ctx, getWatermark, id).Scan(&date)
	return date, err
}
