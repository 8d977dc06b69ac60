package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"accountbook/internal/core"
	applog "accountbook/internal/log"
)

const timestampLayout = time.RFC3339Nano

// SQLiteRepository stores rules, categories and generated transactions.
// It is the RuleStore, the TransactionSink and, because both tables live in
// one database, an AtomicMaterializer.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	logger  *applog.Logger
	now     func() time.Time
}

// DSN adds the pragmas every connection needs to a database path.
func DSN(dbPath string) string {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return dbPath + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", DSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; transactions queue instead of failing with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		logger:  applog.Default().WithComponent(applog.ComponentStorage),
		now:     time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) timestamp() string {
	return r.now().UTC().Format(timestampLayout)
}

// CreateCategory adds a category for a user and returns its id.
func (r *SQLiteRepository) CreateCategory(ctx context.Context, userID int64, name string) (int64, error) {
	c, err := r.queries.CreateCategory(ctx, userID, strings.TrimSpace(name), r.timestamp())
	if err != nil {
		return 0, fmt.Errorf("create category %q: %w", name, err)
	}

	r.logger.InfoContext(ctx, "Category saved to SQLite",
		"id", c.ID,
		applog.FieldUserID, c.UserID,
		"name", c.Name)
	return c.ID, nil
}

// DeleteCategory fails while transactions still reference the category.
func (r *SQLiteRepository) DeleteCategory(ctx context.Context, id int64) error {
	n, err := r.queries.DeleteCategory(ctx, id)
	if err != nil {
		return fmt.Errorf("delete category %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("delete category %d: not found", id)
	}
	return nil
}

func (r *SQLiteRepository) CreateRule(ctx context.Context, rule core.RecurringRule) (core.RecurringRule, error) {
	dow, dom := anchorParams(rule.Frequency)
	row, err := r.queries.CreateRecurringRule(ctx, CreateRecurringRuleParams{
		UserID:      rule.UserID,
		CategoryID:  rule.CategoryID,
		Type:        string(rule.Type),
		Amount:      rule.Amount.String(),
		Description: rule.Description,
		Frequency:   string(rule.Frequency.Kind()),
		DayOfWeek:   dow,
		DayOfMonth:  dom,
		StartDate:   rule.StartDate.String(),
		EndDate:     nullDate(rule.EndDate),
		CreatedAt:   r.timestamp(),
	})
	if err != nil {
		return core.RecurringRule{}, fmt.Errorf("insert rule: %w", err)
	}
	return ruleFromRow(row)
}

// UpdateRule writes the rule's definition. Owner, active flag and watermark
// are left as stored.
func (r *SQLiteRepository) UpdateRule(ctx context.Context, rule core.RecurringRule) (core.RecurringRule, error) {
	dow, dom := anchorParams(rule.Frequency)
	row, err := r.queries.UpdateRecurringRule(ctx, UpdateRecurringRuleParams{
		ID:          rule.ID,
		CategoryID:  rule.CategoryID,
		Type:        string(rule.Type),
		Amount:      rule.Amount.String(),
		Description: rule.Description,
		Frequency:   string(rule.Frequency.Kind()),
		DayOfWeek:   dow,
		DayOfMonth:  dom,
		StartDate:   rule.StartDate.String(),
		EndDate:     nullDate(rule.EndDate),
		UpdatedAt:   r.timestamp(),
	})
	if errors.Is(err, sql.ErrNoRows) {
		return core.RecurringRule{}, fmt.Errorf("rule %d: %w", rule.ID, core.ErrRuleNotFound)
	}
	if err != nil {
		return core.RecurringRule{}, fmt.Errorf("update rule %d: %w", rule.ID, err)
	}
	return ruleFromRow(row)
}

func (r *SQLiteRepository) SetRuleActive(ctx context.Context, ruleID int64, active bool) error {
	n, err := r.queries.SetRecurringRuleActive(ctx, ruleID, active, r.timestamp())
	if err != nil {
		return fmt.Errorf("set rule %d active=%t: %w", ruleID, active, err)
	}
	if n == 0 {
		return fmt.Errorf("rule %d: %w", ruleID, core.ErrRuleNotFound)
	}
	return nil
}

// DeleteRule removes the rule. Its transactions stay with rule_id cleared.
func (r *SQLiteRepository) DeleteRule(ctx context.Context, ruleID int64) error {
	n, err := r.queries.DeleteRecurringRule(ctx, ruleID)
	if err != nil {
		return fmt.Errorf("delete rule %d: %w", ruleID, err)
	}
	if n == 0 {
		return fmt.Errorf("rule %d: %w", ruleID, core.ErrRuleNotFound)
	}
	return nil
}

func (r *SQLiteRepository) GetRule(ctx context.Context, ruleID int64) (core.RecurringRule, error) {
	row, err := r.queries.GetRecurringRule(ctx, ruleID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.RecurringRule{}, fmt.Errorf("rule %d: %w", ruleID, core.ErrRuleNotFound)
	}
	if err != nil {
		return core.RecurringRule{}, fmt.Errorf("get rule %d: %w", ruleID, err)
	}
	return ruleFromRow(row)
}

func (r *SQLiteRepository) ListRules(ctx context.Context, filter core.RuleFilter) ([]core.RecurringRule, error) {
	var userID, active sql.NullInt64
	if filter.UserID != nil {
		userID = sql.NullInt64{Int64: *filter.UserID, Valid: true}
	}
	if filter.Active != nil {
		active = sql.NullInt64{Valid: true}
		if *filter.Active {
			active.Int64 = 1
		}
	}
	rows, err := r.queries.ListRecurringRules(ctx, userID, active)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	return rulesFromRows(rows)
}

// ListActive returns active rules of all users ordered by id.
func (r *SQLiteRepository) ListActive(ctx context.Context) ([]core.RecurringRule, error) {
	rows, err := r.queries.ListActiveRecurringRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active rules: %w", err)
	}
	return rulesFromRows(rows)
}

func (r *SQLiteRepository) AdvanceWatermark(ctx context.Context, ruleID int64, date core.Date) error {
	return r.advanceWatermark(ctx, r.queries, ruleID, date)
}

func (r *SQLiteRepository) advanceWatermark(ctx context.Context, q *Queries, ruleID int64, date core.Date) error {
	n, err := q.AdvanceWatermark(ctx, ruleID, date.String(), r.timestamp())
	if err != nil {
		return fmt.Errorf("advance watermark of rule %d: %w", ruleID, err)
	}
	if n > 0 {
		return nil
	}

	current, err := q.GetWatermark(ctx, ruleID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("rule %d: %w", ruleID, core.ErrRuleNotFound)
	}
	if err != nil {
		return fmt.Errorf("read watermark of rule %d: %w", ruleID, err)
	}
	return fmt.Errorf("rule %d at %s, asked for %s: %w", ruleID, current.String, date, core.ErrWatermarkRegression)
}

// Create inserts one transaction. A reused idempotency key is reported as
// core.ErrDuplicateOccurrence.
func (r *SQLiteRepository) Create(ctx context.Context, req core.TransactionRequest) (core.Transaction, error) {
	return r.createTransaction(ctx, r.queries, req)
}

func (r *SQLiteRepository) createTransaction(ctx context.Context, q *Queries, req core.TransactionRequest) (core.Transaction, error) {
	params := CreateTransactionParams{
		UserID:      req.UserID,
		CategoryID:  req.CategoryID,
		Type:        string(req.Type),
		Amount:      req.Amount.String(),
		Description: req.Description,
		Date:        req.Date.String(),
		CreatedAt:   r.timestamp(),
	}
	if req.RuleID != 0 {
		params.RuleID = sql.NullInt64{Int64: req.RuleID, Valid: true}
	}
	if req.IdempotencyKey != "" {
		params.IdempotencyKey = sql.NullString{String: req.IdempotencyKey, Valid: true}
	}

	row, err := q.CreateTransaction(ctx, params)
	if err != nil {
		if isUniqueViolation(err) {
			return core.Transaction{}, fmt.Errorf("key %s: %w", req.IdempotencyKey, core.ErrDuplicateOccurrence)
		}
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	return transactionFromRow(row)
}

// Materialize inserts the transaction for one occurrence of rule and moves
// the rule's watermark to date in a single database transaction.
func (r *SQLiteRepository) Materialize(ctx context.Context, rule core.RecurringRule, date core.Date) (core.Transaction, error) {
	dbtx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Transaction{}, &core.SinkError{RuleID: rule.ID, Date: date, Err: fmt.Errorf("begin transaction: %w", err)}
	}
	defer dbtx.Rollback()
	q := r.queries.WithTx(dbtx)

	tx, err := r.createTransaction(ctx, q, rule.TransactionRequest(date))
	if err != nil {
		return core.Transaction{}, &core.SinkError{RuleID: rule.ID, Date: date, Err: err}
	}
	if err := r.advanceWatermark(ctx, q, rule.ID, date); err != nil {
		return core.Transaction{}, &core.WatermarkError{RuleID: rule.ID, Date: date, Err: err}
	}
	if err := dbtx.Commit(); err != nil {
		return core.Transaction{}, &core.WatermarkError{RuleID: rule.ID, Date: date, Err: fmt.Errorf("commit: %w", err)}
	}

	r.logger.DebugContext(ctx, "Transaction materialized",
		applog.FieldRuleID, rule.ID,
		applog.FieldTransactionID, tx.ID,
		applog.FieldDate, date.String())
	return tx, nil
}

// TransactionFilter narrows ListTransactions. Zero fields match everything.
type TransactionFilter struct {
	UserID int64
	RuleID int64
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, filter TransactionFilter) ([]core.Transaction, error) {
	var userID, ruleID sql.NullInt64
	if filter.UserID != 0 {
		userID = sql.NullInt64{Int64: filter.UserID, Valid: true}
	}
	if filter.RuleID != 0 {
		ruleID = sql.NullInt64{Int64: filter.RuleID, Valid: true}
	}
	rows, err := r.queries.ListTransactions(ctx, userID, ruleID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		tx, err := transactionFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func anchorParams(f core.Frequency) (dow, dom sql.NullInt64) {
	w, m := core.FrequencyAnchors(f)
	if w != nil {
		dow = sql.NullInt64{Int64: int64(*w), Valid: true}
	}
	if m != nil {
		dom = sql.NullInt64{Int64: int64(*m), Valid: true}
	}
	return dow, dom
}

func nullDate(d *core.Date) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func parseNullDate(s sql.NullString) (*core.Date, error) {
	if !s.Valid {
		return nil, nil
	}
	d, err := core.ParseDate(s.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func nullIntPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func parseTimestamp(s string) time.Time {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func ruleFromRow(row RecurringRule) (core.RecurringRule, error) {
	freq, err := core.ParseFrequency(row.Frequency, nullIntPtr(row.DayOfWeek), nullIntPtr(row.DayOfMonth))
	if err != nil {
		return core.RecurringRule{}, fmt.Errorf("rule %d: %w", row.ID, err)
	}
	amount, err := core.ParseMoney(row.Amount)
	if err != nil {
		return core.RecurringRule{}, fmt.Errorf("rule %d amount %q: %w", row.ID, row.Amount, err)
	}
	start, err := core.ParseDate(row.StartDate)
	if err != nil {
		return core.RecurringRule{}, fmt.Errorf("rule %d start date: %w", row.ID, err)
	}
	end, err := parseNullDate(row.EndDate)
	if err != nil {
		return core.RecurringRule{}, fmt.Errorf("rule %d end date: %w", row.ID, err)
	}
	watermark, err := parseNullDate(row.LastGeneratedDate)
	if err != nil {
		return core.RecurringRule{}, fmt.Errorf("rule %d last generated date: %w", row.ID, err)
	}

	return core.RecurringRule{
		ID:          row.ID,
		UserID:      row.UserID,
		CategoryID:  row.CategoryID,
		Type:        core.TransactionType(row.Type),
		Amount:      amount,
		Description: row.Description,
		Frequency:   freq,
		StartDate:   start,
		EndDate:     end,
		Active:      row.IsActive != 0,
		Watermark:   watermark,
		CreatedAt:   parseTimestamp(row.CreatedAt),
		UpdatedAt:   parseTimestamp(row.UpdatedAt),
	}, nil
}

func rulesFromRows(rows []RecurringRule) ([]core.RecurringRule, error) {
	out := make([]core.RecurringRule, 0, len(rows))
	for _, row := range rows {
		rule, err := ruleFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, nil
}

func transactionFromRow(row Transaction) (core.Transaction, error) {
	amount, err := core.ParseMoney(row.Amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %d amount %q: %w", row.ID, row.Amount, err)
	}
	date, err := core.ParseDate(row.Date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %d date: %w", row.ID, err)
	}
	return core.Transaction{
		ID:          row.ID,
		RuleID:      row.RuleID.Int64,
		UserID:      row.UserID,
		CategoryID:  row.CategoryID,
		Type:        core.TransactionType(row.Type),
		Amount:      amount,
		Description: row.Description,
		Date:        date,
		CreatedAt:   parseTimestamp(row.CreatedAt),
	}, nil
}
