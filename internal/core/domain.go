package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

const (
	Daily   FrequencyKind = "daily"
	Weekly  FrequencyKind = "weekly"
	Monthly FrequencyKind = "monthly"
	Yearly  FrequencyKind = "yearly"
)

// DefaultDescription is used for generated transactions of rules without one.
const DefaultDescription = "[Recurring]"

const maxDescriptionLength = 200

type (
	TransactionType string

	FrequencyKind string

	// Frequency is one of DailyFrequency, WeeklyFrequency, MonthlyFrequency
	// or YearlyFrequency. Each variant carries only the anchor that makes
	// sense for it.
	Frequency interface {
		Kind() FrequencyKind
		Validate() error
		isFrequency()
	}

	DailyFrequency struct{}

	// WeeklyFrequency occurs on DayOfWeek, or on the weekday of the rule's
	// start date when DayOfWeek is nil.
	WeeklyFrequency struct {
		DayOfWeek *Weekday
	}

	// MonthlyFrequency occurs on DayOfMonth, clamped to the last day of
	// shorter months, or on the last day of every month when DayOfMonth is nil.
	MonthlyFrequency struct {
		DayOfMonth *int
	}

	// YearlyFrequency occurs on the month and day of the rule's start date.
	// A Feb 29 anchor falls on Feb 28 in common years.
	YearlyFrequency struct{}

	RecurringRule struct {
		ID          int64
		UserID      int64
		CategoryID  int64
		Type        TransactionType
		Amount      Money
		Description string
		Frequency   Frequency
		StartDate   Date
		EndDate     *Date // nil means unbounded
		Active      bool
		// Watermark is the last date whose occurrence was materialized.
		// nil means nothing has been generated yet.
		Watermark *Date
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	// TransactionRequest is what a TransactionSink needs to materialize one
	// occurrence of a rule.
	TransactionRequest struct {
		RuleID         int64
		UserID         int64
		CategoryID     int64
		Type           TransactionType
		Amount         Money
		Description    string
		Date           Date
		IdempotencyKey string
	}

	// Transaction is a ledger entry created from a rule occurrence.
	Transaction struct {
		ID          int64
		RuleID      int64
		UserID      int64
		CategoryID  int64
		Type        TransactionType
		Amount      Money
		Description string
		Date        Date
		CreatedAt   time.Time
	}

	// RuleFilter narrows rule listings. Nil fields match everything.
	RuleFilter struct {
		UserID *int64
		Active *bool
	}
)

func (DailyFrequency) Kind() FrequencyKind   { return Daily }
func (WeeklyFrequency) Kind() FrequencyKind  { return Weekly }
func (MonthlyFrequency) Kind() FrequencyKind { return Monthly }
func (YearlyFrequency) Kind() FrequencyKind  { return Yearly }

func (DailyFrequency) isFrequency()   {}
func (WeeklyFrequency) isFrequency()  {}
func (MonthlyFrequency) isFrequency() {}
func (YearlyFrequency) isFrequency()  {}

func (DailyFrequency) Validate() error  { return nil }
func (YearlyFrequency) Validate() error { return nil }

func (f WeeklyFrequency) Validate() error {
	if f.DayOfWeek != nil && !f.DayOfWeek.Valid() {
		return invalid("day_of_week", "must be between 0 (Monday) and 6 (Sunday), got %d", int(*f.DayOfWeek))
	}
	return nil
}

func (f MonthlyFrequency) Validate() error {
	if f.DayOfMonth != nil && (*f.DayOfMonth < 1 || *f.DayOfMonth > 31) {
		return invalid("day_of_month", "must be between 1 and 31, got %d", *f.DayOfMonth)
	}
	return nil
}

func EveryDay() Frequency  { return DailyFrequency{} }
func EveryYear() Frequency { return YearlyFrequency{} }

// EveryWeek anchors to the weekday of the rule's start date.
func EveryWeek() Frequency { return WeeklyFrequency{} }

func EveryWeekOn(day Weekday) Frequency { return WeeklyFrequency{DayOfWeek: &day} }

// EveryMonth occurs on the last day of each month.
func EveryMonth() Frequency { return MonthlyFrequency{} }

func EveryMonthOn(day int) Frequency { return MonthlyFrequency{DayOfMonth: &day} }

// ParseFrequency builds a Frequency from its flat representation (a kind plus
// optional anchors, as stored in a table row or sent by a client). Anchors that
// do not belong to the kind are rejected rather than ignored.
func ParseFrequency(kind string, dayOfWeek, dayOfMonth *int) (Frequency, error) {
	var f Frequency
	switch FrequencyKind(strings.ToLower(strings.TrimSpace(kind))) {
	case Daily:
		f = DailyFrequency{}
	case Weekly:
		wf := WeeklyFrequency{}
		if dayOfWeek != nil {
			w := Weekday(*dayOfWeek)
			wf.DayOfWeek = &w
		}
		f = wf
	case Monthly:
		mf := MonthlyFrequency{}
		if dayOfMonth != nil {
			d := *dayOfMonth
			mf.DayOfMonth = &d
		}
		f = mf
	case Yearly:
		f = YearlyFrequency{}
	default:
		return nil, invalid("frequency", "unknown frequency %q", kind)
	}

	if dayOfWeek != nil && f.Kind() != Weekly {
		return nil, invalid("day_of_week", "only allowed for weekly rules")
	}
	if dayOfMonth != nil && f.Kind() != Monthly {
		return nil, invalid("day_of_month", "only allowed for monthly rules")
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// FrequencyAnchors flattens f back into its optional anchors.
func FrequencyAnchors(f Frequency) (dayOfWeek, dayOfMonth *int) {
	switch v := f.(type) {
	case WeeklyFrequency:
		if v.DayOfWeek != nil {
			d := int(*v.DayOfWeek)
			dayOfWeek = &d
		}
	case MonthlyFrequency:
		if v.DayOfMonth != nil {
			d := *v.DayOfMonth
			dayOfMonth = &d
		}
	}
	return dayOfWeek, dayOfMonth
}

func (t TransactionType) Validate() error {
	switch t {
	case Income, Expense:
		return nil
	default:
		return invalid("type", "must be %q or %q, got %q", Income, Expense, t)
	}
}

func (r RecurringRule) Validate() error {
	if r.CategoryID <= 0 {
		return invalid("category_id", "is required")
	}
	if err := r.Type.Validate(); err != nil {
		return err
	}
	if err := r.Amount.Validate(); err != nil {
		return invalid("amount", "must be greater than zero")
	}
	if len(r.Description) > maxDescriptionLength {
		return invalid("description", "too long (max %d characters)", maxDescriptionLength)
	}
	if r.Frequency == nil {
		return invalid("frequency", "is required")
	}
	if err := r.Frequency.Validate(); err != nil {
		return err
	}
	if err := r.StartDate.Validate(); err != nil {
		return invalid("start_date", "%v", err)
	}
	if r.EndDate != nil {
		if err := r.EndDate.Validate(); err != nil {
			return invalid("end_date", "%v", err)
		}
		if r.EndDate.Before(r.StartDate) {
			return invalid("end_date", "must not be before start date %s", r.StartDate)
		}
	}
	if r.Watermark != nil && r.Watermark.Before(r.StartDate) {
		return invalid("start_date", "must not be after last generated date %s", *r.Watermark)
	}
	return nil
}

// PendingFrom is the first date not yet covered by the watermark.
func (r RecurringRule) PendingFrom() Date {
	if r.Watermark != nil {
		return r.Watermark.AddDays(1)
	}
	return r.StartDate
}

// PendingTo is the last date a pass targeting target may generate.
func (r RecurringRule) PendingTo(target Date) Date {
	if r.EndDate != nil {
		return MinDate(target, *r.EndDate)
	}
	return target
}

// IdempotencyKey identifies the transaction of one occurrence of the rule.
func (r RecurringRule) IdempotencyKey(date Date) string {
	return fmt.Sprintf("recurring:%d:%s", r.ID, date)
}

// TransactionRequest copies the rule's payload onto date.
func (r RecurringRule) TransactionRequest(date Date) TransactionRequest {
	desc := strings.TrimSpace(r.Description)
	if desc == "" {
		desc = DefaultDescription
	}
	return TransactionRequest{
		RuleID:         r.ID,
		UserID:         r.UserID,
		CategoryID:     r.CategoryID,
		Type:           r.Type,
		Amount:         r.Amount,
		Description:    desc,
		Date:           date,
		IdempotencyKey: r.IdempotencyKey(date),
	}
}
