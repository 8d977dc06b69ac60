package core

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrValidation marks a malformed rule. It only ever surfaces when a rule
	// is created or updated, never during generation.
	ErrValidation = errors.New("validation failed")

	ErrRuleNotFound = errors.New("recurring rule not found")

	// ErrDuplicateOccurrence is returned by sinks that already hold a
	// transaction with the same idempotency key.
	ErrDuplicateOccurrence = errors.New("occurrence already materialized")

	// ErrWatermarkRegression is returned when a watermark write would not move
	// the watermark strictly forward.
	ErrWatermarkRegression = errors.New("watermark must move forward")

	// ErrSinkFailure classifies failures of transaction creation.
	ErrSinkFailure = errors.New("transaction sink failure")

	// ErrStoreFailure classifies failures reading rules or writing watermarks.
	ErrStoreFailure = errors.New("rule store failure")
)

// ValidationError describes which field of a rule is invalid.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// SinkError is a failed transaction creation for one occurrence of a rule.
// The rule's watermark was not moved.
type SinkError struct {
	RuleID int64
	Date   Date
	Err    error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("create transaction for rule %d on %s: %v", e.RuleID, e.Date, e.Err)
}

func (e *SinkError) Unwrap() []error {
	return []error{ErrSinkFailure, e.Err}
}

// WatermarkError is a failed watermark write. When TransactionID is non-zero
// the transaction for Date exists but the watermark still points before it,
// so a later pass will try to create it again.
type WatermarkError struct {
	RuleID        int64
	Date          Date
	TransactionID int64
	Err           error
}

func (e *WatermarkError) Error() string {
	if e.TransactionID != 0 {
		return fmt.Sprintf("advance watermark of rule %d to %s after creating transaction %d: %v",
			e.RuleID, e.Date, e.TransactionID, e.Err)
	}
	return fmt.Sprintf("advance watermark of rule %d to %s: %v", e.RuleID, e.Date, e.Err)
}

func (e *WatermarkError) Unwrap() []error {
	return []error{ErrStoreFailure, e.Err}
}

// Committed reports whether the transaction was written before the failure.
func (e *WatermarkError) Committed() bool {
	return e.TransactionID != 0
}

// IsValidation returns true if err is a rule validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
