package services

import (
	"context"

	"accountbook/internal/core"
)

// Ports for outbound adapters.
type (
	// RuleStore is the part of rule persistence a generation pass needs.
	RuleStore interface {
		// ListActive returns every active rule. Inactive rules are never
		// considered by a pass.
		ListActive(ctx context.Context) ([]core.RecurringRule, error)

		// AdvanceWatermark persists date as the rule's watermark. It must
		// fail with core.ErrWatermarkRegression rather than move the
		// watermark backwards or leave it in place.
		AdvanceWatermark(ctx context.Context, ruleID int64, date core.Date) error
	}

	// TransactionSink materializes one occurrence into a ledger entry.
	// Sinks that honour req.IdempotencyKey return core.ErrDuplicateOccurrence
	// for a key they already hold.
	TransactionSink interface {
		Create(ctx context.Context, req core.TransactionRequest) (core.Transaction, error)
	}

	// AtomicMaterializer is implemented by sinks that own the rule table too.
	// Materialize creates the transaction and advances the rule's watermark
	// in one unit: either both happen or neither does. Failures are returned
	// as *core.SinkError or *core.WatermarkError.
	AtomicMaterializer interface {
		Materialize(ctx context.Context, rule core.RecurringRule, date core.Date) (core.Transaction, error)
	}

	// EventPublisher announces materialized transactions to other services.
	EventPublisher interface {
		PublishTransactionGenerated(ctx context.Context, runID string, tx core.Transaction) error
	}

	// RuleRepository is full rule persistence, used by RuleService.
	RuleRepository interface {
		CreateRule(ctx context.Context, rule core.RecurringRule) (core.RecurringRule, error)
		// UpdateRule overwrites everything but the watermark.
		UpdateRule(ctx context.Context, rule core.RecurringRule) (core.RecurringRule, error)
		SetRuleActive(ctx context.Context, ruleID int64, active bool) error
		DeleteRule(ctx context.Context, ruleID int64) error
		GetRule(ctx context.Context, ruleID int64) (core.RecurringRule, error)
		ListRules(ctx context.Context, filter core.RuleFilter) ([]core.RecurringRule, error)
	}
)
