package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"accountbook/internal/core"
	applog "accountbook/internal/log"
)

// Pass outcome labels reported to GenerationMetrics.
const (
	PassSuccess   = "success"
	PassPartial   = "partial"
	PassFailed    = "failed"
	PassCancelled = "cancelled"
)

// Failure kinds reported to GenerationMetrics.
const (
	FailureSink  = "sink"
	FailureStore = "store"
)

// GenerationMetrics receives counters from generation passes.
type GenerationMetrics interface {
	PassCompleted(status string, duration time.Duration)
	TransactionGenerated()
	RuleFailed(kind string)
	PublishFailed()
}

type noopMetrics struct{}

func (noopMetrics) PassCompleted(string, time.Duration) {}
func (noopMetrics) TransactionGenerated()               {}
func (noopMetrics) RuleFailed(string)                   {}
func (noopMetrics) PublishFailed()                      {}

// RecurringProcessorConfig tunes a RecurringProcessor. Zero values are
// replaced with defaults.
type RecurringProcessorConfig struct {
	// Workers bounds how many rules are processed at the same time.
	Workers int
	// Location decides what "today" is for GenerateToday.
	Location *time.Location
	Metrics  GenerationMetrics
	Logger   *applog.Logger
	// Locks may be shared between processors working on the same rules.
	Locks *RuleLocks
}

// RecurringProcessor turns due occurrences of active rules into transactions
// and moves each rule's watermark forward as they are created.
type RecurringProcessor struct {
	store     RuleStore
	sink      TransactionSink
	publisher EventPublisher

	workers int
	loc     *time.Location
	metrics GenerationMetrics
	logger  *applog.Logger
	locks   *RuleLocks
	now     func() time.Time
}

// NewRecurringProcessor creates a processor. publisher may be nil.
func NewRecurringProcessor(store RuleStore, sink TransactionSink, publisher EventPublisher, cfg RecurringProcessorConfig) *RecurringProcessor {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Metrics == nil {
		cfg.Metrics = noopMetrics{}
	}
	if cfg.Logger == nil {
		cfg.Logger = applog.Default().WithComponent(applog.ComponentGenerator)
	}
	if cfg.Locks == nil {
		cfg.Locks = NewRuleLocks()
	}
	return &RecurringProcessor{
		store:     store,
		sink:      sink,
		publisher: publisher,
		workers:   cfg.Workers,
		loc:       cfg.Location,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
		locks:     cfg.Locks,
		now:       time.Now,
	}
}

// RuleError is the failure that stopped one rule in a pass.
type RuleError struct {
	RuleID int64
	// Date is the occurrence that could not be completed.
	Date core.Date
	Err  error
}

func (e RuleError) Error() string {
	return fmt.Sprintf("rule %d: %v", e.RuleID, e.Err)
}

func (e RuleError) Unwrap() error {
	return e.Err
}

// GenerationResult summarizes one pass.
type GenerationResult struct {
	RunID      string
	TargetDate core.Date
	// RulesProcessed counts the active rules the pass looked at.
	RulesProcessed int
	GeneratedCount int
	// Transactions lists what this pass created, grouped by rule in input
	// order, each group ascending by date.
	Transactions []core.Transaction
	RuleErrors   []RuleError
}

func (r *GenerationResult) HasErrors() bool {
	return len(r.RuleErrors) > 0
}

// Err joins all rule errors, or returns nil.
func (r *GenerationResult) Err() error {
	errs := make([]error, len(r.RuleErrors))
	for i, e := range r.RuleErrors {
		errs[i] = e
	}
	return errors.Join(errs...)
}

// GenerateToday runs a pass up to today in the configured location.
func (p *RecurringProcessor) GenerateToday(ctx context.Context) (*GenerationResult, error) {
	return p.Generate(ctx, core.DateOf(p.now(), p.loc))
}

// Generate loads all active rules and runs a pass up to target, inclusive.
func (p *RecurringProcessor) Generate(ctx context.Context, target core.Date) (*GenerationResult, error) {
	if p.store == nil || p.sink == nil {
		return nil, fmt.Errorf("processor not properly initialized")
	}

	started := p.now()
	rules, err := p.store.ListActive(ctx)
	if err != nil {
		p.metrics.PassCompleted(PassFailed, p.now().Sub(started))
		return nil, fmt.Errorf("%w: list active rules: %w", core.ErrStoreFailure, err)
	}
	return p.GenerateRules(ctx, target, rules)
}

// GenerateRules runs a pass over rules up to target. Inactive rules are
// skipped. A failing rule never stops the others; its error is reported in
// the result. The returned error is only set when ctx ends the pass early,
// and the partial result is still returned with it.
func (p *RecurringProcessor) GenerateRules(ctx context.Context, target core.Date, rules []core.RecurringRule) (*GenerationResult, error) {
	started := p.now()
	result := &GenerationResult{
		RunID:      uuid.NewString(),
		TargetDate: target,
	}
	logger := p.logger.With(applog.FieldRunID, result.RunID, applog.FieldTargetDate, target.String())

	logger.InfoContext(ctx, "Generation pass started",
		applog.FieldOperation, applog.OpGenerate,
		"rules_loaded", len(rules),
		"workers", p.workers)

	outcomes := make([]ruleOutcome, len(rules))

	var g errgroup.Group
	g.SetLimit(p.workers)
	for i, rule := range rules {
		if !rule.Active {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		result.RulesProcessed++
		g.Go(func() error {
			outcomes[i] = p.processRule(ctx, logger, result.RunID, target, rule)
			return nil
		})
	}
	_ = g.Wait()

	for _, out := range outcomes {
		result.Transactions = append(result.Transactions, out.transactions...)
		if out.err != nil {
			result.RuleErrors = append(result.RuleErrors, *out.err)
		}
	}
	result.GeneratedCount = len(result.Transactions)

	status := PassSuccess
	switch {
	case ctx.Err() != nil:
		status = PassCancelled
	case result.HasErrors():
		status = PassPartial
	}
	duration := p.now().Sub(started)
	p.metrics.PassCompleted(status, duration)

	logger.InfoContext(ctx, "Generation pass complete",
		applog.FieldOperation, applog.OpGenerate,
		"status", status,
		"rules_processed", result.RulesProcessed,
		"generated", result.GeneratedCount,
		"rule_errors", len(result.RuleErrors),
		applog.FieldDuration, duration.Milliseconds())

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

type ruleOutcome struct {
	transactions []core.Transaction
	err          *RuleError
}

// processRule walks one rule's pending occurrences in ascending order while
// holding the rule's lock.
func (p *RecurringProcessor) processRule(ctx context.Context, logger *applog.Logger, runID string, target core.Date, rule core.RecurringRule) ruleOutcome {
	lease := p.locks.Acquire(rule.ID)
	defer lease.Release()

	var out ruleOutcome
	rule.Watermark = lease.Watermark(rule.Watermark)

	from := rule.PendingFrom()
	to := rule.PendingTo(target)
	if from.After(to) {
		return out
	}

	for _, date := range ComputeOccurrences(rule, from, to) {
		if ctx.Err() != nil {
			return out
		}

		tx, created, err := p.materialize(ctx, rule, date)
		if created {
			out.transactions = append(out.transactions, tx)
			p.metrics.TransactionGenerated()
			p.publish(ctx, logger, runID, tx)
		}
		if err != nil {
			out.err = &RuleError{RuleID: rule.ID, Date: date, Err: err}
			p.reportFailure(ctx, logger, rule, date, err)
			return out
		}

		lease.Commit(date)
		d := date
		rule.Watermark = &d

		if created {
			logger.InfoContext(ctx, "Created transaction from recurring rule",
				applog.FieldRuleID, rule.ID,
				applog.FieldTransactionID, tx.ID,
				applog.FieldDate, date.String(),
				applog.FieldAmount, tx.Amount.String(),
				applog.FieldFrequency, string(rule.Frequency.Kind()))
		} else {
			logger.WarnContext(ctx, "Occurrence already materialized, advanced watermark",
				applog.FieldRuleID, rule.ID,
				applog.FieldDate, date.String())
		}
	}
	return out
}

// materialize creates the transaction for one occurrence and advances the
// watermark to its date. created is true whenever a new transaction exists
// afterwards, even if the watermark write then failed.
func (p *RecurringProcessor) materialize(ctx context.Context, rule core.RecurringRule, date core.Date) (tx core.Transaction, created bool, err error) {
	if am, ok := p.sink.(AtomicMaterializer); ok {
		tx, err = am.Materialize(ctx, rule, date)
		switch {
		case err == nil:
			return tx, true, nil
		case errors.Is(err, core.ErrDuplicateOccurrence):
			return tx, false, p.skipDuplicate(ctx, rule, date)
		default:
			return tx, false, err
		}
	}

	tx, err = p.sink.Create(ctx, rule.TransactionRequest(date))
	if err != nil {
		if errors.Is(err, core.ErrDuplicateOccurrence) {
			return tx, false, p.skipDuplicate(ctx, rule, date)
		}
		return tx, false, &core.SinkError{RuleID: rule.ID, Date: date, Err: err}
	}

	if err := p.advance(ctx, rule.ID, date); err != nil {
		return tx, true, &core.WatermarkError{RuleID: rule.ID, Date: date, TransactionID: tx.ID, Err: err}
	}
	return tx, true, nil
}

// skipDuplicate moves the watermark over an occurrence whose transaction
// already exists.
func (p *RecurringProcessor) skipDuplicate(ctx context.Context, rule core.RecurringRule, date core.Date) error {
	if err := p.advance(ctx, rule.ID, date); err != nil {
		return &core.WatermarkError{RuleID: rule.ID, Date: date, Err: err}
	}
	return nil
}

// advance persists date as the watermark. Another process that already
// moved it to date or beyond has covered the same occurrence, so a
// regression is not a failure here.
func (p *RecurringProcessor) advance(ctx context.Context, ruleID int64, date core.Date) error {
	err := p.store.AdvanceWatermark(ctx, ruleID, date)
	if err == nil || errors.Is(err, core.ErrWatermarkRegression) {
		return nil
	}
	return err
}

func (p *RecurringProcessor) reportFailure(ctx context.Context, logger *applog.Logger, rule core.RecurringRule, date core.Date, err error) {
	fields := applog.NewFields().
		WithRule(rule.ID, rule.UserID).
		WithDate(date.String()).
		WithError(err)
	if rule.Watermark != nil {
		fields[applog.FieldWatermark] = rule.Watermark.String()
	}

	var wmErr *core.WatermarkError
	switch {
	case errors.As(err, &wmErr) && wmErr.Committed():
		p.metrics.RuleFailed(FailureStore)
		fields.WithErrorType(applog.ErrorTypeDatabase)
		fields[applog.FieldTransactionID] = wmErr.TransactionID
		fields[applog.FieldResidualRisk] = "duplicate_on_retry"
		logger.ErrorContext(ctx, "Transaction created but watermark not advanced", fields.ToSlice()...)
	case errors.Is(err, core.ErrStoreFailure):
		p.metrics.RuleFailed(FailureStore)
		fields.WithErrorType(applog.ErrorTypeDatabase)
		logger.ErrorContext(ctx, "Failed to advance watermark", fields.ToSlice()...)
	default:
		p.metrics.RuleFailed(FailureSink)
		logger.ErrorContext(ctx, "Failed to create transaction from recurring rule", fields.ToSlice()...)
	}
}

func (p *RecurringProcessor) publish(ctx context.Context, logger *applog.Logger, runID string, tx core.Transaction) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.PublishTransactionGenerated(ctx, runID, tx); err != nil {
		p.metrics.PublishFailed()
		logger.WarnContext(ctx, "Failed to publish transaction event",
			applog.FieldTransactionID, tx.ID,
			applog.FieldRuleID, tx.RuleID,
			applog.FieldError, err.Error())
	}
}
