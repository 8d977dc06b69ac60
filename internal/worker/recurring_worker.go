// Package worker drives generation passes on a schedule.
package worker

import (
	"context"
	"fmt"
	"time"

	"accountbook/internal/core"
	applog "accountbook/internal/log"
	"accountbook/internal/services"
)

// Generator runs generation passes. *services.RecurringProcessor satisfies it.
type Generator interface {
	GenerateToday(ctx context.Context) (*services.GenerationResult, error)
	Generate(ctx context.Context, target core.Date) (*services.GenerationResult, error)
}

// RecurringWorker runs one pass at startup and then one per interval.
// The startup pass catches up on everything missed while the worker was down.
type RecurringWorker struct {
	gen      Generator
	interval time.Duration
	logger   *applog.Logger
}

func NewRecurringWorker(gen Generator, interval time.Duration, logger *applog.Logger) *RecurringWorker {
	if logger == nil {
		logger = applog.Default()
	}
	return &RecurringWorker{
		gen:      gen,
		interval: interval,
		logger:   logger.WithComponent(applog.ComponentWorker),
	}
}

// RunOnce runs a single pass for target, or for today when target is nil.
// Per-rule failures are logged and returned joined.
func (w *RecurringWorker) RunOnce(ctx context.Context, target *core.Date) error {
	var (
		result *services.GenerationResult
		err    error
	)
	if target != nil {
		result, err = w.gen.Generate(ctx, *target)
	} else {
		result, err = w.gen.GenerateToday(ctx)
	}
	if err != nil {
		w.logger.ErrorContext(ctx, "Generation pass failed", applog.FieldError, err.Error())
		return fmt.Errorf("generation pass: %w", err)
	}

	for _, ruleErr := range result.RuleErrors {
		w.logger.WarnContext(ctx, "Rule not fully generated",
			applog.FieldRunID, result.RunID,
			applog.FieldRuleID, ruleErr.RuleID,
			applog.FieldDate, ruleErr.Date.String(),
			applog.FieldError, ruleErr.Err.Error())
	}
	return result.Err()
}

// Run blocks until ctx is done. Pass errors are logged and never stop the loop.
func (w *RecurringWorker) Run(ctx context.Context) error {
	if w.interval <= 0 {
		return fmt.Errorf("invalid interval %s", w.interval)
	}

	_ = w.RunOnce(ctx, nil)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Recurring worker stopped", applog.FieldOperation, applog.OpShutdown)
			return nil
		case <-ticker.C:
			_ = w.RunOnce(ctx, nil)
			w.logger.Debug("Next generation pass scheduled",
				"next_check", time.Now().Add(w.interval).Format("15:04:05"))
		}
	}
}
