package services

import (
	"context"
	"fmt"
	"strings"

	"accountbook/internal/core"
	applog "accountbook/internal/log"
)

// NewRule is the input for RuleService.Create.
type NewRule struct {
	UserID      int64
	CategoryID  int64
	Type        core.TransactionType
	Amount      core.Money
	Description string
	Frequency   core.Frequency
	StartDate   core.Date
	EndDate     *core.Date
}

// RulePatch changes some fields of a rule. Nil fields are left alone.
type RulePatch struct {
	CategoryID  *int64
	Type        *core.TransactionType
	Amount      *core.Money
	Description *string
	Frequency   core.Frequency
	StartDate   *core.Date
	EndDate     *core.Date
	// ClearEndDate makes the rule unbounded. It wins over EndDate.
	ClearEndDate bool
}

// RuleService is where rules are validated. Generation never sees a rule
// that did not pass through here.
type RuleService struct {
	repo   RuleRepository
	locks  *RuleLocks
	logger *applog.Logger
}

// NewRuleService creates a rule service. locks should be the set used by the
// RecurringProcessor so that edits and generation of one rule never overlap.
func NewRuleService(repo RuleRepository, locks *RuleLocks) *RuleService {
	if locks == nil {
		locks = NewRuleLocks()
	}
	return &RuleService{
		repo:   repo,
		locks:  locks,
		logger: applog.Default().WithComponent(applog.ComponentRules),
	}
}

// Create validates and stores a new active rule without a watermark.
func (s *RuleService) Create(ctx context.Context, in NewRule) (core.RecurringRule, error) {
	rule := core.RecurringRule{
		UserID:      in.UserID,
		CategoryID:  in.CategoryID,
		Type:        in.Type,
		Amount:      in.Amount,
		Description: strings.TrimSpace(in.Description),
		Frequency:   in.Frequency,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		Active:      true,
	}
	if err := rule.Validate(); err != nil {
		return core.RecurringRule{}, err
	}

	created, err := s.repo.CreateRule(ctx, rule)
	if err != nil {
		return core.RecurringRule{}, fmt.Errorf("create rule: %w", err)
	}

	s.logger.InfoContext(ctx, "Recurring rule created",
		applog.FieldOperation, applog.OpCreate,
		applog.FieldRuleID, created.ID,
		applog.FieldUserID, created.UserID,
		applog.FieldFrequency, string(created.Frequency.Kind()))
	return created, nil
}

// Update applies patch to a rule. The watermark is never touched, and a new
// start date after it is rejected.
func (s *RuleService) Update(ctx context.Context, ruleID int64, patch RulePatch) (core.RecurringRule, error) {
	lease := s.locks.Acquire(ruleID)
	defer lease.Release()

	rule, err := s.repo.GetRule(ctx, ruleID)
	if err != nil {
		return core.RecurringRule{}, fmt.Errorf("get rule %d: %w", ruleID, err)
	}
	rule.Watermark = lease.Watermark(rule.Watermark)

	if patch.CategoryID != nil {
		rule.CategoryID = *patch.CategoryID
	}
	if patch.Type != nil {
		rule.Type = *patch.Type
	}
	if patch.Amount != nil {
		rule.Amount = *patch.Amount
	}
	if patch.Description != nil {
		rule.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Frequency != nil {
		rule.Frequency = patch.Frequency
	}
	if patch.StartDate != nil {
		rule.StartDate = *patch.StartDate
	}
	if patch.ClearEndDate {
		rule.EndDate = nil
	} else if patch.EndDate != nil {
		end := *patch.EndDate
		rule.EndDate = &end
	}

	if err := rule.Validate(); err != nil {
		return core.RecurringRule{}, err
	}

	updated, err := s.repo.UpdateRule(ctx, rule)
	if err != nil {
		return core.RecurringRule{}, fmt.Errorf("update rule %d: %w", ruleID, err)
	}

	s.logger.InfoContext(ctx, "Recurring rule updated",
		applog.FieldOperation, applog.OpUpdate,
		applog.FieldRuleID, ruleID)
	return updated, nil
}

// Activate resumes generation. Occurrences missed while the rule was inactive
// are caught up by the next pass.
func (s *RuleService) Activate(ctx context.Context, ruleID int64) error {
	return s.setActive(ctx, ruleID, true)
}

// Deactivate pauses generation. The watermark is kept.
func (s *RuleService) Deactivate(ctx context.Context, ruleID int64) error {
	return s.setActive(ctx, ruleID, false)
}

func (s *RuleService) setActive(ctx context.Context, ruleID int64, active bool) error {
	op := applog.OpDeactivate
	if active {
		op = applog.OpActivate
	}
	if err := s.repo.SetRuleActive(ctx, ruleID, active); err != nil {
		return fmt.Errorf("%s rule %d: %w", op, ruleID, err)
	}
	s.logger.InfoContext(ctx, "Recurring rule state changed",
		applog.FieldOperation, op,
		applog.FieldRuleID, ruleID)
	return nil
}

// Delete removes a rule. Transactions it already generated stay.
func (s *RuleService) Delete(ctx context.Context, ruleID int64) error {
	lease := s.locks.Acquire(ruleID)
	err := s.repo.DeleteRule(ctx, ruleID)
	lease.Release()
	if err != nil {
		return fmt.Errorf("delete rule %d: %w", ruleID, err)
	}
	s.locks.Forget(ruleID)

	s.logger.InfoContext(ctx, "Recurring rule deleted",
		applog.FieldOperation, applog.OpDelete,
		applog.FieldRuleID, ruleID)
	return nil
}

func (s *RuleService) Get(ctx context.Context, ruleID int64) (core.RecurringRule, error) {
	rule, err := s.repo.GetRule(ctx, ruleID)
	if err != nil {
		return core.RecurringRule{}, fmt.Errorf("get rule %d: %w", ruleID, err)
	}
	return rule, nil
}

// List returns a user's rules, optionally only active or inactive ones.
func (s *RuleService) List(ctx context.Context, userID int64, active *bool) ([]core.RecurringRule, error) {
	rules, err := s.repo.ListRules(ctx, core.RuleFilter{UserID: &userID, Active: active})
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	return rules, nil
}
