// Package memory keeps rules and generated transactions in process memory.
// It backs DATA_BACKEND=memory and the service tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"accountbook/internal/core"
)

type Store struct {
	mu    sync.Mutex
	now   func() time.Time
	rules map[int64]core.RecurringRule
	// categories is only enforced once at least one category was added.
	categories map[int64]struct{}
	txs        []core.Transaction
	keys       map[string]int64
	nextRule   int64
	nextTx     int64
}

func New() *Store {
	return &Store{
		now:        time.Now,
		rules:      make(map[int64]core.RecurringRule),
		categories: make(map[int64]struct{}),
		keys:       make(map[string]int64),
	}
}

// AddCategory registers a category. After the first call, transactions for
// unknown categories are refused.
func (s *Store) AddCategory(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[id] = struct{}{}
}

func (s *Store) RemoveCategory(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.categories, id)
}

func (s *Store) CreateRule(_ context.Context, rule core.RecurringRule) (core.RecurringRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextRule++
	now := s.now().UTC()
	rule.ID = s.nextRule
	rule.CreatedAt = now
	rule.UpdatedAt = now
	s.rules[rule.ID] = cloneRule(rule)
	return cloneRule(rule), nil
}

func (s *Store) UpdateRule(_ context.Context, rule core.RecurringRule) (core.RecurringRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.rules[rule.ID]
	if !ok {
		return core.RecurringRule{}, fmt.Errorf("rule %d: %w", rule.ID, core.ErrRuleNotFound)
	}
	rule.Watermark = cur.Watermark
	rule.Active = cur.Active
	rule.UserID = cur.UserID
	rule.CreatedAt = cur.CreatedAt
	rule.UpdatedAt = s.now().UTC()
	s.rules[rule.ID] = cloneRule(rule)
	return cloneRule(rule), nil
}

func (s *Store) SetRuleActive(_ context.Context, ruleID int64, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rule, ok := s.rules[ruleID]
	if !ok {
		return fmt.Errorf("rule %d: %w", ruleID, core.ErrRuleNotFound)
	}
	rule.Active = active
	rule.UpdatedAt = s.now().UTC()
	s.rules[ruleID] = rule
	return nil
}

func (s *Store) DeleteRule(_ context.Context, ruleID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[ruleID]; !ok {
		return fmt.Errorf("rule %d: %w", ruleID, core.ErrRuleNotFound)
	}
	delete(s.rules, ruleID)
	return nil
}

func (s *Store) GetRule(_ context.Context, ruleID int64) (core.RecurringRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rule, ok := s.rules[ruleID]
	if !ok {
		return core.RecurringRule{}, fmt.Errorf("rule %d: %w", ruleID, core.ErrRuleNotFound)
	}
	return cloneRule(rule), nil
}

func (s *Store) ListRules(_ context.Context, filter core.RuleFilter) ([]core.RecurringRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.RecurringRule
	for _, rule := range s.rules {
		if filter.UserID != nil && rule.UserID != *filter.UserID {
			continue
		}
		if filter.Active != nil && rule.Active != *filter.Active {
			continue
		}
		out = append(out, cloneRule(rule))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListActive returns active rules of all users ordered by id.
func (s *Store) ListActive(ctx context.Context) ([]core.RecurringRule, error) {
	active := true
	return s.ListRules(ctx, core.RuleFilter{Active: &active})
}

// AdvanceWatermark only ever moves a watermark forward.
func (s *Store) AdvanceWatermark(_ context.Context, ruleID int64, date core.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rule, ok := s.rules[ruleID]
	if !ok {
		return fmt.Errorf("rule %d: %w", ruleID, core.ErrRuleNotFound)
	}
	if rule.Watermark != nil && !rule.Watermark.Before(date) {
		return fmt.Errorf("rule %d at %s, asked for %s: %w", ruleID, *rule.Watermark, date, core.ErrWatermarkRegression)
	}
	d := date
	rule.Watermark = &d
	s.rules[ruleID] = rule
	return nil
}

// Create stores a transaction unless its idempotency key is already taken.
func (s *Store) Create(_ context.Context, req core.TransactionRequest) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.categories) > 0 {
		if _, ok := s.categories[req.CategoryID]; !ok {
			return core.Transaction{}, fmt.Errorf("category %d does not exist", req.CategoryID)
		}
	}
	if req.IdempotencyKey != "" {
		if id, ok := s.keys[req.IdempotencyKey]; ok {
			return core.Transaction{}, fmt.Errorf("key %s held by transaction %d: %w", req.IdempotencyKey, id, core.ErrDuplicateOccurrence)
		}
	}

	s.nextTx++
	tx := core.Transaction{
		ID:          s.nextTx,
		RuleID:      req.RuleID,
		UserID:      req.UserID,
		CategoryID:  req.CategoryID,
		Type:        req.Type,
		Amount:      req.Amount,
		Description: req.Description,
		Date:        req.Date,
		CreatedAt:   s.now().UTC(),
	}
	s.txs = append(s.txs, tx)
	if req.IdempotencyKey != "" {
		s.keys[req.IdempotencyKey] = tx.ID
	}
	return tx, nil
}

// Transactions returns every stored transaction in creation order.
func (s *Store) Transactions() []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Transaction(nil), s.txs...)
}

// RuleTransactions returns the transactions generated by one rule.
func (s *Store) RuleTransactions(ruleID int64) []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, tx := range s.txs {
		if tx.RuleID == ruleID {
			out = append(out, tx)
		}
	}
	return out
}

func (s *Store) Close() error { return nil }

func cloneRule(r core.RecurringRule) core.RecurringRule {
	if r.EndDate != nil {
		d := *r.EndDate
		r.EndDate = &d
	}
	if r.Watermark != nil {
		d := *r.Watermark
		r.Watermark = &d
	}
	return r
}
