package services

import (
	"sync"

	"accountbook/internal/core"
)

// RuleLocks gives each rule id a single writer inside this process and
// remembers the last watermark this process committed for it.
//
// A pass works from the rules it listed at its start. When two passes overlap,
// the second one may hold a stale watermark by the time it gets the lock, so
// the processor always reads the committed watermark back from here.
type RuleLocks struct {
	mu      sync.Mutex
	entries map[int64]*ruleEntry
}

type ruleEntry struct {
	mu        sync.Mutex
	watermark *core.Date
}

func NewRuleLocks() *RuleLocks {
	return &RuleLocks{entries: make(map[int64]*ruleEntry)}
}

func (l *RuleLocks) entry(ruleID int64) *ruleEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[ruleID]
	if !ok {
		e = &ruleEntry{}
		l.entries[ruleID] = e
	}
	return e
}

// Acquire blocks until the caller is the only writer for ruleID.
func (l *RuleLocks) Acquire(ruleID int64) *RuleLease {
	e := l.entry(ruleID)
	e.mu.Lock()
	return &RuleLease{entry: e}
}

// RuleLease is held while a rule is processed. Release must be called once.
type RuleLease struct {
	entry *ruleEntry
}

// Watermark merges the caller's view with what this process has committed
// and returns the later of the two.
func (r *RuleLease) Watermark(loaded *core.Date) *core.Date {
	committed := r.entry.watermark
	switch {
	case committed == nil:
		return loaded
	case loaded == nil || committed.After(*loaded):
		d := *committed
		return &d
	default:
		return loaded
	}
}

// Commit records a durably advanced watermark.
func (r *RuleLease) Commit(date core.Date) {
	if r.entry.watermark == nil || date.After(*r.entry.watermark) {
		d := date
		r.entry.watermark = &d
	}
}

func (r *RuleLease) Release() {
	r.entry.mu.Unlock()
}

// Forget drops what is known about ruleID, e.g. after the rule is deleted.
func (l *RuleLocks) Forget(ruleID int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, ruleID)
}
