// Package services provides business logic and orchestration services.
//
// This file implements the occurrence calculator. Each frequency kind has its
// own strategy that enumerates due dates inside an already clipped window.
package services

import (
	"fmt"
	"time"

	"accountbook/internal/core"
)

// OccurrenceStrategy enumerates the due dates of a rule.
type OccurrenceStrategy interface {
	// Occurrences returns every due date d with from <= d <= to, ascending.
	// from and to are already clipped to the rule's own start and end dates.
	Occurrences(rule core.RecurringRule, from, to core.Date) []core.Date
}

// DailyStrategy is due every day.
type DailyStrategy struct{}

func (DailyStrategy) Occurrences(_ core.RecurringRule, from, to core.Date) []core.Date {
	dates := make([]core.Date, 0, from.DaysUntil(to)+1)
	for d := from; !d.After(to); d = d.AddDays(1) {
		dates = append(dates, d)
	}
	return dates
}

// WeeklyStrategy is due on the anchored weekday, or on the weekday of the
// rule's start date.
type WeeklyStrategy struct{}

func (WeeklyStrategy) Occurrences(rule core.RecurringRule, from, to core.Date) []core.Date {
	target := rule.StartDate.DayOfWeek()
	if wf, ok := rule.Frequency.(core.WeeklyFrequency); ok && wf.DayOfWeek != nil {
		target = *wf.DayOfWeek
	}

	offset := (int(target) - int(from.DayOfWeek()) + 7) % 7
	var dates []core.Date
	for d := from.AddDays(offset); !d.After(to); d = d.AddDays(7) {
		dates = append(dates, d)
	}
	return dates
}

// MonthlyStrategy is due once in every calendar month: on the anchored day,
// clamped to the month's last day, or on the last day when unanchored.
// A short month never skips an occurrence.
type MonthlyStrategy struct{}

func (MonthlyStrategy) Occurrences(rule core.RecurringRule, from, to core.Date) []core.Date {
	day := 31
	if mf, ok := rule.Frequency.(core.MonthlyFrequency); ok && mf.DayOfMonth != nil {
		day = *mf.DayOfMonth
	}

	var dates []core.Date
	year, month := from.Year(), from.Time.Month()
	for {
		d := core.ClampedDate(year, month, day)
		if d.After(to) {
			break
		}
		if !d.Before(from) {
			dates = append(dates, d)
		}
		month++
		if month > time.December {
			month = time.January
			year++
		}
	}
	return dates
}

// YearlyStrategy is due once a year on the month and day of the rule's start
// date. Feb 29 falls back to Feb 28 in common years.
type YearlyStrategy struct{}

func (YearlyStrategy) Occurrences(rule core.RecurringRule, from, to core.Date) []core.Date {
	month, day := rule.StartDate.Time.Month(), rule.StartDate.Day()

	var dates []core.Date
	for year := from.Year(); year <= to.Year(); year++ {
		d := core.ClampedDate(year, month, day)
		if d.Before(from) || d.After(to) {
			continue
		}
		dates = append(dates, d)
	}
	return dates
}

// occurrenceStrategies maps frequency kinds to their strategies.
var occurrenceStrategies = map[core.FrequencyKind]OccurrenceStrategy{
	core.Daily:   DailyStrategy{},
	core.Weekly:  WeeklyStrategy{},
	core.Monthly: MonthlyStrategy{},
	core.Yearly:  YearlyStrategy{},
}

// GetOccurrenceStrategy returns the strategy for a frequency kind.
// Returns an error if the kind is not supported.
func GetOccurrenceStrategy(kind core.FrequencyKind) (OccurrenceStrategy, error) {
	strategy, ok := occurrenceStrategies[kind]
	if !ok {
		return nil, fmt.Errorf("unknown frequency: %s", kind)
	}
	return strategy, nil
}

// ComputeOccurrences returns the ascending due dates of rule in [from, to],
// further restricted to the rule's own [StartDate, EndDate]. It is pure: the
// rule's Active flag and Watermark play no part.
func ComputeOccurrences(rule core.RecurringRule, from, to core.Date) []core.Date {
	if rule.Frequency == nil {
		return nil
	}
	from = core.MaxDate(from, rule.StartDate)
	to = rule.PendingTo(to)
	if from.After(to) {
		return nil
	}

	strategy, err := GetOccurrenceStrategy(rule.Frequency.Kind())
	if err != nil {
		return nil
	}
	return strategy.Occurrences(rule, from, to)
}
