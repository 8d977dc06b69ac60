package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accountbook/internal/core"
)

func d(y, m, day int) core.Date { return core.NewDate(y, m, day) }

func datePtr(y, m, day int) *core.Date {
	v := d(y, m, day)
	return &v
}

func dateStrings(dates []core.Date) []string {
	out := make([]string, len(dates))
	for i, date := range dates {
		out[i] = date.String()
	}
	return out
}

func ruleWith(freq core.Frequency, start core.Date, end *core.Date) core.RecurringRule {
	return core.RecurringRule{
		ID:         1,
		UserID:     1,
		CategoryID: 1,
		Type:       core.Expense,
		Amount:     core.MustParseMoney("10"),
		Frequency:  freq,
		StartDate:  start,
		EndDate:    end,
		Active:     true,
	}
}

func TestComputeOccurrences(t *testing.T) {
	tests := []struct {
		name     string
		rule     core.RecurringRule
		from, to core.Date
		want     []string
	}{
		{
			name: "monthly day 31 clamps in short months",
			rule: ruleWith(core.EveryMonthOn(31), d(2024, 1, 31), nil),
			from: d(2024, 1, 31), to: d(2024, 4, 30),
			want: []string{"2024-01-31", "2024-02-29", "2024-03-31", "2024-04-30"},
		},
		{
			name: "monthly day 30 in a common year february",
			rule: ruleWith(core.EveryMonthOn(30), d(2023, 1, 1), nil),
			from: d(2023, 1, 1), to: d(2023, 3, 31),
			want: []string{"2023-01-30", "2023-02-28", "2023-03-30"},
		},
		{
			name: "monthly without anchor uses last day",
			rule: ruleWith(core.EveryMonth(), d(2024, 1, 10), nil),
			from: d(2024, 1, 10), to: d(2024, 3, 30),
			want: []string{"2024-01-31", "2024-02-29"},
		},
		{
			name: "monthly anchor before start skips start month",
			rule: ruleWith(core.EveryMonthOn(5), d(2024, 1, 10), nil),
			from: d(2024, 1, 10), to: d(2024, 3, 5),
			want: []string{"2024-02-05", "2024-03-05"},
		},
		{
			name: "weekly wednesday from a friday start",
			rule: ruleWith(core.EveryWeekOn(core.Wednesday), d(2024, 3, 1), nil),
			from: d(2024, 3, 1), to: d(2024, 3, 22),
			want: []string{"2024-03-06", "2024-03-13", "2024-03-20"},
		},
		{
			name: "weekly without anchor follows start weekday",
			rule: ruleWith(core.EveryWeek(), d(2024, 3, 1), nil),
			from: d(2024, 3, 1), to: d(2024, 3, 15),
			want: []string{"2024-03-01", "2024-03-08", "2024-03-15"},
		},
		{
			name: "daily inclusive bounds",
			rule: ruleWith(core.EveryDay(), d(2024, 2, 27), nil),
			from: d(2024, 2, 27), to: d(2024, 3, 1),
			want: []string{"2024-02-27", "2024-02-28", "2024-02-29", "2024-03-01"},
		},
		{
			name: "yearly leap day falls back to feb 28",
			rule: ruleWith(core.EveryYear(), d(2024, 2, 29), nil),
			from: d(2024, 2, 29), to: d(2028, 3, 1),
			want: []string{"2024-02-29", "2025-02-28", "2026-02-28", "2027-02-28", "2028-02-29"},
		},
		{
			name: "end date occurrence included and nothing after",
			rule: ruleWith(core.EveryMonthOn(15), d(2024, 4, 1), datePtr(2024, 6, 15)),
			from: d(2024, 4, 1), to: d(2024, 12, 31),
			want: []string{"2024-04-15", "2024-05-15", "2024-06-15"},
		},
		{
			name: "window before start is clipped",
			rule: ruleWith(core.EveryDay(), d(2024, 5, 3), nil),
			from: d(2024, 5, 1), to: d(2024, 5, 4),
			want: []string{"2024-05-03", "2024-05-04"},
		},
		{
			name: "from after to is empty",
			rule: ruleWith(core.EveryDay(), d(2024, 1, 1), nil),
			from: d(2024, 5, 2), to: d(2024, 5, 1),
			want: []string{},
		},
		{
			name: "window entirely after end date is empty",
			rule: ruleWith(core.EveryDay(), d(2024, 1, 1), datePtr(2024, 1, 31)),
			from: d(2024, 2, 1), to: d(2024, 2, 10),
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeOccurrences(tt.rule, tt.from, tt.to)
			assert.Equal(t, tt.want, dateStrings(got))
		})
	}
}

func TestComputeOccurrencesIgnoresActiveAndWatermark(t *testing.T) {
	rule := ruleWith(core.EveryDay(), d(2024, 1, 1), nil)
	rule.Active = false
	rule.Watermark = datePtr(2024, 1, 2)

	got := ComputeOccurrences(rule, d(2024, 1, 1), d(2024, 1, 3))
	assert.Equal(t, []string{"2024-01-01", "2024-01-02", "2024-01-03"}, dateStrings(got))
}

func TestComputeOccurrencesStrictlyAscending(t *testing.T) {
	freqs := []core.Frequency{
		core.EveryDay(), core.EveryWeek(), core.EveryWeekOn(core.Sunday),
		core.EveryMonth(), core.EveryMonthOn(29), core.EveryYear(),
	}
	for _, freq := range freqs {
		t.Run(string(freq.Kind()), func(t *testing.T) {
			got := ComputeOccurrences(ruleWith(freq, d(2023, 12, 31), nil), d(2023, 1, 1), d(2026, 12, 31))
			require.NotEmpty(t, got)
			for i := 1; i < len(got); i++ {
				assert.True(t, got[i-1].Before(got[i]), "%s not before %s", got[i-1], got[i])
			}
		})
	}
}

func TestGetOccurrenceStrategy(t *testing.T) {
	for _, kind := range []core.FrequencyKind{core.Daily, core.Weekly, core.Monthly, core.Yearly} {
		s, err := GetOccurrenceStrategy(kind)
		require.NoError(t, err)
		assert.NotNil(t, s)
	}

	_, err := GetOccurrenceStrategy("fortnightly")
	assert.Error(t, err)
}
