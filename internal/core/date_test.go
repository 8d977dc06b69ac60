package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateValidate(t *testing.T) {
	assert.NoError(t, NewDate(2025, 1, 1).Validate())
	assert.NoError(t, NewDate(2025, 12, 31).Validate())
	assert.Error(t, Date{Time: time.Time{}}.Validate())
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", d.String())
	assert.Equal(t, 2024, d.Year())
	assert.Equal(t, 2, d.Month())
	assert.Equal(t, 29, d.Day())

	_, err = ParseDate("2023-02-29")
	assert.Error(t, err)
	_, err = ParseDate("29/02/2024")
	assert.Error(t, err)
}

func TestDateOfNormalizesZoneOnce(t *testing.T) {
	// 23:30 UTC on Jan 31 is already Feb 1 in Rome.
	instant := time.Date(2024, 1, 31, 23, 30, 0, 0, time.UTC)
	rome := time.FixedZone("CET", 60*60)

	assert.Equal(t, NewDate(2024, 1, 31), DateOf(instant, nil))
	assert.Equal(t, NewDate(2024, 2, 1), DateOf(instant, rome))
	assert.Equal(t, time.UTC, DateOf(instant, rome).Location())
}

func TestDateArithmetic(t *testing.T) {
	d := NewDate(2024, 2, 28)
	assert.Equal(t, NewDate(2024, 2, 29), d.AddDays(1))
	assert.Equal(t, NewDate(2024, 3, 1), d.AddDays(2))
	assert.Equal(t, NewDate(2023, 12, 31), NewDate(2024, 1, 1).AddDays(-1))
	assert.Equal(t, 2, d.DaysUntil(NewDate(2024, 3, 1)))

	assert.True(t, d.Before(d.AddDays(1)))
	assert.True(t, d.AddDays(1).After(d))
	assert.True(t, d.Equal(NewDate(2024, 2, 28)))
	assert.Equal(t, d, MinDate(d, d.AddDays(3)))
	assert.Equal(t, d.AddDays(3), MaxDate(d, d.AddDays(3)))
}

func TestDaysInMonthAndClamp(t *testing.T) {
	assert.Equal(t, 29, DaysInMonth(2024, time.February))
	assert.Equal(t, 28, DaysInMonth(2023, time.February))
	assert.Equal(t, 30, DaysInMonth(2024, time.April))
	assert.Equal(t, 31, DaysInMonth(2024, time.December))

	assert.Equal(t, NewDate(2024, 4, 30), ClampedDate(2024, time.April, 31))
	assert.Equal(t, NewDate(2023, 2, 28), ClampedDate(2023, time.February, 29))
	assert.Equal(t, NewDate(2024, 5, 15), ClampedDate(2024, time.May, 15))
}
