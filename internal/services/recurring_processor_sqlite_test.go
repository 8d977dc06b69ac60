package services

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accountbook/internal/core"
	"accountbook/internal/storage"
)

func TestGenerateWithSQLite(t *testing.T) {
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "accountbook.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	ctx := context.Background()

	rent, err := repo.CreateCategory(ctx, 1, "Rent")
	require.NoError(t, err)
	gym, err := repo.CreateCategory(ctx, 1, "Gym")
	require.NoError(t, err)

	rules := NewRuleService(repo, nil)
	monthly, err := rules.Create(ctx, NewRule{
		UserID: 1, CategoryID: rent, Type: core.Expense,
		Amount: core.MustParseMoney("850"), Frequency: core.EveryMonthOn(31), StartDate: d(2024, 1, 31),
	})
	require.NoError(t, err)
	weekly, err := rules.Create(ctx, NewRule{
		UserID: 1, CategoryID: gym, Type: core.Expense,
		Amount: core.MustParseMoney("15"), Frequency: core.EveryWeekOn(core.Wednesday), StartDate: d(2024, 3, 1),
	})
	require.NoError(t, err)

	// The gym category disappears, so the weekly rule cannot generate.
	require.NoError(t, repo.DeleteCategory(ctx, gym))

	p := NewRecurringProcessor(repo, repo, nil, RecurringProcessorConfig{Workers: 2})
	res, err := p.Generate(ctx, d(2024, 4, 30))
	require.NoError(t, err)

	assert.Equal(t, []string{"2024-01-31", "2024-02-29", "2024-03-31", "2024-04-30"}, txDates(res.Transactions))
	require.Len(t, res.RuleErrors, 1)
	assert.Equal(t, weekly.ID, res.RuleErrors[0].RuleID)
	assert.ErrorIs(t, res.RuleErrors[0], core.ErrSinkFailure)

	got, err := repo.GetRule(ctx, monthly.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024-04-30", got.Watermark.String())
	got, err = repo.GetRule(ctx, weekly.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Watermark)

	again, err := p.Generate(ctx, d(2024, 4, 30))
	require.NoError(t, err)
	assert.Zero(t, again.GeneratedCount)
}
