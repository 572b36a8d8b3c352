package services

import (
	"testing"

	"coparent/backend/events"
	"coparent/backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyIndexationPercentage(t *testing.T) {
	f := setup(t)
	d1 := f.addDoc(f.caseID, f.parent1.UserID, "Sports", 10000, "2024-02-01", models.StatusValidated)
	d2 := f.addDoc(f.caseID, f.parent2.UserID, "Sports", 3333, "2024-02-01", models.StatusPending)

	entry, err := ApplyIndexation(ctx, f.admin, IndexationInput{Year: 2025, Mode: models.ModePercentage, Value: "3", BaseAmount: "100"})
	require.NoError(t, err)

	assert.Equal(t, 2025, entry.Year)
	assert.True(t, entry.Amount.Equal(dec("103")))
	assert.Equal(t, int64(10300), f.cents(d1))
	assert.Equal(t, int64(3433), f.cents(d2))

	history, err := ListIndexHistory(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 2025, history[0].Year)
	assert.True(t, history[0].Value.Equal(dec("3")))
	assert.Equal(t, []string{events.IndexationApplied}, f.events.Types())
}

func TestApplyIndexationDuplicateYear(t *testing.T) {
	f := setup(t)
	d1 := f.addDoc(f.caseID, f.parent1.UserID, "Sports", 10000, "2024-02-01", models.StatusValidated)
	d2 := f.addDoc(f.caseID, f.parent2.UserID, "Sports", 3333, "2024-02-01", models.StatusValidated)

	_, err := ApplyIndexation(ctx, f.admin, IndexationInput{Year: 2025, Value: "3", BaseAmount: "100"})
	require.NoError(t, err)

	_, err = ApplyIndexation(ctx, f.admin, IndexationInput{Year: 2025, Value: "5", BaseAmount: "100"})
	assert.Equal(t, "confirm", validationField(t, err))
	assert.Equal(t, int64(10300), f.cents(d1))

	entry, err := ApplyIndexation(ctx, f.admin, IndexationInput{Year: 2025, Value: "5", BaseAmount: "100", Confirm: true})
	require.NoError(t, err)
	assert.True(t, entry.Amount.Equal(dec("105")))
	assert.Equal(t, int64(10500), f.cents(d1))
	assert.Equal(t, int64(3500), f.cents(d2))
	assert.Equal(t, 1, f.count("SELECT COUNT(*) FROM index_history"))
}

func TestReverseIndexationRestoresAmounts(t *testing.T) {
	f := setup(t)
	amounts := map[string]int64{}
	for _, cents := range []int64{3333, 1, 999, 123456} {
		amounts[f.addDoc(f.caseID, f.parent1.UserID, "Sports", cents, "2024-02-01", models.StatusValidated)] = cents
	}

	entry, err := ApplyIndexation(ctx, f.admin, IndexationInput{Year: 2025, Value: "2.5"})
	require.NoError(t, err)
	require.NoError(t, ReverseIndexation(ctx, f.admin, entry.ID))

	for id, cents := range amounts {
		assert.InDelta(t, cents, f.cents(id), 1)
	}
	assert.Equal(t, 0, f.count("SELECT COUNT(*) FROM index_history"))
	assert.Contains(t, f.events.Types(), events.IndexationReversed)

	assert.ErrorIs(t, ReverseIndexation(ctx, f.admin, entry.ID), ErrNotFound)
}

func TestReverseIndexationNegativePercentage(t *testing.T) {
	for _, value := range []string{"-50", "-90", "-99.99"} {
		t.Run(value, func(t *testing.T) {
			f := setup(t)
			amounts := map[string]int64{}
			for _, cents := range []int64{5, 1, 3333, 99999} {
				amounts[f.addDoc(f.caseID, f.parent1.UserID, "Sports", cents, "2024-02-01", models.StatusValidated)] = cents
			}

			entry, err := ApplyIndexation(ctx, f.admin, IndexationInput{Year: 2025, Value: value})
			require.NoError(t, err)
			require.NoError(t, ReverseIndexation(ctx, f.admin, entry.ID))

			for id, cents := range amounts {
				assert.Equal(t, cents, f.cents(id))
			}
			assert.Equal(t, 0, f.count("SELECT COUNT(*) FROM index_amounts"))
		})
	}
}

func TestReverseIndexationLeavesLaterDocuments(t *testing.T) {
	f := setup(t)
	before := f.addDoc(f.caseID, f.parent1.UserID, "Sports", 1000, "2024-02-01", models.StatusValidated)

	entry, err := ApplyIndexation(ctx, f.admin, IndexationInput{Year: 2025, Value: "10"})
	require.NoError(t, err)
	after := f.addDoc(f.caseID, f.parent1.UserID, "Sports", 2000, "2024-03-01", models.StatusValidated)

	require.NoError(t, ReverseIndexation(ctx, f.admin, entry.ID))
	assert.Equal(t, int64(1000), f.cents(before))
	assert.Equal(t, int64(2000), f.cents(after))
}

func TestReverseIndexationOnlyLatest(t *testing.T) {
	f := setup(t)

	first, err := ApplyIndexation(ctx, f.admin, IndexationInput{Year: 2024, Value: "2"})
	require.NoError(t, err)
	second, err := ApplyIndexation(ctx, f.admin, IndexationInput{Year: 2025, Value: "3"})
	require.NoError(t, err)

	assert.ErrorIs(t, ReverseIndexation(ctx, f.admin, first.ID), ErrConflict)

	// replacing an older year is refused for the same reason
	_, err = ApplyIndexation(ctx, f.admin, IndexationInput{Year: 2024, Value: "4", Confirm: true})
	assert.ErrorIs(t, err, ErrConflict)

	require.NoError(t, ReverseIndexation(ctx, f.admin, second.ID))
	require.NoError(t, ReverseIndexation(ctx, f.admin, first.ID))
}

func TestApplyIndexationYearsMoveForward(t *testing.T) {
	f := setup(t)

	_, err := ApplyIndexation(ctx, f.admin, IndexationInput{Year: 2025, Value: "3"})
	require.NoError(t, err)

	_, err = ApplyIndexation(ctx, f.admin, IndexationInput{Year: 2023, Value: "3"})
	assert.Equal(t, "year", validationField(t, err))
}

func TestApplyIndexationIndexMode(t *testing.T) {
	f := setup(t)
	d := f.addDoc(f.caseID, f.parent1.UserID, "Sports", 10000, "2024-02-01", models.StatusValidated)

	first, err := ApplyIndexation(ctx, f.admin, IndexationInput{Year: 2024, Mode: models.ModeIndex, Value: "110", BaseAmount: "200"})
	require.NoError(t, err)
	assert.True(t, first.Amount.Equal(dec("200")))

	second, err := ApplyIndexation(ctx, f.admin, IndexationInput{Year: 2025, Mode: models.ModeIndex, Value: "121"})
	require.NoError(t, err)
	assert.True(t, second.Amount.Equal(dec("220")))

	assert.Equal(t, int64(10000), f.cents(d))

	latest, err := LatestIndex(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, second.ID, latest.ID)
}

func TestApplyIndexationValidation(t *testing.T) {
	f := setup(t)

	testCases := []struct {
		name  string
		input IndexationInput
		field string
	}{
		{"missing value", IndexationInput{Year: 2025}, "value"},
		{"three decimals", IndexationInput{Year: 2025, Value: "1.234"}, "value"},
		{"not a number", IndexationInput{Year: 2025, Value: "abc"}, "value"},
		{"percentage at -100", IndexationInput{Year: 2025, Value: "-100"}, "value"},
		{"index not positive", IndexationInput{Year: 2025, Mode: models.ModeIndex, Value: "0"}, "value"},
		{"unknown mode", IndexationInput{Year: 2025, Mode: "linear", Value: "2"}, "mode"},
		{"bad year", IndexationInput{Year: 12, Value: "2"}, "year"},
		{"negative base", IndexationInput{Year: 2025, Value: "2", BaseAmount: "-1"}, "baseAmount"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ApplyIndexation(ctx, f.admin, tc.input)
			assert.Equal(t, tc.field, validationField(t, err))
		})
	}
	assert.Equal(t, 0, f.count("SELECT COUNT(*) FROM index_history"))
}

func TestApplyIndexationDefaultsAndPermissions(t *testing.T) {
	f := setup(t)

	_, err := ApplyIndexation(ctx, f.lawyer, IndexationInput{Year: 2025, Value: "2"})
	assert.ErrorIs(t, err, ErrForbidden)
	assert.ErrorIs(t, ReverseIndexation(ctx, f.lawyer, "any"), ErrForbidden)

	entry, err := ApplyIndexation(ctx, f.admin, IndexationInput{Value: "2"})
	require.NoError(t, err)
	assert.Equal(t, 2024, entry.Year)
	assert.Equal(t, models.ModePercentage, entry.Mode)
}
