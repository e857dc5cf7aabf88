package inactivity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/keepstreak/internal/date"
	"github.com/lazypower/keepstreak/internal/habit"
	"github.com/lazypower/keepstreak/internal/habit/habittest"
)

func TestWindowBoundary(t *testing.T) {
	today := date.MustParse("2025-11-10")

	tests := []struct {
		name    string
		logs    []string
		flagged bool
	}{
		{"entry on window start", []string{"2025-11-07"}, false},
		{"entry today", []string{"2025-11-10"}, false},
		{"entry just before window", []string{"2025-11-06"}, true},
		{"no entries", nil, true},
		{"only future entries", []string{"2025-11-11"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := habittest.New()
			h := store.AddHabit(habit.Habit{Name: "read"})
			store.Completed(h.ID, tt.logs...)

			res, err := NewDetector(store).Check(context.Background(), h, today)
			require.NoError(t, err)
			assert.Equal(t, tt.flagged, res.Flagged)
			assert.Equal(t, "2025-11-07", res.From.String())
			assert.Equal(t, "2025-11-10", res.To.String())
		})
	}
}

func TestFrozenEntryCounts(t *testing.T) {
	logs := []habit.LogEntry{{HabitID: 1, Date: date.MustParse("2025-11-09"), IsFrozen: true}}
	assert.False(t, Evaluate(logs, date.MustParse("2025-11-10")).Flagged)
}

func TestLastSeen(t *testing.T) {
	logs := []habit.LogEntry{
		{HabitID: 1, Date: date.MustParse("2025-11-01"), IsCompleted: true},
		{HabitID: 1, Date: date.MustParse("2025-11-04"), IsCompleted: true},
	}
	res := Evaluate(logs, date.MustParse("2025-11-10"))
	assert.True(t, res.Flagged)
	assert.Equal(t, "2025-11-04", res.LastSeen.String())
}

func TestCheckStoreError(t *testing.T) {
	store := habittest.New()
	h := store.AddHabit(habit.Habit{Name: "read"})
	boom := errors.New("offline")
	store.ListLogsErr = boom

	_, err := NewDetector(store).Check(context.Background(), h, date.MustParse("2025-11-10"))
	assert.ErrorIs(t, err, boom)
}
