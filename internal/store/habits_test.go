package store

import (
	"context"
	"errors"
	"testing"

	"github.com/lazypower/keepstreak/internal/date"
	"github.com/lazypower/keepstreak/internal/habit"
)

func createHabit(t *testing.T, db *DB, name string) *habit.Habit {
	t.Helper()
	h := &habit.Habit{
		Name:               name,
		TargetValue:        1,
		Unit:               "times",
		ScheduleType:       "daily",
		MonthlyFreezeCount: habit.DefaultFreezeCap,
	}
	if err := db.CreateHabit(context.Background(), h); err != nil {
		t.Fatalf("CreateHabit: %v", err)
	}
	return h
}

func TestCreateAndGetHabit(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()

	h := createHabit(t, db, "read")
	if h.ID == 0 {
		t.Fatal("expected ID to be set")
	}

	got, err := db.GetHabit(ctx, h.ID)
	if err != nil {
		t.Fatalf("GetHabit: %v", err)
	}
	if got.Name != "read" || got.Unit != "times" || got.MonthlyFreezeCount != 2 {
		t.Errorf("GetHabit = %+v", got)
	}
	if !got.LastCompletedDate.IsZero() {
		t.Errorf("LastCompletedDate = %v, want zero", got.LastCompletedDate)
	}
	if got.LastFreezeResetMonth != "" {
		t.Errorf("LastFreezeResetMonth = %q, want empty", got.LastFreezeResetMonth)
	}
	if got.CreatedAt.UnixMilli() != h.CreatedAt.UnixMilli() {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, h.CreatedAt)
	}
}

func TestGetHabitNotFound(t *testing.T) {
	db := openTest(t)

	_, err := db.GetHabit(context.Background(), 99)
	if !errors.Is(err, habit.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListHabitsInsertionOrder(t *testing.T) {
	db := openTest(t)
	for _, name := range []string{"walk", "read", "code"} {
		createHabit(t, db, name)
	}

	habits, err := db.ListHabits(context.Background())
	if err != nil {
		t.Fatalf("ListHabits: %v", err)
	}
	if len(habits) != 3 {
		t.Fatalf("len = %d, want 3", len(habits))
	}
	for i, want := range []string{"walk", "read", "code"} {
		if habits[i].Name != want {
			t.Errorf("habits[%d] = %q, want %q", i, habits[i].Name, want)
		}
	}
}

func TestUpdateHabitRoundTrip(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()
	h := createHabit(t, db, "read")

	h.CurrentStreak = 4
	h.BestStreak = 9
	h.LastCompletedDate = date.MustParse("2025-11-01")
	h.MonthlyFreezeCount = 1
	h.LastFreezeResetMonth = "2025-11"
	h.ReminderTime = "07:30"
	if err := db.UpdateHabit(ctx, *h); err != nil {
		t.Fatalf("UpdateHabit: %v", err)
	}

	got, err := db.GetHabit(ctx, h.ID)
	if err != nil {
		t.Fatalf("GetHabit: %v", err)
	}
	if got.CurrentStreak != 4 || got.BestStreak != 9 || got.MonthlyFreezeCount != 1 {
		t.Errorf("streak/freeze fields = %+v", got)
	}
	if got.LastCompletedDate.String() != "2025-11-01" {
		t.Errorf("LastCompletedDate = %v", got.LastCompletedDate)
	}
	if got.LastFreezeResetMonth != date.Month("2025-11") {
		t.Errorf("LastFreezeResetMonth = %q", got.LastFreezeResetMonth)
	}
	if got.ReminderTime != "07:30" {
		t.Errorf("ReminderTime = %q, want 07:30", got.ReminderTime)
	}
}

func TestUpdateHabitNotFound(t *testing.T) {
	db := openTest(t)

	err := db.UpdateHabit(context.Background(), habit.Habit{ID: 42, Name: "ghost"})
	if !errors.Is(err, habit.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteHabitCascadesLogs(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()
	h := createHabit(t, db, "read")

	if _, err := db.InsertLog(ctx, habit.LogEntry{HabitID: h.ID, Date: date.MustParse("2025-11-01"), IsCompleted: true}); err != nil {
		t.Fatalf("InsertLog: %v", err)
	}
	if err := db.DeleteHabit(ctx, h.ID); err != nil {
		t.Fatalf("DeleteHabit: %v", err)
	}

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM habit_logs`).Scan(&n); err != nil {
		t.Fatalf("count logs: %v", err)
	}
	if n != 0 {
		t.Errorf("logs after delete = %d, want 0", n)
	}
	if err := db.DeleteHabit(ctx, h.ID); !errors.Is(err, habit.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}
