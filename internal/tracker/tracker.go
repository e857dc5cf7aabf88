// Package tracker implements the user-facing habit operations: creating and
// editing habits, and logging or undoing a day's completion.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lazypower/keepstreak/internal/date"
	"github.com/lazypower/keepstreak/internal/habit"
	"github.com/lazypower/keepstreak/internal/streak"
)

// ErrInvalid wraps validation failures.
var ErrInvalid = errors.New("invalid input")

// Schedule types accepted for a habit.
var scheduleTypes = map[string]bool{"daily": true, "weekly": true}

// Tracker applies user actions to a habit.Repository.
type Tracker struct {
	repo      habit.Repository
	freezeCap int
	logger    *zap.Logger
}

func New(repo habit.Repository, freezeCap int, logger *zap.Logger) *Tracker {
	if freezeCap <= 0 {
		freezeCap = habit.DefaultFreezeCap
	}
	return &Tracker{repo: repo, freezeCap: freezeCap, logger: logger}
}

// HabitInput is the editable part of a Habit.
type HabitInput struct {
	Name         string `json:"name"`
	TargetValue  int    `json:"target_value"`
	Unit         string `json:"unit"`
	ScheduleType string `json:"schedule_type"`
	Description  string `json:"description"`
	// ReminderTime is a daily reminder in habit.ReminderLayout; "" disables it.
	ReminderTime string `json:"reminder_time"`
}

func (in *HabitInput) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if in.TargetValue == 0 {
		in.TargetValue = 1
	}
	if in.TargetValue < 0 {
		return fmt.Errorf("%w: target_value must be positive", ErrInvalid)
	}
	if in.ScheduleType == "" {
		in.ScheduleType = "daily"
	}
	if !scheduleTypes[in.ScheduleType] {
		return fmt.Errorf("%w: unknown schedule_type %q", ErrInvalid, in.ScheduleType)
	}
	if in.ReminderTime = strings.TrimSpace(in.ReminderTime); in.ReminderTime != "" {
		at, err := time.Parse(habit.ReminderLayout, in.ReminderTime)
		if err != nil {
			return fmt.Errorf("%w: reminder_time must be HH:MM, got %q", ErrInvalid, in.ReminderTime)
		}
		in.ReminderTime = at.Format(habit.ReminderLayout)
	}
	return nil
}

// CreateHabit stores a new habit with a full freeze allowance.
func (t *Tracker) CreateHabit(ctx context.Context, in HabitInput) (*habit.Habit, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	h := &habit.Habit{
		Name:               in.Name,
		TargetValue:        in.TargetValue,
		Unit:               in.Unit,
		ScheduleType:       in.ScheduleType,
		Description:        in.Description,
		ReminderTime:       in.ReminderTime,
		MonthlyFreezeCount: t.freezeCap,
	}
	if err := t.repo.CreateHabit(ctx, h); err != nil {
		return nil, err
	}
	t.logger.Info("habit created", zap.Int64("habit_id", h.ID), zap.String("habit", h.Name))
	return h, nil
}

// UpdateHabit replaces the editable fields of a habit. Streak and freeze
// state are left alone.
func (t *Tracker) UpdateHabit(ctx context.Context, id int64, in HabitInput) (*habit.Habit, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	h, err := t.repo.GetHabit(ctx, id)
	if err != nil {
		return nil, err
	}
	h.Name = in.Name
	h.TargetValue = in.TargetValue
	h.Unit = in.Unit
	h.ScheduleType = in.ScheduleType
	h.Description = in.Description
	h.ReminderTime = in.ReminderTime
	if err := t.repo.UpdateHabit(ctx, *h); err != nil {
		return nil, err
	}
	return h, nil
}

// DeleteHabit removes a habit and its history.
func (t *Tracker) DeleteHabit(ctx context.Context, id int64) error {
	if err := t.repo.DeleteHabit(ctx, id); err != nil {
		return err
	}
	t.logger.Info("habit deleted", zap.Int64("habit_id", id))
	return nil
}

// CompleteResult reports what Complete did.
type CompleteResult struct {
	Habit *habit.Habit `json:"habit"`
	// AlreadyLogged is true when the day already had an entry; nothing was
	// written.
	AlreadyLogged bool `json:"already_logged"`
}

// Complete logs day as completed with value, recomputes the streak from the
// full history and advances LastCompletedDate. A day that already has an
// entry, completed or frozen, is left unchanged.
func (t *Tracker) Complete(ctx context.Context, id int64, day, today date.Date, value int) (*CompleteResult, error) {
	h, err := t.repo.GetHabit(ctx, id)
	if err != nil {
		return nil, err
	}
	if day.After(today) {
		return nil, fmt.Errorf("%w: cannot complete %s in the future", ErrInvalid, day)
	}
	if value <= 0 {
		value = h.TargetValue
	}

	inserted, err := t.repo.InsertLog(ctx, habit.LogEntry{
		HabitID:     h.ID,
		Date:        day,
		IsCompleted: true,
		ActualValue: value,
	})
	if err != nil {
		return nil, err
	}
	if !inserted {
		return &CompleteResult{Habit: h, AlreadyLogged: true}, nil
	}

	logs, err := t.repo.ListLogs(ctx, h.ID)
	if err != nil {
		return nil, err
	}
	streak.Recompute{}.Next(streak.Of(*h), logs, today).Apply(h)
	if h.LastCompletedDate.IsZero() || day.After(h.LastCompletedDate) {
		h.LastCompletedDate = day
	}
	if err := t.repo.UpdateHabit(ctx, *h); err != nil {
		return nil, err
	}

	t.logger.Info("habit completed",
		zap.Int64("habit_id", h.ID),
		zap.String("date", day.String()),
		zap.Int("streak", h.CurrentStreak),
	)
	return &CompleteResult{Habit: h}, nil
}

// Undo removes day's entry and lowers the streak by one. The streak is not
// recomputed from the remaining logs.
func (t *Tracker) Undo(ctx context.Context, id int64, day date.Date) (*habit.Habit, error) {
	h, err := t.repo.GetHabit(ctx, id)
	if err != nil {
		return nil, err
	}
	deleted, err := t.repo.DeleteLog(ctx, h.ID, day)
	if err != nil {
		return nil, err
	}
	if !deleted {
		return nil, fmt.Errorf("undo %s: %w", day, habit.ErrNotFound)
	}

	streak.Decrement{}.Next(streak.Of(*h), nil, day).Apply(h)
	if err := t.repo.UpdateHabit(ctx, *h); err != nil {
		return nil, err
	}
	t.logger.Info("completion undone",
		zap.Int64("habit_id", h.ID),
		zap.String("date", day.String()),
		zap.Int("streak", h.CurrentStreak),
	)
	return h, nil
}

// Stats summarizes a habit's history.
type Stats struct {
	HabitID            int64 `json:"habit_id"`
	CurrentStreak      int   `json:"current_streak"`
	BestStreak         int   `json:"best_streak"`
	TotalCompleted     int   `json:"total_completed"`
	CompletedInRange   int   `json:"completed_in_range"`
	MonthlyFreezeCount int   `json:"monthly_freeze_count"`
}

// Stats counts completions overall and within [from, to]; zero bounds are open.
func (t *Tracker) Stats(ctx context.Context, id int64, from, to date.Date) (*Stats, error) {
	h, err := t.repo.GetHabit(ctx, id)
	if err != nil {
		return nil, err
	}
	total, err := t.repo.CountCompleted(ctx, id, date.Date{}, date.Date{})
	if err != nil {
		return nil, err
	}
	inRange, err := t.repo.CountCompleted(ctx, id, from, to)
	if err != nil {
		return nil, err
	}
	return &Stats{
		HabitID:            h.ID,
		CurrentStreak:      h.CurrentStreak,
		BestStreak:         h.BestStreak,
		TotalCompleted:     total,
		CompletedInRange:   inRange,
		MonthlyFreezeCount: h.MonthlyFreezeCount,
	}, nil
}
