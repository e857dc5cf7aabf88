// Package reminder raises the daily reminder of every habit whose reminder
// time is the current minute.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lazypower/keepstreak/internal/date"
	"github.com/lazypower/keepstreak/internal/habit"
	"github.com/lazypower/keepstreak/internal/metrics"
	"github.com/lazypower/keepstreak/internal/queue"
)

// Schedule is the cron spec the reminder check runs on. Reminder times have
// minute resolution.
const Schedule = "* * * * *"

var namespace = uuid.MustParse("5b0f9a3e-6c1d-4f8e-9a57-2d3c4b1e7f60")

// Lister is the part of habit.Store the reminder needs.
type Lister interface {
	ListHabits(ctx context.Context) ([]habit.Habit, error)
}

// Reminder publishes REMINDER events.
type Reminder struct {
	habits    Lister
	publisher queue.Publisher
	logger    *zap.Logger
}

func New(habits Lister, publisher queue.Publisher, logger *zap.Logger) *Reminder {
	return &Reminder{habits: habits, publisher: publisher, logger: logger}
}

// Due returns the habits whose ReminderTime equals the wall-clock minute of
// now, in now's location.
func Due(habits []habit.Habit, now time.Time) []habit.Habit {
	clock := now.Format(habit.ReminderLayout)
	var due []habit.Habit
	for _, h := range habits {
		if h.ReminderTime != "" && h.ReminderTime == clock {
			due = append(due, h)
		}
	}
	return due
}

// EventID is stable for a habit and day, so a reminder raised twice on the
// same day is recorded once.
func EventID(habitID int64, day date.Date) string {
	return uuid.NewSHA1(namespace, []byte(fmt.Sprintf("reminder/%d/%s", habitID, day))).String()
}

// Run publishes one event per due habit. A failed publish does not stop the
// others; all failures are returned together.
func (r *Reminder) Run(ctx context.Context, now time.Time) ([]habit.Event, error) {
	habits, err := r.habits.ListHabits(ctx)
	if err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}

	today := date.FromTime(now)
	var (
		sent []habit.Event
		errs []error
	)
	for _, h := range Due(habits, now) {
		ev := habit.Event{
			ID:        EventID(h.ID, today),
			HabitID:   h.ID,
			HabitName: h.Name,
			Trigger:   habit.TriggerReminder,
			Date:      today,
		}
		if err := r.publisher.Publish(ctx, ev); err != nil {
			errs = append(errs, fmt.Errorf("habit %d: publish reminder: %w", h.ID, err))
			continue
		}
		metrics.RemindersRaised.Inc()
		sent = append(sent, ev)
		r.logger.Debug("reminder published",
			zap.String("event_id", ev.ID),
			zap.Int64("habit_id", h.ID),
			zap.String("at", h.ReminderTime),
		)
	}

	if err := errors.Join(errs...); err != nil {
		r.logger.Error("reminder run failed", zap.Int("published", len(sent)), zap.Error(err))
		return sent, err
	}
	return sent, nil
}
