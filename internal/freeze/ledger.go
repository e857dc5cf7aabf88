// Package freeze manages the monthly streak-freeze allowance. A freeze
// retroactively covers yesterday when it has no log entry, keeping the streak
// alive without a real completion.
package freeze

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/lazypower/keepstreak/internal/date"
	"github.com/lazypower/keepstreak/internal/habit"
	"github.com/lazypower/keepstreak/internal/streak"
)

// Reason explains why a Step did or did not consume a freeze.
type Reason string

const (
	Consumed      Reason = "consumed"
	AlreadyLogged Reason = "already_logged"
	Exhausted     Reason = "exhausted"
	// Raced means the frozen entry was written by a concurrent cycle between
	// our existence check and our insert.
	Raced Reason = "raced"
)

// Outcome is the result of one Step.
type Outcome struct {
	Consumed bool
	Reason   Reason
	// Reset is true when the allowance was refilled for a new month.
	Reset bool
	// Remaining is the persisted allowance after the step.
	Remaining int
	// Habit is h as persisted after the step.
	Habit habit.Habit
}

// Ledger runs the freeze step for one habit at a time.
type Ledger struct {
	store    habit.Store
	cap      int
	strategy streak.Strategy
	logger   *zap.Logger
}

// NewLedger returns a Ledger granting freezeCap freezes per month. A
// non-positive cap falls back to habit.DefaultFreezeCap.
func NewLedger(store habit.Store, freezeCap int, logger *zap.Logger) *Ledger {
	if freezeCap <= 0 {
		freezeCap = habit.DefaultFreezeCap
	}
	return &Ledger{
		store:    store,
		cap:      freezeCap,
		strategy: streak.Recompute{},
		logger:   logger,
	}
}

// Cap returns the monthly allowance.
func (l *Ledger) Cap() int { return l.cap }

// Step applies the monthly reset and, when yesterday is uncovered and
// allowance remains, consumes one freeze by inserting a frozen entry for
// yesterday. Running Step twice with the same inputs never writes a second
// entry: the second run finds the first run's entry and reports
// AlreadyLogged.
func (l *Ledger) Step(ctx context.Context, h habit.Habit, today date.Date) (Outcome, error) {
	log := l.logger.With(zap.Int64("habit_id", h.ID), zap.String("date", today.String()))
	out := Outcome{Habit: h}

	month := today.Month()
	if h.LastFreezeResetMonth != month {
		h.MonthlyFreezeCount = l.cap
		h.LastFreezeResetMonth = month
		if err := l.store.UpdateHabit(ctx, h); err != nil {
			return out, fmt.Errorf("reset freeze allowance: %w", err)
		}
		out.Reset = true
		log.Debug("freeze allowance reset", zap.String("month", string(month)), zap.Int("allowance", l.cap))
	}
	out.Habit = h
	out.Remaining = h.MonthlyFreezeCount

	logs, err := l.store.ListLogs(ctx, h.ID)
	if err != nil {
		return out, fmt.Errorf("list logs: %w", err)
	}

	yesterday := today.Prev()
	if _, ok := habit.FindLog(logs, yesterday); ok {
		out.Reason = AlreadyLogged
		return out, nil
	}
	if h.MonthlyFreezeCount <= 0 {
		out.Reason = Exhausted
		return out, nil
	}

	frozen := habit.LogEntry{
		HabitID:     h.ID,
		Date:        yesterday,
		IsCompleted: false,
		IsFrozen:    true,
		ActualValue: 0,
	}
	inserted, err := l.store.InsertLog(ctx, frozen)
	if err != nil {
		return out, fmt.Errorf("insert frozen log: %w", err)
	}
	if !inserted {
		log.Info("frozen entry already written by another cycle", zap.String("day", yesterday.String()))
		out.Reason = Raced
		return out, nil
	}

	h.MonthlyFreezeCount--
	next := l.strategy.Next(streak.Of(h), append(logs, frozen), today)
	next.Apply(&h)
	if err := l.store.UpdateHabit(ctx, h); err != nil {
		return out, fmt.Errorf("persist freeze: %w", err)
	}

	log.Info("streak freeze consumed",
		zap.String("day", yesterday.String()),
		zap.Int("remaining", h.MonthlyFreezeCount),
		zap.Int("streak", h.CurrentStreak),
	)
	return Outcome{
		Consumed:  true,
		Reason:    Consumed,
		Reset:     out.Reset,
		Remaining: h.MonthlyFreezeCount,
		Habit:     h,
	}, nil
}
