// Package streak derives current and best streaks from a habit's log history.
package streak

import (
	"github.com/lazypower/keepstreak/internal/date"
	"github.com/lazypower/keepstreak/internal/habit"
)

// Result is the pair of streak fields persisted on a Habit.
type Result struct {
	Current int
	Best    int
}

// Of reads the streak fields of h.
func Of(h habit.Habit) Result {
	return Result{Current: h.CurrentStreak, Best: h.BestStreak}
}

// Apply writes r into h.
func (r Result) Apply(h *habit.Habit) {
	h.CurrentStreak = r.Current
	h.BestStreak = r.Best
}

// Strategy computes the next streak value after a log change.
type Strategy interface {
	Next(prev Result, logs []habit.LogEntry, today date.Date) Result
}

// Recompute derives the current streak from the full log history. Used after
// a completion is inserted and after a freeze is consumed.
type Recompute struct{}

func (Recompute) Next(prev Result, logs []habit.LogEntry, today date.Date) Result {
	cur := Count(logs, today)
	return Result{Current: cur, Best: max(prev.Best, cur)}
}

// Decrement lowers the current streak by one, floored at zero, without
// looking at the logs. Used on undo; after repeated undo/redo it can drift
// from what Recompute would report.
type Decrement struct{}

func (Decrement) Next(prev Result, _ []habit.LogEntry, _ date.Date) Result {
	return Result{Current: max(0, prev.Current-1), Best: prev.Best}
}

// Count returns the number of consecutive covered days ending at the most
// recent covered day on or before today.
func Count(logs []habit.LogEntry, today date.Date) int {
	covered := make(map[date.Date]bool, len(logs))
	var latest date.Date
	for _, l := range logs {
		if !l.Covered() || l.Date.After(today) {
			continue
		}
		covered[l.Date] = true
		if latest.IsZero() || l.Date.After(latest) {
			latest = l.Date
		}
	}
	if latest.IsZero() {
		return 0
	}

	n := 0
	for day := latest; covered[day]; day = day.Prev() {
		n++
	}
	return n
}
