// Package inactivity flags habits with no log entry in a trailing window.
package inactivity

import (
	"context"
	"fmt"

	"github.com/lazypower/keepstreak/internal/date"
	"github.com/lazypower/keepstreak/internal/habit"
)

// Threshold is how many days before today the window starts. The window is
// [today-Threshold, today], both ends included.
const Threshold = 3

// Result is the outcome of one Check.
type Result struct {
	Flagged bool
	From    date.Date
	To      date.Date
	// LastSeen is the most recent entry on or before today, zero if none.
	LastSeen date.Date
}

// Window returns the inclusive window checked for today.
func Window(today date.Date) (from, to date.Date) {
	return today.AddDays(-Threshold), today
}

// Detector checks one habit's recent activity.
type Detector struct {
	store habit.Store
}

func NewDetector(store habit.Store) *Detector {
	return &Detector{store: store}
}

// Check reports whether h has no log entry of any kind inside the window.
func (d *Detector) Check(ctx context.Context, h habit.Habit, today date.Date) (Result, error) {
	logs, err := d.store.ListLogs(ctx, h.ID)
	if err != nil {
		return Result{}, fmt.Errorf("list logs: %w", err)
	}
	return Evaluate(logs, today), nil
}

// Evaluate applies the window rule to logs.
func Evaluate(logs []habit.LogEntry, today date.Date) Result {
	from, to := Window(today)
	res := Result{Flagged: true, From: from, To: to}
	for _, l := range logs {
		if l.Date.After(today) {
			continue
		}
		if res.LastSeen.IsZero() || l.Date.After(res.LastSeen) {
			res.LastSeen = l.Date
		}
		if l.Date.Within(from, to) {
			res.Flagged = false
		}
	}
	return res
}
