// Package habit holds the domain records shared by the scanner, the ledger,
// the detector and the stores.
package habit

import (
	"context"
	"errors"
	"time"

	"github.com/lazypower/keepstreak/internal/date"
)

// DefaultFreezeCap is the number of freezes granted each calendar month.
const DefaultFreezeCap = 2

// ReminderLayout is the clock format of Habit.ReminderTime.
const ReminderLayout = "15:04"

// ErrNotFound is returned by stores when a habit or record does not exist.
var ErrNotFound = errors.New("not found")

// Habit is a recurring activity the user tracks.
type Habit struct {
	ID                   int64      `json:"id"`
	Name                 string     `json:"name"`
	TargetValue          int        `json:"target_value"`
	Unit                 string     `json:"unit"`
	ScheduleType         string     `json:"schedule_type"`
	Description          string     `json:"description,omitempty"`
	ReminderTime         string     `json:"reminder_time,omitempty"` // ReminderLayout, "" for none
	CurrentStreak        int        `json:"current_streak"`
	BestStreak           int        `json:"best_streak"`
	LastCompletedDate    date.Date  `json:"last_completed_date"`
	MonthlyFreezeCount   int        `json:"monthly_freeze_count"`
	LastFreezeResetMonth date.Month `json:"last_freeze_reset_month,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
}

// LogEntry is the record of one habit on one day. (HabitID, Date) is unique.
type LogEntry struct {
	ID          int64     `json:"id"`
	HabitID     int64     `json:"habit_id"`
	Date        date.Date `json:"date"`
	IsCompleted bool      `json:"is_completed"`
	IsFrozen    bool      `json:"is_frozen"`
	ActualValue int       `json:"actual_value"`
}

// Covered reports whether the entry keeps a streak alive.
func (e LogEntry) Covered() bool { return e.IsCompleted || e.IsFrozen }

// Trigger is the reason a notification event was raised.
type Trigger string

const (
	TriggerInactivity   Trigger = "INACTIVITY"
	TriggerStreakFreeze Trigger = "STREAK_FREEZE"
	TriggerReminder     Trigger = "REMINDER"
)

// Valid reports whether t is a known trigger.
func (t Trigger) Valid() bool {
	switch t {
	case TriggerInactivity, TriggerStreakFreeze, TriggerReminder:
		return true
	}
	return false
}

// Event is produced by a detector during a scan cycle and consumed once by
// the notification dispatcher.
type Event struct {
	ID        string    `json:"id"`
	HabitID   int64     `json:"habit_id"`
	HabitName string    `json:"habit_name"`
	Trigger   Trigger   `json:"trigger"`
	Date      date.Date `json:"date"`
}

// Notification is a delivered alert kept in the history list. EventID, when
// set, is unique across the history.
type Notification struct {
	ID        int64     `json:"id"`
	EventID   string    `json:"event_id,omitempty"`
	HabitID   int64     `json:"habit_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Type      Trigger   `json:"type"`
	IsRead    bool      `json:"is_read"`
}

// Store is the persistence surface a scan cycle needs.
type Store interface {
	// ListHabits returns every habit in stable insertion order.
	ListHabits(ctx context.Context) ([]Habit, error)
	ListLogs(ctx context.Context, habitID int64) ([]LogEntry, error)
	// InsertLog stores entry unless (HabitID, Date) already exists, in which
	// case it does nothing and reports inserted=false.
	InsertLog(ctx context.Context, entry LogEntry) (inserted bool, err error)
	UpdateHabit(ctx context.Context, h Habit) error
}

// Repository is the full persistence surface: the scan Store plus the user
// facing operations on habits, logs and notification history. Implemented by
// the SQLite and Postgres stores.
type Repository interface {
	Store

	CreateHabit(ctx context.Context, h *Habit) error
	// GetHabit returns ErrNotFound when id does not exist.
	GetHabit(ctx context.Context, id int64) (*Habit, error)
	// DeleteHabit removes the habit and its log entries.
	DeleteHabit(ctx context.Context, id int64) error

	// GetLog returns nil, nil when the day has no entry.
	GetLog(ctx context.Context, habitID int64, day date.Date) (*LogEntry, error)
	DeleteLog(ctx context.Context, habitID int64, day date.Date) (deleted bool, err error)
	// ListLogsBetween returns entries in [from, to]; a zero bound is open.
	ListLogsBetween(ctx context.Context, habitID int64, from, to date.Date) ([]LogEntry, error)
	// CountCompleted counts completed entries in [from, to]; a zero bound is open.
	CountCompleted(ctx context.Context, habitID int64, from, to date.Date) (int, error)

	// RecordHistory stores n and fills in its ID. When a record with the same
	// non-empty EventID exists it stores nothing, overwrites n with the
	// stored record and reports recorded=false.
	RecordHistory(ctx context.Context, n *Notification) (recorded bool, err error)
	ListNotifications(ctx context.Context, limit int) ([]Notification, error)
	UnreadCount(ctx context.Context) (int, error)
	MarkRead(ctx context.Context, id int64) error
	MarkAllRead(ctx context.Context) (int64, error)

	Close() error
}

// FindLog returns the entry for day, if any.
func FindLog(logs []LogEntry, day date.Date) (LogEntry, bool) {
	for _, l := range logs {
		if l.Date.Equal(day) {
			return l, true
		}
	}
	return LogEntry{}, false
}
