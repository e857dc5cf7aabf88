// Package habittest provides an in-memory habit.Store for tests.
package habittest

import (
	"context"
	"sort"
	"sync"

	"github.com/lazypower/keepstreak/internal/date"
	"github.com/lazypower/keepstreak/internal/habit"
)

// Store is a habit.Store backed by maps. Errors can be injected per method.
type Store struct {
	mu     sync.Mutex
	habits []habit.Habit
	logs   map[int64][]habit.LogEntry
	nextID int64

	ListHabitsErr  error
	ListLogsErr    error
	InsertLogErr   error
	UpdateHabitErr error

	// Updates records every habit passed to UpdateHabit.
	Updates []habit.Habit
	// Inserts records every entry that was actually stored.
	Inserts []habit.LogEntry
}

// New returns an empty Store.
func New() *Store {
	return &Store{logs: make(map[int64][]habit.LogEntry)}
}

// AddHabit appends h, assigning an ID when h.ID is zero, and returns it.
func (s *Store) AddHabit(h habit.Habit) habit.Habit {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h.ID == 0 {
		s.nextID++
		h.ID = s.nextID
	} else if h.ID > s.nextID {
		s.nextID = h.ID
	}
	s.habits = append(s.habits, h)
	return h
}

// AddLog stores entry directly, bypassing the duplicate check.
func (s *Store) AddLog(entry habit.LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs[entry.HabitID] = append(s.logs[entry.HabitID], entry)
}

// Completed adds completed entries for habitID on each day.
func (s *Store) Completed(habitID int64, days ...string) {
	for _, d := range days {
		s.AddLog(habit.LogEntry{HabitID: habitID, Date: date.MustParse(d), IsCompleted: true, ActualValue: 1})
	}
}

// Habit returns the stored copy of the habit with id.
func (s *Store) Habit(id int64) (habit.Habit, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range s.habits {
		if h.ID == id {
			return h, true
		}
	}
	return habit.Habit{}, false
}

// Logs returns the stored entries of habitID sorted by date.
func (s *Store) Logs(habitID int64) []habit.LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]habit.LogEntry(nil), s.logs[habitID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func (s *Store) ListHabits(ctx context.Context) ([]habit.Habit, error) {
	if s.ListHabitsErr != nil {
		return nil, s.ListHabitsErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]habit.Habit(nil), s.habits...), nil
}

func (s *Store) ListLogs(ctx context.Context, habitID int64) ([]habit.LogEntry, error) {
	if s.ListLogsErr != nil {
		return nil, s.ListLogsErr
	}
	return s.Logs(habitID), nil
}

func (s *Store) InsertLog(ctx context.Context, entry habit.LogEntry) (bool, error) {
	if s.InsertLogErr != nil {
		return false, s.InsertLogErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := habit.FindLog(s.logs[entry.HabitID], entry.Date); ok {
		return false, nil
	}
	s.logs[entry.HabitID] = append(s.logs[entry.HabitID], entry)
	s.Inserts = append(s.Inserts, entry)
	return true, nil
}

func (s *Store) UpdateHabit(ctx context.Context, h habit.Habit) error {
	if s.UpdateHabitErr != nil {
		return s.UpdateHabitErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.habits {
		if s.habits[i].ID == h.ID {
			s.habits[i] = h
			s.Updates = append(s.Updates, h)
			return nil
		}
	}
	return habit.ErrNotFound
}
