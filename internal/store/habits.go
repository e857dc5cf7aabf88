package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lazypower/keepstreak/internal/date"
	"github.com/lazypower/keepstreak/internal/habit"
)

const habitColumns = `id, name, target_value, unit, schedule_type, description, reminder_time,
	current_streak, best_streak, last_completed_date,
	monthly_freeze_count, last_freeze_reset_month, created_at`

// CreateHabit inserts h and fills in its ID and CreatedAt.
func (db *DB) CreateHabit(ctx context.Context, h *habit.Habit) error {
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now()
	}
	result, err := db.ExecContext(ctx, `
		INSERT INTO habits (name, target_value, unit, schedule_type, description, reminder_time,
			current_streak, best_streak, last_completed_date,
			monthly_freeze_count, last_freeze_reset_month, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, h.Name, h.TargetValue, h.Unit, h.ScheduleType, h.Description, h.ReminderTime,
		h.CurrentStreak, h.BestStreak, h.LastCompletedDate,
		h.MonthlyFreezeCount, string(h.LastFreezeResetMonth), h.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert habit: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("habit id: %w", err)
	}
	h.ID = id
	return nil
}

// GetHabit returns the habit with id or habit.ErrNotFound.
func (db *DB) GetHabit(ctx context.Context, id int64) (*habit.Habit, error) {
	row := db.QueryRowContext(ctx, `SELECT `+habitColumns+` FROM habits WHERE id = ?`, id)
	h, err := scanHabit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get habit %d: %w", id, habit.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get habit: %w", err)
	}
	return h, nil
}

// ListHabits returns every habit in insertion order.
func (db *DB) ListHabits(ctx context.Context) ([]habit.Habit, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+habitColumns+` FROM habits ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}
	defer rows.Close()

	var habits []habit.Habit
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan habit: %w", err)
		}
		habits = append(habits, *h)
	}
	return habits, rows.Err()
}

// UpdateHabit writes every mutable field of h.
func (db *DB) UpdateHabit(ctx context.Context, h habit.Habit) error {
	result, err := db.ExecContext(ctx, `
		UPDATE habits SET
			name = ?, target_value = ?, unit = ?, schedule_type = ?, description = ?, reminder_time = ?,
			current_streak = ?, best_streak = ?, last_completed_date = ?,
			monthly_freeze_count = ?, last_freeze_reset_month = ?
		WHERE id = ?
	`, h.Name, h.TargetValue, h.Unit, h.ScheduleType, h.Description, h.ReminderTime,
		h.CurrentStreak, h.BestStreak, h.LastCompletedDate,
		h.MonthlyFreezeCount, string(h.LastFreezeResetMonth), h.ID)
	if err != nil {
		return fmt.Errorf("update habit: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update habit rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("update habit %d: %w", h.ID, habit.ErrNotFound)
	}
	return nil
}

// DeleteHabit removes a habit and its logs. The schema also cascades, but
// foreign_keys is a per-connection pragma, so logs are deleted explicitly.
func (db *DB) DeleteHabit(ctx context.Context, id int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM habit_logs WHERE habit_id = ?`, id); err != nil {
		return fmt.Errorf("delete habit logs: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM habits WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete habit: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete habit rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("delete habit %d: %w", id, habit.ErrNotFound)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHabit(r rowScanner) (*habit.Habit, error) {
	var (
		h         habit.Habit
		month     string
		createdAt int64
	)
	err := r.Scan(&h.ID, &h.Name, &h.TargetValue, &h.Unit, &h.ScheduleType, &h.Description, &h.ReminderTime,
		&h.CurrentStreak, &h.BestStreak, &h.LastCompletedDate,
		&h.MonthlyFreezeCount, &month, &createdAt)
	if err != nil {
		return nil, err
	}
	h.LastFreezeResetMonth = date.Month(month)
	h.CreatedAt = time.UnixMilli(createdAt)
	return &h, nil
}
