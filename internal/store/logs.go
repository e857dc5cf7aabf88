package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lazypower/keepstreak/internal/date"
	"github.com/lazypower/keepstreak/internal/habit"
)

const logColumns = `id, habit_id, date, is_completed, is_frozen, actual_value`

// InsertLog stores entry unless (habit_id, date) already exists. The
// conflict is resolved by the unique constraint, so two writers racing on
// the same day end with exactly one row and one of them reporting false.
func (db *DB) InsertLog(ctx context.Context, entry habit.LogEntry) (bool, error) {
	result, err := db.ExecContext(ctx, `
		INSERT INTO habit_logs (habit_id, date, is_completed, is_frozen, actual_value)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (habit_id, date) DO NOTHING
	`, entry.HabitID, entry.Date, entry.IsCompleted, entry.IsFrozen, entry.ActualValue)
	if err != nil {
		return false, fmt.Errorf("insert log: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert log rows: %w", err)
	}
	return rows > 0, nil
}

// ListLogs returns every entry of a habit, oldest first.
func (db *DB) ListLogs(ctx context.Context, habitID int64) ([]habit.LogEntry, error) {
	return db.ListLogsBetween(ctx, habitID, date.Date{}, date.Date{})
}

// ListLogsBetween returns the entries of a habit with from <= date <= to,
// oldest first. A zero bound is open.
func (db *DB) ListLogsBetween(ctx context.Context, habitID int64, from, to date.Date) ([]habit.LogEntry, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+logColumns+` FROM habit_logs
		WHERE habit_id = ?
		  AND (? IS NULL OR date >= ?)
		  AND (? IS NULL OR date <= ?)
		ORDER BY date
	`, habitID, from, from, to, to)
	if err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	defer rows.Close()

	var logs []habit.LogEntry
	for rows.Next() {
		var l habit.LogEntry
		if err := rows.Scan(&l.ID, &l.HabitID, &l.Date, &l.IsCompleted, &l.IsFrozen, &l.ActualValue); err != nil {
			return nil, fmt.Errorf("scan log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// GetLog returns the entry for (habitID, day), or nil if there is none.
func (db *DB) GetLog(ctx context.Context, habitID int64, day date.Date) (*habit.LogEntry, error) {
	var l habit.LogEntry
	err := db.QueryRowContext(ctx, `
		SELECT `+logColumns+` FROM habit_logs WHERE habit_id = ? AND date = ?
	`, habitID, day).Scan(&l.ID, &l.HabitID, &l.Date, &l.IsCompleted, &l.IsFrozen, &l.ActualValue)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get log: %w", err)
	}
	return &l, nil
}

// DeleteLog removes the entry for (habitID, day) and reports whether one existed.
func (db *DB) DeleteLog(ctx context.Context, habitID int64, day date.Date) (bool, error) {
	result, err := db.ExecContext(ctx, `DELETE FROM habit_logs WHERE habit_id = ? AND date = ?`, habitID, day)
	if err != nil {
		return false, fmt.Errorf("delete log: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete log rows: %w", err)
	}
	return rows > 0, nil
}

// CountCompleted counts completed (not frozen) entries in [from, to].
func (db *DB) CountCompleted(ctx context.Context, habitID int64, from, to date.Date) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM habit_logs
		WHERE habit_id = ? AND is_completed = 1
		  AND (? IS NULL OR date >= ?)
		  AND (? IS NULL OR date <= ?)
	`, habitID, from, from, to, to).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count completed: %w", err)
	}
	return n, nil
}
