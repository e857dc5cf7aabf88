package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/lazypower/keepstreak/internal/date"
	"github.com/lazypower/keepstreak/internal/habit"
)

const logColumns = `id, habit_id, date, is_completed, is_frozen, actual_value`

func (s *Store) InsertLog(ctx context.Context, entry habit.LogEntry) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO habit_logs (habit_id, date, is_completed, is_frozen, actual_value)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (habit_id, date) DO NOTHING
	`, entry.HabitID, entry.Date.Time(), entry.IsCompleted, entry.IsFrozen, entry.ActualValue)
	if err != nil {
		return false, fmt.Errorf("insert log: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) ListLogs(ctx context.Context, habitID int64) ([]habit.LogEntry, error) {
	return s.ListLogsBetween(ctx, habitID, date.Date{}, date.Date{})
}

func (s *Store) ListLogsBetween(ctx context.Context, habitID int64, from, to date.Date) ([]habit.LogEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+logColumns+` FROM habit_logs
		WHERE habit_id = $1
		  AND ($2::date IS NULL OR date >= $2::date)
		  AND ($3::date IS NULL OR date <= $3::date)
		ORDER BY date
	`, habitID, nullDate(from), nullDate(to))
	if err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	defer rows.Close()

	var logs []habit.LogEntry
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (s *Store) GetLog(ctx context.Context, habitID int64, day date.Date) (*habit.LogEntry, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+logColumns+` FROM habit_logs WHERE habit_id = $1 AND date = $2
	`, habitID, day.Time())
	l, err := scanLog(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get log: %w", err)
	}
	return &l, nil
}

func (s *Store) DeleteLog(ctx context.Context, habitID int64, day date.Date) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM habit_logs WHERE habit_id = $1 AND date = $2`, habitID, day.Time())
	if err != nil {
		return false, fmt.Errorf("delete log: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) CountCompleted(ctx context.Context, habitID int64, from, to date.Date) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM habit_logs
		WHERE habit_id = $1 AND is_completed
		  AND ($2::date IS NULL OR date >= $2::date)
		  AND ($3::date IS NULL OR date <= $3::date)
	`, habitID, nullDate(from), nullDate(to)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count completed: %w", err)
	}
	return n, nil
}

func scanLog(row pgx.Row) (habit.LogEntry, error) {
	var (
		l   habit.LogEntry
		day time.Time
	)
	if err := row.Scan(&l.ID, &l.HabitID, &day, &l.IsCompleted, &l.IsFrozen, &l.ActualValue); err != nil {
		return habit.LogEntry{}, err
	}
	l.Date = date.FromTime(day.UTC())
	return l, nil
}
