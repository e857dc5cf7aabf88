package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lazypower/keepstreak/internal/habit"
)

// RecordHistory appends a delivered notification and fills in its ID. A
// notification whose EventID is already recorded is not stored again; n is
// replaced by the existing record.
func (db *DB) RecordHistory(ctx context.Context, n *habit.Notification) (bool, error) {
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}
	result, err := db.ExecContext(ctx, `
		INSERT INTO notifications (event_id, habit_id, title, message, timestamp, type, is_read)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (event_id) DO NOTHING
	`, nullString(n.EventID), n.HabitID, n.Title, n.Message, n.Timestamp.UnixMilli(), string(n.Type), n.IsRead)
	if err != nil {
		return false, fmt.Errorf("insert notification: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert notification rows: %w", err)
	}
	if rows == 0 {
		existing, err := db.notificationByEvent(ctx, n.EventID)
		if err != nil {
			return false, err
		}
		*n = *existing
		return false, nil
	}
	id, err := result.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("notification id: %w", err)
	}
	n.ID = id
	return true, nil
}

func (db *DB) notificationByEvent(ctx context.Context, eventID string) (*habit.Notification, error) {
	row := db.QueryRowContext(ctx, `
		SELECT `+notificationColumns+` FROM notifications WHERE event_id = ?
	`, eventID)
	n, err := scanNotification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("notification for event %s: %w", eventID, habit.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get notification: %w", err)
	}
	return n, nil
}

const notificationColumns = `id, COALESCE(event_id, ''), habit_id, title, message, timestamp, type, is_read`

func scanNotification(row rowScanner) (*habit.Notification, error) {
	var (
		n    habit.Notification
		ts   int64
		kind string
	)
	if err := row.Scan(&n.ID, &n.EventID, &n.HabitID, &n.Title, &n.Message, &ts, &kind, &n.IsRead); err != nil {
		return nil, err
	}
	n.Timestamp = time.UnixMilli(ts)
	n.Type = habit.Trigger(kind)
	return &n, nil
}

// nullString maps "" to SQL NULL so unique columns admit many empty values.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// ListNotifications returns the most recent notifications, newest first.
func (db *DB) ListNotifications(ctx context.Context, limit int) ([]habit.Notification, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications ORDER BY timestamp DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []habit.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

// UnreadCount returns how many notifications have not been read.
func (db *DB) UnreadCount(ctx context.Context) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications WHERE is_read = 0`).Scan(&n); err != nil {
		return 0, fmt.Errorf("unread count: %w", err)
	}
	return n, nil
}

// MarkRead flags one notification as read.
func (db *DB) MarkRead(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, `UPDATE notifications SET is_read = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark read rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("mark read %d: %w", id, habit.ErrNotFound)
	}
	return nil
}

// MarkAllRead flags every unread notification and returns how many changed.
func (db *DB) MarkAllRead(ctx context.Context) (int64, error) {
	result, err := db.ExecContext(ctx, `UPDATE notifications SET is_read = 1 WHERE is_read = 0`)
	if err != nil {
		return 0, fmt.Errorf("mark all read: %w", err)
	}
	return result.RowsAffected()
}
