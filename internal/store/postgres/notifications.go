package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/lazypower/keepstreak/internal/habit"
)

func (s *Store) RecordHistory(ctx context.Context, n *habit.Notification) (bool, error) {
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}
	var eventID *string
	if n.EventID != "" {
		eventID = &n.EventID
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO notifications (event_id, habit_id, title, message, timestamp, type, is_read)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (event_id) DO NOTHING
		RETURNING id
	`, eventID, n.HabitID, n.Title, n.Message, n.Timestamp, string(n.Type), n.IsRead).Scan(&n.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		existing, err := scanNotification(s.pool.QueryRow(ctx,
			`SELECT `+notificationColumns+` FROM notifications WHERE event_id = $1`, n.EventID))
		if err != nil {
			return false, fmt.Errorf("get notification for event %s: %w", n.EventID, err)
		}
		*n = *existing
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert notification: %w", err)
	}
	return true, nil
}

const notificationColumns = `id, COALESCE(event_id, ''), habit_id, title, message, timestamp, type, is_read`

func scanNotification(row pgx.Row) (*habit.Notification, error) {
	var (
		n    habit.Notification
		kind string
	)
	if err := row.Scan(&n.ID, &n.EventID, &n.HabitID, &n.Title, &n.Message, &n.Timestamp, &kind, &n.IsRead); err != nil {
		return nil, err
	}
	n.Type = habit.Trigger(kind)
	return &n, nil
}

func (s *Store) ListNotifications(ctx context.Context, limit int) ([]habit.Notification, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications ORDER BY timestamp DESC, id DESC LIMIT $1
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

func (s *Store) UnreadCount(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE NOT is_read`).Scan(&n); err != nil {
		return 0, fmt.Errorf("unread count: %w", err)
	}
	return n, nil
}

func (s *Store) MarkRead(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark read %d: %w", id, habit.ErrNotFound)
	}
	return nil
}

func (s *Store) MarkAllRead(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE notifications SET is_read = TRUE WHERE NOT is_read`)
	if err != nil {
		return 0, fmt.Errorf("mark all read: %w", err)
	}
	return tag.RowsAffected(), nil
}
