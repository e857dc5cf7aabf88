// Package postgres is the PostgreSQL implementation of habit.Repository,
// selected with database.driver: postgres.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/lazypower/keepstreak/internal/date"
	"github.com/lazypower/keepstreak/internal/habit"
)

var _ habit.Repository = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS habits (
    id                      BIGSERIAL PRIMARY KEY,
    name                    TEXT NOT NULL,
    target_value            INTEGER NOT NULL DEFAULT 1,
    unit                    TEXT NOT NULL DEFAULT '',
    schedule_type           TEXT NOT NULL DEFAULT 'daily',
    description             TEXT NOT NULL DEFAULT '',
    reminder_time           TEXT NOT NULL DEFAULT '',
    current_streak          INTEGER NOT NULL DEFAULT 0 CHECK (current_streak >= 0),
    best_streak             INTEGER NOT NULL DEFAULT 0 CHECK (best_streak >= 0),
    last_completed_date     DATE,
    monthly_freeze_count    INTEGER NOT NULL DEFAULT 2 CHECK (monthly_freeze_count >= 0),
    last_freeze_reset_month TEXT NOT NULL DEFAULT '',
    created_at              TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS habit_logs (
    id           BIGSERIAL PRIMARY KEY,
    habit_id     BIGINT NOT NULL REFERENCES habits(id) ON DELETE CASCADE,
    date         DATE NOT NULL,
    is_completed BOOLEAN NOT NULL DEFAULT FALSE,
    is_frozen    BOOLEAN NOT NULL DEFAULT FALSE,
    actual_value INTEGER NOT NULL DEFAULT 0,
    UNIQUE (habit_id, date)
);

CREATE TABLE IF NOT EXISTS notifications (
    id        BIGSERIAL PRIMARY KEY,
    event_id  TEXT,
    habit_id  BIGINT NOT NULL DEFAULT 0,
    title     TEXT NOT NULL,
    message   TEXT NOT NULL,
    timestamp TIMESTAMPTZ NOT NULL,
    type      TEXT NOT NULL,
    is_read   BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE INDEX IF NOT EXISTS idx_notifications_timestamp ON notifications(timestamp DESC);

-- Upgrades of databases created before reminders and event ids.
ALTER TABLE habits ADD COLUMN IF NOT EXISTS reminder_time TEXT NOT NULL DEFAULT '';
ALTER TABLE notifications ADD COLUMN IF NOT EXISTS event_id TEXT;
CREATE UNIQUE INDEX IF NOT EXISTS idx_notifications_event ON notifications(event_id);
ALTER TABLE notifications DROP CONSTRAINT IF EXISTS notifications_type_check;
ALTER TABLE notifications ADD CONSTRAINT notifications_type_check
    CHECK (type IN ('INACTIVITY', 'STREAK_FREEZE', 'REMINDER'));
`

// Store keeps habits, logs and notification history in PostgreSQL.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// Open connects to dsn, verifies the connection and ensures the schema.
func Open(ctx context.Context, dsn string, logger *zap.Logger) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 1
	poolCfg.MaxConnIdleTime = time.Minute

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(connectCtx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	logger.Info("postgres store ready",
		zap.String("host", poolCfg.ConnConfig.Host),
		zap.String("db", poolCfg.ConnConfig.Database),
	)
	return &Store{pool: pool, logger: logger}, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// PingContext checks that the pool can reach the server.
func (s *Store) PingContext(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// nullDate maps the zero Date to SQL NULL.
func nullDate(d date.Date) any {
	if d.IsZero() {
		return nil
	}
	return d.Time()
}

func fromNullTime(t *time.Time) date.Date {
	if t == nil {
		return date.Date{}
	}
	return date.FromTime(t.UTC())
}

const habitColumns = `id, name, target_value, unit, schedule_type, description, reminder_time,
	current_streak, best_streak, last_completed_date,
	monthly_freeze_count, last_freeze_reset_month, created_at`

func (s *Store) CreateHabit(ctx context.Context, h *habit.Habit) error {
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now()
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO habits (name, target_value, unit, schedule_type, description, reminder_time,
			current_streak, best_streak, last_completed_date,
			monthly_freeze_count, last_freeze_reset_month, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`, h.Name, h.TargetValue, h.Unit, h.ScheduleType, h.Description, h.ReminderTime,
		h.CurrentStreak, h.BestStreak, nullDate(h.LastCompletedDate),
		h.MonthlyFreezeCount, string(h.LastFreezeResetMonth), h.CreatedAt).Scan(&h.ID)
	if err != nil {
		return fmt.Errorf("insert habit: %w", err)
	}
	s.logger.Debug("habit created", zap.Int64("habit_id", h.ID), zap.String("habit", h.Name))
	return nil
}

func (s *Store) GetHabit(ctx context.Context, id int64) (*habit.Habit, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+habitColumns+` FROM habits WHERE id = $1`, id)
	h, err := scanHabit(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get habit %d: %w", id, habit.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get habit: %w", err)
	}
	return h, nil
}

func (s *Store) ListHabits(ctx context.Context) ([]habit.Habit, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+habitColumns+` FROM habits ORDER BY id`)
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

func (s *Store) UpdateHabit(ctx context.Context, h habit.Habit) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE habits SET
			name = $1, target_value = $2, unit = $3, schedule_type = $4, description = $5,
			reminder_time = $6, current_streak = $7, best_streak = $8, last_completed_date = $9,
			monthly_freeze_count = $10, last_freeze_reset_month = $11
		WHERE id = $12
	`, h.Name, h.TargetValue, h.Unit, h.ScheduleType, h.Description,
		h.ReminderTime, h.CurrentStreak, h.BestStreak, nullDate(h.LastCompletedDate),
		h.MonthlyFreezeCount, string(h.LastFreezeResetMonth), h.ID)
	if err != nil {
		return fmt.Errorf("update habit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update habit %d: %w", h.ID, habit.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteHabit(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM habits WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete habit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete habit %d: %w", id, habit.ErrNotFound)
	}
	return nil
}

func scanHabit(row pgx.Row) (*habit.Habit, error) {
	var (
		h         habit.Habit
		last      *time.Time
		month     string
		createdAt time.Time
	)
	err := row.Scan(&h.ID, &h.Name, &h.TargetValue, &h.Unit, &h.ScheduleType, &h.Description, &h.ReminderTime,
		&h.CurrentStreak, &h.BestStreak, &last,
		&h.MonthlyFreezeCount, &month, &createdAt)
	if err != nil {
		return nil, err
	}
	h.LastCompletedDate = fromNullTime(last)
	h.LastFreezeResetMonth = date.Month(month)
	h.CreatedAt = createdAt
	return &h, nil
}
