package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "habits: tracked activities with streak and freeze state",
		SQL: `
CREATE TABLE habits (
    id                      INTEGER PRIMARY KEY,
    name                    TEXT NOT NULL,
    target_value            INTEGER NOT NULL DEFAULT 1,
    unit                    TEXT NOT NULL DEFAULT '',
    schedule_type           TEXT NOT NULL DEFAULT 'daily',
    description             TEXT NOT NULL DEFAULT '',

    -- Streak
    current_streak          INTEGER NOT NULL DEFAULT 0 CHECK (current_streak >= 0),
    best_streak             INTEGER NOT NULL DEFAULT 0 CHECK (best_streak >= 0),
    last_completed_date     TEXT,

    -- Freeze allowance
    monthly_freeze_count    INTEGER NOT NULL DEFAULT 2 CHECK (monthly_freeze_count >= 0),
    last_freeze_reset_month TEXT NOT NULL DEFAULT '',

    created_at              INTEGER NOT NULL
);
`,
	},
	{
		Version:     2,
		Description: "habit_logs: one entry per habit per day",
		SQL: `
CREATE TABLE habit_logs (
    id            INTEGER PRIMARY KEY,
    habit_id      INTEGER NOT NULL,
    date          TEXT NOT NULL,
    is_completed  INTEGER NOT NULL DEFAULT 0,
    is_frozen     INTEGER NOT NULL DEFAULT 0,
    actual_value  INTEGER NOT NULL DEFAULT 0,

    UNIQUE (habit_id, date),
    FOREIGN KEY (habit_id) REFERENCES habits(id) ON DELETE CASCADE
);

CREATE INDEX idx_logs_habit_date ON habit_logs(habit_id, date DESC);
`,
	},
	{
		Version:     3,
		Description: "notifications: delivered alert history",
		SQL: `
CREATE TABLE notifications (
    id         INTEGER PRIMARY KEY,
    habit_id   INTEGER NOT NULL DEFAULT 0,
    title      TEXT NOT NULL,
    message    TEXT NOT NULL,
    timestamp  INTEGER NOT NULL,
    type       TEXT NOT NULL CHECK (type IN ('INACTIVITY', 'STREAK_FREEZE')),
    is_read    INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX idx_notifications_timestamp ON notifications(timestamp DESC);
CREATE INDEX idx_notifications_unread    ON notifications(is_read);
`,
	},
	{
		Version:     4,
		Description: "notifications: event_id for idempotent history, REMINDER type",
		// SQLite cannot alter a CHECK constraint, so the table is rebuilt.
		SQL: `
CREATE TABLE notifications_v4 (
    id         INTEGER PRIMARY KEY,
    event_id   TEXT UNIQUE,
    habit_id   INTEGER NOT NULL DEFAULT 0,
    title      TEXT NOT NULL,
    message    TEXT NOT NULL,
    timestamp  INTEGER NOT NULL,
    type       TEXT NOT NULL CHECK (type IN ('INACTIVITY', 'STREAK_FREEZE', 'REMINDER')),
    is_read    INTEGER NOT NULL DEFAULT 0
);

INSERT INTO notifications_v4 (id, habit_id, title, message, timestamp, type, is_read)
    SELECT id, habit_id, title, message, timestamp, type, is_read FROM notifications;

DROP TABLE notifications;
ALTER TABLE notifications_v4 RENAME TO notifications;

CREATE INDEX idx_notifications_timestamp ON notifications(timestamp DESC);
CREATE INDEX idx_notifications_unread    ON notifications(is_read);
`,
	},
	{
		Version:     5,
		Description: "habits: daily reminder time",
		SQL: `
ALTER TABLE habits ADD COLUMN reminder_time TEXT NOT NULL DEFAULT '';
`,
	},
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
