package store

import (
	"context"
	"path/filepath"
	"testing"
)

func openTest(t *testing.T) *DB {
	t.Helper()
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenMemory(t *testing.T) {
	db := openTest(t)
	if db.Path != ":memory:" {
		t.Errorf("Path = %q, want :memory:", db.Path)
	}
}

func TestSchemaVersion(t *testing.T) {
	db := openTest(t)

	v, err := db.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != len(migrations) {
		t.Errorf("SchemaVersion = %d, want %d", v, len(migrations))
	}
}

func TestTablesExist(t *testing.T) {
	db := openTest(t)

	tables := []string{"schema_versions", "habits", "habit_logs", "notifications"}
	for _, table := range tables {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found: %v", table, err)
		}
	}
}

func TestHabitLogsUniquePerDay(t *testing.T) {
	db := openTest(t)

	if _, err := db.Exec(`INSERT INTO habits (name, created_at) VALUES ('read', 1000)`); err != nil {
		t.Fatalf("insert habit: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO habit_logs (habit_id, date) VALUES (1, '2025-11-01')`); err != nil {
		t.Fatalf("first log: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO habit_logs (habit_id, date) VALUES (1, '2025-11-01')`); err == nil {
		t.Error("expected unique violation for duplicate (habit_id, date)")
	}
}

func TestNotificationTypeConstraint(t *testing.T) {
	db := openTest(t)

	_, err := db.Exec(`
		INSERT INTO notifications (title, message, timestamp, type)
		VALUES ('t', 'm', 1000, 'BOGUS')
	`)
	if err == nil {
		t.Error("expected error for invalid type, got nil")
	}
}

func TestMigrateKeepsHistoryFromVersion3(t *testing.T) {
	all := migrations
	migrations = all[:3]
	db, err := OpenMemory()
	migrations = all
	if err != nil {
		t.Fatalf("OpenMemory at version 3: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(`
		INSERT INTO notifications (habit_id, title, message, timestamp, type, is_read)
		VALUES (1, 'KeepStreak: read', 'm', 1000, 'INACTIVITY', 1)
	`); err != nil {
		t.Fatalf("insert v3 notification: %v", err)
	}

	if err := db.migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if v, _ := db.SchemaVersion(); v != len(all) {
		t.Errorf("SchemaVersion = %d, want %d", v, len(all))
	}

	list, err := db.ListNotifications(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListNotifications: %v", err)
	}
	if len(list) != 1 || list[0].EventID != "" || !list[0].IsRead {
		t.Errorf("migrated history = %+v", list)
	}
	if _, err := db.Exec(`
		INSERT INTO notifications (event_id, title, message, timestamp, type)
		VALUES ('ev-1', 't', 'm', 2000, 'REMINDER')
	`); err != nil {
		t.Errorf("REMINDER type after migration: %v", err)
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	db := openTest(t)

	// Running migrate again should be a no-op
	if err := db.migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}

	v, err := db.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != len(migrations) {
		t.Errorf("SchemaVersion after re-migrate = %d, want %d", v, len(migrations))
	}
}

func TestForeignKeysEnabled(t *testing.T) {
	db := openTest(t)

	var fk int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("query foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("foreign_keys = %d, want 1", fk)
	}
}

func TestOpenFileAppliesPragmasPerConnection(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "nested", "ks.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()
	db.SetMaxIdleConns(0)

	// A fresh connection each time: the settings must come from the DSN.
	for i := 0; i < 3; i++ {
		var fk int
		if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
			t.Fatalf("query foreign_keys: %v", err)
		}
		if fk != 1 {
			t.Errorf("connection %d: foreign_keys = %d, want 1", i, fk)
		}
	}

	var mode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("query journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
}

func TestPragmaStmt(t *testing.T) {
	if got := pragmaStmt("busy_timeout(5000)"); got != "busy_timeout=5000" {
		t.Errorf("pragmaStmt = %q", got)
	}
	if got := pragmaStmt("optimize"); got != "optimize" {
		t.Errorf("pragmaStmt = %q", got)
	}
}
