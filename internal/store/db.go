// Package store persists habits, log entries and notification history in
// SQLite.
package store

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/lazypower/keepstreak/internal/habit"
)

var _ habit.Repository = (*DB)(nil)

// DB is the keepstreak SQLite database.
type DB struct {
	*sql.DB
	Path string
}

// connPragmas are set on every connection the pool opens.
var connPragmas = []string{
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"foreign_keys(1)",
	"busy_timeout(5000)",
}

// DefaultDBPath returns ~/.keepstreak/keepstreak.db.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".keepstreak", "keepstreak.db"), nil
}

func fileDSN(path string) string {
	q := url.Values{}
	for _, p := range connPragmas {
		q.Add("_pragma", p)
	}
	return "file:" + path + "?" + q.Encode()
}

// Open opens or creates the database file at path and migrates it.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	sqlDB, err := sql.Open("sqlite", fileDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return newDB(sqlDB, path)
}

// OpenMemory opens a private in-memory database. Each :memory: connection
// is a separate database, so the pool is held to one connection and the
// pragmas are applied to it directly.
func OpenMemory() (*DB, error) {
	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	for _, p := range connPragmas {
		if _, err := sqlDB.Exec("PRAGMA " + pragmaStmt(p)); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("pragma %s: %w", p, err)
		}
	}
	return newDB(sqlDB, ":memory:")
}

// pragmaStmt turns "name(value)" into "name=value".
func pragmaStmt(p string) string {
	for i := 0; i < len(p); i++ {
		if p[i] == '(' && p[len(p)-1] == ')' {
			return p[:i] + "=" + p[i+1:len(p)-1]
		}
	}
	return p
}

func newDB(sqlDB *sql.DB, path string) (*DB, error) {
	db := &DB{DB: sqlDB, Path: path}
	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}
