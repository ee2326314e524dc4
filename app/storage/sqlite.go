package storage

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"GoEvolveAI/app/logging"
)

func getDBPath() (string, error) {
	dbPath := os.Getenv("DB_PATH")
	if dbPath != "" {
		return dbPath, nil
	}
	projectDir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting project directory: %w", err)
	}
	defaultPath := filepath.Join(projectDir, "data", "database.db")
	if err := os.MkdirAll(filepath.Dir(defaultPath), os.ModePerm); err != nil {
		return "", fmt.Errorf("creating data directory: %w", err)
	}
	logging.Log("📂 DB_PATH not set, using default", slog.LevelInfo, "path", defaultPath)
	return defaultPath, nil
}

// NewSQLiteStorage opens (or creates) the SQLite database at dbPath. An empty
// path falls back to DB_PATH and then ./data/database.db; ":memory:" is allowed.
func NewSQLiteStorage(dbPath string) (*SQLStore, error) {
	if dbPath == "" {
		var err error
		if dbPath, err = getDBPath(); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening SQLite DB at %s: %w", dbPath, err)
	}
	// One writer at a time; also keeps a :memory: database on a single connection.
	db.SetMaxOpenConns(1)
	if _, err = db.Exec(`PRAGMA foreign_keys = ON; PRAGMA busy_timeout = 5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configuring SQLite: %w", err)
	}
	return newSQLStore(db, sqliteDialect)
}
