package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// NewPostgresStorage connects to PostgreSQL (Supabase included) using a lib/pq DSN.
func NewPostgresStorage(dsn string) (*SQLStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres storage requires a dsn")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return newSQLStore(db, postgresDialect)
}

// Open picks the driver named in cfg.
func Open(cfg Config) (*SQLStore, error) {
	switch cfg.Driver {
	case "", "sqlite":
		return NewSQLiteStorage(cfg.DSN)
	case "postgres":
		return NewPostgresStorage(cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", cfg.Driver)
	}
}
