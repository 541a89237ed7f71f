package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // driver: sqlite

	"github.com/jsacert/exam-engine/internal/config"
)

// NewSQLiteDB opens (and creates if missing) the single-file SQLite store.
// SQLite serializes writers, so a single connection avoids busy errors.
func NewSQLiteDB(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", cfg.SQLitePath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	log.Info().
		Str("path", cfg.SQLitePath).
		Msg("SQLite opened")

	return db, nil
}
