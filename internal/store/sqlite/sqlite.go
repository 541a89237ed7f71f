// Package sqlite implements the store contract on a single-file SQLite
// database, matching the deployment shape of the original bot. Timestamps
// are stored as Unix seconds; booleans as 0/1 integers.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jsacert/exam-engine/internal/store"
)

// Store implements store.Store on database/sql with the modernc sqlite driver.
type Store struct {
	db *sql.DB
}

// New wraps db and ensures the schema exists.
func New(ctx context.Context, db *sql.DB) (*Store, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Store{db: db}, nil
}

var _ store.Store = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS users (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  external_id INTEGER NOT NULL UNIQUE,
  first_name TEXT,
  last_name TEXT,
  username TEXT,
  created_at INTEGER NOT NULL DEFAULT (unixepoch()),
  last_seen_at INTEGER NOT NULL DEFAULT (unixepoch()),
  last_failed_at INTEGER
);

CREATE TABLE IF NOT EXISTS questions (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  section TEXT NOT NULL,
  qtype TEXT NOT NULL,
  text TEXT NOT NULL,
  code_snippet TEXT,
  explanation TEXT,
  reference_url TEXT,
  reference_title TEXT,
  active INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS answers (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  question_id INTEGER NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
  text TEXT NOT NULL,
  is_correct INTEGER NOT NULL DEFAULT 0,
  order_index INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS exam_sessions (
  id TEXT PRIMARY KEY,
  user_id INTEGER NOT NULL REFERENCES users(id),
  exam_id INTEGER NOT NULL,
  mode TEXT NOT NULL,
  status TEXT NOT NULL,
  started_at INTEGER NOT NULL,
  expires_at INTEGER,
  finished_at INTEGER,
  current_index INTEGER NOT NULL DEFAULT 1,
  total_count INTEGER NOT NULL,
  warn10_sent INTEGER NOT NULL DEFAULT 0,
  warn5_sent INTEGER NOT NULL DEFAULT 0,
  warn1_sent INTEGER NOT NULL DEFAULT 0,
  correct_count INTEGER,
  score_percent INTEGER
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_one_active
  ON exam_sessions (user_id) WHERE status = 'active';

CREATE TABLE IF NOT EXISTS session_questions (
  session_id TEXT NOT NULL REFERENCES exam_sessions(id) ON DELETE CASCADE,
  question_id INTEGER NOT NULL REFERENCES questions(id),
  q_index INTEGER NOT NULL,
  flagged INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY (session_id, q_index),
  UNIQUE (session_id, question_id)
);

CREATE TABLE IF NOT EXISTS session_answers (
  session_id TEXT NOT NULL REFERENCES exam_sessions(id) ON DELETE CASCADE,
  question_id INTEGER NOT NULL,
  answer_id INTEGER NOT NULL,
  UNIQUE (session_id, question_id, answer_id)
);
`

func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return store.ErrConflict
	}
	return err
}

func unixPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func timePtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
