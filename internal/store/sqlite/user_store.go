package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/jsacert/exam-engine/internal/model"
)

func (q *Store) UpsertUser(ctx context.Context, u *model.User) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx,
		`INSERT INTO users (external_id, first_name, last_name, username)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (external_id) DO UPDATE SET
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			username = excluded.username,
			last_seen_at = unixepoch()
		 RETURNING id`,
		u.ExternalID, u.FirstName, u.LastName, u.Username,
	).Scan(&id)
	return id, translate(err)
}

func (q *Store) GetUser(ctx context.Context, id int64) (*model.User, error) {
	u := &model.User{}
	var createdAt, lastSeenAt int64
	var lastFailedAt sql.NullInt64
	err := q.db.QueryRowContext(ctx,
		`SELECT id, external_id, first_name, last_name, username, created_at, last_seen_at, last_failed_at
		 FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.ExternalID, &u.FirstName, &u.LastName, &u.Username, &createdAt, &lastSeenAt, &lastFailedAt)
	if err != nil {
		return nil, translate(err)
	}
	u.CreatedAt = time.Unix(createdAt, 0).UTC()
	u.LastSeenAt = time.Unix(lastSeenAt, 0).UTC()
	u.LastFailedAt = timePtr(lastFailedAt)
	return u, nil
}

func (q *Store) LastFailureAt(ctx context.Context, userID int64) (*time.Time, error) {
	var v sql.NullInt64
	err := q.db.QueryRowContext(ctx,
		`SELECT last_failed_at FROM users WHERE id = $1`, userID).Scan(&v)
	if err != nil {
		return nil, translate(err)
	}
	return timePtr(v), nil
}
