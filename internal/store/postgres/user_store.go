package postgres

import (
	"context"
	"time"

	"github.com/jsacert/exam-engine/internal/model"
)

func (p *Store) UpsertUser(ctx context.Context, u *model.User) (int64, error) {
	var id int64
	err := p.pool.QueryRow(ctx,
		`INSERT INTO users (external_id, first_name, last_name, username)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (external_id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			username = EXCLUDED.username,
			last_seen_at = NOW()
		 RETURNING id`,
		u.ExternalID, u.FirstName, u.LastName, u.Username,
	).Scan(&id)
	return id, translate(err)
}

func (p *Store) GetUser(ctx context.Context, id int64) (*model.User, error) {
	u := &model.User{}
	err := p.pool.QueryRow(ctx,
		`SELECT id, external_id, first_name, last_name, username, created_at, last_seen_at, last_failed_at
		 FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.ExternalID, &u.FirstName, &u.LastName, &u.Username, &u.CreatedAt, &u.LastSeenAt, &u.LastFailedAt)
	if err != nil {
		return nil, translate(err)
	}
	return u, nil
}

func (p *Store) LastFailureAt(ctx context.Context, userID int64) (*time.Time, error) {
	var ts *time.Time
	err := p.pool.QueryRow(ctx,
		`SELECT last_failed_at FROM users WHERE id = $1`, userID).Scan(&ts)
	if err != nil {
		return nil, translate(err)
	}
	return ts, nil
}
