package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/jsacert/exam-engine/internal/store"
)

func (q *Store) CountUsers(ctx context.Context) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, translate(err)
}

func (q *Store) CountActiveUsers(ctx context.Context, from, to time.Time) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT user_id)
		 FROM exam_sessions
		 WHERE started_at >= $1 AND started_at < $2`, from.Unix(), to.Unix()).Scan(&n)
	return n, translate(err)
}

func (q *Store) ModeUsage(ctx context.Context, from, to time.Time) ([]store.ModeUsageRow, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT mode, COUNT(*), COUNT(DISTINCT user_id)
		 FROM exam_sessions
		 WHERE started_at >= $1 AND started_at < $2
		 GROUP BY mode
		 ORDER BY mode`, from.Unix(), to.Unix())
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var out []store.ModeUsageRow
	for rows.Next() {
		var r store.ModeUsageRow
		if err := rows.Scan(&r.Mode, &r.Sessions, &r.Users); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (q *Store) SubmittedExamRows(ctx context.Context, from, to time.Time) ([]store.SubmittedExamRow, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT score_percent, started_at, finished_at
		 FROM exam_sessions
		 WHERE mode = 'exam' AND status = 'submitted'
		   AND finished_at >= $1 AND finished_at < $2`, from.Unix(), to.Unix())
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var out []store.SubmittedExamRow
	for rows.Next() {
		var r store.SubmittedExamRow
		var percent, finishedAt sql.NullInt64
		var startedAt int64
		if err := rows.Scan(&percent, &startedAt, &finishedAt); err != nil {
			return nil, err
		}
		r.ScorePercent = intPtr(percent)
		r.StartedAt = time.Unix(startedAt, 0).UTC()
		r.FinishedAt = timePtr(finishedAt)
		out = append(out, r)
	}
	return out, rows.Err()
}
