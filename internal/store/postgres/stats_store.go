package postgres

import (
	"context"
	"time"

	"github.com/jsacert/exam-engine/internal/store"
)

func (p *Store) CountUsers(ctx context.Context) (int, error) {
	var n int
	err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, translate(err)
}

func (p *Store) CountActiveUsers(ctx context.Context, from, to time.Time) (int, error) {
	var n int
	err := p.pool.QueryRow(ctx,
		`SELECT COUNT(DISTINCT user_id)
		 FROM exam_sessions
		 WHERE started_at >= $1 AND started_at < $2`, from, to).Scan(&n)
	return n, translate(err)
}

func (p *Store) ModeUsage(ctx context.Context, from, to time.Time) ([]store.ModeUsageRow, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT mode, COUNT(*), COUNT(DISTINCT user_id)
		 FROM exam_sessions
		 WHERE started_at >= $1 AND started_at < $2
		 GROUP BY mode
		 ORDER BY mode`, from, to)
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

func (p *Store) SubmittedExamRows(ctx context.Context, from, to time.Time) ([]store.SubmittedExamRow, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT score_percent, started_at, finished_at
		 FROM exam_sessions
		 WHERE mode = 'exam' AND status = 'submitted'
		   AND finished_at >= $1 AND finished_at < $2`, from, to)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var out []store.SubmittedExamRow
	for rows.Next() {
		var r store.SubmittedExamRow
		if err := rows.Scan(&r.ScorePercent, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
