package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jsacert/exam-engine/internal/model"
	"github.com/jsacert/exam-engine/internal/store"
)

const sessionColumns = `id, user_id, exam_id, mode, status, started_at, expires_at, finished_at,
	current_index, total_count, warn10_sent, warn5_sent, warn1_sent, correct_count, score_percent`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*model.Session, error) {
	s := &model.Session{}
	var id string
	var startedAt int64
	var expiresAt, finishedAt, correct, percent sql.NullInt64
	err := row.Scan(
		&id, &s.UserID, &s.ExamID, &s.Mode, &s.Status, &startedAt, &expiresAt, &finishedAt,
		&s.CurrentIndex, &s.TotalCount, &s.Warn10Sent, &s.Warn5Sent, &s.Warn1Sent,
		&correct, &percent,
	)
	if err != nil {
		return nil, translate(err)
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse session id: %w", err)
	}
	s.ID = parsed
	s.StartedAt = time.Unix(startedAt, 0).UTC()
	s.ExpiresAt = timePtr(expiresAt)
	s.FinishedAt = timePtr(finishedAt)
	s.CorrectCount = intPtr(correct)
	s.ScorePercent = intPtr(percent)
	return s, nil
}

func (q *Store) CreateSession(ctx context.Context, s *model.Session, questionIDs []int64) error {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO exam_sessions
			(id, user_id, exam_id, mode, status, started_at, expires_at, current_index, total_count)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		s.ID.String(), s.UserID, s.ExamID, s.Mode, s.Status, s.StartedAt.Unix(), unixPtr(s.ExpiresAt), s.CurrentIndex, s.TotalCount,
	)
	if err != nil {
		return translate(err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO session_questions (session_id, question_id, q_index, flagged) VALUES ($1, $2, $3, 0)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, qid := range questionIDs {
		if _, err := stmt.ExecContext(ctx, s.ID.String(), qid, i+1); err != nil {
			return translate(err)
		}
	}

	return tx.Commit()
}

func (q *Store) GetSession(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	return scanSession(q.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM exam_sessions WHERE id = $1`, id.String()))
}

func (q *Store) GetActiveSessionForUser(ctx context.Context, userID int64) (*model.Session, error) {
	return scanSession(q.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+`
		 FROM exam_sessions
		 WHERE user_id = $1 AND status = 'active'
		 ORDER BY started_at DESC
		 LIMIT 1`, userID))
}

func (q *Store) SetCurrentIndex(ctx context.Context, id uuid.UUID, index int) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE exam_sessions SET current_index = $1 WHERE id = $2`, index, id.String())
	if err != nil {
		return translate(err)
	}
	return requireAffected(res)
}

func (q *Store) QuestionAt(ctx context.Context, id uuid.UUID, index int) (*model.SessionQuestion, error) {
	sq := &model.SessionQuestion{SessionID: id}
	err := q.db.QueryRowContext(ctx,
		`SELECT question_id, q_index, flagged
		 FROM session_questions
		 WHERE session_id = $1 AND q_index = $2`, id.String(), index,
	).Scan(&sq.QuestionID, &sq.Index, &sq.Flagged)
	if err != nil {
		return nil, translate(err)
	}
	return sq, nil
}

func (q *Store) SessionQuestions(ctx context.Context, id uuid.UUID) ([]model.SessionQuestion, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT question_id, q_index, flagged
		 FROM session_questions
		 WHERE session_id = $1
		 ORDER BY q_index`, id.String())
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var out []model.SessionQuestion
	for rows.Next() {
		sq := model.SessionQuestion{SessionID: id}
		if err := rows.Scan(&sq.QuestionID, &sq.Index, &sq.Flagged); err != nil {
			return nil, err
		}
		out = append(out, sq)
	}
	if len(out) == 0 {
		return nil, store.ErrNotFound
	}
	return out, rows.Err()
}

func (q *Store) SetFlag(ctx context.Context, id uuid.UUID, index int, flagged bool) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE session_questions SET flagged = $1 WHERE session_id = $2 AND q_index = $3`,
		flagged, id.String(), index)
	if err != nil {
		return translate(err)
	}
	return requireAffected(res)
}

func (q *Store) ClearFlags(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE session_questions SET flagged = 0 WHERE session_id = $1`, id.String())
	return translate(err)
}

func (q *Store) ReplaceAnswer(ctx context.Context, id uuid.UUID, questionID, answerID int64) error {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM session_answers WHERE session_id = $1 AND question_id = $2`,
		id.String(), questionID); err != nil {
		return translate(err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO session_answers (session_id, question_id, answer_id) VALUES ($1, $2, $3)`,
		id.String(), questionID, answerID); err != nil {
		return translate(err)
	}

	return tx.Commit()
}

func (q *Store) ToggleAnswer(ctx context.Context, id uuid.UUID, questionID, answerID int64) (bool, error) {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`DELETE FROM session_answers WHERE session_id = $1 AND question_id = $2 AND answer_id = $3`,
		id.String(), questionID, answerID)
	if err != nil {
		return false, translate(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	selected := false
	if affected == 0 {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO session_answers (session_id, question_id, answer_id) VALUES ($1, $2, $3)`,
			id.String(), questionID, answerID); err != nil {
			return false, translate(err)
		}
		selected = true
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return selected, nil
}

func (q *Store) SelectedAnswerIDs(ctx context.Context, id uuid.UUID, questionID int64) ([]int64, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT answer_id FROM session_answers
		 WHERE session_id = $1 AND question_id = $2
		 ORDER BY answer_id`, id.String(), questionID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var aid int64
		if err := rows.Scan(&aid); err != nil {
			return nil, err
		}
		ids = append(ids, aid)
	}
	return ids, rows.Err()
}

func (q *Store) ClearAnswers(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.ExecContext(ctx,
		`DELETE FROM session_answers WHERE session_id = $1`, id.String())
	return translate(err)
}

func (q *Store) ClearQuestionAnswers(ctx context.Context, id uuid.UUID, questionID int64) error {
	_, err := q.db.ExecContext(ctx,
		`DELETE FROM session_answers WHERE session_id = $1 AND question_id = $2`,
		id.String(), questionID)
	return translate(err)
}

func (q *Store) Progress(ctx context.Context, id uuid.UUID) (model.Progress, error) {
	var prog model.Progress
	err := q.db.QueryRowContext(ctx,
		`SELECT
			(SELECT COUNT(*) FROM session_questions sq
			  WHERE sq.session_id = s.id
			    AND EXISTS (SELECT 1 FROM session_answers sa
			                 WHERE sa.session_id = sq.session_id
			                   AND sa.question_id = sq.question_id)),
			(SELECT COUNT(*) FROM session_questions sq
			  WHERE sq.session_id = s.id AND sq.flagged = 1),
			s.total_count
		 FROM exam_sessions s
		 WHERE s.id = $1`, id.String(),
	).Scan(&prog.Answered, &prog.Flagged, &prog.Total)
	if err != nil {
		return model.Progress{}, translate(err)
	}
	return prog, nil
}

func (q *Store) FinalizeSession(ctx context.Context, id uuid.UUID, status model.SessionStatus, grade *store.GradeRecord, finishedAt time.Time) error {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var res sql.Result
	if grade != nil {
		res, err = tx.ExecContext(ctx,
			`UPDATE exam_sessions
			 SET status = $1, finished_at = $2, correct_count = $3, score_percent = $4
			 WHERE id = $5 AND status = 'active'`,
			status, finishedAt.Unix(), grade.Correct, grade.Percent, id.String())
	} else {
		res, err = tx.ExecContext(ctx,
			`UPDATE exam_sessions
			 SET status = $1, finished_at = $2
			 WHERE id = $3 AND status = 'active'`,
			status, finishedAt.Unix(), id.String())
	}
	if err != nil {
		return translate(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var exists int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM exam_sessions WHERE id = $1`, id.String()).Scan(&exists)
		if err != nil {
			return translate(err)
		}
		if exists == 0 {
			return store.ErrNotFound
		}
		return store.ErrStaleState
	}

	if grade != nil && grade.MarkFailure {
		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET last_failed_at = $1
			 WHERE id = (SELECT user_id FROM exam_sessions WHERE id = $2)`,
			finishedAt.Unix(), id.String()); err != nil {
			return translate(err)
		}
	}

	return tx.Commit()
}

func (q *Store) MarkWarningSent(ctx context.Context, id uuid.UUID, thresholdMinutes int) error {
	var column string
	switch thresholdMinutes {
	case 10:
		column = "warn10_sent"
	case 5:
		column = "warn5_sent"
	case 1:
		column = "warn1_sent"
	default:
		return fmt.Errorf("unknown warning threshold: %d", thresholdMinutes)
	}

	res, err := q.db.ExecContext(ctx,
		`UPDATE exam_sessions SET `+column+` = 1 WHERE id = $1`, id.String())
	if err != nil {
		return translate(err)
	}
	return requireAffected(res)
}

func (q *Store) ListActiveExamSessions(ctx context.Context) ([]model.Session, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+sessionColumns+`
		 FROM exam_sessions
		 WHERE status = 'active' AND mode = 'exam' AND expires_at IS NOT NULL
		 ORDER BY started_at`)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var out []model.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
