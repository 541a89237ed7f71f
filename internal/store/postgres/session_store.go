package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jsacert/exam-engine/internal/model"
	"github.com/jsacert/exam-engine/internal/store"
)

const sessionColumns = `id, user_id, exam_id, mode, status, started_at, expires_at, finished_at,
	current_index, total_count, warn10_sent, warn5_sent, warn1_sent, correct_count, score_percent`

func scanSession(row pgx.Row) (*model.Session, error) {
	s := &model.Session{}
	err := row.Scan(
		&s.ID, &s.UserID, &s.ExamID, &s.Mode, &s.Status, &s.StartedAt, &s.ExpiresAt, &s.FinishedAt,
		&s.CurrentIndex, &s.TotalCount, &s.Warn10Sent, &s.Warn5Sent, &s.Warn1Sent,
		&s.CorrectCount, &s.ScorePercent,
	)
	if err != nil {
		return nil, translate(err)
	}
	return s, nil
}

// CreateSession inserts the session row and all question bindings in one
// transaction. The partial unique index on (user_id) WHERE status='active'
// turns a concurrent duplicate create into store.ErrConflict.
func (p *Store) CreateSession(ctx context.Context, s *model.Session, questionIDs []int64) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO exam_sessions
			(id, user_id, exam_id, mode, status, started_at, expires_at, current_index, total_count)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		s.ID, s.UserID, s.ExamID, s.Mode, s.Status, s.StartedAt, s.ExpiresAt, s.CurrentIndex, s.TotalCount,
	)
	if err != nil {
		return translate(err)
	}

	batch := &pgx.Batch{}
	for i, qid := range questionIDs {
		batch.Queue(
			`INSERT INTO session_questions (session_id, question_id, q_index, flagged)
			 VALUES ($1, $2, $3, FALSE)`,
			s.ID, qid, i+1,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return translate(err)
	}

	return tx.Commit(ctx)
}

func (p *Store) GetSession(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	return scanSession(p.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM exam_sessions WHERE id = $1`, id))
}

func (p *Store) GetActiveSessionForUser(ctx context.Context, userID int64) (*model.Session, error) {
	return scanSession(p.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+`
		 FROM exam_sessions
		 WHERE user_id = $1 AND status = 'active'
		 ORDER BY started_at DESC
		 LIMIT 1`, userID))
}

func (p *Store) SetCurrentIndex(ctx context.Context, id uuid.UUID, index int) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE exam_sessions SET current_index = $1 WHERE id = $2`, index, id)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (p *Store) QuestionAt(ctx context.Context, id uuid.UUID, index int) (*model.SessionQuestion, error) {
	sq := &model.SessionQuestion{}
	err := p.pool.QueryRow(ctx,
		`SELECT session_id, question_id, q_index, flagged
		 FROM session_questions
		 WHERE session_id = $1 AND q_index = $2`, id, index,
	).Scan(&sq.SessionID, &sq.QuestionID, &sq.Index, &sq.Flagged)
	if err != nil {
		return nil, translate(err)
	}
	return sq, nil
}

func (p *Store) SessionQuestions(ctx context.Context, id uuid.UUID) ([]model.SessionQuestion, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT session_id, question_id, q_index, flagged
		 FROM session_questions
		 WHERE session_id = $1
		 ORDER BY q_index`, id)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var out []model.SessionQuestion
	for rows.Next() {
		var sq model.SessionQuestion
		if err := rows.Scan(&sq.SessionID, &sq.QuestionID, &sq.Index, &sq.Flagged); err != nil {
			return nil, err
		}
		out = append(out, sq)
	}
	if len(out) == 0 {
		return nil, store.ErrNotFound
	}
	return out, rows.Err()
}

func (p *Store) SetFlag(ctx context.Context, id uuid.UUID, index int, flagged bool) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE session_questions SET flagged = $1 WHERE session_id = $2 AND q_index = $3`,
		flagged, id, index)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (p *Store) ClearFlags(ctx context.Context, id uuid.UUID) error {
	_, err := p.pool.Exec(ctx,
		`UPDATE session_questions SET flagged = FALSE WHERE session_id = $1`, id)
	return translate(err)
}

// ReplaceAnswer clears previous selections and inserts the new one as a
// single transaction, so a concurrent reader never observes zero rows.
func (p *Store) ReplaceAnswer(ctx context.Context, id uuid.UUID, questionID, answerID int64) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM session_answers WHERE session_id = $1 AND question_id = $2`,
		id, questionID); err != nil {
		return translate(err)
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO session_answers (session_id, question_id, answer_id) VALUES ($1, $2, $3)`,
		id, questionID, answerID); err != nil {
		return translate(err)
	}

	return tx.Commit(ctx)
}

// ToggleAnswer flips set membership for one option. The delete-first shape
// makes concurrent toggles of the same option serialize on the unique row
// instead of racing two separate round trips.
func (p *Store) ToggleAnswer(ctx context.Context, id uuid.UUID, questionID, answerID int64) (bool, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`DELETE FROM session_answers WHERE session_id = $1 AND question_id = $2 AND answer_id = $3`,
		id, questionID, answerID)
	if err != nil {
		return false, translate(err)
	}

	selected := false
	if tag.RowsAffected() == 0 {
		if _, err := tx.Exec(ctx,
			`INSERT INTO session_answers (session_id, question_id, answer_id) VALUES ($1, $2, $3)`,
			id, questionID, answerID); err != nil {
			return false, translate(err)
		}
		selected = true
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return selected, nil
}

func (p *Store) SelectedAnswerIDs(ctx context.Context, id uuid.UUID, questionID int64) ([]int64, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT answer_id FROM session_answers
		 WHERE session_id = $1 AND question_id = $2
		 ORDER BY answer_id`, id, questionID)
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

func (p *Store) ClearAnswers(ctx context.Context, id uuid.UUID) error {
	_, err := p.pool.Exec(ctx,
		`DELETE FROM session_answers WHERE session_id = $1`, id)
	return translate(err)
}

func (p *Store) ClearQuestionAnswers(ctx context.Context, id uuid.UUID, questionID int64) error {
	_, err := p.pool.Exec(ctx,
		`DELETE FROM session_answers WHERE session_id = $1 AND question_id = $2`, id, questionID)
	return translate(err)
}

func (p *Store) Progress(ctx context.Context, id uuid.UUID) (model.Progress, error) {
	var prog model.Progress
	err := p.pool.QueryRow(ctx,
		`SELECT
			(SELECT COUNT(*) FROM session_questions sq
			  WHERE sq.session_id = s.id
			    AND EXISTS (SELECT 1 FROM session_answers sa
			                 WHERE sa.session_id = sq.session_id
			                   AND sa.question_id = sq.question_id)) AS answered,
			(SELECT COUNT(*) FROM session_questions sq
			  WHERE sq.session_id = s.id AND sq.flagged) AS flagged,
			s.total_count
		 FROM exam_sessions s
		 WHERE s.id = $1`, id,
	).Scan(&prog.Answered, &prog.Flagged, &prog.Total)
	if err != nil {
		return model.Progress{}, translate(err)
	}
	return prog, nil
}

// FinalizeSession performs the conditional terminal transition. The WHERE
// status='active' guard decides the submit/auto-submit race: zero affected
// rows means someone else already finalized and the caller must back off.
func (p *Store) FinalizeSession(ctx context.Context, id uuid.UUID, status model.SessionStatus, grade *store.GradeRecord, finishedAt time.Time) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var tag pgconn.CommandTag
	if grade != nil {
		tag, err = tx.Exec(ctx,
			`UPDATE exam_sessions
			 SET status = $1, finished_at = $2, correct_count = $3, score_percent = $4
			 WHERE id = $5 AND status = 'active'`,
			status, finishedAt, grade.Correct, grade.Percent, id)
	} else {
		tag, err = tx.Exec(ctx,
			`UPDATE exam_sessions
			 SET status = $1, finished_at = $2
			 WHERE id = $3 AND status = 'active'`,
			status, finishedAt, id)
	}
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a lost race from a missing session.
		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM exam_sessions WHERE id = $1)`, id).Scan(&exists); err != nil {
			return translate(err)
		}
		if !exists {
			return store.ErrNotFound
		}
		return store.ErrStaleState
	}

	if grade != nil && grade.MarkFailure {
		if _, err := tx.Exec(ctx,
			`UPDATE users SET last_failed_at = $1
			 WHERE id = (SELECT user_id FROM exam_sessions WHERE id = $2)`,
			finishedAt, id); err != nil {
			return translate(err)
		}
	}

	return tx.Commit(ctx)
}

func (p *Store) MarkWarningSent(ctx context.Context, id uuid.UUID, thresholdMinutes int) error {
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

	tag, err := p.pool.Exec(ctx,
		`UPDATE exam_sessions SET `+column+` = TRUE WHERE id = $1`, id)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (p *Store) ListActiveExamSessions(ctx context.Context) ([]model.Session, error) {
	rows, err := p.pool.Query(ctx,
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
		var s model.Session
		if err := rows.Scan(
			&s.ID, &s.UserID, &s.ExamID, &s.Mode, &s.Status, &s.StartedAt, &s.ExpiresAt, &s.FinishedAt,
			&s.CurrentIndex, &s.TotalCount, &s.Warn10Sent, &s.Warn5Sent, &s.Warn1Sent,
			&s.CorrectCount, &s.ScorePercent,
		); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
