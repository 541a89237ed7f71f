package sqlite

import (
	"context"
	"fmt"

	"github.com/jsacert/exam-engine/internal/model"
)

func (q *Store) GetQuestion(ctx context.Context, id int64) (*model.Question, error) {
	row := &model.Question{}
	err := q.db.QueryRowContext(ctx,
		`SELECT id, section, qtype, text, code_snippet, explanation, reference_url, reference_title, active
		 FROM questions WHERE id = $1`, id,
	).Scan(&row.ID, &row.Section, &row.Type, &row.Text, &row.CodeSnippet, &row.Explanation, &row.ReferenceURL, &row.ReferenceTitle, &row.Active)
	if err != nil {
		return nil, translate(err)
	}
	return row, nil
}

func (q *Store) AnswersForQuestion(ctx context.Context, questionID int64) ([]model.AnswerOption, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, question_id, text, is_correct, order_index
		 FROM answers
		 WHERE question_id = $1
		 ORDER BY order_index`, questionID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var out []model.AnswerOption
	for rows.Next() {
		var a model.AnswerOption
		if err := rows.Scan(&a.ID, &a.QuestionID, &a.Text, &a.IsCorrect, &a.OrderIndex); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (q *Store) CorrectAnswerIDs(ctx context.Context, questionID int64) ([]int64, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id FROM answers
		 WHERE question_id = $1 AND is_correct = 1
		 ORDER BY id`, questionID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (q *Store) CountActiveBySection(ctx context.Context, section model.Section) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM questions WHERE section = $1 AND active = 1`, section).Scan(&n)
	return n, translate(err)
}

func (q *Store) RandomActiveIDs(ctx context.Context, section model.Section, n int) ([]int64, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id FROM questions
		 WHERE section = $1 AND active = 1
		 ORDER BY RANDOM()
		 LIMIT $2`, section, n)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (q *Store) CreateQuestion(ctx context.Context, question *model.Question, options []model.AnswerOption) error {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO questions (section, qtype, text, code_snippet, explanation, reference_url, reference_title, active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		question.Section, question.Type, question.Text, question.CodeSnippet,
		question.Explanation, question.ReferenceURL, question.ReferenceTitle, question.Active)
	if err != nil {
		return translate(err)
	}
	question.ID, err = res.LastInsertId()
	if err != nil {
		return err
	}

	for i := range options {
		options[i].QuestionID = question.ID
		res, err := tx.ExecContext(ctx,
			`INSERT INTO answers (question_id, text, is_correct, order_index)
			 VALUES ($1, $2, $3, $4)`,
			question.ID, options[i].Text, options[i].IsCorrect, options[i].OrderIndex)
		if err != nil {
			return translate(err)
		}
		options[i].ID, err = res.LastInsertId()
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (q *Store) FindQuestionByText(ctx context.Context, text string) (*model.Question, error) {
	row := &model.Question{}
	err := q.db.QueryRowContext(ctx,
		`SELECT id, section, qtype, text, code_snippet, explanation, reference_url, reference_title, active
		 FROM questions WHERE text = $1 LIMIT 1`, text,
	).Scan(&row.ID, &row.Section, &row.Type, &row.Text, &row.CodeSnippet, &row.Explanation, &row.ReferenceURL, &row.ReferenceTitle, &row.Active)
	if err != nil {
		return nil, translate(err)
	}
	return row, nil
}

func (q *Store) UpdateQuestionMeta(ctx context.Context, question *model.Question) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE questions
		 SET explanation = $1, reference_url = $2, reference_title = $3
		 WHERE id = $4`,
		question.Explanation, question.ReferenceURL, question.ReferenceTitle, question.ID)
	return translate(err)
}
