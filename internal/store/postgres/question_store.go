package postgres

import (
	"context"
	"fmt"

	"github.com/jsacert/exam-engine/internal/model"
)

func (p *Store) GetQuestion(ctx context.Context, id int64) (*model.Question, error) {
	q := &model.Question{}
	err := p.pool.QueryRow(ctx,
		`SELECT id, section, qtype, text, code_snippet, explanation, reference_url, reference_title, active
		 FROM questions WHERE id = $1`, id,
	).Scan(&q.ID, &q.Section, &q.Type, &q.Text, &q.CodeSnippet, &q.Explanation, &q.ReferenceURL, &q.ReferenceTitle, &q.Active)
	if err != nil {
		return nil, translate(err)
	}
	return q, nil
}

func (p *Store) AnswersForQuestion(ctx context.Context, questionID int64) ([]model.AnswerOption, error) {
	rows, err := p.pool.Query(ctx,
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

func (p *Store) CorrectAnswerIDs(ctx context.Context, questionID int64) ([]int64, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id FROM answers
		 WHERE question_id = $1 AND is_correct
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

func (p *Store) CountActiveBySection(ctx context.Context, section model.Section) (int, error) {
	var n int
	err := p.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM questions WHERE section = $1 AND active`, section).Scan(&n)
	return n, translate(err)
}

func (p *Store) RandomActiveIDs(ctx context.Context, section model.Section, n int) ([]int64, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id FROM questions
		 WHERE section = $1 AND active
		 ORDER BY random()
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

func (p *Store) CreateQuestion(ctx context.Context, q *model.Question, options []model.AnswerOption) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO questions (section, qtype, text, code_snippet, explanation, reference_url, reference_title, active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`,
		q.Section, q.Type, q.Text, q.CodeSnippet, q.Explanation, q.ReferenceURL, q.ReferenceTitle, q.Active,
	).Scan(&q.ID)
	if err != nil {
		return translate(err)
	}

	for i := range options {
		options[i].QuestionID = q.ID
		err = tx.QueryRow(ctx,
			`INSERT INTO answers (question_id, text, is_correct, order_index)
			 VALUES ($1, $2, $3, $4)
			 RETURNING id`,
			q.ID, options[i].Text, options[i].IsCorrect, options[i].OrderIndex,
		).Scan(&options[i].ID)
		if err != nil {
			return translate(err)
		}
	}

	return tx.Commit(ctx)
}

func (p *Store) FindQuestionByText(ctx context.Context, text string) (*model.Question, error) {
	q := &model.Question{}
	err := p.pool.QueryRow(ctx,
		`SELECT id, section, qtype, text, code_snippet, explanation, reference_url, reference_title, active
		 FROM questions WHERE text = $1 LIMIT 1`, text,
	).Scan(&q.ID, &q.Section, &q.Type, &q.Text, &q.CodeSnippet, &q.Explanation, &q.ReferenceURL, &q.ReferenceTitle, &q.Active)
	if err != nil {
		return nil, translate(err)
	}
	return q, nil
}

func (p *Store) UpdateQuestionMeta(ctx context.Context, q *model.Question) error {
	_, err := p.pool.Exec(ctx,
		`UPDATE questions
		 SET explanation = $1, reference_url = $2, reference_title = $3
		 WHERE id = $4`,
		q.Explanation, q.ReferenceURL, q.ReferenceTitle, q.ID)
	return translate(err)
}
