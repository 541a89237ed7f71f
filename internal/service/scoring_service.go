package service

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/jsacert/exam-engine/internal/model"
	"github.com/jsacert/exam-engine/internal/store"
)

// SectionStats is the per-section slice of a grade result.
type SectionStats struct {
	Section model.Section `json:"section"`
	Total   int           `json:"total"`
	Correct int           `json:"correct"`
}

// GradeResult is the outcome of grading one session.
type GradeResult struct {
	Total     int            `json:"total"`
	Correct   int            `json:"correct"`
	Percent   int            `json:"percent"`
	BySection []SectionStats `json:"by_section"`
}

// ScoringService computes correctness from stored answers against the bank's
// answer key.
type ScoringService struct {
	sessions  store.SessionStore
	questions store.QuestionStore
}

// NewScoringService creates a new ScoringService.
func NewScoringService(sessions store.SessionStore, questions store.QuestionStore) *ScoringService {
	return &ScoringService{sessions: sessions, questions: questions}
}

// Grade scores every question of the session. A question is correct iff the
// selected option id set equals the non-empty correct set exactly; partial
// credit is never awarded and an unanswered question is always incorrect.
func (s *ScoringService) Grade(ctx context.Context, sessionID uuid.UUID) (*GradeResult, error) {
	rows, err := s.sessions.SessionQuestions(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session questions: %w", err)
	}

	bySection := make(map[model.Section]*SectionStats, len(model.Sections))
	for _, sec := range model.Sections {
		bySection[sec] = &SectionStats{Section: sec}
	}

	correctCount := 0
	for _, sq := range rows {
		q, err := s.questions.GetQuestion(ctx, sq.QuestionID)
		if err != nil {
			return nil, fmt.Errorf("load question %d: %w", sq.QuestionID, err)
		}
		stats := bySection[q.Section]
		if stats == nil {
			stats = &SectionStats{Section: q.Section}
			bySection[q.Section] = stats
		}
		stats.Total++

		ok, err := s.IsQuestionCorrect(ctx, sessionID, sq.QuestionID)
		if err != nil {
			return nil, err
		}
		if ok {
			correctCount++
			stats.Correct++
		}
	}

	result := &GradeResult{
		Total:   len(rows),
		Correct: correctCount,
		Percent: Percent(correctCount, len(rows)),
	}
	for _, sec := range model.Sections {
		result.BySection = append(result.BySection, *bySection[sec])
	}
	return result, nil
}

// IsQuestionCorrect compares the sorted selected set against the sorted
// correct set for one question.
func (s *ScoringService) IsQuestionCorrect(ctx context.Context, sessionID uuid.UUID, questionID int64) (bool, error) {
	correctIDs, err := s.questions.CorrectAnswerIDs(ctx, questionID)
	if err != nil {
		return false, fmt.Errorf("load answer key for question %d: %w", questionID, err)
	}
	chosenIDs, err := s.sessions.SelectedAnswerIDs(ctx, sessionID, questionID)
	if err != nil {
		return false, fmt.Errorf("load selections for question %d: %w", questionID, err)
	}

	if len(correctIDs) == 0 || len(correctIDs) != len(chosenIDs) {
		return false, nil
	}
	for i := range correctIDs {
		if correctIDs[i] != chosenIDs[i] {
			return false, nil
		}
	}
	return true, nil
}

// Percent converts a correct/total ratio to a whole percentage using
// round-half-up. This is the single rounding rule for all score reporting.
func Percent(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(correct) / float64(total)))
}
