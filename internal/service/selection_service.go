package service

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/jsacert/exam-engine/internal/model"
	"github.com/jsacert/exam-engine/internal/store"
)

// TotalQuestions is the fixed size of every question set.
const TotalQuestions = 40

// Distribution is the mandated per-section quota. The four counts sum to
// TotalQuestions; there is no cross-section substitution when a pool runs dry.
var Distribution = map[model.Section]int{
	model.SectionObjects:  11,
	model.SectionClasses:  7,
	model.SectionBuiltins: 12,
	model.SectionAdvFunc:  10,
}

// SelectionService builds the randomized question set for a new session.
type SelectionService struct {
	questions store.QuestionStore
}

// NewSelectionService creates a new SelectionService.
func NewSelectionService(questions store.QuestionStore) *SelectionService {
	return &SelectionService{questions: questions}
}

// SelectQuestionSet draws each section's quota of distinct active question
// ids, then shuffles the concatenated result so section order is not
// observable to the taker. Every invocation is independently randomized.
func (s *SelectionService) SelectQuestionSet(ctx context.Context) ([]int64, error) {
	ids := make([]int64, 0, TotalQuestions)

	for _, section := range model.Sections {
		need := Distribution[section]
		part, err := s.questions.RandomActiveIDs(ctx, section, need)
		if err != nil {
			return nil, fmt.Errorf("draw section %s: %w", section, err)
		}
		if len(part) < need {
			return nil, &InsufficientPoolError{Section: section, Need: need, Got: len(part)}
		}
		ids = append(ids, part...)
	}

	// Fisher–Yates over the full 40-element sequence.
	for i := len(ids) - 1; i > 0; i-- {
		j := rand.IntN(i + 1)
		ids[i], ids[j] = ids[j], ids[i]
	}

	return ids, nil
}
