package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jsacert/exam-engine/internal/model"
	"github.com/jsacert/exam-engine/internal/store/memory"
)

func TestPercent(t *testing.T) {
	cases := []struct {
		correct, total, want int
	}{
		{0, 40, 0},
		{40, 40, 100},
		{28, 40, 70},
		{27, 40, 68}, // 67.5 rounds half up
		{1, 3, 33},
		{2, 3, 67},
		{0, 0, 0},
		{5, 0, 0},
	}
	for _, c := range cases {
		if got := Percent(c.correct, c.total); got != c.want {
			t.Errorf("Percent(%d, %d) = %d, want %d", c.correct, c.total, got, c.want)
		}
	}
}

// newGradedSession seeds a small bank, opens a session over all of it and
// returns everything the grading tests need.
func newGradedSession(t *testing.T, st *memory.Store) (uuid.UUID, []int64) {
	t.Helper()
	ctx := context.Background()

	single := &model.Question{Section: model.SectionObjects, Type: model.QuestionTypeSingle, Text: "single q", Active: true}
	if err := st.CreateQuestion(ctx, single, []model.AnswerOption{
		{Text: "yes", IsCorrect: true, OrderIndex: 0},
		{Text: "no", OrderIndex: 1},
	}); err != nil {
		t.Fatalf("CreateQuestion: %v", err)
	}

	multi := &model.Question{Section: model.SectionClasses, Type: model.QuestionTypeMulti, Text: "multi q", Active: true}
	if err := st.CreateQuestion(ctx, multi, []model.AnswerOption{
		{Text: "a", IsCorrect: true, OrderIndex: 0},
		{Text: "b", IsCorrect: true, OrderIndex: 1},
		{Text: "c", OrderIndex: 2},
	}); err != nil {
		t.Fatalf("CreateQuestion: %v", err)
	}

	ids := []int64{single.ID, multi.ID}
	sess := &model.Session{
		ID:         uuid.New(),
		UserID:     1,
		ExamID:     1,
		Mode:       model.SessionModePractice,
		Status:     model.SessionStatusActive,
		StartedAt:  time.Now(),
		TotalCount: len(ids),
	}
	if err := st.CreateSession(ctx, sess, ids); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	return sess.ID, ids
}

func TestGradeAllCorrect(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	sessionID, ids := newGradedSession(t, st)
	svc := NewScoringService(st, st)

	for _, qid := range ids {
		key, err := st.CorrectAnswerIDs(ctx, qid)
		if err != nil {
			t.Fatalf("CorrectAnswerIDs: %v", err)
		}
		for _, aid := range key {
			if _, err := st.ToggleAnswer(ctx, sessionID, qid, aid); err != nil {
				t.Fatalf("ToggleAnswer: %v", err)
			}
		}
	}

	result, err := svc.Grade(ctx, sessionID)
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if result.Correct != 2 || result.Total != 2 || result.Percent != 100 {
		t.Fatalf("got %d/%d (%d%%), want 2/2 (100%%)", result.Correct, result.Total, result.Percent)
	}
}

func TestGradeUnansweredIsIncorrect(t *testing.T) {
	st := memory.New()
	sessionID, _ := newGradedSession(t, st)
	svc := NewScoringService(st, st)

	result, err := svc.Grade(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if result.Correct != 0 || result.Percent != 0 {
		t.Fatalf("got %d correct (%d%%), want 0", result.Correct, result.Percent)
	}
}

func TestGradeNoPartialCredit(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	sessionID, ids := newGradedSession(t, st)
	svc := NewScoringService(st, st)

	// Select only one of the two correct options on the multi question.
	key, err := st.CorrectAnswerIDs(ctx, ids[1])
	if err != nil {
		t.Fatalf("CorrectAnswerIDs: %v", err)
	}
	if _, err := st.ToggleAnswer(ctx, sessionID, ids[1], key[0]); err != nil {
		t.Fatalf("ToggleAnswer: %v", err)
	}

	ok, err := svc.IsQuestionCorrect(ctx, sessionID, ids[1])
	if err != nil {
		t.Fatalf("IsQuestionCorrect: %v", err)
	}
	if ok {
		t.Fatal("subset of the correct set must not score")
	}
}

func TestGradeSupersetIsIncorrect(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	sessionID, ids := newGradedSession(t, st)
	svc := NewScoringService(st, st)

	opts, err := st.AnswersForQuestion(ctx, ids[1])
	if err != nil {
		t.Fatalf("AnswersForQuestion: %v", err)
	}
	for _, opt := range opts { // all three, including the wrong one
		if _, err := st.ToggleAnswer(ctx, sessionID, ids[1], opt.ID); err != nil {
			t.Fatalf("ToggleAnswer: %v", err)
		}
	}

	ok, err := svc.IsQuestionCorrect(ctx, sessionID, ids[1])
	if err != nil {
		t.Fatalf("IsQuestionCorrect: %v", err)
	}
	if ok {
		t.Fatal("superset of the correct set must not score")
	}
}

func TestGradeSectionBreakdown(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	sessionID, ids := newGradedSession(t, st)
	svc := NewScoringService(st, st)

	// Answer the single-choice (objects) question correctly only.
	key, err := st.CorrectAnswerIDs(ctx, ids[0])
	if err != nil {
		t.Fatalf("CorrectAnswerIDs: %v", err)
	}
	if err := st.ReplaceAnswer(ctx, sessionID, ids[0], key[0]); err != nil {
		t.Fatalf("ReplaceAnswer: %v", err)
	}

	result, err := svc.Grade(ctx, sessionID)
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if len(result.BySection) != len(model.Sections) {
		t.Fatalf("got %d section rows, want %d", len(result.BySection), len(model.Sections))
	}
	for _, row := range result.BySection {
		switch row.Section {
		case model.SectionObjects:
			if row.Total != 1 || row.Correct != 1 {
				t.Errorf("objects: got %d/%d, want 1/1", row.Correct, row.Total)
			}
		case model.SectionClasses:
			if row.Total != 1 || row.Correct != 0 {
				t.Errorf("classes: got %d/%d, want 0/1", row.Correct, row.Total)
			}
		default:
			if row.Total != 0 || row.Correct != 0 {
				t.Errorf("%s: got %d/%d, want 0/0", row.Section, row.Correct, row.Total)
			}
		}
	}
}
