package service

import (
	"context"
	"errors"
	"testing"

	"github.com/jsacert/exam-engine/internal/model"
	"github.com/jsacert/exam-engine/internal/store/memory"
)

// seedSection inserts n single-choice questions into one section, the first
// option of each being correct. Returns the new question ids.
func seedSection(t *testing.T, st *memory.Store, section model.Section, n int) []int64 {
	t.Helper()
	ctx := context.Background()
	ids := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		q := &model.Question{
			Section: section,
			Type:    model.QuestionTypeSingle,
			Text:    string(section) + " question " + string(rune('A'+i%26)) + string(rune('a'+i/26)),
			Active:  true,
		}
		opts := []model.AnswerOption{
			{Text: "right", IsCorrect: true, OrderIndex: 0},
			{Text: "wrong 1", OrderIndex: 1},
			{Text: "wrong 2", OrderIndex: 2},
			{Text: "wrong 3", OrderIndex: 3},
		}
		if err := st.CreateQuestion(ctx, q, opts); err != nil {
			t.Fatalf("CreateQuestion: %v", err)
		}
		ids = append(ids, q.ID)
	}
	return ids
}

func seedFullBank(t *testing.T, st *memory.Store) map[model.Section][]int64 {
	t.Helper()
	out := make(map[model.Section][]int64)
	for _, section := range model.Sections {
		out[section] = seedSection(t, st, section, Distribution[section]+3)
	}
	return out
}

func TestSelectQuestionSetQuotas(t *testing.T) {
	st := memory.New()
	bySection := seedFullBank(t, st)
	svc := NewSelectionService(st)

	ids, err := svc.SelectQuestionSet(context.Background())
	if err != nil {
		t.Fatalf("SelectQuestionSet: %v", err)
	}
	if len(ids) != TotalQuestions {
		t.Fatalf("got %d ids, want %d", len(ids), TotalQuestions)
	}

	seen := make(map[int64]bool, len(ids))
	counts := make(map[model.Section]int)
	for _, id := range ids {
		if seen[id] {
			t.Fatalf("duplicate question id %d in set", id)
		}
		seen[id] = true
		for section, sectionIDs := range bySection {
			for _, sid := range sectionIDs {
				if sid == id {
					counts[section]++
				}
			}
		}
	}
	for section, want := range Distribution {
		if counts[section] != want {
			t.Errorf("section %s: got %d questions, want %d", section, counts[section], want)
		}
	}
}

func TestSelectQuestionSetIsShuffled(t *testing.T) {
	st := memory.New()
	seedFullBank(t, st)
	svc := NewSelectionService(st)

	// With independently randomized draws, two identical 40-element orders
	// are effectively impossible. Three attempts keep flake odds negligible.
	first, err := svc.SelectQuestionSet(context.Background())
	if err != nil {
		t.Fatalf("SelectQuestionSet: %v", err)
	}
	for attempt := 0; attempt < 3; attempt++ {
		next, err := svc.SelectQuestionSet(context.Background())
		if err != nil {
			t.Fatalf("SelectQuestionSet: %v", err)
		}
		same := true
		for i := range first {
			if first[i] != next[i] {
				same = false
				break
			}
		}
		if !same {
			return
		}
	}
	t.Error("three consecutive draws produced the identical order")
}

func TestSelectQuestionSetInsufficientPool(t *testing.T) {
	st := memory.New()
	for _, section := range model.Sections {
		n := Distribution[section]
		if section == model.SectionClasses {
			n-- // one short
		}
		seedSection(t, st, section, n)
	}
	svc := NewSelectionService(st)

	_, err := svc.SelectQuestionSet(context.Background())
	var poolErr *InsufficientPoolError
	if !errors.As(err, &poolErr) {
		t.Fatalf("got %v, want InsufficientPoolError", err)
	}
	if poolErr.Section != model.SectionClasses {
		t.Errorf("got section %s, want %s", poolErr.Section, model.SectionClasses)
	}
	if poolErr.Need != Distribution[model.SectionClasses] || poolErr.Got != Distribution[model.SectionClasses]-1 {
		t.Errorf("got need=%d got=%d, want need=%d got=%d",
			poolErr.Need, poolErr.Got, Distribution[model.SectionClasses], Distribution[model.SectionClasses]-1)
	}
}

func TestDistributionSumsToTotal(t *testing.T) {
	sum := 0
	for _, n := range Distribution {
		sum += n
	}
	if sum != TotalQuestions {
		t.Fatalf("distribution sums to %d, want %d", sum, TotalQuestions)
	}
}
