package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jsacert/exam-engine/internal/model"
	"github.com/jsacert/exam-engine/internal/store"
)

func newSession(userID int64) *model.Session {
	return &model.Session{
		ID:         uuid.New(),
		UserID:     userID,
		ExamID:     1,
		Mode:       model.SessionModeExam,
		Status:     model.SessionStatusActive,
		StartedAt:  time.Now(),
		TotalCount: 3,
	}
}

func TestCreateSessionConflict(t *testing.T) {
	st := New()
	ctx := context.Background()

	if err := st.CreateSession(ctx, newSession(7), []int64{1, 2, 3}); err != nil {
		t.Fatalf("first create: %v", err)
	}
	err := st.CreateSession(ctx, newSession(7), []int64{1, 2, 3})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("got %v, want ErrConflict", err)
	}

	// A different user is unaffected.
	if err := st.CreateSession(ctx, newSession(8), []int64{1, 2, 3}); err != nil {
		t.Fatalf("other user create: %v", err)
	}
}

func TestFinalizeSessionIsConditional(t *testing.T) {
	st := New()
	ctx := context.Background()
	sess := newSession(7)
	if err := st.CreateSession(ctx, sess, []int64{1, 2, 3}); err != nil {
		t.Fatalf("create: %v", err)
	}

	grade := &store.GradeRecord{Correct: 2, Percent: 67}
	if err := st.FinalizeSession(ctx, sess.ID, model.SessionStatusSubmitted, grade, time.Now()); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	// The second terminal transition loses.
	err := st.FinalizeSession(ctx, sess.ID, model.SessionStatusExpired, nil, time.Now())
	if !errors.Is(err, store.ErrStaleState) {
		t.Fatalf("got %v, want ErrStaleState", err)
	}

	got, err := st.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != model.SessionStatusSubmitted {
		t.Errorf("status = %s, want submitted to stick", got.Status)
	}
	if got.CorrectCount == nil || *got.CorrectCount != 2 || got.ScorePercent == nil || *got.ScorePercent != 67 {
		t.Errorf("stored grade = %v/%v, want 2/67", got.CorrectCount, got.ScorePercent)
	}

	err = st.FinalizeSession(ctx, uuid.New(), model.SessionStatusExpired, nil, time.Now())
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("unknown id: got %v, want ErrNotFound", err)
	}
}

func TestFinalizeMarksFailure(t *testing.T) {
	st := New()
	ctx := context.Background()
	userID, err := st.UpsertUser(ctx, &model.User{ExternalID: 42})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	sess := newSession(userID)
	if err := st.CreateSession(ctx, sess, []int64{1}); err != nil {
		t.Fatalf("create: %v", err)
	}

	finished := time.Now()
	grade := &store.GradeRecord{Correct: 0, Percent: 0, MarkFailure: true}
	if err := st.FinalizeSession(ctx, sess.ID, model.SessionStatusSubmitted, grade, finished); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	failedAt, err := st.LastFailureAt(ctx, userID)
	if err != nil {
		t.Fatalf("LastFailureAt: %v", err)
	}
	if failedAt == nil || !failedAt.Equal(finished) {
		t.Errorf("failure at %v, want %v", failedAt, finished)
	}
}

func TestSelectedAnswerIDsSorted(t *testing.T) {
	st := New()
	ctx := context.Background()
	sess := newSession(7)
	if err := st.CreateSession(ctx, sess, []int64{9}); err != nil {
		t.Fatalf("create: %v", err)
	}

	for _, aid := range []int64{31, 11, 21} {
		if _, err := st.ToggleAnswer(ctx, sess.ID, 9, aid); err != nil {
			t.Fatalf("toggle: %v", err)
		}
	}
	ids, err := st.SelectedAnswerIDs(ctx, sess.ID, 9)
	if err != nil {
		t.Fatalf("SelectedAnswerIDs: %v", err)
	}
	want := []int64{11, 21, 31}
	if len(ids) != len(want) {
		t.Fatalf("got %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("got %v, want ascending %v", ids, want)
		}
	}
}

func TestUpsertUserRefreshesProfile(t *testing.T) {
	st := New()
	ctx := context.Background()

	name1 := "Ada"
	id1, err := st.UpsertUser(ctx, &model.User{ExternalID: 5, FirstName: &name1})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	name2 := "Grace"
	id2, err := st.UpsertUser(ctx, &model.User{ExternalID: 5, FirstName: &name2})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("ids differ: %d vs %d", id1, id2)
	}

	u, err := st.GetUser(ctx, id1)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if u.FirstName == nil || *u.FirstName != "Grace" {
		t.Errorf("first name = %v, want refreshed to Grace", u.FirstName)
	}
}
