package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jsacert/exam-engine/internal/model"
	"github.com/jsacert/exam-engine/internal/store"
	"github.com/jsacert/exam-engine/internal/store/memory"
)

// addFinishedExam inserts a submitted exam session directly into the store.
func addFinishedExam(t *testing.T, st *memory.Store, userID int64, started time.Time, minutes int, score int) {
	t.Helper()
	ctx := context.Background()
	sess := &model.Session{
		ID:         uuid.New(),
		UserID:     userID,
		ExamID:     1,
		Mode:       model.SessionModeExam,
		Status:     model.SessionStatusActive,
		StartedAt:  started,
		TotalCount: TotalQuestions,
	}
	if err := st.CreateSession(ctx, sess, nil); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	finished := started.Add(time.Duration(minutes) * time.Minute)
	grade := &store.GradeRecord{Correct: score * TotalQuestions / 100, Percent: score}
	if err := st.FinalizeSession(ctx, sess.ID, model.SessionStatusSubmitted, grade, finished); err != nil {
		t.Fatalf("FinalizeSession: %v", err)
	}
}

func TestCollectStats(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	for ext := int64(1); ext <= 3; ext++ {
		if _, err := st.UpsertUser(ctx, &model.User{ExternalID: ext}); err != nil {
			t.Fatalf("UpsertUser: %v", err)
		}
	}

	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	addFinishedExam(t, st, 1, base, 30, 80)               // pass
	addFinishedExam(t, st, 2, base.Add(time.Hour), 50, 40) // fail

	// Practice session inside the window.
	practice := &model.Session{
		ID: uuid.New(), UserID: 3, ExamID: 1,
		Mode: model.SessionModePractice, Status: model.SessionStatusActive,
		StartedAt: base.Add(2 * time.Hour), TotalCount: TotalQuestions,
	}
	if err := st.CreateSession(ctx, practice, nil); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	svc := NewStatsService(st, 70)
	win := UsageWindow{Start: base.Add(-time.Hour), End: base.Add(24 * time.Hour)}
	stats, err := svc.Collect(ctx, win)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}

	if stats.UsersTotal != 3 || stats.UsersActive != 3 {
		t.Errorf("users = %d total / %d active, want 3/3", stats.UsersTotal, stats.UsersActive)
	}
	if len(stats.UsageByMode) != 2 {
		t.Fatalf("got %d mode rows, want 2", len(stats.UsageByMode))
	}
	if stats.UsageByMode[0].Mode != model.SessionModeExam || stats.UsageByMode[0].Sessions != 2 {
		t.Errorf("exam usage = %+v, want 2 sessions", stats.UsageByMode[0])
	}
	if stats.UsageByMode[1].Mode != model.SessionModePractice || stats.UsageByMode[1].Sessions != 1 {
		t.Errorf("practice usage = %+v, want 1 session", stats.UsageByMode[1])
	}

	if stats.Exam.Submitted != 2 || stats.Exam.Passes != 1 || stats.Exam.Fails != 1 {
		t.Errorf("exam summary = %+v, want 2 submitted, 1 pass, 1 fail", stats.Exam)
	}
	if stats.Exam.PassRatePct != 50.0 {
		t.Errorf("pass rate = %v, want 50.0", stats.Exam.PassRatePct)
	}
	if stats.Exam.AvgScorePct == nil || *stats.Exam.AvgScorePct != 60.0 {
		t.Errorf("avg score = %v, want 60.0", stats.Exam.AvgScorePct)
	}
	if stats.Exam.AvgMinutes == nil || *stats.Exam.AvgMinutes != 40.0 {
		t.Errorf("avg minutes = %v, want 40.0", stats.Exam.AvgMinutes)
	}
}

func TestCollectStatsEmptyWindow(t *testing.T) {
	st := memory.New()
	svc := NewStatsService(st, 70)

	win := UsageWindow{Start: time.Now().Add(-time.Hour), End: time.Now()}
	stats, err := svc.Collect(context.Background(), win)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}

	// Both modes present even with no traffic at all.
	if len(stats.UsageByMode) != 2 {
		t.Fatalf("got %d mode rows, want 2", len(stats.UsageByMode))
	}
	if stats.Exam.Submitted != 0 || stats.Exam.PassRatePct != 0 {
		t.Errorf("empty summary = %+v, want zeros", stats.Exam)
	}
	if stats.Exam.AvgScorePct != nil || stats.Exam.AvgMinutes != nil {
		t.Error("averages must be nil with no submissions")
	}
}

func TestRound1(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{33.333, 33.3},
		{66.666, 66.7},
		{50.05, 50.1},
		{0, 0},
	}
	for _, c := range cases {
		if got := round1(c.in); got != c.want {
			t.Errorf("round1(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}
