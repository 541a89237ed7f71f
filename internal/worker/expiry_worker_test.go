package worker

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jsacert/exam-engine/internal/config"
	"github.com/jsacert/exam-engine/internal/model"
	"github.com/jsacert/exam-engine/internal/notify"
	"github.com/jsacert/exam-engine/internal/service"
	"github.com/jsacert/exam-engine/internal/store/memory"
)

var baseTime = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

type fixture struct {
	st       *memory.Store
	worker   *ExpiryWorker
	notifier *notify.MemoryNotifier
	userID   int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memory.New()
	userID, err := st.UpsertUser(context.Background(), &model.User{ExternalID: 2001})
	if err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}

	cfg := &config.Config{
		ExamDuration:       time.Hour,
		PassPercent:        70,
		RetakeCooldownDays: 7,
	}
	engine := service.NewSessionService(
		st, st,
		service.NewSelectionService(st),
		service.NewScoringService(st, st),
		cfg, zerolog.Nop(),
	)
	notifier := notify.NewMemoryNotifier()
	w := NewExpiryWorker(st, engine, notifier, time.Second, 70, zerolog.Nop())
	w.now = func() time.Time { return baseTime }

	return &fixture{st: st, worker: w, notifier: notifier, userID: userID}
}

// addSession inserts an active exam session expiring after the given
// duration relative to the worker's frozen clock.
func (f *fixture) addSession(t *testing.T, userID int64, expiresIn time.Duration) uuid.UUID {
	t.Helper()
	expires := baseTime.Add(expiresIn)
	sess := &model.Session{
		ID:         uuid.New(),
		UserID:     userID,
		ExamID:     1,
		Mode:       model.SessionModeExam,
		Status:     model.SessionStatusActive,
		StartedAt:  baseTime.Add(-time.Hour),
		ExpiresAt:  &expires,
		TotalCount: 40,
	}
	if err := f.st.CreateSession(context.Background(), sess, nil); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	return sess.ID
}

func TestSweepRaisesTenMinuteWarning(t *testing.T) {
	f := newFixture(t)
	id := f.addSession(t, f.userID, 9*time.Minute)

	f.worker.Sweep(context.Background())

	events := f.notifier.Events()
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Kind != notify.EventWarningRaised || events[0].ThresholdMinutes != 10 {
		t.Fatalf("got %+v, want 10-minute warning", events[0])
	}

	sess, err := f.st.GetSession(context.Background(), id)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if !sess.Warn10Sent || sess.Warn5Sent || sess.Warn1Sent {
		t.Errorf("flags = %v/%v/%v, want only warn10 set", sess.Warn10Sent, sess.Warn5Sent, sess.Warn1Sent)
	}

	// The same sweep state raises nothing further.
	f.worker.Sweep(context.Background())
	if got := len(f.notifier.Events()); got != 1 {
		t.Fatalf("repeat sweep raised more events: %d", got)
	}
}

func TestSweepPrefersTightestThreshold(t *testing.T) {
	f := newFixture(t)
	f.addSession(t, f.userID, 45*time.Second)

	// All three thresholds are crossed at once; only the 1-minute warning
	// fires in this sweep.
	f.worker.Sweep(context.Background())

	events := f.notifier.Events()
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].ThresholdMinutes != 1 {
		t.Fatalf("threshold = %d, want 1", events[0].ThresholdMinutes)
	}
}

func TestSweepAutoSubmitsExpired(t *testing.T) {
	f := newFixture(t)
	id := f.addSession(t, f.userID, -time.Minute)

	f.worker.Sweep(context.Background())

	sess, err := f.st.GetSession(context.Background(), id)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if sess.Status != model.SessionStatusSubmitted {
		t.Fatalf("status = %s, want submitted", sess.Status)
	}
	if sess.ScorePercent == nil || *sess.ScorePercent != 0 {
		t.Errorf("score = %v, want stored 0 for unanswered set", sess.ScorePercent)
	}

	events := f.notifier.Events()
	if len(events) != 1 || events[0].Kind != notify.EventAutoSubmitted {
		t.Fatalf("events = %+v, want one auto-submit", events)
	}
	if events[0].Grade == nil || events[0].Grade.Percent != 0 {
		t.Errorf("event grade = %+v, want 0%%", events[0].Grade)
	}

	// Expired sessions leave the active list, so nothing fires again.
	f.worker.Sweep(context.Background())
	if got := len(f.notifier.Events()); got != 1 {
		t.Fatalf("repeat sweep produced %d events, want 1", got)
	}
}

func TestSweepSkipsAlreadyFinalized(t *testing.T) {
	f := newFixture(t)
	id := f.addSession(t, f.userID, -time.Minute)

	// A manual abandon lands between listing and finalizing elsewhere; here
	// the session is simply terminal before the sweep sees it.
	if err := f.st.FinalizeSession(context.Background(), id, model.SessionStatusExpired, nil, baseTime); err != nil {
		t.Fatalf("FinalizeSession: %v", err)
	}

	f.worker.Sweep(context.Background())
	if got := len(f.notifier.Events()); got != 0 {
		t.Fatalf("sweep of terminal session produced %d events", got)
	}
}

func TestSweepFiveMinuteWindow(t *testing.T) {
	f := newFixture(t)
	id := f.addSession(t, f.userID, 4*time.Minute)

	f.worker.Sweep(context.Background())

	sess, _ := f.st.GetSession(context.Background(), id)
	if !sess.Warn5Sent {
		t.Error("5-minute warning not recorded")
	}
	if sess.Warn1Sent || sess.Warn10Sent {
		t.Error("other thresholds must stay unset")
	}
}

func TestStartStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		f.worker.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}
