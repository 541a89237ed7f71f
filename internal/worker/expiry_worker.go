package worker

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/jsacert/exam-engine/internal/model"
	"github.com/jsacert/exam-engine/internal/notify"
	"github.com/jsacert/exam-engine/internal/service"
	"github.com/jsacert/exam-engine/internal/store"
)

// Warning thresholds in sweep priority order: the tightest threshold wins
// when several were crossed since the last sweep (e.g. after a monitor
// outage), so a session never receives more than one warning per sweep.
var warningThresholds = []struct {
	minutes int
	seconds int64
}{
	{1, 60},
	{5, 300},
	{10, 600},
}

// ExpiryWorker periodically sweeps active timed sessions, raises remaining-
// time warnings and force-submits expired sessions through the same
// finalize path as a manual submit. A single goroutine runs the loop, so a
// sweep that outlives the interval simply delays the next one instead of
// overlapping it. Staleness is bounded by the sweep interval.
type ExpiryWorker struct {
	sessions    store.SessionStore
	engine      *service.SessionService
	notifier    notify.Notifier
	interval    time.Duration
	passPercent int
	log         zerolog.Logger
	now         func() time.Time
}

// NewExpiryWorker creates a new ExpiryWorker.
func NewExpiryWorker(
	sessions store.SessionStore,
	engine *service.SessionService,
	notifier notify.Notifier,
	interval time.Duration,
	passPercent int,
	log zerolog.Logger,
) *ExpiryWorker {
	return &ExpiryWorker{
		sessions:    sessions,
		engine:      engine,
		notifier:    notifier,
		interval:    interval,
		passPercent: passPercent,
		log:         log.With().Str("component", "expiry_worker").Logger(),
		now:         time.Now,
	}
}

// Start runs the sweep loop until ctx is cancelled. An in-flight sweep
// completes before the loop exits.
func (w *ExpiryWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("ExpiryWorker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Stopping sweeps.")
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep scans every active timed session once.
func (w *ExpiryWorker) Sweep(ctx context.Context) {
	sessions, err := w.sessions.ListActiveExamSessions(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("List active sessions failed")
		return
	}

	for i := range sessions {
		if ctx.Err() != nil {
			return
		}
		w.sweepSession(ctx, &sessions[i])
	}
}

func (w *ExpiryWorker) sweepSession(ctx context.Context, sess *model.Session) {
	if sess.ExpiresAt == nil {
		return
	}
	remaining := int64(sess.ExpiresAt.Sub(w.now()) / time.Second)

	if remaining <= 0 {
		w.autoSubmit(ctx, sess)
		return
	}

	for _, threshold := range warningThresholds {
		if remaining > threshold.seconds || w.warningSent(sess, threshold.minutes) {
			continue
		}
		if err := w.sessions.MarkWarningSent(ctx, sess.ID, threshold.minutes); err != nil {
			w.log.Error().Err(err).
				Str("session_id", sess.ID.String()).
				Int("threshold", threshold.minutes).
				Msg("Mark warning failed")
			return
		}
		if err := w.notifier.WarningRaised(ctx, sess.ID, sess.UserID, threshold.minutes); err != nil {
			w.log.Error().Err(err).
				Str("session_id", sess.ID.String()).
				Msg("Warning event failed")
		}
		return
	}
}

func (w *ExpiryWorker) autoSubmit(ctx context.Context, sess *model.Session) {
	result, err := w.engine.FinalizeAndSubmit(ctx, sess.ID, w.passPercent)
	if err != nil {
		// A concurrent manual submit may have won the terminal transition;
		// that submission is authoritative and ours is discarded.
		if errors.Is(err, service.ErrInvalidState) {
			return
		}
		w.log.Error().Err(err).
			Str("session_id", sess.ID.String()).
			Msg("Auto-submit failed")
		return
	}

	w.log.Info().
		Str("session_id", sess.ID.String()).
		Int("percent", result.Result.Percent).
		Msg("Session auto-submitted")

	if err := w.notifier.AutoSubmitted(ctx, sess.ID, sess.UserID, result.Result); err != nil {
		w.log.Error().Err(err).
			Str("session_id", sess.ID.String()).
			Msg("Auto-submit event failed")
	}
}

func (w *ExpiryWorker) warningSent(sess *model.Session, minutes int) bool {
	switch minutes {
	case 10:
		return sess.Warn10Sent
	case 5:
		return sess.Warn5Sent
	case 1:
		return sess.Warn1Sent
	}
	return false
}
