package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jsacert/exam-engine/internal/config"
	"github.com/jsacert/exam-engine/internal/model"
	"github.com/jsacert/exam-engine/internal/store"
)

// SubmitResult is the outcome of finalizing a session.
type SubmitResult struct {
	Result *GradeResult `json:"result"`
	Passed bool         `json:"passed"`
}

// SessionService owns the session lifecycle: creation, navigation, flagging,
// answer mutation, expiry computation and submission. It holds no state of
// its own between calls; consistency comes from the store's transactional
// guarantees.
type SessionService struct {
	sessions  store.SessionStore
	users     store.UserStore
	selection *SelectionService
	scoring   *ScoringService
	cfg       *config.Config
	log       zerolog.Logger
	now       func() time.Time
}

// NewSessionService creates a new SessionService.
func NewSessionService(
	sessions store.SessionStore,
	users store.UserStore,
	selection *SelectionService,
	scoring *ScoringService,
	cfg *config.Config,
	log zerolog.Logger,
) *SessionService {
	return &SessionService{
		sessions:  sessions,
		users:     users,
		selection: selection,
		scoring:   scoring,
		cfg:       cfg,
		log:       log.With().Str("component", "session_service").Logger(),
		now:       time.Now,
	}
}

// CreateSession starts a new attempt for the user. The lookup-then-create
// check catches most duplicate attempts; the store's uniqueness guard on
// active sessions closes the remaining race window and surfaces the same
// ErrActiveSessionExists.
func (s *SessionService) CreateSession(ctx context.Context, userID, examID int64, mode model.SessionMode) (*model.Session, error) {
	if _, err := s.sessions.GetActiveSessionForUser(ctx, userID); err == nil {
		return nil, ErrActiveSessionExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("check active session: %w", err)
	}

	questionIDs, err := s.selection.SelectQuestionSet(ctx)
	if err != nil {
		return nil, err
	}

	startedAt := s.now()
	session := &model.Session{
		ID:           uuid.New(),
		UserID:       userID,
		ExamID:       examID,
		Mode:         mode,
		Status:       model.SessionStatusActive,
		StartedAt:    startedAt,
		CurrentIndex: 1,
		TotalCount:   TotalQuestions,
	}
	if mode == model.SessionModeExam {
		expiresAt := startedAt.Add(s.cfg.ExamDuration)
		session.ExpiresAt = &expiresAt
	}

	if err := s.sessions.CreateSession(ctx, session, questionIDs); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrActiveSessionExists
		}
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.log.Info().
		Str("session_id", session.ID.String()).
		Int64("user_id", userID).
		Str("mode", string(mode)).
		Msg("Session created")

	return session, nil
}

// GetActiveSession returns the user's active session, or ErrNotFound.
func (s *SessionService) GetActiveSession(ctx context.Context, userID int64) (*model.Session, error) {
	sess, err := s.sessions.GetActiveSessionForUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get active session: %w", err)
	}
	return sess, nil
}

// GetSession returns a session by id.
func (s *SessionService) GetSession(ctx context.Context, sessionID uuid.UUID) (*model.Session, error) {
	sess, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// QuestionAt returns the question binding at a 1-based position.
func (s *SessionService) QuestionAt(ctx context.Context, sessionID uuid.UUID, index int) (*model.SessionQuestion, error) {
	sq, err := s.sessions.QuestionAt(ctx, sessionID, index)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("question at %d: %w", index, err)
	}
	return sq, nil
}

// SetCurrentIndex moves the position pointer, clamped into [1, total].
// No side effects beyond the pointer itself.
func (s *SessionService) SetCurrentIndex(ctx context.Context, sessionID uuid.UUID, index int) error {
	sess, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if index < 1 {
		index = 1
	}
	if index > sess.TotalCount {
		index = sess.TotalCount
	}
	if err := s.sessions.SetCurrentIndex(ctx, sessionID, index); err != nil {
		return fmt.Errorf("set current index: %w", err)
	}
	return nil
}

// ToggleFlag flips the review flag at a position and returns the new state.
// Concurrent toggles interleave as read-modify-write; last writer wins, which
// is acceptable for advisory UI state.
func (s *SessionService) ToggleFlag(ctx context.Context, sessionID uuid.UUID, index int) (bool, error) {
	sq, err := s.QuestionAt(ctx, sessionID, index)
	if err != nil {
		return false, err
	}
	next := !sq.Flagged
	if err := s.sessions.SetFlag(ctx, sessionID, index, next); err != nil {
		return false, fmt.Errorf("set flag: %w", err)
	}
	return next, nil
}

// RecordSingleChoice replaces any previous selection for the question with
// the single given option, atomically.
func (s *SessionService) RecordSingleChoice(ctx context.Context, sessionID uuid.UUID, questionID, answerID int64) error {
	if err := s.sessions.ReplaceAnswer(ctx, sessionID, questionID, answerID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("record single choice: %w", err)
	}
	return nil
}

// ToggleMultiChoice flips membership of one option in the question's
// selection set and returns whether it is selected afterwards.
func (s *SessionService) ToggleMultiChoice(ctx context.Context, sessionID uuid.UUID, questionID, answerID int64) (bool, error) {
	selected, err := s.sessions.ToggleAnswer(ctx, sessionID, questionID, answerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, ErrNotFound
		}
		return false, fmt.Errorf("toggle multi choice: %w", err)
	}
	return selected, nil
}

// SelectedAnswerIDs returns the chosen option ids in ascending id order.
func (s *SessionService) SelectedAnswerIDs(ctx context.Context, sessionID uuid.UUID, questionID int64) ([]int64, error) {
	ids, err := s.sessions.SelectedAnswerIDs(ctx, sessionID, questionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("selected answers: %w", err)
	}
	return ids, nil
}

// Progress reports answered/flagged/total counts. A question counts as
// answered when it has at least one selection, regardless of correctness.
func (s *SessionService) Progress(ctx context.Context, sessionID uuid.UUID) (model.Progress, error) {
	prog, err := s.sessions.Progress(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.Progress{}, ErrNotFound
		}
		return model.Progress{}, fmt.Errorf("progress: %w", err)
	}
	return prog, nil
}

// QuestionStatuses classifies every position for the navigation board.
// A flagged question shows as flagged even when it is also answered.
func (s *SessionService) QuestionStatuses(ctx context.Context, sessionID uuid.UUID) ([]model.QuestionState, error) {
	rows, err := s.sessions.SessionQuestions(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("session questions: %w", err)
	}

	out := make([]model.QuestionState, len(rows))
	for i, sq := range rows {
		switch {
		case sq.Flagged:
			out[i] = model.QuestionStateFlagged
		default:
			ids, err := s.sessions.SelectedAnswerIDs(ctx, sessionID, sq.QuestionID)
			if err != nil {
				return nil, fmt.Errorf("selections for question %d: %w", sq.QuestionID, err)
			}
			if len(ids) > 0 {
				out[i] = model.QuestionStateAnswered
			} else {
				out[i] = model.QuestionStateUnanswered
			}
		}
	}
	return out, nil
}

// RemainingSeconds returns the whole seconds left on an active exam session,
// or nil for practice sessions and sessions that are no longer active.
func (s *SessionService) RemainingSeconds(ctx context.Context, sessionID uuid.UUID) (*int64, error) {
	sess, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.remainingFor(sess), nil
}

func (s *SessionService) remainingFor(sess *model.Session) *int64 {
	if sess.ExpiresAt == nil || sess.Status != model.SessionStatusActive {
		return nil
	}
	remaining := int64(sess.ExpiresAt.Sub(s.now()) / time.Second)
	if remaining < 0 {
		remaining = 0
	}
	return &remaining
}

// Abandon moves an active session to expired. Terminal sessions are rejected
// with ErrInvalidState.
func (s *SessionService) Abandon(ctx context.Context, sessionID uuid.UUID) error {
	err := s.sessions.FinalizeSession(ctx, sessionID, model.SessionStatusExpired, nil, s.now())
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrStaleState):
		return ErrInvalidState
	case errors.Is(err, store.ErrNotFound):
		return ErrNotFound
	default:
		return fmt.Errorf("abandon session: %w", err)
	}
}

// ResetAnswers clears selections for one question (questionID != nil) or the
// whole session. Flags and status are untouched.
func (s *SessionService) ResetAnswers(ctx context.Context, sessionID uuid.UUID, questionID *int64) error {
	var err error
	if questionID != nil {
		err = s.sessions.ClearQuestionAnswers(ctx, sessionID, *questionID)
	} else {
		err = s.sessions.ClearAnswers(ctx, sessionID)
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("reset answers: %w", err)
	}
	return nil
}

// ClearAllFlags unsets every review flag in the session.
func (s *SessionService) ClearAllFlags(ctx context.Context, sessionID uuid.UUID) error {
	if err := s.sessions.ClearFlags(ctx, sessionID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("clear flags: %w", err)
	}
	return nil
}

// RestartPractice expires the given practice session and creates a fresh one
// for the same user and exam.
func (s *SessionService) RestartPractice(ctx context.Context, sessionID uuid.UUID) (*model.Session, error) {
	sess, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Mode != model.SessionModePractice {
		return nil, ErrInvalidState
	}

	if err := s.Abandon(ctx, sessionID); err != nil && !errors.Is(err, ErrInvalidState) {
		return nil, err
	}

	return s.CreateSession(ctx, sess.UserID, sess.ExamID, model.SessionModePractice)
}

// FinalizeAndSubmit grades the session and moves it to submitted, once.
// A repeat call on an already submitted session returns the stored result
// without re-firing pass/fail side effects. When a user submit races the
// expiry auto-submit, the conditional store transition picks the winner; the
// loser re-reads and either adopts the stored result or, if the session
// ended up expired, observes ErrInvalidState.
func (s *SessionService) FinalizeAndSubmit(ctx context.Context, sessionID uuid.UUID, passPercent int) (*SubmitResult, error) {
	sess, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Mode != model.SessionModeExam {
		return nil, ErrInvalidState
	}
	if sess.Status == model.SessionStatusSubmitted {
		return s.storedResult(ctx, sess, passPercent)
	}
	if sess.Status != model.SessionStatusActive {
		return nil, ErrInvalidState
	}

	result, err := s.scoring.Grade(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("grade session: %w", err)
	}
	passed := result.Percent >= passPercent

	grade := &store.GradeRecord{
		Correct:     result.Correct,
		Percent:     result.Percent,
		MarkFailure: !passed,
	}
	err = s.sessions.FinalizeSession(ctx, sessionID, model.SessionStatusSubmitted, grade, s.now())
	if err != nil {
		if errors.Is(err, store.ErrStaleState) {
			// Lost the terminal-transition race. Adopt the winner's outcome.
			current, readErr := s.GetSession(ctx, sessionID)
			if readErr != nil {
				return nil, readErr
			}
			if current.Status == model.SessionStatusSubmitted {
				return s.storedResult(ctx, current, passPercent)
			}
			return nil, ErrInvalidState
		}
		return nil, fmt.Errorf("finalize session: %w", err)
	}

	s.log.Info().
		Str("session_id", sessionID.String()).
		Int("correct", result.Correct).
		Int("percent", result.Percent).
		Bool("passed", passed).
		Msg("Session submitted")

	return &SubmitResult{Result: result, Passed: passed}, nil
}

// storedResult rebuilds a SubmitResult from the grade persisted at submit
// time. The section breakdown is re-derived from the answer rows, which are
// frozen once the session is terminal, so the outcome is identical to the
// first submission and no side effects run again.
func (s *SessionService) storedResult(ctx context.Context, sess *model.Session, passPercent int) (*SubmitResult, error) {
	if sess.CorrectCount == nil || sess.ScorePercent == nil {
		return nil, fmt.Errorf("submitted session %s has no stored grade", sess.ID)
	}
	result, err := s.scoring.Grade(ctx, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("rebuild section stats: %w", err)
	}
	result.Correct = *sess.CorrectCount
	result.Percent = *sess.ScorePercent
	return &SubmitResult{Result: result, Passed: result.Percent >= passPercent}, nil
}

// RetakeEligibility reports whether the user's failure cooldown has lapsed,
// and when the next attempt becomes available if it has not.
func (s *SessionService) RetakeEligibility(ctx context.Context, userID int64) (bool, *time.Time, error) {
	failedAt, err := s.users.LastFailureAt(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil, ErrNotFound
		}
		return false, nil, fmt.Errorf("last failure: %w", err)
	}
	if failedAt == nil {
		return true, nil, nil
	}
	nextEligible := failedAt.AddDate(0, 0, s.cfg.RetakeCooldownDays)
	if !s.now().Before(nextEligible) {
		return true, nil, nil
	}
	return false, &nextEligible, nil
}
