// Package store defines the durable-store contract the session engine,
// selector and scorer depend on. All compound operations (session creation
// with its question rows, answer replacement, conditional finalization) are
// atomic: an implementation either applies the whole mutation or none of it.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jsacert/exam-engine/internal/model"
)

var (
	// ErrNotFound is returned when a session, question or user does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict is returned when a uniqueness constraint rejects a write,
	// e.g. a second active session for the same user.
	ErrConflict = errors.New("store: conflict")
	// ErrStaleState is returned when a conditional transition finds the row
	// no longer in the expected state (somebody else won the race).
	ErrStaleState = errors.New("store: stale state")
)

// GradeRecord carries the final score written by a conditional finalize.
type GradeRecord struct {
	Correct int
	Percent int
	// MarkFailure stamps users.last_failed_at in the same transaction, which
	// anchors the retake cooldown. Only set for failed exam submissions.
	MarkFailure bool
}

// SessionStore persists sessions, their question bindings and chosen answers.
type SessionStore interface {
	// CreateSession inserts the session and one row per selected question as
	// one atomic unit. Returns ErrConflict if the user already holds an
	// active session.
	CreateSession(ctx context.Context, s *model.Session, questionIDs []int64) error

	GetSession(ctx context.Context, id uuid.UUID) (*model.Session, error)

	// GetActiveSessionForUser returns the user's active session or ErrNotFound.
	GetActiveSessionForUser(ctx context.Context, userID int64) (*model.Session, error)

	SetCurrentIndex(ctx context.Context, id uuid.UUID, index int) error

	// QuestionAt returns the binding at a 1-based position.
	QuestionAt(ctx context.Context, id uuid.UUID, index int) (*model.SessionQuestion, error)

	// SessionQuestions returns all bindings ordered by position.
	SessionQuestions(ctx context.Context, id uuid.UUID) ([]model.SessionQuestion, error)

	SetFlag(ctx context.Context, id uuid.UUID, index int, flagged bool) error
	ClearFlags(ctx context.Context, id uuid.UUID) error

	// ReplaceAnswer atomically clears all selections for the question and
	// inserts the single given one. A concurrent reader never observes the
	// question with zero selections.
	ReplaceAnswer(ctx context.Context, id uuid.UUID, questionID, answerID int64) error

	// ToggleAnswer removes the selection row if present, inserts it if
	// absent, as one conditional transaction. Returns whether the option is
	// selected afterwards.
	ToggleAnswer(ctx context.Context, id uuid.UUID, questionID, answerID int64) (bool, error)

	// SelectedAnswerIDs returns chosen option ids in ascending id order.
	SelectedAnswerIDs(ctx context.Context, id uuid.UUID, questionID int64) ([]int64, error)

	ClearAnswers(ctx context.Context, id uuid.UUID) error
	ClearQuestionAnswers(ctx context.Context, id uuid.UUID, questionID int64) error

	Progress(ctx context.Context, id uuid.UUID) (model.Progress, error)

	// FinalizeSession moves an active session to a terminal status and stores
	// the grade in one transaction. The transition is conditional on the row
	// still being active; ErrStaleState reports a lost race. The status
	// argument must be submitted or expired.
	FinalizeSession(ctx context.Context, id uuid.UUID, status model.SessionStatus, grade *GradeRecord, finishedAt time.Time) error

	// MarkWarningSent sets the warning flag for a threshold (10, 5 or 1
	// minutes). Flags are only ever set, never cleared.
	MarkWarningSent(ctx context.Context, id uuid.UUID, thresholdMinutes int) error

	// ListActiveExamSessions returns every active timed session, for the
	// expiry sweep.
	ListActiveExamSessions(ctx context.Context) ([]model.Session, error)
}

// QuestionStore provides read access to the question bank plus the writes the
// bank loader needs.
type QuestionStore interface {
	GetQuestion(ctx context.Context, id int64) (*model.Question, error)
	AnswersForQuestion(ctx context.Context, questionID int64) ([]model.AnswerOption, error)

	// CorrectAnswerIDs returns the correct option ids ascending, the stable
	// comparison order the scorer relies on.
	CorrectAnswerIDs(ctx context.Context, questionID int64) ([]int64, error)

	CountActiveBySection(ctx context.Context, section model.Section) (int, error)

	// RandomActiveIDs draws up to n distinct active question ids from a
	// section, uniformly at random.
	RandomActiveIDs(ctx context.Context, section model.Section, n int) ([]int64, error)

	// CreateQuestion inserts a question with its options atomically.
	CreateQuestion(ctx context.Context, q *model.Question, options []model.AnswerOption) error

	// FindQuestionByText locates a bank entry by exact prompt text, used by
	// the loader to sync metadata of existing questions.
	FindQuestionByText(ctx context.Context, text string) (*model.Question, error)

	UpdateQuestionMeta(ctx context.Context, q *model.Question) error
}

// UserStore persists exam takers.
type UserStore interface {
	// UpsertUser inserts or refreshes a user keyed by external id and
	// returns the internal id.
	UpsertUser(ctx context.Context, u *model.User) (int64, error)

	GetUser(ctx context.Context, id int64) (*model.User, error)

	// LastFailureAt returns the user's failure timestamp, or nil if the user
	// never failed an exam.
	LastFailureAt(ctx context.Context, userID int64) (*time.Time, error)
}

// StatsStore aggregates usage numbers for the admin stats report.
type StatsStore interface {
	CountUsers(ctx context.Context) (int, error)
	CountActiveUsers(ctx context.Context, from, to time.Time) (int, error)
	ModeUsage(ctx context.Context, from, to time.Time) ([]ModeUsageRow, error)
	SubmittedExamRows(ctx context.Context, from, to time.Time) ([]SubmittedExamRow, error)
}

// ModeUsageRow counts sessions and distinct users per mode in a window.
type ModeUsageRow struct {
	Mode     model.SessionMode
	Sessions int
	Users    int
}

// SubmittedExamRow is one submitted exam session inside a stats window.
type SubmittedExamRow struct {
	ScorePercent *int
	StartedAt    time.Time
	FinishedAt   *time.Time
}

// Store bundles the per-concern interfaces a full backend wires together.
type Store interface {
	SessionStore
	QuestionStore
	UserStore
	StatsStore
}
