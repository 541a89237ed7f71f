package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates exam session states.
type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusSubmitted SessionStatus = "submitted"
	SessionStatusExpired   SessionStatus = "expired"
)

// Terminal reports whether the status permits no further transitions.
func (s SessionStatus) Terminal() bool {
	return s == SessionStatusSubmitted || s == SessionStatusExpired
}

// SessionMode distinguishes a timed exam attempt from untimed practice.
type SessionMode string

const (
	SessionModeExam     SessionMode = "exam"
	SessionModePractice SessionMode = "practice"
)

// Session represents one exam or practice attempt by one user.
// ExpiresAt is set iff Mode is exam; the three warning flags are only
// meaningful while the session is an active exam and are never unset.
type Session struct {
	ID           uuid.UUID     `json:"id"`
	UserID       int64         `json:"user_id"`
	ExamID       int64         `json:"exam_id"`
	Mode         SessionMode   `json:"mode"`
	Status       SessionStatus `json:"status"`
	StartedAt    time.Time     `json:"started_at"`
	ExpiresAt    *time.Time    `json:"expires_at,omitempty"`
	FinishedAt   *time.Time    `json:"finished_at,omitempty"`
	CurrentIndex int           `json:"current_index"`
	TotalCount   int           `json:"total_count"`
	Warn10Sent   bool          `json:"warn10_sent"`
	Warn5Sent    bool          `json:"warn5_sent"`
	Warn1Sent    bool          `json:"warn1_sent"`
	CorrectCount *int          `json:"correct_count,omitempty"`
	ScorePercent *int          `json:"score_percent,omitempty"`
}

// SessionQuestion binds one question to one 1-based position in a session.
type SessionQuestion struct {
	SessionID  uuid.UUID `json:"session_id"`
	QuestionID int64     `json:"question_id"`
	Index      int       `json:"index"`
	Flagged    bool      `json:"flagged"`
}

// Progress summarizes answering state for the overview board.
type Progress struct {
	Answered int `json:"answered"`
	Flagged  int `json:"flagged"`
	Total    int `json:"total"`
}

// QuestionState classifies a session question for the navigation board.
type QuestionState string

const (
	QuestionStateUnanswered QuestionState = "unanswered"
	QuestionStateAnswered   QuestionState = "answered"
	QuestionStateFlagged    QuestionState = "flagged"
)

// CreateSessionRequest is the payload for starting a new attempt.
type CreateSessionRequest struct {
	UserID int64  `json:"user_id" binding:"required,min=1"`
	ExamID int64  `json:"exam_id" binding:"required,min=1"`
	Mode   string `json:"mode" binding:"required,oneof=exam practice"`
}

// SetPositionRequest is the payload for moving the current question pointer.
type SetPositionRequest struct {
	Index int `json:"index" binding:"required,min=1"`
}

// SingleChoiceRequest records the one selected option of a single-choice question.
type SingleChoiceRequest struct {
	QuestionID int64 `json:"question_id" binding:"required,min=1"`
	AnswerID   int64 `json:"answer_id" binding:"required,min=1"`
}

// MultiChoiceToggleRequest toggles one option of a multi-choice question.
type MultiChoiceToggleRequest struct {
	QuestionID int64 `json:"question_id" binding:"required,min=1"`
	AnswerID   int64 `json:"answer_id" binding:"required,min=1"`
}

// SubmitRequest finalizes a session against a pass threshold. PassPercent is
// optional; zero means "use the configured default".
type SubmitRequest struct {
	PassPercent int `json:"pass_percent" binding:"omitempty,min=1,max=100"`
}
