package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jsacert/exam-engine/internal/model"
	"github.com/jsacert/exam-engine/internal/response"
	"github.com/jsacert/exam-engine/internal/service"
	"github.com/jsacert/exam-engine/internal/validator"
)

// SessionHandler handles session lifecycle and in-session endpoints.
type SessionHandler struct {
	sessionService *service.SessionService
	reportService  *service.ReportService
	passPercent    int
	cooldownDays   int
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessionService *service.SessionService, reportService *service.ReportService, passPercent, cooldownDays int) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		reportService:  reportService,
		passPercent:    passPercent,
		cooldownDays:   cooldownDays,
	}
}

// CreateSession godoc
// POST /api/v1/sessions
// Starts a new exam or practice attempt for a user.
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req model.CreateSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	sess, err := h.sessionService.CreateSession(c.Request.Context(), req.UserID, req.ExamID, model.SessionMode(req.Mode))
	if err != nil {
		var poolErr *service.InsufficientPoolError
		switch {
		case errors.Is(err, service.ErrActiveSessionExists):
			response.Fail(c, http.StatusConflict, response.ErrSessionActive)
		case errors.As(err, &poolErr):
			response.Fail(c, http.StatusUnprocessableEntity, response.ErrInsufficientPool)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"session": sess})
}

// GetSession godoc
// GET /api/v1/sessions/:session_id
// Returns the session with its remaining time, when applicable.
func (h *SessionHandler) GetSession(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}

	sess, err := h.sessionService.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		h.failFromService(c, err)
		return
	}
	remaining, err := h.sessionService.RemainingSeconds(c.Request.Context(), sessionID)
	if err != nil {
		h.failFromService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": sess, "remaining_seconds": remaining})
}

// GetActiveSession godoc
// GET /api/v1/users/:user_id/sessions/active
// Returns the user's single active session, if any.
func (h *SessionHandler) GetActiveSession(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	sess, err := h.sessionService.GetActiveSession(c.Request.Context(), userID)
	if err != nil {
		h.failFromService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": sess})
}

// SetPosition godoc
// PUT /api/v1/sessions/:session_id/position
// Moves the current question pointer. Out-of-range values are clamped.
func (h *SessionHandler) SetPosition(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}

	var req model.SetPositionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.sessionService.SetCurrentIndex(c.Request.Context(), sessionID, req.Index); err != nil {
		h.failFromService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"index": req.Index})
}

// ToggleFlag godoc
// POST /api/v1/sessions/:session_id/questions/:index/flag
// Flips the review flag for the question at a position.
func (h *SessionHandler) ToggleFlag(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 1 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	flagged, err := h.sessionService.ToggleFlag(c.Request.Context(), sessionID, index)
	if err != nil {
		h.failFromService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"index": index, "flagged": flagged})
}

// ClearFlags godoc
// DELETE /api/v1/sessions/:session_id/flags
// Unsets every review flag in the session.
func (h *SessionHandler) ClearFlags(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}

	if err := h.sessionService.ClearAllFlags(c.Request.Context(), sessionID); err != nil {
		h.failFromService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"cleared": true})
}

// AnswerSingleChoice godoc
// PUT /api/v1/sessions/:session_id/answers/single
// Replaces the selection for a single-choice question.
func (h *SessionHandler) AnswerSingleChoice(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}

	var req model.SingleChoiceRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.sessionService.RecordSingleChoice(c.Request.Context(), sessionID, req.QuestionID, req.AnswerID); err != nil {
		h.failFromService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"question_id": req.QuestionID, "answer_id": req.AnswerID})
}

// ToggleMultiChoice godoc
// POST /api/v1/sessions/:session_id/answers/toggle
// Flips one option in a multi-choice question's selection set.
func (h *SessionHandler) ToggleMultiChoice(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}

	var req model.MultiChoiceToggleRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	selected, err := h.sessionService.ToggleMultiChoice(c.Request.Context(), sessionID, req.QuestionID, req.AnswerID)
	if err != nil {
		h.failFromService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"question_id": req.QuestionID,
		"answer_id":   req.AnswerID,
		"selected":    selected,
	})
}

// ResetAnswers godoc
// DELETE /api/v1/sessions/:session_id/answers?question_id=N
// Clears selections for one question, or for the whole session when the
// query parameter is absent.
func (h *SessionHandler) ResetAnswers(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}

	var questionID *int64
	if raw := c.Query("question_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id < 1 {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
			return
		}
		questionID = &id
	}

	if err := h.sessionService.ResetAnswers(c.Request.Context(), sessionID, questionID); err != nil {
		h.failFromService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"cleared": true})
}

// GetProgress godoc
// GET /api/v1/sessions/:session_id/progress
// Returns answered/flagged counts plus a per-position status board.
func (h *SessionHandler) GetProgress(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}

	progress, err := h.sessionService.Progress(c.Request.Context(), sessionID)
	if err != nil {
		h.failFromService(c, err)
		return
	}
	statuses, err := h.sessionService.QuestionStatuses(c.Request.Context(), sessionID)
	if err != nil {
		h.failFromService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"progress": progress, "statuses": statuses})
}

// Submit godoc
// POST /api/v1/sessions/:session_id/submit
// Grades and finalizes an exam session. Safe to repeat: a second call on an
// already submitted session returns the stored result.
func (h *SessionHandler) Submit(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}

	var req model.SubmitRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	passPercent := req.PassPercent
	if passPercent == 0 {
		passPercent = h.passPercent
	}

	result, err := h.sessionService.FinalizeAndSubmit(c.Request.Context(), sessionID, passPercent)
	if err != nil {
		h.failFromService(c, err)
		return
	}

	var nextEligible *time.Time
	if !result.Passed {
		if sess, gErr := h.sessionService.GetSession(c.Request.Context(), sessionID); gErr == nil {
			if _, at, eErr := h.sessionService.RetakeEligibility(c.Request.Context(), sess.UserID); eErr == nil {
				nextEligible = at
			}
		}
	}

	report := h.reportService.RenderResult(result.Result, passPercent, h.cooldownDays, nextEligible)
	response.Success(c, http.StatusOK, gin.H{
		"result":           result.Result,
		"passed":           result.Passed,
		"report":           report,
		"next_eligible_at": nextEligible,
	})
}

// Abandon godoc
// POST /api/v1/sessions/:session_id/abandon
// Marks an active session as expired without grading it.
func (h *SessionHandler) Abandon(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}

	if err := h.sessionService.Abandon(c.Request.Context(), sessionID); err != nil {
		h.failFromService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"abandoned": true})
}

// RestartPractice godoc
// POST /api/v1/sessions/:session_id/restart
// Expires a practice session and starts a fresh one with a new question set.
func (h *SessionHandler) RestartPractice(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}

	sess, err := h.sessionService.RestartPractice(c.Request.Context(), sessionID)
	if err != nil {
		h.failFromService(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"session": sess})
}

// GetRetakeEligibility godoc
// GET /api/v1/users/:user_id/retake-eligibility
// Reports whether the failure cooldown has lapsed for the user.
func (h *SessionHandler) GetRetakeEligibility(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	eligible, nextAt, err := h.sessionService.RetakeEligibility(c.Request.Context(), userID)
	if err != nil {
		h.failFromService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"eligible": eligible, "next_eligible_at": nextAt})
}

// ─── Shared helpers ─────────────────────────────────────────────────────────

func (h *SessionHandler) sessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}

func (h *SessionHandler) userID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil || id < 1 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return 0, false
	}
	return id, true
}

func (h *SessionHandler) failFromService(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrInvalidState):
		response.Fail(c, http.StatusConflict, response.ErrInvalidState)
	case errors.Is(err, service.ErrActiveSessionExists):
		response.Fail(c, http.StatusConflict, response.ErrSessionActive)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
