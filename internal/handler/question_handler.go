package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jsacert/exam-engine/internal/response"
	"github.com/jsacert/exam-engine/internal/service"
	"github.com/jsacert/exam-engine/internal/store"
)

// QuestionHandler serves question bank lookups and the in-session question view.
type QuestionHandler struct {
	questions      store.QuestionStore
	sessionService *service.SessionService
}

// NewQuestionHandler creates a new QuestionHandler.
func NewQuestionHandler(questions store.QuestionStore, sessionService *service.SessionService) *QuestionHandler {
	return &QuestionHandler{questions: questions, sessionService: sessionService}
}

// GetQuestion godoc
// GET /api/v1/questions/:question_id
// Returns one bank question with its options. Correctness is never included.
func (h *QuestionHandler) GetQuestion(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("question_id"), 10, 64)
	if err != nil || id < 1 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	question, err := h.questions.GetQuestion(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	options, err := h.questions.AnswersForQuestion(c.Request.Context(), id)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"question": question, "options": options})
}

// GetSessionQuestion godoc
// GET /api/v1/sessions/:session_id/questions/:index
// Returns the question at a 1-based session position, with options in their
// presentation order, the taker's current selections and the flag state.
func (h *QuestionHandler) GetSessionQuestion(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 1 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	sq, err := h.sessionService.QuestionAt(c.Request.Context(), sessionID, index)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	question, err := h.questions.GetQuestion(c.Request.Context(), sq.QuestionID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	options, err := h.questions.AnswersForQuestion(c.Request.Context(), sq.QuestionID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	selected, err := h.sessionService.SelectedAnswerIDs(c.Request.Context(), sessionID, sq.QuestionID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"index":        index,
		"question":     question,
		"options":      options,
		"selected_ids": selected,
		"flagged":      sq.Flagged,
	})
}
