package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jsacert/exam-engine/internal/model"
	"github.com/jsacert/exam-engine/internal/response"
	"github.com/jsacert/exam-engine/internal/store"
	"github.com/jsacert/exam-engine/internal/validator"
)

// UserHandler handles user registration and lookup.
type UserHandler struct {
	users store.UserStore
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(users store.UserStore) *UserHandler {
	return &UserHandler{users: users}
}

// RegisterUser godoc
// POST /api/v1/users
// Upserts a user keyed by external id and refreshes last-seen.
func (h *UserHandler) RegisterUser(c *gin.Context) {
	var req model.RegisterUserRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	user := &model.User{
		ExternalID: req.ExternalID,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Username:   req.Username,
	}
	id, err := h.users.UpsertUser(c.Request.Context(), user)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	user.ID = id

	response.Success(c, http.StatusOK, gin.H{"user": user})
}

// GetUser godoc
// GET /api/v1/users/:user_id
func (h *UserHandler) GetUser(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil || id < 1 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	user, err := h.users.GetUser(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"user": user})
}
