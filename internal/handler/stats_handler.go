package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jsacert/exam-engine/internal/response"
	"github.com/jsacert/exam-engine/internal/service"
)

// StatsHandler serves the admin usage report.
type StatsHandler struct {
	statsService *service.StatsService
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(statsService *service.StatsService) *StatsHandler {
	return &StatsHandler{statsService: statsService}
}

// GetStats godoc
// GET /api/v1/admin/stats?days=7
// Returns usage and exam-outcome aggregates for the trailing window.
// Defaults to the last 7 days; days must be 1..365.
func (h *StatsHandler) GetStats(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("days", "7"))
	if err != nil || days < 1 || days > 365 {
		response.Fail(c, http.StatusBadRequest, response.ErrValidation)
		return
	}

	end := time.Now().UTC()
	win := service.UsageWindow{Start: end.AddDate(0, 0, -days), End: end}

	stats, err := h.statsService.Collect(c.Request.Context(), win)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"stats": stats})
}
