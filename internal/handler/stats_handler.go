package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/notefold/notefold-backend/internal/middleware"
	"github.com/notefold/notefold-backend/internal/response"
	"github.com/notefold/notefold-backend/internal/service"
)

// StatsHandler serves aggregate submission statistics to teachers.
type StatsHandler struct {
	statsService *service.StatsService
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(statsService *service.StatsService) *StatsHandler {
	return &StatsHandler{statsService: statsService}
}

// GetTestStats godoc
// GET /api/v1/teacher/tests/:test_id/stats
// Returns per-exercise statistics and the score distribution of a test.
func (h *StatsHandler) GetTestStats(c *gin.Context) {
	claims := middleware.GetClaims(c)
	testID, ok := parseTestID(c)
	if !ok {
		return
	}

	stats, err := h.statsService.GetTestStats(c.Request.Context(), testID, claims.UserID)
	if err != nil {
		failGradingError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"stats": stats})
}
