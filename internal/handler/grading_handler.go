package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/notefold/notefold-backend/internal/middleware"
	"github.com/notefold/notefold-backend/internal/model"
	"github.com/notefold/notefold-backend/internal/response"
	"github.com/notefold/notefold-backend/internal/service"
	"github.com/notefold/notefold-backend/internal/validator"
)

// GradingHandler exposes teacher-side bulk grading operations.
type GradingHandler struct {
	gradingService *service.GradingService
}

// NewGradingHandler creates a new GradingHandler.
func NewGradingHandler(gradingService *service.GradingService) *GradingHandler {
	return &GradingHandler{gradingService: gradingService}
}

// FixSubmissions godoc
// POST /api/v1/teacher/tests/:test_id/fix-submissions
// Rewrites one question's answer across all completed submissions.
func (h *GradingHandler) FixSubmissions(c *gin.Context) {
	claims := middleware.GetClaims(c)
	testID, ok := parseTestID(c)
	if !ok {
		return
	}

	var req model.FixSubmissionsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	changed, err := h.gradingService.FixSubmissions(c.Request.Context(), testID, claims.UserID, &req)
	if err != nil {
		failGradingError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"changed": changed})
}

// RecalculateScores godoc
// POST /api/v1/teacher/tests/:test_id/recalculate
// Rescores every completed submission from its stored answers.
func (h *GradingHandler) RecalculateScores(c *gin.Context) {
	claims := middleware.GetClaims(c)
	testID, ok := parseTestID(c)
	if !ok {
		return
	}

	changed, err := h.gradingService.RecalculateTestScores(c.Request.Context(), testID, claims.UserID)
	if err != nil {
		failGradingError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"changed": changed})
}

// ReopenSubmission godoc
// POST /api/v1/teacher/tests/:test_id/submissions/:submission_id/reopen
// Lets a single student resume a completed submission.
func (h *GradingHandler) ReopenSubmission(c *gin.Context) {
	claims := middleware.GetClaims(c)
	testID, ok := parseTestID(c)
	if !ok {
		return
	}

	submissionID, err := uuid.Parse(c.Param("submission_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.gradingService.ReopenSubmission(c.Request.Context(), testID, submissionID, claims.UserID); err != nil {
		failGradingError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// ReopenAll godoc
// POST /api/v1/teacher/tests/:test_id/reopen-all
// Reopens every completed submission of the test.
func (h *GradingHandler) ReopenAll(c *gin.Context) {
	claims := middleware.GetClaims(c)
	testID, ok := parseTestID(c)
	if !ok {
		return
	}

	reopened, err := h.gradingService.ReopenAllSubmissions(c.Request.Context(), testID, claims.UserID)
	if err != nil {
		failGradingError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"reopened": reopened})
}

func failGradingError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrTestNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrNotTestOwner):
		response.Fail(c, http.StatusForbidden, response.ErrNotTestOwner)
	case errors.Is(err, service.ErrSubmissionNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNoSubmission)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
