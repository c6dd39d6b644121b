package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/notefold/notefold-backend/internal/grading"
	"github.com/notefold/notefold-backend/internal/middleware"
	"github.com/notefold/notefold-backend/internal/model"
	"github.com/notefold/notefold-backend/internal/response"
	"github.com/notefold/notefold-backend/internal/service"
	"github.com/notefold/notefold-backend/internal/validator"
)

// SubmissionHandler exposes the student submission lifecycle.
type SubmissionHandler struct {
	submissionService *service.SubmissionService
}

// NewSubmissionHandler creates a new SubmissionHandler.
func NewSubmissionHandler(submissionService *service.SubmissionService) *SubmissionHandler {
	return &SubmissionHandler{submissionService: submissionService}
}

// Start godoc
// POST /api/v1/student/tests/:test_id/submission
// Opens (or returns the already open) submission for the caller.
func (h *SubmissionHandler) Start(c *gin.Context) {
	claims := middleware.GetClaims(c)
	testID, ok := parseTestID(c)
	if !ok {
		return
	}

	sub, err := h.submissionService.Start(c.Request.Context(), testID, claims.UserID)
	if err != nil {
		failSubmissionError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"submission": gin.H{
			"id":           sub.ID,
			"test_id":      sub.TestID,
			"started_on":   sub.StartedOn,
			"completed_on": sub.CompletedOn,
		},
	})
}

// GetPaper godoc
// GET /api/v1/student/tests/:test_id/paper
// Returns the rendered test document with the caller's option orders applied
// and their current answers in displayed indices.
func (h *SubmissionHandler) GetPaper(c *gin.Context) {
	claims := middleware.GetClaims(c)
	testID, ok := parseTestID(c)
	if !ok {
		return
	}

	paper, err := h.submissionService.GetPaper(c.Request.Context(), testID, claims.UserID)
	if err != nil {
		failSubmissionError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"paper": paper})
}

// SaveAnswer godoc
// PUT /api/v1/student/tests/:test_id/answer
// Records the caller's selection for one choice question.
func (h *SubmissionHandler) SaveAnswer(c *gin.Context) {
	claims := middleware.GetClaims(c)
	testID, ok := parseTestID(c)
	if !ok {
		return
	}

	var req model.SaveAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.submissionService.SaveAnswer(c.Request.Context(), testID, claims.UserID, &req); err != nil {
		failSubmissionError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// Complete godoc
// POST /api/v1/student/tests/:test_id/complete
// Closes the caller's submission and returns the computed score.
func (h *SubmissionHandler) Complete(c *gin.Context) {
	claims := middleware.GetClaims(c)
	testID, ok := parseTestID(c)
	if !ok {
		return
	}

	score, err := h.submissionService.Complete(c.Request.Context(), testID, claims.UserID)
	if err != nil {
		failSubmissionError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"score": score})
}

func parseTestID(c *gin.Context) (uuid.UUID, bool) {
	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return testID, true
}

// failSubmissionError maps service errors onto the API error envelope.
func failSubmissionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrTestNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrNotClassStudent):
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
	case errors.Is(err, service.ErrSubmissionNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNoSubmission)
	case errors.Is(err, service.ErrSubmissionCompleted):
		response.Fail(c, http.StatusConflict, response.ErrSubmissionCompleted)
	case errors.Is(err, service.ErrQuestionNotRendered):
		response.Fail(c, http.StatusConflict, response.ErrQuestionNotRendered)
	case errors.Is(err, service.ErrNoteNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, grading.ErrInvalidIndex):
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidIndex)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
