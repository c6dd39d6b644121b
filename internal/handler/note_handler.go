package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/notefold/notefold-backend/internal/response"
	"github.com/notefold/notefold-backend/internal/service"
)

// NoteHandler serves rendered note documents.
type NoteHandler struct {
	noteService *service.NoteService
}

// NewNoteHandler creates a new NoteHandler.
func NewNoteHandler(noteService *service.NoteService) *NoteHandler {
	return &NoteHandler{noteService: noteService}
}

// GetDocument godoc
// GET /api/v1/notes/:note_id/document?resolve=true|false
// Returns the note rendered as a document tree. With resolve=false, note
// references stay as placeholders instead of being nested.
func (h *NoteHandler) GetDocument(c *gin.Context) {
	noteID, err := uuid.Parse(c.Param("note_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	resolve := c.DefaultQuery("resolve", "true") != "false"

	doc, err := h.noteService.GetDocumentJSON(c.Request.Context(), noteID, resolve)
	if err != nil {
		if errors.Is(err, service.ErrNoteNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"document": doc})
}

// RefreshCache godoc
// POST /api/v1/teacher/notes/:note_id/refresh-cache
// Drops the cached render of a note after its delta changed upstream.
func (h *NoteHandler) RefreshCache(c *gin.Context) {
	noteID, err := uuid.Parse(c.Param("note_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.noteService.RefreshNoteCache(c.Request.Context(), noteID); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}
