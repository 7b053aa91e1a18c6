package handler

import (
	"net/http"

	"leadpilot_backend/internal/leads/transport"
	"leadpilot_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AddNote handles POST /leads/:id/notes.
func (h *Handler) AddNote(c *gin.Context) {
	id, ok := leadIDParam(c)
	if !ok {
		return
	}

	var req transport.AddNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	note, err := h.notes.Add(c.Request.Context(), actorFrom(c), id, req.Body)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, transport.ToNoteResponse(note))
}

// ListNotes handles GET /leads/:id/notes.
func (h *Handler) ListNotes(c *gin.Context) {
	id, ok := leadIDParam(c)
	if !ok {
		return
	}

	items, err := h.notes.List(c.Request.Context(), actorFrom(c), id)
	if httpkit.HandleError(c, err) {
		return
	}

	responses := make([]transport.NoteResponse, 0, len(items))
	for _, note := range items {
		responses = append(responses, transport.ToNoteResponse(note))
	}
	httpkit.OK(c, responses)
}

// UpdateNote handles PUT /notes/:noteId.
func (h *Handler) UpdateNote(c *gin.Context) {
	noteID, err := uuid.Parse(c.Param("noteId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid note id", nil)
		return
	}

	var req transport.AddNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	note, err := h.notes.Update(c.Request.Context(), actorFrom(c), noteID, req.Body)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToNoteResponse(note))
}

// DeleteNote handles DELETE /notes/:noteId.
func (h *Handler) DeleteNote(c *gin.Context) {
	noteID, err := uuid.Parse(c.Param("noteId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid note id", nil)
		return
	}
	if httpkit.HandleError(c, h.notes.Delete(c.Request.Context(), actorFrom(c), noteID)) {
		return
	}
	c.Status(http.StatusNoContent)
}
