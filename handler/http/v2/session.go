package v2

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"govrag/src/core/knowledgebase"
)

// CreateSession godoc
// @Summary Start an empty chat session
// @Tags sessions
// @Produce json
// @Success 201 {object} knowledgebase.ChatSession
// @Failure 500 {object} ErrorResponse
// @Router /sessions [post]
func (h *Handler) CreateSession(c *gin.Context) {
	sess, err := h.chatService.CreateSession(c.Request.Context())
	if err != nil {
		sendError(c, err)
		return
	}
	sendJSON(c, http.StatusCreated, sess)
}

// GetSession godoc
// @Summary Get a chat session and its history
// @Tags sessions
// @Param id path string true "Session ID"
// @Produce json
// @Success 200 {object} knowledgebase.ChatSession
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /sessions/{id} [get]
func (h *Handler) GetSession(c *gin.Context) {
	sess, err := h.chatService.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		sendError(c, err)
		return
	}
	if sess == nil {
		sendError(c, knowledgebase.ErrSessionNotFound)
		return
	}
	sendJSON(c, http.StatusOK, sess)
}

// DeleteSession godoc
// @Summary Delete a chat session
// @Tags sessions
// @Param id path string true "Session ID"
// @Success 204 "No Content"
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /sessions/{id} [delete]
func (h *Handler) DeleteSession(c *gin.Context) {
	ok, err := h.chatService.DeleteSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		sendError(c, err)
		return
	}
	if !ok {
		sendError(c, knowledgebase.ErrSessionNotFound)
		return
	}
	c.Status(http.StatusNoContent)
}
