package v2

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type chatRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

// Chat godoc
// @Summary Answer a message within a chat session
// @Tags chat
// @Accept json
// @Produce json
// @Param body body chatRequest true "Message and optional session id"
// @Success 200 {object} knowledgebase.ChatResponse
// @Failure 400 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /chat [post]
func (h *Handler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, invalid("malformed body: %v", err))
		return
	}

	resp, err := h.chatService.Answer(c.Request.Context(), req.SessionID, req.Message)
	if err != nil {
		sendError(c, err)
		return
	}

	sendJSON(c, http.StatusOK, resp)
}
