package v2

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CheckHealth godoc
// @Summary Check system health status
// @Tags system
// @Produce json
// @Success 200 {object} knowledgebase.HealthStatus
// @Failure 503 {object} knowledgebase.HealthStatus
// @Router /health [get]
func (h *Handler) CheckHealth(c *gin.Context) {
	status, err := h.sysService.CheckHealth(c.Request.Context())
	if err != nil {
		sendError(c, err)
		return
	}
	code := http.StatusOK
	if status.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	sendJSON(c, code, status)
}
