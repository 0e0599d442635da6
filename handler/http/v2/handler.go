package v2

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"govrag/src/core/knowledgebase"
	"govrag/src/infrastructure/log"
)

const (
	CorrelationHeader = "X-Correlation-ID"
	correlationKey    = "correlationId"
)

// ChatService answers messages and manages their sessions
type ChatService interface {
	Answer(ctx context.Context, sessionID, message string) (*knowledgebase.ChatResponse, error)
	CreateSession(ctx context.Context) (*knowledgebase.ChatSession, error)
	// GetSession returns nil for an unknown or expired session
	GetSession(ctx context.Context, sessionID string) (*knowledgebase.ChatSession, error)
	DeleteSession(ctx context.Context, sessionID string) (bool, error)
}

// SearchService runs retrieval queries
type SearchService interface {
	Retrieve(ctx context.Context, req knowledgebase.SearchRequest) ([]knowledgebase.SearchResult, error)
}

type Handler struct {
	chatService   ChatService
	searchService SearchService
	sysService    knowledgebase.SystemService
}

func NewHandler(chatService ChatService, searchService SearchService, sysService knowledgebase.SystemService) *Handler {
	return &Handler{
		chatService:   chatService,
		searchService: searchService,
		sysService:    sysService,
	}
}

// RegisterRoutes registers all v1 API routes
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	v1 := r.Group("/api/v1")
	v1.Use(CorrelationID())

	// Chat routes
	v1.POST("/chat", h.Chat)

	// Session routes
	v1.POST("/sessions", h.CreateSession)
	v1.GET("/sessions/:id", h.GetSession)
	v1.DELETE("/sessions/:id", h.DeleteSession)

	// Search routes
	v1.POST("/search", h.Search)

	// System routes
	v1.GET("/health", h.CheckHealth)
}

// CorrelationID tags every request with the caller's correlation id, or a
// fresh one, and echoes it in the response.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(CorrelationHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(correlationKey, id)
		c.Header(CorrelationHeader, id)
		c.Next()
	}
}

// Common error response structure
type ErrorResponse struct {
	Code          string `json:"code"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlationId"`
}

const (
	CodeInvalidRequest  = "INVALID_REQUEST"
	CodeNotFound        = "NOT_FOUND"
	CodeRetrievalFailed = "RETRIEVAL_FAILED"
	CodeInternal        = "INTERNAL_ERROR"
)

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", knowledgebase.ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// sendError maps err to a stable code. Only client errors echo their message;
// backend failures are logged and replaced with a generic one.
func sendError(c *gin.Context, err error) {
	var (
		status  int
		code    string
		message string
		rerr    *knowledgebase.RetrievalError
	)
	switch {
	case errors.Is(err, knowledgebase.ErrInvalidRequest):
		status, code, message = http.StatusBadRequest, CodeInvalidRequest, err.Error()
	case errors.Is(err, knowledgebase.ErrSessionNotFound):
		status, code, message = http.StatusNotFound, CodeNotFound, err.Error()
	case errors.As(err, &rerr):
		status, code, message = http.StatusServiceUnavailable, CodeRetrievalFailed, "The document search service is currently unavailable."
	default:
		status, code, message = http.StatusInternalServerError, CodeInternal, "An unexpected error occurred."
	}

	id := c.GetString(correlationKey)
	if status >= http.StatusInternalServerError {
		log.Error(err, "request failed", "path", c.FullPath(), "correlationId", id, "code", code)
	} else {
		log.Debug("request rejected", "path", c.FullPath(), "correlationId", id, "error", err.Error())
	}

	c.JSON(status, ErrorResponse{
		Code:          code,
		Message:       message,
		CorrelationID: id,
	})
}

func sendJSON(c *gin.Context, status int, data interface{}) {
	c.JSON(status, data)
}
