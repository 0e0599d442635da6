package v2

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"govrag/src/core/knowledgebase"
)

type searchRequest struct {
	Query    string `json:"query"`
	Mode     string `json:"mode"`
	Top      *int   `json:"top"`
	Category string `json:"category"`
	Skip     int    `json:"skip"`
}

type searchResponse struct {
	Results []knowledgebase.SearchResult `json:"results"`
	Count   int                          `json:"count"`
}

func (r searchRequest) toSearchRequest() (knowledgebase.SearchRequest, error) {
	query := strings.TrimSpace(r.Query)
	if query == "" {
		return knowledgebase.SearchRequest{}, invalid("query is required")
	}
	mode, err := knowledgebase.ParseSearchMode(r.Mode)
	if err != nil {
		return knowledgebase.SearchRequest{}, err
	}
	top := knowledgebase.DefaultTop
	if r.Top != nil {
		top = *r.Top
		if top < 1 || top > knowledgebase.MaxTop {
			return knowledgebase.SearchRequest{}, invalid("top must be between 1 and %d", knowledgebase.MaxTop)
		}
	}
	if r.Skip < 0 {
		return knowledgebase.SearchRequest{}, invalid("skip must not be negative")
	}
	return knowledgebase.SearchRequest{
		Query:    query,
		Mode:     mode,
		Top:      top,
		Category: strings.TrimSpace(r.Category),
		Skip:     r.Skip,
	}, nil
}

// Search godoc
// @Summary Search government information documents
// @Tags search
// @Accept json
// @Produce json
// @Param body body searchRequest true "Search parameters"
// @Success 200 {object} searchResponse
// @Failure 400 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /search [post]
func (h *Handler) Search(c *gin.Context) {
	var body searchRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		sendError(c, invalid("malformed body: %v", err))
		return
	}

	req, err := body.toSearchRequest()
	if err != nil {
		sendError(c, err)
		return
	}

	results, err := h.searchService.Retrieve(c.Request.Context(), req)
	if err != nil {
		sendError(c, err)
		return
	}

	sendJSON(c, http.StatusOK, searchResponse{Results: results, Count: len(results)})
}
