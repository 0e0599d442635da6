package knowledgebase

import (
	"fmt"
	"strings"
)

// SearchMode selects the ranking strategy of a query.
type SearchMode string

const (
	SearchModeKeyword  SearchMode = "keyword"
	SearchModeSemantic SearchMode = "semantic"
	SearchModeHybrid   SearchMode = "hybrid"
)

// ParseSearchMode parses a mode name case-insensitively. Empty means semantic.
func ParseSearchMode(s string) (SearchMode, error) {
	switch SearchMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", SearchModeSemantic:
		return SearchModeSemantic, nil
	case SearchModeKeyword:
		return SearchModeKeyword, nil
	case SearchModeHybrid:
		return SearchModeHybrid, nil
	}
	return "", fmt.Errorf("%w: unknown search mode %q", ErrInvalidRequest, s)
}

// WantsHighlights reports whether the store should return highlighted fields.
func (m SearchMode) WantsHighlights() bool {
	return m == SearchModeKeyword || m == SearchModeHybrid
}

// WantsCaptions reports whether the store should return extractive captions.
func (m SearchMode) WantsCaptions() bool {
	return m == SearchModeSemantic || m == SearchModeHybrid
}

const (
	DefaultTop = 10
	MaxTop     = 50
)

// SearchRequest is a single retrieval query.
type SearchRequest struct {
	Query    string     `json:"query"`
	Mode     SearchMode `json:"mode"`
	Top      int        `json:"top"`
	Category string     `json:"category,omitempty"`
	Skip     int        `json:"skip"`
}

// SearchResult represents one ranked document returned for a query
type SearchResult struct {
	Document   Document            `json:"document"`
	Score      float64             `json:"score"`
	Highlights map[string][]string `json:"highlights,omitempty"`
	Captions   []string            `json:"captions,omitempty"`
}
