package knowledgebase

import (
	"fmt"
	"strings"
	"time"
)

// Document is a single government information page held by the index.
type Document struct {
	ID          string    `json:"id" yaml:"id"`
	Title       string    `json:"title" yaml:"title"`
	Content     string    `json:"content" yaml:"content"`
	Summary     string    `json:"summary,omitempty" yaml:"summary,omitempty"`
	Category    string    `json:"category" yaml:"category"`
	SubCategory string    `json:"subCategory,omitempty" yaml:"subCategory,omitempty"`
	Tags        []string  `json:"tags" yaml:"tags"`
	URL         string    `json:"url,omitempty" yaml:"url,omitempty"`
	LastUpdated time.Time `json:"lastUpdated" yaml:"lastUpdated"`
}

// Validate reports the first missing required field.
func (d Document) Validate() error {
	switch {
	case strings.TrimSpace(d.ID) == "":
		return fmt.Errorf("%w: missing id", ErrInvalidDocument)
	case strings.TrimSpace(d.Title) == "":
		return fmt.Errorf("%w: document %s missing title", ErrInvalidDocument, d.ID)
	case strings.TrimSpace(d.Content) == "":
		return fmt.Errorf("%w: document %s missing content", ErrInvalidDocument, d.ID)
	case strings.TrimSpace(d.Category) == "":
		return fmt.Errorf("%w: document %s missing category", ErrInvalidDocument, d.ID)
	}
	return nil
}

// CategorySlug returns the URL form of the category, e.g. "Public Safety" -> "public-safety".
func (d Document) CategorySlug() string {
	return Slugify(d.Category)
}

// Slugify lowercases s and replaces spaces with hyphens.
func Slugify(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "-")
}

// MatchesCategory reports whether the document belongs to the category filter.
// An empty filter matches everything.
func (d Document) MatchesCategory(filter string) bool {
	if filter == "" {
		return true
	}
	return strings.EqualFold(d.Category, filter) || d.CategorySlug() == filter
}

// DocumentSource is a citation attached to an assistant message.
type DocumentSource struct {
	DocumentID string  `json:"documentId"`
	Title      string  `json:"title"`
	URL        string  `json:"url"`
	Relevance  float64 `json:"relevance"`
}

// ChatResponse is the result of answering one user message.
type ChatResponse struct {
	SessionID        string           `json:"sessionId"`
	Content          string           `json:"content"`
	Sources          []DocumentSource `json:"sources"`
	Confidence       *float64         `json:"confidence,omitempty"`
	ProcessingTimeMs int64            `json:"processingTimeMs"`
}

// IngestionBatchResult is the terminal report of one ingestion run.
type IngestionBatchResult struct {
	SuccessCount int           `json:"successCount"`
	FailureCount int           `json:"failureCount"`
	Errors       []string      `json:"errors"`
	Duration     time.Duration `json:"duration"`
}

// Total returns the number of documents accounted for by the report.
func (r IngestionBatchResult) Total() int {
	return r.SuccessCount + r.FailureCount
}

// ItemResult is the per-document outcome of a store write.
type ItemResult struct {
	ID         string `json:"id"`
	Succeeded  bool   `json:"succeeded"`
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message,omitempty"`
}
