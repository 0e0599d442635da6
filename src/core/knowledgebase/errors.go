package knowledgebase

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrSessionNotFound = errors.New("Session not found")
	ErrInvalidRequest  = errors.New("Invalid request")
	ErrInvalidDocument = errors.New("Invalid document")
)

// RetrievalError is returned when a live search against the document store fails.
type RetrievalError struct {
	Mode SearchMode
	Err  error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval failed [%s]: %v", e.Mode, e.Err)
}

func (e *RetrievalError) Unwrap() error {
	return e.Err
}

// StatusError carries the HTTP status a backend answered with.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend responded %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("backend responded %d: %s", e.StatusCode, e.Message)
}

// Retryable reports whether the status is transient: 429 or any 5xx.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}
