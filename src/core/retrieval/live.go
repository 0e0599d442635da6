package retrieval

import (
	"context"
	"time"

	"govrag/src/core/knowledgebase"
)

// LiveBackend queries the remote document store
type LiveBackend struct {
	store   knowledgebase.DocumentStore
	timeout time.Duration
}

// NewLiveBackend wraps store; each search is bounded by timeout when it is positive
func NewLiveBackend(store knowledgebase.DocumentStore, timeout time.Duration) *LiveBackend {
	return &LiveBackend{
		store:   store,
		timeout: timeout,
	}
}

func (b *LiveBackend) Name() string {
	return "live"
}

func (b *LiveBackend) Search(ctx context.Context, req knowledgebase.SearchRequest) ([]knowledgebase.SearchResult, error) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	results, err := b.store.Search(ctx, req)
	if err != nil {
		return nil, &knowledgebase.RetrievalError{Mode: req.Mode, Err: err}
	}
	return results, nil
}
