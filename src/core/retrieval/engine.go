package retrieval

import (
	"context"
	"strings"
	"time"

	"govrag/src/core/knowledgebase"
	"govrag/src/infrastructure/log"
	"govrag/src/infrastructure/metrics"
)

// Backend executes a normalized query. Implementations are chosen once when
// the engine is built and never switched per call.
type Backend interface {
	// Name labels the backend in logs and metrics
	Name() string
	Search(ctx context.Context, req knowledgebase.SearchRequest) ([]knowledgebase.SearchResult, error)
}

// Engine runs queries against its backend
type Engine struct {
	backend Backend
	metrics *metrics.Metrics
}

func NewEngine(backend Backend, m *metrics.Metrics) *Engine {
	return &Engine{
		backend: backend,
		metrics: m,
	}
}

// Backend returns the name of the configured backend
func (e *Engine) Backend() string {
	return e.backend.Name()
}

// Normalize applies defaults: top outside [1, MaxTop] becomes DefaultTop,
// negative skip becomes 0 and an empty mode becomes semantic.
func Normalize(req knowledgebase.SearchRequest) knowledgebase.SearchRequest {
	if req.Top < 1 || req.Top > knowledgebase.MaxTop {
		req.Top = knowledgebase.DefaultTop
	}
	if req.Skip < 0 {
		req.Skip = 0
	}
	if req.Mode == "" {
		req.Mode = knowledgebase.SearchModeSemantic
	}
	req.Query = strings.TrimSpace(req.Query)
	return req
}

// Retrieve returns ranked results for req. An empty query yields no results.
// Backend failures are returned as *knowledgebase.RetrievalError.
func (e *Engine) Retrieve(ctx context.Context, req knowledgebase.SearchRequest) ([]knowledgebase.SearchResult, error) {
	req = Normalize(req)
	if req.Query == "" {
		return []knowledgebase.SearchResult{}, nil
	}

	start := time.Now()
	results, err := e.backend.Search(ctx, req)
	elapsed := time.Since(start)
	e.metrics.ObserveRetrieval(string(req.Mode), e.backend.Name(), elapsed, err)
	if err != nil {
		log.Error(err, "retrieval failed", "backend", e.backend.Name(), "mode", req.Mode)
		return nil, err
	}

	log.Debug("retrieval completed",
		"backend", e.backend.Name(),
		"mode", req.Mode,
		"results", len(results),
		"elapsed", elapsed)
	return results, nil
}
