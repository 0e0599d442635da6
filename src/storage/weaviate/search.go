package weaviate

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/weaviate/weaviate-go-client/v4/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"govrag/src/core/knowledgebase"
	"govrag/src/core/retrieval"
)

// HybridAlpha weights vector search against BM25 in hybrid queries
const HybridAlpha = 0.75

var (
	returnFields = []string{idProperty, "title", "content", "summary", "category", "subCategory", "tags", "url", "lastUpdated"}
	bm25Fields   = []string{"title^3", "summary^2", "tags^2", "content"}
)

func categoryWhere(category string) *filters.WhereBuilder {
	if category == "" {
		return nil
	}
	return filters.Where().
		WithOperator(filters.Or).
		WithOperands([]*filters.WhereBuilder{
			filters.Where().WithPath([]string{categoryKeyProperty}).WithOperator(filters.Equal).WithValueText(strings.ToLower(category)),
			filters.Where().WithPath([]string{"categorySlug"}).WithOperator(filters.Equal).WithValueText(category),
		})
}

// Search runs BM25, vector or hybrid queries depending on the mode
func (w *Store) Search(ctx context.Context, req knowledgebase.SearchRequest) ([]knowledgebase.SearchResult, error) {
	fields := make([]graphql.Field, len(returnFields))
	for i, f := range returnFields {
		fields[i] = graphql.Field{Name: f}
	}
	fields = append(fields, graphql.Field{Name: "_additional { id distance score }"})

	get := w.client.GraphQL().Get().
		WithClassName(w.className).
		WithFields(fields...).
		WithLimit(req.Top).
		WithOffset(req.Skip)
	if where := categoryWhere(req.Category); where != nil {
		get = get.WithWhere(where)
	}

	var vector []float32
	if w.embedder != nil && req.Mode != knowledgebase.SearchModeKeyword {
		vec, err := w.embedder.Embed(ctx, req.Query)
		if err != nil {
			return nil, fmt.Errorf("failed to embed query: %w", err)
		}
		vector = vec
	}

	matchAll := strings.TrimSpace(req.Query) == "*"
	switch {
	case matchAll:
	case req.Mode == knowledgebase.SearchModeHybrid && vector != nil:
		get = get.WithHybrid(w.client.GraphQL().HybridArgumentBuilder().
			WithQuery(req.Query).
			WithVector(vector).
			WithAlpha(HybridAlpha))
	case req.Mode == knowledgebase.SearchModeSemantic && vector != nil:
		get = get.WithNearVector(w.client.GraphQL().NearVectorArgBuilder().WithVector(vector))
	default:
		get = get.WithBM25(w.client.GraphQL().Bm25ArgBuilder().
			WithQuery(req.Query).
			WithProperties(bm25Fields...))
	}

	result, err := get.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query objects: %w", statusError(err))
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("failed to query objects: %s", result.Errors[0].Message)
	}

	results := parseResults(result.Data, w.className)
	terms := retrieval.Terms(req.Query)
	for i := range results {
		doc := results[i].Document
		if req.Mode.WantsHighlights() {
			results[i].Highlights = retrieval.Highlights(doc, terms)
		}
		if req.Mode.WantsCaptions() {
			results[i].Captions = []string{retrieval.Caption(doc.Content, terms)}
		}
	}
	return results, nil
}

func parseResults(data map[string]models.JSONObject, className string) []knowledgebase.SearchResult {
	results := []knowledgebase.SearchResult{}
	get, ok := data["Get"].(map[string]interface{})
	if !ok {
		return results
	}
	objects, ok := get[className].([]interface{})
	if !ok {
		return results
	}

	for _, obj := range objects {
		objMap, ok := obj.(map[string]interface{})
		if !ok {
			continue
		}
		additional, _ := objMap["_additional"].(map[string]interface{})

		props := make(map[string]interface{}, len(objMap))
		for k, v := range objMap {
			if k != "_additional" {
				props[k] = v
			}
		}
		results = append(results, knowledgebase.SearchResult{
			Document: fromProperties(props),
			Score:    score(additional),
		})
	}
	return results
}

// score prefers the BM25 or hybrid score and otherwise maps a cosine distance to a similarity
func score(additional map[string]interface{}) float64 {
	if s, ok := number(additional["score"]); ok {
		return max(s, 0)
	}
	if d, ok := number(additional["distance"]); ok {
		return max(1-d, 0)
	}
	return 0
}

// number reads a GraphQL value that may be encoded as a string
func number(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}
