package elastic

import (
	"context"
	"fmt"
	"strings"

	"govrag/src/core/knowledgebase"
)

var searchFields = []string{"title^3", "summary^2", "tags^2", "content"}

const captionFragmentSize = 150

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID        string              `json:"_id"`
			Score     *float64            `json:"_score"`
			Source    indexedDocument     `json:"_source"`
			Highlight map[string][]string `json:"highlight"`
		} `json:"hits"`
	} `json:"hits"`
}

func categoryFilter(category string) []interface{} {
	if category == "" {
		return nil
	}
	return []interface{}{
		map[string]interface{}{
			"bool": map[string]interface{}{
				"should": []interface{}{
					map[string]interface{}{"term": map[string]interface{}{"category": map[string]interface{}{"value": category, "case_insensitive": true}}},
					map[string]interface{}{"term": map[string]interface{}{"categorySlug": map[string]interface{}{"value": category}}},
				},
				"minimum_should_match": 1,
			},
		},
	}
}

func textQuery(query string, filter []interface{}) map[string]interface{} {
	must := map[string]interface{}{"match_all": map[string]interface{}{}}
	if query != "*" {
		must = map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  query,
				"fields": searchFields,
			},
		}
	}
	b := map[string]interface{}{"must": []interface{}{must}}
	if filter != nil {
		b["filter"] = filter
	}
	return map[string]interface{}{"bool": b}
}

// buildQuery assembles the search body for the request's mode. Semantic and
// hybrid use a kNN clause when a vector is given; captions come from a
// single content highlight fragment.
func buildQuery(req knowledgebase.SearchRequest, vector []float32) map[string]interface{} {
	filter := categoryFilter(req.Category)
	body := map[string]interface{}{
		"from": req.Skip,
		"size": req.Top,
	}

	useText := req.Mode == knowledgebase.SearchModeKeyword || req.Mode == knowledgebase.SearchModeHybrid || vector == nil
	if useText {
		body["query"] = textQuery(req.Query, filter)
	}
	if vector != nil && req.Mode != knowledgebase.SearchModeKeyword {
		k := req.Top + req.Skip
		knn := map[string]interface{}{
			"field":          vectorField,
			"query_vector":   vector,
			"k":              k,
			"num_candidates": max(100, 2*k),
		}
		if filter != nil {
			knn["filter"] = filter
		}
		body["knn"] = knn
	}

	fields := map[string]interface{}{}
	if req.Mode.WantsHighlights() {
		fields["title"] = map[string]interface{}{}
		fields["summary"] = map[string]interface{}{}
	}
	if req.Mode.WantsHighlights() || req.Mode.WantsCaptions() {
		fields["content"] = map[string]interface{}{
			"fragment_size":       captionFragmentSize,
			"number_of_fragments": 1,
		}
	}
	if req.Mode.WantsCaptions() && !useText {
		// highlight needs a text query to mark terms when only kNN runs
		fields["content"].(map[string]interface{})["highlight_query"] = map[string]interface{}{
			"match": map[string]interface{}{"content": req.Query},
		}
	}
	body["highlight"] = map[string]interface{}{"fields": fields}
	return body
}

// Search runs a ranked query against the index
func (s *Store) Search(ctx context.Context, req knowledgebase.SearchRequest) ([]knowledgebase.SearchResult, error) {
	var vector []float32
	if s.embedder != nil && req.Mode != knowledgebase.SearchModeKeyword && strings.TrimSpace(req.Query) != "*" {
		vec, err := s.embedder.Embed(ctx, req.Query)
		if err != nil {
			return nil, fmt.Errorf("failed to embed query: %w", err)
		}
		vector = vec
	}

	body, err := encode(buildQuery(req, vector))
	if err != nil {
		return nil, err
	}

	var out searchResponse
	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(s.index),
		s.client.Search.WithBody(body),
	)
	if err := decode(res, err, "search documents", &out); err != nil {
		return nil, err
	}

	results := make([]knowledgebase.SearchResult, 0, len(out.Hits.Hits))
	for _, h := range out.Hits.Hits {
		r := knowledgebase.SearchResult{Document: h.Source.document()}
		if r.Document.ID == "" {
			r.Document.ID = h.ID
		}
		if h.Score != nil && *h.Score > 0 {
			r.Score = *h.Score
		}
		if req.Mode.WantsHighlights() && len(h.Highlight) > 0 {
			r.Highlights = h.Highlight
		}
		if req.Mode.WantsCaptions() {
			r.Captions = h.Highlight["content"]
		}
		results = append(results, r)
	}
	return results, nil
}

// ListIDs returns up to limit document ids
func (s *Store) ListIDs(ctx context.Context, limit int) ([]string, error) {
	body, err := encode(map[string]interface{}{
		"size":    limit,
		"_source": false,
		"query":   map[string]interface{}{"match_all": map[string]interface{}{}},
	})
	if err != nil {
		return nil, err
	}

	var out searchResponse
	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(s.index),
		s.client.Search.WithBody(body),
	)
	if err := decode(res, err, "list documents", &out); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(out.Hits.Hits))
	for _, h := range out.Hits.Hits {
		ids = append(ids, h.ID)
	}
	return ids, nil
}
