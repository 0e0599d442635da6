package retrieval

import (
	"context"
	"sort"
	"strings"

	"govrag/src/core/knowledgebase"
)

// Term weights of the local scorer
const (
	TitleWeight    = 2.0
	ContentWeight  = 1.0
	TagWeight      = 1.5
	CategoryWeight = 0.5
)

// DegradedBackend scores an in-memory corpus when the remote index is unavailable
type DegradedBackend struct {
	corpus []knowledgebase.Document
}

// NewDegradedBackend keeps corpus in the given order; ties rank by that order
func NewDegradedBackend(corpus []knowledgebase.Document) *DegradedBackend {
	return &DegradedBackend{
		corpus: corpus,
	}
}

func (b *DegradedBackend) Name() string {
	return "degraded"
}

func (b *DegradedBackend) Search(ctx context.Context, req knowledgebase.SearchRequest) ([]knowledgebase.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	terms := Terms(req.Query)
	if len(terms) == 0 {
		return []knowledgebase.SearchResult{}, nil
	}

	results := make([]knowledgebase.SearchResult, 0)
	for _, doc := range b.corpus {
		if !doc.MatchesCategory(req.Category) {
			continue
		}
		score := Score(doc, terms)
		if score <= 0 {
			continue
		}
		results = append(results, knowledgebase.SearchResult{
			Document: doc,
			Score:    score,
			Captions: []string{Caption(doc.Content, terms)},
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if req.Skip >= len(results) {
		return []knowledgebase.SearchResult{}, nil
	}
	results = results[req.Skip:]
	if len(results) > req.Top {
		results = results[:req.Top]
	}
	return results, nil
}

// Terms splits a query on whitespace and lowercases each term
func Terms(query string) []string {
	fields := strings.Fields(query)
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		terms = append(terms, strings.ToLower(f))
	}
	return terms
}

// Score sums weighted hits of each term in the title, content, tags and category
func Score(doc knowledgebase.Document, terms []string) float64 {
	title := strings.ToLower(doc.Title)
	content := strings.ToLower(doc.Content)
	category := strings.ToLower(doc.Category)
	tags := make([]string, len(doc.Tags))
	for i, tag := range doc.Tags {
		tags[i] = strings.ToLower(tag)
	}

	var score float64
	for _, term := range terms {
		if strings.Contains(title, term) {
			score += TitleWeight
		}
		if strings.Contains(content, term) {
			score += ContentWeight
		}
		for _, tag := range tags {
			if strings.Contains(tag, term) {
				score += TagWeight
				break
			}
		}
		if strings.Contains(category, term) {
			score += CategoryWeight
		}
	}
	return score
}
