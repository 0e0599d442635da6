package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8/esapi"

	"govrag/src/core/knowledgebase"
)

type bulkResponse struct {
	Errors bool                         `json:"errors"`
	Items  []map[string]bulkItemOutcome `json:"items"`
}

type bulkItemOutcome struct {
	ID     string `json:"_id"`
	Status int    `json:"status"`
	Error  *struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error,omitempty"`
}

// Upsert merges each document into the index, creating it when missing
func (s *Store) Upsert(ctx context.Context, docs []knowledgebase.Document) ([]knowledgebase.ItemResult, error) {
	if len(docs) == 0 {
		return []knowledgebase.ItemResult{}, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, d := range docs {
		doc := toIndexed(d)
		if s.embedder != nil {
			vec, err := s.embedder.Embed(ctx, d.Title+"\n"+d.Content)
			if err != nil {
				return nil, fmt.Errorf("failed to embed document %s: %w", d.ID, err)
			}
			doc.ContentVector = vec
		}

		meta := map[string]interface{}{"update": map[string]string{"_index": s.index, "_id": d.ID}}
		if err := enc.Encode(meta); err != nil {
			return nil, fmt.Errorf("failed to encode bulk action: %w", err)
		}
		if err := enc.Encode(map[string]interface{}{"doc": doc, "doc_as_upsert": true}); err != nil {
			return nil, fmt.Errorf("failed to encode document %s: %w", d.ID, err)
		}
	}

	return s.bulk(ctx, &buf, s.refresh, "upsert documents")
}

// Delete removes documents by id. Missing documents are reported as failed items.
func (s *Store) Delete(ctx context.Context, ids []string) ([]knowledgebase.ItemResult, error) {
	if len(ids) == 0 {
		return []knowledgebase.ItemResult{}, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, id := range ids {
		if err := enc.Encode(map[string]interface{}{"delete": map[string]string{"_index": s.index, "_id": id}}); err != nil {
			return nil, fmt.Errorf("failed to encode bulk action: %w", err)
		}
	}

	// deleted ids must not be listed again by the next page
	return s.bulk(ctx, &buf, "true", "delete documents")
}

func (s *Store) bulk(ctx context.Context, body *bytes.Buffer, refresh, op string) ([]knowledgebase.ItemResult, error) {
	opts := []func(*esapi.BulkRequest){
		s.client.Bulk.WithContext(ctx),
		s.client.Bulk.WithIndex(s.index),
	}
	if refresh != "" {
		opts = append(opts, s.client.Bulk.WithRefresh(refresh))
	}

	var out bulkResponse
	res, err := s.client.Bulk(body, opts...)
	if err := decode(res, err, op, &out); err != nil {
		return nil, err
	}

	items := make([]knowledgebase.ItemResult, 0, len(out.Items))
	for _, entry := range out.Items {
		for _, it := range entry {
			r := knowledgebase.ItemResult{
				ID:         it.ID,
				StatusCode: it.Status,
				Succeeded:  it.Status >= 200 && it.Status < 300,
			}
			if it.Error != nil {
				r.Message = it.Error.Type + ": " + it.Error.Reason
			}
			items = append(items, r)
		}
	}
	return items, nil
}
