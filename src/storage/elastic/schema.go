package elastic

import (
	"context"
	"fmt"
	"net/http"

	"govrag/src/core/knowledgebase"
	"govrag/src/infrastructure/log"
)

const vectorField = "contentVector"

// mappingFor translates the index schema into Elasticsearch mappings
func mappingFor(schema knowledgebase.IndexSchema, dims int) map[string]interface{} {
	props := make(map[string]interface{}, len(schema.Fields)+1)
	for _, f := range schema.Fields {
		switch f.Type {
		case knowledgebase.FieldTypeText:
			props[f.Name] = map[string]interface{}{"type": "text"}
		case knowledgebase.FieldTypeDateTime:
			props[f.Name] = map[string]interface{}{"type": "date"}
		default:
			p := map[string]interface{}{"type": "keyword"}
			if f.Searchable {
				p = map[string]interface{}{
					"type":   "text",
					"fields": map[string]interface{}{"keyword": map[string]interface{}{"type": "keyword"}},
				}
			}
			if !f.Filterable && !f.Searchable && !f.Key {
				p["index"] = false
			}
			props[f.Name] = p
		}
	}
	if dims > 0 {
		props[vectorField] = map[string]interface{}{
			"type":       "dense_vector",
			"dims":       dims,
			"index":      true,
			"similarity": "cosine",
		}
	}
	return map[string]interface{}{
		"properties": props,
	}
}

// ProvisionSchema creates the index, or adds new fields to an existing one
func (s *Store) ProvisionSchema(ctx context.Context, schema knowledgebase.IndexSchema) error {
	dims := 0
	if s.embedder != nil {
		vec, err := s.embedder.Embed(ctx, schema.Semantic.Name)
		if err != nil {
			return fmt.Errorf("failed to detect embedding dimensions: %w", err)
		}
		dims = len(vec)
	}
	mapping := mappingFor(schema, dims)

	res, err := s.client.Indices.Exists([]string{s.index}, s.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to check index: %w", err)
	}
	res.Body.Close()

	switch res.StatusCode {
	case http.StatusNotFound:
		body, err := encode(map[string]interface{}{"mappings": mapping})
		if err != nil {
			return err
		}
		res, err := s.client.Indices.Create(s.index,
			s.client.Indices.Create.WithContext(ctx),
			s.client.Indices.Create.WithBody(body),
		)
		if err := decode(res, err, "create index", nil); err != nil {
			return err
		}
		log.Info("created index", "index", s.index, "vectorDims", dims)
	case http.StatusOK:
		body, err := encode(mapping)
		if err != nil {
			return err
		}
		res, err := s.client.Indices.PutMapping([]string{s.index}, body,
			s.client.Indices.PutMapping.WithContext(ctx),
		)
		if err := decode(res, err, "update index mapping", nil); err != nil {
			return err
		}
		log.Info("updated index mapping", "index", s.index)
	default:
		return fmt.Errorf("failed to check index: %w", &knowledgebase.StatusError{StatusCode: res.StatusCode})
	}
	return nil
}
