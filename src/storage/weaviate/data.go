package weaviate

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"govrag/src/core/knowledgebase"
)

func toProperties(d knowledgebase.Document) map[string]interface{} {
	tags := d.Tags
	if tags == nil {
		tags = []string{}
	}
	props := map[string]interface{}{
		idProperty:          d.ID,
		"title":             d.Title,
		"content":           d.Content,
		"summary":           d.Summary,
		"category":          d.Category,
		"categorySlug":      d.CategorySlug(),
		categoryKeyProperty: strings.ToLower(d.Category),
		"subCategory":       d.SubCategory,
		"tags":              tags,
		"url":               d.URL,
	}
	if !d.LastUpdated.IsZero() {
		props["lastUpdated"] = d.LastUpdated.UTC().Format(time.RFC3339)
	}
	return props
}

func fromProperties(props map[string]interface{}) knowledgebase.Document {
	str := func(k string) string {
		s, _ := props[k].(string)
		return s
	}
	d := knowledgebase.Document{
		ID:          str(idProperty),
		Title:       str("title"),
		Content:     str("content"),
		Summary:     str("summary"),
		Category:    str("category"),
		SubCategory: str("subCategory"),
		URL:         str("url"),
	}
	if raw, ok := props["tags"].([]interface{}); ok {
		for _, t := range raw {
			if s, ok := t.(string); ok {
				d.Tags = append(d.Tags, s)
			}
		}
	}
	if ts, err := time.Parse(time.RFC3339, str("lastUpdated")); err == nil {
		d.LastUpdated = ts
	}
	return d
}

// Upsert writes documents under their stable object ids so a repeated
// document replaces the stored one.
func (w *Store) Upsert(ctx context.Context, docs []knowledgebase.Document) ([]knowledgebase.ItemResult, error) {
	if len(docs) == 0 {
		return []knowledgebase.ItemResult{}, nil
	}

	objs := make([]*models.Object, len(docs))
	byObject := make(map[string]string, len(docs))
	for i, d := range docs {
		obj := &models.Object{
			Class:      w.className,
			ID:         ObjectID(d.ID),
			Properties: toProperties(d),
		}
		if w.embedder != nil {
			vec, err := w.embedder.Embed(ctx, d.Title+"\n"+d.Content)
			if err != nil {
				return nil, fmt.Errorf("failed to embed document %s: %w", d.ID, err)
			}
			obj.Vector = vec
		}
		objs[i] = obj
		byObject[obj.ID.String()] = d.ID
	}

	resp, err := w.client.Batch().ObjectsBatcher().WithObjects(objs...).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to batch add objects: %w", statusError(err))
	}
	return batchResults(resp, byObject), nil
}

func batchResults(resp []models.ObjectsGetResponse, byObject map[string]string) []knowledgebase.ItemResult {
	items := make([]knowledgebase.ItemResult, 0, len(resp))
	for _, r := range resp {
		id := byObject[r.ID.String()]
		item := knowledgebase.ItemResult{ID: id, Succeeded: true, StatusCode: http.StatusOK}
		if r.Result != nil && r.Result.Errors != nil && len(r.Result.Errors.Error) > 0 {
			item.Succeeded = false
			item.StatusCode = http.StatusUnprocessableEntity
			item.Message = r.Result.Errors.Error[0].Message
		}
		items = append(items, item)
	}
	return items
}

// Delete removes documents by id
func (w *Store) Delete(ctx context.Context, ids []string) ([]knowledgebase.ItemResult, error) {
	items := make([]knowledgebase.ItemResult, 0, len(ids))
	for _, id := range ids {
		item := knowledgebase.ItemResult{ID: id, Succeeded: true, StatusCode: http.StatusNoContent}
		err := w.client.Data().Deleter().
			WithClassName(w.className).
			WithID(ObjectID(id).String()).
			Do(ctx)
		if err != nil {
			item.Succeeded = false
			item.Message = err.Error()
			if serr, ok := statusError(err).(*knowledgebase.StatusError); ok {
				item.StatusCode = serr.StatusCode
			}
		}
		items = append(items, item)
	}
	return items, nil
}

// ListIDs returns up to limit document ids
func (w *Store) ListIDs(ctx context.Context, limit int) ([]string, error) {
	objs, err := w.client.Data().ObjectsGetter().
		WithClassName(w.className).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", statusError(err))
	}

	ids := make([]string, 0, len(objs))
	for _, o := range objs {
		props, _ := o.Properties.(map[string]interface{})
		if id, ok := props[idProperty].(string); ok && id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Count returns the number of objects in the class
func (w *Store) Count(ctx context.Context) (int64, error) {
	result, err := w.client.GraphQL().Aggregate().
		WithClassName(w.className).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to aggregate objects: %w", statusError(err))
	}
	if len(result.Errors) > 0 {
		return 0, fmt.Errorf("failed to aggregate objects: %s", result.Errors[0].Message)
	}
	return parseCount(result.Data, w.className), nil
}

func parseCount(data map[string]models.JSONObject, className string) int64 {
	agg, ok := data["Aggregate"].(map[string]interface{})
	if !ok {
		return 0
	}
	rows, ok := agg[className].([]interface{})
	if !ok || len(rows) == 0 {
		return 0
	}
	row, _ := rows[0].(map[string]interface{})
	meta, _ := row["meta"].(map[string]interface{})
	n, _ := meta["count"].(float64)
	return int64(n)
}
