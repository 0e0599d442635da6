package ingestion

import (
	"govrag/src/core/knowledgebase"
)

const DefaultIndexName = "government-info"

// DefaultSchema returns the document index layout
func DefaultSchema(indexName string) knowledgebase.IndexSchema {
	if indexName == "" {
		indexName = DefaultIndexName
	}
	return knowledgebase.IndexSchema{
		Name: indexName,
		Fields: []knowledgebase.FieldSpec{
			{Name: "id", Type: knowledgebase.FieldTypeString, Key: true, Filterable: true},
			{Name: "title", Type: knowledgebase.FieldTypeText, Searchable: true},
			{Name: "content", Type: knowledgebase.FieldTypeText, Searchable: true},
			{Name: "summary", Type: knowledgebase.FieldTypeText, Searchable: true},
			{Name: "category", Type: knowledgebase.FieldTypeString, Filterable: true, Facetable: true},
			{Name: "categorySlug", Type: knowledgebase.FieldTypeString, Filterable: true, Facetable: true},
			{Name: "subCategory", Type: knowledgebase.FieldTypeString, Filterable: true, Facetable: true},
			{Name: "tags", Type: knowledgebase.FieldTypeString, Collection: true, Searchable: true, Filterable: true, Facetable: true},
			{Name: "url", Type: knowledgebase.FieldTypeString},
			{Name: "lastUpdated", Type: knowledgebase.FieldTypeDateTime, Filterable: true, Sortable: true},
		},
		Semantic: knowledgebase.SemanticConfig{
			Name:          "default",
			TitleField:    "title",
			ContentFields: []string{"content", "summary"},
			KeywordFields: []string{"tags", "category"},
		},
	}
}
