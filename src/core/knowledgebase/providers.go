package knowledgebase

import (
	"context"
)

// DocumentStore is the remote searchable index
type DocumentStore interface {
	// Search runs a ranked query
	Search(ctx context.Context, req SearchRequest) ([]SearchResult, error)
	// Upsert merges or uploads documents by id and reports each item's outcome
	Upsert(ctx context.Context, docs []Document) ([]ItemResult, error)
	// ProvisionSchema creates the index or updates it in place
	ProvisionSchema(ctx context.Context, schema IndexSchema) error
	// Count returns the number of documents in the index
	Count(ctx context.Context) (int64, error)
	// ListIDs returns up to limit document ids
	ListIDs(ctx context.Context, limit int) ([]string, error)
	// Delete removes documents by id
	Delete(ctx context.Context, ids []string) ([]ItemResult, error)
}

// Role tags a message in a conversation
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is a single role-tagged entry passed to a generation backend
type Message struct {
	Role    Role
	Content string
}

// GenerationBackend turns an ordered conversation into a single completion
type GenerationBackend interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// Embedder generates vectors for semantic search
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// FieldType is the storage type of an index field
type FieldType string

const (
	FieldTypeString   FieldType = "string"
	FieldTypeText     FieldType = "text"
	FieldTypeDateTime FieldType = "datetime"
)

// FieldSpec declares the capabilities of one index field
type FieldSpec struct {
	Name       string
	Type       FieldType
	Key        bool
	Searchable bool
	Filterable bool
	Sortable   bool
	Facetable  bool
	Collection bool
}

// SemanticConfig names the fields used for AI ranking and captions
type SemanticConfig struct {
	Name          string
	TitleField    string
	ContentFields []string
	KeywordFields []string
}

// IndexSchema describes the index a DocumentStore must provision
type IndexSchema struct {
	Name     string
	Fields   []FieldSpec
	Semantic SemanticConfig
}

// Field returns the FieldSpec of the named field.
func (s IndexSchema) Field(name string) (FieldSpec, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}
