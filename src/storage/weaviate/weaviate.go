package weaviate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/fault"
	"github.com/weaviate/weaviate/entities/models"

	"govrag/src/core/knowledgebase"
	"govrag/src/infrastructure/log"
)

// Store implements knowledgebase.DocumentStore on a Weaviate class
type Store struct {
	client    *weaviate.Client
	className string
	embedder  knowledgebase.Embedder
}

// NewStore uses className for every operation. A nil embedder limits
// semantic queries to BM25.
func NewStore(client *weaviate.Client, className string, embedder knowledgebase.Embedder) *Store {
	return &Store{
		client:    client,
		className: ClassName(className),
		embedder:  embedder,
	}
}

// ClassName converts an index name into a valid class name, e.g. "government-info" -> "GovernmentInfo"
func ClassName(name string) string {
	var b strings.Builder
	upper := true
	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// "id" is reserved by Weaviate so the document key is stored as docId
const idProperty = "docId"

// categoryKeyProperty holds the lowercased category; field tokenization keeps
// filters on it exact, so it backs case-insensitive category matching
const categoryKeyProperty = "categoryKey"

func propertyName(field string) string {
	if field == "id" {
		return idProperty
	}
	return field
}

// ObjectID returns the stable object UUID of a document id
func ObjectID(docID string) strfmt.UUID {
	return strfmt.UUID(uuid.NewSHA1(uuid.NameSpaceURL, []byte("govrag:"+docID)).String())
}

func properties(schema knowledgebase.IndexSchema) []*models.Property {
	props := make([]*models.Property, 0, len(schema.Fields))
	for _, f := range schema.Fields {
		p := &models.Property{
			Name:         propertyName(f.Name),
			DataType:     []string{"text"},
			Tokenization: "word",
		}
		switch {
		case f.Type == knowledgebase.FieldTypeDateTime:
			p.DataType = []string{"date"}
			p.Tokenization = ""
		case f.Collection:
			p.DataType = []string{"text[]"}
		case f.Type == knowledgebase.FieldTypeString && !f.Searchable:
			p.Tokenization = "field"
		}
		props = append(props, p)
		if f.Name == "category" {
			props = append(props, &models.Property{
				Name:         categoryKeyProperty,
				DataType:     []string{"text"},
				Tokenization: "field",
			})
		}
	}
	return props
}

// ProvisionSchema creates the class, or adds the properties it is missing
func (w *Store) ProvisionSchema(ctx context.Context, schema knowledgebase.IndexSchema) error {
	existing, err := w.classProperties(ctx)
	if err != nil {
		return err
	}

	props := properties(schema)
	if existing == nil {
		class := &models.Class{
			Class:      w.className,
			Properties: props,
			Vectorizer: "none",
		}
		if err := w.client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
			return fmt.Errorf("failed to create weaviate class: %w", statusError(err))
		}
		log.Info("created weaviate class", "class", w.className)
		return nil
	}

	for _, p := range props {
		if existing[p.Name] {
			continue
		}
		if err := w.client.Schema().PropertyCreator().WithClassName(w.className).WithProperty(p).Do(ctx); err != nil {
			return fmt.Errorf("failed to add property %s: %w", p.Name, statusError(err))
		}
		log.Info("added weaviate property", "class", w.className, "property", p.Name)
	}
	return nil
}

// classProperties returns the property names of the class, or nil when it does not exist
func (w *Store) classProperties(ctx context.Context) (map[string]bool, error) {
	schema, err := w.client.Schema().Getter().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get schema: %w", statusError(err))
	}

	for _, class := range schema.Classes {
		if class.Class != w.className {
			continue
		}
		names := make(map[string]bool, len(class.Properties))
		for _, p := range class.Properties {
			names[p.Name] = true
		}
		return names, nil
	}
	return nil, nil
}

// statusError exposes the HTTP status of a client error as *knowledgebase.StatusError
func statusError(err error) error {
	var werr *fault.WeaviateClientError
	if errors.As(err, &werr) && werr.StatusCode > 0 {
		return &knowledgebase.StatusError{StatusCode: werr.StatusCode, Message: werr.Msg}
	}
	return err
}
