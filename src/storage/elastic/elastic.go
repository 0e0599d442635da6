package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"govrag/src/core/knowledgebase"
)

// Config holds connection settings for the Elasticsearch document store
type Config struct {
	Addresses []string
	Username  string
	Password  string
	Index     string
	// Refresh is passed to bulk writes, e.g. "wait_for"; empty leaves it unset
	Refresh string
	// Transport overrides the HTTP transport
	Transport http.RoundTripper
}

// Store implements knowledgebase.DocumentStore on an Elasticsearch index
type Store struct {
	client   *elasticsearch.Client
	index    string
	refresh  string
	embedder knowledgebase.Embedder
}

// New connects to Elasticsearch. Retries are left to the caller.
// A nil embedder disables vector search.
func New(cfg Config, embedder knowledgebase.Embedder) (*Store, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:    cfg.Addresses,
		Username:     cfg.Username,
		Password:     cfg.Password,
		Transport:    cfg.Transport,
		DisableRetry: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	return NewStore(client, cfg.Index, cfg.Refresh, embedder), nil
}

func NewStore(client *elasticsearch.Client, index, refresh string, embedder knowledgebase.Embedder) *Store {
	return &Store{
		client:   client,
		index:    index,
		refresh:  refresh,
		embedder: embedder,
	}
}

// indexedDocument is the stored form of a document
type indexedDocument struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	Summary       string    `json:"summary,omitempty"`
	Category      string    `json:"category"`
	CategorySlug  string    `json:"categorySlug"`
	SubCategory   string    `json:"subCategory,omitempty"`
	Tags          []string  `json:"tags"`
	URL           string    `json:"url,omitempty"`
	LastUpdated   time.Time `json:"lastUpdated"`
	ContentVector []float32 `json:"contentVector,omitempty"`
}

func toIndexed(d knowledgebase.Document) indexedDocument {
	return indexedDocument{
		ID:           d.ID,
		Title:        d.Title,
		Content:      d.Content,
		Summary:      d.Summary,
		Category:     d.Category,
		CategorySlug: d.CategorySlug(),
		SubCategory:  d.SubCategory,
		Tags:         d.Tags,
		URL:          d.URL,
		LastUpdated:  d.LastUpdated,
	}
}

func (d indexedDocument) document() knowledgebase.Document {
	return knowledgebase.Document{
		ID:          d.ID,
		Title:       d.Title,
		Content:     d.Content,
		Summary:     d.Summary,
		Category:    d.Category,
		SubCategory: d.SubCategory,
		Tags:        d.Tags,
		URL:         d.URL,
		LastUpdated: d.LastUpdated,
	}
}

type errorBody struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
}

// decode closes the response and turns error statuses into *knowledgebase.StatusError
func decode(res *esapi.Response, err error, op string, out interface{}) error {
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		var eb errorBody
		msg := string(body)
		if json.Unmarshal(body, &eb) == nil && eb.Error.Reason != "" {
			msg = eb.Error.Type + ": " + eb.Error.Reason
		}
		return fmt.Errorf("failed to %s: %w", op, &knowledgebase.StatusError{StatusCode: res.StatusCode, Message: msg})
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", op, err)
	}
	return nil
}

func encode(v interface{}) (*bytes.Reader, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return bytes.NewReader(b), nil
}

// Count returns the number of documents in the index
func (s *Store) Count(ctx context.Context) (int64, error) {
	var out struct {
		Count int64 `json:"count"`
	}
	res, err := s.client.Count(
		s.client.Count.WithContext(ctx),
		s.client.Count.WithIndex(s.index),
	)
	if err := decode(res, err, "count documents", &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}
