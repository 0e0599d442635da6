package elastic_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"govrag/src/core/knowledgebase"
	"govrag/src/storage/elastic"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   string
}

// fakeTransport answers every request with the next queued response
type fakeTransport struct {
	mu        sync.Mutex
	requests  []recordedRequest
	responses []fakeResponse
}

type fakeResponse struct {
	status int
	body   string
}

func (f *fakeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var body []byte
	if req.Body != nil {
		body, _ = io.ReadAll(req.Body)
	}
	f.requests = append(f.requests, recordedRequest{
		Method: req.Method,
		Path:   req.URL.Path,
		Query:  req.URL.RawQuery,
		Body:   string(body),
	})

	resp := fakeResponse{status: http.StatusOK, body: "{}"}
	if len(f.responses) > 0 {
		resp = f.responses[0]
		f.responses = f.responses[1:]
	}
	h := http.Header{}
	h.Set("X-Elastic-Product", "Elasticsearch")
	h.Set("Content-Type", "application/json")
	return &http.Response{
		StatusCode: resp.status,
		Header:     h,
		Body:       io.NopCloser(bytes.NewBufferString(resp.body)),
		Request:    req,
	}, nil
}

type fixedEmbedder struct{}

func (fixedEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{0.1, 0.2, 0.3}, nil
}

func newStore(t *testing.T, ft *fakeTransport, embedder knowledgebase.Embedder) *elastic.Store {
	t.Helper()
	s, err := elastic.New(elastic.Config{
		Addresses: []string{"http://localhost:9200"},
		Index:     "government-info",
		Refresh:   "wait_for",
		Transport: ft,
	}, embedder)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}

func TestUpsertBuildsMergeOrUploadBulk(t *testing.T) {
	ft := &fakeTransport{responses: []fakeResponse{{
		status: 200,
		body: `{"errors":true,"items":[
			{"update":{"_id":"a","status":200}},
			{"update":{"_id":"b","status":400,"error":{"type":"mapper_parsing_exception","reason":"bad date"}}}
		]}`,
	}}}
	store := newStore(t, ft, nil)

	items, err := store.Upsert(context.Background(), []knowledgebase.Document{
		{ID: "a", Title: "A", Content: "a", Category: "Public Safety"},
		{ID: "b", Title: "B", Content: "b", Category: "Permits"},
	})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if len(items) != 2 || !items[0].Succeeded || items[1].Succeeded {
		t.Fatalf("Upsert() items = %+v", items)
	}
	if !strings.Contains(items[1].Message, "bad date") {
		t.Errorf("Upsert() message = %q, want reason", items[1].Message)
	}

	req := ft.requests[len(ft.requests)-1]
	if req.Method != http.MethodPost || !strings.HasSuffix(req.Path, "/_bulk") {
		t.Errorf("request = %s %s, want POST .../_bulk", req.Method, req.Path)
	}
	if !strings.Contains(req.Query, "refresh=wait_for") {
		t.Errorf("query = %q, want refresh=wait_for", req.Query)
	}
	lines := strings.Split(strings.TrimSpace(req.Body), "\n")
	if len(lines) != 4 {
		t.Fatalf("bulk body has %d lines, want 4", len(lines))
	}
	var action map[string]map[string]string
	if err := json.Unmarshal([]byte(lines[0]), &action); err != nil || action["update"]["_id"] != "a" {
		t.Errorf("bulk action = %s", lines[0])
	}
	var doc struct {
		Doc         map[string]interface{} `json:"doc"`
		DocAsUpsert bool                   `json:"doc_as_upsert"`
	}
	if err := json.Unmarshal([]byte(lines[1]), &doc); err != nil {
		t.Fatalf("bulk doc = %s: %v", lines[1], err)
	}
	if !doc.DocAsUpsert || doc.Doc["categorySlug"] != "public-safety" {
		t.Errorf("bulk doc = %s, want doc_as_upsert and categorySlug", lines[1])
	}
}

func TestUpsertReturnsStatusError(t *testing.T) {
	ft := &fakeTransport{responses: []fakeResponse{{status: 503, body: `{"error":{"type":"unavailable","reason":"busy"}}`}}}
	store := newStore(t, ft, nil)

	_, err := store.Upsert(context.Background(), []knowledgebase.Document{{ID: "a"}})
	var serr *knowledgebase.StatusError
	if !errors.As(err, &serr) || serr.StatusCode != 503 || !serr.Retryable() {
		t.Fatalf("Upsert() error = %v, want retryable StatusError 503", err)
	}
}

func TestSearchKeyword(t *testing.T) {
	ft := &fakeTransport{responses: []fakeResponse{{
		status: 200,
		body: `{"hits":{"hits":[
			{"_id":"p1","_score":4.2,"_source":{"id":"p1","title":"Parking Permit","content":"Apply online","category":"Transportation","tags":["parking"]},
			 "highlight":{"title":["<em>Parking</em> Permit"]}}
		]}}`,
	}}}
	store := newStore(t, ft, fixedEmbedder{})

	results, err := store.Search(context.Background(), knowledgebase.SearchRequest{
		Query:    "parking",
		Mode:     knowledgebase.SearchModeKeyword,
		Top:      5,
		Category: "transportation",
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 || results[0].Document.ID != "p1" || results[0].Score != 4.2 {
		t.Fatalf("Search() = %+v", results)
	}
	if got := results[0].Highlights["title"]; len(got) != 1 {
		t.Errorf("Search() highlights = %v", results[0].Highlights)
	}

	body := ft.requests[len(ft.requests)-1].Body
	for _, want := range []string{`"multi_match"`, `"categorySlug"`, `"case_insensitive":true`, `"size":5`} {
		if !strings.Contains(body, want) {
			t.Errorf("search body missing %s: %s", want, body)
		}
	}
	if strings.Contains(body, `"knn"`) {
		t.Errorf("keyword search used knn: %s", body)
	}
}

func TestSearchSemanticUsesVector(t *testing.T) {
	ft := &fakeTransport{responses: []fakeResponse{{
		status: 200,
		body:   `{"hits":{"hits":[{"_id":"p1","_score":0.8,"_source":{"id":"p1","title":"T","content":"C","category":"X"},"highlight":{"content":["caption text"]}}]}}`,
	}}}
	store := newStore(t, ft, fixedEmbedder{})

	results, err := store.Search(context.Background(), knowledgebase.SearchRequest{Query: "parking", Mode: knowledgebase.SearchModeSemantic, Top: 3})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results[0].Captions) != 1 || results[0].Captions[0] != "caption text" {
		t.Errorf("Search() captions = %v", results[0].Captions)
	}
	if results[0].Highlights != nil {
		t.Errorf("semantic search returned highlights %v", results[0].Highlights)
	}
	body := ft.requests[len(ft.requests)-1].Body
	if !strings.Contains(body, `"knn"`) || !strings.Contains(body, `"contentVector"`) {
		t.Errorf("semantic search body = %s, want knn on contentVector", body)
	}
}

func TestProvisionSchema(t *testing.T) {
	tests := []struct {
		name       string
		exists     int
		wantMethod string
		wantPath   string
	}{
		{"create", http.StatusNotFound, http.MethodPut, "/government-info"},
		{"update", http.StatusOK, http.MethodPut, "/government-info/_mapping"},
	}

	schema := knowledgebase.IndexSchema{
		Name: "government-info",
		Fields: []knowledgebase.FieldSpec{
			{Name: "id", Type: knowledgebase.FieldTypeString, Key: true},
			{Name: "title", Type: knowledgebase.FieldTypeText, Searchable: true},
			{Name: "lastUpdated", Type: knowledgebase.FieldTypeDateTime, Sortable: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ft := &fakeTransport{responses: []fakeResponse{{status: tt.exists, body: ""}, {status: 200, body: `{"acknowledged":true}`}}}
			store := newStore(t, ft, nil)

			if err := store.ProvisionSchema(context.Background(), schema); err != nil {
				t.Fatalf("ProvisionSchema() error = %v", err)
			}
			if len(ft.requests) != 2 {
				t.Fatalf("requests = %d, want 2", len(ft.requests))
			}
			if ft.requests[0].Method != http.MethodHead {
				t.Errorf("first request = %s, want HEAD", ft.requests[0].Method)
			}
			last := ft.requests[1]
			if last.Method != tt.wantMethod || last.Path != tt.wantPath {
				t.Errorf("request = %s %s, want %s %s", last.Method, last.Path, tt.wantMethod, tt.wantPath)
			}
			if !strings.Contains(last.Body, `"lastUpdated":{"type":"date"}`) {
				t.Errorf("mapping body = %s", last.Body)
			}
		})
	}
}

func TestCountAndDelete(t *testing.T) {
	ft := &fakeTransport{responses: []fakeResponse{
		{status: 200, body: `{"count":42}`},
		{status: 200, body: `{"errors":true,"items":[{"delete":{"_id":"a","status":200}},{"delete":{"_id":"b","status":404}}]}`},
	}}
	store := newStore(t, ft, nil)

	n, err := store.Count(context.Background())
	if err != nil || n != 42 {
		t.Fatalf("Count() = %d, %v, want 42", n, err)
	}

	items, err := store.Delete(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if !items[0].Succeeded || items[1].Succeeded {
		t.Errorf("Delete() items = %+v", items)
	}
	if q := ft.requests[1].Query; !strings.Contains(q, "refresh=true") {
		t.Errorf("delete query = %q, want refresh=true", q)
	}
}
