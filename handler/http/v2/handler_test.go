package v2

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"govrag/src/core/knowledgebase"
)

type fakeChat struct {
	sessions  map[string]*knowledgebase.ChatSession
	answerErr error
	gotID     string
	gotMsg    string
}

func (f *fakeChat) Answer(_ context.Context, sessionID, message string) (*knowledgebase.ChatResponse, error) {
	f.gotID, f.gotMsg = sessionID, message
	if f.answerErr != nil {
		return nil, f.answerErr
	}
	if strings.TrimSpace(message) == "" {
		return nil, fmt.Errorf("%w: message is required", knowledgebase.ErrInvalidRequest)
	}
	conf := 0.9
	return &knowledgebase.ChatResponse{SessionID: "s-1", Content: "answer", Confidence: &conf}, nil
}

func (f *fakeChat) CreateSession(context.Context) (*knowledgebase.ChatSession, error) {
	return knowledgebase.NewChatSession("s-new", time.Now()), nil
}

func (f *fakeChat) GetSession(_ context.Context, id string) (*knowledgebase.ChatSession, error) {
	return f.sessions[id], nil
}

func (f *fakeChat) DeleteSession(_ context.Context, id string) (bool, error) {
	if _, ok := f.sessions[id]; !ok {
		return false, nil
	}
	delete(f.sessions, id)
	return true, nil
}

type fakeSearch struct {
	got knowledgebase.SearchRequest
	err error
}

func (f *fakeSearch) Retrieve(_ context.Context, req knowledgebase.SearchRequest) ([]knowledgebase.SearchResult, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return []knowledgebase.SearchResult{{Document: knowledgebase.Document{ID: "d1", Title: "Parking"}, Score: 1.2}}, nil
}

func newTestRouter(chat *fakeChat, search *fakeSearch, health map[string]knowledgebase.HealthCheck) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(chat, search, knowledgebase.NewSystemService(health)).RegisterRoutes(r)
	return r
}

func do(r http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil {
		t.Fatalf("decode error body %q: %v", w.Body.String(), err)
	}
	return e
}

func TestSearchValidation(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
		wantErr  string
	}{
		{name: "valid", body: `{"query":"parking","mode":"keyword","top":5}`, wantCode: http.StatusOK},
		{name: "default top", body: `{"query":"parking"}`, wantCode: http.StatusOK},
		{name: "empty query", body: `{"query":"  "}`, wantCode: http.StatusBadRequest, wantErr: CodeInvalidRequest},
		{name: "top zero", body: `{"query":"parking","top":0}`, wantCode: http.StatusBadRequest, wantErr: CodeInvalidRequest},
		{name: "top too large", body: `{"query":"parking","top":51}`, wantCode: http.StatusBadRequest, wantErr: CodeInvalidRequest},
		{name: "negative skip", body: `{"query":"parking","skip":-1}`, wantCode: http.StatusBadRequest, wantErr: CodeInvalidRequest},
		{name: "unknown mode", body: `{"query":"parking","mode":"fuzzy"}`, wantCode: http.StatusBadRequest, wantErr: CodeInvalidRequest},
		{name: "malformed", body: `{"query":`, wantCode: http.StatusBadRequest, wantErr: CodeInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(&fakeChat{}, &fakeSearch{}, nil)
			w := do(r, http.MethodPost, "/api/v1/search", tt.body, nil)
			if w.Code != tt.wantCode {
				t.Fatalf("POST /search status = %d, want %d, body %s", w.Code, tt.wantCode, w.Body.String())
			}
			if tt.wantErr != "" {
				if got := decodeError(t, w).Code; got != tt.wantErr {
					t.Errorf("error code = %q, want %q", got, tt.wantErr)
				}
			}
		})
	}
}

func TestSearchForwardsRequest(t *testing.T) {
	search := &fakeSearch{}
	r := newTestRouter(&fakeChat{}, search, nil)

	w := do(r, http.MethodPost, "/api/v1/search", `{"query":" parking permit ","mode":"HYBRID","top":3,"category":"Transportation","skip":2}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("POST /search status = %d, body %s", w.Code, w.Body.String())
	}

	want := knowledgebase.SearchRequest{Query: "parking permit", Mode: knowledgebase.SearchModeHybrid, Top: 3, Category: "Transportation", Skip: 2}
	if search.got != want {
		t.Errorf("Retrieve() request = %+v, want %+v", search.got, want)
	}

	var resp searchResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Count != 1 || resp.Results[0].Document.ID != "d1" {
		t.Errorf("response = %+v", resp)
	}
}

func TestRetrievalFailureHidesBackendError(t *testing.T) {
	backendErr := &knowledgebase.RetrievalError{
		Mode: knowledgebase.SearchModeSemantic,
		Err:  errors.New("dial tcp 10.0.0.7:9200: connection refused"),
	}
	r := newTestRouter(&fakeChat{}, &fakeSearch{err: backendErr}, nil)

	w := do(r, http.MethodPost, "/api/v1/search", `{"query":"parking"}`, map[string]string{CorrelationHeader: "req-42"})
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
	e := decodeError(t, w)
	if e.Code != CodeRetrievalFailed {
		t.Errorf("code = %q, want %q", e.Code, CodeRetrievalFailed)
	}
	if e.CorrelationID != "req-42" {
		t.Errorf("correlationId = %q, want %q", e.CorrelationID, "req-42")
	}
	if strings.Contains(e.Message, "10.0.0.7") {
		t.Errorf("message leaks backend error: %q", e.Message)
	}
	if got := w.Header().Get(CorrelationHeader); got != "req-42" {
		t.Errorf("%s header = %q, want %q", CorrelationHeader, got, "req-42")
	}
}

func TestCorrelationIDGenerated(t *testing.T) {
	r := newTestRouter(&fakeChat{answerErr: errors.New("boom")}, &fakeSearch{}, nil)

	w := do(r, http.MethodPost, "/api/v1/chat", `{"message":"hi"}`, nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	e := decodeError(t, w)
	if e.Code != CodeInternal {
		t.Errorf("code = %q, want %q", e.Code, CodeInternal)
	}
	if e.CorrelationID == "" || e.CorrelationID != w.Header().Get(CorrelationHeader) {
		t.Errorf("correlationId = %q, header = %q", e.CorrelationID, w.Header().Get(CorrelationHeader))
	}
	if strings.Contains(e.Message, "boom") {
		t.Errorf("message leaks internal error: %q", e.Message)
	}
}

func TestChat(t *testing.T) {
	chat := &fakeChat{}
	r := newTestRouter(chat, &fakeSearch{}, nil)

	w := do(r, http.MethodPost, "/api/v1/chat", `{"sessionId":"abc","message":"How do I renew a permit?"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("POST /chat status = %d, body %s", w.Code, w.Body.String())
	}
	if chat.gotID != "abc" || chat.gotMsg != "How do I renew a permit?" {
		t.Errorf("Answer() got (%q, %q)", chat.gotID, chat.gotMsg)
	}
	var resp knowledgebase.ChatResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Content != "answer" || resp.Confidence == nil {
		t.Errorf("response = %+v", resp)
	}

	w = do(r, http.MethodPost, "/api/v1/chat", `{"message":""}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("POST /chat with empty message status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestSessionRoutes(t *testing.T) {
	chat := &fakeChat{sessions: map[string]*knowledgebase.ChatSession{
		"abc": knowledgebase.NewChatSession("abc", time.Now()),
	}}
	r := newTestRouter(chat, &fakeSearch{}, nil)

	tests := []struct {
		name     string
		method   string
		path     string
		wantCode int
	}{
		{"create", http.MethodPost, "/api/v1/sessions", http.StatusCreated},
		{"get", http.MethodGet, "/api/v1/sessions/abc", http.StatusOK},
		{"get unknown", http.MethodGet, "/api/v1/sessions/zzz", http.StatusNotFound},
		{"delete", http.MethodDelete, "/api/v1/sessions/abc", http.StatusNoContent},
		{"delete again", http.MethodDelete, "/api/v1/sessions/abc", http.StatusNotFound},
		{"get deleted", http.MethodGet, "/api/v1/sessions/abc", http.StatusNotFound},
	}

	for _, tt := range tests {
		w := do(r, tt.method, tt.path, "", nil)
		if w.Code != tt.wantCode {
			t.Errorf("%s: %s %s status = %d, want %d", tt.name, tt.method, tt.path, w.Code, tt.wantCode)
		}
		if tt.wantCode == http.StatusNotFound {
			if got := decodeError(t, w).Code; got != CodeNotFound {
				t.Errorf("%s: code = %q, want %q", tt.name, got, CodeNotFound)
			}
		}
	}
}

func TestCheckHealth(t *testing.T) {
	tests := []struct {
		name     string
		status   knowledgebase.ComponentStatus
		wantCode int
	}{
		{"up", knowledgebase.StatusUp, http.StatusOK},
		{"degraded", knowledgebase.StatusDegraded, http.StatusOK},
		{"down", knowledgebase.StatusDown, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(&fakeChat{}, &fakeSearch{}, map[string]knowledgebase.HealthCheck{
				"store": knowledgebase.StaticHealthCheck(tt.status),
			})
			w := do(r, http.MethodGet, "/api/v1/health", "", nil)
			if w.Code != tt.wantCode {
				t.Errorf("GET /health status = %d, want %d", w.Code, tt.wantCode)
			}
		})
	}
}
