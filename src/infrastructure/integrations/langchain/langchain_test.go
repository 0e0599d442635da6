package langchain_test

import (
	"context"
	"errors"
	"testing"

	"github.com/tmc/langchaingo/llms"

	"govrag/src/core/knowledgebase"
	"govrag/src/infrastructure/integrations/langchain"
)

type fakeModel struct {
	got   []llms.MessageContent
	reply *llms.ContentResponse
	err   error
}

func (f *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	f.got = messages
	return f.reply, f.err
}

func (f *fakeModel) Call(context.Context, string, ...llms.CallOption) (string, error) {
	return "", errors.New("not used")
}

func TestBackendComplete(t *testing.T) {
	model := &fakeModel{reply: &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "Apply online."}}}}
	backend := langchain.NewBackend(model)

	text, err := backend.Complete(context.Background(), []knowledgebase.Message{
		{Role: knowledgebase.RoleSystem, Content: "instruction"},
		{Role: knowledgebase.RoleUser, Content: "question"},
		{Role: knowledgebase.RoleAssistant, Content: "answer"},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if text != "Apply online." {
		t.Errorf("Complete() = %q", text)
	}

	wantRoles := []llms.ChatMessageType{llms.ChatMessageTypeSystem, llms.ChatMessageTypeHuman, llms.ChatMessageTypeAI}
	for i, m := range model.got {
		if m.Role != wantRoles[i] {
			t.Errorf("message %d role = %s, want %s", i, m.Role, wantRoles[i])
		}
	}
}

func TestBackendErrors(t *testing.T) {
	tests := []struct {
		name  string
		model *fakeModel
	}{
		{"model error", &fakeModel{err: errors.New("rate limited")}},
		{"no choices", &fakeModel{reply: &llms.ContentResponse{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := langchain.NewBackend(tt.model).Complete(context.Background(), nil); err == nil {
				t.Error("Complete() error = nil, want error")
			}
		})
	}
}
