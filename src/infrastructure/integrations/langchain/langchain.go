package langchain

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"govrag/src/core/knowledgebase"
)

// Backend adapts any langchaingo model to knowledgebase.GenerationBackend
type Backend struct {
	model       llms.Model
	temperature float64
}

func NewBackend(model llms.Model) *Backend {
	return &Backend{
		model:       model,
		temperature: 0.3,
	}
}

// NewOpenAIBackend talks to an OpenAI compatible endpoint. An empty baseURL uses the default.
func NewOpenAIBackend(token, model, baseURL string) (*Backend, error) {
	opts := []openai.Option{
		openai.WithToken(token),
		openai.WithModel(model),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create openai client: %w", err)
	}
	return NewBackend(llm), nil
}

func messageType(role knowledgebase.Role) llms.ChatMessageType {
	switch role {
	case knowledgebase.RoleSystem:
		return llms.ChatMessageTypeSystem
	case knowledgebase.RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}

func (b *Backend) Complete(ctx context.Context, messages []knowledgebase.Message) (string, error) {
	content := make([]llms.MessageContent, len(messages))
	for i, m := range messages {
		content[i] = llms.TextParts(messageType(m.Role), m.Content)
	}

	resp, err := b.model.GenerateContent(ctx, content, llms.WithTemperature(b.temperature))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("failed to generate content: no choices returned")
	}
	return resp.Choices[0].Content, nil
}
