package ollama

import (
	"context"

	"github.com/ollama/ollama/api"

	"govrag/src/core/knowledgebase"
)

// ChatBackend answers conversations with an Ollama chat model
type ChatBackend struct {
	client  *Client
	model   string
	options map[string]interface{}
}

func NewChatBackend(client *Client, model string) *ChatBackend {
	return &ChatBackend{
		client: client,
		model:  model,
		options: map[string]interface{}{
			"temperature": 0.3,
			"top_p":       0.9,
		},
	}
}

func (b *ChatBackend) Complete(ctx context.Context, messages []knowledgebase.Message) (string, error) {
	msgs := make([]api.Message, len(messages))
	for i, m := range messages {
		msgs[i] = api.Message{Role: string(m.Role), Content: m.Content}
	}
	return b.client.Chat(ctx, b.model, msgs, b.options)
}

// Embedder generates document and query vectors with an Ollama embedding model
type Embedder struct {
	client *Client
	model  string
}

func NewEmbedder(client *Client, model string) *Embedder {
	return &Embedder{
		client: client,
		model:  model,
	}
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.client.GetEmbedding(ctx, e.model, text)
}
