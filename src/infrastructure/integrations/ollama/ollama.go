package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ollama/ollama/api"

	"govrag/src/core/knowledgebase"
	"govrag/src/infrastructure/log"
)

const (
	DefaultURL = "http://localhost:11434/api"
)

// ErrTruncated is returned when the response was truncated
type ErrTruncated struct {
	Message string
}

func (e *ErrTruncated) Error() string {
	return e.Message
}

// Client represents an Ollama API client
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a new Ollama API client
func NewClient(baseURL string, c *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}

	return &Client{
		httpClient: c,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
	}
}

func (c *Client) post(ctx context.Context, path string, body interface{}) (*http.Response, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error making request: %w", err)
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		var apiErr struct {
			Error string `json:"error"`
		}
		b, _ := io.ReadAll(resp.Body)
		msg := string(b)
		if json.Unmarshal(b, &apiErr) == nil && apiErr.Error != "" {
			msg = apiErr.Error
		}
		return nil, &knowledgebase.StatusError{StatusCode: resp.StatusCode, Message: msg}
	}
	return resp, nil
}

// Ping checks that the server answers
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/version", nil)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return &knowledgebase.StatusError{StatusCode: resp.StatusCode}
	}
	return nil
}

// GetEmbedding generates an embedding vector for the given text using the specified model
func (c *Client) GetEmbedding(ctx context.Context, model string, text string) ([]float32, error) {
	resp, err := c.post(ctx, "/embeddings", api.EmbeddingRequest{
		Model:  model,
		Prompt: text,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result api.EmbeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("error decoding response: %w", err)
	}

	// Convert float64 to float32
	embedding32 := make([]float32, len(result.Embedding))
	for i, v := range result.Embedding {
		embedding32[i] = float32(v)
	}

	return embedding32, nil
}

// Chat sends the conversation and reads the streamed reply until done
func (c *Client) Chat(ctx context.Context, model string, messages []api.Message, options map[string]interface{}) (string, error) {
	stream := true
	resp, err := c.post(ctx, "/chat", api.ChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   &stream,
		Options:  options,
	})
	if err != nil {
		log.Error(err, "failed to make request to ollama", "model", model)
		return "", err
	}
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	var fullResponse strings.Builder

	for {
		line, err := reader.ReadBytes('\n')
		if len(bytes.TrimSpace(line)) > 0 {
			var chunk api.ChatResponse
			if uerr := json.Unmarshal(line, &chunk); uerr != nil {
				log.Error(uerr, "failed to unmarshal response line", "line", string(line))
				return "", fmt.Errorf("error unmarshaling response: %w", uerr)
			}
			fullResponse.WriteString(chunk.Message.Content)

			if chunk.Done {
				if chunk.DoneReason == "length" {
					return "", &ErrTruncated{Message: "Response was truncated by the model"}
				}
				if fullResponse.Len() == 0 {
					break
				}
				return fullResponse.String(), nil
			}
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return "", fmt.Errorf("error reading response: %w", err)
		}
	}

	return "", fmt.Errorf("no response received from Ollama")
}
