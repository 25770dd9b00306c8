package llm

import (
	"encoding/json"
	"fmt"
)

// ChatMessage is one message in a chat completion request
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chat message roles understood by the completions endpoint
const (
	ChatRoleSystem    = "system"
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ResponseFormat constrains completion output, used with json_schema to
// force schema-conforming extraction payloads
type ResponseFormat struct {
	Type       string            `json:"type"`
	JSONSchema *jsonSchemaConfig `json:"json_schema,omitempty"`
}

type jsonSchemaConfig struct {
	Name   string          `json:"name"`
	Strict bool            `json:"strict"`
	Schema json.RawMessage `json:"schema"`
}

// NewJSONSchemaFormat builds a strict json_schema response format
func NewJSONSchemaFormat(name string, schema json.RawMessage) *ResponseFormat {
	return &ResponseFormat{
		Type: "json_schema",
		JSONSchema: &jsonSchemaConfig{
			Name:   name,
			Strict: true,
			Schema: schema,
		},
	}
}

// chatCompletionRequest is the minimal request shape for the Chat
// Completions endpoint
type chatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []ChatMessage   `json:"messages"`
	Temperature    *float64        `json:"temperature,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

// chatCompletionResponse is the minimal response shape returned by the
// Chat Completions endpoint
type chatCompletionResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Index        int         `json:"index"`
		Message      ChatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

// embeddingRequest is the request shape for the Embeddings endpoint
type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// embeddingResponse is the minimal response shape for the Embeddings
// endpoint
type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// HTTPStatusError captures non-2xx upstream responses
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("model api: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}
