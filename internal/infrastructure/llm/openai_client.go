package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ModelClient is the raw model API surface the gateway wraps. Split out
// so gateway tests can substitute a fake transport.
type ModelClient interface {
	// ChatCompletion runs a chat completion and returns the first choice
	ChatCompletion(ctx context.Context, messages []ChatMessage, format *ResponseFormat) (string, error)
	// Embedding computes the embedding vector for one input text
	Embedding(ctx context.Context, input string) ([]float32, error)
}

// OpenAIClient is a focused client for OpenAI-compatible chat completion
// and embedding endpoints
type OpenAIClient struct {
	config     OpenAIConfig
	httpClient *http.Client
}

// NewOpenAIClient creates a client for an OpenAI-compatible API
func NewOpenAIClient(config OpenAIConfig) (*OpenAIClient, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.normalize()

	return &OpenAIClient{
		config: config,
		// Per-call deadlines come from the caller's context; the client
		// timeout is only a safety net behind it
		httpClient: &http.Client{Timeout: 2 * config.RequestTimeout},
	}, nil
}

// ChatCompletion runs a chat completion and returns the first choice
func (c *OpenAIClient) ChatCompletion(ctx context.Context, messages []ChatMessage, format *ResponseFormat) (string, error) {
	if len(messages) == 0 {
		return "", errors.New("model api: messages must not be empty")
	}

	temp := c.config.Temperature
	payload := chatCompletionRequest{
		Model:          c.config.ChatModel,
		Messages:       messages,
		Temperature:    &temp,
		ResponseFormat: format,
	}

	raw, err := c.postJSON(ctx, c.config.BaseURL+"/chat/completions", payload)
	if err != nil {
		return "", err
	}

	var decoded chatCompletionResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("model api: decode completion response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", errors.New("model api: no choices in completion response")
	}
	return decoded.Choices[0].Message.Content, nil
}

// Embedding computes the embedding vector for one input text
func (c *OpenAIClient) Embedding(ctx context.Context, input string) ([]float32, error) {
	if input == "" {
		return nil, errors.New("model api: embedding input must not be empty")
	}

	payload := embeddingRequest{
		Model: c.config.EmbeddingModel,
		Input: []string{input},
	}

	raw, err := c.postJSON(ctx, c.config.BaseURL+"/embeddings", payload)
	if err != nil {
		return nil, err
	}

	var decoded embeddingResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("model api: decode embedding response: %w", err)
	}
	if len(decoded.Data) == 0 || len(decoded.Data[0].Embedding) == 0 {
		return nil, errors.New("model api: no embedding in response")
	}
	return decoded.Data[0].Embedding, nil
}

// postJSON sends a JSON request and returns the raw response body
func (c *OpenAIClient) postJSON(ctx context.Context, url string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("model api: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("model api: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("model api: request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{StatusCode: res.StatusCode, URL: url, Body: string(buf)}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("model api: read response body: %w", err)
	}
	return buf, nil
}

// Compile-time interface check
var _ ModelClient = (*OpenAIClient)(nil)
