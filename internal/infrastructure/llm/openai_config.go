package llm

import (
	"strings"
	"time"

	"github.com/genintake/backend/internal/domain/shared"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIConfig holds connection settings for an OpenAI-compatible API
type OpenAIConfig struct {
	// BaseURL is the API root, e.g. https://api.openai.com/v1 or a
	// compatible self-hosted endpoint
	BaseURL string `mapstructure:"baseURL"`
	// APIKey is the bearer token for the API
	APIKey string `mapstructure:"apiKey"`
	// ChatModel is the model used for interview replies and extraction
	ChatModel string `mapstructure:"chatModel"`
	// EmbeddingModel is the model used for knowledge store embeddings
	EmbeddingModel string `mapstructure:"embeddingModel"`
	// RequestTimeout bounds a single model call (default: 20s)
	RequestTimeout time.Duration `mapstructure:"requestTimeout"`
	// Temperature is the sampling temperature for replies
	Temperature float64 `mapstructure:"temperature"`
}

// Validate checks the configuration
func (c *OpenAIConfig) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return shared.NewDomainError("INVALID_CONFIG", "OpenAI API key is required")
	}
	if strings.TrimSpace(c.ChatModel) == "" {
		return shared.NewDomainError("INVALID_CONFIG", "Chat model is required")
	}
	if strings.TrimSpace(c.EmbeddingModel) == "" {
		return shared.NewDomainError("INVALID_CONFIG", "Embedding model is required")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return shared.NewDomainError("INVALID_CONFIG", "Temperature must be between 0 and 2")
	}
	return nil
}

// normalize applies defaults and trims the base URL
func (c *OpenAIConfig) normalize() {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		c.BaseURL = defaultOpenAIBaseURL
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 20 * time.Second
	}
}
