package llm

import (
	"context"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig contains configuration for creating an OpenAIRunner.
// Setting BaseURL points the client at any OpenAI-compatible endpoint
// (DeepSeek, local servers, proxies).
type OpenAIConfig struct {
	// APIKey is the API key. If empty, uses OPENAI_API_KEY env var.
	APIKey string
	// Model is the chat model name (e.g., "gpt-4o-mini", "deepseek-chat").
	Model string
	// BaseURL overrides the API endpoint for OpenAI-compatible providers.
	BaseURL string
}

// OpenAIRunner implements Runner using an OpenAI-compatible chat API.
type OpenAIRunner struct {
	client *openai.Client
	model  string
}

// NewOpenAIRunner creates a runner for OpenAI or an OpenAI-compatible provider.
func NewOpenAIRunner(cfg OpenAIConfig) (*OpenAIRunner, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable is not set")
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIRunner{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
	}, nil
}

// Generate sends a single user message and returns the first choice's content.
func (r *OpenAIRunner) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: r.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Model returns the configured model name.
func (r *OpenAIRunner) Model() string {
	return r.model
}

// Verify OpenAIRunner implements Runner at compile time.
var _ Runner = (*OpenAIRunner)(nil)
