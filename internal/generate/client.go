// Package generate wraps the code-generating LLM behind a single narrow
// capability: request in, circuit source out. Retries, provider choice, and
// prompt construction all live here; the pipeline treats the generator as
// opaque.
package generate

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"voltlab/internal/config"
)

// LLMClient is the minimal surface the generator needs from a provider.
type LLMClient interface {
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Provider base URLs. Everything speaks the OpenAI chat-completions wire
// format, so one client implementation covers all of them.
var providerBaseURLs = map[string]string{
	"openai":       "", // library default
	"deepseek":     "https://api.deepseek.com/v1",
	"ollama":       "http://localhost:11434/v1",
	"ollama-cloud": "https://ollama.com/v1",
}

// OpenAICompatClient talks to any OpenAI-compatible chat endpoint.
type OpenAICompatClient struct {
	client *openai.Client
	model  string
}

// NewClient builds a provider client from configuration. An explicit
// base_url in the config wins over the provider table.
func NewClient(cfg config.LLMConfig) (*OpenAICompatClient, error) {
	baseURL, ok := providerBaseURLs[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q (valid: %v)", cfg.Provider, config.ValidProviders)
	}
	if cfg.BaseURL != "" {
		baseURL = cfg.BaseURL
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if baseURL != "" {
		clientCfg.BaseURL = baseURL
	}
	return &OpenAICompatClient{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
	}, nil
}

// CompleteWithSystem sends a system prompt plus a user prompt.
func (c *OpenAICompatClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return c.chat(ctx, systemPrompt, userPrompt)
}

func (c *OpenAICompatClient) chat(ctx context.Context, system, user string) (string, error) {
	var messages []openai.ChatCompletionMessage
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: user,
	})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("provider returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
