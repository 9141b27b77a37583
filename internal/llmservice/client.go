// Package llmservice wraps the chat-completion capability.
package llmservice

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"

	"docchat/internal/config"
	"docchat/internal/models"
)

// Client talks to an OpenAI-compatible chat endpoint.
type Client struct {
	llm *openai.LLM
}

func NewClient(cfg *config.LLMConfig) (*Client, error) {
	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
		openai.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, err
	}
	return &Client{llm: llm}, nil
}

// Generate sends a single-turn prompt and returns the model's completion.
// Capability failures surface as models.ErrChatUnavailable.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	messages := []llms.MessageContent{
		{
			Role:  schema.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextContent{Text: prompt}},
		},
	}
	res, err := c.llm.GenerateContent(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("generate content: %v: %w", err, models.ErrChatUnavailable)
	}
	if len(res.Choices) == 0 {
		return "", fmt.Errorf("empty completion: %w", models.ErrChatUnavailable)
	}
	return res.Choices[0].Content, nil
}
