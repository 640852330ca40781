// Package assistant talks to the study assistant model. Gemini is reached
// through its OpenAI-compatible endpoint.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"qaforum/internal/config"
	"qaforum/internal/observability"

	openai "github.com/sashabaranov/go-openai"
)

// ErrNotConfigured is returned by Generate when no API key was provided.
var ErrNotConfigured = errors.New("assistant is not configured")

// Generator turns a prompt into text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// NewGenerator builds a Gemini client, or an Unconfigured one when
// GEMINI_API_KEY is empty.
func NewGenerator(cfg *config.Config) Generator {
	if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
		return Unconfigured{}
	}
	return NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiBaseURL, cfg.GeminiModel)
}

// GeminiClient sends single-turn chat completions.
type GeminiClient struct {
	client *openai.Client
	model  string
}

var _ Generator = (*GeminiClient)(nil)

func NewGeminiClient(key, baseURL, model string) *GeminiClient {
	oc := openai.DefaultConfig(key)
	if baseURL != "" {
		oc.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &GeminiClient{client: openai.NewClientWithConfig(oc), model: model}
}

// Generate implements Generator.
func (g *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		observability.AssistantRequestsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("gemini completion: %w", err)
	}
	observability.AssistantRequestsTotal.WithLabelValues("ok").Inc()
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// Unconfigured refuses every prompt.
type Unconfigured struct{}

func (Unconfigured) Generate(context.Context, string) (string, error) {
	observability.AssistantRequestsTotal.WithLabelValues("unconfigured").Inc()
	return "", ErrNotConfigured
}
