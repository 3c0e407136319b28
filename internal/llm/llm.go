package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/pavelanni/studyaide/internal/prompt"
)

// FailureKind classifies gateway failures so callers can decide whether to
// retry.
type FailureKind string

const (
	FailureTimeout   FailureKind = "timeout"
	FailureQuota     FailureKind = "quota"
	FailureMalformed FailureKind = "malformed"
	FailureTransport FailureKind = "transport"
)

// GatewayError is a typed response-gateway failure.
type GatewayError struct {
	Kind FailureKind
	Err  error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("response gateway %s: %v", e.Kind, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api         *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

// New creates a new LLM client.
func New(baseURL, apiKey, modelName string, maxTokens int, temperature float32) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:         openai.NewClientWithConfig(config),
		model:       modelName,
		maxTokens:   maxTokens,
		temperature: temperature,
	}
}

// API exposes the underlying OpenAI client for collaborators that share the
// endpoint, such as speech synthesis.
func (c *Client) API() *openai.Client {
	return c.api
}

// Ping verifies the endpoint is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("LLM endpoint unreachable: %w", err)
	}
	return nil
}

// Generate sends a composed prompt payload and returns the generated text.
// All failures are returned as *GatewayError.
func (c *Client) Generate(ctx context.Context, p *prompt.Payload) (string, error) {
	system := p.System
	if p.Excerpt != "" {
		system += "\n\n" + p.Excerpt
	}

	chatMsgs := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: system},
	}
	for _, ex := range p.History {
		chatMsgs = append(chatMsgs,
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: ex.Question},
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: ex.Answer},
		)
	}
	chatMsgs = append(chatMsgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: p.Question,
	})

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    chatMsgs,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", classify(err)
	}

	if len(resp.Choices) == 0 {
		return "", &GatewayError{Kind: FailureMalformed, Err: errors.New("LLM returned no choices")}
	}
	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	if answer == "" {
		return "", &GatewayError{Kind: FailureMalformed, Err: errors.New("LLM returned empty content")}
	}
	slog.Debug("LLM response", "topic", p.Topic, "chars", len(answer))
	return answer, nil
}

func classify(err error) *GatewayError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &GatewayError{Kind: FailureTimeout, Err: err}
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == 429 {
		return &GatewayError{Kind: FailureQuota, Err: err}
	}
	return &GatewayError{Kind: FailureTransport, Err: err}
}
