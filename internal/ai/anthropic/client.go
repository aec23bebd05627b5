// Package anthropic adapts the Anthropic Messages API to ai.Client.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/spigell/resume-optimizer/internal/ai"
)

const (
	provider = "anthropic"

	// answerTokens is reserved on top of the thinking budget; the API
	// requires max_tokens to exceed budget_tokens.
	answerTokens = 1024
)

type messageCreator interface {
	New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

type Client struct {
	messages messageCreator
}

// New creates a client. Retries are left to the invoker.
func New(apiKey string) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("anthropic api key is required")
	}

	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	)

	return &Client{messages: &client.Messages}, nil
}

// Generate sends the prompt as a single user message. With extended thinking
// the temperature is left unset, as the API only accepts the default.
func (c *Client) Generate(ctx context.Context, req ai.Request) (*ai.Response, error) {
	if c == nil || c.messages == nil {
		return nil, errors.New("anthropic client is not initialized")
	}

	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, ai.ErrEmptyPrompt
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(req.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	if req.Thinking.IsZero() {
		params.Temperature = anthropic.Float(req.Temperature)
	} else {
		params.Thinking = req.Thinking.Anthropic()
		if params.MaxTokens <= int64(req.Thinking.Budget) {
			params.MaxTokens = int64(req.Thinking.Budget + answerTokens)
		}
	}

	msg, err := c.messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("create message: %w", classify(err))
	}

	var builder strings.Builder
	for _, block := range msg.Content {
		if block.Type != "text" {
			continue
		}
		text := strings.TrimSpace(block.Text)
		if text == "" {
			continue
		}
		if builder.Len() > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString(text)
	}

	output := builder.String()
	if output == "" {
		return nil, fmt.Errorf("anthropic: %w", ai.ErrEmptyResponse)
	}

	return &ai.Response{
		Text:         output,
		Model:        string(msg.Model),
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
	}, nil
}

func classify(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &ai.StatusError{Provider: provider, Code: apiErr.StatusCode, Err: err}
	}
	return err
}
