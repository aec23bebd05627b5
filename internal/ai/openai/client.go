// Package openai adapts the OpenAI Chat Completions API to ai.Client.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/spigell/resume-optimizer/internal/ai"
)

const provider = "openai"

type completionCreator interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

type Client struct {
	completions completionCreator
}

// New creates a client. Retries are left to the invoker.
func New(apiKey string) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("openai api key is required")
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	)

	return &Client{completions: &client.Chat.Completions}, nil
}

// Generate sends the prompt as a single user message. Reasoning models get a
// reasoning effort instead of a temperature.
func (c *Client) Generate(ctx context.Context, req ai.Request) (*ai.Response, error) {
	if c == nil || c.completions == nil {
		return nil, errors.New("openai client is not initialized")
	}

	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, ai.ErrEmptyPrompt
	}

	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(req.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	if effort := req.Thinking.ReasoningEffort(); effort != "" {
		params.ReasoningEffort = effort
	} else {
		params.Temperature = openai.Float(req.Temperature)
	}

	resp, err := c.completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("create chat completion: %w", classify(err))
	}

	var builder strings.Builder
	for _, choice := range resp.Choices {
		text := strings.TrimSpace(choice.Message.Content)
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
		return nil, fmt.Errorf("openai: %w", ai.ErrEmptyResponse)
	}

	return &ai.Response{
		Text:         output,
		Model:        resp.Model,
		InputTokens:  int(resp.Usage.PromptTokens),
		OutputTokens: int(resp.Usage.CompletionTokens),
	}, nil
}

func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &ai.StatusError{Provider: provider, Code: apiErr.StatusCode, Err: err}
	}
	return err
}
