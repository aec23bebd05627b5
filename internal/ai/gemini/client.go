package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/spigell/resume-optimizer/internal/ai"
)

const provider = "google"

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client calls Gemini models through the Google GenAI SDK.
type Client struct {
	models contentGenerator
}

// New creates a client configured for the Gemini API backend.
func New(ctx context.Context, apiKey string) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &Client{models: client.Models}, nil
}

// Generate sends the prompt and joins the textual parts of every candidate.
// Thought summaries are skipped; thinking tokens are billed as output.
func (c *Client) Generate(ctx context.Context, req ai.Request) (*ai.Response, error) {
	if c == nil || c.models == nil {
		return nil, errors.New("gemini client is not initialized")
	}

	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, ai.ErrEmptyPrompt
	}

	config := &genai.GenerateContentConfig{
		Temperature:    genai.Ptr(float32(req.Temperature)),
		ThinkingConfig: req.Thinking.Gemini(),
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}

	resp, err := c.models.GenerateContent(ctx, req.Model, genai.Text(prompt), config)
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", classify(err))
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || part.Thought {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return nil, fmt.Errorf("gemini: %w", ai.ErrEmptyResponse)
	}

	out := &ai.Response{Text: output, Model: req.Model}
	if usage := resp.UsageMetadata; usage != nil {
		out.InputTokens = int(usage.PromptTokenCount)
		out.OutputTokens = int(usage.CandidatesTokenCount + usage.ThoughtsTokenCount)
	}
	if resp.ModelVersion != "" {
		out.Model = resp.ModelVersion
	}

	return out, nil
}

func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &ai.StatusError{Provider: provider, Code: apiErr.Code, Err: err}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return &ai.StatusError{Provider: provider, Code: apiErrPtr.Code, Err: err}
	}
	return err
}
