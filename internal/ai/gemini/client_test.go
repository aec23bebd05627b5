package gemini

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"google.golang.org/genai"

	"github.com/spigell/resume-optimizer/internal/ai"
	"github.com/spigell/resume-optimizer/internal/catalog"
	"github.com/spigell/resume-optimizer/internal/thinking"
)

type callRecord struct {
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

type fakeModels struct {
	mu    sync.Mutex
	calls []callRecord
	resp  *genai.GenerateContentResponse
	err   error
}

func (f *fakeModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, callRecord{model: model, contents: contents, config: config})
	return f.resp, f.err
}

func TestGenerateAppliesRequest(t *testing.T) {
	models := &fakeModels{resp: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				{Text: "planning the answer", Thought: true},
				{Text: " first "},
				{Text: "second"},
			}},
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     120,
			CandidatesTokenCount: 40,
			ThoughtsTokenCount:   60,
		},
	}}
	c := &Client{models: models}

	resp, err := c.Generate(context.Background(), ai.Request{
		Model:       "gemini-2.5-pro",
		Prompt:      "rate this resume",
		Temperature: 0.4,
		MaxTokens:   2048,
		Thinking:    thinking.Config{Provider: catalog.ProviderGoogle, Budget: 5000},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if resp.Text != "first\nsecond" {
		t.Fatalf("unexpected text: %q", resp.Text)
	}
	if resp.InputTokens != 120 || resp.OutputTokens != 100 {
		t.Fatalf("unexpected usage: in=%d out=%d", resp.InputTokens, resp.OutputTokens)
	}

	if len(models.calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(models.calls))
	}
	call := models.calls[0]
	if call.model != "gemini-2.5-pro" {
		t.Fatalf("unexpected model: %q", call.model)
	}
	if got := call.contents[0].Parts[0].Text; got != "rate this resume" {
		t.Fatalf("unexpected prompt: %q", got)
	}
	if call.config.Temperature == nil || *call.config.Temperature != float32(0.4) {
		t.Fatalf("unexpected temperature: %v", call.config.Temperature)
	}
	if call.config.MaxOutputTokens != 2048 {
		t.Fatalf("unexpected max tokens: %d", call.config.MaxOutputTokens)
	}
	if call.config.ThinkingConfig == nil || *call.config.ThinkingConfig.ThinkingBudget != 5000 {
		t.Fatalf("expected thinking budget 5000, got %+v", call.config.ThinkingConfig)
	}
}

func TestGenerateWithoutThinking(t *testing.T) {
	models := &fakeModels{resp: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{{Text: "ok"}}}}},
	}}
	c := &Client{models: models}

	if _, err := c.Generate(context.Background(), ai.Request{Model: "gemini-2.0-flash-lite", Prompt: "hi"}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if models.calls[0].config.ThinkingConfig != nil {
		t.Fatal("expected no thinking config")
	}
}

func TestGenerateEmptyResponse(t *testing.T) {
	c := &Client{models: &fakeModels{resp: &genai.GenerateContentResponse{}}}

	_, err := c.Generate(context.Background(), ai.Request{Model: "gemini-2.5-flash", Prompt: "hi"})
	if !errors.Is(err, ai.ErrEmptyResponse) {
		t.Fatalf("expected empty response error, got %v", err)
	}
}

func TestGenerateClassifiesAPIErrors(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
	}{
		{
			name:      "server error",
			err:       genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"},
			transient: true,
		},
		{
			name:      "quota",
			err:       genai.APIError{Code: http.StatusTooManyRequests, Status: "RESOURCE_EXHAUSTED"},
			transient: true,
		},
		{
			name:      "invalid argument",
			err:       genai.APIError{Code: http.StatusBadRequest, Status: "INVALID_ARGUMENT"},
			transient: false,
		},
		{
			name:      "transport",
			err:       errors.New("connection reset"),
			transient: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Client{models: &fakeModels{err: tt.err}}
			_, err := c.Generate(context.Background(), ai.Request{Model: "gemini-2.5-flash", Prompt: "hi"})
			if err == nil {
				t.Fatal("expected error")
			}
			if got := ai.Transient(err); got != tt.transient {
				t.Fatalf("Transient = %v, want %v (err %v)", got, tt.transient, err)
			}
		})
	}
}

func TestGenerateRejectsEmptyPrompt(t *testing.T) {
	models := &fakeModels{}
	c := &Client{models: models}

	if _, err := c.Generate(context.Background(), ai.Request{Model: "gemini-2.5-flash", Prompt: "  "}); !errors.Is(err, ai.ErrEmptyPrompt) {
		t.Fatalf("expected empty prompt error, got %v", err)
	}
	if len(models.calls) != 0 {
		t.Fatal("expected no api call")
	}
}

func TestNewRequiresKey(t *testing.T) {
	if _, err := New(context.Background(), " "); err == nil {
		t.Fatal("expected error for empty key")
	}
}
