// Package ai invokes provider models with a configuration produced by the
// selector and reports usage back to the cost ledger.
package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/spigell/resume-optimizer/internal/thinking"
)

var (
	ErrEmptyPrompt     = errors.New("prompt must not be empty")
	ErrEmptyResponse   = errors.New("provider returned empty response")
	ErrAllModelsFailed = errors.New("all models failed")
)

// Request is a single provider call. Model is the vendor model name without
// the provider prefix.
type Request struct {
	Model       string
	Prompt      string
	Temperature float64
	MaxTokens   int
	Thinking    thinking.Config
}

type Response struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
}

// Client is implemented by each provider adapter.
type Client interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// StatusError carries the HTTP status of a failed provider call.
type StatusError struct {
	Provider string
	Code     int
	Err      error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s api error (status %d): %v", e.Provider, e.Code, e.Err)
}

func (e *StatusError) Unwrap() error { return e.Err }

// Transient reports whether retrying the same model may succeed: rate limits,
// server errors and per-attempt timeouts.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code == http.StatusRequestTimeout || se.Code >= http.StatusInternalServerError
	}

	return false
}
