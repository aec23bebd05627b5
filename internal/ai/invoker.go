package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/resume-optimizer/internal/catalog"
	"github.com/spigell/resume-optimizer/internal/costs"
	"github.com/spigell/resume-optimizer/internal/logger"
	"github.com/spigell/resume-optimizer/internal/selector"
	"github.com/spigell/resume-optimizer/internal/thinking"
	"github.com/spigell/resume-optimizer/internal/utils"
)

const (
	DefaultMaxRetries = 3
	DefaultTimeout    = 2 * time.Minute

	maxLogLength = 200
)

// Catalog resolves provider-qualified model ids.
type Catalog interface {
	Lookup(id string) (catalog.Model, bool)
}

// Gate admits calls per provider and collects failures.
type Gate interface {
	Allow(key string) bool
	RecordFailure(key string)
	Release(key string)
}

// Tracker prices completed calls.
type Tracker interface {
	Track(ctx context.Context, model, task, requestID string, inputTokens, outputTokens int) costs.Breakdown
}

// Result is a successful invocation.
type Result struct {
	Response
	ModelID   string          `json:"model_id"`
	RequestID string          `json:"request_id"`
	Attempts  int             `json:"attempts"`
	Fallback  bool            `json:"fallback"`
	Cost      costs.Breakdown `json:"cost"`
}

type Invoker struct {
	clients map[catalog.Provider]Client
	catalog Catalog
	gate    Gate
	tracker Tracker
	logger  *zap.Logger

	maxRetries int
	timeout    time.Duration
	newBackOff func() backoff.BackOff
	newID      func() string
}

type InvokerOption func(*Invoker)

// WithRetries sets the per-model attempt count and per-attempt timeout.
func WithRetries(maxRetries int, timeout time.Duration) InvokerOption {
	return func(i *Invoker) {
		if maxRetries > 0 {
			i.maxRetries = maxRetries
		}
		if timeout > 0 {
			i.timeout = timeout
		}
	}
}

// WithBackOff replaces the exponential back-off between attempts.
func WithBackOff(newBackOff func() backoff.BackOff) InvokerOption {
	return func(i *Invoker) { i.newBackOff = newBackOff }
}

func NewInvoker(clients map[catalog.Provider]Client, c Catalog, gate Gate, tracker Tracker, logger *zap.Logger, opts ...InvokerOption) *Invoker {
	if logger == nil {
		logger = zap.NewNop()
	}

	i := &Invoker{
		clients:    clients,
		catalog:    c,
		gate:       gate,
		tracker:    tracker,
		logger:     logger,
		maxRetries: DefaultMaxRetries,
		timeout:    DefaultTimeout,
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(i)
	}

	return i
}

// Invoke calls cfg.Model and then each fallback in order until one succeeds.
// Models whose provider has no client or whose circuit is open are skipped.
// A model that fails after its retries counts as one breaker failure;
// cancellation of ctx does not.
func (i *Invoker) Invoke(ctx context.Context, cfg selector.ModelConfig, prompt string) (*Result, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}

	var task, requestID string
	if cfg.Metadata != nil {
		task = cfg.Metadata.Task
		requestID = cfg.Metadata.RequestID
	}
	if requestID == "" {
		requestID = i.newID()
	}

	var errs []error
	for idx, id := range chain(cfg) {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		m, ok := i.catalog.Lookup(id)
		if !ok {
			errs = append(errs, fmt.Errorf("%s: unknown model", id))
			continue
		}

		log := logger.WithCall(i.logger, logger.Call{
			Provider:  string(m.Provider),
			Model:     m.ID,
			Task:      task,
			RequestID: requestID,
		})

		client, ok := i.clients[m.Provider]
		if !ok || client == nil {
			log.Warn("no client for provider, skipping model")
			errs = append(errs, fmt.Errorf("%s: provider %s has no client", id, m.Provider))
			continue
		}
		if !i.gate.Allow(string(m.Provider)) {
			log.Warn("provider circuit open, skipping model")
			errs = append(errs, fmt.Errorf("%s: provider %s circuit open", id, m.Provider))
			continue
		}

		resp, attempts, err := i.call(ctx, client, i.request(m, cfg, prompt), log)
		if err != nil && ctx.Err() != nil {
			// The caller gave up; the provider is not at fault.
			i.gate.Release(string(m.Provider))
			log.Warn("model call abandoned", zap.Int("attempts", attempts), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
			break
		}
		if err != nil {
			i.gate.RecordFailure(string(m.Provider))
			log.Warn("model call failed", zap.Int("attempts", attempts), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
			continue
		}

		cost := i.tracker.Track(ctx, m.ID, task, requestID, resp.InputTokens, resp.OutputTokens)
		log.Info("model call completed",
			zap.Int("attempts", attempts),
			zap.Bool("fallback", idx > 0),
			zap.Int("input_tokens", resp.InputTokens),
			zap.Int("output_tokens", resp.OutputTokens),
			zap.Float64("cost", cost.TotalCost),
		)
		log.Debug("model response", zap.String("text", utils.TruncateForLog(resp.Text, maxLogLength)))

		return &Result{
			Response:  *resp,
			ModelID:   m.ID,
			RequestID: requestID,
			Attempts:  attempts,
			Fallback:  idx > 0,
			Cost:      cost,
		}, nil
	}

	return nil, fmt.Errorf("%w: %w", ErrAllModelsFailed, errors.Join(errs...))
}

func (i *Invoker) call(ctx context.Context, client Client, req Request, log *zap.Logger) (*Response, int, error) {
	attempts := 0
	operation := func() (*Response, error) {
		attempts++
		attemptCtx, cancel := context.WithTimeout(ctx, i.timeout)
		defer cancel()

		resp, err := client.Generate(attemptCtx, req)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil || !Transient(err) {
			return nil, backoff.Permanent(err)
		}

		log.Debug("transient model error, retrying", zap.Int("attempt", attempts), zap.Error(err))
		return nil, err
	}

	resp, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(i.newBackOff()),
		backoff.WithMaxTries(uint(i.maxRetries)),
		backoff.WithMaxElapsedTime(time.Duration(i.maxRetries+1)*i.timeout),
	)
	if err != nil {
		return nil, attempts, err
	}

	return resp, attempts, nil
}

// request adapts the configuration to m. Thinking travels to every model that
// supports it, reshaped for its provider.
func (i *Invoker) request(m catalog.Model, cfg selector.ModelConfig, prompt string) Request {
	req := Request{
		Model:       m.Name,
		Prompt:      prompt,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	}
	if m.MaxOutputTokens > 0 && (req.MaxTokens <= 0 || req.MaxTokens > m.MaxOutputTokens) {
		req.MaxTokens = m.MaxOutputTokens
	}
	if cfg.ThinkingConfig != nil && !cfg.ThinkingConfig.IsZero() && m.SupportsThinking {
		req.Thinking = thinking.Config{Provider: m.Provider, Budget: cfg.ThinkingConfig.Budget}
	}

	return req
}

func chain(cfg selector.ModelConfig) []string {
	seen := make(map[string]bool, len(cfg.FallbackModels)+1)
	out := make([]string, 0, len(cfg.FallbackModels)+1)
	for _, id := range append([]string{cfg.Model}, cfg.FallbackModels...) {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
