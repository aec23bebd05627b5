// Package engine owns the shared state of the optimization core for the
// lifetime of the process.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/resume-optimizer/internal/admission"
	"github.com/spigell/resume-optimizer/internal/ai"
	"github.com/spigell/resume-optimizer/internal/ai/anthropic"
	"github.com/spigell/resume-optimizer/internal/ai/gemini"
	"github.com/spigell/resume-optimizer/internal/ai/openai"
	"github.com/spigell/resume-optimizer/internal/breaker"
	"github.com/spigell/resume-optimizer/internal/catalog"
	"github.com/spigell/resume-optimizer/internal/config"
	"github.com/spigell/resume-optimizer/internal/costs"
	"github.com/spigell/resume-optimizer/internal/optimizer"
	"github.com/spigell/resume-optimizer/internal/selector"
	"github.com/spigell/resume-optimizer/internal/thinking"
)

// Engine is constructed once at start-up and closed at shutdown. Tests build
// their own.
type Engine struct {
	Config    *config.Config
	Keys      map[catalog.Provider]string
	Registry  *catalog.Registry
	Thinking  *thinking.Calculator
	Models    *breaker.Breaker
	Admission *breaker.Breaker
	Gate      *admission.Tracker
	Ledger    *costs.Ledger
	Selector  *selector.Selector
	Optimizer *optimizer.Optimizer

	logger *zap.Logger
}

type options struct {
	now    func() time.Time
	models []catalog.Model
}

type Option func(*options)

// WithClock drives breakers and the ledger from now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithModels replaces the built-in catalog.
func WithModels(models []catalog.Model) Option {
	return func(o *options) { o.models = models }
}

func New(cfg *config.Config, logger *zap.Logger, opts ...Option) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg == nil {
		return nil, errors.New("config is required")
	}

	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	keys, err := cfg.Providers.Keys()
	if err != nil {
		return nil, err
	}

	e := &Engine{
		Config:   cfg,
		Keys:     keys,
		Registry: catalog.NewRegistry(o.models, config.Credentials(keys)),
		Thinking: thinking.NewCalculator(cfg.Thinking.Enabled, logger.Named("thinking"),
			thinking.WithBounds(cfg.Thinking.Min, cfg.Thinking.Max)),
		logger:   logger,
	}

	e.Models = breaker.New("model", breaker.Config{
		FailureThreshold: cfg.Breakers.Model.FailureThreshold,
		RecoveryTime:     cfg.Breakers.Model.RecoveryTime,
	}, logger.Named("breaker"), breaker.WithClock(o.now))
	e.Admission = breaker.New("admission", breaker.Config{
		FailureThreshold: cfg.Breakers.Admission.FailureThreshold,
		RecoveryTime:     cfg.Breakers.Admission.RecoveryTime,
	}, logger.Named("breaker"), breaker.WithClock(o.now))

	e.Gate = admission.New(e.Admission, logger.Named("admission"),
		admission.WithTTL(cfg.Admission.TTL, cfg.Admission.CleanupInterval),
		admission.WithRetryAfter(cfg.Breakers.Admission.RecoveryTime),
		admission.WithClock(o.now),
	)

	e.Ledger = costs.New(e.Registry, costs.Limits{
		Daily:      cfg.Budget.Daily,
		Monthly:    cfg.Budget.Monthly,
		PerRequest: cfg.Budget.PerRequest,
	}, logger.Named("costs"),
		costs.WithClock(o.now),
		costs.WithBreaker(e.Models),
		costs.WithReportsDir(cfg.Reports.Dir),
	)
	if cfg.Reports.Dir != "" && cfg.Reports.Restore {
		e.restore()
	}

	e.Selector = selector.New(e.Registry, logger.Named("selector"),
		selector.WithGate(e.Models),
		selector.WithThinking(e.Thinking),
		selector.WithDefaults(selector.Defaults{
			Temperature: cfg.Defaults.Temperature,
			MaxTokens:   cfg.Defaults.MaxTokens,
		}),
	)
	e.Optimizer = optimizer.New(e.Selector, e.Thinking, e.Ledger, logger.Named("optimizer"))
	e.Selector.Attach(e.Optimizer)

	available := catalog.Sorted(e.Registry.Available())
	if len(available) == 0 {
		logger.Warn("no provider credentials configured; model selection will fail")
	} else {
		logger.Debug("engine ready", zap.Int("available_models", len(available)))
	}

	return e, nil
}

func (e *Engine) restore() {
	snap, err := costs.LoadLatest(e.Config.Reports.Dir)
	if errors.Is(err, costs.ErrNoSnapshot) {
		return
	}
	if err != nil {
		e.logger.Warn("cannot restore cost snapshot", zap.Error(err))
		return
	}

	e.Ledger.Restore(snap)
	e.logger.Debug("cost ledger restored",
		zap.String("date", snap.Date),
		zap.Float64("total_cost", snap.TotalCost),
	)
}

// Clients builds a provider client for every configured API key.
func (e *Engine) Clients(ctx context.Context) (map[catalog.Provider]ai.Client, error) {
	clients := make(map[catalog.Provider]ai.Client, len(e.Keys))
	for p, key := range e.Keys {
		var (
			client ai.Client
			err    error
		)
		switch p {
		case catalog.ProviderGoogle:
			client, err = gemini.New(ctx, key)
		case catalog.ProviderAnthropic:
			client, err = anthropic.New(key)
		case catalog.ProviderOpenAI:
			client, err = openai.New(key)
		default:
			e.logger.Warn("no client implementation for provider", zap.String("ai_provider", string(p)))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create %s client: %w", p, err)
		}
		clients[p] = client
	}

	return clients, nil
}

// Invoker wires provider clients to the model breaker and the ledger.
func (e *Engine) Invoker(ctx context.Context) (*ai.Invoker, error) {
	clients, err := e.Clients(ctx)
	if err != nil {
		return nil, err
	}

	return ai.NewInvoker(clients, e.Registry, e.Models, e.Ledger, e.logger.Named("ai"),
		ai.WithRetries(e.Config.Invoke.MaxRetries, e.Config.Invoke.Timeout),
	), nil
}

// Close writes a final cost snapshot.
func (e *Engine) Close() error {
	_, err := e.Ledger.Flush()
	return err
}
