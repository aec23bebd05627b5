// Package selector picks the model for a task out of the configured catalog
// and builds the fallback chain and basic call configuration around it.
package selector

import (
	"errors"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/resume-optimizer/internal/catalog"
	"github.com/spigell/resume-optimizer/internal/tasks"
	"github.com/spigell/resume-optimizer/internal/thinking"
)

// ErrNoModelsAvailable means no provider credential is configured.
var ErrNoModelsAvailable = errors.New("no suitable model available: no provider credentials configured")

const (
	baseScore          = 100.0
	preferredTierBonus = 50.0
	fallbackTierBonus  = 25.0
	extraCapBonus      = 5.0
	thinkingBonus      = 20.0
	providerBonus      = 30.0
	outputCostWeight   = 3.0
)

// Catalog is the source of available models.
type Catalog interface {
	Available() map[string]catalog.Model
	Lookup(id string) (catalog.Model, bool)
}

// Overrides replace parts of the task requirement. Zero fields are ignored.
type Overrides struct {
	PreferredTier     catalog.Tier
	FallbackTier      catalog.Tier
	Capabilities      catalog.CapabilitySet
	BudgetSensitivity tasks.Sensitivity
}

func (o *Overrides) apply(r tasks.Requirement) tasks.Requirement {
	if o == nil {
		return r
	}
	if o.PreferredTier != "" {
		r.PreferredTier = o.PreferredTier
	}
	if o.FallbackTier != "" {
		r.FallbackTier = o.FallbackTier
	}
	if o.Capabilities != nil {
		r.Capabilities = o.Capabilities.Clone()
	}
	if o.BudgetSensitivity != "" {
		r.BudgetSensitivity = o.BudgetSensitivity
	}
	return r
}

// Request is one selection.
type Request struct {
	Task string
	// PreferredProvider is validated; unknown names are ignored with a warning.
	PreferredProvider string
	// CostSensitivity multiplies the cost penalty. Zero means 1.0.
	CostSensitivity float64
	// ContentLength is the estimated prompt size in tokens, zero when unknown.
	ContentLength int
	Overrides     *Overrides
	// StrictTier keeps only models of the preferred tier when any exist.
	StrictTier bool
}

// Selector is stateless apart from its dependencies and safe for concurrent use.
type Selector struct {
	catalog   Catalog
	stages    []Stage
	thinking  *thinking.Calculator
	defaults  Defaults
	optimizer Optimizer
	logger    *zap.Logger
}

// Defaults are the base call parameters.
type Defaults struct {
	Temperature float64
	MaxTokens   int
}

type Option func(*Selector)

// WithGate drops providers whose circuit is open.
func WithGate(g Gate) Option {
	return func(s *Selector) { s.stages = DefaultStages(g) }
}

func WithThinking(c *thinking.Calculator) Option {
	return func(s *Selector) { s.thinking = c }
}

func WithDefaults(d Defaults) Option {
	return func(s *Selector) { s.defaults = d }
}

func New(c Catalog, logger *zap.Logger, opts ...Option) *Selector {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Selector{
		catalog:  c,
		stages:   DefaultStages(nil),
		defaults: Defaults{Temperature: 0.7, MaxTokens: 4096},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.thinking == nil {
		s.thinking = thinking.NewCalculator(false, logger)
	}

	return s
}

// Attach makes ConfigForTask delegate to o.
func (s *Selector) Attach(o Optimizer) { s.optimizer = o }

func (s *Selector) Defaults() Defaults { return s.defaults }

// Select returns the best available model for the request. It fails only when
// nothing is available at all.
func (s *Selector) Select(req Request) (catalog.Model, error) {
	available := catalog.Sorted(s.catalog.Available())
	if len(available) == 0 {
		s.logger.Error("no models available", zap.String("task", req.Task))
		return catalog.Model{}, ErrNoModelsAvailable
	}

	plan := &Plan{
		Task:          tasks.Normalize(req.Task),
		Requirement:   req.Overrides.apply(tasks.RequirementFor(req.Task)),
		ContentLength: req.ContentLength,
		StrictTier:    req.StrictTier,
	}
	if raw := strings.TrimSpace(req.PreferredProvider); raw != "" {
		p, err := catalog.ParseProvider(raw)
		if err != nil {
			s.logger.Warn("ignoring preferred provider", zap.String("task", plan.Task), zap.Error(err))
		} else {
			plan.Provider = p
		}
	}

	sensitivity := req.CostSensitivity
	if sensitivity == 0 {
		sensitivity = 1.0
	}

	candidates := runStages(s.logger, plan, s.stages, available)

	ranked := make([]scored, 0, len(candidates))
	for _, m := range candidates {
		ranked = append(ranked, scored{model: m, score: Score(m, plan, sensitivity)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].model.ID < ranked[j].model.ID
	})

	best := ranked[0]
	s.logger.Info("model selected",
		zap.String("task", plan.Task),
		zap.String("ai_model", best.model.ID),
		zap.String("tier", string(best.model.Tier)),
		zap.Float64("score", best.score),
		zap.Int("candidates", len(ranked)),
	)

	return best.model, nil
}

type scored struct {
	model catalog.Model
	score float64
}

// Score rates m for the plan; higher is better.
func Score(m catalog.Model, p *Plan, costSensitivity float64) float64 {
	score := baseScore
	r := p.Requirement

	switch m.Tier {
	case r.PreferredTier:
		score += preferredTierBonus
	case r.FallbackTier:
		score += fallbackTierBonus
	}

	extra := 0
	for c := range m.Capabilities {
		if !r.Capabilities.Has(c) {
			extra++
		}
	}
	score += extraCapBonus * float64(extra)

	if m.SupportsThinking && tasks.BenefitsFromThinking(p.Task) {
		score += thinkingBonus
	}

	budgetFactor := r.BudgetSensitivity.Factor() * costSensitivity
	score -= (m.InputCostPer1K + outputCostWeight*m.OutputCostPer1K) * 1000 * budgetFactor

	if p.Provider != "" && m.Provider == p.Provider {
		score += providerBonus
	}

	return score
}
