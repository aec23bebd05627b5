// Package optimizer turns a task invocation into a complete model
// configuration: it classifies the task, reacts to budget pressure, picks the
// model through the selector and registers the request with the cost ledger.
package optimizer

import (
	"math"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/resume-optimizer/internal/catalog"
	"github.com/spigell/resume-optimizer/internal/content"
	"github.com/spigell/resume-optimizer/internal/costs"
	"github.com/spigell/resume-optimizer/internal/logger"
	"github.com/spigell/resume-optimizer/internal/selector"
	"github.com/spigell/resume-optimizer/internal/tasks"
	"github.com/spigell/resume-optimizer/internal/thinking"
)

const (
	longJobDescription = 4000

	minTemperature = 0.2
	maxTemperature = 0.9

	minCostSensitivity = 0.5
	maxCostSensitivity = 2.0
)

// BudgetReader exposes the current spend classification.
type BudgetReader interface {
	BudgetStatus() costs.BudgetStatus
}

// Registrar records a request before the model is called.
type Registrar interface {
	Register(requestID, model, task string, metadata map[string]any)
}

// Ledger is what the optimizer needs from the cost tracker.
type Ledger interface {
	BudgetReader
	Registrar
}

// Input describes one task invocation. Only Task is required.
type Input struct {
	Task              string
	Content           string
	JobDescription    string
	Industry          string
	PreferredProvider string
	Overrides         map[string]any
}

// Strategy scales token and thinking budgets per complexity.
type Strategy struct {
	TokenFactor     float64
	ThinkingFactor  float64
	ExcludeExamples bool
}

// StrategyFor returns the optimization strategy for a complexity.
func StrategyFor(c tasks.Complexity) Strategy {
	switch c {
	case tasks.Simple:
		return Strategy{TokenFactor: 0.6, ThinkingFactor: 0.5, ExcludeExamples: true}
	case tasks.Moderate:
		return Strategy{TokenFactor: 0.8, ThinkingFactor: 1.0}
	case tasks.Complex, tasks.VeryComplex, tasks.Critical:
		return Strategy{TokenFactor: 1.0, ThinkingFactor: 1.0}
	default:
		return Strategy{TokenFactor: 1.0, ThinkingFactor: 1.0}
	}
}

type Optimizer struct {
	selector *selector.Selector
	thinking *thinking.Calculator
	ledger   Ledger
	logger   *zap.Logger
	newID    func() string
}

func New(sel *selector.Selector, calc *thinking.Calculator, ledger Ledger, logger *zap.Logger) *Optimizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if calc == nil {
		calc = thinking.NewCalculator(false, logger)
	}

	return &Optimizer{
		selector: sel,
		thinking: calc,
		ledger:   ledger,
		logger:   logger,
		newID:    uuid.NewString,
	}
}

// ClassifyTask returns the complexity and importance of an invocation.
func (o *Optimizer) ClassifyTask(in Input) tasks.Classification {
	cls, _ := o.classify(in, ParseOverrides(in.Overrides, o.logger))
	return cls
}

func (o *Optimizer) classify(in Input, ov Overrides) (tasks.Classification, *content.Metrics) {
	cls := tasks.StaticClassification(in.Task)

	if ov.Complexity != nil {
		cls.Complexity = *ov.Complexity
	}
	if ov.Importance != nil {
		cls.Importance = *ov.Importance
	}

	var metrics *content.Metrics
	if in.Content != "" {
		derived, m := content.Classify(in.Content, in.JobDescription, in.Industry)
		metrics = &m
		if derived > cls.Complexity {
			o.logger.Debug("content raises complexity",
				zap.String("task", in.Task),
				zap.Stringer("from", cls.Complexity),
				zap.Stringer("to", derived),
			)
			cls.Complexity = derived
		}
	}

	if utf8.RuneCountInString(in.JobDescription) > longJobDescription {
		cls.Complexity = cls.Complexity.Escalate(1)
	}

	if tasks.RequiresHighImportance(in.Task) && cls.Importance < tasks.High {
		cls.Importance = tasks.High
	}

	return cls, metrics
}

// RequiredCapabilities lists what a classified task needs from a model.
func RequiredCapabilities(task string, c tasks.Complexity) catalog.CapabilitySet {
	caps := catalog.NewCapabilitySet(catalog.CapStructuredOutput)
	if c >= tasks.Complex {
		caps.Add(catalog.CapThinking, catalog.CapDetailed)
	} else {
		caps.Add(catalog.CapConcise)
	}
	if tasks.IsCreative(task) {
		caps.Add(catalog.CapCreative)
	}
	return caps
}

// AdjustTemperature lowers temperature for critical work and raises it for
// low-importance work, clamped to [0.2, 0.9].
func AdjustTemperature(base float64, i tasks.Importance) float64 {
	switch i {
	case tasks.CriticalImportance:
		base -= 0.3
	case tasks.Low:
		base += 0.2
	}
	return math.Round(clamp(base, minTemperature, maxTemperature)*100) / 100
}

// SelectOptimizedModel builds the configuration for one invocation and
// registers it with the ledger. It fails only when no model is available.
func (o *Optimizer) SelectOptimizedModel(in Input) (selector.ModelConfig, error) {
	var status costs.BudgetStatus
	if o.ledger != nil {
		status = o.ledger.BudgetStatus()
	}
	pressure := status.Status.UnderPressure()

	ov := ParseOverrides(in.Overrides, o.logger)
	cls, metrics := o.classify(in, ov)

	tier := tasks.TierFor(cls.Complexity, cls.Importance)
	if ov.Tier != nil {
		tier = *ov.Tier
	}

	sensitivity := tasks.CostSensitivity(cls.Importance)
	if ov.CostSensitivity != nil {
		sensitivity = *ov.CostSensitivity
	}
	sensitivity = clamp(sensitivity, minCostSensitivity, maxCostSensitivity)

	caps := RequiredCapabilities(in.Task, cls.Complexity)

	if pressure {
		o.logger.Warn("budget pressure, forcing economy models",
			zap.String("task", in.Task),
			zap.String("budget_status", string(status.Status)),
			zap.Float64("daily_percent", status.Daily.PercentUsed),
			zap.Float64("monthly_percent", status.Monthly.PercentUsed),
		)
		tier = catalog.TierEconomy
		sensitivity = maxCostSensitivity
		caps = catalog.NewCapabilitySet(catalog.CapStructuredOutput)
	}

	strategy := StrategyFor(cls.Complexity)

	contentLength := 0
	if in.Content != "" || in.JobDescription != "" {
		contentLength = content.EstimateTokens(in.Content) + content.EstimateTokens(in.JobDescription)
	}

	model, err := o.selector.Select(selector.Request{
		Task:              in.Task,
		PreferredProvider: in.PreferredProvider,
		CostSensitivity:   sensitivity,
		ContentLength:     contentLength,
		Overrides:         &selector.Overrides{PreferredTier: tier, Capabilities: caps},
		StrictTier:        pressure,
	})
	if err != nil {
		return selector.ModelConfig{}, err
	}

	defaults := o.selector.Defaults()
	maxTokens := max(int(math.Round(float64(defaults.MaxTokens)*strategy.TokenFactor)), 1)
	if model.MaxOutputTokens > 0 && maxTokens > model.MaxOutputTokens {
		maxTokens = model.MaxOutputTokens
	}

	var (
		thinkingBudget int
		thinkingConfig *thinking.Config
	)
	if model.SupportsThinking {
		budget, _ := o.thinking.Budget(cls.Complexity, string(model.Provider), thinking.Options{
			Metrics: metrics,
			Factors: thinking.Factors{thinking.FactorImportance: cls.Importance.Weight()},
		})
		thinkingBudget = int(math.Round(float64(budget) * strategy.ThinkingFactor))
		if thinkingBudget > 0 {
			tc := o.thinking.Format(string(model.Provider), thinkingBudget)
			thinkingConfig = &tc
		}
	}

	requestID := o.newID()
	meta := &selector.Metadata{
		Task:             tasks.Normalize(in.Task),
		Complexity:       cls.Complexity,
		Importance:       cls.Importance,
		SelectedTier:     model.Tier,
		CostSensitivity:  sensitivity,
		TokenStrategy:    strategy.TokenFactor,
		ThinkingStrategy: strategy.ThinkingFactor,
		ExcludeExamples:  strategy.ExcludeExamples,
		ThinkingBudget:   thinkingBudget,
		RequestID:        requestID,
		BudgetStatus:     string(status.Status),
	}

	cfg := selector.ModelConfig{
		Model:          model.ID,
		Temperature:    AdjustTemperature(defaults.Temperature, cls.Importance),
		MaxTokens:      maxTokens,
		FallbackModels: o.selector.FallbackChain(model.ID, in.Task, selector.DefaultFallbacks),
		ThinkingConfig: thinkingConfig,
		Metadata:       meta,
	}

	if o.ledger != nil {
		o.ledger.Register(requestID, model.ID, meta.Task, map[string]any{
			"complexity":      cls.Complexity.String(),
			"importance":      cls.Importance.String(),
			"selected_tier":   string(model.Tier),
			"thinking_budget": thinkingBudget,
		})
	}

	logger.WithCall(o.logger, logger.Call{
		Provider:  string(model.Provider),
		Model:     model.ID,
		Task:      meta.Task,
		RequestID: requestID,
	}).Info("optimized model config",
		zap.Stringer("complexity", cls.Complexity),
		zap.Stringer("importance", cls.Importance),
		zap.Float64("temperature", cfg.Temperature),
		zap.Int("max_tokens", cfg.MaxTokens),
		zap.Int("thinking_budget", thinkingBudget),
	)

	return cfg, nil
}

// ConfigFor lets the selector delegate ConfigForTask to the optimizer.
func (o *Optimizer) ConfigFor(task, preferredProvider string) (selector.ModelConfig, error) {
	return o.SelectOptimizedModel(Input{Task: task, PreferredProvider: preferredProvider})
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Min(math.Max(v, lo), hi)
}
