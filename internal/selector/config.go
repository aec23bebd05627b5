package selector

import (
	"slices"

	"go.uber.org/zap"

	"github.com/spigell/resume-optimizer/internal/catalog"
	"github.com/spigell/resume-optimizer/internal/tasks"
	"github.com/spigell/resume-optimizer/internal/thinking"
)

// ModelConfig is everything the invocation layer needs for one call.
type ModelConfig struct {
	Model          string           `json:"model"`
	Temperature    float64          `json:"temperature"`
	MaxTokens      int              `json:"max_tokens"`
	FallbackModels []string         `json:"fallback_models"`
	ThinkingConfig *thinking.Config `json:"thinking_config,omitempty"`
	Metadata       *Metadata        `json:"optimization_metadata,omitempty"`
}

// Metadata records how an optimized configuration was derived.
type Metadata struct {
	Task             string           `json:"task"`
	Complexity       tasks.Complexity `json:"complexity"`
	Importance       tasks.Importance `json:"importance"`
	SelectedTier     catalog.Tier     `json:"selected_tier"`
	CostSensitivity  float64          `json:"cost_sensitivity"`
	TokenStrategy    float64          `json:"token_strategy"`
	ThinkingStrategy float64          `json:"thinking_strategy"`
	ExcludeExamples  bool             `json:"exclude_examples"`
	ThinkingBudget   int              `json:"thinking_budget"`
	RequestID        string           `json:"request_id"`
	BudgetStatus     string           `json:"budget_status,omitempty"`
}

// Optimizer produces a full configuration for a task. When attached it
// supersedes the basic configuration.
type Optimizer interface {
	ConfigFor(task, preferredProvider string) (ModelConfig, error)
}

// ConfigForTask selects a model and wraps it with a fallback chain and, for
// thinking models, a thinking config.
func (s *Selector) ConfigForTask(req Request) (ModelConfig, error) {
	m, err := s.Select(req)
	if err != nil {
		return ModelConfig{}, err
	}

	cfg := ModelConfig{
		Model:          m.ID,
		Temperature:    s.defaults.Temperature,
		MaxTokens:      s.defaults.MaxTokens,
		FallbackModels: s.FallbackChain(m.ID, req.Task, DefaultFallbacks),
	}
	if m.MaxOutputTokens > 0 && cfg.MaxTokens > m.MaxOutputTokens {
		cfg.MaxTokens = m.MaxOutputTokens
	}

	if m.SupportsThinking {
		complexity := tasks.StaticClassification(req.Task).Complexity
		if budget, tc := s.thinking.Budget(complexity, string(m.Provider), thinking.Options{}); budget > 0 {
			cfg.ThinkingConfig = &tc
		}
	}

	if s.optimizer == nil {
		return cfg, nil
	}

	optimized, err := s.optimizer.ConfigFor(req.Task, req.PreferredProvider)
	if err != nil {
		s.logger.Warn("optimizer failed, using basic model config",
			zap.String("task", req.Task),
			zap.Error(err),
		)
		return cfg, nil
	}

	optimized.FallbackModels = slices.DeleteFunc(slices.Clone(cfg.FallbackModels), func(id string) bool {
		return id == optimized.Model
	})
	if optimized.Model != cfg.Model && !slices.Contains(optimized.FallbackModels, cfg.Model) {
		optimized.FallbackModels = append([]string{cfg.Model}, optimized.FallbackModels...)
		if len(optimized.FallbackModels) > DefaultFallbacks {
			optimized.FallbackModels = optimized.FallbackModels[:DefaultFallbacks]
		}
	}

	return optimized, nil
}
