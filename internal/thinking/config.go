package thinking

import (
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go/v3/shared"
	"google.golang.org/genai"

	"github.com/spigell/resume-optimizer/internal/catalog"
)

// Config is a non-zero thinking allowance bound to a provider. The zero value
// means "no thinking".
type Config struct {
	Provider catalog.Provider
	Budget   int
}

// IsZero reports whether thinking is disabled.
func (c Config) IsZero() bool { return c.Budget <= 0 }

// Map renders the provider's request shape:
//
//	anthropic: {"type":"enabled","budget_tokens":N}
//	google:    {"thinkingBudget":N}
//	openai:    {"reasoning_effort":"low|medium|high"}
func (c Config) Map() map[string]any {
	if c.IsZero() {
		return map[string]any{}
	}

	switch c.Provider {
	case catalog.ProviderGoogle:
		return map[string]any{"thinkingBudget": c.Budget}
	case catalog.ProviderOpenAI:
		return map[string]any{"reasoning_effort": string(c.ReasoningEffort())}
	default:
		return map[string]any{"type": "enabled", "budget_tokens": c.Budget}
	}
}

// MarshalJSON emits the provider shape.
func (c Config) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Map())
}

// Anthropic returns the Messages API thinking parameter.
func (c Config) Anthropic() anthropic.ThinkingConfigParamUnion {
	if c.IsZero() {
		return anthropic.ThinkingConfigParamUnion{}
	}
	return anthropic.ThinkingConfigParamOfEnabled(int64(c.Budget))
}

// Gemini returns the GenAI thinking config, nil when disabled.
func (c Config) Gemini() *genai.ThinkingConfig {
	if c.IsZero() {
		return nil
	}
	return &genai.ThinkingConfig{ThinkingBudget: genai.Ptr(int32(c.Budget))}
}

// ReasoningEffort buckets the budget for OpenAI reasoning models, empty when
// disabled.
func (c Config) ReasoningEffort() shared.ReasoningEffort {
	switch {
	case c.IsZero():
		return ""
	case c.Budget < 4000:
		return shared.ReasoningEffortLow
	case c.Budget < 12000:
		return shared.ReasoningEffortMedium
	default:
		return shared.ReasoningEffortHigh
	}
}
