package selector

import (
	"go.uber.org/zap"

	"github.com/spigell/resume-optimizer/internal/breaker"
	"github.com/spigell/resume-optimizer/internal/catalog"
	"github.com/spigell/resume-optimizer/internal/tasks"
)

// contextHeadroom is how much larger than the content a context window must be.
const contextHeadroom = 1.5

// Stage narrows the candidate list. A stage never empties the list: when its
// predicate would drop every candidate it keeps them all and reports why.
type Stage interface {
	Name() string
	Apply(p *Plan, in []catalog.Model) ([]catalog.Model, Step)
}

// Plan is the input shared by all stages of one selection.
type Plan struct {
	Task          string
	Requirement   tasks.Requirement
	Provider      catalog.Provider
	ContentLength int
	StrictTier    bool
}

// Step describes the result of executing a stage.
type Step struct {
	Initial int
	Dropped int
	Left    int
	// Widened is set when the stage would have dropped every candidate and
	// kept them all instead.
	Widened bool
	Reason  string
}

// Gate reports provider health. Refresh may move an open circuit to half-open.
type Gate interface {
	Refresh(key string) breaker.State
}

// DefaultStages returns the narrowing pipeline in order.
func DefaultStages(gate Gate) []Stage {
	return []Stage{
		capabilityStage{},
		breakerStage{gate: gate},
		tierStage{},
		providerStage{},
		contextStage{},
	}
}

func runStages(logger *zap.Logger, p *Plan, stages []Stage, in []catalog.Model) []catalog.Model {
	for _, stage := range stages {
		next, info := stage.Apply(p, in)

		if info.Widened {
			logger.Warn("selection step widened",
				zap.String("name", stage.Name()),
				zap.String("task", p.Task),
				zap.String("reason", info.Reason),
			)
		} else {
			logger.Debug("selection step",
				zap.String("name", stage.Name()),
				zap.Int("initial", info.Initial),
				zap.Int("dropped", info.Dropped),
				zap.Int("left", info.Left),
				zap.String("reason", info.Reason),
			)
		}

		in = next
	}
	return in
}

// narrow keeps the models matching keep, or all of them if none match.
func narrow(in []catalog.Model, keep func(catalog.Model) bool) ([]catalog.Model, Step, bool) {
	out := make([]catalog.Model, 0, len(in))
	for _, m := range in {
		if keep(m) {
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		return in, Step{Initial: len(in), Left: len(in), Widened: true}, false
	}
	return out, Step{Initial: len(in), Dropped: len(in) - len(out), Left: len(out)}, true
}

func unchanged(in []catalog.Model, reason string) ([]catalog.Model, Step) {
	return in, Step{Initial: len(in), Left: len(in), Reason: reason}
}

type capabilityStage struct{}

func (capabilityStage) Name() string { return "capabilities" }

func (capabilityStage) Apply(p *Plan, in []catalog.Model) ([]catalog.Model, Step) {
	if p.Requirement.Capabilities.Len() == 0 {
		return unchanged(in, "no capabilities required")
	}

	out, step, ok := narrow(in, func(m catalog.Model) bool {
		return m.Capabilities.Superset(p.Requirement.Capabilities)
	})
	if !ok {
		step.Reason = "no model has every required capability; using all available models"
	}
	return out, step
}

type breakerStage struct {
	gate Gate
}

func (breakerStage) Name() string { return "circuit_breaker" }

func (s breakerStage) Apply(_ *Plan, in []catalog.Model) ([]catalog.Model, Step) {
	if s.gate == nil {
		return unchanged(in, "no circuit breaker")
	}

	states := make(map[catalog.Provider]breaker.State)
	out, step, ok := narrow(in, func(m catalog.Model) bool {
		st, seen := states[m.Provider]
		if !seen {
			st = s.gate.Refresh(string(m.Provider))
			states[m.Provider] = st
		}
		return st != breaker.Open
	})
	if !ok {
		step.Reason = "every provider circuit is open; ignoring circuit state"
	}
	return out, step
}

type tierStage struct{}

func (tierStage) Name() string { return "strict_tier" }

func (tierStage) Apply(p *Plan, in []catalog.Model) ([]catalog.Model, Step) {
	if !p.StrictTier {
		return unchanged(in, "tier is scored, not enforced")
	}

	out, step, ok := narrow(in, func(m catalog.Model) bool {
		return m.Tier == p.Requirement.PreferredTier
	})
	if !ok {
		step.Reason = "no model in the enforced tier"
	}
	return out, step
}

type providerStage struct{}

func (providerStage) Name() string { return "preferred_provider" }

func (providerStage) Apply(p *Plan, in []catalog.Model) ([]catalog.Model, Step) {
	if p.Provider == "" {
		return unchanged(in, "no preferred provider")
	}

	out, step, ok := narrow(in, func(m catalog.Model) bool {
		return m.Provider == p.Provider
	})
	if !ok {
		step.Reason = "preferred provider has no candidate model; ignoring preference"
	}
	return out, step
}

type contextStage struct{}

func (contextStage) Name() string { return "context_window" }

func (contextStage) Apply(p *Plan, in []catalog.Model) ([]catalog.Model, Step) {
	if p.ContentLength <= 0 {
		return unchanged(in, "content length unknown")
	}

	need := float64(p.ContentLength) * contextHeadroom
	out, step, ok := narrow(in, func(m catalog.Model) bool {
		return float64(m.MaxContextTokens) >= need
	})
	if !ok {
		step.Reason = "content exceeds every context window; ignoring length"
	}
	return out, step
}
