package selector

import (
	"go.uber.org/zap"

	"github.com/spigell/resume-optimizer/internal/catalog"
	"github.com/spigell/resume-optimizer/internal/tasks"
)

// DefaultFallbacks is the chain length used when the caller passes zero.
const DefaultFallbacks = 3

// FallbackChain lists up to limit alternatives to primary, most similar first:
// same provider and tier, other provider and same tier, same provider in the
// task's fallback tier, other provider in the fallback tier, then any other
// model with the task's capabilities.
func (s *Selector) FallbackChain(primary, task string, limit int) []string {
	if limit <= 0 {
		limit = DefaultFallbacks
	}

	available := catalog.Sorted(s.catalog.Available())
	req := tasks.RequirementFor(task)

	pm, ok := s.catalog.Lookup(primary)
	if !ok {
		s.logger.Warn("fallback chain for unknown model",
			zap.String("ai_model", primary),
			zap.String("task", task),
		)
		pm = catalog.Model{ID: primary, Provider: catalog.ProviderOf(primary), Tier: req.PreferredTier}
	}

	groups := []func(catalog.Model) bool{
		func(m catalog.Model) bool { return m.Provider == pm.Provider && m.Tier == pm.Tier },
		func(m catalog.Model) bool { return m.Provider != pm.Provider && m.Tier == pm.Tier },
		func(m catalog.Model) bool { return m.Provider == pm.Provider && m.Tier == req.FallbackTier },
		func(m catalog.Model) bool { return m.Provider != pm.Provider && m.Tier == req.FallbackTier },
		func(m catalog.Model) bool { return m.Capabilities.Superset(req.Capabilities) },
	}

	seen := map[string]bool{primary: true}
	chain := make([]string, 0, limit)
	for _, match := range groups {
		for _, m := range available {
			if len(chain) == limit {
				return chain
			}
			if seen[m.ID] || !match(m) {
				continue
			}
			seen[m.ID] = true
			chain = append(chain, m.ID)
		}
	}

	return chain
}
